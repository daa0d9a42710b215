package reaper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	tokens []string
}

func (r *recorder) del(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

func TestQueueDeletesEnqueuedTokens(t *testing.T) {
	rec := &recorder{}
	q := New(Config{BufferSize: 8, DropIfFull: true}, rec.del, nil)

	for _, tok := range []string{"a", "b", "c"} {
		if !q.Enqueue(context.Background(), tok) {
			t.Fatalf("expected %q to be accepted", tok)
		}
	}
	q.Close()

	got := rec.seen()
	if len(got) != 3 {
		t.Fatalf("expected 3 deletes after drain, got %v", got)
	}
	if q.Deleted() != 3 {
		t.Fatalf("expected deleted=3, got %d", q.Deleted())
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	del := func(ctx context.Context, token string) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}
	q := New(Config{BufferSize: 1, DropIfFull: true}, del, nil)

	q.Enqueue(context.Background(), "first")
	<-started
	q.Enqueue(context.Background(), "second")

	if q.Enqueue(context.Background(), "third") {
		t.Fatal("expected enqueue to be refused when the buffer is full")
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected dropped=1, got %d", q.Dropped())
	}

	close(release)
	q.Close()
}

func TestQueueCoalescesPendingToken(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	count := map[string]int{}
	del := func(ctx context.Context, token string) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		mu.Lock()
		count[token]++
		mu.Unlock()
		return nil
	}
	q := New(Config{BufferSize: 4, DropIfFull: true}, del, nil)

	q.Enqueue(context.Background(), "blocker")
	<-started
	for i := 0; i < 3; i++ {
		q.Enqueue(context.Background(), "dup")
	}
	close(release)
	q.Close()

	if count["dup"] != 1 {
		t.Fatalf("expected a pending token to be deleted once, got %d", count["dup"])
	}
}

func TestQueueDeleteFailureIsNotCounted(t *testing.T) {
	q := New(Config{BufferSize: 2, Timeout: time.Second}, func(context.Context, string) error {
		return errors.New("store down")
	}, nil)
	q.Enqueue(context.Background(), "x")
	q.Close()

	if q.Deleted() != 0 {
		t.Fatalf("expected no successful deletes, got %d", q.Deleted())
	}
	if q.Queued() != 1 {
		t.Fatalf("expected queued=1, got %d", q.Queued())
	}
}

func TestQueueClosedOrNil(t *testing.T) {
	var nilQ *Queue
	if nilQ.Enqueue(context.Background(), "x") {
		t.Fatal("nil queue must refuse")
	}
	nilQ.Close()

	q := New(Config{BufferSize: 1}, nil, nil)
	q.Close()
	q.Close()
	if q.Enqueue(context.Background(), "x") {
		t.Fatal("closed queue must refuse")
	}
}
