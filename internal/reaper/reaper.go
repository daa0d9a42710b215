package reaper

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls queue buffering behavior.
type Config struct {
	BufferSize int
	DropIfFull bool
	// Timeout bounds a single delete call. Zero means 5s.
	Timeout time.Duration
}

// DeleteFunc removes the expired session identified by token.
type DeleteFunc func(ctx context.Context, token string) error

// Queue asynchronously deletes expired sessions handed to it by the read path.
type Queue struct {
	cfg       Config
	del       DeleteFunc
	logger    *slog.Logger
	ch        chan string
	done      chan struct{}
	wg        sync.WaitGroup
	pending   sync.Map
	queued    atomic.Uint64
	deleted   atomic.Uint64
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// New starts a queue with a single worker.
func New(cfg Config, del DeleteFunc, logger *slog.Logger) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		cfg:    cfg,
		del:    del,
		logger: logger.With("component", "reaper"),
		ch:     make(chan string, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	q.wg.Add(1)
	go q.run()

	return q
}

func (q *Queue) run() {
	defer q.wg.Done()

	for {
		select {
		case token := <-q.ch:
			q.reap(token)
		case <-q.done:
			for {
				select {
				case token := <-q.ch:
					q.reap(token)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) reap(token string) {
	defer q.pending.Delete(token)
	if q.del == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.Timeout)
	defer cancel()

	if err := q.del(ctx, token); err != nil {
		// The scheduled sweep removes whatever the queue could not.
		q.logger.Warn("expired session delete failed", "operation", "reap", "outcome", "error", "error", err)
		return
	}
	q.deleted.Add(1)
}

// Enqueue schedules token for deletion. A token already waiting in the queue
// is not queued twice. It reports whether the token was accepted.
func (q *Queue) Enqueue(ctx context.Context, token string) bool {
	if q == nil || token == "" || q.closed.Load() {
		return false
	}
	if _, loaded := q.pending.LoadOrStore(token, struct{}{}); loaded {
		return true
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if q.cfg.DropIfFull {
		select {
		case q.ch <- token:
			q.queued.Add(1)
			return true
		case <-q.done:
		default:
			q.dropped.Add(1)
		}
		q.pending.Delete(token)
		return false
	}

	select {
	case q.ch <- token:
		q.queued.Add(1)
		return true
	case <-ctx.Done():
	case <-q.done:
	}
	q.pending.Delete(token)
	return false
}

// Close stops accepting tokens and drains what is already queued.
func (q *Queue) Close() {
	if q == nil {
		return
	}
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)
		q.wg.Wait()
	})
}

// Queued returns the number of tokens accepted so far.
func (q *Queue) Queued() uint64 {
	if q == nil {
		return 0
	}
	return q.queued.Load()
}

// Deleted returns the number of successful deletes.
func (q *Queue) Deleted() uint64 {
	if q == nil {
		return 0
	}
	return q.deleted.Load()
}

// Dropped returns the number of tokens refused because the buffer was full.
func (q *Queue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}
