package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultEmitTimeout = 5 * time.Second
	defaultMaxBatch    = 32
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// MaxBatch caps how many queued events one BatchSink call receives. Zero means 32.
	MaxBatch int
	// EmitTimeout bounds each sink call. Zero means 5s.
	EmitTimeout time.Duration
}

// Dispatcher forwards audit events to a sink from a single goroutine so
// request paths never wait on audit storage. Events that queue up while the
// sink is busy are handed over together when the sink is a BatchSink.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	batch BatchSink
	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	closing   atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns nil when audit is disabled. A nil Dispatcher accepts
// and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.EmitTimeout <= 0 {
		cfg.EmitTimeout = defaultEmitTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
	}
	d.batch, _ = sink.(BatchSink)

	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	pending := make([]Event, 0, d.cfg.MaxBatch)
	for {
		select {
		case ev := <-d.queue:
			pending = d.collect(append(pending[:0], ev))
			d.flush(pending)
		case <-d.stop:
			for {
				pending = d.collect(pending[:0])
				if len(pending) == 0 {
					return
				}
				d.flush(pending)
			}
		}
	}
}

// collect tops pending up from the queue without blocking.
func (d *Dispatcher) collect(pending []Event) []Event {
	for len(pending) < d.cfg.MaxBatch {
		select {
		case ev := <-d.queue:
			pending = append(pending, ev)
		default:
			return pending
		}
	}
	return pending
}

func (d *Dispatcher) flush(events []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.EmitTimeout)
	defer cancel()

	if d.batch != nil {
		d.batch.EmitBatch(ctx, events)
	} else {
		for _, ev := range events {
			d.sink.Emit(ctx, ev)
		}
	}
	d.delivered.Add(uint64(len(events)))
}

// Emit queues event. With DropIfFull a full buffer drops the event and counts
// it. Otherwise Emit waits for room until ctx ends or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops intake, delivers everything already queued and waits for the
// sink. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped counts events lost to a full buffer or an expired context.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns how many events reached the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
