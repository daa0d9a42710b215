package audit

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// Event types emitted by the Engine.
const (
	EventLoginSuccess      = "login_success"
	EventLoginFailure      = "login_failure"
	EventLoginLocked       = "login_locked"
	EventLogout            = "logout"
	EventRegister          = "register"
	EventGuestLogin        = "guest_login"
	EventProfileUpdate     = "profile_update"
	EventCacheInvalidate   = "cache_invalidate"
	EventCacheCleanup      = "cache_cleanup"
	EventRouteCommandError = "route_command_error"
)

// Event is one audit record. Tokens and passwords never appear in it; SessionID
// is the session's row id, not its token.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// IsLogin reports whether the event belongs in the login history.
func (e Event) IsLogin() bool {
	switch e.EventType {
	case EventLoginSuccess, EventLoginFailure, EventLoginLocked, EventGuestLogin:
		return true
	}
	return false
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// BatchSink is a Sink that accepts several queued events in one call. The
// slice is reused after EmitBatch returns and must not be retained.
type BatchSink interface {
	Sink
	EmitBatch(ctx context.Context, events []Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a sink buffering up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

// Emit blocks until the event is buffered or ctx is done.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the receive side of the buffer.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := sonic.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}

// EmitBatch hands the batch to members that accept batches and replays it
// event by event to the others.
func (m MultiSink) EmitBatch(ctx context.Context, events []Event) {
	for _, s := range m {
		switch sink := s.(type) {
		case nil:
		case BatchSink:
			sink.EmitBatch(ctx, events)
		default:
			for _, ev := range events {
				sink.Emit(ctx, ev)
			}
		}
	}
}
