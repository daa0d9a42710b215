package taroAuth

import (
	"context"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/taroAuth/internal/audit"
	"github.com/MrEthical07/taroAuth/store"
)

type (
	// AuditEvent is one audit record.
	AuditEvent = internalaudit.Event
	// AuditSink receives audit events from the dispatcher goroutine.
	AuditSink = internalaudit.Sink
	// NoOpSink drops audit events.
	NoOpSink = internalaudit.NoOpSink
	// ChannelSink buffers audit events in a channel.
	ChannelSink = internalaudit.ChannelSink
	// JSONWriterSink writes audit events as JSON lines.
	JSONWriterSink = internalaudit.JSONWriterSink
	// MultiSink fans one event out to several sinks.
	MultiSink = internalaudit.MultiSink
)

// Audit event types.
const (
	AuditLoginSuccess      = internalaudit.EventLoginSuccess
	AuditLoginFailure      = internalaudit.EventLoginFailure
	AuditLoginLocked       = internalaudit.EventLoginLocked
	AuditLogout            = internalaudit.EventLogout
	AuditRegister          = internalaudit.EventRegister
	AuditGuestLogin        = internalaudit.EventGuestLogin
	AuditProfileUpdate     = internalaudit.EventProfileUpdate
	AuditCacheInvalidate   = internalaudit.EventCacheInvalidate
	AuditCacheCleanup      = internalaudit.EventCacheCleanup
	AuditRouteCommandError = internalaudit.EventRouteCommandError
)

// NewChannelSink returns a sink that buffers up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// LoginLogWriter is the slice of the identity store the login-log sink needs.
type LoginLogWriter interface {
	InsertLoginLogs(ctx context.Context, recs []store.LoginLog) error
}

// StoreAuditSink persists login events as login_logs rows and ignores the
// rest. Events queued together are written with one batched insert.
type StoreAuditSink struct {
	store  LoginLogWriter
	logger *slog.Logger
}

// NewStoreAuditSink returns a sink writing to st. A nil logger uses slog.Default().
func NewStoreAuditSink(st LoginLogWriter, logger *slog.Logger) *StoreAuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreAuditSink{store: st, logger: logger}
}

// Emit implements AuditSink.
func (s *StoreAuditSink) Emit(ctx context.Context, event AuditEvent) {
	s.EmitBatch(ctx, []AuditEvent{event})
}

// EmitBatch implements internal/audit.BatchSink.
func (s *StoreAuditSink) EmitBatch(ctx context.Context, events []AuditEvent) {
	if s == nil || s.store == nil {
		return
	}

	recs := make([]store.LoginLog, 0, len(events))
	for _, ev := range events {
		if ev.IsLogin() {
			recs = append(recs, loginLogFromEvent(ev))
		}
	}
	if len(recs) == 0 {
		return
	}

	if err := s.store.InsertLoginLogs(ctx, recs); err != nil {
		s.logger.WarnContext(ctx, "login log write failed",
			"component", "audit",
			"operation", "insert_login_logs",
			"outcome", "failure",
			"rows", len(recs),
			"error", err,
		)
	}
}

func loginLogFromEvent(ev AuditEvent) store.LoginLog {
	rec := store.LoginLog{
		Username:      ev.Username,
		Success:       ev.Success,
		IPAddress:     ev.IP,
		UserAgent:     ev.UserAgent,
		FailureReason: ev.Reason,
		CreatedAt:     ev.Timestamp,
	}
	if ev.UserID != "" {
		uid := ev.UserID
		rec.UserID = &uid
	}
	return rec
}
