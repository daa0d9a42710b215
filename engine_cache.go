package taroAuth

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/taroAuth/cache"
	"github.com/MrEthical07/taroAuth/directive"
	internalaudit "github.com/MrEthical07/taroAuth/internal/audit"
)

// CacheHealth pings the cache backend. An unreachable cache is reported as
// unhealthy, not as an error, because the Engine keeps serving from the store.
func (e *Engine) CacheHealth(ctx context.Context) CacheHealth {
	h := CacheHealth{Prefix: e.keys.Prefix()}
	latency, err := e.cache.Ping(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "cache health check failed", "operation", "cache_health", "error", err)
		return h
	}
	h.Healthy = true
	h.Latency = latency
	return h
}

// InvalidateUserCache drops the profile snapshot, data list and username
// mapping of userID. The next read repopulates them from the store.
func (e *Engine) InvalidateUserCache(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	keys := []string{e.keys.UserByID(userID), e.keys.DataList(userID)}
	var cu cachedUser
	if e.cache.Get(ctx, e.keys.UserByID(userID), &cu) && cu.Username != "" {
		keys = append(keys, e.keys.UsernameToID(cu.Username))
	}

	e.users.Forget(userID)
	if !e.cache.Invalidate(ctx, keys...) {
		return ErrCacheUnavailable
	}
	e.emitAudit(ctx, internalaudit.Event{EventType: AuditCacheInvalidate, UserID: userID, Success: true})
	return nil
}

// CleanupCache deletes every key in category, or the whole namespace for "*"
// or "", and returns how many keys were removed.
func (e *Engine) CleanupCache(ctx context.Context, category string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	category = strings.TrimSpace(category)
	if category != "" && category != "*" && !cache.KnownCategory(category) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCacheCategory, category)
	}

	n, err := e.cache.DeletePattern(ctx, category)
	if err != nil {
		e.logger.WarnContext(ctx, "cache cleanup failed", "operation", "cache_cleanup", "category", category, "deleted", n, "error", err)
		return n, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	e.logger.InfoContext(ctx, "cache cleanup finished", "operation", "cache_cleanup", "category", category, "deleted", n)
	e.emitAudit(ctx, internalaudit.Event{
		EventType: AuditCacheCleanup,
		Success:   true,
		Metadata:  map[string]string{"category": category, "deleted": fmt.Sprint(n)},
	})
	return n, nil
}

// RecordRouteCommandError logs a directive the client failed to apply and counts it.
func (e *Engine) RecordRouteCommandError(ctx context.Context, report directive.ErrorReport) {
	if e == nil {
		return
	}
	e.metrics.Inc(MetricRouteCommandError)
	e.logger.WarnContext(ctx, "client failed to apply directive",
		"operation", "route_command_error",
		"kind", report.Kind,
		"platform", report.Platform,
		"client_error", report.Error,
		"occurred_at", report.OccurredAt,
	)
	e.emitAudit(ctx, internalaudit.Event{
		EventType: AuditRouteCommandError,
		Reason:    truncate(report.Error, 128),
		Metadata:  map[string]string{"kind": report.Kind, "platform": report.Platform},
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
