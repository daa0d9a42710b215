package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/taroAuth/cache"
)

// LockoutConfig holds configuration for the username lockout guard.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout counter could not be recorded.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// Counter is the slice of the cache tier the guard depends on.
type Counter interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, bool)
	TTL(ctx context.Context, key string) (time.Duration, bool)
	Delete(ctx context.Context, keys ...string) bool
}

// Decision is the guard's view of one username.
type Decision struct {
	Count      int64
	Locked     bool
	RetryAfter time.Duration
}

// LockoutLimiter counts consecutive failed logins per username and reports
// a lock once the post-increment count reaches the threshold.
//
// States: Clear (no key) -> Counting (0 < n < threshold) -> Locked (n >= threshold) -> Clear
// (key expires or Clear is called after a verified login).
type LockoutLimiter struct {
	counter Counter
	keys    cache.Keys
	config  LockoutConfig
}

// NewLockoutLimiter creates a new lockout limiter.
func NewLockoutLimiter(counter Counter, keys cache.Keys, cfg LockoutConfig) *LockoutLimiter {
	return &LockoutLimiter{counter: counter, keys: keys, config: cfg}
}

// RecordFailure increments the failure counter for username and slides its
// window. The lock decision uses the value returned by the increment itself,
// never a second read, so racing failures cannot both observe threshold-1.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, username string) (Decision, error) {
	if l == nil || !l.config.Enabled || username == "" {
		return Decision{}, nil
	}

	count, err := l.counter.Increment(ctx, l.keys.LoginFailures(username), l.config.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	d := Decision{Count: count}
	if count >= int64(l.config.Threshold) {
		d.Locked = true
		d.RetryAfter = l.config.Window
	}
	return d, nil
}

// Check is a pure read of the counter against the threshold. It never
// extends the window. An unreadable counter is treated as Clear.
func (l *LockoutLimiter) Check(ctx context.Context, username string) Decision {
	if l == nil || !l.config.Enabled || username == "" {
		return Decision{}
	}

	key := l.keys.LoginFailures(username)
	count, ok := l.counter.Count(ctx, key)
	if !ok {
		return Decision{}
	}

	d := Decision{Count: count}
	if count >= int64(l.config.Threshold) {
		d.Locked = true
		if ttl, ok := l.counter.TTL(ctx, key); ok {
			d.RetryAfter = ttl
		} else {
			d.RetryAfter = l.config.Window
		}
	}
	return d
}

// IsLocked reports whether username is currently locked out.
func (l *LockoutLimiter) IsLocked(ctx context.Context, username string) bool {
	return l.Check(ctx, username).Locked
}

// Clear removes the counter. Call it only after a verified-successful login.
func (l *LockoutLimiter) Clear(ctx context.Context, username string) error {
	if l == nil || !l.config.Enabled || username == "" {
		return nil
	}

	if !l.counter.Delete(ctx, l.keys.LoginFailures(username)) {
		return ErrLockoutUnavailable
	}
	return nil
}

// Threshold returns the configured failure threshold.
func (l *LockoutLimiter) Threshold() int {
	if l == nil {
		return 0
	}
	return l.config.Threshold
}
