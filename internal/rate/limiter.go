package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config sets the fixed window. A Limit of zero disables the limiter.
type Config struct {
	Limit  int
	Window time.Duration
}

// Limiter counts hits per key in fixed windows using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter. A nil client yields a limiter that allows everything.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enabled reports whether Allow can ever refuse.
func (l *Limiter) Enabled() bool {
	return l != nil && l.redis != nil && l.config.Limit > 0 && l.config.Window > 0
}

// Allow records one hit for key. It returns ErrRateLimited once the hit count
// in the current window exceeds the limit, and ErrRedisUnavailable when the
// counter could not be updated.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if !l.Enabled() {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, key, l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.Limit) {
		return ErrRateLimited
	}
	return nil
}

// Hits returns the count in the current window. Missing keys are zero.
func (l *Limiter) Hits(ctx context.Context, key string) (int, error) {
	if !l.Enabled() {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
