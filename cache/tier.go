package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is the namespace used when none is configured.
const DefaultPrefix = "rocket_taro"

const (
	scanBatch    = 200
	fenceStripes = 256
)

// ErrUnavailable indicates the cache backend could not serve a request.
// Only Increment and the admin helpers return it; reads and writes swallow it.
var ErrUnavailable = errors.New("cache unavailable")

// TTLs holds the fixed time-to-live of each entity class.
type TTLs struct {
	Session time.Duration
	User    time.Duration
	Data    time.Duration
	Lockout time.Duration
}

// DefaultTTLs returns session=7d, user=30m, data=10m, lockout=15m.
func DefaultTTLs() TTLs {
	return TTLs{
		Session: 7 * 24 * time.Hour,
		User:    30 * time.Minute,
		Data:    10 * time.Minute,
		Lockout: 15 * time.Minute,
	}
}

// Config configures a Tier.
type Config struct {
	Prefix string
	TTLs   TTLs
}

// Hooks observe cache outcomes. Nil funcs are skipped.
type Hooks struct {
	OnHit   func()
	OnMiss  func()
	OnError func()
}

// Option customises a Tier.
type Option func(*Tier)

// WithLogger sets the logger used for degraded-path warnings.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tier) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithHooks installs outcome hooks, typically metric counters.
func WithHooks(h Hooks) Option {
	return func(t *Tier) { t.hooks = h }
}

// Tier is a Redis read-through/write-through accelerator in front of the
// identity store. Every failure is logged and reported as a miss, so callers
// always fall through to the store.
//
// A nil *Tier, or one built with a nil client, behaves as a permanently empty cache.
type Tier struct {
	redis  redis.UniversalClient
	keys   Keys
	ttls   TTLs
	logger *slog.Logger
	hooks  Hooks

	// fences counts invalidations per key stripe. Two keys sharing a stripe
	// only cost an extra delete.
	fences [fenceStripes]atomic.Uint64
}

// New creates a Tier on client.
func New(client redis.UniversalClient, cfg Config, opts ...Option) *Tier {
	ttls := cfg.TTLs
	def := DefaultTTLs()
	if ttls.Session <= 0 {
		ttls.Session = def.Session
	}
	if ttls.User <= 0 {
		ttls.User = def.User
	}
	if ttls.Data <= 0 {
		ttls.Data = def.Data
	}
	if ttls.Lockout <= 0 {
		ttls.Lockout = def.Lockout
	}

	t := &Tier{
		redis:  client,
		keys:   NewKeys(cfg.Prefix),
		ttls:   ttls,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "cache")
	return t
}

// Keys returns the key builder.
func (t *Tier) Keys() Keys {
	if t == nil {
		return NewKeys("")
	}
	return t.keys
}

// TTLs returns the configured TTL table.
func (t *Tier) TTLs() TTLs {
	if t == nil {
		return DefaultTTLs()
	}
	return t.ttls
}

func (t *Tier) usable() bool {
	return t != nil && t.redis != nil
}

// Get decodes the value at key into dst. It reports false on a miss and on
// any backend or decode failure.
func (t *Tier) Get(ctx context.Context, key string, dst any) bool {
	if !t.usable() {
		return false
	}

	data, err := t.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			t.miss()
			return false
		}
		t.degraded(ctx, "get", key, err)
		return false
	}

	if err := sonic.Unmarshal(data, dst); err != nil {
		// A corrupt entry is dropped so the next read repopulates it.
		t.degraded(ctx, "decode", key, err)
		_ = t.redis.Del(ctx, key).Err()
		return false
	}

	t.hit()
	return true
}

// Set stores value at key with ttl. It reports whether the write landed.
func (t *Tier) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !t.usable() {
		return false
	}

	data, err := sonic.Marshal(value)
	if err != nil {
		t.degraded(ctx, "encode", key, err)
		return false
	}
	if err := t.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		t.degraded(ctx, "set", key, err)
		return false
	}
	return true
}

// SetFenced is Set for read-through loaders. fence must come from Fence(key)
// taken before the store read. If key was invalidated since then the value
// may predate that write, so it is deleted again and SetFenced reports false.
func (t *Tier) SetFenced(ctx context.Context, key string, value any, ttl time.Duration, fence uint64) bool {
	if !t.Set(ctx, key, value, ttl) {
		return false
	}
	if t.Fence(key) != fence {
		_ = t.Delete(ctx, key)
		return false
	}
	return true
}

// Replace overwrites key only while it still exists (SET XX), so a refresh
// cannot resurrect an entry that was deleted meanwhile.
func (t *Tier) Replace(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !t.usable() {
		return false
	}

	data, err := sonic.Marshal(value)
	if err != nil {
		t.degraded(ctx, "encode", key, err)
		return false
	}
	ok, err := t.redis.SetXX(ctx, key, data, ttl).Result()
	if err != nil {
		t.degraded(ctx, "replace", key, err)
		return false
	}
	return ok
}

// Fence returns the invalidation generation of key.
func (t *Tier) Fence(key string) uint64 {
	if t == nil {
		return 0
	}
	return t.fences[fenceStripe(key)].Load()
}

// Fences is a copy of every fence, for loaders that only learn the key from
// the row they read.
type Fences [fenceStripes]uint64

// Fences snapshots all fences.
func (t *Tier) Fences() Fences {
	var f Fences
	if t == nil {
		return f
	}
	for i := range t.fences {
		f[i] = t.fences[i].Load()
	}
	return f
}

// Of returns the fence of key at snapshot time.
func (f *Fences) Of(key string) uint64 {
	return f[fenceStripe(key)]
}

func fenceStripe(key string) uint64 {
	return xxhash.Sum64String(key) % fenceStripes
}

// Invalidate advances the fence of every key and then deletes them. Loaders
// that read the store before this call will not leave their value behind.
func (t *Tier) Invalidate(ctx context.Context, keys ...string) bool {
	if t == nil {
		return false
	}
	for _, key := range keys {
		t.fences[fenceStripe(key)].Add(1)
	}
	return t.Delete(ctx, keys...)
}

// Delete removes keys. Missing keys are not an error.
func (t *Tier) Delete(ctx context.Context, keys ...string) bool {
	if !t.usable() || len(keys) == 0 {
		return false
	}
	if err := t.redis.Del(ctx, keys...).Err(); err != nil {
		t.degraded(ctx, "delete", keys[0], err)
		return false
	}
	return true
}

// Increment atomically adds one to the counter at key and refreshes its TTL
// in the same MULTI block. The returned count is the post-increment value.
func (t *Tier) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if !t.usable() {
		return 0, ErrUnavailable
	}

	var incr *redis.IntCmd
	_, err := t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		t.degraded(ctx, "increment", key, err)
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return incr.Val(), nil
}

// Count reads an integer counter without touching its TTL. A missing key is zero.
func (t *Tier) Count(ctx context.Context, key string) (int64, bool) {
	if !t.usable() {
		return 0, false
	}

	n, err := t.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		t.degraded(ctx, "count", key, err)
		return 0, false
	}
	return n, true
}

// TTL returns the remaining lifetime of key, or false when it has none.
func (t *Tier) TTL(ctx context.Context, key string) (time.Duration, bool) {
	if !t.usable() {
		return 0, false
	}

	d, err := t.redis.PTTL(ctx, key).Result()
	if err != nil {
		t.degraded(ctx, "ttl", key, err)
		return 0, false
	}
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// Ping measures round-trip latency to the backend.
func (t *Tier) Ping(ctx context.Context) (time.Duration, error) {
	if !t.usable() {
		return 0, ErrUnavailable
	}

	start := time.Now()
	if err := t.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}

// DeletePattern removes every key in category (or the whole namespace for "*")
// using SCAN, and returns how many keys were deleted.
func (t *Tier) DeletePattern(ctx context.Context, category string) (int, error) {
	if !t.usable() {
		return 0, ErrUnavailable
	}

	pattern := t.keys.Pattern(category)
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := t.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := t.redis.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (t *Tier) hit() {
	if t.hooks.OnHit != nil {
		t.hooks.OnHit()
	}
}

func (t *Tier) miss() {
	if t.hooks.OnMiss != nil {
		t.hooks.OnMiss()
	}
}

func (t *Tier) degraded(ctx context.Context, op, key string, err error) {
	if t.hooks.OnError != nil {
		t.hooks.OnError()
	}
	t.logger.WarnContext(ctx, "cache degraded, falling back to store",
		"operation", op,
		"category", categoryOf(t.keys.prefix, key),
		"error", err,
	)
}

// categoryOf keeps ids (tokens, usernames) out of log lines.
func categoryOf(prefix, key string) string {
	rest := key
	if len(rest) > len(prefix)+1 && rest[:len(prefix)] == prefix {
		rest = rest[len(prefix)+1:]
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return rest[:i]
		}
	}
	return rest
}
