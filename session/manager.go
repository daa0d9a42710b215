package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/taroAuth/cache"
	"github.com/MrEthical07/taroAuth/internal"
	"github.com/MrEthical07/taroAuth/internal/reaper"
	"github.com/MrEthical07/taroAuth/store"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalid covers absent, expired and malformed tokens alike.
	ErrInvalid = errors.New("session invalid")
	// ErrStoreUnavailable means the Identity Store could not answer, so the
	// session can be neither asserted nor denied.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrTokenCollision is returned when every generated token was already taken.
	ErrTokenCollision = errors.New("session token collision")
)

// Store is the slice of the Identity Store the manager depends on.
type Store interface {
	CreateSession(ctx context.Context, rec *store.Session) error
	FindSessionByToken(ctx context.Context, token string) (*store.Session, error)
	TouchSession(ctx context.Context, token string, at time.Time) error
	DeleteSessionByToken(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Cache is the slice of the cache tier the manager depends on.
type Cache interface {
	Keys() cache.Keys
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
	Replace(ctx context.Context, key string, value any, ttl time.Duration) bool
	Delete(ctx context.Context, keys ...string) bool
}

// Config controls session lifetime and background work.
type Config struct {
	TTL               time.Duration
	MaxCreateAttempts int
	// TouchInterval is the minimum age of last_accessed_at before Touch writes again.
	TouchInterval time.Duration
	TouchTimeout  time.Duration
	SweepInterval time.Duration
	ExpiryQueue   reaper.Config
}

// DefaultConfig returns a 7 day session lifetime with an hourly sweep.
func DefaultConfig() Config {
	return Config{
		TTL:               7 * 24 * time.Hour,
		MaxCreateAttempts: 3,
		TouchInterval:     time.Minute,
		TouchTimeout:      2 * time.Second,
		SweepInterval:     time.Hour,
		ExpiryQueue:       reaper.Config{BufferSize: 1024, DropIfFull: true},
	}
}

// Hooks receive lifecycle notifications, typically wired to metrics.
type Hooks struct {
	OnCreated       func()
	OnValidated     func()
	OnInvalid       func()
	OnRevoked       func()
	OnExpiredQueued func()
	OnSwept         func(n int64)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger; nil keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithHooks installs metric and audit callbacks.
func WithHooks(h Hooks) Option {
	return func(m *Manager) { m.hooks = h }
}

// WithClock replaces time.Now. Tests use it to sit exactly on the expiry boundary.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTokenSource replaces the secure token generator.
func WithTokenSource(next func() (string, error)) Option {
	return func(m *Manager) {
		if next != nil {
			m.newToken = next
		}
	}
}

// Manager issues, validates and revokes sessions. The Identity Store is
// authoritative; the cache is a write-through accelerator that may fail at
// any time without affecting results.
type Manager struct {
	store    Store
	cache    Cache
	keys     cache.Keys
	cfg      Config
	logger   *slog.Logger
	hooks    Hooks
	now      func() time.Time
	newToken func() (string, error)

	group   singleflight.Group
	expired *reaper.Queue
	touches sync.WaitGroup
}

// NewManager returns a manager over st and c. Zero fields in cfg fall back to
// DefaultConfig. Call Close to drain background touches.
func NewManager(st Store, c Cache, cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxCreateAttempts <= 0 {
		cfg.MaxCreateAttempts = def.MaxCreateAttempts
	}
	if cfg.TouchInterval < 0 {
		cfg.TouchInterval = 0
	}
	if cfg.TouchTimeout <= 0 {
		cfg.TouchTimeout = def.TouchTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.ExpiryQueue.BufferSize <= 0 {
		cfg.ExpiryQueue = def.ExpiryQueue
	}

	m := &Manager{
		store:    st,
		cache:    c,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		newToken: internal.NewSessionToken,
	}
	if c != nil {
		m.keys = c.Keys()
	} else {
		m.keys = cache.NewKeys("")
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")
	m.expired = reaper.New(cfg.ExpiryQueue, m.deleteExpired, m.logger)

	return m
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// Create issues a session for p.UserID with expiry now+TTL. A token collision
// in the store is retried with a fresh token, never overwritten.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Session, error) {
	now := m.now().UTC()

	for attempt := 1; attempt <= m.cfg.MaxCreateAttempts; attempt++ {
		token, err := m.newToken()
		if err != nil {
			return nil, fmt.Errorf("generate session token: %w", err)
		}

		s := &Session{
			UserID:         p.UserID,
			Token:          token,
			IPAddress:      p.IPAddress,
			UserAgent:      p.UserAgent,
			CreatedAt:      now,
			ExpiresAt:      now.Add(m.cfg.TTL),
			LastAccessedAt: now,
		}
		rec := s.record()
		err = m.store.CreateSession(ctx, rec)
		if errors.Is(err, store.ErrConflict) {
			m.logger.WarnContext(ctx, "session token collision, retrying",
				"operation", "create",
				"attempt", attempt,
				"user_id", p.UserID,
			)
			continue
		}
		if err != nil {
			m.logger.ErrorContext(ctx, "session persist failed", "operation", "create", "outcome", "error", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		s.ID = rec.ID
		m.cacheSession(ctx, s, now)
		call(m.hooks.OnCreated)
		return s, nil
	}

	return nil, ErrTokenCollision
}

// Validate resolves token to a live session. The absolute expiry is checked
// on every path, so a cache entry that outlives its session is still rejected.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, error) {
	if !internal.ValidSessionToken(token) {
		call(m.hooks.OnInvalid)
		return nil, ErrInvalid
	}
	now := m.now()
	key := m.keys.SessionByToken(token)

	var cached Session
	if m.cache != nil && m.cache.Get(ctx, key, &cached) && cached.Token == token {
		if !cached.ValidAt(now) {
			m.cache.Delete(ctx, key)
			m.queueExpired(ctx, token)
			call(m.hooks.OnInvalid)
			return nil, ErrInvalid
		}
		call(m.hooks.OnValidated)
		return &cached, nil
	}

	v, err, _ := m.group.Do(token, func() (any, error) {
		rec, err := m.store.FindSessionByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		s := fromRecord(rec)
		if !s.ValidAt(now) {
			return s, nil
		}
		m.cacheSession(ctx, s, now)
		// A Revoke that ran after the read above has already cleared the
		// cache, so the entry just written must be confirmed against the store.
		if _, err := m.store.FindSessionByToken(ctx, token); err != nil {
			if m.cache != nil {
				m.cache.Delete(ctx, key)
			}
			return nil, err
		}
		return s, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		call(m.hooks.OnInvalid)
		return nil, ErrInvalid
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "session lookup failed", "operation", "validate", "outcome", "error", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s := *v.(*Session)
	if !s.ValidAt(now) {
		m.queueExpired(ctx, token)
		call(m.hooks.OnInvalid)
		return nil, ErrInvalid
	}

	call(m.hooks.OnValidated)
	return &s, nil
}

// Touch refreshes last_accessed_at in the background. Concurrent touches are
// last-write-wins; a failed touch is logged and forgotten. The cached copy is
// only replaced while it still exists, so a touch racing Revoke cannot bring
// the session back.
func (m *Manager) Touch(s *Session) {
	if s == nil {
		return
	}
	now := m.now().UTC()
	if now.Sub(s.LastAccessedAt) < m.cfg.TouchInterval {
		return
	}

	touched := *s
	touched.LastAccessedAt = now
	m.touches.Add(1)
	go func() {
		defer m.touches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TouchTimeout)
		defer cancel()

		err := m.store.TouchSession(ctx, touched.Token, now)
		if errors.Is(err, store.ErrNotFound) {
			m.logger.Debug("session gone before touch", "operation", "touch", "outcome", "skipped")
			return
		}
		if err != nil {
			m.logger.Warn("session touch failed", "operation", "touch", "outcome", "error", "error", err)
			return
		}
		if ttl := m.cacheTTL(&touched, now); ttl > 0 && m.cache != nil {
			m.cache.Replace(ctx, m.keys.SessionByToken(touched.Token), &touched, ttl)
		}
	}()
}

// Revoke deletes the session from the store and then the cache. Revoking an
// unknown or already-revoked token succeeds.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.DeleteSessionByToken(ctx, token); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.ErrorContext(ctx, "session revoke failed", "operation", "revoke", "outcome", "error", "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if m.cache != nil {
		m.cache.Delete(ctx, m.keys.SessionByToken(token))
	}
	m.group.Forget(token)
	call(m.hooks.OnRevoked)
	return nil
}

// SweepExpired deletes every stored session whose expiry has passed.
// Cached copies age out on their own TTL and fail the expiry re-check meanwhile.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredSessions(ctx, m.now().UTC())
	if err != nil {
		m.logger.ErrorContext(ctx, "session sweep failed", "operation", "sweep", "outcome", "error", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if m.hooks.OnSwept != nil {
		m.hooks.OnSwept(n)
	}
	m.logger.InfoContext(ctx, "expired sessions swept", "operation", "sweep", "outcome", "success", "deleted", n)
	return n, nil
}

// RunSweeper calls SweepExpired every SweepInterval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = m.SweepExpired(ctx)
		}
	}
}

// ExpiryQueueDropped returns how many expired tokens were not queued because
// the queue was full.
func (m *Manager) ExpiryQueueDropped() uint64 {
	return m.expired.Dropped()
}

// Close drains the expiry queue and waits for in-flight touches.
func (m *Manager) Close() {
	m.expired.Close()
	m.touches.Wait()
}

func (m *Manager) queueExpired(ctx context.Context, token string) {
	if m.expired.Enqueue(ctx, token) {
		call(m.hooks.OnExpiredQueued)
	}
}

func (m *Manager) deleteExpired(ctx context.Context, token string) error {
	if err := m.store.DeleteSessionByToken(ctx, token); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if m.cache != nil {
		m.cache.Delete(ctx, m.keys.SessionByToken(token))
	}
	return nil
}

func (m *Manager) cacheSession(ctx context.Context, s *Session, now time.Time) {
	if ttl := m.cacheTTL(s, now); ttl > 0 && m.cache != nil {
		m.cache.Set(ctx, m.keys.SessionByToken(s.Token), s, ttl)
	}
}

// cacheTTL is the remaining lifetime of s, capped at the configured TTL.
func (m *Manager) cacheTTL(s *Session, now time.Time) time.Duration {
	ttl := s.ExpiresAt.Sub(now)
	if ttl > m.cfg.TTL {
		ttl = m.cfg.TTL
	}
	return ttl
}

func call(f func()) {
	if f != nil {
		f()
	}
}
