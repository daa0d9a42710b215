package taroAuth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/taroAuth/cache"
	internalaudit "github.com/MrEthical07/taroAuth/internal/audit"
	"github.com/MrEthical07/taroAuth/internal/limiters"
	"github.com/MrEthical07/taroAuth/internal/rate"
	"github.com/MrEthical07/taroAuth/internal/reaper"
	"github.com/MrEthical07/taroAuth/password"
	"github.com/MrEthical07/taroAuth/routes"
	"github.com/MrEthical07/taroAuth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. It is single-use: Build may be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  IdentityStore
	routes *routes.Table
	logger *slog.Logger

	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration tree.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the cache backend. Without one the Engine runs store-only:
// every cache read misses and the lockout guard fails open.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the identity store. It is required.
func (b *Builder) WithStore(st IdentityStore) *Builder {
	b.store = st
	return b
}

// WithRoutes sets the platform route table. Defaults to routes.Default().
func (b *Builder) WithRoutes(t *routes.Table) *Builder {
	b.routes = t
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go. When the store also implements
// LoginLogWriter and no sink is set, login events are written to login_logs.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for the Engine and its session manager.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("identity store is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	cfg := b.config
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	table := b.routes
	if table == nil {
		table = routes.Default()
	}

	hasher, err := password.NewHasher(cfg.passwordConfig())
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	metrics := NewMetrics(cfg.Metrics)

	tier := cache.New(b.redis, cfg.cacheConfig(),
		cache.WithLogger(logger),
		cache.WithHooks(cache.Hooks{
			OnHit:   func() { metrics.Inc(MetricCacheHit) },
			OnMiss:  func() { metrics.Inc(MetricCacheMiss) },
			OnError: func() { metrics.Inc(MetricCacheError) },
		}),
	)
	if b.redis == nil {
		// A Tier without a client is a permanently empty cache.
		logger.Warn("engine built without redis; running store-only", "component", "engine")
	}

	lockout := limiters.NewLockoutLimiter(tier, tier.Keys(), limiters.LockoutConfig{
		Enabled:   cfg.Lockout.Enabled,
		Threshold: cfg.Lockout.Threshold,
		Window:    cfg.Lockout.Window,
	})

	signups := rate.New(b.redis, rate.Config{
		Limit:  cfg.Registration.SignupsPerIPPerHour,
		Window: time.Hour,
	})

	sessions := session.NewManager(b.store, tier, session.Config{
		TTL:           cfg.Session.TTL,
		TouchInterval: cfg.Session.TouchInterval,
		SweepInterval: cfg.Session.SweepInterval,
		ExpiryQueue: reaper.Config{
			BufferSize: cfg.Session.ExpiryQueueSize,
			DropIfFull: true,
		},
	},
		session.WithLogger(logger),
		session.WithClock(now),
		session.WithHooks(session.Hooks{
			OnCreated:       func() { metrics.Inc(MetricSessionCreated) },
			OnValidated:     func() { metrics.Inc(MetricSessionValidated) },
			OnInvalid:       func() { metrics.Inc(MetricSessionInvalid) },
			OnRevoked:       func() { metrics.Inc(MetricSessionRevoked) },
			OnExpiredQueued: func() { metrics.Inc(MetricSessionExpiredQueued) },
			OnSwept: func(n int64) {
				if n > 0 {
					metrics.Add(MetricSessionSwept, uint64(n))
				}
			},
		}),
	)

	sink := b.auditSink
	if sink == nil {
		if w, ok := b.store.(LoginLogWriter); ok {
			sink = NewStoreAuditSink(w, logger)
		}
	}
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	b.built = true

	return &Engine{
		config:   cfg,
		store:    b.store,
		cache:    tier,
		keys:     tier.Keys(),
		sessions: sessions,
		lockout:  lockout,
		signups:  signups,
		hasher:   hasher,
		routes:   table,
		metrics:  metrics,
		audit:    dispatcher,
		logger:   logger.With("component", "engine"),
		now:      now,
	}, nil
}
