package taroAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/taroAuth/cache"
	"github.com/MrEthical07/taroAuth/password"
	"github.com/MrEthical07/taroAuth/store"
)

// Config is the full Engine and runtime configuration tree.
//
// Config values are resolved once at startup (see [LoadConfig]) and then treated as immutable.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Cache        CacheConfig        `yaml:"cache"`
	Session      SessionConfig      `yaml:"session"`
	Lockout      LockoutConfig      `yaml:"lockout"`
	Password     PasswordConfig     `yaml:"password"`
	Registration RegistrationConfig `yaml:"registration"`
	Audit        AuditConfig        `yaml:"audit"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

/*
====================================
SERVER CONFIG
====================================
*/

// ServerConfig holds process-level settings used by cmd/taroauth-server.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	RedisURL        string        `yaml:"redis_url"`
	LogLevel        string        `yaml:"log_level"`
	RoutesFile      string        `yaml:"routes_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

/*
====================================
DATABASE CONFIG
====================================
*/

// DatabaseConfig selects the identity store backend.
type DatabaseConfig struct {
	Driver    string `yaml:"driver"` // "sqlite" (default) or "postgres"
	DSN       string `yaml:"dsn"`
	MaxConns  int    `yaml:"max_conns"`
	SeedAdmin bool   `yaml:"seed_admin"`
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig holds the key prefix and per-class TTLs of the cache tier.
type CacheConfig struct {
	Prefix     string        `yaml:"prefix"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	UserTTL    time.Duration `yaml:"user_ttl"`
	DataTTL    time.Duration `yaml:"data_ttl"`
	LockoutTTL time.Duration `yaml:"lockout_ttl"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime, the cookie and background upkeep.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// BrowserHint is the UX expiry surfaced to browsers. It never invalidates the session.
	BrowserHint     time.Duration `yaml:"browser_hint"`
	TouchInterval   time.Duration `yaml:"touch_interval"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	ExpiryQueueSize int           `yaml:"expiry_queue_size"`
	CookieName      string        `yaml:"cookie_name"`
	CookieSecure    bool          `yaml:"cookie_secure"`
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the username lockout guard.
type LockoutConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Threshold int           `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters for new hashes.
type PasswordConfig struct {
	Memory      uint32 `yaml:"memory"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
	// UpgradeOnLogin rehashes bcrypt or outdated argon2 hashes after a verified login.
	UpgradeOnLogin bool `yaml:"upgrade_on_login"`
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig controls self-service registration and guest login.
type RegistrationConfig struct {
	Enabled           bool `yaml:"enabled"`
	GuestEnabled      bool `yaml:"guest_enabled"`
	UsernameMinLength int  `yaml:"username_min_length"`
	UsernameMaxLength int  `yaml:"username_max_length"`
	PasswordMinLength int  `yaml:"password_min_length"`
	PasswordMaxLength int  `yaml:"password_max_length"`

	// SignupsPerIPPerHour caps registrations and guest logins per client IP.
	// Zero disables the throttle.
	SignupsPerIPPerHour int `yaml:"signups_per_ip_per_hour"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async login audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
	// JSONLines also writes every audit event to stderr as one JSON object
	// per line. Only the server binary reads it.
	JSONLines bool `yaml:"json_lines"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	ttls := cache.DefaultTTLs()
	pw := password.DefaultConfig()
	return Config{
		Server: ServerConfig{
			HTTPAddr:        ":8000",
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:    store.DriverSQLite,
			DSN:       "file:taroauth.db?_pragma=busy_timeout(5000)",
			MaxConns:  10,
			SeedAdmin: true,
		},
		Cache: CacheConfig{
			Prefix:     cache.DefaultPrefix,
			SessionTTL: ttls.Session,
			UserTTL:    ttls.User,
			DataTTL:    ttls.Data,
			LockoutTTL: ttls.Lockout,
		},
		Session: SessionConfig{
			TTL:             7 * 24 * time.Hour,
			BrowserHint:     8 * time.Hour,
			TouchInterval:   time.Minute,
			SweepInterval:   time.Hour,
			ExpiryQueueSize: 1024,
			CookieName:      "session_token",
		},
		Lockout: LockoutConfig{
			Enabled:   true,
			Threshold: 5,
			Window:    ttls.Lockout,
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			UpgradeOnLogin: true,
		},
		Registration: RegistrationConfig{
			Enabled:             true,
			GuestEnabled:        true,
			UsernameMinLength:   3,
			UsernameMaxLength:   30,
			PasswordMinLength:   password.DefaultMinLength,
			PasswordMaxLength:   30,
			SignupsPerIPPerHour: 20,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the Engine cannot run with.
func (c *Config) Validate() error {
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.BrowserHint < 0 || c.Session.BrowserHint > c.Session.TTL {
		return errors.New("Session BrowserHint must be within [0, TTL]")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("Session SweepInterval must be > 0")
	}
	if c.Session.ExpiryQueueSize <= 0 {
		return errors.New("Session ExpiryQueueSize must be > 0")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName must not be empty")
	}

	if c.Cache.SessionTTL <= 0 || c.Cache.UserTTL <= 0 || c.Cache.DataTTL <= 0 || c.Cache.LockoutTTL <= 0 {
		return errors.New("Cache TTLs must be > 0")
	}
	if strings.ContainsAny(c.Cache.Prefix, " *") {
		return errors.New("Cache Prefix must not contain spaces or wildcards")
	}

	if c.Lockout.Enabled {
		if c.Lockout.Threshold <= 0 {
			return errors.New("Lockout Threshold must be > 0")
		}
		if c.Lockout.Window <= 0 {
			return errors.New("Lockout Window must be > 0")
		}
	}

	if c.Registration.UsernameMinLength <= 0 || c.Registration.UsernameMaxLength < c.Registration.UsernameMinLength {
		return errors.New("Registration username bounds are invalid")
	}
	if c.Registration.PasswordMinLength <= 0 || c.Registration.PasswordMaxLength < c.Registration.PasswordMinLength {
		return errors.New("Registration password bounds are invalid")
	}
	if c.Registration.SignupsPerIPPerHour < 0 {
		return errors.New("Registration.SignupsPerIPPerHour must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	switch c.Database.Driver {
	case "", store.DriverSQLite, store.DriverPostgres:
	default:
		return errors.New("Database Driver must be sqlite or postgres")
	}

	return nil
}

func (c Config) passwordConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MinLength:        c.Registration.PasswordMinLength,
		MaxPasswordBytes: password.DefaultMaxPasswordBytes,
	}
}

func (c Config) cacheConfig() cache.Config {
	return cache.Config{
		Prefix: c.Cache.Prefix,
		TTLs: cache.TTLs{
			Session: c.Cache.SessionTTL,
			User:    c.Cache.UserTTL,
			Data:    c.Cache.DataTTL,
			Lockout: c.Cache.LockoutTTL,
		},
	}
}
