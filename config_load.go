package taroAuth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys read by LoadConfig.
const (
	EnvHTTPAddr             = "TAROAUTH_HTTP_ADDR"
	EnvRedisURL             = "REDIS_URL"
	EnvDBDriver             = "DB_DRIVER"
	EnvDBDSN                = "DB_DSN"
	EnvCachePrefix          = "CACHE_PREFIX"
	EnvLockoutThreshold     = "LOCKOUT_THRESHOLD"
	EnvLockoutWindowMinutes = "LOCKOUT_WINDOW_MINUTES"
	EnvSessionTTLHours      = "SESSION_TTL_HOURS"
	EnvSweepIntervalSeconds = "SWEEP_INTERVAL_SECONDS"
	EnvLogLevel             = "LOG_LEVEL"
	EnvRoutesFile           = "ROUTES_FILE"
	EnvSeedAdmin            = "SEED_ADMIN"
	EnvSignupsPerIPPerHour  = "SIGNUPS_PER_IP_PER_HOUR"
	EnvAuditJSONLines       = "AUDIT_JSON_LINES"
)

// LoadConfig resolves configuration in priority order: defaults -> YAML file -> env.
// A missing file is not an error; an unparsable one is. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.HTTPAddr = envOrDefault(EnvHTTPAddr, cfg.Server.HTTPAddr)
	cfg.Server.RedisURL = envOrDefault(EnvRedisURL, cfg.Server.RedisURL)
	cfg.Server.LogLevel = strings.ToLower(envOrDefault(EnvLogLevel, cfg.Server.LogLevel))
	cfg.Server.RoutesFile = envOrDefault(EnvRoutesFile, cfg.Server.RoutesFile)

	cfg.Database.Driver = strings.ToLower(envOrDefault(EnvDBDriver, cfg.Database.Driver))
	cfg.Database.DSN = envOrDefault(EnvDBDSN, cfg.Database.DSN)
	cfg.Database.SeedAdmin = envBool(EnvSeedAdmin, cfg.Database.SeedAdmin)

	cfg.Cache.Prefix = envOrDefault(EnvCachePrefix, cfg.Cache.Prefix)
	cfg.Registration.SignupsPerIPPerHour = envInt(EnvSignupsPerIPPerHour, cfg.Registration.SignupsPerIPPerHour)
	cfg.Audit.JSONLines = envBool(EnvAuditJSONLines, cfg.Audit.JSONLines)

	cfg.Lockout.Threshold = envInt(EnvLockoutThreshold, cfg.Lockout.Threshold)
	if m := envInt(EnvLockoutWindowMinutes, 0); m > 0 {
		cfg.Lockout.Window = time.Duration(m) * time.Minute
		cfg.Cache.LockoutTTL = cfg.Lockout.Window
	}
	if h := envInt(EnvSessionTTLHours, 0); h > 0 {
		cfg.Session.TTL = time.Duration(h) * time.Hour
		cfg.Cache.SessionTTL = cfg.Session.TTL
		if cfg.Session.BrowserHint > cfg.Session.TTL {
			cfg.Session.BrowserHint = cfg.Session.TTL
		}
	}
	if s := envInt(EnvSweepIntervalSeconds, 0); s > 0 {
		cfg.Session.SweepInterval = time.Duration(s) * time.Second
	}
}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
