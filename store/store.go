package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("store: conflict")
	// ErrUnavailable wraps every other backend failure.
	ErrUnavailable = errors.New("store: unavailable")
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and tunes the relational backend.
type Config struct {
	Driver    string
	DSN       string
	MaxConns  int
	SeedAdmin bool
	Logger    *slog.Logger
}

// Store is the durable Identity Store. All methods are safe for concurrent use.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the configured backend, migrates the schema and optionally
// seeds the default administrator.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "store", "driver", cfg.Driver)

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		// modernc registers itself as "sqlite"; the gorm dialector only borrows
		// the SQL dialect.
		dialector = &sqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: sql db: %v", ErrUnavailable, err)
	}
	if dialector.Name() == DriverSQLite {
		// One connection keeps an in-memory database shared and serialises writes.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxConns)
			sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
		}
		sqlDB.SetConnMaxIdleTime(15 * time.Minute)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}

	s := &Store{db: db, logger: log}
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if cfg.SeedAdmin {
		if err := s.SeedAdmin(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	log.InfoContext(ctx, "identity store ready", "operation", "open", "outcome", "success")
	return s, nil
}

// Migrate creates or updates the four tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&User{}, &Session{}, &LoginLog{}, &UserData{}); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping checks backend reachability.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return wrap(err)
	}
	return wrap(sqlDB.PingContext(ctx))
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
