package taroAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/taroAuth/cache"
	"github.com/MrEthical07/taroAuth/internal"
	internalaudit "github.com/MrEthical07/taroAuth/internal/audit"
	"github.com/MrEthical07/taroAuth/internal/limiters"
	"github.com/MrEthical07/taroAuth/internal/rate"
	"github.com/MrEthical07/taroAuth/password"
	"github.com/MrEthical07/taroAuth/routes"
	"github.com/MrEthical07/taroAuth/session"
	"github.com/MrEthical07/taroAuth/store"
	"golang.org/x/sync/singleflight"
)

// IdentityStore is the durable store the Engine is built on. *store.Store implements it.
type IdentityStore interface {
	session.Store

	FindUserByID(ctx context.Context, id string) (*store.User, error)
	FindUserByUsername(ctx context.Context, username string) (*store.User, error)
	CreateUser(ctx context.Context, u *store.User) error
	UpdateUser(ctx context.Context, id string, fields map[string]any) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	ListUserData(ctx context.Context, userID string) ([]store.UserData, error)
	GetUserData(ctx context.Context, userID, id string) (*store.UserData, error)
	CreateUserData(ctx context.Context, rec *store.UserData) error
	UpdateUserData(ctx context.Context, userID, id, title, content string) (*store.UserData, error)
	DeleteUserData(ctx context.Context, userID, id string) error

	ListSessionsByUser(ctx context.Context, userID string) ([]store.Session, error)
	RecentLoginLogs(ctx context.Context, username string, limit int) ([]store.LoginLog, error)
}

// Engine orchestrates login, sessions, profiles and user data over the cache
// tier and the identity store. Create it with New().Build().
//
// All methods are safe for concurrent use.
type Engine struct {
	config   Config
	store    IdentityStore
	cache    *cache.Tier
	keys     cache.Keys
	sessions *session.Manager
	lockout  *limiters.LockoutLimiter
	signups  *rate.Limiter
	hasher   *password.Hasher
	routes   *routes.Table
	metrics  *Metrics
	audit    *internalaudit.Dispatcher
	logger   *slog.Logger
	now      func() time.Time

	users  singleflight.Group
	closed atomic.Bool
}

// Close drains the audit dispatcher and the expiry queue. It is idempotent.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.sessions.Close()
	e.audit.Close()
}

// Config returns the configuration the Engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

// Sessions exposes the session manager for background sweeping.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Routes returns the platform route table.
func (e *Engine) Routes() *routes.Table {
	return e.routes
}

// AuditDropped returns how many audit events were dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// ExpiryQueueDropped returns how many expired sessions were not queued for deletion.
func (e *Engine) ExpiryQueueDropped() uint64 {
	if e == nil || e.sessions == nil {
		return 0
	}
	return e.sessions.ExpiryQueueDropped()
}

// MetricsSnapshot returns a copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

// NormalizeUsername trims and lowercases a username. Lookups, the lockout
// counter and uniqueness all use the normalized form.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

/*
====================================
LOGIN / LOGOUT
====================================
*/

// Login verifies credentials and issues a session.
//
// The lockout gate runs first, so a locked account is refused even with the
// correct password. Each failed attempt increments the counter; the attempt
// whose own increment reaches the threshold already gets *LockedError.
// Unknown usernames, wrong passwords and inactive accounts all surface as
// ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, username, pass string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	name := NormalizeUsername(username)
	if name == "" || pass == "" {
		e.metrics.Inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	if d := e.lockout.Check(ctx, name); d.Locked {
		e.metrics.Inc(MetricLoginLocked)
		e.emitAudit(ctx, internalaudit.Event{EventType: AuditLoginLocked, Username: name, Reason: "account_locked"})
		return nil, &LockedError{RetryAfter: d.RetryAfter}
	}

	u, err := e.userByUsername(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, e.loginFailed(ctx, name, "", "unknown_user")
	}
	if err != nil {
		return nil, err
	}

	ok, verr := e.hasher.Verify(pass, u.PasswordHash)
	if verr != nil {
		e.logger.WarnContext(ctx, "password verify error",
			"operation", "login",
			"user_id", u.ID,
			"error", verr,
		)
	}
	if !ok {
		return nil, e.loginFailed(ctx, name, u.ID, "bad_password")
	}
	if !u.IsActive {
		return nil, e.loginFailed(ctx, name, u.ID, "inactive")
	}

	if err := e.lockout.Clear(ctx, name); err != nil {
		e.logger.WarnContext(ctx, "lockout clear failed", "operation", "login", "username", name, "error", err)
	}

	previousLogin := u.LastLoginAt
	now := e.now().UTC()
	e.recordLogin(ctx, u, pass, now)

	res, err := e.startSession(ctx, &u.User, previousLogin, now)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, internalaudit.Event{
		EventType: AuditLoginSuccess,
		UserID:    u.ID,
		Username:  name,
		SessionID: res.Session.ID,
		Success:   true,
	})
	e.logger.InfoContext(ctx, "login succeeded",
		"operation", "login",
		"outcome", "success",
		"user_id", u.ID,
		"session", internal.Fingerprint(res.Session.Token),
	)
	return res, nil
}

func (e *Engine) loginFailed(ctx context.Context, name, userID, reason string) error {
	e.metrics.Inc(MetricLoginFailure)

	d, err := e.lockout.RecordFailure(ctx, name)
	if err != nil {
		// Fail open: a cache outage must not turn into a login error.
		e.logger.WarnContext(ctx, "lockout counter unavailable",
			"operation", "login",
			"username", name,
			"error", err,
		)
	}

	event := internalaudit.Event{
		EventType: AuditLoginFailure,
		UserID:    userID,
		Username:  name,
		Reason:    reason,
	}
	if d.Locked {
		e.metrics.Inc(MetricLoginLocked)
		event.EventType = AuditLoginLocked
		e.emitAudit(ctx, event)
		e.logger.WarnContext(ctx, "account locked",
			"operation", "login",
			"outcome", "locked",
			"username", name,
			"failures", d.Count,
		)
		return &LockedError{RetryAfter: d.RetryAfter}
	}

	e.emitAudit(ctx, event)
	return ErrInvalidCredentials
}

// recordLogin stamps last_login_at and upgrades legacy hashes. Both are
// bookkeeping: failures are logged and the login proceeds.
func (e *Engine) recordLogin(ctx context.Context, u *cachedUser, pass string, now time.Time) {
	if err := e.store.TouchLastLogin(ctx, u.ID, now); err != nil {
		e.logger.WarnContext(ctx, "last login update failed", "operation", "login", "user_id", u.ID, "error", err)
	}
	u.LastLoginAt = &now

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsRehash(u.PasswordHash) {
		if hash, err := e.hasher.Hash(pass); err == nil {
			if err := e.store.UpdateUser(ctx, u.ID, map[string]any{"password_hash": hash}); err != nil {
				e.logger.WarnContext(ctx, "password rehash failed", "operation", "login", "user_id", u.ID, "error", err)
			}
		}
	}

	e.invalidateUser(ctx, u.ID)
}

func (e *Engine) startSession(ctx context.Context, u *User, previousLogin *time.Time, now time.Time) (*LoginResult, error) {
	s, err := e.sessions.Create(ctx, session.CreateParams{
		UserID:    u.ID,
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	})
	if err != nil {
		return nil, sessionError(err)
	}

	hint := now.Add(e.config.Session.BrowserHint)
	if e.config.Session.BrowserHint <= 0 || hint.After(s.ExpiresAt) {
		hint = s.ExpiresAt
	}

	return &LoginResult{
		User:          *u,
		Session:       s,
		Flags:         accountFlags(u, previousLogin, now),
		Redirect:      e.ResolveRoute(ctx, routes.KeyHome),
		HintExpiresAt: hint,
	}, nil
}

// Logout revokes token. Unknown or already revoked tokens succeed.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.sessions.Revoke(ctx, token); err != nil {
		return sessionError(err)
	}
	e.metrics.Inc(MetricLogout)
	if token != "" {
		e.emitAudit(ctx, internalaudit.Event{EventType: AuditLogout, Success: true})
	}
	return nil
}

// Authenticate resolves token to its live session and user. Expired, unknown
// and malformed tokens, and sessions of deactivated users, all yield ErrSessionInvalid.
func (e *Engine) Authenticate(ctx context.Context, token string) (*session.Session, *User, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	s, err := e.sessions.Validate(ctx, token)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	if err != nil {
		return nil, nil, sessionError(err)
	}

	u, err := e.userByID(ctx, s.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, nil, err
	}
	if !u.IsActive {
		return nil, nil, ErrSessionInvalid
	}

	e.sessions.Touch(s)
	out := u.User
	return s, &out, nil
}

func sessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrInvalid):
		return ErrSessionInvalid
	case errors.Is(err, session.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

/*
====================================
REGISTRATION
====================================
*/

// Register creates an active, non-admin account. It does not log the user in.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.Registration.Enabled {
		return nil, fmt.Errorf("%w: registration disabled", ErrRegistrationInvalid)
	}

	name := NormalizeUsername(req.Username)
	if err := e.validateRegistration(name, req); err != nil {
		return nil, err
	}
	if err := e.throttleSignup(ctx, "register"); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistrationInvalid, err)
	}

	rec := &store.User{
		Username:     name,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := e.store.CreateUser(ctx, rec); err != nil {
		if errors.Is(err, store.ErrConflict) {
			e.metrics.Inc(MetricRegistrationDuplicate)
			return nil, ErrUsernameTaken
		}
		return nil, e.storeError(ctx, "register", err)
	}

	// A cached negative or stale mapping for this name must not outlive the insert.
	e.cache.Invalidate(ctx, e.keys.UsernameToID(name))

	e.metrics.Inc(MetricRegistrationSuccess)
	e.emitAudit(ctx, internalaudit.Event{EventType: AuditRegister, UserID: rec.ID, Username: name, Success: true})
	u := userFromRecord(rec).User
	return &u, nil
}

func (e *Engine) validateRegistration(name string, req RegisterRequest) error {
	rc := e.config.Registration
	n := utf8.RuneCountInString(name)
	if n < rc.UsernameMinLength || n > rc.UsernameMaxLength {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrRegistrationInvalid, rc.UsernameMinLength, rc.UsernameMaxLength)
	}
	if strings.HasPrefix(name, "guest_") {
		return fmt.Errorf("%w: username prefix is reserved", ErrRegistrationInvalid)
	}
	for _, r := range name {
		if !(r == '_' || r == '-' || r == '.' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9')) {
			return fmt.Errorf("%w: username may only contain letters, digits, '_', '-' and '.'", ErrRegistrationInvalid)
		}
	}
	p := utf8.RuneCountInString(req.Password)
	if p < rc.PasswordMinLength || p > rc.PasswordMaxLength {
		return fmt.Errorf("%w: password must be %d-%d characters", ErrRegistrationInvalid, rc.PasswordMinLength, rc.PasswordMaxLength)
	}
	if req.Password != req.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrRegistrationInvalid)
	}
	if email := strings.TrimSpace(req.Email); email != "" && !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email", ErrRegistrationInvalid)
	}
	return nil
}

// throttleSignup counts one account creation against the caller's IP. A
// Redis failure lets the request through.
func (e *Engine) throttleSignup(ctx context.Context, scope string) error {
	ip := clientIPFromContext(ctx)
	if ip == "" {
		return nil
	}
	err := e.signups.Allow(ctx, e.keys.RateLimit(scope, ip))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metrics.Inc(MetricSignupThrottled)
		e.logger.WarnContext(ctx, "signup throttled", "operation", scope, "ip", ip)
		return ErrRateLimited
	default:
		e.metrics.Inc(MetricCacheError)
		e.logger.WarnContext(ctx, "signup throttle unavailable", "operation", scope, "error", err)
		return nil
	}
}

// GuestLogin creates a throwaway guest account and logs it in.
func (e *Engine) GuestLogin(ctx context.Context) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.Registration.GuestEnabled {
		return nil, ErrForbidden
	}
	if err := e.throttleSignup(ctx, "guest"); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	var rec *store.User
	for attempt := 0; attempt < 3; attempt++ {
		name, err := internal.NewGuestUsername()
		if err != nil {
			return nil, fmt.Errorf("generate guest username: %w", err)
		}
		rec = &store.User{
			Username:    name,
			FullName:    "Guest",
			IsActive:    true,
			IsGuest:     true,
			LastLoginAt: &now,
		}
		err = e.store.CreateUser(ctx, rec)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, e.storeError(ctx, "guest_login", err)
		}
		rec = nil
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: guest username collision", ErrStoreUnavailable)
	}

	u := userFromRecord(rec).User
	res, err := e.startSession(ctx, &u, nil, now)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricGuestLogin)
	e.emitAudit(ctx, internalaudit.Event{
		EventType: AuditGuestLogin,
		UserID:    u.ID,
		Username:  u.Username,
		SessionID: res.Session.ID,
		Success:   true,
	})
	return res, nil
}

/*
====================================
PROFILE
====================================
*/

// GetUser returns the user snapshot, served from cache when possible.
func (e *Engine) GetUser(ctx context.Context, id string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	u, err := e.userByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := u.User
	return &out, nil
}

// UpdateProfile applies patch and invalidates the user snapshot before
// returning, so the next read observes the change. The username mapping is kept.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if patch.empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	fields := make(map[string]any, 3)
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email != "" && !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
		}
		fields["email"] = email
	}
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if utf8.RuneCountInString(name) > 100 {
			return nil, fmt.Errorf("%w: full name too long", ErrInvalidInput)
		}
		fields["full_name"] = name
	}
	if patch.AvatarURL != nil {
		fields["avatar_url"] = strings.TrimSpace(*patch.AvatarURL)
	}

	if err := e.store.UpdateUser(ctx, userID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, e.storeError(ctx, "update_profile", err)
	}
	e.invalidateUser(ctx, userID)

	e.metrics.Inc(MetricProfileUpdated)
	e.emitAudit(ctx, internalaudit.Event{EventType: AuditProfileUpdate, UserID: userID, Success: true})
	return e.GetUser(ctx, userID)
}

/*
====================================
USER READ-THROUGH
====================================
*/

func (e *Engine) userByID(ctx context.Context, id string) (*cachedUser, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	key := e.keys.UserByID(id)

	var cu cachedUser
	if e.cache.Get(ctx, key, &cu) && cu.ID == id {
		return &cu, nil
	}

	v, err, _ := e.users.Do(id, func() (any, error) {
		fence := e.cache.Fence(key)
		rec, err := e.store.FindUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		u := userFromRecord(rec)
		e.cache.SetFenced(ctx, key, u, e.cache.TTLs().User, fence)
		return u, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, e.storeError(ctx, "get_user", err)
	}
	out := *v.(*cachedUser)
	return &out, nil
}

func (e *Engine) userByUsername(ctx context.Context, name string) (*cachedUser, error) {
	mapKey := e.keys.UsernameToID(name)

	var id string
	if e.cache.Get(ctx, mapKey, &id) && id != "" {
		u, err := e.userByID(ctx, id)
		if err == nil && u.Username == name {
			return u, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		e.cache.Delete(ctx, mapKey)
	}

	fences := e.cache.Fences()
	rec, err := e.store.FindUserByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, e.storeError(ctx, "get_user_by_username", err)
	}
	u := userFromRecord(rec)
	ttl := e.cache.TTLs().User
	e.cache.Set(ctx, mapKey, rec.ID, ttl)
	key := e.keys.UserByID(rec.ID)
	e.cache.SetFenced(ctx, key, u, ttl, fences.Of(key))
	return u, nil
}

// invalidateUser drops the profile snapshot and fences out fills that read
// the store before the write. The username mapping survives because
// usernames never change.
func (e *Engine) invalidateUser(ctx context.Context, userID string) {
	e.users.Forget(userID)
	e.cache.Invalidate(ctx, e.keys.UserByID(userID))
}

/*
====================================
HELPERS
====================================
*/

// ResolveRoute maps a route key to the path for the caller's platform.
// Unknown keys resolve to "/".
func (e *Engine) ResolveRoute(ctx context.Context, key string) string {
	path, err := e.routes.Resolve(key, PlatformFromContext(ctx))
	if err != nil {
		e.logger.WarnContext(ctx, "route resolve failed", "route", key, "error", err)
		return "/"
	}
	return path
}

// DirectiveEmitted counts a directive attached to a response by the transport.
func (e *Engine) DirectiveEmitted() {
	if e != nil {
		e.metrics.Inc(MetricDirectiveEmitted)
	}
}

func (e *Engine) storeError(ctx context.Context, op string, err error) error {
	e.logger.ErrorContext(ctx, "identity store failure",
		"operation", op,
		"outcome", "error",
		"error", err,
	)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) emitAudit(ctx context.Context, event internalaudit.Event) {
	if e.audit == nil {
		return
	}
	event.Timestamp = e.now().UTC()
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = userAgentFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}
