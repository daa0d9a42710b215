package taroAuth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for any username/password mismatch. The
	// message never says which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountLocked is matched by every *LockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrSessionInvalid covers unknown, revoked, malformed and expired tokens.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionExpired is the same value as ErrSessionInvalid: callers cannot
	// tell an expired session from an absent one.
	ErrSessionExpired = ErrSessionInvalid
	// ErrStoreUnavailable means the identity store could not answer. It is fatal
	// for the current request.
	ErrStoreUnavailable = errors.New("identity store unavailable")
	// ErrUsernameTaken is returned by Register for a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrRegistrationInvalid is returned by Register when the request fails validation.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrAccountInactive marks a deactivated account. Login reports it as
	// ErrInvalidCredentials.
	ErrAccountInactive = errors.New("account inactive")
	// ErrForbidden is returned when an authenticated caller lacks a role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned for missing or foreign records.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for malformed profile or user-data payloads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCacheUnavailable is returned only by InvalidateUserCache and
	// CleanupCache, and maps to 503 on the admin cache routes. Request paths
	// degrade to the store when Redis fails and never see it.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrUnknownCacheCategory is returned by CleanupCache for a category outside the key namespace.
	ErrUnknownCacheCategory = errors.New("unknown cache category")
	// ErrRateLimited is returned when a client IP exceeded the signup throttle.
	ErrRateLimited = errors.New("too many requests")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not ready")
)

// LockedError reports a lockout together with how long the caller should wait.
// errors.Is(err, ErrAccountLocked) holds for every LockedError.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	if e == nil || e.RetryAfter <= 0 {
		return ErrAccountLocked.Error()
	}
	return fmt.Sprintf("%s: retry after %s", ErrAccountLocked, e.RetryAfter.Round(time.Second))
}

// Is makes LockedError match ErrAccountLocked.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RetryMinutes rounds the retry-after duration up to whole minutes, never below one.
func (e *LockedError) RetryMinutes() int {
	if e == nil || e.RetryAfter <= 0 {
		return 1
	}
	m := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}
