package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/directive"
	"github.com/MrEthical07/taroAuth/session"
	"github.com/bytedance/sonic"
)

// DefaultCookieName is the session cookie read when Options.CookieName is empty.
const DefaultCookieName = "session_token"

type identityContextKey struct{}

type identity struct {
	session *session.Session
	user    *taroAuth.User
}

// Authenticator resolves a session token. *taroAuth.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Session, *taroAuth.User, error)
}

// Options configures the guards.
type Options struct {
	CookieName string
	// OnReject writes the rejection response. err is ErrSessionInvalid,
	// ErrForbidden or a store failure. Defaults to a JSON envelope.
	OnReject func(w http.ResponseWriter, r *http.Request, err error)
}

func (o Options) cookieName() string {
	if o.CookieName == "" {
		return DefaultCookieName
	}
	return o.CookieName
}

func (o Options) reject(w http.ResponseWriter, r *http.Request, err error) {
	if o.OnReject != nil {
		o.OnReject(w, r, err)
		return
	}
	code, msg := http.StatusUnauthorized, "unauthorized"
	switch {
	case errors.Is(err, taroAuth.ErrForbidden):
		code, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, taroAuth.ErrStoreUnavailable):
		code, msg = http.StatusInternalServerError, "internal server error"
	}
	body, _ := sonic.Marshal(directive.Fail(code, msg))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// SessionFromContext returns the session attached by Guard or Optional.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	id, ok := ctx.Value(identityContextKey{}).(identity)
	if !ok || id.session == nil {
		return nil, false
	}
	return id.session, true
}

// UserFromContext returns the user attached by Guard or Optional.
func UserFromContext(ctx context.Context) (*taroAuth.User, bool) {
	id, ok := ctx.Value(identityContextKey{}).(identity)
	if !ok || id.user == nil {
		return nil, false
	}
	return id.user, true
}

// Guard rejects requests without a live session and attaches the session and
// user to the request context otherwise.
func Guard(auth Authenticator, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				opts.reject(w, r, taroAuth.ErrSessionInvalid)
				return
			}

			token, ok := TokenFromRequest(r, opts.cookieName())
			if !ok {
				opts.reject(w, r, taroAuth.ErrSessionInvalid)
				return
			}

			s, u, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				opts.reject(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity{session: s, user: u})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional attaches the identity when the request carries a live session and
// passes anonymous requests through. Only a store failure is rejected.
func Optional(auth Authenticator, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := TokenFromRequest(r, opts.cookieName())
			if auth == nil || !ok {
				next.ServeHTTP(w, r)
				return
			}

			s, u, err := auth.Authenticate(r.Context(), token)
			switch {
			case err == nil:
				ctx := context.WithValue(r.Context(), identityContextKey{}, identity{session: s, user: u})
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, taroAuth.ErrSessionInvalid):
				next.ServeHTTP(w, r)
			default:
				opts.reject(w, r, err)
			}
		})
	}
}

// RequireAdmin must run after Guard. It rejects non-admin users with ErrForbidden.
func RequireAdmin(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				opts.reject(w, r, taroAuth.ErrSessionInvalid)
				return
			}
			if !u.IsAdmin {
				opts.reject(w, r, taroAuth.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromRequest reads the session cookie first, then an Authorization: Bearer header.
func TokenFromRequest(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
