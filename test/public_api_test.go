package test

import (
	"context"
	"net/http"
	"testing"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/directive"
	"github.com/MrEthical07/taroAuth/httpapi"
	"github.com/MrEthical07/taroAuth/middleware"
	"github.com/MrEthical07/taroAuth/session"
)

// This test guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = taroAuth.New
	_ = taroAuth.DefaultConfig
	_ = taroAuth.LoadConfig

	var _ *taroAuth.Engine
	var _ taroAuth.Config
	var _ taroAuth.LoginResult
	var _ taroAuth.RegisterRequest
	var _ taroAuth.ProfilePatch
	var _ taroAuth.UserDataInput
	var _ taroAuth.IdentityStore
	var _ taroAuth.AuditSink
	var _ middleware.Authenticator = (*taroAuth.Engine)(nil)

	var _ error = taroAuth.ErrInvalidCredentials
	var _ error = taroAuth.ErrAccountLocked
	var _ error = taroAuth.ErrSessionInvalid
	var _ error = taroAuth.ErrSessionExpired
	var _ error = taroAuth.ErrStoreUnavailable
	var _ error = taroAuth.ErrRateLimited
	var _ error = &taroAuth.LockedError{}

	var _ func(middleware.Authenticator, middleware.Options) func(http.Handler) http.Handler = middleware.Guard
	var _ func(middleware.Authenticator, middleware.Options) func(http.Handler) http.Handler = middleware.Optional
	var _ func(*httpapi.Handler) http.Handler = httpapi.NewRouter

	var _ func(*taroAuth.Engine, context.Context, string, string) (*taroAuth.LoginResult, error) = (*taroAuth.Engine).Login
	var _ func(*taroAuth.Engine, context.Context, string) error = (*taroAuth.Engine).Logout
	var _ func(*taroAuth.Engine, context.Context, string) (*session.Session, *taroAuth.User, error) = (*taroAuth.Engine).Authenticate
	var _ func(*taroAuth.Engine, context.Context) (*taroAuth.LoginResult, error) = (*taroAuth.Engine).GuestLogin
	var _ func(*taroAuth.Engine, context.Context, directive.ErrorReport) = (*taroAuth.Engine).RecordRouteCommandError
	var _ func(*taroAuth.Engine, context.Context, string, string) ([]taroAuth.ActiveSession, error) = (*taroAuth.Engine).ActiveSessions
	var _ func(*taroAuth.Engine, context.Context, string, int) ([]taroAuth.LoginAttempt, error) = (*taroAuth.Engine).LoginHistory
}
