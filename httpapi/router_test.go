package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/directive"
	"github.com/MrEthical07/taroAuth/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type apiTest struct {
	router http.Handler
	engine *taroAuth.Engine
	mr     *miniredis.Miniredis
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st, err := store.Open(context.Background(), store.Config{
		Driver:    store.DriverSQLite,
		DSN:       ":memory:",
		SeedAdmin: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := taroAuth.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := taroAuth.New().WithConfig(cfg).WithRedis(rdb).WithStore(st).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &apiTest{router: NewRouter(NewHandler(engine)), engine: engine, mr: mr}
}

func (a *apiTest) do(t *testing.T, method, path string, body any, mods ...func(*http.Request)) (*httptest.ResponseRecorder, *directive.RawEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(PlatformHeader, "admin")
	for _, m := range mods {
		m(req)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	env, err := directive.ParseEnvelope(rec.Body.Bytes())
	require.NoError(t, err, "body: %s", rec.Body.String())
	return rec, env
}

func (a *apiTest) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_token" {
			return c
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestLoginSetsCookieAndNavigates(t *testing.T) {
	a := newAPITest(t)

	rec, env := a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "password"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 200, env.Code)
	require.NotNil(t, env.Directive)
	require.Equal(t, directive.KindNavigate, env.Directive.Kind)
	require.Equal(t, "/dashboard", env.Directive.Payload["path"])

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, "/", cookie.Path)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, 7*24*3600, cookie.MaxAge)

	var data loginResponse
	require.NoError(t, env.DecodeData(&data))
	require.Equal(t, cookie.Value, data.SessionToken)
	require.Equal(t, "admin", data.User.Username)
	require.True(t, data.HintExpiresAt.Before(data.ExpiresAt))
}

func TestLoginPlatformHeaderSelectsRoute(t *testing.T) {
	a := newAPITest(t)

	_, env := a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "password"},
		func(r *http.Request) { r.Header.Set(PlatformHeader, "weapp") })
	require.NotNil(t, env.Directive)
	require.Equal(t, "/pages/index/index", env.Directive.Payload["path"])
}

func TestLoginFailureNotifiesThenLocks(t *testing.T) {
	a := newAPITest(t)
	body := map[string]string{"username": "admin", "password": "wrong"}

	for i := 0; i < 4; i++ {
		rec, env := a.do(t, http.MethodPost, "/api/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.False(t, env.HasData())
		require.NotNil(t, env.Directive)
		require.Equal(t, directive.KindNotify, env.Directive.Kind)
		require.Equal(t, "error", env.Directive.Payload["level"])
		require.Empty(t, rec.Result().Cookies())
	}

	rec, env := a.do(t, http.MethodPost, "/api/auth/login", body)
	require.Equal(t, http.StatusLocked, rec.Code)
	require.Equal(t, http.StatusLocked, env.Code)
	require.Equal(t, "warning", env.Directive.Payload["level"])
	require.Contains(t, env.Directive.Payload["text"], "15 minutes")

	rec, _ = a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "password"})
	require.Equal(t, http.StatusLocked, rec.Code)
}

func TestCurrentWithoutCookieIsNullData(t *testing.T) {
	a := newAPITest(t)
	cookie := a.login(t, "admin", "password")

	rec, env := a.do(t, http.MethodGet, "/api/auth/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 200, env.Code)
	require.Equal(t, "null", string(env.Data))
	require.Nil(t, env.Directive)

	rec, env = a.do(t, http.MethodGet, "/api/auth/current", nil, withBearer("not-a-real-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, env.HasData())

	rec, env = a.do(t, http.MethodGet, "/api/auth/current", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, directive.KindMergeState, env.Directive.Kind)
	require.Equal(t, UserStore, env.Directive.Payload["store"])

	var u taroAuth.User
	require.NoError(t, env.DecodeData(&u))
	require.Equal(t, "admin", u.Username)
}

func TestStatusAndCheckAreSoft(t *testing.T) {
	a := newAPITest(t)

	rec, env := a.do(t, http.MethodGet, "/api/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, env.HasData())

	rec, env = a.do(t, http.MethodGet, "/api/auth/check", nil, withBearer("not-a-real-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "false", string(env.Data))

	cookie := a.login(t, "admin", "password")
	_, env = a.do(t, http.MethodGet, "/api/auth/check", nil, withBearer(cookie.Value))
	require.Equal(t, "true", string(env.Data))

	_, env = a.do(t, http.MethodGet, "/api/auth/status", nil, withCookie(cookie))
	require.True(t, env.HasData())
}

func TestLogoutClearsStateAndIsIdempotent(t *testing.T) {
	a := newAPITest(t)
	cookie := a.login(t, "admin", "password")

	for i := 0; i < 2; i++ {
		rec, env := a.do(t, http.MethodPost, "/api/auth/logout", nil, withCookie(cookie))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, directive.KindClearState, env.Directive.Kind)
		require.Equal(t, UserStore, env.Directive.Payload["store"])

		cleared := rec.Result().Cookies()
		require.Len(t, cleared, 1)
		require.Equal(t, -1, cleared[0].MaxAge)
	}

	rec, env := a.do(t, http.MethodGet, "/api/auth/current", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, env.HasData())

	rec, _ = a.do(t, http.MethodPut, "/api/auth/profile", map[string]string{"full_name": "x"}, withCookie(cookie))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterNavigatesToLogin(t *testing.T) {
	a := newAPITest(t)
	req := taroAuth.RegisterRequest{Username: "Alice", Password: "secret1", ConfirmPassword: "secret1"}

	rec, env := a.do(t, http.MethodPost, "/api/auth/register", req)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	require.Equal(t, "/login", env.Directive.Payload["path"])

	rec, env = a.do(t, http.MethodPost, "/api/auth/register", req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Nil(t, env.Directive)

	rec, _ = a.do(t, http.MethodPost, "/api/auth/register",
		taroAuth.RegisterRequest{Username: "bob", Password: "secret1", ConfirmPassword: "secret2"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	a.login(t, "alice", "secret1")
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	a := newAPITest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGuestAndProfileUpdate(t *testing.T) {
	a := newAPITest(t)

	rec, env := a.do(t, http.MethodPost, "/api/auth/guest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var data loginResponse
	require.NoError(t, env.DecodeData(&data))
	require.True(t, data.User.IsGuest)

	name := "Guest Person"
	rec, env = a.do(t, http.MethodPut, "/api/auth/profile", taroAuth.ProfilePatch{FullName: &name}, withBearer(data.SessionToken))
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	require.Equal(t, directive.KindMergeState, env.Directive.Kind)
	patch, ok := env.Directive.Payload["patch"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, name, patch["full_name"])
}

func TestUserDataLifecycle(t *testing.T) {
	a := newAPITest(t)
	cookie := a.login(t, "admin", "password")

	rec, env := a.do(t, http.MethodPost, "/api/user-data", taroAuth.UserDataInput{Title: "note", Content: "body"}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	require.Equal(t, directive.KindNotify, env.Directive.Kind)
	var created taroAuth.UserData
	require.NoError(t, env.DecodeData(&created))

	_, env = a.do(t, http.MethodGet, "/api/user-data", nil, withCookie(cookie))
	var items []taroAuth.UserData
	require.NoError(t, env.DecodeData(&items))
	require.Len(t, items, 1)

	rec, _ = a.do(t, http.MethodPut, "/api/user-data/"+created.ID, taroAuth.UserDataInput{Title: ""}, withCookie(cookie))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, http.MethodDelete, "/api/user-data/"+created.ID, nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/api/user-data/"+created.ID, nil, withCookie(cookie))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/api/user-data", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountActivityRoutes(t *testing.T) {
	a := newAPITest(t)

	rec, _ := a.do(t, http.MethodGet, "/api/auth/sessions", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = a.do(t, http.MethodGet, "/api/auth/login-history", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "wrong"})
	older := a.login(t, "admin", "password")
	current := a.login(t, "admin", "password")

	rec, env := a.do(t, http.MethodGet, "/api/auth/sessions", nil, withCookie(current))
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []taroAuth.ActiveSession
	require.NoError(t, env.DecodeData(&sessions))
	require.Len(t, sessions, 2)
	require.NotContains(t, rec.Body.String(), current.Value, "tokens must not be listed")
	var flagged int
	for _, s := range sessions {
		if s.Current {
			flagged++
		}
	}
	require.Equal(t, 1, flagged)

	rec, _ = a.do(t, http.MethodPost, "/api/auth/logout", nil, withCookie(older))
	require.Equal(t, http.StatusOK, rec.Code)
	_, env = a.do(t, http.MethodGet, "/api/auth/sessions", nil, withCookie(current))
	require.NoError(t, env.DecodeData(&sessions))
	require.Len(t, sessions, 1)
	require.True(t, sessions[0].Current)

	// Login rows are written by the audit dispatcher in the background.
	var attempts []taroAuth.LoginAttempt
	require.Eventually(t, func() bool {
		_, env := a.do(t, http.MethodGet, "/api/auth/login-history", nil, withCookie(current))
		attempts = nil
		return env.DecodeData(&attempts) == nil && len(attempts) == 3
	}, 2*time.Second, 10*time.Millisecond)
	require.False(t, attempts[len(attempts)-1].Success)

	_, env = a.do(t, http.MethodGet, "/api/auth/login-history?limit=1", nil, withCookie(current))
	require.NoError(t, env.DecodeData(&attempts))
	require.Len(t, attempts, 1)
}

func TestCacheRoutesAreAdminOnly(t *testing.T) {
	a := newAPITest(t)

	_, env := a.do(t, http.MethodPost, "/api/auth/guest", nil)
	var guest loginResponse
	require.NoError(t, env.DecodeData(&guest))

	rec, _ := a.do(t, http.MethodGet, "/api/cache/health", nil, withBearer(guest.SessionToken))
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin := a.login(t, "admin", "password")
	rec, env = a.do(t, http.MethodGet, "/api/cache/health", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	var health taroAuth.CacheHealth
	require.NoError(t, env.DecodeData(&health))
	require.True(t, health.Healthy)

	rec, _ = a.do(t, http.MethodPost, "/api/cache/cleanup", map[string]string{"category": "bogus"}, withCookie(admin))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/api/cache/invalidate", map[string]string{"user_id": guest.User.ID}, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheOutageIsServiceUnavailableOnlyForAdminRoutes(t *testing.T) {
	a := newAPITest(t)
	admin := a.login(t, "admin", "password")

	a.mr.SetError("LOADING redis is down")
	defer a.mr.SetError("")

	rec, _ := a.do(t, http.MethodPost, "/api/cache/cleanup", map[string]string{"category": "user"}, withCookie(admin))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/api/cache/invalidate", map[string]string{"user_id": "u-missing"}, withCookie(admin))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, env := a.do(t, http.MethodGet, "/api/auth/current", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.HasData())
}

func TestRouteCommandErrorIsCountedAndExported(t *testing.T) {
	a := newAPITest(t)

	rec, _ := a.do(t, http.MethodPost, "/api/metrics/route-command-error",
		directive.ErrorReport{Kind: "Navigate", Error: "page not found", Platform: "h5"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/api/metrics/route-command-error", directive.ErrorReport{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	out := httptest.NewRecorder()
	a.router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
	require.Contains(t, out.Body.String(), "taroauth_route_command_error_total 1")
}

func TestHealthzAndRequestID(t *testing.T) {
	a := newAPITest(t)

	rec, env := a.do(t, http.MethodGet, "/healthz", nil, func(r *http.Request) { r.Header.Set("X-Request-Id", "req-1") })
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", env.Message)
	require.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
}
