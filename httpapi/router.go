package httpapi

import (
	"log/slog"
	"net/http"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/metrics/export/prometheus"
	"github.com/MrEthical07/taroAuth/middleware"
	"github.com/go-chi/chi/v5"
)

// Handler is the HTTP adapter over one Engine.
type Handler struct {
	engine  *taroAuth.Engine
	metrics http.Handler
	logger  *slog.Logger
	guard   middleware.Options
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetricsHandler replaces the /metrics handler.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler binds engine. /metrics serves the Prometheus rendering unless
// WithMetricsHandler says otherwise.
func NewHandler(engine *taroAuth.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine:  engine,
		metrics: prometheus.NewPrometheusExporter(engine).Handler(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("module", "http")
	h.guard = middleware.Options{
		CookieName: h.cookieName(),
		OnReject:   h.writeError,
	}
	return h
}

// NewRouter registers every route and the middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)
	r.Use(clientContextMiddleware)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", h.metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/metrics/route-command-error", h.routeCommandError)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.login)
			r.Post("/logout", h.logout)
			r.Post("/register", h.register)
			r.Post("/guest", h.guestLogin)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Optional(h.engine, h.guard))
				r.Get("/current", h.current)
				r.Get("/status", h.status)
				r.Get("/check", h.check)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Guard(h.engine, h.guard))
				r.Put("/profile", h.updateProfile)
				r.Get("/sessions", h.activeSessions)
				r.Get("/login-history", h.loginHistory)
			})
		})

		r.Route("/user-data", func(r chi.Router) {
			r.Use(middleware.Guard(h.engine, h.guard))
			r.Get("/", h.listUserData)
			r.Post("/", h.createUserData)
			r.Get("/{id}", h.getUserData)
			r.Put("/{id}", h.updateUserData)
			r.Delete("/{id}", h.deleteUserData)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Use(middleware.Guard(h.engine, h.guard))
			r.Use(middleware.RequireAdmin(h.guard))
			r.Get("/health", h.cacheHealth)
			r.Post("/invalidate", h.invalidateCache)
			r.Post("/cleanup", h.cleanupCache)
		})
	})

	return r
}

func (h *Handler) cookieName() string {
	if h.engine == nil {
		return middleware.DefaultCookieName
	}
	if name := h.engine.Config().Session.CookieName; name != "" {
		return name
	}
	return middleware.DefaultCookieName
}
