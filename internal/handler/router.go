// Package handler provides the HTTP API of the AIPM identity service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/auth"
	"github.com/prn-tf/aipm-identity/internal/domain"
	"github.com/prn-tf/aipm-identity/internal/metrics"
	"github.com/prn-tf/aipm-identity/internal/service"
)

// HealthCheck reports whether the record store is reachable.
type HealthCheck func(ctx context.Context) error

// Router wires the API handlers behind their route guards.
type Router struct {
	authHandler *AuthHandler
	userHandler *UserHandler
	authService *service.AuthService
	metrics     *metrics.Metrics
	metricsPath string
	cookieName  string
	health      HealthCheck
	logger      zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthService *service.AuthService
	UserService *service.UserService

	// Metrics may be nil. MetricsPath empty disables the metrics endpoint.
	Metrics     *metrics.Metrics
	MetricsPath string

	// CookieName defaults to auth.DefaultCookieName.
	CookieName string

	// Health is optional.
	Health HealthCheck

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	if config.CookieName == "" {
		config.CookieName = auth.DefaultCookieName
	}
	logger := config.Logger.With().Str("component", "router").Logger()

	return &Router{
		authHandler: NewAuthHandler(config.AuthService, config.CookieName, config.Logger),
		userHandler: NewUserHandler(config.UserService, config.Logger),
		authService: config.AuthService,
		metrics:     config.Metrics,
		metricsPath: config.MetricsPath,
		cookieName:  config.CookieName,
		health:      config.Health,
		logger:      logger,
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	// Health check and metrics (no auth)
	r.Get("/health", rt.handleHealth)
	if rt.metricsPath != "" && rt.metrics != nil {
		r.Handle(rt.metricsPath, rt.metrics.Handler())
	}

	requireSession := auth.RequireSession(rt.authService, rt.cookieName)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", rt.authHandler.Login)
			r.Post("/logout", rt.authHandler.Logout)
			r.Get("/status", rt.authHandler.Status)
			r.Post("/guest", rt.authHandler.Guest)
			r.Post("/register", rt.authHandler.Register)
			r.With(requireSession).Get("/sessions", rt.authHandler.Sessions)
		})

		r.With(requireSession, auth.RequireRole(domain.RoleProductManager)).
			Patch("/me/preferences", rt.userHandler.UpdatePreferences)

		r.With(requireSession, auth.RequireRole(domain.RoleAdmin)).
			Get("/admin/users", rt.userHandler.List)
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := rt.health(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// requestLogger logs every request and records its duration.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		rt.metrics.ObserveHTTP(route, r.Method, status, elapsed)

		event := rt.logger.Info()
		if status >= http.StatusInternalServerError {
			event = rt.logger.Error()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("request handled")
	})
}
