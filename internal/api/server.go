// Package api provides the HTTP server for the repository lifecycle API.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/crpaas/repo-custodian/internal/api/v1"
	"github.com/crpaas/repo-custodian/internal/indexer"
	"github.com/crpaas/repo-custodian/internal/service"
)

// ServerOption configures the lifecycle API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
	routeOpts   []v1.RoutesOption
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithInspector wires the OpenGrok deployment inspector. Without it the
// /opengrok endpoints answer 503.
func WithInspector(insp indexer.Inspector) ServerOption {
	return func(cfg *serverConfig) {
		cfg.routeOpts = append(cfg.routeOpts, v1.WithInspector(insp))
	}
}

// WithOpenGrokBaseURL sets the browse URL handed out through /api/v1/config
func WithOpenGrokBaseURL(baseURL string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.routeOpts = append(cfg.routeOpts, v1.WithOpenGrokBaseURL(baseURL))
	}
}

// NewServer creates and configures the HTTP router with the given service and options
func NewServer(svc service.Service, opts ...ServerOption) *chi.Mux {
	// Initialize configuration with defaults
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	// Apply middleware
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	// Mount health check routes directly at root
	r.Mount("/", v1.HealthRouter(svc))

	// Mount the repository lifecycle API
	r.Mount("/api/v1", v1.Router(svc, cfg.routeOpts...))

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
