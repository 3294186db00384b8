// Package api provides the REST API server for the attendance bridge.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v0 "github.com/attendkit/punchbridge/internal/api/v0"
	"github.com/attendkit/punchbridge/internal/scheduler"
	"github.com/attendkit/punchbridge/internal/service"
	"github.com/attendkit/punchbridge/internal/telemetry"
)

// ServerOption configures the bridge API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
	metrics     *telemetry.Metrics
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetrics wires the Prometheus instruments and the /metrics endpoint
func WithMetrics(metrics *telemetry.Metrics) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metrics = metrics
	}
}

// NewServer creates and configures the HTTP router with the given
// dependencies and options
func NewServer(svc service.BridgeService, sched scheduler.Scheduler, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Mount("/", v0.HealthRouter())
	r.Mount("/api/v0", v0.Router(svc, sched, cfg.metrics))

	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics.Handler())
	}

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
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}
