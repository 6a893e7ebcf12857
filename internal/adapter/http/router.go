package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/boardbalance/internal/adapter/http/handler"
	"github.com/iho/boardbalance/internal/adapter/http/middleware"
	"github.com/iho/boardbalance/internal/infrastructure/auth"
	"github.com/iho/boardbalance/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	WebhookHandler   *handler.WebhookHandler
	ReconcileHandler *handler.ReconcileHandler
	RollupHandler    *handler.RollupHandler
	RunHandler       *handler.RunHandler
	HealthHandler    *handler.HealthHandler

	// IdempotencyStore enables Idempotency-Key handling on the API when set.
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	// WebhookVerifier enables signature checks on webhook deliveries when set.
	WebhookVerifier *auth.WebhookVerifier
	RateLimiter     *middleware.RateLimiter
	// Registry is served on /metrics and receives the HTTP metrics.
	Registry *prometheus.Registry
	Logger   zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(cfg.Registry).Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.WebhookVerifier != nil {
			r.Use(middleware.WebhookSignature(cfg.WebhookVerifier, cfg.Logger))
		}
		r.Post("/webhook", cfg.WebhookHandler.Handle)
		r.Post("/webhook/rollup", cfg.RollupHandler.HandleWebhook)
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		r.Post("/boards/{boardID}/items/{itemID}/reconcile", cfg.ReconcileHandler.Reconcile)
		r.Post("/rollups", cfg.RollupHandler.Create)
		r.Get("/runs", cfg.RunHandler.List)
	})

	return r
}
