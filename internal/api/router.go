// Package api provides the HTTP API for SunnySeat.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rthunborg/sunnyseat-sub000/internal/api/handler"
	"github.com/rthunborg/sunnyseat-sub000/internal/api/middleware"
	"github.com/rthunborg/sunnyseat-sub000/internal/cache"
	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
	"github.com/rthunborg/sunnyseat-sub000/internal/precompute"
	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version         string
	BuildTime       string
	Logger          zerolog.Logger
	ServiceName     string
	Metrics         *middleware.Metrics
	ComputeMetrics  *middleware.ComputeMetrics
	ExposureService *exposure.Service
	Scheduler       *precompute.Scheduler
	Venues          venue.Repository
	Cache           *cache.Layered
	ReadinessChecks []handler.ReadinessCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "sunnyseat-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type
	r.Use(middleware.RequireJSON)          // Reject non-JSON request bodies

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ReadinessChecks...)
	exposureHandler := handler.NewExposureHandler(cfg.ExposureService, cfg.Cache, cfg.ComputeMetrics)
	precomputeHandler := handler.NewPrecomputeHandler(cfg.Scheduler, cfg.Venues)
	cacheHandler := handler.NewCacheHandler(cfg.Cache)

	// Rate limit middleware per endpoint category
	strictRateLimit := middleware.RateLimitByIP(middleware.StrictRateLimit)       // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Per-patio exposure queries
		r.Route("/patios/{patioId}", func(r chi.Router) {
			r.With(standardRateLimit).Get("/exposure", exposureHandler.GetExposure)
			r.With(standardRateLimit).Get("/day-events", exposureHandler.DayEvents)

			// Timeline and sun windows walk a whole day of positions
			r.With(expensiveRateLimit).Get("/timeline", exposureHandler.Timeline)
			r.With(expensiveRateLimit).Get("/sun-windows", exposureHandler.SunWindows)
		})

		// Batch queries - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/exposure:batch", exposureHandler.BatchExposure)
		r.With(expensiveRateLimit).Post("/sun-windows:best", exposureHandler.BestWindows)

		// Precomputation management - internal operations
		r.Route("/precompute/schedules", func(r chi.Router) {
			r.Use(strictRateLimit)
			r.Post("/", precomputeHandler.CreateSchedule)
			r.Route("/{scheduleId}", func(r chi.Router) {
				r.Get("/", precomputeHandler.GetSchedule)
				r.Post("/execute", precomputeHandler.Execute)
				r.Get("/integrity", precomputeHandler.Integrity)
			})
		})

		// Cache operations
		r.Route("/cache", func(r chi.Router) {
			r.With(standardRateLimit).Get("/health", cacheHandler.Health)
			r.With(standardRateLimit).Get("/metrics", cacheHandler.Metrics)
			r.With(strictRateLimit).Post("/patios/{patioId}/invalidate", cacheHandler.Invalidate)
		})
	})

	return r
}
