package api

import (
	"net/http"
	"time"

	"stock-analyst/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.HTTP.RequestTimeoutSeconds) * time.Second))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	r.Get("/", h.HandleIndex)
	r.Get("/health", h.HandleHealth)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.HTTP.RateLimitPerMinute > 0 {
			r.Use(RateLimitMiddleware(NewClientRateLimiter(cfg.HTTP.RateLimitPerMinute)))
		}

		r.Route("/stocks", func(r chi.Router) {
			r.Get("/search", h.HandleSearch)
			r.Get("/markets/status", h.HandleMarketStatus)
			r.Post("/batch", h.HandleBatch)
			r.Get("/{symbol}", h.HandleGetStock)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/health", h.HandleAnalysisHealth)
			r.Get("/tokens", h.HandleTokenUsage)
			r.Post("/tokens/reset", h.HandleResetTokenUsage)
			r.Post("/compare", h.HandleCompare)
			r.Post("/portfolio", h.HandlePortfolio)
			r.Post("/clear-cache", h.HandleClearCache)
			r.Get("/{symbol}", h.HandleAnalyzeStock)
		})
	})

	return r
}
