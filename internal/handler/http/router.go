package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dungeun/e-market-search/pkg/health"
	"github.com/dungeun/e-market-search/pkg/middleware"
)

// NewRouter assembles the HTTP surface: the search API under /api/v1,
// health probes, and the Prometheus scrape endpoint.
func NewRouter(handler *SearchHandler, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("search"))

	r.Get("/health", healthHandler.LivenessHandler())
	r.Get("/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Get("/", handler.Search)
		r.Get("/autocomplete", handler.Autocomplete)
		r.Get("/popular", handler.PopularQueries)
		r.Get("/stats/daily", handler.DailyStats)
		r.Post("/cache/invalidate", handler.InvalidateCache)
		r.Post("/ranking/rebuild", handler.RebuildRankingIndex)
	})

	return r
}
