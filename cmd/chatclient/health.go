package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/market-chat/internal/connection"
)

// statsSource is the part of the manager the health endpoint reads.
type statsSource interface {
	Stats() connection.Stats
}

// newRouter serves /health and the Prometheus endpoint.
func newRouter(src statsSource, gatherer prometheus.Gatherer, metricsPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := src.Stats()

		health := struct {
			Status     string           `json:"status"`
			Connection connection.Stats `json:"connection"`
		}{
			Status:     healthStatus(stats),
			Connection: stats,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	r.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// healthStatus is healthy while open, degraded while recovering and
// unhealthy once retries are exhausted or the session has ended.
func healthStatus(s connection.Stats) string {
	switch {
	case s.Exhausted:
		return "unhealthy"
	case s.State == "open":
		return "healthy"
	case s.State == "connecting" || s.Attempt > 0:
		return "degraded"
	default:
		return "unhealthy"
	}
}
