// Package metrics exposes Prometheus instrumentation for the API server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TokenRefreshes counts token guard refresh attempts by outcome.
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wrapped_token_refreshes_total",
		Help: "Token refresh attempts made by the token guard.",
	}, []string{"result"})

	// PlaysIngested counts play events written to the listening history.
	PlaysIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wrapped_plays_ingested_total",
		Help: "Play events inserted into the weekly window.",
	})

	// RequestErrors counts handler failures by endpoint and class.
	RequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wrapped_request_errors_total",
		Help: "Request failures mapped at the handler boundary.",
	}, []string{"endpoint", "class"})

	// DuplicatesSuppressed counts requests rejected by the in-memory
	// duplicate-request suppressor.
	DuplicatesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wrapped_duplicate_requests_suppressed_total",
		Help: "Requests rejected as duplicates within the suppression TTL.",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
