// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeInvalid   = "invalid"
	OutcomeBusy      = "busy"
)

var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentgen_generations_total",
			Help: "Total number of generation attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contentgen_generation_duration_seconds",
			Help:    "Duration of generation calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"kind"},
	)

	GeneratedWords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentgen_generated_words_total",
			Help: "Total whitespace-delimited words of generated text by template",
		},
		[]string{"template"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentgen_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contentgen_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveGeneration records one finished attempt. Duration is ignored for
// attempts that never reached the provider.
func ObserveGeneration(kind, outcome string, d time.Duration) {
	GenerationsTotal.WithLabelValues(kind, outcome).Inc()
	if outcome == OutcomeSucceeded || outcome == OutcomeFailed {
		GenerationDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
