// Package metrics exposes Prometheus collectors for the HTTP surface of the
// scrape service. Orchestration collectors live in the progress Prometheus
// sink.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	submissionsTotal           *prometheus.CounterVec
	submittedTargets           prometheus.Histogram

	once sync.Once
)

// Init registers the collectors. It is safe to call more than once.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_submissions_total",
				Help: "Job submissions, labeled by endpoint and result (accepted, rejected, failed).",
			},
			[]string{"endpoint", "result"},
		)

		submittedTargets = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scrape_submission_targets",
				Help:    "Targets assigned per accepted submission.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSubmission records one submission outcome. assigned is only
// observed for accepted submissions.
func ObserveSubmission(endpoint, result string, assigned int) {
	submissionsTotal.WithLabelValues(endpoint, result).Inc()
	if result == "accepted" {
		submittedTargets.Observe(float64(assigned))
	}
}
