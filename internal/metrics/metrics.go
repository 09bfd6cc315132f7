// Package metrics exposes Prometheus collectors for the collector service.
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
	collectorRunsTotal            *prometheus.CounterVec
	collectorArticlesTotal        *prometheus.CounterVec
	collectorFetchRequestsTotal   *prometheus.CounterVec
	collectorRateLimitWaitSeconds *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		collectorRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_runs_total",
				Help: "Total number of collection runs, labeled by outcome.",
			},
			[]string{"status"},
		)

		collectorArticlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_articles_total",
				Help: "Total number of articles persisted, labeled by section.",
			},
			[]string{"section"},
		)

		collectorFetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_fetch_requests_total",
				Help: "Total number of search API requests, labeled by status code.",
			},
			[]string{"code"},
		)

		collectorRateLimitWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_rate_limit_wait_seconds",
				Help:    "Histogram of waits imposed by search API rate limiting.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30},
			},
			[]string{"query"},
		)

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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun increments the run counter for the given outcome.
func ObserveRun(status string) {
	collectorRunsTotal.WithLabelValues(status).Inc()
}

// ObserveArticles adds persisted article counts for a section.
func ObserveArticles(section string, count int) {
	if count > 0 {
		collectorArticlesTotal.WithLabelValues(section).Add(float64(count))
	}
}

// ObserveFetchRequest increments the search API request counter.
func ObserveFetchRequest(code int) {
	collectorFetchRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveRateLimitWait records a wait imposed by a 429 response.
func ObserveRateLimitWait(query string, d time.Duration) {
	collectorRateLimitWaitSeconds.WithLabelValues(query).Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
