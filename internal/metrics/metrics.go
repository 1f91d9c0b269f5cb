// Package metrics exposes Prometheus collectors for the testimony tracker.
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
	testimonyCount             *prometheus.GaugeVec
	missingNames               prometheus.Gauge
	refreshRunsTotal           *prometheus.CounterVec
	refreshDurationSeconds     *prometheus.HistogramVec
	downloadsTotal             *prometheus.CounterVec
	prunedFilesTotal           prometheus.Counter
	fetchRetriesTotal          prometheus.Counter
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		testimonyCount = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "testimony_count",
				Help: "Testimony submissions on the listing page, labeled by stance (all for the total).",
			},
			[]string{"stance"},
		)

		missingNames = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "testimony_missing_names",
				Help: "Supporters of the comparison bill who have not testified on the tracked bill.",
			},
		)

		refreshRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testimony_refresh_runs_total",
				Help: "Background refresh task runs, labeled by task and outcome.",
			},
			[]string{"task", "status"},
		)

		refreshDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "testimony_refresh_duration_seconds",
				Help:    "Histogram of background refresh task durations, labeled by task.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"task"},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testimony_downloads_total",
				Help: "Testimony document downloads, labeled by outcome.",
			},
			[]string{"status"},
		)

		prunedFilesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "testimony_pruned_files_total",
				Help: "Invalid testimony files removed by the prune task.",
			},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "testimony_fetch_retries_total",
				Help: "Listing page requests retried after a transient network error.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "testimony_rate_limit_delay_seconds",
				Help:    "Time outbound requests spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"host"},
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

// ObserveResults records the latest tallies.
func ObserveResults(total, support, oppose, unknown int) {
	Init()
	testimonyCount.WithLabelValues("all").Set(float64(total))
	testimonyCount.WithLabelValues("support").Set(float64(support))
	testimonyCount.WithLabelValues("oppose").Set(float64(oppose))
	testimonyCount.WithLabelValues("unknown").Set(float64(unknown))
}

// ObserveMissingNames records the length of the missing-name list.
func ObserveMissingNames(n int) {
	Init()
	missingNames.Set(float64(n))
}

// ObserveRefresh records one run of a background task.
func ObserveRefresh(task string, err error, duration time.Duration) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	refreshRunsTotal.WithLabelValues(task, status).Inc()
	refreshDurationSeconds.WithLabelValues(task).Observe(duration.Seconds())
}

// ObserveDownload records one document download attempt.
func ObserveDownload(err error) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	downloadsTotal.WithLabelValues(status).Inc()
}

// ObservePruned adds n removed files to the prune counter.
func ObservePruned(n int) {
	Init()
	prunedFilesTotal.Add(float64(n))
}

// ObserveFetchRetry increments the listing fetch retry counter.
func ObserveFetchRetry() {
	Init()
	fetchRetriesTotal.Inc()
}

// ObserveRateLimitDelay records how long a request waited for a rate limit token.
func ObserveRateLimitDelay(host string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(delay.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
