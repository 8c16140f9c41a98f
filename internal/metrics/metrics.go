// Package metrics exposes Prometheus collectors for the weather harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task and province status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	harvestTasksTotal           *prometheus.CounterVec
	harvestProvincesTotal       *prometheus.CounterVec
	harvestFetchDurationSeconds *prometheus.HistogramVec
	harvestThrottleWaitSeconds  prometheus.Histogram
	harvestPermitsInUse         prometheus.Gauge
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_tasks_total",
				Help: "Total number of detail-page tasks settled, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		harvestProvincesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_provinces_total",
				Help: "Total number of province listing pages crawled, labeled by status.",
			},
			[]string{"status"},
		)

		harvestFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_fetch_duration_seconds",
				Help:    "Histogram of outbound fetch latencies, labeled by page kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"kind"},
		)

		harvestThrottleWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvest_throttle_wait_seconds",
				Help:    "Histogram of time spent in the politeness delay while holding a permit.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		harvestPermitsInUse = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_permits_in_use",
				Help: "Number of detail-page tasks currently holding a permit.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
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

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTask counts one settled detail-page task.
func ObserveTask(rawURL string, status string) {
	Init()
	harvestTasksTotal.WithLabelValues(SanitizeSite(rawURL), status).Inc()
}

// ObserveProvince counts one crawled province listing.
func ObserveProvince(status string) {
	Init()
	harvestProvincesTotal.WithLabelValues(status).Inc()
}

// ObserveFetch records the latency of a listing or detail fetch.
func ObserveFetch(kind string, duration time.Duration) {
	Init()
	harvestFetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveThrottleWait records the duration of a politeness wait.
func ObserveThrottleWait(duration time.Duration) {
	Init()
	harvestThrottleWaitSeconds.Observe(duration.Seconds())
}

// SetPermitsInUse publishes the current permit count.
func SetPermitsInUse(n int64) {
	Init()
	harvestPermitsInUse.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
