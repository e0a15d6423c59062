// Package metrics exposes Prometheus collectors for the capture service.
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

var (
	strategyAttemptsTotal      *prometheus.CounterVec
	strategyDurationSeconds    *prometheus.HistogramVec
	captureOutcomesTotal       *prometheus.CounterVec
	degradationsTotal          *prometheus.CounterVec
	mediaDownloadsTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; every Observe helper calls it.
func Init() {
	once.Do(func() {
		strategyAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capture_strategy_attempts_total",
				Help: "Scraper strategy attempts, labeled by strategy and result.",
			},
			[]string{"strategy", "result"},
		)

		strategyDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capture_strategy_duration_seconds",
				Help:    "Histogram of scraper strategy latencies.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 90},
			},
			[]string{"strategy"},
		)

		captureOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capture_outcomes_total",
				Help: "Processed capture messages, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		degradationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capture_degradations_total",
				Help: "Non-fatal degradations, labeled by kind.",
			},
			[]string{"kind"},
		)

		mediaDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capture_media_downloads_total",
				Help: "Media materialization attempts, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "API requests by method, matched route and status code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "capture_active_workers",
				Help: "Number of workers currently processing a capture.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capture_rate_limit_delays_seconds",
				Help:    "Histogram of per-host media download wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
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
	Init()
	return promhttp.Handler()
}

// ObserveStrategy records one scraper strategy attempt.
func ObserveStrategy(strategy, result string, duration time.Duration) {
	Init()
	strategyAttemptsTotal.WithLabelValues(strategy, result).Inc()
	strategyDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObserveOutcome counts a processed capture by outcome.
func ObserveOutcome(outcome string) {
	Init()
	captureOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDegradation counts a degraded-but-successful step such as a media or categorization fallback.
func ObserveDegradation(kind string) {
	Init()
	degradationsTotal.WithLabelValues(kind).Inc()
}

// ObserveMediaDownload counts one media download by result.
func ObserveMediaDownload(result string) {
	Init()
	mediaDownloadsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}
