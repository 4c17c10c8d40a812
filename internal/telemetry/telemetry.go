// Package telemetry defines the gateway's Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of inbound HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "Histogram of inbound HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
		},
		[]string{"method", "route"},
	)

	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_dispatch_total",
			Help: "Total outbound provider dispatches, labeled by service and outcome.",
		},
		[]string{"service", "outcome"},
	)

	captchaSolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_captcha_solves_total",
			Help: "Total challenge solve attempts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	relayBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_relay_bytes_total",
			Help: "Total media bytes streamed through the relay.",
		},
	)

	combineJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_combine_jobs_total",
			Help: "Total media combination jobs, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	diagnosticEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_diagnostic_events_total",
			Help: "Total diagnostic events funneled to the sink, labeled by kind.",
		},
		[]string{"kind"},
	)
)

// ObserveHTTPRequest records one inbound request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// CountDispatch records one outbound dispatch outcome.
func CountDispatch(service, outcome string) {
	dispatchTotal.WithLabelValues(service, outcome).Inc()
}

// CountCaptchaSolve records one challenge solve attempt.
func CountCaptchaSolve(outcome string) {
	captchaSolvesTotal.WithLabelValues(outcome).Inc()
}

// AddRelayBytes accumulates streamed relay bytes.
func AddRelayBytes(n int64) {
	if n > 0 {
		relayBytesTotal.Add(float64(n))
	}
}

// CountCombineJob records one combination job outcome.
func CountCombineJob(outcome string) {
	combineJobsTotal.WithLabelValues(outcome).Inc()
}

// CountDiagnostic records one diagnostic event by kind.
func CountDiagnostic(kind string) {
	diagnosticEventsTotal.WithLabelValues(kind).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}
