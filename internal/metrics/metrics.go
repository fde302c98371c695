// Package metrics exposes Prometheus collectors for the vts3a worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vts3a_jobs_total",
			Help: "Total number of conversion jobs processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	jobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vts3a_job_duration_seconds",
			Help:    "Histogram of end-to-end job durations, labeled by outcome.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800},
		},
		[]string{"outcome"},
	)

	rejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vts3a_rejected_payloads_total",
			Help: "Total number of rejected job payloads, labeled by ingress and failure kind.",
		},
		[]string{"ingress", "kind"},
	)

	toolDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vts3a_tool_duration_seconds",
			Help:    "Histogram of external tool invocations, labeled by tool and status.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"tool", "status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vts3a_upload_bytes_total",
			Help: "Total number of audio bytes uploaded.",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vts3a_active_workers",
			Help: "Number of workers currently processing a job.",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vts3a_queue_depth",
			Help: "Number of accepted HTTP jobs waiting for a worker.",
		},
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
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob records a finished job.
func ObserveJob(outcome string, duration time.Duration) {
	jobsTotal.WithLabelValues(outcome).Inc()
	jobDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveRejected counts a payload that failed validation.
func ObserveRejected(ingress, kind string) {
	rejectedTotal.WithLabelValues(ingress, kind).Inc()
}

// ObserveTool records one external tool call. err == nil counts as success.
func ObserveTool(tool string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	toolDurationSeconds.WithLabelValues(tool, status).Observe(duration.Seconds())
}

// AddUploadBytes adds to the uploaded byte counter. Unknown sizes are skipped.
func AddUploadBytes(n int64) {
	if n > 0 {
		uploadBytesTotal.Add(float64(n))
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// SetQueueDepth sets the pending-job gauge.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
