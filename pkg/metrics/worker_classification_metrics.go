// Package metrics exposes Prometheus collectors for the classification engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Threads assigned, by the path that produced the assignment.
	ClassifiedThreads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classify_threads_total",
			Help: "Threads assigned to a category, by assignment source",
		},
		[]string{"source"}, // model, item_fallback, batch_fallback, rule_only, overflow, cancelled, default
	)

	// Model batches, by outcome.
	ModelBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classify_batches_total",
			Help: "Model classification batches, by outcome",
		},
		[]string{"outcome"}, // ok, retried_ok, rate_limited, failed
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classify_run_duration_seconds",
			Help:    "Classification run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"strategy"},
	)

	ModelCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_latency_ms",
			Help:    "Text generation call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~25s
		},
		[]string{"format", "status"},
	)

	CategoryOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "category_ops_total",
			Help: "Category registry operations, by result",
		},
		[]string{"op", "result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func IncrementClassified(source string, n int) {
	if n <= 0 {
		return
	}
	ClassifiedThreads.WithLabelValues(source).Add(float64(n))
}

func IncrementBatch(outcome string) {
	ModelBatches.WithLabelValues(outcome).Inc()
}

func RecordRunDuration(strategy string, d time.Duration) {
	RunDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func RecordModelCall(format, status string, d time.Duration) {
	ModelCallLatency.WithLabelValues(format, status).Observe(float64(d.Milliseconds()))
}

func IncrementCategoryOp(op, result string) {
	CategoryOps.WithLabelValues(op, result).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
