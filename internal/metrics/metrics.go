// Package metrics exposes Prometheus collectors for the chat pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatmemo"

// LatencyBuckets covers fast rule replies up to slow completions (seconds).
var LatencyBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60}

var (
	// TurnsTotal counts chat turns by outcome (ok, not_found, completion_error, timeout, error).
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total chat turns by outcome",
		},
		[]string{"outcome"},
	)

	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Replies generated by engine mode",
		},
		[]string{"mode"},
	)

	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_seconds",
			Help:      "Completion service latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"model", "status"},
	)

	FactsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_extracted_total",
			Help:      "Personal facts extracted from user messages",
		},
		[]string{"key"},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Session exports by format",
		},
		[]string{"format"},
	)

	AnalyticsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_dropped_total",
			Help:      "Analytics events dropped because the queue was full or the sink failed",
		},
	)
)

func RecordTurn(outcome string) {
	TurnsTotal.WithLabelValues(outcome).Inc()
}

func RecordReply(mode string) {
	RepliesTotal.WithLabelValues(mode).Inc()
}

func RecordCompletion(model, status string, elapsed time.Duration) {
	CompletionLatency.WithLabelValues(model, status).Observe(elapsed.Seconds())
}

func RecordFacts(facts map[string]string) {
	for key := range facts {
		FactsExtracted.WithLabelValues(key).Inc()
	}
}

func RecordExport(format string) {
	ExportsTotal.WithLabelValues(format).Inc()
}
