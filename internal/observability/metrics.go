package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loopIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orbit_loop_iterations_total",
		Help: "Model-call-then-tool-dispatch cycles executed across all sessions.",
	})

	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orbit_tool_executions_total",
		Help: "Tool invocations by tool name and outcome.",
	}, []string{"tool", "outcome"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orbit_tool_duration_seconds",
		Help:    "Wall-clock duration of tool handler executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	sessionsAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orbit_sessions_aborted_total",
		Help: "Sessions ending in the aborted state, by reason.",
	}, []string{"reason"})

	persistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orbit_persistence_failures_total",
		Help: "Durable store writes that failed and were absorbed in memory.",
	})
)

// RecordIteration counts one loop iteration.
func RecordIteration() {
	loopIterations.Inc()
}

// RecordToolExecution counts one finished tool invocation.
// Outcome is one of succeeded/failed/skipped.
func RecordToolExecution(tool, outcome string, elapsed time.Duration) {
	toolExecutions.WithLabelValues(tool, outcome).Inc()
	toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// RecordAbort counts one aborted session by reason label.
func RecordAbort(reason string) {
	sessionsAborted.WithLabelValues(reason).Inc()
}

// RecordPersistenceFailure counts one absorbed durable-store failure. These
// are non-fatal for the loop but must be visible to operators.
func RecordPersistenceFailure() {
	persistenceFailures.Inc()
}
