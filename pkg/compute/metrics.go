package compute

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the compute service. A nil
// *Metrics records nothing.
type Metrics struct {
	// Counter for orchestrated operations by outcome
	operationsTotal *prometheus.CounterVec

	// Histogram for end-to-end operation latency
	operationDuration *prometheus.HistogramVec

	// Histogram for time spent awaiting control-plane tasks
	taskWaitDuration *prometheus.HistogramVec

	// Counter for polling iterations of the awaiters
	pollIterationsTotal *prometheus.CounterVec

	// Counter for container deletes retried after a conflicting state
	deleteConflictRetriesTotal prometheus.Counter

	// Counter for best-effort undeploy outcomes
	undeployOutcomesTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vcompute_operations_total",
				Help: "Total number of compute operations by outcome",
			},
			[]string{"operation", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vcompute_operation_duration_seconds",
				Help:    "Time taken by compute operations including all awaited tasks",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"operation"},
		),
		taskWaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vcompute_task_wait_duration_seconds",
				Help:    "Time spent waiting for control-plane tasks to finish",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"operation", "result"},
		),
		pollIterationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vcompute_poll_iterations_total",
				Help: "Total number of polling iterations while awaiting tasks and idle objects",
			},
			[]string{"kind"},
		),
		deleteConflictRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vcompute_delete_conflict_retries_total",
				Help: "Total number of vApp deletes retried because of a conflicting state",
			},
		),
		undeployOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vcompute_undeploy_outcomes_total",
				Help: "Total number of best-effort vApp undeploys by outcome",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.operationsTotal,
			m.operationDuration,
			m.taskWaitDuration,
			m.pollIterationsTotal,
			m.deleteConflictRetriesTotal,
			m.undeployOutcomesTotal,
		)
	}
	return m
}

// RecordOperation records the outcome and duration of an operation
func (m *Metrics) RecordOperation(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operationsTotal.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObservePoll implements tasks.Recorder
func (m *Metrics) ObservePoll(kind string) {
	if m == nil {
		return
	}
	m.pollIterationsTotal.WithLabelValues(kind).Inc()
}

// ObserveTask implements tasks.Recorder
func (m *Metrics) ObserveTask(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.taskWaitDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}

// RecordDeleteConflictRetry counts a delete retried after a conflicting state
func (m *Metrics) RecordDeleteConflictRetry() {
	if m == nil {
		return
	}
	m.deleteConflictRetriesTotal.Inc()
}

// RecordUndeploy counts a best-effort undeploy outcome
func (m *Metrics) RecordUndeploy(outcome UndeployOutcome) {
	if m == nil {
		return
	}
	m.undeployOutcomesTotal.WithLabelValues(outcome.String()).Inc()
}
