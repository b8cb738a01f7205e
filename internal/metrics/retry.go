package metrics

import "github.com/prometheus/client_golang/prometheus"

// RetryMetrics tracks the resilience retry loop: attempts, outcomes,
// wall-clock duration, and the backoff delays actually slept.
//
// Labels:
//   - operation: the retried operation (the client uses "client_dispatch")
//   - outcome: "success", "failure", or "cancelled"
//   - error_kind: the coarse error class that triggered the retry
//     ("cancelled", "timeout", "network", "other"), or "none"
type RetryMetrics struct {
	AttemptsTotal      *prometheus.CounterVec
	DurationSeconds    *prometheus.HistogramVec
	BackoffSeconds     *prometheus.HistogramVec
	FinalAttemptsTotal *prometheus.HistogramVec
}

func newRetryMetrics(namespace string, reg *prometheus.Registry) *RetryMetrics {
	m := &RetryMetrics{
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Total retry attempts by operation, outcome, and error kind.",
			},
			[]string{"operation", "outcome", "error_kind"},
		),
		DurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "duration_seconds",
				Help:      "Duration of a retried operation from first attempt to completion.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
			},
			[]string{"operation", "outcome"},
		),
		BackoffSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "backoff_seconds",
				Help:      "Backoff delay actually slept before a retry attempt.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
			},
			[]string{"operation"},
		),
		FinalAttemptsTotal: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "final_attempts",
				Help:      "Number of attempts made until final success or failure.",
				Buckets:   []float64{1, 2, 3, 4, 5, 10},
			},
			[]string{"operation", "outcome"},
		),
	}
	reg.MustRegister(m.AttemptsTotal, m.DurationSeconds, m.BackoffSeconds, m.FinalAttemptsTotal)
	return m
}

// RecordAttempt records a single attempt's outcome and wall-clock duration.
func (m *RetryMetrics) RecordAttempt(operation, outcome, errorKind string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(operation, outcome, errorKind).Inc()
	m.DurationSeconds.WithLabelValues(operation, outcome).Observe(durationSeconds)
}

// RecordBackoff records the delay slept before a retry attempt.
func (m *RetryMetrics) RecordBackoff(operation string, delaySeconds float64) {
	if m == nil {
		return
	}
	m.BackoffSeconds.WithLabelValues(operation).Observe(delaySeconds)
}

// RecordFinalAttempt records how many attempts a completed operation took.
func (m *RetryMetrics) RecordFinalAttempt(operation, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.FinalAttemptsTotal.WithLabelValues(operation, outcome).Observe(float64(attempts))
}
