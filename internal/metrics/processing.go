package metrics

import "github.com/prometheus/client_golang/prometheus"

// ProcessingMetrics tracks the batch pipeline: terminal outcomes per
// target and batch-level timing.
//
// Labels:
//   - result: "blocked", "skipped", "failed_permanent", "failed_transient"
//   - skip_reason: set only when result == "skipped"
type ProcessingMetrics struct {
	TargetsTotal         *prometheus.CounterVec
	BatchDurationSeconds prometheus.Histogram
	BatchSize            prometheus.Histogram
}

func newProcessingMetrics(namespace string, reg *prometheus.Registry) *ProcessingMetrics {
	m := &ProcessingMetrics{
		TargetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "processing",
				Name:      "targets_total",
				Help:      "Targets processed by terminal result and skip reason.",
			},
			[]string{"result", "skip_reason"},
		),
		BatchDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "processing",
				Name:      "batch_duration_seconds",
				Help:      "Wall-clock duration of one processing batch.",
				Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 3600},
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "processing",
				Name:      "batch_size",
				Help:      "Number of targets in one processing batch.",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000},
			},
		),
	}
	reg.MustRegister(m.TargetsTotal, m.BatchDurationSeconds, m.BatchSize)
	return m
}

func (m *ProcessingMetrics) RecordTarget(result, skipReason string) {
	if m == nil {
		return
	}
	m.TargetsTotal.WithLabelValues(result, skipReason).Inc()
}

func (m *ProcessingMetrics) RecordBatch(durationSeconds float64, size int) {
	if m == nil {
		return
	}
	m.BatchDurationSeconds.Observe(durationSeconds)
	m.BatchSize.Observe(float64(size))
}
