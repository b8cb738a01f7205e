package metrics

import "github.com/prometheus/client_golang/prometheus"

// ClientMetrics tracks the API client: call outcomes, latency, rate-limit
// wait time, and circuit-breaker state transitions.
//
// Labels:
//   - endpoint: "graphql_user_read", "rest_block_create", "rest_verify_credentials"
//   - status: the HTTP status code of a successful call, e.g. "200"
//   - circuit_open_total is labelled by caller account (under "endpoint")
type ClientMetrics struct {
	CallsTotal           *prometheus.CounterVec
	CallDurationSeconds  *prometheus.HistogramVec
	RateLimitWaitSeconds *prometheus.HistogramVec
	CircuitOpenTotal     *prometheus.CounterVec
}

func newClientMetrics(namespace string, reg *prometheus.Registry) *ClientMetrics {
	m := &ClientMetrics{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "calls_total",
				Help:      "API calls by endpoint and outcome status.",
			},
			[]string{"endpoint", "status"},
		),
		CallDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "call_duration_seconds",
				Help:      "API call latency by endpoint.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		RateLimitWaitSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "rate_limit_wait_seconds",
				Help:      "Time spent waiting on the per-endpoint rate limiter before dispatch.",
				Buckets:   []float64{0, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"endpoint"},
		),
		CircuitOpenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "circuit_open_total",
				Help:      "Circuit breaker trips to the open state, by caller account.",
			},
			[]string{"endpoint"},
		),
	}
	reg.MustRegister(m.CallsTotal, m.CallDurationSeconds, m.RateLimitWaitSeconds, m.CircuitOpenTotal)
	return m
}

func (m *ClientMetrics) RecordCall(endpoint, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(endpoint, status).Inc()
	m.CallDurationSeconds.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *ClientMetrics) RecordRateLimitWait(endpoint string, waitSeconds float64) {
	if m == nil {
		return
	}
	m.RateLimitWaitSeconds.WithLabelValues(endpoint).Observe(waitSeconds)
}

func (m *ClientMetrics) RecordCircuitOpen(endpoint string) {
	if m == nil {
		return
	}
	m.CircuitOpenTotal.WithLabelValues(endpoint).Inc()
}
