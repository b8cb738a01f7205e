package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics tracks the three-tier cache: per-tier hits, misses, and
// the coverage class a lookup resolved to.
//
// Labels:
//   - tier: "lookup", "profile", or "relationship"
type CacheMetrics struct {
	HitsTotal     *prometheus.CounterVec
	MissesTotal   *prometheus.CounterVec
	StaleTotal    *prometheus.CounterVec
	CoverageTotal *prometheus.CounterVec
}

func newCacheMetrics(namespace string, reg *prometheus.Registry) *CacheMetrics {
	m := &CacheMetrics{
		HitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Cache hits by tier.",
			},
			[]string{"tier"},
		),
		MissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Cache misses by tier.",
			},
			[]string{"tier"},
		),
		StaleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "stale_evictions_total",
				Help:      "Entries evicted on read for exceeding their tier TTL.",
			},
			[]string{"tier"},
		),
		CoverageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "coverage_total",
				Help:      "Resolve requests by coverage class (full_hit, partial_hit, miss).",
			},
			[]string{"class"},
		),
	}
	reg.MustRegister(m.HitsTotal, m.MissesTotal, m.StaleTotal, m.CoverageTotal)
	return m
}

func (m *CacheMetrics) RecordHit(tier string) {
	if m == nil {
		return
	}
	m.HitsTotal.WithLabelValues(tier).Inc()
}

func (m *CacheMetrics) RecordMiss(tier string) {
	if m == nil {
		return
	}
	m.MissesTotal.WithLabelValues(tier).Inc()
}

func (m *CacheMetrics) RecordStale(tier string) {
	if m == nil {
		return
	}
	m.StaleTotal.WithLabelValues(tier).Inc()
}

func (m *CacheMetrics) RecordCoverage(class string) {
	if m == nil {
		return
	}
	m.CoverageTotal.WithLabelValues(class).Inc()
}
