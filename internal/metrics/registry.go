// Package metrics provides the process's Prometheus instrumentation:
// counters and histograms for the retry loop, the API client, the
// cache, and the processing manager, organized as a small per-category
// registry in the shape of the teacher's own metrics registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the central, lazily-initialized holder for this
// process's metric groups. Each Registry owns its own
// *prometheus.Registry so tests can construct independent instances
// without colliding on Prometheus's global default registerer.
type Registry struct {
	namespace string
	reg       *prometheus.Registry

	retryOnce      sync.Once
	retry          *RetryMetrics
	clientOnce     sync.Once
	client         *ClientMetrics
	cacheOnce      sync.Once
	cache          *CacheMetrics
	processingOnce sync.Once
	processing     *ProcessingMetrics
}

// NewRegistry builds a Registry scoped under namespace (e.g.
// "blockctl"). Metric groups are created on first access.
func NewRegistry(namespace string) *Registry {
	return &Registry{namespace: namespace, reg: prometheus.NewRegistry()}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// DefaultRegistry returns the process-wide singleton registry.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry("blockctl")
	})
	return defaultReg
}

// Gatherer exposes the underlying Prometheus registry for a
// /metrics handler, when one is wired up by a caller.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Retry() *RetryMetrics {
	r.retryOnce.Do(func() { r.retry = newRetryMetrics(r.namespace, r.reg) })
	return r.retry
}

func (r *Registry) Client() *ClientMetrics {
	r.clientOnce.Do(func() { r.client = newClientMetrics(r.namespace, r.reg) })
	return r.client
}

func (r *Registry) Cache() *CacheMetrics {
	r.cacheOnce.Do(func() { r.cache = newCacheMetrics(r.namespace, r.reg) })
	return r.cache
}

func (r *Registry) Processing() *ProcessingMetrics {
	r.processingOnce.Do(func() { r.processing = newProcessingMetrics(r.namespace, r.reg) })
	return r.processing
}
