// Package metrics provides production implementations of the cache's
// Metrics interface: Prometheus counters for cache lifecycle events and a
// DDSketch-based latency tracker for operation timings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus counts cache lifecycle events with Prometheus counters.
// It implements types.Metrics.
type Prometheus struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	expired   prometheus.Counter
	refreshes prometheus.Counter
	drops     prometheus.Counter
}

// NewPrometheus creates the counters and registers them with reg.
// namespace prefixes every metric name (e.g. "shoal").
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	m := &Prometheus{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Reads served from memory.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Reads that did not find a live entry.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries removed by the eviction policy to make space.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expired_total",
			Help:      "Entries removed because their TTL elapsed.",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refreshes_total",
			Help:      "Background refresh-ahead reloads.",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writeback_drops_total",
			Help:      "Write-back operations discarded because the queue was full.",
		}),
	}

	reg.MustRegister(m.hits, m.misses, m.evictions, m.expired, m.refreshes, m.drops)
	return m
}

func (m *Prometheus) Hit()      { m.hits.Inc() }
func (m *Prometheus) Miss()     { m.misses.Inc() }
func (m *Prometheus) Eviction() { m.evictions.Inc() }
func (m *Prometheus) Expire()   { m.expired.Inc() }
func (m *Prometheus) Refresh()  { m.refreshes.Inc() }
func (m *Prometheus) Drop()     { m.drops.Inc() }
