// Package metrics exposes cache engine statistics as Prometheus
// collectors, added to a prometheus.Registerer by Register. Nothing in
// this module calls Register or reads the configuration's metrics.enabled
// option.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cfk-cache/cfk/pkg/cache"
)

// StatsSource is the subset of *cache.Coordinator that the collector
// depends on, so tests can supply a stub instead of standing up a full
// coordinator.
type StatsSource interface {
	Stats() cache.Stats
}

// Collector implements prometheus.Collector by pulling a fresh
// cache.Stats snapshot from its source on every scrape, rather than
// incrementing counters from inside the coordinator's hot paths.
type Collector struct {
	source StatsSource

	hits              *prometheus.Desc
	misses            *prometheus.Desc
	policyTrackedSize *prometheus.Desc
	policyEntries     *prometheus.Desc
	policyUtilization *prometheus.Desc
	backendEntries    *prometheus.Desc
}

// NewCollector builds a Collector reading from source. Register it
// with a prometheus.Registerer to expose it.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		hits: prometheus.NewDesc(
			"cfk_cache_hits_total", "Total number of cache reads served from local storage.", nil, nil,
		),
		misses: prometheus.NewDesc(
			"cfk_cache_misses_total", "Total number of cache reads that required a backend fetch.", nil, nil,
		),
		policyTrackedSize: prometheus.NewDesc(
			"cfk_policy_tracked_bytes", "Total body size currently tracked by the eviction policy.", nil, nil,
		),
		policyEntries: prometheus.NewDesc(
			"cfk_policy_tracked_entries", "Number of entries currently tracked by the eviction policy.", nil, nil,
		),
		policyUtilization: prometheus.NewDesc(
			"cfk_policy_size_utilization", "Fraction of the size budget currently in use.", nil, nil,
		),
		backendEntries: prometheus.NewDesc(
			"cfk_backend_entries", "Set to 1 for each backend registered with the coordinator.", []string{"backend"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.policyTrackedSize
	ch <- c.policyEntries
	ch <- c.policyUtilization
	ch <- c.backendEntries
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.policyTrackedSize, prometheus.GaugeValue, float64(stats.Policy.TotalSize))
	ch <- prometheus.MustNewConstMetric(c.policyEntries, prometheus.GaugeValue, float64(stats.Policy.EntryCount))
	ch <- prometheus.MustNewConstMetric(c.policyUtilization, prometheus.GaugeValue, stats.Policy.Utilization)

	for backend, count := range stats.Backend {
		ch <- prometheus.MustNewConstMetric(c.backendEntries, prometheus.GaugeValue, float64(count), backend)
	}
}

// Register wraps prometheus.Register, returning the already-registered
// collector's error unchanged if Register is called twice against the
// same registerer, matching client_golang's own idiom.
func Register(registerer prometheus.Registerer, source StatsSource) error {
	return registerer.Register(NewCollector(source))
}
