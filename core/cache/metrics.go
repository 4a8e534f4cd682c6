package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports Store statistics to Prometheus.
type Collector struct {
	store *Store

	entries       *prometheus.Desc
	hits          *prometheus.Desc
	misses        *prometheus.Desc
	evictions     *prometheus.Desc
	invalidations *prometheus.Desc
}

// NewCollector 创建缓存指标采集器
func NewCollector(store *Store, namespace string) *Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "cache", n)
	}
	return &Collector{
		store:         store,
		entries:       prometheus.NewDesc(name("entries"), "Number of entries held by the dataset cache.", nil, nil),
		hits:          prometheus.NewDesc(name("hits_total"), "Cache lookups served from a live entry.", nil, nil),
		misses:        prometheus.NewDesc(name("misses_total"), "Cache lookups that found no live entry.", nil, nil),
		evictions:     prometheus.NewDesc(name("evictions_total"), "Entries removed by cleanup sweeps.", nil, nil),
		invalidations: prometheus.NewDesc(name("invalidations_total"), "Entries removed by tag invalidation.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.invalidations
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Entries))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions))
	ch <- prometheus.MustNewConstMetric(c.invalidations, prometheus.CounterValue, float64(st.Invalidations))
}
