package engine

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports engine state as Prometheus gauges. Values are read at
// scrape time; nothing is accumulated between scrapes.
type Collector struct {
	engine *Engine

	stores   *prometheus.Desc
	entries  *prometheus.Desc
	spilled  *prometheus.Desc
	extents  *prometheus.Desc
	reserved *prometheus.Desc
	budget   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector reporting on e.
func NewCollector(e *Engine) *Collector {
	return &Collector{
		engine: e,
		stores: prometheus.NewDesc(
			"spillq_stores",
			"Number of live stores by discipline and size class",
			[]string{"discipline", "size_class"}, nil,
		),
		entries: prometheus.NewDesc(
			"spillq_entries",
			"Number of entries held by live stores, resident or spilled",
			[]string{"discipline"}, nil,
		),
		spilled: prometheus.NewDesc(
			"spillq_spilled_bytes",
			"Bytes currently held on secondary storage",
			nil, nil,
		),
		extents: prometheus.NewDesc(
			"spillq_extents",
			"Number of live spill files",
			nil, nil,
		),
		reserved: prometheus.NewDesc(
			"spillq_memory_reserved_bytes",
			"Bytes of the memory budget granted to resident buffers",
			nil, nil,
		),
		budget: prometheus.NewDesc(
			"spillq_memory_budget_bytes",
			"Configured memory budget",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to the channel.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.stores
	ch <- c.entries
	ch <- c.spilled
	ch <- c.extents
	ch <- c.reserved
	ch <- c.budget
}

// Collect reads the registry and storage manager and sends one sample per
// series.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	type storeKey struct {
		discipline string
		sizeClass  int
	}

	stores := make(map[storeKey]int)
	entries := make(map[string]uint64)
	for _, s := range c.engine.registry.Stats() {
		d := s.Discipline.String()
		stores[storeKey{d, int(s.SizeClass)}]++
		entries[d] += s.Size
	}

	for key, n := range stores {
		ch <- prometheus.MustNewConstMetric(
			c.stores,
			prometheus.GaugeValue,
			float64(n),
			key.discipline,
			strconv.Itoa(key.sizeClass),
		)
	}
	for d, n := range entries {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(n), d)
	}

	m := c.engine.storage
	ch <- prometheus.MustNewConstMetric(c.spilled, prometheus.GaugeValue, float64(m.SpilledBytes()))
	ch <- prometheus.MustNewConstMetric(c.extents, prometheus.GaugeValue, float64(m.Extents()))
	ch <- prometheus.MustNewConstMetric(c.reserved, prometheus.GaugeValue, float64(m.Reserved()))
	ch <- prometheus.MustNewConstMetric(c.budget, prometheus.GaugeValue, float64(m.Budget()))
}
