// Package metrics exports the activity of range lock trees to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/llxisdsh/rangelock"
)

// StatsSource is implemented by *rangelock.Tree.
type StatsSource interface {
	Stats() rangelock.Stats
}

type counter struct {
	desc  *prometheus.Desc
	value func(rangelock.Stats) float64
}

// Collector reads a tree's statistics on every scrape.
type Collector struct {
	src       StatsSource
	counters  []counter
	published *prometheus.Desc
}

// NewCollector returns a collector exporting the statistics of src under
// the given namespace. constLabels distinguish several trees registered in
// the same registry, e.g. {"resource": "wal"}.
func NewCollector(namespace string, src StatsSource, constLabels prometheus.Labels) *Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "rangelock", n)
	}
	newCounter := func(n, help string, value func(rangelock.Stats) float64) counter {
		return counter{
			desc:  prometheus.NewDesc(name(n), help, nil, constLabels),
			value: value,
		}
	}

	return &Collector{
		src: src,
		counters: []counter{
			newCounter("acquired_total", "granted range acquisitions",
				func(s rangelock.Stats) float64 { return float64(s.Acquired) }),
			newCounter("contended_total", "range acquisitions that had to wait",
				func(s rangelock.Stats) float64 { return float64(s.Contended) }),
			newCounter("canceled_total", "range waits abandoned before being granted",
				func(s rangelock.Stats) float64 { return float64(s.Canceled) }),
			newCounter("try_failed_total", "try-acquisitions refused because of a conflict",
				func(s rangelock.Stats) float64 { return float64(s.TryFailed) }),
			newCounter("downgraded_total", "writer to reader downgrades",
				func(s rangelock.Stats) float64 { return float64(s.Downgraded) }),
			newCounter("released_total", "range releases",
				func(s rangelock.Stats) float64 { return float64(s.Released) }),
		},
		published: prometheus.NewDesc(name("published"),
			"ranges currently held or waited for", nil, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.counters {
		ch <- m.desc
	}
	ch <- c.published
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	for _, m := range c.counters {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, m.value(s))
	}
	ch <- prometheus.MustNewConstMetric(c.published, prometheus.GaugeValue, float64(s.Published))
}
