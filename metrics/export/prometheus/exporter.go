package prometheus

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/metrics/export/internaldefs"
)

// MetricsSource is the read side of an engine. *fleetAuth.Engine implements it.
type MetricsSource interface {
	MetricsSnapshot() fleetAuth.MetricsSnapshot
	AuditDropped() uint64
	NotificationsDropped() uint64
}

type counterDesc struct {
	id   fleetAuth.MetricID
	desc *prom.Desc
}

type histogramDesc struct {
	id   fleetAuth.MetricID
	desc *prom.Desc
}

// Collector is a prom.Collector over a MetricsSource.
type Collector struct {
	source       MetricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prom.Desc
	notifyDrop   *prom.Desc
}

var _ prom.Collector = (*Collector)(nil)

// NewCollector returns a collector reading source on every scrape.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prom.NewDesc("fleetauth_audit_dropped_total",
			"Audit events dropped due to dispatcher backpressure.", nil, nil),
		notifyDrop: prom.NewDesc("fleetauth_notify_queue_dropped_total",
			"Notifications dropped by the dispatcher queue.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	ch <- c.auditDropped
	ch <- c.notifyDrop
}

// Collect reports nothing while the engine has metrics disabled.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return
	}

	for _, d := range c.counters {
		ch <- prom.MustNewConstMetric(d.desc, prom.CounterValue, float64(snapshot.Counters[d.id]))
	}
	for _, d := range c.histograms {
		raw, ok := snapshot.Histograms[d.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, le := range internaldefs.HistogramUpperBounds {
			buckets[le] = cumulative[i]
		}
		// The engine keeps bucket counts only; the sum is not tracked.
		ch <- prom.MustNewConstHistogram(d.desc, cumulative[len(cumulative)-1], 0, buckets)
	}
	ch <- prom.MustNewConstMetric(c.auditDropped, prom.CounterValue, float64(c.source.AuditDropped()))
	ch <- prom.MustNewConstMetric(c.notifyDrop, prom.CounterValue, float64(c.source.NotificationsDropped()))
}

// Handler serves source in the Prometheus exposition format from a private registry.
func Handler(source MetricsSource) http.Handler {
	reg := prom.NewRegistry()
	reg.MustRegister(NewCollector(source))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
