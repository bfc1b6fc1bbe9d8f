// Package prom implements stats.Metrics on top of
// github.com/prometheus/client_golang, the same way the teacher's
// metrics/prom.Adapter exports cache.Metrics: a small set of counters
// and gauges, registered once at construction.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/pgcache/stats"
)

// Adapter implements stats.Metrics. Safe for concurrent use; every
// Prometheus metric type is goroutine-safe.
type Adapter struct {
	documentsRead          prometheus.Counter
	documentsParseFailures prometheus.Counter
	publishedCycles        prometheus.Counter
	noChangeCycles         prometheus.Counter
	snapshotSize           prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to every metric (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		documentsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "documents_read_total",
			Help:        "Rows observed across all shards during update cycles",
			ConstLabels: constLabels,
		}),
		documentsParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "documents_parse_failures_total",
			Help:        "Rows that failed to parse, convert, or key during update cycles",
			ConstLabels: constLabels,
		}),
		publishedCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "published_cycles_total",
			Help:        "Update cycles that published a new snapshot",
			ConstLabels: constLabels,
		}),
		noChangeCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "no_change_cycles_total",
			Help:        "Update cycles that completed without publishing",
			ConstLabels: constLabels,
		}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "snapshot_size",
			Help:        "Number of entries in the most recently published snapshot",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.documentsRead, a.documentsParseFailures, a.publishedCycles, a.noChangeCycles, a.snapshotSize)
	return a
}

// DocumentsRead implements stats.Metrics.
func (a *Adapter) DocumentsRead(n int) { a.documentsRead.Add(float64(n)) }

// DocumentsParseFailures implements stats.Metrics.
func (a *Adapter) DocumentsParseFailures(n int) { a.documentsParseFailures.Add(float64(n)) }

// Finish implements stats.Metrics.
func (a *Adapter) Finish(size int) {
	a.publishedCycles.Inc()
	a.snapshotSize.Set(float64(size))
}

// FinishNoChanges implements stats.Metrics.
func (a *Adapter) FinishNoChanges() { a.noChangeCycles.Inc() }

// Compile-time check: ensure Adapter implements stats.Metrics.
var _ stats.Metrics = (*Adapter)(nil)
