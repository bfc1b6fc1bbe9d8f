// Package stats implements the Statistics Adapter from spec.md §4.6: a
// per-cycle scope that forwards stage timings (via the embedded
// tracing.Scope), row counts, and parse-failure counts to an external
// metrics sink, and records the snapshot size on publish.
package stats

import "github.com/IvanBrykalov/pgcache/tracing"

// Metrics is the counter/gauge contract a concrete sink (e.g. stats/prom)
// implements. All methods must be safe for concurrent use, since a
// manual Refresh and the periodic updater could in principle report to
// the same Metrics instance from different goroutines (never the same
// Scope, since cycles are serialized per instance, but one Metrics sink
// may be shared across several cache instances).
type Metrics interface {
	// DocumentsRead adds n to the total rows observed this cycle.
	DocumentsRead(n int)
	// DocumentsParseFailures adds n to the per-row failure count.
	DocumentsParseFailures(n int)
	// Finish reports a completed, published cycle with the new
	// snapshot's size.
	Finish(size int)
	// FinishNoChanges reports a completed cycle that made no changes
	// and therefore published nothing.
	FinishNoChanges()
}

// noopMetrics discards everything; used when a cache is constructed
// without a Metrics sink.
type noopMetrics struct{}

func (noopMetrics) DocumentsRead(int)         {}
func (noopMetrics) DocumentsParseFailures(int) {}
func (noopMetrics) Finish(int)                 {}
func (noopMetrics) FinishNoChanges()           {}

// Scope is the per-cycle object passed into the Update Controller: it
// carries the OpenTelemetry-backed stage timer (tracing.Scope) and
// forwards row-count events to the configured Metrics sink.
type Scope struct {
	*tracing.Scope
	metrics Metrics
}

// NewScope wraps a tracing.Scope with a Metrics sink. A nil metrics
// argument is replaced with a no-op sink.
func NewScope(ts *tracing.Scope, metrics Metrics) *Scope {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Scope{Scope: ts, metrics: metrics}
}

// DocumentsRead reports n additional rows observed this cycle.
func (s *Scope) DocumentsRead(n int) { s.metrics.DocumentsRead(n) }

// DocumentsParseFailures reports n additional per-row parse failures.
func (s *Scope) DocumentsParseFailures(n int) { s.metrics.DocumentsParseFailures(n) }

// Finish reports a completed cycle that published a snapshot of size.
func (s *Scope) Finish(size int) { s.metrics.Finish(size) }

// FinishNoChanges reports a completed cycle that published nothing.
func (s *Scope) FinishNoChanges() { s.metrics.FinishNoChanges() }
