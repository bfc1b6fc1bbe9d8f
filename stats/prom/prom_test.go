package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAdapterRecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "pgcache", "widgets", nil)

	a.DocumentsRead(10)
	a.DocumentsParseFailures(2)
	a.Finish(8)
	a.FinishNoChanges()

	if got := testutil.ToFloat64(a.documentsRead); got != 10 {
		t.Errorf("documents_read_total = %v, want 10", got)
	}
	if got := testutil.ToFloat64(a.documentsParseFailures); got != 2 {
		t.Errorf("documents_parse_failures_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(a.publishedCycles); got != 1 {
		t.Errorf("published_cycles_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(a.noChangeCycles); got != 1 {
		t.Errorf("no_change_cycles_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(a.snapshotSize); got != 8 {
		t.Errorf("snapshot_size = %v, want 8", got)
	}
}
