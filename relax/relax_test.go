package relax

import (
	"testing"
	"time"
)

func TestComputeIterations(t *testing.T) {
	cases := []struct {
		name    string
		changes int
		elapsed time.Duration
		want    int
	}{
		{"above threshold computes per formula", 1000, 20 * time.Millisecond, 100},
		{"zero changes", 0, 20 * time.Millisecond, 0},
		{"zero elapsed", 1000, 0, 0},
		{"negative changes", -5, 20 * time.Millisecond, 0},
		{"small changes collapse to zero", 1, 20 * time.Millisecond, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeIterations(tc.changes, tc.elapsed); got != tc.want {
				t.Errorf("ComputeIterations(%d, %v) = %d, want %d", tc.changes, tc.elapsed, got, tc.want)
			}
		})
	}
}

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordRelax() { c.n++ }

func TestRelaxerYieldsAtCadence(t *testing.T) {
	rec := &countingRecorder{}
	r := New(3, rec)
	for i := 0; i < 10; i++ {
		r.Relax()
	}
	if rec.n != 3 {
		t.Errorf("recorded %d yields, want 3 (every 3rd of 10 calls)", rec.n)
	}
}

func TestRelaxerDisabledWhenIterationsZero(t *testing.T) {
	rec := &countingRecorder{}
	r := New(0, rec)
	for i := 0; i < 100; i++ {
		r.Relax()
	}
	if rec.n != 0 {
		t.Errorf("recorded %d yields, want 0 when iterations <= 0", rec.n)
	}
}
