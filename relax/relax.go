// Package relax implements the adaptive CPU-relaxation hook from
// spec.md §3/§4.4/§9 ("Adaptive relax counter" / "Adaptive relaxation"):
// a measured, not fixed, cadence of cooperative yields during the parse
// stage of a large result set, so a single update cycle does not starve
// co-tenant goroutines.
//
// No library in this corpus wraps scheduler yielding — it is inherently
// stdlib (runtime.Gosched); see DESIGN.md for why this is the one place
// the implementation reaches for the standard library instead of a
// third-party dependency.
package relax

import (
	"runtime"
	"time"
)

// Threshold is the parse-stage elapsed time above which the next cycle's
// relax cadence is recomputed (kCpuRelaxThreshold in the original source).
const Threshold = 10 * time.Millisecond

// Interval is the divisor used by ComputeIterations (kCpuRelaxInterval).
const Interval = 2 * time.Millisecond

// Recorder receives a notification for every cooperative yield, so the
// active update cycle's tracing scope can account for time spent yielding.
type Recorder interface {
	RecordRelax()
}

// ComputeIterations implements the formula from spec.md §3: when the
// parse stage exceeded Threshold, the next cycle should yield every
// `changes / (elapsed / Interval)` rows. Returns 0 (never yield) if
// elapsed or changes is non-positive, mirroring "no yielding below the
// threshold".
func ComputeIterations(changes int, elapsed time.Duration) int {
	if changes <= 0 || elapsed <= 0 {
		return 0
	}
	steps := float64(elapsed) / float64(Interval)
	if steps <= 0 {
		return 0
	}
	n := int(float64(changes) / steps)
	if n <= 0 {
		return 0
	}
	return n
}

// Relaxer yields cooperatively every N calls to Relax, where N is the
// iteration cadence computed by ComputeIterations at the end of the
// previous cycle. A zero-value Relaxer (iterations == 0) never yields.
type Relaxer struct {
	iterations int
	count      int
	rec        Recorder
}

// New returns a Relaxer that yields every `iterations` calls to Relax
// (iterations <= 0 disables yielding) and reports each yield to rec.
func New(iterations int, rec Recorder) *Relaxer {
	return &Relaxer{iterations: iterations, rec: rec}
}

// Relax is called once per row during the parse stage. Every `iterations`
// calls it yields the goroutine to the scheduler and records the yield.
func (r *Relaxer) Relax() {
	if r.iterations <= 0 {
		return
	}
	r.count++
	if r.count%r.iterations != 0 {
		return
	}
	runtime.Gosched()
	if r.rec != nil {
		r.rec.RecordRelax()
	}
}
