// Package tracing implements the "tracing scope object" spec.md §4.4 and
// §4.6 refer to: named-stage timing collected during one update cycle and
// exported as OpenTelemetry span attributes/events on completion.
//
// It plays the role of the original source's tracing::Span::ScopeTime:
// Reset(stage) closes the previous named stage and opens a new one;
// ElapsedTotal(stage) reports cumulative time spent in a stage so far,
// which the Update Controller uses for the adaptive-relax threshold
// check (spec.md §3, "Adaptive relax counter").
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Scope tracks time spent in named, non-overlapping stages within one
// span. It is not safe for concurrent use: one Scope belongs to exactly
// one update cycle, and cycles are serialized (spec.md §5).
type Scope struct {
	span   trace.Span
	stage  string
	start  time.Time
	totals map[string]time.Duration
	yields int
}

// Start begins a new scope as a child span of the tracer, named name
// (e.g. the policy's cache name). The returned context carries the span
// for any further nested instrumentation.
func Start(ctx context.Context, tracer trace.Tracer, name string) (context.Context, *Scope) {
	ctx, span := tracer.Start(ctx, name)
	return ctx, &Scope{span: span, totals: make(map[string]time.Duration)}
}

// Reset closes the currently open stage (if any) and opens stage. Passing
// an empty string closes the current stage without opening a new one.
func (s *Scope) Reset(stage string) {
	s.closeCurrent()
	s.stage = stage
	if stage != "" {
		s.start = time.Now()
	}
}

// ElapsedTotal returns the cumulative time spent in stage across every
// Reset transition into and out of it so far in this cycle, including any
// time accrued in the currently open stage.
func (s *Scope) ElapsedTotal(stage string) time.Duration {
	total := s.totals[stage]
	if s.stage == stage {
		total += time.Since(s.start)
	}
	return total
}

// RecordRelax records one cooperative-yield event on the span. Called by
// package relax during the parse stage.
func (s *Scope) RecordRelax() {
	s.yields++
	if s.span != nil {
		s.span.AddEvent("cpu_relax")
	}
}

// End closes the current stage, attaches per-stage duration attributes
// and the total yield count to the span, and ends it. Call exactly once
// per update cycle, on every exit path (success, backend error, or
// cancellation) so spans are never leaked.
func (s *Scope) End(err error) {
	s.closeCurrent()
	if s.span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(s.totals)+1)
	for stage, d := range s.totals {
		attrs = append(attrs, attribute.Int64("stage."+stage+"_ms", d.Milliseconds()))
	}
	attrs = append(attrs, attribute.Int("cpu_relax_yields", s.yields))
	s.span.SetAttributes(attrs...)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func (s *Scope) closeCurrent() {
	if s.stage == "" {
		return
	}
	s.totals[s.stage] += time.Since(s.start)
	s.stage = ""
}
