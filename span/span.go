// Package span provides the timing tree produced for each traversal of a view
// hierarchy.
//
// A Traversal owns a synthetic root Span. Every Span owns its children, which
// are kept in the order they started. Once a traversal is sealed the tree is
// read-only; consumers walk it, compute durations, and inspect the anomaly
// flags attached while it was built.
package span

import (
	"strings"
	"time"

	"github.com/sarchlab/viewperf/view"
)

// Flags mark the anomalies that affected a span.
type Flags uint8

// The span flags.
const (
	// FlagUnterminated marks a span closed by the tracker rather than by its
	// own end event.
	FlagUnterminated Flags = 1 << iota

	// FlagDepthClamped marks a span whose children were dropped because the
	// span stack was full.
	FlagDepthClamped

	// FlagStackMismatch marks a span closed by an end event that arrived while
	// other spans were still open above it.
	FlagStackMismatch
)

// Has returns true if all the bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// String lists the set flags separated by spaces.
func (f Flags) String() string {
	names := make([]string, 0, 3)

	if f.Has(FlagUnterminated) {
		names = append(names, "unterminated")
	}

	if f.Has(FlagDepthClamped) {
		names = append(names, "depth-clamped")
	}

	if f.Has(FlagStackMismatch) {
		names = append(names, "stack-mismatch")
	}

	return strings.Join(names, " ")
}

// A Span is the execution of one phase for one view, or for the root
// coordinator.
type Span struct {
	View     view.Identity
	Kind     view.StepKind
	Start    time.Time
	End      time.Time
	Children []*Span
	Flags    Flags

	closed bool
}

// New creates an open span.
func New(v view.Identity, kind view.StepKind, start time.Time) *Span {
	return &Span{
		View:  v,
		Kind:  kind,
		Start: start,
	}
}

// IsOpen returns true if the span has not been closed.
func (s *Span) IsOpen() bool {
	return !s.closed
}

// Close sets the end time of the span. A close time before the start time is
// raised to the start time so that the span interval is never negative.
func (s *Span) Close(end time.Time) {
	if end.Before(s.Start) {
		end = s.Start
	}

	s.End = end
	s.closed = true
}

// AddChild appends a child span.
func (s *Span) AddChild(child *Span) {
	s.Children = append(s.Children, child)
}

// Duration returns the time between start and end. Open spans have zero
// duration.
func (s *Span) Duration() time.Duration {
	if s.IsOpen() {
		return 0
	}

	return s.End.Sub(s.Start)
}

// SelfDuration returns the duration of the span that is not covered by its
// children.
func (s *Span) SelfDuration() time.Duration {
	d := s.Duration()

	for _, c := range s.Children {
		d -= c.Duration()
	}

	if d < 0 {
		return 0
	}

	return d
}

// Walk visits the span and its descendants in depth-first pre-order. The root
// of the walk has depth 0. If fn returns false, the children of the visited
// span are skipped.
func (s *Span) Walk(fn func(s *Span, depth int) bool) {
	s.walk(fn, 0)
}

func (s *Span) walk(fn func(s *Span, depth int) bool, depth int) {
	if !fn(s, depth) {
		return
	}

	for _, c := range s.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of spans in the subtree, including s.
func (s *Span) Count() int {
	n := 0

	s.Walk(func(_ *Span, _ int) bool {
		n++
		return true
	})

	return n
}

// AggregateByKind sums the duration of every span in the subtree, including s,
// by kind. Nested spans of the same kind are all added, so the result may
// exceed the wall time of the subtree.
func (s *Span) AggregateByKind() [view.NumStepKinds]time.Duration {
	var totals [view.NumStepKinds]time.Duration

	s.Walk(func(n *Span, _ int) bool {
		totals[n.Kind] += n.Duration()
		return true
	})

	return totals
}

// SumKind returns the summed duration of all the spans of a kind in the
// subtree.
func (s *Span) SumKind(kind view.StepKind) time.Duration {
	return s.AggregateByKind()[kind]
}
