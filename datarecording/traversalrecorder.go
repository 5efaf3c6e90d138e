package datarecording

import (
	"sync"

	"github.com/sarchlab/viewperf/span"
)

// The tables written by a TraversalRecorder.
const (
	TraversalTable = "traversals"
	SpanTable      = "spans"
)

// TraversalEntry is one row of the traversals table.
type TraversalEntry struct {
	ID         int64
	Thread     int64
	Status     string
	RootView   string
	StartNS    int64
	DurationNS int64
	SpanCount  int64
	Anomalies  int64
	Detail     string
}

// SpanEntry is one row of the spans table. Spans are numbered in pre-order
// within their traversal; the root has index 0 and parent -1.
type SpanEntry struct {
	TraversalID  int64
	SpanIndex    int64
	ParentIndex  int64
	Depth        int64
	Kind         string
	ViewHandle   int64
	ViewClass    string
	ViewName     string
	StartNS      int64
	DurationNS   int64
	SelfNS       int64
	Unterminated bool
	DepthClamped bool
	Mismatched   bool
}

// TraversalRecorder is a sink that stores every traversal and its spans
// through a DataRecorder.
type TraversalRecorder struct {
	lock     sync.Mutex
	recorder DataRecorder
}

// NewTraversalRecorder creates the tables of the recorder and returns a sink
// that fills them.
func NewTraversalRecorder(recorder DataRecorder) *TraversalRecorder {
	recorder.CreateTable(TraversalTable, TraversalEntry{})
	recorder.CreateTable(SpanTable, SpanEntry{})

	return &TraversalRecorder{recorder: recorder}
}

// OnTraversalComplete records the traversal.
func (r *TraversalRecorder) OnTraversalComplete(t *span.Traversal) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.recorder.InsertData(TraversalTable, TraversalEntry{
		ID:         int64(t.ID),
		Thread:     int64(t.Thread),
		Status:     t.Status.String(),
		RootView:   t.RootView().String(),
		StartNS:    t.Root.Start.UnixNano(),
		DurationNS: int64(t.Duration()),
		SpanCount:  int64(t.Root.Count()),
		Anomalies:  int64(t.Anomalies.Total()),
		Detail:     t.Anomalies.String(),
	})

	origin := t.Root.Start
	parents := make([]int64, 0, 16)
	index := int64(0)

	t.Walk(func(s *span.Span, depth int) bool {
		parents = parents[:depth]

		parent := int64(-1)
		if depth > 0 {
			parent = parents[depth-1]
		}

		r.recorder.InsertData(SpanTable, SpanEntry{
			TraversalID:  int64(t.ID),
			SpanIndex:    index,
			ParentIndex:  parent,
			Depth:        int64(depth),
			Kind:         s.Kind.String(),
			ViewHandle:   int64(s.View.Handle),
			ViewClass:    s.View.Class,
			ViewName:     s.View.Name,
			StartNS:      int64(s.Start.Sub(origin)),
			DurationNS:   int64(s.Duration()),
			SelfNS:       int64(s.SelfDuration()),
			Unterminated: s.Flags.Has(span.FlagUnterminated),
			DepthClamped: s.Flags.Has(span.FlagDepthClamped),
			Mismatched:   s.Flags.Has(span.FlagStackMismatch),
		})

		parents = append(parents, index)
		index++

		return true
	})
}

// Flush writes the buffered traversals to the database.
func (r *TraversalRecorder) Flush() {
	r.recorder.Flush()
}

// Close flushes the buffered traversals and closes the database.
func (r *TraversalRecorder) Close() error {
	return r.recorder.Close()
}
