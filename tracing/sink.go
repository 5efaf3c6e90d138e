package tracing

import "github.com/sarchlab/viewperf/span"

// A Sink receives the traversals sealed by the tracker.
//
// OnTraversalComplete runs synchronously on the thread that sealed the
// traversal, inside the rendering pass being measured, so implementations must
// return quickly. Ownership of the traversal moves to the sink; the tracker
// keeps no reference to it.
type Sink interface {
	OnTraversalComplete(t *span.Traversal)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(t *span.Traversal)

// OnTraversalComplete calls f(t).
func (f SinkFunc) OnTraversalComplete(t *span.Traversal) {
	f(t)
}

type discardSink struct{}

func (discardSink) OnTraversalComplete(_ *span.Traversal) {}
