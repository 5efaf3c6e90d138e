// Package tracing turns the begin/end notifications of a rendering pipeline
// into a tree of timed spans per traversal.
//
// Each rendering thread owns a ThreadContext, obtained from the Tracker. The
// ThreadContext keeps a stack of open spans and never reports an error to its
// caller: malformed event sequences are repaired and recorded as anomalies on
// the traversal, or on the ThreadContext when no traversal is open. Sealed
// traversals are handed to a Sink.
package tracing

import (
	"github.com/sarchlab/viewperf/hooking"
	"github.com/sarchlab/viewperf/idgen"
	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/view"
)

// Tracker owns the contexts of all the rendering threads of a process.
type Tracker struct {
	*hooking.HookableBase

	registry       *Registry
	sink           Sink
	timeTeller     TimeTeller
	idGenerator    idgen.Generator
	maxDepth       int
	deliverAborted bool
}

// Registry returns the registry that maps threads to contexts.
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// ContextFor returns the context of the given thread.
func (t *Tracker) ContextFor(thread ThreadID) *ThreadContext {
	return t.registry.ContextFor(thread)
}

// MaxDepth returns the maximum number of open spans per thread, including the
// traversal root.
func (t *Tracker) MaxDepth() int {
	return t.maxDepth
}

// AnomalyTotals returns the anomalies recorded outside of traversals, summed
// over all threads.
func (t *Tracker) AnomalyTotals() span.AnomalyCounts {
	return t.registry.AnomalyTotals()
}

// StartTraversal starts a traversal on the given thread.
func (t *Tracker) StartTraversal(thread ThreadID, root view.Identity) {
	t.ContextFor(thread).StartTraversal(root)
}

// StopTraversal stops the traversal of the given thread.
func (t *Tracker) StopTraversal(thread ThreadID) {
	t.ContextFor(thread).StopTraversal()
}

// BeginViewRootImplStep opens a root coordinator phase on the given thread.
func (t *Tracker) BeginViewRootImplStep(thread ThreadID, kind view.StepKind) {
	t.ContextFor(thread).BeginViewRootImplStep(kind)
}

// EndViewRootImplStep closes a root coordinator phase on the given thread.
func (t *Tracker) EndViewRootImplStep(thread ThreadID, kind view.StepKind) {
	t.ContextFor(thread).EndViewRootImplStep(kind)
}

// BeginViewStep opens a view phase on the given thread.
func (t *Tracker) BeginViewStep(
	thread ThreadID,
	v view.Identity,
	kind view.StepKind,
) {
	t.ContextFor(thread).BeginViewStep(v, kind)
}

// EndViewStep closes a view phase on the given thread.
func (t *Tracker) EndViewStep(
	thread ThreadID,
	v view.Identity,
	kind view.StepKind,
) {
	t.ContextFor(thread).EndViewStep(v, kind)
}
