package tracing

import (
	"sync/atomic"
	"time"

	"github.com/sarchlab/viewperf/hooking"
	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/view"
)

// A Recorder receives the begin/end notifications of one rendering thread.
type Recorder interface {
	StartTraversal(root view.Identity)
	StopTraversal()
	BeginViewRootImplStep(kind view.StepKind)
	EndViewRootImplStep(kind view.StepKind)
	BeginViewStep(v view.Identity, kind view.StepKind)
	EndViewStep(v view.Identity, kind view.StepKind)
}

// A ThreadContext is the tracking state of one thread: the open traversal and
// the stack of open spans.
//
// The Recorder methods of a ThreadContext must only be called by the thread
// that owns it. Anomalies and Thread may be called from any thread.
type ThreadContext struct {
	thread  ThreadID
	tracker *Tracker

	traversal *span.Traversal
	stack     []*span.Span

	// droppedBegins counts the begin events dropped by the depth clamp whose
	// end events have not arrived yet. They are all children of the stack top.
	droppedBegins int

	// detached counts the anomalies that could not be attached to a
	// traversal.
	detached [span.NumAnomalyKinds]atomic.Uint64
}

var _ Recorder = (*ThreadContext)(nil)

func newThreadContext(thread ThreadID, tracker *Tracker) *ThreadContext {
	initialCap := tracker.maxDepth
	if initialCap > 64 {
		initialCap = 64
	}

	return &ThreadContext{
		thread:  thread,
		tracker: tracker,
		stack:   make([]*span.Span, 0, initialCap),
	}
}

// Thread returns the thread that owns the context.
func (c *ThreadContext) Thread() ThreadID {
	return c.thread
}

// InTraversal returns true if a traversal is open.
func (c *ThreadContext) InTraversal() bool {
	return c.traversal != nil
}

// Depth returns the number of open spans, including the traversal root.
func (c *ThreadContext) Depth() int {
	return len(c.stack)
}

// Anomalies returns the anomalies recorded while no traversal could hold them,
// and the number of aborted traversals.
func (c *ThreadContext) Anomalies() span.AnomalyCounts {
	var counts span.AnomalyCounts

	for i := range c.detached {
		counts[i] = span.SaturateCount(c.detached[i].Load())
	}

	return counts
}

func (c *ThreadContext) now() time.Time {
	return c.tracker.timeTeller.Now()
}

func (c *ThreadContext) top() *span.Span {
	return c.stack[len(c.stack)-1]
}

// truncate pops every span at index n and above.
func (c *ThreadContext) truncate(n int) {
	for i := n; i < len(c.stack); i++ {
		c.stack[i] = nil
	}

	c.stack = c.stack[:n]
	c.droppedBegins = 0
}

func (c *ThreadContext) reset() {
	c.truncate(0)
	c.traversal = nil
}

// record counts an anomaly on the open traversal, or on the context if there
// is none.
func (c *ThreadContext) record(kind AnomalyKind, v view.Identity, step view.StepKind) {
	var traversalID uint64

	if c.traversal != nil {
		c.traversal.Anomalies.Add(kind)
		traversalID = c.traversal.ID
	} else {
		c.detached[kind].Add(1)
	}

	if c.tracker.NumHooks() == 0 {
		return
	}

	c.invokeHook(hooking.HookPosAnomaly, Anomaly{
		Kind:        kind,
		Thread:      c.thread,
		TraversalID: traversalID,
		View:        v,
		Step:        step,
	})
}

func (c *ThreadContext) invokeHook(pos *hooking.HookPos, item any) {
	if c.tracker.NumHooks() == 0 {
		return
	}

	defer c.recoverSinkFailure()

	c.tracker.InvokeHook(hooking.HookCtx{
		Domain: c.tracker,
		Pos:    pos,
		Item:   item,
		Detail: c.thread,
	})
}

func (c *ThreadContext) deliver(t *span.Traversal) {
	defer c.recoverSinkFailure()

	c.tracker.sink.OnTraversalComplete(t)
}

func (c *ThreadContext) recoverSinkFailure() {
	if r := recover(); r != nil {
		c.detached[span.SinkFailure].Add(1)
	}
}
