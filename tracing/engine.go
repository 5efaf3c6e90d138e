package tracing

import (
	"time"

	"github.com/sarchlab/viewperf/hooking"
	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/view"
)

// StartTraversal opens a new traversal rooted at the given view. A traversal
// that is still open is aborted first, which is how a pass that never reached
// StopTraversal gets healed.
func (c *ThreadContext) StartTraversal(root view.Identity) {
	now := c.now()

	if c.traversal != nil {
		c.abort(now)
	}

	c.reset()

	c.traversal = span.NewTraversal(
		c.tracker.idGenerator.Generate(),
		uint64(c.thread),
		root,
		now,
	)
	c.stack = append(c.stack, c.traversal.Root)

	c.invokeHook(hooking.HookPosTraversalStart, c.traversal.ID)
}

func (c *ThreadContext) abort(now time.Time) {
	t := c.traversal

	c.closeOpenSpans(now)
	t.Root.Flags |= span.FlagUnterminated
	t.Root.Close(now)
	t.Status = span.StatusAborted
	t.Anomalies.Add(span.Aborted)

	c.reset()
	c.record(span.Aborted, t.RootView(), view.Traversal)
	c.invokeHook(hooking.HookPosTraversalAbort, t)

	if c.tracker.deliverAborted {
		c.deliver(t)
	}
}

// StopTraversal seals the open traversal and hands it to the sink. Spans that
// are still open are closed and marked unterminated.
func (c *ThreadContext) StopTraversal() {
	if c.traversal == nil {
		c.record(span.OrphanEnd, view.None, view.Traversal)
		return
	}

	now := c.now()
	t := c.traversal

	c.closeOpenSpans(now)
	t.Root.Close(now)
	t.Status = span.StatusCompleted

	c.reset()
	c.deliver(t)
}

// closeOpenSpans closes every span above the traversal root.
func (c *ThreadContext) closeOpenSpans(now time.Time) {
	for i := len(c.stack) - 1; i >= 1; i-- {
		s := c.stack[i]
		s.Flags |= span.FlagUnterminated
		s.Close(now)

		c.record(span.Unterminated, s.View, s.Kind)
	}

	c.truncate(1)
}

// BeginViewRootImplStep opens a span for a phase of the root coordinator.
// Per-view kinds are mapped to the matching root kind.
func (c *ThreadContext) BeginViewRootImplStep(kind view.StepKind) {
	c.begin(view.None, kind.Root())
}

// EndViewRootImplStep closes the span opened by BeginViewRootImplStep.
func (c *ThreadContext) EndViewRootImplStep(kind view.StepKind) {
	c.end(view.None, kind.Root())
}

// BeginViewStep opens a span for a phase of a view. Root kinds are mapped to
// the matching per-view kind.
func (c *ThreadContext) BeginViewStep(v view.Identity, kind view.StepKind) {
	c.begin(v, kind.PerView())
}

// EndViewStep closes the span opened by BeginViewStep.
func (c *ThreadContext) EndViewStep(v view.Identity, kind view.StepKind) {
	c.end(v, kind.PerView())
}

func (c *ThreadContext) begin(v view.Identity, kind view.StepKind) {
	if c.traversal == nil || !isStepKind(kind) {
		c.record(span.OrphanBegin, v, kind)
		return
	}

	parent := c.top()

	if len(c.stack) >= c.tracker.maxDepth {
		parent.Flags |= span.FlagDepthClamped
		c.droppedBegins++

		c.record(span.DepthClamped, v, kind)

		return
	}

	s := span.New(v, kind, c.now())
	parent.AddChild(s)
	c.stack = append(c.stack, s)
}

func (c *ThreadContext) end(v view.Identity, kind view.StepKind) {
	if c.traversal == nil || !isStepKind(kind) {
		c.record(span.OrphanEnd, v, kind)
		return
	}

	top := len(c.stack) - 1
	if top >= 1 && matches(c.stack[top], v, kind) {
		c.stack[top].Close(c.now())
		c.truncate(top)

		return
	}

	i := c.findOpen(v, kind)
	if i < 0 {
		if c.droppedBegins > 0 {
			c.droppedBegins--
			return
		}

		c.record(span.OrphanEnd, v, kind)

		return
	}

	c.closeDownTo(i, c.now())
	c.record(span.StackMismatch, v, kind)
}

// findOpen returns the stack index of the innermost open span that matches,
// or -1. The traversal root never matches.
func (c *ThreadContext) findOpen(v view.Identity, kind view.StepKind) int {
	for i := len(c.stack) - 1; i >= 1; i-- {
		if matches(c.stack[i], v, kind) {
			return i
		}
	}

	return -1
}

// closeDownTo closes the span at index i and every span above it. The spans
// above are marked unterminated, the span at i is marked as closed by a
// mismatched end.
func (c *ThreadContext) closeDownTo(i int, now time.Time) {
	for j := len(c.stack) - 1; j > i; j-- {
		s := c.stack[j]
		s.Flags |= span.FlagUnterminated
		s.Close(now)
	}

	matched := c.stack[i]
	matched.Flags |= span.FlagStackMismatch
	matched.Close(now)

	c.truncate(i)
}

func matches(s *span.Span, v view.Identity, kind view.StepKind) bool {
	return s.Kind == kind && s.View.Same(v)
}

func isStepKind(kind view.StepKind) bool {
	return kind.Valid() && kind != view.Traversal
}
