package analysis

import (
	"time"

	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/view"
)

// StepCost is the number of completed executions of one step of a view and
// the time they took.
type StepCost struct {
	Count int
	Cost  time.Duration
}

// ViewStats is the cost of the measure, layout and draw steps of one view in
// one traversal.
type ViewStats struct {
	View view.Identity

	// Depth is the number of distinct views between the view and the top of
	// the hierarchy.
	Depth int

	Measure StepCost
	Layout  StepCost
	Draw    StepCost
}

// Step returns the cost of the given per-view step.
func (s *ViewStats) Step(kind view.StepKind) *StepCost {
	switch kind.PerView() {
	case view.Measure:
		return &s.Measure
	case view.Layout:
		return &s.Layout
	case view.Draw:
		return &s.Draw
	default:
		return nil
	}
}

// Summary is the cost of the root coordinator phases of a traversal.
type Summary struct {
	Root    view.Identity
	Total   time.Duration
	Measure time.Duration
	Layout  time.Duration
	Draw    time.Duration
}

// Summarize returns the cost of the root coordinator phases of a traversal.
func Summarize(t *span.Traversal) Summary {
	return Summary{
		Root:    t.RootView(),
		Total:   t.Duration(),
		Measure: BusyTime(t.Root, view.RootMeasure),
		Layout:  BusyTime(t.Root, view.RootLayout),
		Draw:    BusyTime(t.Root, view.RootDraw),
	}
}

// CollectViewStats returns the per-view cost of a traversal, in the order in
// which the views first appear.
//
// A step that re-enters itself for the same view counts as one execution,
// measured from the outermost begin to the outermost end.
func CollectViewStats(t *span.Traversal) []ViewStats {
	c := viewStatsCollector{index: make(map[uint64]int)}
	c.visit(t.Root, nil)

	return c.stats
}

type viewStatsCollector struct {
	stats []ViewStats
	index map[uint64]int
}

// visit walks the subtree of s. path holds the view spans enclosing s.
func (c *viewStatsCollector) visit(s *span.Span, path []*span.Span) {
	if s.View.IsNone() || s.Kind.IsRoot() || s.Kind == view.Traversal {
		for _, child := range s.Children {
			c.visit(child, path)
		}

		return
	}

	entry := c.entry(s.View, distinctViews(path))

	if !reentered(path, s) && !s.IsOpen() {
		step := entry.Step(s.Kind)
		step.Count++
		step.Cost += s.Duration()
	}

	path = append(path, s)
	for _, child := range s.Children {
		c.visit(child, path)
	}
}

func (c *viewStatsCollector) entry(v view.Identity, depth int) *ViewStats {
	i, ok := c.index[v.Handle]
	if !ok {
		i = len(c.stats)
		c.index[v.Handle] = i
		c.stats = append(c.stats, ViewStats{View: v, Depth: depth})
	}

	return &c.stats[i]
}

func reentered(path []*span.Span, s *span.Span) bool {
	for _, p := range path {
		if p.Kind == s.Kind && p.View.Same(s.View) {
			return true
		}
	}

	return false
}

func distinctViews(path []*span.Span) int {
	n := 0

	for i, p := range path {
		if i > 0 && path[i-1].View.Same(p.View) {
			continue
		}

		n++
	}

	return n
}
