// Package analysis derives statistics from sealed traversals.
package analysis

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/view"
)

const (
	minLatency = time.Microsecond
	maxLatency = time.Minute
)

func clampLatency(d time.Duration) time.Duration {
	if d < minLatency {
		return minLatency
	}

	if d > maxLatency {
		return maxLatency
	}

	return d
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(
		minLatency.Microseconds(), maxLatency.Microseconds(), 3)
}

// StepStats summarizes the time spent in one kind of step.
type StepStats struct {
	Kind    view.StepKind
	Count   uint64
	Total   time.Duration
	Average time.Duration
	P50     time.Duration
	P90     time.Duration
	P99     time.Duration
	Max     time.Duration
}

func (s StepStats) String() string {
	return fmt.Sprintf("%s count=%d total=%s avg=%s p50=%s p90=%s p99=%s max=%s",
		s.Kind, s.Count, s.Total, s.Average, s.P50, s.P90, s.P99, s.Max)
}

type stepAccumulator struct {
	count uint64
	total time.Duration
	hist  *hdrhistogram.Histogram
}

func (a *stepAccumulator) record(d time.Duration) {
	a.count++
	a.total += d

	err := a.hist.RecordValue(clampLatency(d).Microseconds())
	if err != nil {
		panic(fmt.Sprintf("recording value: %s", err))
	}
}

func (a *stepAccumulator) stats(kind view.StepKind) StepStats {
	s := StepStats{
		Kind:  kind,
		Count: a.count,
		Total: a.total,
	}

	if a.count == 0 {
		return s
	}

	s.Average = a.total / time.Duration(a.count)
	s.P50 = micros(a.hist.ValueAtPercentile(50))
	s.P90 = micros(a.hist.ValueAtPercentile(90))
	s.P99 = micros(a.hist.ValueAtPercentile(99))
	s.Max = micros(a.hist.Max())

	return s
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// StepTimeTracer is a sink that accumulates the duration of every span by
// step kind, across all the traversals it receives. Count and Total are exact;
// percentiles are approximated at microsecond resolution.
type StepTimeTracer struct {
	lock       sync.Mutex
	steps      [view.NumStepKinds]stepAccumulator
	traversals stepAccumulator
	statuses   [3]uint64
}

// NewStepTimeTracer creates a new StepTimeTracer.
func NewStepTimeTracer() *StepTimeTracer {
	t := &StepTimeTracer{}

	for i := range t.steps {
		t.steps[i].hist = newHistogram()
	}

	t.traversals.hist = newHistogram()

	return t
}

// OnTraversalComplete records the spans of the traversal.
func (t *StepTimeTracer) OnTraversalComplete(tr *span.Traversal) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if int(tr.Status) < len(t.statuses) {
		t.statuses[tr.Status]++
	}

	t.traversals.record(tr.Duration())

	tr.Walk(func(s *span.Span, depth int) bool {
		if depth > 0 && s.Kind.Valid() {
			t.steps[s.Kind].record(s.Duration())
		}

		return true
	})
}

// TraversalCount returns the number of traversals received with the given
// status.
func (t *StepTimeTracer) TraversalCount(status span.Status) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if int(status) >= len(t.statuses) {
		return 0
	}

	return t.statuses[status]
}

// TraversalStats returns the statistics of whole traversal durations.
func (t *StepTimeTracer) TraversalStats() StepStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.traversals.stats(view.Traversal)
}

// StepStats returns the statistics of the given kind of step.
func (t *StepTimeTracer) StepStats(kind view.StepKind) StepStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !kind.Valid() || kind == view.Traversal {
		return StepStats{Kind: kind}
	}

	return t.steps[kind].stats(kind)
}

// AllStepStats returns the statistics of every step kind that was seen at
// least once, ordered by kind.
func (t *StepTimeTracer) AllStepStats() []StepStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	var all []StepStats

	for i := range t.steps {
		if t.steps[i].count == 0 {
			continue
		}

		all = append(all, t.steps[i].stats(view.StepKind(i)))
	}

	return all
}
