package analysis

import (
	"slices"
	"time"

	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/view"
)

type interval struct {
	start, end time.Time
}

// BusyTime returns the time during which at least one span of the given kind
// was open in the subtree of root. Overlapping and nested spans are only
// counted once.
func BusyTime(root *span.Span, kind view.StepKind) time.Duration {
	var intervals []interval

	root.Walk(func(s *span.Span, _ int) bool {
		if s.Kind == kind && !s.IsOpen() {
			intervals = append(intervals, interval{start: s.Start, end: s.End})
		}

		return true
	})

	return busyTime(intervals)
}

func busyTime(intervals []interval) time.Duration {
	if len(intervals) == 0 {
		return 0
	}

	slices.SortFunc(intervals, func(a, b interval) int {
		return a.start.Compare(b.start)
	})

	var total time.Duration

	ext := intervals[0]
	for _, next := range intervals[1:] {
		if !next.start.After(ext.end) {
			if next.end.After(ext.end) {
				ext.end = next.end
			}

			continue
		}

		total += ext.end.Sub(ext.start)
		ext = next
	}

	total += ext.end.Sub(ext.start)

	return total
}
