package analysis

import (
	"cmp"
	"slices"

	"github.com/sarchlab/viewperf/span"
)

// SlowestSpans returns up to n spans of the traversal with the longest self
// time, longest first. The traversal root is not included.
func SlowestSpans(t *span.Traversal, n int) []*span.Span {
	if n <= 0 {
		return nil
	}

	var spans []*span.Span

	t.Walk(func(s *span.Span, depth int) bool {
		if depth > 0 {
			spans = append(spans, s)
		}

		return true
	})

	slices.SortStableFunc(spans, func(a, b *span.Span) int {
		return cmp.Compare(b.SelfDuration(), a.SelfDuration())
	})

	if len(spans) > n {
		spans = spans[:n]
	}

	return spans
}
