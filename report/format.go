// Package report provides the sinks that turn sealed traversals into logs,
// JSON lines and other outputs.
package report

import (
	"fmt"
	"strings"

	"github.com/sarchlab/viewperf/analysis"
	"github.com/sarchlab/viewperf/span"
)

// FormatTree returns the span tree of the traversal, one span per line.
func FormatTree(t *span.Traversal) string {
	return t.String()
}

// FormatViews returns the cost of the root phases followed by the cost of
// every view, indented by hierarchy depth:
//
//	[40ms](m:10ms,l:8ms,d:18ms)DecorView#1
//	* [m:1,l:1,d:1](8ms,6ms,16ms)DecorView
//	  * [m:1,l:1,d:0](6ms,4ms,0s)FrameLayout(@id/content)
func FormatViews(t *span.Traversal) string {
	var b strings.Builder

	s := analysis.Summarize(t)
	fmt.Fprintf(&b, "[%s](m:%s,l:%s,d:%s)%s",
		s.Total, s.Measure, s.Layout, s.Draw, s.Root)

	if t.HasAnomalies() {
		fmt.Fprintf(&b, " anomalies=%s", t.Anomalies.String())
	}

	b.WriteByte('\n')

	for _, v := range analysis.CollectViewStats(t) {
		fmt.Fprintf(&b, "%s* [m:%d,l:%d,d:%d](%s,%s,%s)%s\n",
			strings.Repeat("  ", v.Depth),
			v.Measure.Count, v.Layout.Count, v.Draw.Count,
			v.Measure.Cost, v.Layout.Cost, v.Draw.Cost,
			v.View.Label())
	}

	return b.String()
}
