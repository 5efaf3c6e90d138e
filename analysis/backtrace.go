package analysis

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/viewperf/span"
)

// SpanPrinter can print spans with a format.
type SpanPrinter interface {
	Print(s *span.Span)
}

type defaultSpanPrinter struct {
	w io.Writer
}

func (p *defaultSpanPrinter) Print(s *span.Span) {
	var flags string
	if s.Flags != 0 {
		flags = " [" + s.Flags.String() + "]"
	}

	fmt.Fprintf(p.w, "%s@%s %s%s\n", s.Kind, s.View, s.Duration(), flags)
}

// NewWriterSpanPrinter creates a SpanPrinter that writes one line per span.
func NewWriterSpanPrinter(w io.Writer) SpanPrinter {
	return &defaultSpanPrinter{w: w}
}

// BackTrace returns the chain of spans from the traversal root down to target.
// It returns nil if target is not part of the traversal.
func BackTrace(t *span.Traversal, target *span.Span) []*span.Span {
	var path []*span.Span

	if !findPath(t.Root, target, &path) {
		return nil
	}

	return path
}

func findPath(s, target *span.Span, path *[]*span.Span) bool {
	*path = append(*path, s)

	if s == target {
		return true
	}

	for _, child := range s.Children {
		if findPath(child, target, path) {
			return true
		}
	}

	*path = (*path)[:len(*path)-1]

	return false
}

// DumpBackTrace prints target and then each of its ancestors. A nil printer
// prints to stdout.
func DumpBackTrace(t *span.Traversal, target *span.Span, printer SpanPrinter) {
	if printer == nil {
		printer = NewWriterSpanPrinter(os.Stdout)
	}

	path := BackTrace(t, target)
	for i := len(path) - 1; i >= 0; i-- {
		printer.Print(path[i])
	}
}

// FormatBackTrace returns the output of DumpBackTrace as a string.
func FormatBackTrace(t *span.Traversal, target *span.Span) string {
	var b strings.Builder
	DumpBackTrace(t, target, NewWriterSpanPrinter(&b))

	return b.String()
}
