package span

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sarchlab/viewperf/view"
)

// Status tells how a traversal ended.
type Status uint8

// The traversal statuses.
const (
	// StatusInProgress is the status of a traversal that has not been sealed.
	StatusInProgress Status = iota

	// StatusCompleted traversals were sealed by a stop event.
	StatusCompleted

	// StatusAborted traversals were discarded because the next traversal started
	// before they were stopped.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in-progress"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// A Traversal is the timing tree of one top-level rendering pass.
type Traversal struct {
	ID        uint64
	Thread    uint64
	Root      *Span
	Status    Status
	Anomalies AnomalyCounts
}

// NewTraversal creates a traversal whose root span starts at the given time.
func NewTraversal(
	id uint64,
	thread uint64,
	rootView view.Identity,
	start time.Time,
) *Traversal {
	return &Traversal{
		ID:     id,
		Thread: thread,
		Root:   New(rootView, view.Traversal, start),
	}
}

// RootView returns the view the traversal started from.
func (t *Traversal) RootView() view.Identity {
	return t.Root.View
}

// Duration returns the duration of the whole traversal.
func (t *Traversal) Duration() time.Duration {
	return t.Root.Duration()
}

// HasAnomalies returns true if any anomaly was recorded during the traversal.
func (t *Traversal) HasAnomalies() bool {
	return t.Anomalies.Total() > 0
}

// Walk visits all the spans of the traversal, starting at the root.
func (t *Traversal) Walk(fn func(s *Span, depth int) bool) {
	t.Root.Walk(fn)
}

// Format writes a text dump of the traversal. Timestamps are written relative
// to the start of the traversal so that the output is deterministic.
func (t *Traversal) Format(w io.Writer) error {
	_, err := fmt.Fprintf(w, "traversal %d %s thread=%d anomalies=%s\n",
		t.ID, t.Status, t.Thread, t.Anomalies.String())
	if err != nil {
		return err
	}

	origin := t.Root.Start

	t.Walk(func(s *Span, depth int) bool {
		if err != nil {
			return false
		}

		_, err = io.WriteString(w, formatSpanLine(s, depth, origin))

		return true
	})

	return err
}

// String returns the output of Format.
func (t *Traversal) String() string {
	var b strings.Builder
	_ = t.Format(&b)

	return b.String()
}

func formatSpanLine(s *Span, depth int, origin time.Time) string {
	var b strings.Builder

	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(s.Kind.String())

	if !s.View.IsNone() {
		b.WriteByte(' ')
		b.WriteString(s.View.String())
	}

	b.WriteByte(' ')
	b.WriteString(s.Start.Sub(origin).String())
	b.WriteString("..")

	if s.IsOpen() {
		b.WriteString("open")
	} else {
		b.WriteString(s.End.Sub(origin).String())
	}

	if s.Flags != 0 {
		b.WriteString(" [")
		b.WriteString(s.Flags.String())
		b.WriteByte(']')
	}

	b.WriteByte('\n')

	return b.String()
}
