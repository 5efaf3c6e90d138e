package tracing

import (
	"fmt"

	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/view"
)

// ThreadID identifies the thread that renders a view hierarchy. It is supplied
// by the caller, typically the id of the OS thread running the UI loop.
type ThreadID uint64

// AnomalyKind classifies a recorded anomaly.
type AnomalyKind = span.AnomalyKind

// Anomaly is the item passed to hooks at HookPosAnomaly.
type Anomaly struct {
	Kind   AnomalyKind
	Thread ThreadID

	// TraversalID is zero if no traversal was open.
	TraversalID uint64

	// View and Step describe the event that caused the anomaly. View is
	// view.None for root steps and traversal events.
	View view.Identity
	Step view.StepKind
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s thread=%d traversal=%d %s %s",
		a.Kind, a.Thread, a.TraversalID, a.Step, a.View)
}
