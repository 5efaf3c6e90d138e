package view

import "fmt"

// StepKind identifies a rendering phase.
type StepKind uint8

// The per-view phases come first, the phases of the root coordinator after
// them. Traversal marks the synthetic span bracketing a whole traversal.
const (
	Measure StepKind = iota
	Layout
	Draw
	RootMeasure
	RootLayout
	RootDraw
	Traversal

	NumStepKinds = int(Traversal) + 1
)

var stepKindNames = [NumStepKinds]string{
	Measure:     "measure",
	Layout:      "layout",
	Draw:        "draw",
	RootMeasure: "root-measure",
	RootLayout:  "root-layout",
	RootDraw:    "root-draw",
	Traversal:   "traversal",
}

// String returns the lower-case name of the kind.
func (k StepKind) String() string {
	if int(k) >= NumStepKinds {
		return fmt.Sprintf("step(%d)", uint8(k))
	}

	return stepKindNames[k]
}

// Valid returns true if k is one of the declared kinds.
func (k StepKind) Valid() bool {
	return int(k) < NumStepKinds
}

// IsRoot returns true for the phases issued by the root coordinator.
func (k StepKind) IsRoot() bool {
	return k == RootMeasure || k == RootLayout || k == RootDraw
}

// Root maps a per-view phase to the root phase that triggers it. Root phases
// and Traversal map to themselves.
func (k StepKind) Root() StepKind {
	switch k {
	case Measure:
		return RootMeasure
	case Layout:
		return RootLayout
	case Draw:
		return RootDraw
	default:
		return k
	}
}

// PerView maps a root phase to the per-view phase it triggers. Per-view phases
// and Traversal map to themselves.
func (k StepKind) PerView() StepKind {
	switch k {
	case RootMeasure:
		return Measure
	case RootLayout:
		return Layout
	case RootDraw:
		return Draw
	default:
		return k
	}
}

// ParseStepKind parses the name produced by StepKind.String. Names are
// case-sensitive.
func ParseStepKind(name string) (StepKind, bool) {
	for i, n := range stepKindNames {
		if n == name {
			return StepKind(i), true
		}
	}

	return 0, false
}
