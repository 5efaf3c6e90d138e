package span

import (
	"fmt"
	"math"
	"strings"
)

// AnomalyKind classifies a deviation from well-formed begin/end pairing.
type AnomalyKind uint8

// The anomaly kinds.
const (
	// OrphanBegin is a begin event that arrives while no traversal is open.
	OrphanBegin AnomalyKind = iota

	// OrphanEnd is an end or stop event that has nothing to close.
	OrphanEnd

	// StackMismatch is an end event that does not match the innermost open
	// span and was resolved by closing the nearest matching one.
	StackMismatch

	// Unterminated is a span that was still open when its traversal was
	// sealed.
	Unterminated

	// DepthClamped is a begin event dropped because the span stack is full.
	DepthClamped

	// Aborted is a traversal that never reached its stop event and was
	// discarded when the next traversal started.
	Aborted

	// SinkFailure is a panic raised by a sink or a hook and recovered by the
	// tracker.
	SinkFailure

	NumAnomalyKinds = int(SinkFailure) + 1
)

var anomalyKindNames = [NumAnomalyKinds]string{
	OrphanBegin:   "orphan-begin",
	OrphanEnd:     "orphan-end",
	StackMismatch: "stack-mismatch",
	Unterminated:  "unterminated",
	DepthClamped:  "depth-clamped",
	Aborted:       "aborted",
	SinkFailure:   "sink-failure",
}

func (k AnomalyKind) String() string {
	if int(k) >= NumAnomalyKinds {
		return fmt.Sprintf("anomaly(%d)", uint8(k))
	}

	return anomalyKindNames[k]
}

// AnomalyCounts counts anomalies by kind.
type AnomalyCounts [NumAnomalyKinds]uint32

// Add counts one anomaly of the given kind. Counts saturate at
// math.MaxUint32.
func (c *AnomalyCounts) Add(kind AnomalyKind) {
	if c[kind] < math.MaxUint32 {
		c[kind]++
	}
}

// Get returns the number of anomalies of the given kind.
func (c AnomalyCounts) Get(kind AnomalyKind) uint32 {
	return c[kind]
}

// Total returns the number of anomalies of all kinds. The sum saturates at
// math.MaxUint32.
func (c AnomalyCounts) Total() uint32 {
	var total uint64
	for _, n := range c {
		total += uint64(n)
	}

	return SaturateCount(total)
}

// SaturateCount narrows a counter to the width of AnomalyCounts, saturating at
// math.MaxUint32.
func SaturateCount(n uint64) uint32 {
	if n > math.MaxUint32 {
		return math.MaxUint32
	}

	return uint32(n)
}

// String lists the non-zero counts, e.g. "stack-mismatch:1,unterminated:2", or
// "none".
func (c AnomalyCounts) String() string {
	parts := make([]string, 0, NumAnomalyKinds)

	for i, n := range c {
		if n == 0 {
			continue
		}

		parts = append(parts, fmt.Sprintf("%s:%d", AnomalyKind(i), n))
	}

	if len(parts) == 0 {
		return "none"
	}

	return strings.Join(parts, ",")
}
