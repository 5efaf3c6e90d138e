// Package idgen provides ID generators for traversals.
package idgen

import "sync/atomic"

// ID is a unique identifier represented as a uint64.
type ID = uint64

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// New returns a sequential generator whose first emitted ID is 1. It is safe
// to use from multiple threads; IDs are strictly increasing in the order the
// calls are linearized.
func New() Generator {
	return &sequentialGenerator{}
}

// NewStartingAt returns a sequential generator whose first emitted ID is
// first.
func NewStartingAt(first ID) Generator {
	g := &sequentialGenerator{}
	g.next.Store(first - 1)

	return g
}

type sequentialGenerator struct {
	next atomic.Uint64
}

func (g *sequentialGenerator) Generate() ID {
	return g.next.Add(1)
}
