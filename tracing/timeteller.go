package tracing

import (
	"sync"
	"time"
)

// A TimeTeller can tell the current time.
type TimeTeller interface {
	Now() time.Time
}

type wallClock struct{}

// Now returns the current wall clock time, which carries a monotonic reading.
func (wallClock) Now() time.Time {
	return time.Now()
}

// WallClock returns the TimeTeller backed by time.Now.
func WallClock() TimeTeller {
	return wallClock{}
}

// A ManualClock is a TimeTeller whose time only moves when told to. It is used
// to replay recorded event streams.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock that reads the given time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current time of the clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Set moves the clock to the given time. The clock never moves backward.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.After(c.now) {
		c.now = t
	}
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	if d < 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
