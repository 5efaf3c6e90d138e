package tracing

import (
	"sync"

	"github.com/cockroachdb/swiss"

	"github.com/sarchlab/viewperf/span"
)

// A Registry maps each thread to its own ThreadContext.
//
// Lookups take a read lock only; the write lock is taken the first time a
// thread is seen.
type Registry struct {
	mu        sync.RWMutex
	contexts  swiss.Map[ThreadID, *ThreadContext]
	newThread func(thread ThreadID) *ThreadContext
}

func newRegistry(newThread func(thread ThreadID) *ThreadContext) *Registry {
	r := &Registry{newThread: newThread}
	r.contexts.Init(16)

	return r
}

// ContextFor returns the context of the thread, creating an empty one if the
// thread has not been seen before.
func (r *Registry) ContextFor(thread ThreadID) *ThreadContext {
	r.mu.RLock()
	c, ok := r.contexts.Get(thread)
	r.mu.RUnlock()

	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.contexts.Get(thread); ok {
		return c
	}

	c = r.newThread(thread)
	r.contexts.Put(thread, c)

	return c
}

// Lookup returns the context of the thread if it exists.
func (r *Registry) Lookup(thread ThreadID) (*ThreadContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.contexts.Get(thread)
}

// Release forgets the context of a thread that stopped rendering. A later
// event from the same thread starts from an empty context.
func (r *Registry) Release(thread ThreadID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contexts.Get(thread); !ok {
		return false
	}

	r.contexts.Delete(thread)

	return true
}

// Len returns the number of registered threads.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.contexts.Len()
}

// Range calls fn for each registered context until fn returns false. fn runs
// on a snapshot and may call back into the registry.
func (r *Registry) Range(fn func(thread ThreadID, c *ThreadContext) bool) {
	r.mu.RLock()
	snapshot := make([]*ThreadContext, 0, r.contexts.Len())
	r.contexts.All(func(_ ThreadID, c *ThreadContext) bool {
		snapshot = append(snapshot, c)
		return true
	})
	r.mu.RUnlock()

	for _, c := range snapshot {
		if !fn(c.thread, c) {
			return
		}
	}
}

// AnomalyTotals sums the anomalies of all contexts that were recorded outside
// of a traversal.
func (r *Registry) AnomalyTotals() span.AnomalyCounts {
	var sums [span.NumAnomalyKinds]uint64

	r.Range(func(_ ThreadID, c *ThreadContext) bool {
		for i := range c.detached {
			sums[i] += c.detached[i].Load()
		}

		return true
	})

	var totals span.AnomalyCounts
	for i, n := range sums {
		totals[i] = span.SaturateCount(n)
	}

	return totals
}
