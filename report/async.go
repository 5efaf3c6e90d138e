package report

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/tracing"
)

// AsyncSink moves the delivery of traversals off the rendering thread. It
// queues traversals and hands them to the next sink from a single goroutine.
// When the queue is full, traversals are dropped rather than blocking the
// caller.
type AsyncSink struct {
	next  tracing.Sink
	queue chan *span.Traversal
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewAsyncSink creates an AsyncSink with room for size waiting traversals and
// starts its delivery goroutine.
func NewAsyncSink(next tracing.Sink, size int) *AsyncSink {
	if size < 1 {
		panic("queue size must be at least 1")
	}

	s := &AsyncSink{
		next:  next,
		queue: make(chan *span.Traversal, size),
		done:  make(chan struct{}),
	}

	go s.run()

	return s
}

// OnTraversalComplete queues the traversal.
func (s *AsyncSink) OnTraversalComplete(t *span.Traversal) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.dropped.Add(1)
		return
	}

	select {
	case s.queue <- t:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of traversals that were not delivered because
// the queue was full or the sink was closed.
func (s *AsyncSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Failed returns the number of deliveries in which the next sink panicked.
func (s *AsyncSink) Failed() uint64 {
	return s.failed.Load()
}

// Close stops accepting traversals and waits until the queued ones are
// delivered. It is safe to call Close more than once.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	<-s.done
}

func (s *AsyncSink) run() {
	defer close(s.done)

	for t := range s.queue {
		s.deliver(t)
	}
}

func (s *AsyncSink) deliver(t *span.Traversal) {
	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
		}
	}()

	s.next.OnTraversalComplete(t)
}
