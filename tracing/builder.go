package tracing

import (
	"github.com/sarchlab/viewperf/hooking"
	"github.com/sarchlab/viewperf/idgen"
)

// DefaultMaxDepth is the default limit of open spans per thread.
const DefaultMaxDepth = 256

// A Builder can build a Tracker.
type Builder struct {
	sink           Sink
	timeTeller     TimeTeller
	idGenerator    idgen.Generator
	maxDepth       int
	deliverAborted bool
	hooks          []hooking.Hook
}

// MakeBuilder creates a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		maxDepth: DefaultMaxDepth,
	}
}

// WithSink sets the sink that receives sealed traversals. Without a sink,
// traversals are discarded.
func (b Builder) WithSink(sink Sink) Builder {
	b.sink = sink
	return b
}

// WithTimeTeller sets the clock used to timestamp spans.
func (b Builder) WithTimeTeller(timeTeller TimeTeller) Builder {
	b.timeTeller = timeTeller
	return b
}

// WithIDGenerator sets the generator of traversal IDs.
func (b Builder) WithIDGenerator(g idgen.Generator) Builder {
	b.idGenerator = g
	return b
}

// WithMaxDepth sets the maximum number of open spans per thread, including the
// traversal root. It must be at least 2.
func (b Builder) WithMaxDepth(depth int) Builder {
	if depth < 2 {
		panic("max depth must be at least 2")
	}

	b.maxDepth = depth

	return b
}

// WithAbortedDelivery sets whether aborted traversals are handed to the sink.
// By default they are discarded.
func (b Builder) WithAbortedDelivery(deliver bool) Builder {
	b.deliverAborted = deliver
	return b
}

// WithHook registers a hook on the tracker being built.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

// Build creates a Tracker.
func (b Builder) Build() *Tracker {
	t := &Tracker{
		HookableBase:   hooking.NewHookableBase(),
		sink:           b.sink,
		timeTeller:     b.timeTeller,
		idGenerator:    b.idGenerator,
		maxDepth:       b.maxDepth,
		deliverAborted: b.deliverAborted,
	}

	if t.sink == nil {
		t.sink = discardSink{}
	}

	if t.timeTeller == nil {
		t.timeTeller = WallClock()
	}

	if t.idGenerator == nil {
		t.idGenerator = idgen.New()
	}

	for _, h := range b.hooks {
		t.AcceptHook(h)
	}

	t.registry = newRegistry(func(thread ThreadID) *ThreadContext {
		return newThreadContext(thread, t)
	})

	return t
}
