package report

import (
	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/tracing"
)

// MultiSink hands every traversal to several sinks, in order. A sink that
// panics does not keep the traversal from the others; the first panic is
// raised again once all the sinks have run.
type MultiSink []tracing.Sink

// NewMultiSink creates a MultiSink, skipping nil sinks.
func NewMultiSink(sinks ...tracing.Sink) MultiSink {
	m := make(MultiSink, 0, len(sinks))

	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}

	return m
}

// OnTraversalComplete delivers the traversal to every sink.
func (m MultiSink) OnTraversalComplete(t *span.Traversal) {
	var failure any

	for _, s := range m {
		if r := deliverRecovered(s, t); r != nil && failure == nil {
			failure = r
		}
	}

	if failure != nil {
		panic(failure)
	}
}

func deliverRecovered(s tracing.Sink, t *span.Traversal) (failure any) {
	defer func() {
		failure = recover()
	}()

	s.OnTraversalComplete(t)

	return nil
}
