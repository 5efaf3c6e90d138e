package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/viewperf/span"
)

// SpanJSON is the JSON form of a span. Times are offsets from the start of the
// traversal, in nanoseconds.
type SpanJSON struct {
	Kind     string      `json:"kind"`
	View     string      `json:"view,omitempty"`
	Start    int64       `json:"start_ns"`
	Duration int64       `json:"duration_ns"`
	Flags    []string    `json:"flags,omitempty"`
	Children []*SpanJSON `json:"children,omitempty"`
}

// TraversalJSON is the JSON form of a traversal.
type TraversalJSON struct {
	ID        uint64            `json:"id"`
	Thread    uint64            `json:"thread"`
	Status    string            `json:"status"`
	Start     time.Time         `json:"start"`
	Duration  int64             `json:"duration_ns"`
	Anomalies map[string]uint32 `json:"anomalies,omitempty"`
	Root      *SpanJSON         `json:"root"`
}

// EncodeTraversal converts a traversal into its JSON form.
func EncodeTraversal(t *span.Traversal) *TraversalJSON {
	tj := &TraversalJSON{
		ID:       t.ID,
		Thread:   t.Thread,
		Status:   t.Status.String(),
		Start:    t.Root.Start,
		Duration: int64(t.Duration()),
		Root:     encodeSpan(t.Root, t.Root.Start),
	}

	for i, n := range t.Anomalies {
		if n == 0 {
			continue
		}

		if tj.Anomalies == nil {
			tj.Anomalies = make(map[string]uint32)
		}

		tj.Anomalies[span.AnomalyKind(i).String()] = n
	}

	return tj
}

func encodeSpan(s *span.Span, origin time.Time) *SpanJSON {
	sj := &SpanJSON{
		Kind:     s.Kind.String(),
		Start:    int64(s.Start.Sub(origin)),
		Duration: int64(s.Duration()),
	}

	if !s.View.IsNone() {
		sj.View = s.View.String()
	}

	for _, f := range []span.Flags{
		span.FlagUnterminated,
		span.FlagDepthClamped,
		span.FlagStackMismatch,
	} {
		if s.Flags.Has(f) {
			sj.Flags = append(sj.Flags, f.String())
		}
	}

	for _, c := range s.Children {
		sj.Children = append(sj.Children, encodeSpan(c, origin))
	}

	return sj
}

// JSONSink writes every traversal as one line of JSON.
type JSONSink struct {
	lock sync.Mutex
	w    io.Writer
	enc  *json.Encoder
}

// NewJSONSink creates a JSONSink that writes to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{
		w:   w,
		enc: json.NewEncoder(w),
	}
}

// NewJSONFileSink creates a JSONSink that writes to a new file. If path is
// empty, a unique file name is generated. The file is closed when the program
// exits through atexit.
func NewJSONFileSink(path string) *JSONSink {
	if path == "" {
		path = "viewperf_" + xid.New().String() + ".jsonl"
	}

	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Traversals are written to %s\n", path)

	atexit.Register(func() {
		err := f.Close()
		if err != nil {
			panic(err)
		}
	})

	return NewJSONSink(f)
}

// OnTraversalComplete writes the traversal.
func (s *JSONSink) OnTraversalComplete(t *span.Traversal) {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := s.enc.Encode(EncodeTraversal(t))
	if err != nil {
		panic(err)
	}
}
