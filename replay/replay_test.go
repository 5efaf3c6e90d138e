package replay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/tracing"
	"github.com/sarchlab/viewperf/view"
)

var _ = Describe("Event", func() {
	var (
		mockCtrl *gomock.Controller
		rec      *MockRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		rec = NewMockRecorder(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should call the recorder in script order", func() {
		events, err := ParseString(`
1 start DecorView#1
1 begin-root layout
1 begin Button#2:ok layout
1 end Button#2:ok layout
1 end-root layout
1 stop
`)
		Expect(err).ToNot(HaveOccurred())

		decor := view.Identity{Handle: 1, Class: "DecorView"}
		button := view.Identity{Handle: 2, Class: "Button", Name: "ok"}

		gomock.InOrder(
			rec.EXPECT().StartTraversal(decor),
			rec.EXPECT().BeginViewRootImplStep(view.Layout),
			rec.EXPECT().BeginViewStep(button, view.Layout),
			rec.EXPECT().EndViewStep(button, view.Layout),
			rec.EXPECT().EndViewRootImplStep(view.Layout),
			rec.EXPECT().StopTraversal(),
		)

		for _, e := range events {
			e.Apply(rec)
		}
	})

	It("should record line numbers", func() {
		events, err := ParseString("\n# header\n\n7 stop\n")

		Expect(err).ToNot(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Line).To(Equal(4))
		Expect(events[0].Thread).To(Equal(tracing.ThreadID(7)))
	})

	It("should keep the cause of a parse error", func() {
		_, err := ParseString("x stop")

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(HavePrefix(`line 1: invalid thread "x"`))
	})
})

var _ = Describe("ParseView", func() {
	It("should parse a view with a name", func() {
		v, err := ParseView("FrameLayout#0x2a:content")

		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(view.Identity{
			Handle: 42,
			Class:  "FrameLayout",
			Name:   "content",
		}))
	})

	It("should parse the empty view", func() {
		v, err := ParseView("-")

		Expect(err).ToNot(HaveOccurred())
		Expect(v.IsNone()).To(BeTrue())
	})

	It("should round trip with Identity.String", func() {
		in := view.Identity{Handle: 9, Class: "TextView", Name: "title"}

		out, err := ParseView(in.String())

		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(Equal(in))
	})
})

var _ = Describe("Run", func() {
	It("should never move the clock backward", func() {
		events, err := ParseString(`
@5ms 1 start DecorView#1
@2ms 1 stop
`)
		Expect(err).ToNot(HaveOccurred())

		var got *span.Traversal
		clock := tracing.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		tracker := tracing.MakeBuilder().
			WithTimeTeller(clock).
			WithSink(tracing.SinkFunc(func(t *span.Traversal) { got = t })).
			Build()

		Run(tracker, clock, events)

		Expect(got).ToNot(BeNil())
		Expect(got.Duration()).To(Equal(time.Duration(0)))
	})
})

var _ = Describe("SplitByThread", func() {
	It("should group events by thread in order of appearance", func() {
		events, err := ParseString(`
2 start DecorView#1
1 start DecorView#2
2 stop
1 stop
`)
		Expect(err).ToNot(HaveOccurred())

		threads, byThread := SplitByThread(events)

		Expect(threads).To(Equal([]tracing.ThreadID{2, 1}))
		Expect(byThread[2]).To(HaveLen(2))
		Expect(byThread[2][1].Op).To(Equal(OpStop))
		Expect(byThread[1][0].Line).To(Equal(3))
	})
})

var _ = Describe("RunParallel", func() {
	var (
		mu         sync.Mutex
		traversals []*span.Traversal
		tracker    *tracing.Tracker
	)

	BeforeEach(func() {
		traversals = nil
		tracker = tracing.MakeBuilder().
			WithSink(tracing.SinkFunc(func(t *span.Traversal) {
				mu.Lock()
				defer mu.Unlock()

				traversals = append(traversals, t)
			})).
			Build()
	})

	It("should replay each thread on its own goroutine", func() {
		var script strings.Builder
		for round := 0; round < 10; round++ {
			for thread := 1; thread <= 4; thread++ {
				fmt.Fprintf(&script, "%d start DecorView#%d\n", thread, thread)
				fmt.Fprintf(&script, "%d begin-root draw\n", thread)
				fmt.Fprintf(&script, "%d begin DecorView#%d draw\n", thread, thread)
				fmt.Fprintf(&script, "%d end DecorView#%d draw\n", thread, thread)
				fmt.Fprintf(&script, "%d end-root draw\n", thread)
				fmt.Fprintf(&script, "%d stop\n", thread)
			}
		}

		events, err := ParseString(script.String())
		Expect(err).ToNot(HaveOccurred())

		err = RunParallel(context.Background(), tracker, events)

		Expect(err).ToNot(HaveOccurred())
		Expect(traversals).To(HaveLen(40))
		for _, t := range traversals {
			Expect(t.HasAnomalies()).To(BeFalse())
			Expect(t.Root.Count()).To(Equal(3))
			Expect(t.RootView().Handle).To(Equal(t.Thread))
		}
	})

	It("should stop when the context is cancelled", func() {
		events, err := ParseString(`
1 start DecorView#1
@1h 1 stop
`)
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err = RunParallel(ctx, tracker, events)

		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("thread 1, line 3"))
		Expect(traversals).To(BeEmpty())
	})
})
