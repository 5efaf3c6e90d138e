package analysis

import (
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/view"
)

func sampleTraversal() *span.Traversal {
	return traversal(
		node(decor, view.Traversal, 0, 40,
			node(view.None, view.RootMeasure, 1, 11,
				node(decor, view.Measure, 2, 10,
					node(frame, view.Measure, 3, 9,
						node(text, view.Measure, 4, 6),
						node(text, view.Measure, 6, 8),
					),
				),
			),
			node(view.None, view.RootLayout, 12, 20,
				node(decor, view.Layout, 13, 19,
					node(frame, view.Layout, 14, 18,
						node(frame, view.Layout, 15, 17),
					),
				),
			),
			node(view.None, view.RootDraw, 21, 39,
				node(decor, view.Draw, 22, 38,
					node(button, view.Draw, 23, 30),
				),
			),
		),
	)
}

var _ = Describe("BusyTime", func() {
	It("should count nested spans once", func() {
		t := sampleTraversal()

		Expect(BusyTime(t.Root, view.Measure)).To(Equal(8 * time.Millisecond))
		Expect(BusyTime(t.Root, view.Layout)).To(Equal(6 * time.Millisecond))
		Expect(BusyTime(t.Root, view.RootDraw)).To(Equal(18 * time.Millisecond))
	})

	It("should add disjoint spans", func() {
		root := node(decor, view.Traversal, 0, 20,
			node(decor, view.Draw, 5, 9),
			node(frame, view.Draw, 0, 2),
			node(text, view.Draw, 8, 12),
			node(button, view.Draw, 12, 13),
		)

		Expect(BusyTime(root, view.Draw)).To(Equal(10 * time.Millisecond))
		Expect(BusyTime(root, view.Measure)).To(BeZero())
	})
})

var _ = Describe("CollectViewStats", func() {
	It("should sum the steps of each view", func() {
		stats := CollectViewStats(sampleTraversal())

		ms := time.Millisecond
		expected := []ViewStats{
			{
				View:    decor,
				Depth:   0,
				Measure: StepCost{Count: 1, Cost: 8 * ms},
				Layout:  StepCost{Count: 1, Cost: 6 * ms},
				Draw:    StepCost{Count: 1, Cost: 16 * ms},
			},
			{
				View:    frame,
				Depth:   1,
				Measure: StepCost{Count: 1, Cost: 6 * ms},
				Layout:  StepCost{Count: 1, Cost: 4 * ms},
			},
			{
				View:    text,
				Depth:   2,
				Measure: StepCost{Count: 2, Cost: 4 * ms},
			},
			{
				View:  button,
				Depth: 1,
				Draw:  StepCost{Count: 1, Cost: 7 * ms},
			},
		}

		Expect(cmp.Diff(expected, stats)).To(BeEmpty())
	})

	It("should summarize the root phases", func() {
		Expect(Summarize(sampleTraversal())).To(Equal(Summary{
			Root:    decor,
			Total:   40 * time.Millisecond,
			Measure: 10 * time.Millisecond,
			Layout:  8 * time.Millisecond,
			Draw:    18 * time.Millisecond,
		}))
	})

	It("should skip open spans", func() {
		open := span.New(text, view.Measure, at(2))
		t := traversal(node(decor, view.Traversal, 0, 5,
			node(decor, view.Measure, 1, 4),
		))
		t.Root.Children[0].AddChild(open)

		stats := CollectViewStats(t)
		Expect(stats).To(HaveLen(2))
		Expect(stats[1].Measure).To(Equal(StepCost{}))
	})
})

var _ = Describe("SlowestSpans", func() {
	It("should order spans by self time", func() {
		t := sampleTraversal()

		slowest := SlowestSpans(t, 3)

		Expect(slowest).To(HaveLen(3))
		Expect(slowest[0].View).To(Equal(decor))
		Expect(slowest[0].Kind).To(Equal(view.Draw))
		Expect(slowest[1].View).To(Equal(button))
		Expect(slowest[2].Kind).To(Equal(view.RootMeasure))
	})

	It("should return everything when n is large", func() {
		Expect(SlowestSpans(sampleTraversal(), 100)).To(HaveLen(12))
		Expect(SlowestSpans(sampleTraversal(), 0)).To(BeEmpty())
	})
})

var _ = Describe("BackTrace", func() {
	var (
		mockCtrl *gomock.Controller
		printer  *MockSpanPrinter
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		printer = NewMockSpanPrinter(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should return the ancestors of a span", func() {
		t := sampleTraversal()
		target := t.Root.Children[0].Children[0].Children[0].Children[1]

		path := BackTrace(t, target)

		Expect(path).To(HaveLen(5))
		Expect(path[0]).To(BeIdenticalTo(t.Root))
		Expect(path[4]).To(BeIdenticalTo(target))
	})

	It("should return nil for a foreign span", func() {
		Expect(BackTrace(sampleTraversal(), node(text, view.Draw, 0, 1))).
			To(BeNil())
	})

	It("should print from the span up to the root", func() {
		t := sampleTraversal()
		rootDraw := t.Root.Children[2]
		target := rootDraw.Children[0].Children[0]

		gomock.InOrder(
			printer.EXPECT().Print(target),
			printer.EXPECT().Print(rootDraw.Children[0]),
			printer.EXPECT().Print(rootDraw),
			printer.EXPECT().Print(t.Root),
		)

		DumpBackTrace(t, target, printer)
	})

	It("should format the back trace", func() {
		t := sampleTraversal()
		target := t.Root.Children[2].Children[0].Children[0]
		target.Flags |= span.FlagUnterminated

		Expect(FormatBackTrace(t, target)).To(Equal(
			"draw@Button#4 7ms [unterminated]\n" +
				"draw@DecorView#1 16ms\n" +
				"root-draw@- 18ms\n" +
				"traversal@DecorView#1 40ms\n"))
	})
})

var _ = Describe("StepTimeTracer", func() {
	var tracer *StepTimeTracer

	BeforeEach(func() {
		tracer = NewStepTimeTracer()
	})

	It("should report nothing before any traversal", func() {
		Expect(tracer.AllStepStats()).To(BeEmpty())
		Expect(tracer.StepStats(view.Measure).Count).To(BeZero())
		Expect(tracer.TraversalStats().Average).To(BeZero())
	})

	It("should accumulate step times", func() {
		tracer.OnTraversalComplete(sampleTraversal())
		tracer.OnTraversalComplete(sampleTraversal())

		measure := tracer.StepStats(view.Measure)
		Expect(measure.Count).To(Equal(uint64(8)))
		Expect(measure.Total).To(Equal(36 * time.Millisecond))
		Expect(measure.Average).To(Equal(4500 * time.Microsecond))
		Expect(measure.Max).To(BeNumerically("~", 8*time.Millisecond, 50*time.Microsecond))
		Expect(measure.P50).To(BeNumerically("~", 2*time.Millisecond, 50*time.Microsecond))

		traversals := tracer.TraversalStats()
		Expect(traversals.Count).To(Equal(uint64(2)))
		Expect(traversals.Total).To(Equal(80 * time.Millisecond))

		Expect(tracer.TraversalCount(span.StatusCompleted)).To(Equal(uint64(2)))
		Expect(tracer.TraversalCount(span.StatusAborted)).To(BeZero())

		Expect(tracer.AllStepStats()).To(HaveLen(6))
		Expect(tracer.StepStats(view.Traversal).Count).To(BeZero())
	})
})
