package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gmeasure"

	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/view"
)

var _ = Describe("ThreadContext performance", func() {
	It("measure a deep traversal", func() {
		delivered := 0
		tracker := MakeBuilder().
			WithSink(SinkFunc(func(t *span.Traversal) {
				delivered++
				Expect(t.HasAnomalies()).To(BeFalse())
			})).
			Build()
		ctx := tracker.ContextFor(1)

		views := make([]view.Identity, 100)
		for i := range views {
			views[i] = view.Identity{Handle: uint64(i + 1), Class: "FrameLayout"}
		}

		experiment := gmeasure.NewExperiment("Span Stack Performance")
		AddReportEntry(experiment.Name, experiment)

		experiment.MeasureDuration("runtime", func() {
			for n := 0; n < 100; n++ {
				ctx.StartTraversal(views[0])
				ctx.BeginViewRootImplStep(view.Measure)

				for _, v := range views {
					ctx.BeginViewStep(v, view.Measure)
				}

				for i := len(views) - 1; i >= 0; i-- {
					ctx.EndViewStep(views[i], view.Measure)
				}

				ctx.EndViewRootImplStep(view.Measure)
				ctx.StopTraversal()
			}
		})

		Expect(delivered).To(Equal(100))
	})
})
