package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/viewperf/report"
	"github.com/sarchlab/viewperf/tracing"
	"github.com/sarchlab/viewperf/view"
)

var (
	decor  = view.Identity{Handle: 1, Class: "DecorView"}
	button = view.Identity{Handle: 2, Class: "Button", Name: "ok"}
)

func get(server *httptest.Server, path string) (int, string) {
	rsp, err := http.Get(server.URL + path)
	Expect(err).ToNot(HaveOccurred())
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	Expect(err).ToNot(HaveOccurred())

	return rsp.StatusCode, string(body)
}

var _ = Describe("Monitor", func() {
	var (
		clock   *tracing.ManualClock
		m       *Monitor
		tracker *tracing.Tracker
		server  *httptest.Server
	)

	BeforeEach(func() {
		clock = tracing.NewManualClock(
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		m = NewMonitor()
		tracker = tracing.MakeBuilder().
			WithSink(m).
			WithHook(m).
			WithTimeTeller(clock).
			Build()
		m.RegisterTracker(tracker)
		server = httptest.NewServer(m.Handler())

		tracker.StartTraversal(7, decor)
		clock.Advance(time.Millisecond)
		tracker.BeginViewStep(7, button, view.Measure)
		clock.Advance(2 * time.Millisecond)
		tracker.EndViewStep(7, button, view.Measure)
		clock.Advance(time.Millisecond)
		tracker.StopTraversal(7)
	})

	AfterEach(func() {
		server.Close()
	})

	It("should keep the latest traversal of each thread", func() {
		t, ok := m.Latest(7)

		Expect(ok).To(BeTrue())
		Expect(t.Root.Count()).To(Equal(2))

		_, ok = m.Latest(8)
		Expect(ok).To(BeFalse())
	})

	It("should list threads", func() {
		code, body := get(server, "/api/threads")
		Expect(code).To(Equal(http.StatusOK))

		var threads []threadRsp
		Expect(json.Unmarshal([]byte(body), &threads)).To(Succeed())
		Expect(threads).To(Equal([]threadRsp{{
			Thread:    7,
			Traversal: 1,
			Status:    "completed",
			Duration:  int64(4 * time.Millisecond),
			Spans:     2,
		}}))
	})

	It("should serve a traversal as json", func() {
		code, body := get(server, "/api/traversal/7")
		Expect(code).To(Equal(http.StatusOK))

		var tj report.TraversalJSON
		Expect(json.Unmarshal([]byte(body), &tj)).To(Succeed())
		Expect(tj.Thread).To(Equal(uint64(7)))
		Expect(tj.Root.Children).To(HaveLen(1))
		Expect(tj.Root.Children[0].Kind).To(Equal("measure"))
	})

	It("should serve a traversal as a tree", func() {
		code, body := get(server, "/api/traversal/7/tree")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HavePrefix("traversal 1 completed thread=7"))
	})

	It("should serialize traversal details", func() {
		code, body := get(server, "/api/traversal/7/detail?depth=2")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HavePrefix(`{"r":"0","dict":`))
		Expect(body).To(ContainSubstring(`"completed"`))
		Expect(body).To(ContainSubstring(`"DecorView#1"`))
		Expect(body).ToNot(ContainSubstring("measure"))
	})

	It("should serialize the whole span tree when the depth allows", func() {
		code, body := get(server, "/api/traversal/7/detail?depth=10")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"measure"`))
		Expect(body).To(ContainSubstring(`"Button#2:ok"`))
	})

	It("should reject an invalid depth", func() {
		code, _ := get(server, "/api/traversal/7/detail?depth=x")

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should return 404 for an unknown thread", func() {
		code, body := get(server, "/api/traversal/9")

		Expect(code).To(Equal(http.StatusNotFound))
		Expect(body).To(Equal("Thread not found"))
	})

	It("should return 400 for a malformed thread", func() {
		code, _ := get(server, "/api/traversal/main")

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should count anomalies", func() {
		tracker.StopTraversal(3)
		tracker.StartTraversal(5, decor)
		tracker.StartTraversal(5, decor)

		code, body := get(server, "/api/anomalies")
		Expect(code).To(Equal(http.StatusOK))

		var rsp anomaliesRsp
		Expect(json.Unmarshal([]byte(body), &rsp)).To(Succeed())
		Expect(rsp.Recorded["orphan-end"]).To(Equal(uint32(1)))
		Expect(rsp.Recorded["aborted"]).To(Equal(uint32(1)))
		Expect(rsp.Detached["orphan-end"]).To(Equal(uint32(1)))
		Expect(rsp.Detached["aborted"]).To(Equal(uint32(1)))

		t, ok := m.Latest(5)
		Expect(ok).To(BeTrue())
		Expect(t.Status.String()).To(Equal("aborted"))
	})

	It("should export metrics", func() {
		tracker.StartTraversal(5, decor)
		tracker.StartTraversal(5, decor)

		code, body := get(server, "/metrics")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(
			`viewperf_traversals_total{status="completed"} 1`))
		Expect(body).To(ContainSubstring(
			`viewperf_traversals_total{status="aborted"} 1`))
		Expect(body).To(ContainSubstring(
			`viewperf_anomalies_total{kind="aborted"} 1`))
		Expect(body).To(ContainSubstring(
			"viewperf_traversal_duration_seconds_count 1"))
	})

	It("should report process resources", func() {
		code, body := get(server, "/api/resource")
		Expect(code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal([]byte(body), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a cpu profile", func() {
		m.profileDuration = 10 * time.Millisecond

		code, body := get(server, "/api/profile")

		Expect(code).To(Equal(http.StatusOK))
		Expect(strings.HasPrefix(body, "{")).To(BeTrue())
	})

	It("should serve the dashboard", func() {
		code, body := get(server, "/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HavePrefix("<!DOCTYPE html>"))
	})
})

var _ = Describe("Port number", func() {
	It("should fall back to a random port for reserved ports", func() {
		m := NewMonitor().WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))
	})

	It("should keep an allowed port", func() {
		m := NewMonitor().WithPortNumber(8080)

		Expect(m.portNumber).To(Equal(8080))
	})
})
