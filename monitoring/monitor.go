// Package monitoring serves the latest traversals of a running tracker over
// HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/viewperf/hooking"
	"github.com/sarchlab/viewperf/monitoring/web"
	"github.com/sarchlab/viewperf/report"
	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/tracing"
)

// Monitor keeps the latest traversal of each thread and the anomaly counts of
// a tracker, and serves them as a web server.
//
// A Monitor is a tracing.Sink and a hooking.Hook. Register it as both to see
// aborted traversals and anomalies.
type Monitor struct {
	portNumber int
	tracker    *tracing.Tracker

	mu        sync.RWMutex
	latest    map[tracing.ThreadID]*span.Traversal
	anomalies span.AnomalyCounts

	metrics         *prometheus.Registry
	traversalsTotal *prometheus.CounterVec
	anomaliesTotal  *prometheus.CounterVec
	duration        prometheus.Histogram

	profileDuration time.Duration
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	m := &Monitor{
		latest:          make(map[tracing.ThreadID]*span.Traversal),
		metrics:         prometheus.NewRegistry(),
		profileDuration: time.Second,
	}

	m.traversalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viewperf_traversals_total",
		Help: "Number of sealed traversals by status",
	}, []string{"status"})
	m.anomaliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viewperf_anomalies_total",
		Help: "Number of recorded anomalies by kind",
	}, []string{"kind"})
	m.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "viewperf_traversal_duration_seconds",
		Help:    "Duration of completed traversals",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	m.metrics.MustRegister(m.traversalsTotal, m.anomaliesTotal, m.duration)

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterTracker lets the monitor report the anomalies that the tracker
// recorded outside of traversals.
func (m *Monitor) RegisterTracker(t *tracing.Tracker) {
	m.tracker = t
}

// OnTraversalComplete records a traversal sealed by the tracker.
func (m *Monitor) OnTraversalComplete(t *span.Traversal) {
	m.mu.Lock()
	m.latest[tracing.ThreadID(t.Thread)] = t
	m.mu.Unlock()

	// Aborted traversals are counted by the abort hook, which fires whether or
	// not they are delivered.
	if t.Status == span.StatusAborted {
		return
	}

	m.traversalsTotal.WithLabelValues(t.Status.String()).Inc()
	m.duration.Observe(t.Duration().Seconds())
}

// Func counts anomalies and aborted traversals.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case hooking.HookPosAnomaly:
		a, ok := ctx.Item.(tracing.Anomaly)
		if !ok {
			return
		}

		m.mu.Lock()
		m.anomalies.Add(a.Kind)
		m.mu.Unlock()

		m.anomaliesTotal.WithLabelValues(a.Kind.String()).Inc()
	case hooking.HookPosTraversalAbort:
		t, ok := ctx.Item.(*span.Traversal)
		if !ok {
			return
		}

		m.mu.Lock()
		m.latest[tracing.ThreadID(t.Thread)] = t
		m.mu.Unlock()

		m.traversalsTotal.WithLabelValues(t.Status.String()).Inc()
	}
}

// Latest returns the last traversal seen on the given thread.
func (m *Monitor) Latest(thread tracing.ThreadID) (*span.Traversal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.latest[thread]

	return t, ok
}

// Handler returns the router that serves the monitor API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/threads", m.listThreads)
	r.HandleFunc("/api/traversal/{thread}", m.traversalJSON)
	r.HandleFunc("/api/traversal/{thread}/tree", m.traversalTree)
	r.HandleFunc("/api/traversal/{thread}/detail", m.traversalDetail)
	r.HandleFunc("/api/anomalies", m.listAnomalies)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.metrics, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring traversals with %s\n", url)

	handler := m.Handler()

	go func() {
		err := http.Serve(listener, handler)
		dieOnErr(err)
	}()

	return url
}

type threadRsp struct {
	Thread    uint64 `json:"thread"`
	Traversal uint64 `json:"traversal"`
	Status    string `json:"status"`
	Duration  int64  `json:"duration_ns"`
	Spans     int    `json:"spans"`
	Anomalies uint32 `json:"anomalies"`
}

func (m *Monitor) listThreads(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	rsp := make([]threadRsp, 0, len(m.latest))
	for thread, t := range m.latest {
		rsp = append(rsp, threadRsp{
			Thread:    uint64(thread),
			Traversal: t.ID,
			Status:    t.Status.String(),
			Duration:  int64(t.Duration()),
			Spans:     t.Root.Count(),
			Anomalies: t.Anomalies.Total(),
		})
	}
	m.mu.RUnlock()

	slices.SortFunc(rsp, func(a, b threadRsp) int {
		switch {
		case a.Thread < b.Thread:
			return -1
		case a.Thread > b.Thread:
			return 1
		default:
			return 0
		}
	})

	writeJSON(w, rsp)
}

func (m *Monitor) traversalJSON(w http.ResponseWriter, r *http.Request) {
	t := m.findTraversalOr404(w, r)
	if t == nil {
		return
	}

	writeJSON(w, report.EncodeTraversal(t))
}

func (m *Monitor) traversalTree(w http.ResponseWriter, r *http.Request) {
	t := m.findTraversalOr404(w, r)
	if t == nil {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := w.Write([]byte(report.FormatTree(t)))
	dieOnErr(err)
}

func (m *Monitor) traversalDetail(w http.ResponseWriter, r *http.Request) {
	t := m.findTraversalOr404(w, r)
	if t == nil {
		return
	}

	depth := 3
	if s := r.URL.Query().Get("depth"); s != "" {
		d, err := strconv.Atoi(s)
		if err != nil || d < 1 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: invalid depth %q", s)
			return
		}

		depth = d
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(newTraversalDetail(t))
	serializer.SetMaxDepth(depth)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

// traversalDetail mirrors a traversal with the kinds the serializer can
// walk. Times are offsets from the start of the traversal.
type traversalDetail struct {
	ID        uint64
	Thread    uint64
	Status    string
	Anomalies map[string]uint32
	Root      *spanDetail
}

type spanDetail struct {
	Kind     string
	View     string
	StartNS  int64
	EndNS    int64
	Open     bool
	Flags    string
	Children []*spanDetail
}

func newTraversalDetail(t *span.Traversal) *traversalDetail {
	return &traversalDetail{
		ID:        t.ID,
		Thread:    t.Thread,
		Status:    t.Status.String(),
		Anomalies: countsToMap(t.Anomalies),
		Root:      newSpanDetail(t.Root, t.Root.Start),
	}
}

func newSpanDetail(s *span.Span, origin time.Time) *spanDetail {
	d := &spanDetail{
		Kind:    s.Kind.String(),
		View:    s.View.String(),
		StartNS: s.Start.Sub(origin).Nanoseconds(),
		Open:    s.IsOpen(),
		Flags:   s.Flags.String(),
	}

	if !d.Open {
		d.EndNS = s.End.Sub(origin).Nanoseconds()
	}

	for _, c := range s.Children {
		d.Children = append(d.Children, newSpanDetail(c, origin))
	}

	return d
}

type anomaliesRsp struct {
	Recorded map[string]uint32 `json:"recorded"`
	Detached map[string]uint32 `json:"detached,omitempty"`
}

func (m *Monitor) listAnomalies(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	recorded := m.anomalies
	m.mu.RUnlock()

	rsp := anomaliesRsp{Recorded: countsToMap(recorded)}

	if m.tracker != nil {
		rsp.Detached = countsToMap(m.tracker.AnomalyTotals())
	}

	writeJSON(w, rsp)
}

func countsToMap(counts span.AnomalyCounts) map[string]uint32 {
	out := make(map[string]uint32)

	for i := 0; i < span.NumAnomalyKinds; i++ {
		kind := span.AnomalyKind(i)
		out[kind.String()] = counts.Get(kind)
	}

	return out
}

func (m *Monitor) findTraversalOr404(
	w http.ResponseWriter,
	r *http.Request,
) *span.Traversal {
	thread, err := strconv.ParseUint(mux.Vars(r)["thread"], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, err = w.Write([]byte("Invalid thread id"))
		dieOnErr(err)

		return nil
	}

	t, ok := m.Latest(tracing.ThreadID(thread))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err = w.Write([]byte("Thread not found"))
		dieOnErr(err)

		return nil
	}

	return t
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

var (
	_ tracing.Sink = (*Monitor)(nil)
	_ hooking.Hook = (*Monitor)(nil)
)
