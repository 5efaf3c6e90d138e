package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sarchlab/viewperf/analysis"
	"github.com/sarchlab/viewperf/config"
	"github.com/sarchlab/viewperf/datarecording"
	"github.com/sarchlab/viewperf/logging"
	"github.com/sarchlab/viewperf/monitoring"
	"github.com/sarchlab/viewperf/replay"
	"github.com/sarchlab/viewperf/report"
	"github.com/sarchlab/viewperf/span"
	"github.com/sarchlab/viewperf/tracing"
)

type replayOptions struct {
	parallel bool
	summary  bool
	monitor  bool
}

func newReplayCmd() *cobra.Command {
	var opts replayOptions

	v := config.NewViper()

	c := &cobra.Command{
		Use:   "replay <script>",
		Short: "Replay an event script through the span tracker.",
		Long: "`replay <script>` feeds the begin/end events of the script to " +
			"the tracker and reports every sealed traversal.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")

			cfg, err := config.LoadFrom(v, configFile)
			if err != nil {
				return err
			}

			return runReplay(cmd.Context(), cmd, cfg, opts, args[0])
		},
	}

	flags := c.Flags()
	flags.String("config", "", "Configuration file")
	flags.String("format", config.FormatTree,
		"Report format, one of tree, views, json and none")
	flags.String("json-out", "",
		"Also write traversals as JSON lines to a file, given as --json-out=FILE")
	flags.Lookup("json-out").NoOptDefVal = config.AutoJSONPath
	flags.String("record", "", "Record traversals into this SQLite database")
	flags.Int("max-depth", tracing.DefaultMaxDepth,
		"Maximum number of open spans per thread")
	flags.Bool("open", false, "Open the monitor in a browser")
	flags.BoolVar(&opts.parallel, "parallel", false,
		"Replay each thread on its own goroutine with the wall clock")
	flags.BoolVar(&opts.summary, "summary", false,
		"Print step time statistics at the end")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"Serve the traversals over HTTP until interrupted")

	mustBind(v, "report.format", c, "format")
	mustBind(v, "report.json_path", c, "json-out")
	mustBind(v, "record.path", c, "record")
	mustBind(v, "tracking.max_depth", c, "max-depth")
	mustBind(v, "monitor.open_browser", c, "open")

	return c
}

func mustBind(v *viper.Viper, key string, c *cobra.Command, flag string) {
	if err := v.BindPFlag(key, c.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// pipeline holds the sinks built for one replay.
type pipeline struct {
	sink     tracing.Sink
	async    *report.AsyncSink
	recorder *datarecording.TraversalRecorder
	steps    *analysis.StepTimeTracer
	monitor  *monitoring.Monitor
}

func buildPipeline(
	cmd *cobra.Command,
	cfg *config.Config,
	opts replayOptions,
) *pipeline {
	p := &pipeline{}

	var sinks []tracing.Sink

	switch cfg.Report.Format {
	case config.FormatTree, config.FormatViews:
		format := report.LogTree
		if cfg.Report.Format == config.FormatViews {
			format = report.LogViews
		}

		logger := logging.New(cmd.ErrOrStderr(),
			cfg.Report.LogLevel, cfg.Report.LogFormat)
		sinks = append(sinks, report.MakeLogSinkBuilder().
			WithLogger(logger).
			WithFormat(format).
			WithThresholds(report.Thresholds{
				Info:  cfg.Report.InfoThreshold,
				Warn:  cfg.Report.WarnThreshold,
				Error: cfg.Report.ErrorThreshold,
			}).
			WithSegmentSize(cfg.Report.SegmentSize).
			Build())
	case config.FormatJSON:
		sinks = append(sinks, report.NewJSONSink(cmd.OutOrStdout()))
	}

	if cfg.Report.JSONPath != "" {
		path := cfg.Report.JSONPath
		if path == config.AutoJSONPath {
			path = ""
		}

		sinks = append(sinks, report.NewJSONFileSink(path))
	}

	if cfg.Record.Path != "" {
		p.recorder = datarecording.NewTraversalRecorder(
			datarecording.New(cfg.Record.Path))
		sinks = append(sinks, p.recorder)
	}

	if opts.summary {
		p.steps = analysis.NewStepTimeTracer()
		sinks = append(sinks, p.steps)
	}

	if opts.monitor {
		p.monitor = monitoring.NewMonitor().WithPortNumber(cfg.Monitor.Port)
		sinks = append(sinks, p.monitor)
	}

	p.sink = report.NewMultiSink(sinks...)

	if cfg.Async.QueueSize > 0 {
		p.async = report.NewAsyncSink(p.sink, cfg.Async.QueueSize)
		p.sink = p.async
	}

	return p
}

// close waits for the queued traversals and flushes the recorder.
func (p *pipeline) close() error {
	if p.async != nil {
		p.async.Close()
	}

	if p.recorder != nil {
		return p.recorder.Close()
	}

	return nil
}

func runReplay(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	opts replayOptions,
	scriptPath string,
) error {
	f, err := os.Open(scriptPath)
	if err != nil {
		return errors.Wrap(err, "opening script")
	}
	defer f.Close()

	events, err := replay.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", scriptPath)
	}

	p := buildPipeline(cmd, cfg, opts)

	builder := tracing.MakeBuilder().
		WithSink(p.sink).
		WithMaxDepth(cfg.Tracking.MaxDepth).
		WithAbortedDelivery(cfg.Tracking.DeliverAborted)

	if p.monitor != nil {
		builder = builder.WithHook(p.monitor)
	}

	if opts.parallel {
		tracker := builder.Build()
		err = replay.RunParallel(ctx, tracker, events)
		if err != nil {
			_ = p.close()
			return err
		}

		return finishReplay(ctx, cmd, cfg, p, tracker)
	}

	clock := tracing.NewManualClock(time.Now())
	tracker := builder.WithTimeTeller(clock).Build()
	replay.Run(tracker, clock, events)

	return finishReplay(ctx, cmd, cfg, p, tracker)
}

func finishReplay(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	p *pipeline,
	tracker *tracing.Tracker,
) error {
	if err := p.close(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if p.steps != nil {
		printStepSummary(out, p.steps, tracker.AnomalyTotals())
	}

	if p.async != nil && p.async.Dropped() > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"%d traversals were dropped by the async queue\n", p.async.Dropped())
	}

	if p.monitor == nil {
		return nil
	}

	p.monitor.RegisterTracker(tracker)
	url := p.monitor.StartServer()

	if cfg.Monitor.OpenBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Cannot open browser: %s\n", err)
		}
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl+C to exit")
	<-ctx.Done()

	return nil
}

func printStepSummary(
	w io.Writer,
	steps *analysis.StepTimeTracer,
	detached span.AnomalyCounts,
) {
	fmt.Fprintf(w, "traversals: completed=%d aborted=%d\n",
		steps.TraversalCount(span.StatusCompleted),
		steps.TraversalCount(span.StatusAborted))
	fmt.Fprintf(w, "detached anomalies: %s\n", detached.String())

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Step", "Count", "Total", "Avg", "P50", "P90", "P99", "Max"})

	rows := append([]analysis.StepStats{steps.TraversalStats()},
		steps.AllStepStats()...)
	for _, s := range rows {
		table.Append([]string{
			s.Kind.String(),
			fmt.Sprintf("%d", s.Count),
			s.Total.String(),
			s.Average.String(),
			s.P50.String(),
			s.P90.String(),
			s.P99.String(),
			s.Max.String(),
		})
	}

	table.Render()
}
