package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sarchlab/viewperf/datarecording"
)

type inspectOptions struct {
	top    int
	plot   bool
	height int
	width  int
}

func newInspectCmd() *cobra.Command {
	var opts inspectOptions

	c := &cobra.Command{
		Use:   "inspect <db>",
		Short: "Summarize the traversals recorded in a SQLite database.",
		Long: "`inspect <db>` prints the time spent in each kind of step, the " +
			"slowest traversals and a plot of traversal durations.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := datarecording.OpenTraversalReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			return runInspect(cmd.Context(), cmd.OutOrStdout(), reader, opts)
		},
	}

	flags := c.Flags()
	flags.IntVar(&opts.top, "top", 10, "Number of slowest traversals to list")
	flags.BoolVar(&opts.plot, "plot", true, "Plot the traversal durations")
	flags.IntVar(&opts.height, "height", 10, "Height of the plot")
	flags.IntVar(&opts.width, "width", 0,
		"Width of the plot, zero for one column per traversal")

	return c
}

func runInspect(
	ctx context.Context,
	w io.Writer,
	reader *datarecording.TraversalReader,
	opts inspectOptions,
) error {
	totals, err := reader.KindTotals(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Steps")
	printKindTotals(w, totals)

	slowest, total, err := reader.Traversals(ctx, datarecording.QueryParams{
		OrderBy: "DurationNS DESC, ID",
		Limit:   opts.top,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nSlowest traversals (%d recorded)\n", total)
	printTraversals(w, slowest)

	if !opts.plot {
		return nil
	}

	all, _, err := reader.Traversals(ctx, datarecording.QueryParams{
		OrderBy: "StartNS, ID",
	})
	if err != nil {
		return err
	}

	if len(all) < 2 {
		return nil
	}

	values := make([]float64, 0, len(all))
	for _, t := range all {
		values = append(values,
			float64(t.DurationNS)/float64(time.Millisecond))
	}

	graphOpts := []asciigraph.Option{
		asciigraph.Height(opts.height),
		asciigraph.Caption("traversal duration (ms)"),
	}
	if opts.width > 0 {
		graphOpts = append(graphOpts, asciigraph.Width(opts.width))
	}

	fmt.Fprintf(w, "\n%s\n", asciigraph.Plot(values, graphOpts...))

	return nil
}

func printKindTotals(w io.Writer, totals []datarecording.KindTotal) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Step", "Count", "Total", "Avg", "Max", "Unfinished"})

	for _, k := range totals {
		table.Append([]string{
			k.Kind,
			strconv.FormatInt(k.Count, 10),
			time.Duration(k.TotalNS).String(),
			time.Duration(k.AverageNS).String(),
			time.Duration(k.MaxNS).String(),
			strconv.FormatInt(k.Unfinished, 10),
		})
	}

	table.Render()
}

func printTraversals(w io.Writer, traversals []datarecording.TraversalEntry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"ID", "Thread", "Status", "Root", "Duration", "Spans", "Anomalies",
	})

	for _, t := range traversals {
		table.Append([]string{
			strconv.FormatInt(t.ID, 10),
			strconv.FormatInt(t.Thread, 10),
			t.Status,
			t.RootView,
			time.Duration(t.DurationNS).String(),
			strconv.FormatInt(t.SpanCount, 10),
			t.Detail,
		})
	}

	table.Render()
}
