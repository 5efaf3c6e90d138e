// Package cmd provides the command-line interface of viewperf.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/viewperf/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "viewperf",
		Short: "viewperf measures the measure, layout and draw passes of a view tree.",
		Long: `viewperf turns begin/end events of a rendering pipeline into ` +
			`span trees. It can replay recorded event scripts through the ` +
			`tracker and inspect the traversals recorded in a SQLite database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadDotEnv(envFile)
		},
	}

	root.PersistentFlags().String("env-file", ".env",
		"Environment file loaded before the configuration")

	root.AddCommand(newReplayCmd())
	root.AddCommand(newInspectCmd())

	return root
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
