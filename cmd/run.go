package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storepulse/storepulse/internal/engine"
	"github.com/storepulse/storepulse/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Long: `Run ingest, clean, facts, scd, aggregate, export and publish in order.
The run stops at the first failing stage. A run report is written to the
data directory either way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		sinks, err := e.OpenSinks(ctx)
		if err != nil {
			return fmt.Errorf("connecting to sinks: %w", err)
		}
		defer engine.CloseSinks(context.Background(), sinks)

		rep, err := e.Run(ctx, sinks)
		if rep != nil {
			fmt.Print(report.FormatText(rep))
		}
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
