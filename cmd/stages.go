package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/storepulse/storepulse/internal/engine"
	"github.com/storepulse/storepulse/internal/state"
	"github.com/storepulse/storepulse/internal/target"
)

var stageDescriptions = map[state.Stage]string{
	state.StageIngest:    "Read raw extracts with retries and write the bronze tables",
	state.StageClean:     "Deduplicate, quarantine and normalize into the silver tables",
	state.StageFacts:     "Build fact_sales and fact_inventory",
	state.StageSCD:       "Apply customer updates to the type-2 customer dimension",
	state.StageAggregate: "Compute the gold KPI tables",
	state.StageExport:    "Write the fact tables as partitioned Parquet (and S3)",
	state.StagePublish:   "Replace engine-owned tables in the configured sinks",
}

func stageCommand(stage state.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   string(stage),
		Short: stageDescriptions[stage],
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var sinks []target.Sink
			if stage == state.StagePublish {
				sinks, err = e.OpenSinks(ctx)
				if err != nil {
					return fmt.Errorf("connecting to sinks: %w", err)
				}
				defer engine.CloseSinks(context.Background(), sinks)
			}

			res, err := e.RunStage(ctx, stage, sinks)
			if err != nil {
				return fmt.Errorf("%s failed: %w", stage, err)
			}
			printStageResult(stage, res)
			return nil
		},
	}
}

func printStageResult(stage state.Stage, res *engine.StageResult) {
	if res == nil {
		fmt.Printf("%s: skipped (not configured)\n", stage)
		return
	}
	fmt.Printf("%s: complete\n", stage)

	keys := make([]string, 0, len(res.Counts))
	for k := range res.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-28s %d\n", k, res.Counts[k])
	}
	for _, t := range res.Tables {
		fmt.Printf("  wrote %-28s %6d rows  %s\n", t.Name, t.Rows, t.Path)
	}
}

func init() {
	for _, stage := range state.Stages() {
		rootCmd.AddCommand(stageCommand(stage))
	}
}
