package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/engine"
	"github.com/storepulse/storepulse/internal/report"
	"github.com/storepulse/storepulse/internal/state"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outcome of the last run and each stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := state.Load("")
		if err != nil {
			return fmt.Errorf("loading state: %w", err)
		}

		fmt.Println(titleStyle.Render("StorePulse status"))
		fmt.Println()
		if st.LastRunID == "" {
			fmt.Println(dimStyle.Render("No pipeline run recorded yet."))
		} else {
			fmt.Printf("Last run:  %s  %s\n", st.LastRunID, styleStatus(st.LastRunStatus))
			if !st.LastRunFinished.IsZero() {
				fmt.Printf("Finished:  %s (%s)\n", st.LastRunFinished.Format("2006-01-02 15:04:05"),
					st.LastRunFinished.Sub(st.LastRunStarted).Round(time.Millisecond))
			}
		}
		fmt.Println()

		for _, stage := range state.Stages() {
			ss, ok := st.Stages[stage]
			if !ok {
				fmt.Printf("  %-10s %s\n", stage, dimStyle.Render("never run"))
				continue
			}
			line := fmt.Sprintf("  %-10s %s", stage, styleStatus(ss.Status))
			if ss.Rows > 0 {
				line += dimStyle.Render(fmt.Sprintf("  %d rows", ss.Rows))
			}
			if !ss.CompletedAt.IsZero() {
				line += dimStyle.Render("  " + ss.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Println(line)
			if ss.Error != "" {
				fmt.Println("             " + errStyle.Render(ss.Error))
			}
		}

		path := filepath.Join(config.ExpandHome(cfg.Data.Directory), engine.ReportFile)
		rep, err := report.ReadJSON(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil
		case err != nil:
			return err
		}
		fmt.Println()
		fmt.Printf("Report:    %s\n", path)
		if rep.Validation != nil {
			fmt.Printf("History:   %s\n", styleStatus(rep.Validation.Status))
		}
		return nil
	},
}

func styleStatus(status string) string {
	switch status {
	case state.StatusComplete, "PASS":
		return successStyle.Render(status)
	case state.StatusFailed, "FAIL":
		return errStyle.Render(status)
	case state.StatusRunning, state.StatusSkipped:
		return warnStyle.Render(status)
	}
	return status
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
