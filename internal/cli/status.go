package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/config"
	"github.com/lucasnoah/garaklab/internal/db"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent scan runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadDefault()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		d, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := d.ListScanRuns(limit)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(runs, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scan runs found.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-32s %-24s %-10s %8s %7s %9s\n", "RUN", "MODEL", "OUTCOME", "ATTEMPTS", "FAILED", "RATE")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 96))
		for i := range runs {
			run := &runs[i]
			rate := ""
			if run.TotalAttempts > 0 {
				rate = fmt.Sprintf("%.1f%%", run.PassRate*100)
			}
			fmt.Fprintf(w, "%-32s %-24s %-10s %8d %7d %9s\n",
				run.RunID, run.ModelName, outcomeLabel(run), run.TotalAttempts, run.TotalFailed, rate)
		}
		return nil
	},
}

func outcomeLabel(run *db.ScanRun) string {
	switch {
	case run.FinishedAt == "":
		return "running"
	case run.Canceled:
		return "canceled"
	case run.TimedOut:
		return "timed_out"
	case run.Success:
		return "completed"
	default:
		return "failed"
	}
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or json")
	statusCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
}
