package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/analytics"
	"github.com/lucasnoah/garaklab/internal/config"
	"github.com/lucasnoah/garaklab/internal/db"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Query scan history analytics",
}

func openAnalyticsDB() (*db.DB, func(), error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return openDB(cfg)
}

var analyticsModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Per-model run counts, outcomes, and durations",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openAnalyticsDB()
		if err != nil {
			return err
		}
		defer cleanup()

		since, _ := cmd.Flags().GetString("since")
		stats, err := analytics.QueryModelStats(d, since)
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scan history yet.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-32s %6s %10s %9s %7s %9s %9s %9s\n",
			"MODEL", "RUNS", "COMPLETED", "CANCELED", "FAILED", "AVG RATE", "AVG MIN", "P95 MIN")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 100))
		for _, s := range stats {
			fmt.Fprintf(w, "%-32s %6d %10d %9d %7d %8.1f%% %9.1f %9.1f\n",
				s.Model, s.Runs, s.Completed, s.Canceled, s.Failed,
				s.AvgPassRate, s.AvgMinutes, s.P95Minutes)
		}
		return nil
	},
}

var analyticsProbesCmd = &cobra.Command{
	Use:   "probes",
	Short: "Pass rates per probe set",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openAnalyticsDB()
		if err != nil {
			return err
		}
		defer cleanup()

		since, _ := cmd.Flags().GetString("since")
		rates, err := analytics.QueryProbePassRates(d, since)
		if err != nil {
			return err
		}
		if len(rates) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scan history yet.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-48s %6s %9s %10s\n", "PROBES", "RUNS", "AVG RATE", "WORST RATE")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 78))
		for _, r := range rates {
			fmt.Fprintf(w, "%-48s %6d %8.1f%% %9.1f%%\n", r.Probes, r.Runs, r.AvgPassRate, r.WorstRate)
		}
		return nil
	},
}

var analyticsThroughputCmd = &cobra.Command{
	Use:   "throughput",
	Short: "Scans started and completed per week",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openAnalyticsDB()
		if err != nil {
			return err
		}
		defer cleanup()

		since, _ := cmd.Flags().GetString("since")
		weeks, err := analytics.QueryThroughput(d, since)
		if err != nil {
			return err
		}
		if len(weeks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scan history yet.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-10s %8s %10s %9s %7s\n", "WEEK", "STARTED", "COMPLETED", "CANCELED", "FAILED")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 50))
		for _, t := range weeks {
			fmt.Fprintf(w, "%-10s %8d %10d %9d %7d\n", t.Period, t.Started, t.Completed, t.Canceled, t.Failed)
		}
		return nil
	},
}

func init() {
	analyticsCmd.PersistentFlags().String("since", "", "Only include runs started on or after this date (YYYY-MM-DD)")

	analyticsCmd.AddCommand(analyticsModelsCmd)
	analyticsCmd.AddCommand(analyticsProbesCmd)
	analyticsCmd.AddCommand(analyticsThroughputCmd)
}
