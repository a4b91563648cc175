package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/results"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Manage saved scan summaries",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openResultsStore()
		if err != nil {
			return err
		}
		ids, err := store.List()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved runs.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show a saved run's summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openResultsStore()
		if err != nil {
			return err
		}
		run, err := store.Load(args[0])
		if err != nil {
			return fmt.Errorf("load run %q: %w", args[0], err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run:     %s\n", run.RunID)
		fmt.Fprintf(w, "Model:   %s / %s\n", run.ModelType, run.ModelName)
		fmt.Fprintf(w, "Saved:   %s\n", run.SavedAt)
		if run.ReportPath != "" {
			fmt.Fprintf(w, "Report:  %s\n", run.ReportPath)
		}
		if run.FromStdout {
			fmt.Fprintf(w, "Source:  console output (no JSONL report)\n")
		}
		fmt.Fprintln(w)
		printSummary(w, run.Summary)
		return nil
	},
}

var resultsExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Export a saved run as CSV or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openResultsStore()
		if err != nil {
			return err
		}
		run, err := store.Load(args[0])
		if err != nil {
			return fmt.Errorf("load run %q: %w", args[0], err)
		}

		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		switch format {
		case "csv":
			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if err := results.ExportCSV(out, run.Summary); err != nil {
				return err
			}
		case "json":
			if outPath != "" {
				if err := results.ExportJSON(outPath, run.Summary); err != nil {
					return err
				}
			} else {
				data, err := json.MarshalIndent(run.Summary, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}
		default:
			return fmt.Errorf("unknown format %q (want csv or json)", format)
		}

		if outPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", run.RunID, outPath)
		}
		return nil
	},
}

var resultsDeleteCmd = &cobra.Command{
	Use:   "delete [run-id]",
	Short: "Delete a saved run summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openResultsStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return fmt.Errorf("delete run %q: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	resultsExportCmd.Flags().String("format", "csv", "Export format: csv or json")
	resultsExportCmd.Flags().String("out", "", "Write to this file instead of stdout")

	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsExportCmd)
	resultsCmd.AddCommand(resultsDeleteCmd)
}
