package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/report"
	"github.com/lucasnoah/garaklab/internal/results"
)

var reportCmd = &cobra.Command{
	Use:   "report [report.jsonl]",
	Short: "Parse a garak JSONL report and print the summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser := report.NewJSONLParser()
		summary := parser.ParseReport(args[0])

		format, _ := cmd.Flags().GetString("format")
		w := cmd.OutOrStdout()
		switch format {
		case "json":
			data, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(data))
		case "csv":
			return results.ExportCSV(w, summary)
		default:
			if summary.TotalAttempts == 0 {
				fmt.Fprintln(w, "No attempts found in report.")
				return nil
			}
			printSummary(w, summary)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().String("format", "text", "Output format: text, json, or csv")
}
