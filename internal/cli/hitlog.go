package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/report"
)

var hitlogCmd = &cobra.Command{
	Use:   "hitlog [hitlog.jsonl]",
	Short: "Parse a garak hit log and print the failing attempts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser := report.NewJSONLParser()
		hits := parser.ParseHitlog(args[0])

		format, _ := cmd.Flags().GetString("format")
		w := cmd.OutOrStdout()
		if format == "json" {
			data, err := json.MarshalIndent(hits, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(data))
			return nil
		}

		if len(hits) == 0 {
			fmt.Fprintln(w, "No hits found.")
			return nil
		}
		full, _ := cmd.Flags().GetBool("full")
		for i, hit := range hits {
			fmt.Fprintf(w, "--- hit %d: %s / %s\n", i+1, hit.Probe, hit.Detector)
			fmt.Fprintf(w, "prompt: %s\n", oneLine(hit.Prompt, full))
			fmt.Fprintf(w, "output: %s\n\n", oneLine(hit.Output, full))
		}
		fmt.Fprintf(w, "%d hits total\n", len(hits))
		return nil
	},
}

func init() {
	hitlogCmd.Flags().String("format", "text", "Output format: text or json")
	hitlogCmd.Flags().Bool("full", false, "Print full prompts and outputs without truncation")
}

func oneLine(s string, full bool) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if !full && len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}
