package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/lucasnoah/garaklab/internal/report"
)

// ExportCSV writes every attempt in the summary as one CSV row.
// Attempts with no boolean verdict render as "unknown".
func ExportCSV(w io.Writer, summary report.Summary) error {
	cw := csv.NewWriter(w)
	header := []string{"probe", "detector", "status", "passed", "score", "prompt", "output"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, group := range summary.ByProbe {
		for _, a := range group.Attempts {
			passed := "unknown"
			if a.Passed != nil {
				passed = strconv.FormatBool(*a.Passed)
			}
			score := ""
			if a.Score != nil {
				score = strconv.FormatFloat(*a.Score, 'f', -1, 64)
			}
			row := []string{a.Probe, a.Detector, a.Status, passed, score, a.Prompt, a.Output}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes the summary as pretty-printed JSON to path.
func ExportJSON(path string, summary report.Summary) error {
	return WriteJSON(path, summary)
}
