package report

import "strings"

// StdoutDetector is the detector placeholder for summaries scraped
// from console text, which carries no detector field.
const StdoutDetector = "(from stdout)"

// StdoutParser scrapes pass/fail verdicts out of garak's console
// output. It is the fallback for runs that produced no JSONL artifact
// (older garak, crash before the report was written). The match is a
// substring heuristic tied to garak's current console format. It sits
// behind the same Parser interface as the JSONL parser so it can be
// swapped without touching call sites.
type StdoutParser struct{}

// NewStdoutParser creates a StdoutParser.
func NewStdoutParser() *StdoutParser {
	return &StdoutParser{}
}

// Parse implements Parser; input is captured console text. Lines of
// the form "<name>: PASS (…)" or "<name>: FAIL (…)" are tallied per
// probe name; everything else is ignored.
func (p *StdoutParser) Parse(input string) Summary {
	type tally struct {
		probe          string
		passed, failed int
	}
	tallies := make(map[string]*tally)
	var order []string

	for _, raw := range strings.Split(input, "\n") {
		line := strings.TrimSpace(raw)
		if !strings.Contains(line, ": PASS") && !strings.Contains(line, ": FAIL") {
			continue
		}
		name, verdict, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		isPass := strings.HasPrefix(strings.TrimSpace(verdict), "PASS")

		t, ok := tallies[name]
		if !ok {
			t = &tally{probe: name}
			tallies[name] = t
			order = append(order, name)
		}
		if isPass {
			t.passed++
		} else {
			t.failed++
		}
	}

	summary := Summary{ProbesRun: len(order)}
	for _, name := range order {
		t := tallies[name]
		total := t.passed + t.failed
		summary.TotalPassed += t.passed
		summary.TotalFailed += t.failed
		summary.ByProbe = append(summary.ByProbe, ProbeSummary{
			Probe:    t.probe,
			Detector: StdoutDetector,
			Total:    total,
			Passed:   t.passed,
			Failed:   t.failed,
			PassRate: rate(t.passed, total),
		})
	}
	summary.TotalAttempts = summary.TotalPassed + summary.TotalFailed
	summary.PassRate = rate(summary.TotalPassed, summary.TotalAttempts)
	return summary
}
