package report

// Attempt is one parsed row of garak output. Passed is nil when the
// entry carried no boolean verdict; such attempts count toward neither
// passed nor failed totals.
type Attempt struct {
	Probe    string   `json:"probe"`
	Detector string   `json:"detector"`
	Status   string   `json:"status"`
	Prompt   string   `json:"prompt"`
	Output   string   `json:"output"`
	Passed   *bool    `json:"passed"`
	Score    *float64 `json:"score"`
}

// ProbeSummary aggregates the attempts sharing one (probe, detector)
// pair.
type ProbeSummary struct {
	Probe    string    `json:"probe"`
	Detector string    `json:"detector"`
	Total    int       `json:"total"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	PassRate float64   `json:"pass_rate"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Summary is the run-level aggregate. It is built fresh on every parse
// and read-only afterwards; ByProbe preserves first-seen order.
type Summary struct {
	TotalAttempts int            `json:"total_attempts"`
	TotalPassed   int            `json:"total_passed"`
	TotalFailed   int            `json:"total_failed"`
	PassRate      float64        `json:"pass_rate"`
	ProbesRun     int            `json:"probes_run"`
	ByProbe       []ProbeSummary `json:"by_probe,omitempty"`
}

// Parser converts one run artifact (a report file path or raw console
// text, depending on the implementation) into a Summary. The stdout
// fallback sits behind the same interface as the JSONL parser so call
// sites never branch on the artifact kind.
type Parser interface {
	Parse(input string) Summary
}
