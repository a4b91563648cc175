package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/lucasnoah/garaklab/internal/logging"
)

const (
	// MaxFileSize caps how large a report file the parser will read.
	MaxFileSize = 50 * 1024 * 1024

	// maxFieldLen bounds prompt/output text per attempt so an
	// adversarial report cannot balloon memory. Long values are
	// truncated, never rejected.
	maxFieldLen = 10_000

	validExtension = ".jsonl"
)

// JSONLParser reads garak's line-delimited JSON report and hitlog
// files. A missing, oversized, or otherwise invalid file is an
// expected run outcome and yields an empty result, not an error;
// malformed lines are skipped individually with a logged warning.
type JSONLParser struct {
	log *logrus.Entry
}

// NewJSONLParser creates a JSONLParser.
func NewJSONLParser() *JSONLParser {
	return &JSONLParser{log: logging.GetLogger().WithField("component", "report-parser")}
}

// Parse implements Parser; input is a report file path.
func (p *JSONLParser) Parse(input string) Summary {
	return p.ParseReport(input)
}

// ParseReport parses a .report.jsonl file into an aggregated Summary.
func (p *JSONLParser) ParseReport(path string) Summary {
	entries := p.readEntries(path)
	return aggregate(entries)
}

// ParseHitlog parses a hitlog file into the flat list of attempts it
// records. Hitlogs hold the subset of attempts garak flagged as
// discovered vulnerabilities, in the same line format as reports.
func (p *JSONLParser) ParseHitlog(path string) []Attempt {
	entries := p.readEntries(path)
	if len(entries) == 0 {
		return nil
	}
	attempts := make([]Attempt, 0, len(entries))
	for _, e := range entries {
		attempts = append(attempts, e.toAttempt())
	}
	return attempts
}

// validatePath rejects paths that do not resolve to a plausible report
// file: wrong extension, parent-directory traversal, missing, or past
// the size cap.
func (p *JSONLParser) validatePath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			p.log.WithField("path", path).Warn("rejecting path with parent traversal")
			return false
		}
	}
	if filepath.Ext(path) != validExtension {
		p.log.WithField("path", path).Warn("rejecting path with unexpected extension")
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		p.log.WithField("path", path).Debug("report file not found")
		return false
	}
	if info.IsDir() {
		return false
	}
	if info.Size() > MaxFileSize {
		p.log.WithFields(logrus.Fields{
			"path": path,
			"size": info.Size(),
		}).Warn("rejecting oversized report file")
		return false
	}
	return true
}

func (p *JSONLParser) readEntries(path string) []reportEntry {
	if !p.validatePath(path) {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		p.log.WithField("path", path).WithError(err).Warn("cannot open report file")
		return nil
	}
	defer f.Close()

	var entries []reportEntry
	rd := bufio.NewReader(f)
	lineNum := 0
	for {
		line, err := rd.ReadString('\n')
		if line != "" {
			lineNum++
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				var entry reportEntry
				if jsonErr := json.Unmarshal([]byte(trimmed), &entry); jsonErr != nil {
					p.log.WithFields(logrus.Fields{
						"path": path,
						"line": lineNum,
					}).Warn("skipping malformed JSON line")
				} else {
					entries = append(entries, entry)
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.log.WithField("path", path).WithError(err).Warn("stopped reading report file")
			}
			return entries
		}
	}
}

// reportEntry holds the recognized fields of one report line. Fields
// stay raw so a single ill-typed field degrades to its default instead
// of poisoning the whole line; unknown fields are ignored.
type reportEntry struct {
	Probe    json.RawMessage `json:"probe"`
	Detector json.RawMessage `json:"detector"`
	Status   json.RawMessage `json:"status"`
	Prompt   json.RawMessage `json:"prompt"`
	Output   json.RawMessage `json:"output"`
	Response json.RawMessage `json:"response"`
	Passed   json.RawMessage `json:"passed"`
	Score    json.RawMessage `json:"score"`
}

func (e reportEntry) toAttempt() Attempt {
	output := rawString(e.Output, "")
	if output == "" {
		output = rawString(e.Response, "")
	}
	return Attempt{
		Probe:    truncate(rawString(e.Probe, "")),
		Detector: truncate(rawString(e.Detector, "")),
		Status:   truncate(rawString(e.Status, "")),
		Prompt:   truncate(rawString(e.Prompt, "")),
		Output:   truncate(output),
		Passed:   rawBool(e.Passed),
		Score:    rawFloat(e.Score),
	}
}

// groupKey returns the aggregation key fields, defaulting absent
// probe/detector to "unknown".
func (e reportEntry) groupKey() (string, string) {
	return rawString(e.Probe, "unknown"), rawString(e.Detector, "unknown")
}

func aggregate(entries []reportEntry) Summary {
	type group struct {
		probe, detector string
		passed, failed  int
		attempts        []Attempt
	}
	groups := make(map[string]*group)
	var order []string

	for _, e := range entries {
		probe, detector := e.groupKey()
		key := probe + "|" + detector
		g, ok := groups[key]
		if !ok {
			g = &group{probe: probe, detector: detector}
			groups[key] = g
			order = append(order, key)
		}
		g.attempts = append(g.attempts, e.toAttempt())
		if passed := rawBool(e.Passed); passed != nil {
			if *passed {
				g.passed++
			} else {
				g.failed++
			}
		}
	}

	summary := Summary{ProbesRun: len(order)}
	for _, key := range order {
		g := groups[key]
		total := g.passed + g.failed
		summary.TotalPassed += g.passed
		summary.TotalFailed += g.failed
		summary.ByProbe = append(summary.ByProbe, ProbeSummary{
			Probe:    g.probe,
			Detector: g.detector,
			Total:    total,
			Passed:   g.passed,
			Failed:   g.failed,
			PassRate: rate(g.passed, total),
			Attempts: g.attempts,
		})
	}
	summary.TotalAttempts = summary.TotalPassed + summary.TotalFailed
	summary.PassRate = rate(summary.TotalPassed, summary.TotalAttempts)
	return summary
}

func rate(passed, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(passed) / float64(total)
}

// rawString coerces a raw JSON value to text: JSON strings decode,
// anything else non-null keeps its literal JSON rendering.
func rawString(raw json.RawMessage, def string) string {
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func rawBool(raw json.RawMessage) *bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	return &b
}

func rawFloat(raw json.RawMessage) *float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// truncate cuts s to at most maxFieldLen bytes, backing off to a rune
// boundary so the result stays valid UTF-8.
func truncate(s string) string {
	if len(s) <= maxFieldLen {
		return s
	}
	cut := maxFieldLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
