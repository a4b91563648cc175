package results

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasnoah/garaklab/internal/report"
)

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV(&buf, sampleSummary()); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 attempts", len(rows))
	}
	if rows[0][0] != "probe" || rows[0][3] != "passed" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "dan.Dan_11_0" || rows[1][3] != "true" {
		t.Errorf("first attempt row = %v", rows[1])
	}
	if rows[2][3] != "false" || rows[2][5] != "p2" {
		t.Errorf("second attempt row = %v", rows[2])
	}
}

func TestExportCSVVerdictlessAttempt(t *testing.T) {
	score := 0.25
	s := report.Summary{ByProbe: []report.ProbeSummary{{
		Probe: "p",
		Attempts: []report.Attempt{
			{Probe: "p", Score: &score},
		},
	}}}

	var buf bytes.Buffer
	if err := ExportCSV(&buf, s); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if rows[1][3] != "unknown" {
		t.Errorf("passed column = %q, want unknown", rows[1][3])
	}
	if rows[1][4] != "0.25" {
		t.Errorf("score column = %q, want 0.25", rows[1][4])
	}
}

func TestExportCSVQuotesHostileFields(t *testing.T) {
	s := report.Summary{ByProbe: []report.ProbeSummary{{
		Probe: "p",
		Attempts: []report.Attempt{
			{Probe: "p", Prompt: "line one\nline two, with comma", Output: `he said "quote"`},
		},
	}}}

	var buf bytes.Buffer
	if err := ExportCSV(&buf, s); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("csv mangled by embedded newline/comma/quote: %v", err)
	}
	if rows[1][5] != "line one\nline two, with comma" {
		t.Errorf("prompt = %q", rows[1][5])
	}
	if rows[1][6] != `he said "quote"` {
		t.Errorf("output = %q", rows[1][6])
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.json")
	if err := ExportJSON(path, sampleSummary()); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var got report.Summary
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.TotalAttempts != 2 || got.PassRate != 0.5 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestWriteAtomicReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	if err := WriteAtomic(path, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := WriteAtomic(path, []byte("new")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("content = %q, want new", data)
	}
}
