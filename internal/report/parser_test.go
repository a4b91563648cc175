package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func writeReport(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseReportAggregates(t *testing.T) {
	path := writeReport(t, "run.report.jsonl",
		`{"probe":"dan.Dan_11_0","detector":"mitigation.MitigationBypass","passed":false,"prompt":"p1","output":"o1"}`,
		`{"probe":"dan.Dan_11_0","detector":"mitigation.MitigationBypass","passed":true,"prompt":"p2","output":"o2"}`,
		`{"probe":"encoding.Base64","detector":"encoding.DecodeMatch","passed":true,"prompt":"p3","output":"o3"}`,
		`{"probe":"encoding.Base64","detector":"encoding.DecodeMatch","passed":true,"prompt":"p4","output":"o4"}`,
	)

	s := NewJSONLParser().ParseReport(path)

	if s.TotalAttempts != 4 || s.TotalPassed != 3 || s.TotalFailed != 1 {
		t.Errorf("totals = %d/%d/%d, want 4/3/1", s.TotalAttempts, s.TotalPassed, s.TotalFailed)
	}
	if s.PassRate != 0.75 {
		t.Errorf("PassRate = %v, want 0.75", s.PassRate)
	}
	if s.ProbesRun != 2 {
		t.Errorf("ProbesRun = %d, want 2", s.ProbesRun)
	}
	if len(s.ByProbe) != 2 {
		t.Fatalf("ByProbe groups = %d, want 2", len(s.ByProbe))
	}
	dan := s.ByProbe[0]
	if dan.Probe != "dan.Dan_11_0" || dan.Detector != "mitigation.MitigationBypass" {
		t.Errorf("first group = %s/%s, want first-seen order", dan.Probe, dan.Detector)
	}
	if dan.Passed != 1 || dan.Failed != 1 || dan.PassRate != 0.5 {
		t.Errorf("dan group = %+v", dan)
	}
	if len(dan.Attempts) != 2 {
		t.Errorf("dan attempts = %d, want 2", len(dan.Attempts))
	}
}

func TestParseReportSkipsMalformedLines(t *testing.T) {
	path := writeReport(t, "mixed.report.jsonl",
		`{"probe":"dan.Dan_11_0","detector":"d","passed":true}`,
		`this is not json at all {{{`,
		``,
		`{"probe":"dan.Dan_11_0","detector":"d","passed":false}`,
	)

	s := NewJSONLParser().ParseReport(path)
	if s.TotalAttempts != 2 || s.TotalPassed != 1 || s.TotalFailed != 1 {
		t.Errorf("totals = %d/%d/%d, want 2/1/1", s.TotalAttempts, s.TotalPassed, s.TotalFailed)
	}
}

func TestParseReportVerdictlessEntries(t *testing.T) {
	path := writeReport(t, "setup.report.jsonl",
		`{"entry_type":"start_run setup","garak_version":"0.10.2"}`,
		`{"probe":"dan.Dan_11_0","detector":"d","passed":true}`,
	)

	s := NewJSONLParser().ParseReport(path)
	// The setup line groups under unknown/unknown but carries no
	// verdict, so it adds a probe group without attempts.
	if s.TotalAttempts != 1 || s.TotalPassed != 1 {
		t.Errorf("totals = %d passed %d, want 1/1", s.TotalAttempts, s.TotalPassed)
	}
	if s.ProbesRun != 2 {
		t.Errorf("ProbesRun = %d, want 2", s.ProbesRun)
	}
	if s.ByProbe[0].Probe != "unknown" || s.ByProbe[0].Total != 0 {
		t.Errorf("verdictless group = %+v", s.ByProbe[0])
	}
}

func TestParseReportIllTypedFields(t *testing.T) {
	path := writeReport(t, "weird.report.jsonl",
		`{"probe":123,"detector":["a"],"passed":"yes","score":"high","prompt":null}`,
	)

	s := NewJSONLParser().ParseReport(path)
	if s.ProbesRun != 1 {
		t.Fatalf("ProbesRun = %d, want 1", s.ProbesRun)
	}
	g := s.ByProbe[0]
	if g.Probe != "123" {
		t.Errorf("numeric probe coerced to %q, want literal rendering", g.Probe)
	}
	// "yes" is not a JSON bool, so the attempt has no verdict.
	if s.TotalAttempts != 0 {
		t.Errorf("TotalAttempts = %d, want 0", s.TotalAttempts)
	}
	a := g.Attempts[0]
	if a.Passed != nil {
		t.Errorf("Passed = %v, want nil", *a.Passed)
	}
	if a.Score != nil {
		t.Errorf("Score = %v, want nil", *a.Score)
	}
	if a.Prompt != "" {
		t.Errorf("null prompt = %q, want empty", a.Prompt)
	}
}

func TestParseReportTruncatesLongFields(t *testing.T) {
	long := strings.Repeat("A", maxFieldLen+500)
	path := writeReport(t, "long.report.jsonl",
		`{"probe":"dan.Dan_11_0","detector":"d","passed":false,"output":"`+long+`"}`,
	)

	s := NewJSONLParser().ParseReport(path)
	got := s.ByProbe[0].Attempts[0].Output
	if len(got) != maxFieldLen {
		t.Errorf("output length = %d, want %d", len(got), maxFieldLen)
	}
}

func TestParseReportTruncatesOnRuneBoundary(t *testing.T) {
	// Three-byte runes that do not divide maxFieldLen evenly, so a raw
	// byte cut would land mid-rune.
	long := strings.Repeat("界", maxFieldLen/3+100)
	path := writeReport(t, "utf8.report.jsonl",
		`{"probe":"dan.Dan_11_0","detector":"d","passed":false,"prompt":"`+long+`"}`,
	)

	s := NewJSONLParser().ParseReport(path)
	got := s.ByProbe[0].Attempts[0].Prompt
	if len(got) > maxFieldLen {
		t.Errorf("prompt length = %d, want <= %d", len(got), maxFieldLen)
	}
	if !utf8.ValidString(got) {
		t.Error("truncated prompt is not valid UTF-8")
	}
	if !strings.HasPrefix(long, got) {
		t.Error("truncated prompt is not a prefix of the original")
	}
}

func TestParseReportResponseFallback(t *testing.T) {
	path := writeReport(t, "resp.report.jsonl",
		`{"probe":"p","detector":"d","passed":true,"response":"model said this"}`,
	)
	s := NewJSONLParser().ParseReport(path)
	if got := s.ByProbe[0].Attempts[0].Output; got != "model said this" {
		t.Errorf("Output = %q, want response fallback", got)
	}
}

func TestParseReportEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.report.jsonl")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewJSONLParser().ParseReport(path)
	if s.TotalAttempts != 0 || s.ProbesRun != 0 || s.PassRate != 0 {
		t.Errorf("empty file summary = %+v, want zero", s)
	}
}

func TestParseReportRejectsBadPaths(t *testing.T) {
	p := NewJSONLParser()

	dir := t.TempDir()
	real := filepath.Join(dir, "real.report.jsonl")
	if err := os.WriteFile(real, []byte(`{"probe":"p","passed":true}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		path string
	}{
		{"nonexistent", filepath.Join(dir, "missing.report.jsonl")},
		{"wrong extension", filepath.Join(dir, "report.txt")},
		// Built by hand: filepath.Join would clean the ".." away.
		{"parent traversal", dir + "/../" + filepath.Base(dir) + "/real.report.jsonl"},
		{"directory", dir},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := p.ParseReport(tc.path)
			if s.TotalAttempts != 0 || s.ProbesRun != 0 {
				t.Errorf("expected empty summary for %q, got %+v", tc.path, s)
			}
		})
	}

	// Sanity: the non-traversal spelling of the same file does parse.
	if s := p.ParseReport(real); s.TotalAttempts != 1 {
		t.Errorf("control file did not parse: %+v", s)
	}
}

func TestParseReportRejectsOversizedFile(t *testing.T) {
	if testing.Short() {
		t.Skip("writes a >50MB file")
	}
	path := filepath.Join(t.TempDir(), "huge.report.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxFileSize + 1); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if s := NewJSONLParser().ParseReport(path); s.TotalAttempts != 0 {
		t.Errorf("oversized file parsed: %+v", s)
	}
}

func TestParseHitlog(t *testing.T) {
	path := writeReport(t, "run.hitlog.jsonl",
		`{"probe":"dan.Dan_11_0","detector":"d","passed":false,"prompt":"jailbreak attempt","output":"bad reply","score":0.9}`,
		`{"probe":"encoding.Base64","detector":"d2","passed":false,"prompt":"encoded","output":"decoded"}`,
	)

	hits := NewJSONLParser().ParseHitlog(path)
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	h := hits[0]
	if h.Probe != "dan.Dan_11_0" || h.Prompt != "jailbreak attempt" || h.Output != "bad reply" {
		t.Errorf("first hit = %+v", h)
	}
	if h.Score == nil || *h.Score != 0.9 {
		t.Errorf("Score = %v, want 0.9", h.Score)
	}
	if h.Passed == nil || *h.Passed {
		t.Errorf("Passed = %v, want false", h.Passed)
	}
}

func TestParseHitlogMissingFile(t *testing.T) {
	hits := NewJSONLParser().ParseHitlog(filepath.Join(t.TempDir(), "none.hitlog.jsonl"))
	if hits != nil {
		t.Errorf("hits = %v, want nil", hits)
	}
}

func TestParseReportNoTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.report.jsonl")
	line := `{"probe":"p","detector":"d","passed":true}`
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
	if s := NewJSONLParser().ParseReport(path); s.TotalAttempts != 1 {
		t.Errorf("final unterminated line dropped: %+v", s)
	}
}
