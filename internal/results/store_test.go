package results

import (
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/lucasnoah/garaklab/internal/report"
)

func sampleSummary() report.Summary {
	passed := true
	failed := false
	return report.Summary{
		TotalAttempts: 2,
		TotalPassed:   1,
		TotalFailed:   1,
		PassRate:      0.5,
		ProbesRun:     1,
		ByProbe: []report.ProbeSummary{{
			Probe:    "dan.Dan_11_0",
			Detector: "mitigation.MitigationBypass",
			Total:    2,
			Passed:   1,
			Failed:   1,
			PassRate: 0.5,
			Attempts: []report.Attempt{
				{Probe: "dan.Dan_11_0", Detector: "mitigation.MitigationBypass", Passed: &passed, Prompt: "p1", Output: "o1"},
				{Probe: "dan.Dan_11_0", Detector: "mitigation.MitigationBypass", Passed: &failed, Prompt: "p2", Output: "o2"},
			},
		}},
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	run := SavedRun{
		RunID:     "20260829_120000_gpt2",
		ModelType: "huggingface",
		ModelName: "gpt2",
		Probes:    []string{"dan.Dan_11_0"},
		Summary:   sampleSummary(),
	}
	if err := store.Save(run); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(run.RunID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ModelName != "gpt2" || !reflect.DeepEqual(got.Probes, run.Probes) {
		t.Errorf("loaded run = %+v", got)
	}
	if got.SavedAt == "" {
		t.Error("SavedAt not stamped on save")
	}
	if !reflect.DeepEqual(got.Summary, run.Summary) {
		t.Errorf("summary mangled in round trip:\ngot  %+v\nwant %+v", got.Summary, run.Summary)
	}
}

func TestStoreSaveRejectsBadRunIDs(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, id := range []string{"", "a/b", `a\b`, "../escape"} {
		if err := store.Save(SavedRun{RunID: id}); err == nil {
			t.Errorf("Save accepted run id %q", id)
		}
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Load("nope"); err == nil {
		t.Error("Load of absent run should error")
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	for _, id := range []string{
		"20260827_090000_gpt2",
		"20260829_120000_gpt2",
		"20260828_100000_distilgpt2",
	} {
		if err := store.Save(SavedRun{RunID: id, Summary: report.Summary{}}); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	// Non-run files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{
		"20260829_120000_gpt2",
		"20260828_100000_distilgpt2",
		"20260827_090000_gpt2",
	}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("List = %v, want %v", ids, want)
	}
}

func TestStoreListMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"))
	ids, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("List = %v, want empty", ids)
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save(SavedRun{RunID: "run1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("run1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load("run1"); err == nil {
		t.Error("run still loadable after delete")
	}
	if err := store.Delete("run1"); err == nil {
		t.Error("double delete should error")
	}
	if err := store.Delete("../../etc/passwd"); err == nil {
		t.Error("Delete accepted a traversal id")
	}
}

func TestNewRunID(t *testing.T) {
	id := NewRunID("TinyLlama/TinyLlama-1.1B-Chat-v1.0")
	if strings.ContainsAny(id, "/\\") {
		t.Errorf("run id contains path separators: %q", id)
	}
	if !regexp.MustCompile(`^\d{8}_\d{6}_`).MatchString(id) {
		t.Errorf("run id missing timestamp prefix: %q", id)
	}
	if !strings.Contains(id, "TinyLlama-TinyLlama-1-1B-Chat-v1-0") {
		t.Errorf("model slug mangled: %q", id)
	}

	long := NewRunID(strings.Repeat("model", 30))
	if len(long) > len("20060102_150405_")+40 {
		t.Errorf("slug not capped: %q (%d)", long, len(long))
	}
}
