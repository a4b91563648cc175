package results

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lucasnoah/garaklab/internal/report"
)

// SavedRun is one persisted scan outcome: identifying metadata plus
// the parsed summary snapshot.
type SavedRun struct {
	RunID      string         `json:"run_id"`
	ModelType  string         `json:"model_type"`
	ModelName  string         `json:"model_name"`
	Probes     []string       `json:"probes"`
	SavedAt    string         `json:"saved_at"`
	ReportPath string         `json:"report_path,omitempty"`
	FromStdout bool           `json:"from_stdout,omitempty"`
	Summary    report.Summary `json:"summary"`
}

// Store manages saved run summaries on disk, one JSON file per run.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.garaklab/results, creating the
// directory if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".garaklab", "results")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.baseDir, runID+".json")
}

// Save persists a run summary. SavedAt is stamped here if unset.
func (s *Store) Save(run SavedRun) error {
	if run.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if strings.ContainsAny(run.RunID, "/\\") {
		return fmt.Errorf("run_id %q contains path separators", run.RunID)
	}
	if run.SavedAt == "" {
		run.SavedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return WriteJSON(s.runPath(run.RunID), &run)
}

// Load reads a saved run by its id.
func (s *Store) Load(runID string) (*SavedRun, error) {
	var run SavedRun
	if err := ReadJSON(s.runPath(runID), &run); err != nil {
		return nil, fmt.Errorf("load run %q: %w", runID, err)
	}
	return &run, nil
}

// List returns saved run ids, newest first (ids embed a sortable
// timestamp prefix, so reverse-lexical order is reverse-chronological).
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read results dir: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Delete removes a saved run.
func (s *Store) Delete(runID string) error {
	if strings.ContainsAny(runID, "/\\") {
		return fmt.Errorf("run_id %q contains path separators", runID)
	}
	if err := os.Remove(s.runPath(runID)); err != nil {
		return fmt.Errorf("delete run %q: %w", runID, err)
	}
	return nil
}

// NewRunID returns a fresh run identifier with a sortable timestamp
// prefix, e.g. "20260829_151233_gpt2".
func NewRunID(modelName string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, modelName)
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), slug)
}
