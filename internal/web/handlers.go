package web

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucasnoah/garaklab/internal/db"
	"github.com/lucasnoah/garaklab/internal/orchestrator"
	"github.com/lucasnoah/garaklab/internal/report"
)

// ---- view models ----

type DashboardData struct {
	Runs       []RunRow
	Activity   []ActivityRow
	HasLive    bool
	LiveStatus string
}

type RunRow struct {
	RunID      string
	Model      string
	ProbesStr  string
	Outcome    string
	Attempts   int
	PassRate   float64
	HasRate    bool
	Duration   string
	StartedAgo string
}

type ActivityRow struct {
	RunID   string
	Event   string
	Detail  string
	TimeAgo string
}

type RunDetailData struct {
	Run        *db.ScanRun
	Outcome    string
	Duration   string
	ProbesStr  string
	Events     []db.RunEvent
	Summary    *report.Summary
	FromStdout bool
}

// ---- helpers ----

func relTime(ts string) string {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	var t time.Time
	for _, f := range formats {
		if parsed, err := time.Parse(f, ts); err == nil {
			t = parsed
			break
		}
	}
	if t.IsZero() {
		return ts
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func fmtPct(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

func fmtMs(ms int) string {
	if ms <= 0 {
		return ""
	}
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

// runOutcome collapses the terminal flags into one display label.
func runOutcome(run *db.ScanRun) string {
	switch {
	case run.FinishedAt == "":
		return "running"
	case run.Canceled:
		return "canceled"
	case run.TimedOut:
		return "timed_out"
	case run.Success:
		return "completed"
	default:
		return "failed"
	}
}

func (s *Server) execTemplate(w http.ResponseWriter, tmpl interface {
	ExecuteTemplate(io.Writer, string, interface{}) error
}, data interface{}) {
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ---- Dashboard ----

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.ListScanRuns(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rows := make([]RunRow, 0, len(runs))
	for i := range runs {
		run := &runs[i]
		rows = append(rows, RunRow{
			RunID:      run.RunID,
			Model:      run.ModelName,
			ProbesStr:  strings.Join(run.Probes, ", "),
			Outcome:    runOutcome(run),
			Attempts:   run.TotalAttempts,
			PassRate:   run.PassRate,
			HasRate:    run.TotalAttempts > 0,
			Duration:   fmtMs(run.DurationMs),
			StartedAgo: relTime(run.StartedAt),
		})
	}

	activity, _ := s.recentActivity(20)

	data := DashboardData{Runs: rows, Activity: activity}
	if s.orch != nil {
		state := s.orch.Current()
		if state != nil && !state.Done {
			data.HasLive = true
			data.LiveStatus = orchestrator.Describe(state)
		}
	}
	s.execTemplate(w, s.dashboardTmpl, data)
}

// ---- Run detail ----

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.db.GetScanRun(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}

	events, _ := s.db.GetRunEvents(runID)

	data := RunDetailData{
		Run:       run,
		Outcome:   runOutcome(run),
		Duration:  fmtMs(run.DurationMs),
		ProbesStr: strings.Join(run.Probes, ", "),
		Events:    events,
	}
	if s.store != nil {
		if saved, err := s.store.Load(runID); err == nil {
			data.Summary = &saved.Summary
			data.FromStdout = saved.FromStdout
		}
	}
	s.execTemplate(w, s.runTmpl, data)
}
