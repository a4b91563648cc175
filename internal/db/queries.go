package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// ScanRun represents a row in the scan_runs table.
type ScanRun struct {
	ID            int
	RunID         string
	ModelType     string
	ModelName     string
	Probes        []string
	Generations   int
	StartedAt     string
	FinishedAt    string
	DurationMs    int
	Success       bool
	Canceled      bool
	TimedOut      bool
	ExitCode      int
	Error         string
	ReportPath    string
	HitlogPath    string
	TotalAttempts int
	TotalPassed   int
	TotalFailed   int
	PassRate      float64
	ProbesRun     int
}

// RunEvent represents a row in the run_events table.
type RunEvent struct {
	ID        int
	RunID     string
	Event     string
	Detail    string
	Timestamp string
}

// InsertScanRun records a newly started run.
func (d *DB) InsertScanRun(runID, modelType, modelName string, probes []string, generations int) error {
	_, err := d.conn.Exec(
		`INSERT INTO scan_runs (run_id, model_type, model_name, probes, generations) VALUES (?, ?, ?, ?, ?)`,
		runID, modelType, modelName, strings.Join(probes, ","), generations,
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	return nil
}

// RunOutcome carries the terminal state of a run for FinishScanRun.
type RunOutcome struct {
	Success       bool
	Canceled      bool
	TimedOut      bool
	ExitCode      int
	Error         string
	ReportPath    string
	HitlogPath    string
	DurationMs    int
	TotalAttempts int
	TotalPassed   int
	TotalFailed   int
	PassRate      float64
	ProbesRun     int
}

// FinishScanRun records a run's terminal state and parsed summary totals.
func (d *DB) FinishScanRun(runID string, out RunOutcome) error {
	res, err := d.conn.Exec(
		`UPDATE scan_runs SET finished_at = datetime('now'), duration_ms = ?, success = ?,
		 canceled = ?, timed_out = ?, exit_code = ?, error = ?, report_path = ?, hitlog_path = ?,
		 total_attempts = ?, total_passed = ?, total_failed = ?, pass_rate = ?, probes_run = ?
		 WHERE run_id = ?`,
		out.DurationMs, out.Success, out.Canceled, out.TimedOut, out.ExitCode, out.Error,
		out.ReportPath, out.HitlogPath, out.TotalAttempts, out.TotalPassed, out.TotalFailed,
		out.PassRate, out.ProbesRun, runID,
	)
	if err != nil {
		return fmt.Errorf("finish scan run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %q not found", runID)
	}
	return nil
}

// DeleteScanRun removes a run row and its events. Callers use it to
// roll back the history row of a run that never launched.
func (d *DB) DeleteScanRun(runID string) error {
	if _, err := d.conn.Exec(`DELETE FROM run_events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run events: %w", err)
	}
	if _, err := d.conn.Exec(`DELETE FROM scan_runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete scan run: %w", err)
	}
	return nil
}

// LogRunEvent inserts a run lifecycle event.
func (d *DB) LogRunEvent(runID, event, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO run_events (run_id, event, detail) VALUES (?, ?, ?)`,
		runID, event, detail,
	)
	if err != nil {
		return fmt.Errorf("log run event: %w", err)
	}
	return nil
}

// GetScanRun returns one run by its run_id, or nil if absent.
func (d *DB) GetScanRun(runID string) (*ScanRun, error) {
	row := d.conn.QueryRow(scanRunSelect+` WHERE run_id = ?`, runID)
	run, err := scanRunFromRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scan run: %w", err)
	}
	return run, nil
}

// ListScanRuns returns the most recent runs, newest first.
func (d *DB) ListScanRuns(limit int) ([]ScanRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(scanRunSelect+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []ScanRun
	for rows.Next() {
		run, err := scanRunFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRunEvents returns a run's lifecycle events, oldest first.
func (d *DB) GetRunEvents(runID string) ([]RunEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, event, detail, timestamp FROM run_events
		 WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run events: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var e RunEvent
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Event, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("run event row: %w", err)
		}
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

const scanRunSelect = `SELECT id, run_id, model_type, model_name, probes, generations,
	started_at, finished_at, duration_ms, success, canceled, timed_out, exit_code, error,
	report_path, hitlog_path, total_attempts, total_passed, total_failed, pass_rate, probes_run
	FROM scan_runs`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunFromRow(row rowScanner) (*ScanRun, error) {
	var r ScanRun
	var probes string
	var finishedAt, errMsg, reportPath, hitlogPath sql.NullString
	var durationMs, exitCode, totalAttempts, totalPassed, totalFailed, probesRun sql.NullInt64
	var success, canceled, timedOut sql.NullBool
	var passRate sql.NullFloat64

	err := row.Scan(&r.ID, &r.RunID, &r.ModelType, &r.ModelName, &probes, &r.Generations,
		&r.StartedAt, &finishedAt, &durationMs, &success, &canceled, &timedOut, &exitCode, &errMsg,
		&reportPath, &hitlogPath, &totalAttempts, &totalPassed, &totalFailed, &passRate, &probesRun)
	if err != nil {
		return nil, err
	}
	if probes != "" {
		r.Probes = strings.Split(probes, ",")
	}
	r.FinishedAt = finishedAt.String
	r.DurationMs = int(durationMs.Int64)
	r.Success = success.Bool
	r.Canceled = canceled.Bool
	r.TimedOut = timedOut.Bool
	r.ExitCode = int(exitCode.Int64)
	r.Error = errMsg.String
	r.ReportPath = reportPath.String
	r.HitlogPath = hitlogPath.String
	r.TotalAttempts = int(totalAttempts.Int64)
	r.TotalPassed = int(totalPassed.Int64)
	r.TotalFailed = int(totalFailed.Int64)
	r.PassRate = passRate.Float64
	r.ProbesRun = int(probesRun.Int64)
	return &r, nil
}
