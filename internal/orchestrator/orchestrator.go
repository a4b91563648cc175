package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lucasnoah/garaklab/internal/db"
	"github.com/lucasnoah/garaklab/internal/garak"
	"github.com/lucasnoah/garaklab/internal/logging"
	"github.com/lucasnoah/garaklab/internal/report"
	"github.com/lucasnoah/garaklab/internal/results"
)

// maxBufferedLines bounds the replay buffer handed to late-joining
// output subscribers.
const maxBufferedLines = 500

// RunState is a snapshot of the current (or most recent) scan.
type RunState struct {
	RunID     string
	Config    garak.RunConfig
	StartedAt time.Time
	Done      bool
	Result    *garak.RunResult
	Summary   *report.Summary
}

// Orchestrator composes the scan lifecycle: build and launch a run,
// fan live output out to subscribers, and on completion parse the
// report (falling back to stdout scraping) and persist both the
// summary artifact and the history row.
type Orchestrator struct {
	runner  *garak.Runner
	parsers map[string]report.Parser
	jsonl   *report.JSONLParser
	db      *db.DB
	store   *results.Store
	log     *logrus.Entry

	mu      sync.Mutex
	current *RunState
	buffer  []string
	subs    map[int]chan string
	nextSub int
}

// New creates an Orchestrator. db and store may be nil, in which case
// history and summary persistence are skipped.
func New(runner *garak.Runner, database *db.DB, store *results.Store) *Orchestrator {
	jsonl := report.NewJSONLParser()
	return &Orchestrator{
		runner: runner,
		parsers: map[string]report.Parser{
			"jsonl":  jsonl,
			"stdout": report.NewStdoutParser(),
		},
		jsonl: jsonl,
		db:    database,
		store: store,
		log:   logging.GetLogger().WithField("component", "orchestrator"),
		subs:  make(map[int]chan string),
	}
}

// StartScan launches a scan. Caller callbacks are optional and are
// invoked in addition to the orchestrator's own bookkeeping; they
// follow the garak.Callbacks threading contract. The returned run id
// identifies the history row and the saved summary.
func (o *Orchestrator) StartScan(cfg garak.RunConfig, cb garak.Callbacks) (string, error) {
	runID := results.NewRunID(cfg.ModelName)

	o.mu.Lock()
	if o.current != nil && !o.current.Done {
		o.mu.Unlock()
		return "", garak.ErrRunActive
	}
	o.current = &RunState{RunID: runID, Config: cfg, StartedAt: time.Now()}
	o.buffer = o.buffer[:0]
	o.mu.Unlock()

	// The history row must exist before the worker launches: a run that
	// fails on spawn completes almost immediately, and finish() expects
	// the row and the "started" event to already be there.
	if o.db != nil {
		if err := o.db.InsertScanRun(runID, cfg.ModelType, cfg.ModelName, cfg.Probes, cfg.Generations); err != nil {
			o.log.WithError(err).Warn("cannot record scan start")
		}
		_ = o.db.LogRunEvent(runID, "started", garak.CommandString(buildArgv(cfg)))
	}

	wrapped := garak.Callbacks{
		OnStdoutLine: func(line string) {
			o.publish(line)
			if cb.OnStdoutLine != nil {
				cb.OnStdoutLine(line)
			}
		},
		OnStderrLine: func(line string) {
			o.publish(line)
			if cb.OnStderrLine != nil {
				cb.OnStderrLine(line)
			}
		},
		OnComplete: func(res garak.RunResult) {
			o.finish(runID, cfg, res)
			if cb.OnComplete != nil {
				cb.OnComplete(res)
			}
		},
	}

	if err := o.runner.Start(cfg, wrapped); err != nil {
		o.mu.Lock()
		o.current = nil
		o.mu.Unlock()
		if o.db != nil {
			if derr := o.db.DeleteScanRun(runID); derr != nil {
				o.log.WithError(derr).Warn("cannot roll back unlaunched run")
			}
		}
		return "", err
	}
	return runID, nil
}

// buildArgv rebuilds the echoed argv for event logging. An invalid
// config yields an empty echo; Start rejects it right after and the
// row is rolled back.
func buildArgv(cfg garak.RunConfig) []string {
	argv, _ := garak.BuildCommand(nil, cfg)
	return argv
}

// Cancel requests cancellation of the active scan. Safe to call when
// idle and safe to call repeatedly.
func (o *Orchestrator) Cancel() {
	o.runner.Cancel()
}

// Active reports whether a scan is in flight.
func (o *Orchestrator) Active() bool {
	return o.runner.Active()
}

// Current returns a copy of the latest run state, or nil before the
// first scan.
func (o *Orchestrator) Current() *RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	state := *o.current
	return &state
}

// Subscribe attaches a live-output subscriber. It returns the
// subscriber id, a channel of output lines, and a replay of recent
// lines. Slow subscribers drop lines rather than stalling the run.
func (o *Orchestrator) Subscribe() (int, <-chan string, []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan string, 64)
	o.subs[id] = ch
	replay := append([]string(nil), o.buffer...)
	return id, ch, replay
}

// Unsubscribe detaches a subscriber and closes its channel.
func (o *Orchestrator) Unsubscribe(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ch, ok := o.subs[id]; ok {
		delete(o.subs, id)
		close(ch)
	}
}

func (o *Orchestrator) publish(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buffer = append(o.buffer, line)
	if len(o.buffer) > maxBufferedLines {
		o.buffer = o.buffer[len(o.buffer)-maxBufferedLines:]
	}
	for _, ch := range o.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// finish parses artifacts and persists outcome. It runs on the
// runner's worker goroutine, after all line callbacks.
func (o *Orchestrator) finish(runID string, cfg garak.RunConfig, res garak.RunResult) {
	summary, fromStdout := o.summarize(res)

	if o.store != nil && (res.Success || summary.TotalAttempts > 0) {
		saved := results.SavedRun{
			RunID:      runID,
			ModelType:  cfg.ModelType,
			ModelName:  cfg.ModelName,
			Probes:     cfg.Probes,
			ReportPath: res.ReportPath,
			FromStdout: fromStdout,
			Summary:    summary,
		}
		if err := o.store.Save(saved); err != nil {
			o.log.WithError(err).Warn("cannot save run summary")
		}
	}

	if o.db != nil {
		outcome := db.RunOutcome{
			Success:       res.Success,
			Canceled:      res.Canceled,
			TimedOut:      res.TimedOut,
			ExitCode:      res.ExitCode,
			Error:         res.Error,
			ReportPath:    res.ReportPath,
			HitlogPath:    res.HitlogPath,
			DurationMs:    int(res.Duration.Milliseconds()),
			TotalAttempts: summary.TotalAttempts,
			TotalPassed:   summary.TotalPassed,
			TotalFailed:   summary.TotalFailed,
			PassRate:      summary.PassRate,
			ProbesRun:     summary.ProbesRun,
		}
		if err := o.db.FinishScanRun(runID, outcome); err != nil {
			o.log.WithError(err).Warn("cannot record scan outcome")
		}
		_ = o.db.LogRunEvent(runID, terminalEvent(res), res.Error)
	}

	o.mu.Lock()
	if o.current != nil && o.current.RunID == runID {
		o.current.Done = true
		o.current.Result = &res
		o.current.Summary = &summary
	}
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
	o.mu.Unlock()
}

func terminalEvent(res garak.RunResult) string {
	switch {
	case res.Canceled:
		return "canceled"
	case res.TimedOut:
		return "timed_out"
	case res.Success:
		return "completed"
	default:
		return "failed"
	}
}

// summarize picks the parsing path: the JSONL report when the run
// produced one, otherwise the stdout scrape. The boolean reports
// whether the fallback was used.
func (o *Orchestrator) summarize(res garak.RunResult) (report.Summary, bool) {
	if res.ReportPath != "" {
		summary := o.parsers["jsonl"].Parse(res.ReportPath)
		if summary.ProbesRun > 0 {
			return summary, false
		}
	}
	return o.parsers["stdout"].Parse(res.Stdout), true
}

// Hitlog parses the hitlog artifact of the given result, if any.
func (o *Orchestrator) Hitlog(res garak.RunResult) []report.Attempt {
	if res.HitlogPath == "" {
		return nil
	}
	return o.jsonl.ParseHitlog(res.HitlogPath)
}

// Describe renders a one-line human description of a run state for
// status displays.
func Describe(state *RunState) string {
	if state == nil {
		return "no runs yet"
	}
	if !state.Done {
		return fmt.Sprintf("run %s in progress (model %s, started %s ago)",
			state.RunID, state.Config.ModelName, time.Since(state.StartedAt).Round(time.Second))
	}
	if state.Result == nil {
		return fmt.Sprintf("run %s finished", state.RunID)
	}
	if state.Result.Success {
		return fmt.Sprintf("run %s completed: %d/%d attempts passed",
			state.RunID, state.Summary.TotalPassed, state.Summary.TotalAttempts)
	}
	return fmt.Sprintf("run %s failed: %s", state.RunID, state.Result.Error)
}
