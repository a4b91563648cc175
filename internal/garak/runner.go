package garak

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lucasnoah/garaklab/internal/logging"
)

// RunResult is constructed exactly once per Start call, after the child
// process exits, is canceled, times out, or fails to start.
type RunResult struct {
	Success    bool
	ExitCode   int
	ReportPath string
	HitlogPath string
	Stdout     string
	Stderr     string
	Error      string
	Canceled   bool
	TimedOut   bool
	Duration   time.Duration
}

// Callbacks carry run output back to the caller. OnStdoutLine and
// OnStderrLine fire per line as it arrives, from the runner's worker
// goroutines; within one stream line order is preserved, across the two
// streams it is not. OnComplete fires exactly once per Start call,
// strictly after every line callback for that run. Callers that own UI
// state must marshal these onto their own loop.
type Callbacks struct {
	OnStdoutLine func(line string)
	OnStderrLine func(line string)
	OnComplete   func(result RunResult)
}

// ErrRunActive is returned by Start when a run is already in flight.
// Only one run may be active per Runner; concurrent requests are
// rejected, not queued.
var ErrRunActive = errors.New("garak run already active")

const (
	defaultGrace = 5 * time.Second

	reportSuffix = ".report.jsonl"
	hitlogSuffix = ".hitlog.jsonl"
)

// Runner executes garak as a child process and streams its output.
// The child process handle is owned exclusively by the worker
// goroutine; Cancel only signals it.
type Runner struct {
	// Grace is how long a terminate signal gets before force-kill.
	// Zero means the 5s default.
	Grace time.Duration

	command []string
	log     *logrus.Entry

	mu        sync.Mutex
	active    bool
	cancelReq bool
	cancelCh  chan struct{}
}

// NewRunner creates a Runner that invokes the given base command
// (e.g. ["garak"] or ["python", "-m", "garak"]). A nil or empty base
// falls back to DefaultCommand.
func NewRunner(command []string) *Runner {
	if len(command) == 0 {
		command = DefaultCommand
	}
	return &Runner{
		command: command,
		log:     logging.GetLogger().WithField("component", "garak-runner"),
	}
}

// Active reports whether a run is currently in flight.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start validates cfg, builds the argv, and launches the run on a
// worker goroutine. Configuration errors are returned synchronously
// before any process is spawned; everything after that is reported
// through cb.OnComplete. Start never blocks on the child process.
func (r *Runner) Start(cfg RunConfig, cb Callbacks) error {
	argv, err := BuildCommand(r.command, cfg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return ErrRunActive
	}
	r.active = true
	r.cancelReq = false
	r.cancelCh = make(chan struct{})
	cancelCh := r.cancelCh
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"model":  cfg.ModelName,
		"probes": strings.Join(cfg.Probes, ","),
	}).Info("starting garak run")

	go r.run(argv, cfg, cb, cancelCh)
	return nil
}

// Cancel requests cooperative termination of the active run. It is a
// no-op when no run is active and idempotent when called repeatedly;
// it never touches the child's pipes, only signals the worker.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.cancelReq {
		return
	}
	r.cancelReq = true
	close(r.cancelCh)
	r.log.Info("cancellation requested")
}

func (r *Runner) grace() time.Duration {
	if r.Grace > 0 {
		return r.Grace
	}
	return defaultGrace
}

// run owns the child process from spawn to wait. It must deliver
// exactly one OnComplete on every path, including panics.
func (r *Runner) run(argv []string, cfg RunConfig, cb Callbacks, cancelCh chan struct{}) {
	started := time.Now()
	result := RunResult{ExitCode: -1}

	var once sync.Once
	complete := func() {
		once.Do(func() {
			result.Duration = time.Since(started)
			r.mu.Lock()
			r.active = false
			r.mu.Unlock()
			r.log.WithFields(logrus.Fields{
				"success":   result.Success,
				"exit_code": result.ExitCode,
				"duration":  result.Duration.Round(time.Millisecond),
			}).Info("garak run finished")
			if cb.OnComplete != nil {
				cb.OnComplete(result)
			}
		})
	}
	defer func() {
		if p := recover(); p != nil {
			result.Success = false
			result.Error = fmt.Sprintf("internal runner error: %v", p)
			complete()
		}
	}()

	cmd := exec.Command(argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		result.Error = fmt.Sprintf("open stdout pipe: %v", err)
		complete()
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		result.Error = fmt.Sprintf("open stderr pipe: %v", err)
		complete()
		return
	}

	if err := cmd.Start(); err != nil {
		result.Error = fmt.Sprintf("launch garak (%s): %v", argv[0], err)
		complete()
		return
	}

	// Both pipes are drained concurrently; reading only one would
	// deadlock once the other fills its OS buffer. Lines are delivered
	// as they arrive, never batched.
	var stdoutBuf, stderrBuf strings.Builder
	var reportPath, hitlogPath string

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, func(line string) {
			stdoutBuf.WriteString(line)
			stdoutBuf.WriteByte('\n')
			if reportPath == "" {
				reportPath = sniffArtifactPath(line, reportSuffix)
			}
			if hitlogPath == "" {
				hitlogPath = sniffArtifactPath(line, hitlogSuffix)
			}
			if cb.OnStdoutLine != nil {
				cb.OnStdoutLine(line)
			}
		})
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			stderrBuf.WriteString(line)
			stderrBuf.WriteByte('\n')
			if cb.OnStderrLine != nil {
				cb.OnStderrLine(line)
			}
		})
	}()

	// waitCh fires only after both streams hit EOF, which is what
	// orders OnComplete after every line callback.
	waitCh := make(chan error, 1)
	go func() {
		wg.Wait()
		waitCh <- cmd.Wait()
	}()

	var timeoutCh <-chan time.Time
	if cfg.Timeout > 0 {
		timer := time.NewTimer(cfg.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-cancelCh:
		waitErr = r.stop(cmd, waitCh)
		result.Canceled = true
		result.Error = "run canceled by user"
	case <-timeoutCh:
		waitErr = r.stop(cmd, waitCh)
		result.TimedOut = true
		result.Error = fmt.Sprintf("run timed out after %s", cfg.Timeout)
	}

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()

	if waitErr == nil {
		result.ExitCode = 0
	} else {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if result.Error == "" {
			result.Error = fmt.Sprintf("garak exited with an error: %v", waitErr)
		}
	}
	result.Success = waitErr == nil && !result.Canceled && !result.TimedOut

	result.ReportPath, result.HitlogPath = r.resolveArtifacts(cfg, reportPath, hitlogPath)
	complete()
}

// stop terminates the child: SIGTERM, a bounded grace wait, then
// SIGKILL. It returns the child's wait error once the process is gone.
func (r *Runner) stop(cmd *exec.Cmd, waitCh <-chan error) error {
	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	select {
	case err := <-waitCh:
		return err
	case <-time.After(r.grace()):
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	return <-waitCh
}

// resolveArtifacts prefers the path derived from report_prefix over
// the one sniffed from stdout. Sniffing depends on garak's log
// phrasing and is best-effort; the derived path is checked against the
// filesystem so a missing report never masquerades as a real one.
func (r *Runner) resolveArtifacts(cfg RunConfig, sniffedReport, sniffedHitlog string) (string, string) {
	report, hitlog := sniffedReport, sniffedHitlog
	if cfg.ReportPrefix != "" {
		if p := existingArtifact(cfg.OutputDir, cfg.ReportPrefix+reportSuffix); p != "" {
			report = p
		}
		if p := existingArtifact(cfg.OutputDir, cfg.ReportPrefix+hitlogSuffix); p != "" {
			hitlog = p
		}
	}
	if report != "" {
		r.log.WithField("path", report).Debug("report artifact located")
	}
	return report, hitlog
}

func existingArtifact(dir, name string) string {
	path := filepath.Join(dir, name)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}

// maxLineLen caps how much of a single output line is buffered before
// it is emitted as a piece of its own. Splitting keeps memory bounded
// without ever abandoning the stream: the reader must drain to EOF on
// every input, or the child wedges on a full pipe and the run never
// completes.
const maxLineLen = 1024 * 1024

// scanLines reads rd line by line, invoking fn per line until EOF.
// Lines past maxLineLen arrive as multiple pieces.
func scanLines(rd io.Reader, fn func(string)) {
	br := bufio.NewReaderSize(rd, 64*1024)
	var line []byte
	for {
		frag, isPrefix, err := br.ReadLine()
		line = append(line, frag...)
		if err != nil {
			if len(line) > 0 {
				fn(string(line))
			}
			return
		}
		if isPrefix && len(line) < maxLineLen {
			continue
		}
		fn(string(line))
		line = line[:0]
	}
}

// sniffArtifactPath pulls a path-looking token containing the given
// suffix out of a garak log line. Returns "" when the line carries no
// such token. This leans on garak's current console phrasing.
func sniffArtifactPath(line, suffix string) string {
	if !strings.Contains(line, suffix) {
		return ""
	}
	for _, token := range strings.Fields(line) {
		if strings.Contains(token, suffix) {
			return strings.Trim(token, `"'`)
		}
	}
	return ""
}
