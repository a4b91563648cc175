package garak

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// shellRunner builds a Runner whose base command is a shell script.
// BuildCommand appends the garak flags after the base, so they land in
// the script's positional parameters and are ignored.
func shellRunner(script string) *Runner {
	r := NewRunner([]string{"sh", "-c", script, "garak"})
	r.Grace = 200 * time.Millisecond
	return r
}

// lineCollector gathers streamed lines and the final result behind a
// mutex, since callbacks fire on the runner's goroutines.
type lineCollector struct {
	mu     sync.Mutex
	stdout []string
	stderr []string
	result RunResult
	done   chan struct{}
}

func newCollector() *lineCollector {
	return &lineCollector{done: make(chan struct{})}
}

func (c *lineCollector) callbacks() Callbacks {
	return Callbacks{
		OnStdoutLine: func(line string) {
			c.mu.Lock()
			c.stdout = append(c.stdout, line)
			c.mu.Unlock()
		},
		OnStderrLine: func(line string) {
			c.mu.Lock()
			c.stderr = append(c.stderr, line)
			c.mu.Unlock()
		},
		OnComplete: func(res RunResult) {
			c.mu.Lock()
			c.result = res
			c.mu.Unlock()
			close(c.done)
		},
	}
}

func (c *lineCollector) wait(t *testing.T) RunResult {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for OnComplete")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func TestRunnerStreamsBothPipes(t *testing.T) {
	r := shellRunner(`echo out-one; echo err-one >&2; echo out-two`)
	col := newCollector()

	if err := r.Start(validRunConfig(), col.callbacks()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := col.wait(t)

	if !res.Success {
		t.Errorf("Success = false, error %q", res.Error)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.stdout) != 2 || col.stdout[0] != "out-one" || col.stdout[1] != "out-two" {
		t.Errorf("stdout lines = %v", col.stdout)
	}
	if len(col.stderr) != 1 || col.stderr[0] != "err-one" {
		t.Errorf("stderr lines = %v", col.stderr)
	}
	if res.Stdout != "out-one\nout-two\n" {
		t.Errorf("aggregated stdout = %q", res.Stdout)
	}
	if res.Stderr != "err-one\n" {
		t.Errorf("aggregated stderr = %q", res.Stderr)
	}
}

func TestRunnerCompleteOrderedAfterLines(t *testing.T) {
	r := shellRunner(`for i in 1 2 3 4 5; do echo "line $i"; done`)

	var lines int32
	var atComplete int32
	done := make(chan struct{})
	cb := Callbacks{
		OnStdoutLine: func(string) { atomic.AddInt32(&lines, 1) },
		OnComplete: func(RunResult) {
			atComplete = atomic.LoadInt32(&lines)
			close(done)
		},
	}

	if err := r.Start(validRunConfig(), cb); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-done
	if atComplete != 5 {
		t.Errorf("OnComplete saw %d lines delivered, want 5", atComplete)
	}
}

func TestRunnerNonzeroExit(t *testing.T) {
	r := shellRunner(`echo partial; exit 3`)
	col := newCollector()

	if err := r.Start(validRunConfig(), col.callbacks()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := col.wait(t)

	if res.Success {
		t.Error("Success = true for exit 3")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Error == "" {
		t.Error("Error should be populated on failure")
	}
	if !strings.Contains(res.Stdout, "partial") {
		t.Errorf("output before failure should be kept, got %q", res.Stdout)
	}
}

func TestRunnerSpawnFailure(t *testing.T) {
	r := NewRunner([]string{"/nonexistent/garak-test-binary"})
	col := newCollector()

	if err := r.Start(validRunConfig(), col.callbacks()); err != nil {
		t.Fatalf("Start should defer spawn errors to OnComplete, got %v", err)
	}
	res := col.wait(t)

	if res.Success {
		t.Error("Success = true for unlaunchable binary")
	}
	if !strings.Contains(res.Error, "launch garak") {
		t.Errorf("Error = %q, want launch failure", res.Error)
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 when nothing ran", res.ExitCode)
	}
	if r.Active() {
		t.Error("runner still active after spawn failure")
	}
}

func TestRunnerRejectsConfigSynchronously(t *testing.T) {
	r := shellRunner(`echo should-not-run`)
	cfg := validRunConfig()
	cfg.ModelName = "gpt2; rm -rf /"

	called := false
	err := r.Start(cfg, Callbacks{OnComplete: func(RunResult) { called = true }})
	if err == nil {
		t.Fatal("Start accepted a hostile model name")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error type = %T, want *ConfigError", err)
	}
	if called {
		t.Error("OnComplete fired for a rejected config")
	}
	if r.Active() {
		t.Error("runner marked active after synchronous rejection")
	}
}

func TestRunnerRejectsConcurrentRuns(t *testing.T) {
	r := shellRunner(`exec sleep 30`)
	col := newCollector()

	if err := r.Start(validRunConfig(), col.callbacks()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if !r.Active() {
		t.Error("Active = false with run in flight")
	}
	if err := r.Start(validRunConfig(), Callbacks{}); !errors.Is(err, ErrRunActive) {
		t.Errorf("second Start error = %v, want ErrRunActive", err)
	}

	r.Cancel()
	res := col.wait(t)
	if !res.Canceled {
		t.Error("Canceled = false after Cancel")
	}
	if r.Active() {
		t.Error("runner still active after cancellation completed")
	}
}

func TestRunnerCancelMidStream(t *testing.T) {
	// sleep's fds go to /dev/null so a straggler cannot hold the
	// output pipes open after the shell is gone.
	r := shellRunner(`echo before-cancel; sleep 30 >/dev/null 2>&1; echo after-cancel`)

	gotLine := make(chan struct{})
	var once sync.Once
	col := newCollector()
	cb := col.callbacks()
	inner := cb.OnStdoutLine
	cb.OnStdoutLine = func(line string) {
		inner(line)
		once.Do(func() { close(gotLine) })
	}

	if err := r.Start(validRunConfig(), cb); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-gotLine:
	case <-time.After(10 * time.Second):
		t.Fatal("never saw output before cancel")
	}
	r.Cancel()
	res := col.wait(t)

	if !res.Canceled {
		t.Error("Canceled = false")
	}
	if res.Success {
		t.Error("Success = true for canceled run")
	}
	if res.TimedOut {
		t.Error("TimedOut = true for user cancellation")
	}
	if !strings.Contains(res.Stdout, "before-cancel") {
		t.Errorf("output before cancel lost: %q", res.Stdout)
	}
	if strings.Contains(res.Stdout, "after-cancel") {
		t.Errorf("child kept running past cancel: %q", res.Stdout)
	}
}

func TestRunnerCancelIsIdempotent(t *testing.T) {
	r := shellRunner(`exec sleep 30`)
	col := newCollector()

	// Harmless before any run starts.
	r.Cancel()

	if err := r.Start(validRunConfig(), col.callbacks()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Cancel()
	r.Cancel()
	res := col.wait(t)
	if !res.Canceled {
		t.Error("Canceled = false after repeated Cancel")
	}

	// And harmless again once the run is gone.
	r.Cancel()
}

func TestRunnerTimeout(t *testing.T) {
	r := shellRunner(`echo started; exec sleep 30`)
	col := newCollector()

	cfg := validRunConfig()
	cfg.Timeout = 300 * time.Millisecond
	if err := r.Start(cfg, col.callbacks()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := col.wait(t)

	if !res.TimedOut {
		t.Error("TimedOut = false")
	}
	if res.Canceled {
		t.Error("Canceled = true for a timeout")
	}
	if res.Success {
		t.Error("Success = true for a timeout")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestRunnerCompleteFiresExactlyOnce(t *testing.T) {
	r := shellRunner(`echo quick`)

	var completions int32
	done := make(chan struct{})
	cb := Callbacks{OnComplete: func(RunResult) {
		atomic.AddInt32(&completions, 1)
		close(done)
	}}

	if err := r.Start(validRunConfig(), cb); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-done
	// Late cancellation must not produce a second completion.
	r.Cancel()
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&completions); n != 1 {
		t.Errorf("OnComplete fired %d times, want 1", n)
	}
}

func TestRunnerSequentialRunsAfterCompletion(t *testing.T) {
	r := shellRunner(`echo run`)
	for i := 0; i < 3; i++ {
		col := newCollector()
		if err := r.Start(validRunConfig(), col.callbacks()); err != nil {
			t.Fatalf("Start run %d: %v", i, err)
		}
		if res := col.wait(t); !res.Success {
			t.Fatalf("run %d failed: %q", i, res.Error)
		}
	}
}

func TestRunnerSniffsReportPathFromOutput(t *testing.T) {
	r := shellRunner(`echo "report closed :) /tmp/garak.run1.report.jsonl"; echo "hit log /tmp/garak.run1.hitlog.jsonl"`)
	col := newCollector()

	if err := r.Start(validRunConfig(), col.callbacks()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := col.wait(t)

	if res.ReportPath != "/tmp/garak.run1.report.jsonl" {
		t.Errorf("ReportPath = %q", res.ReportPath)
	}
	if res.HitlogPath != "/tmp/garak.run1.hitlog.jsonl" {
		t.Errorf("HitlogPath = %q", res.HitlogPath)
	}
}

func TestRunnerPrefersDerivedArtifactPaths(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "myscan.report.jsonl")
	if err := os.WriteFile(report, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := shellRunner(`echo "report closed :) /tmp/wrong.report.jsonl"`)
	col := newCollector()

	cfg := validRunConfig()
	cfg.ReportPrefix = "myscan"
	cfg.OutputDir = dir
	if err := r.Start(cfg, col.callbacks()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := col.wait(t)

	if res.ReportPath != report {
		t.Errorf("ReportPath = %q, want derived %q", res.ReportPath, report)
	}
	// No hitlog file exists, so the sniffed value (none here) stands.
	if res.HitlogPath != "" {
		t.Errorf("HitlogPath = %q, want empty", res.HitlogPath)
	}
}

func TestSniffArtifactPath(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{`report closed :) garak_reports/run.report.jsonl`, "garak_reports/run.report.jsonl"},
		{`writing "quoted/path.report.jsonl" now`, "quoted/path.report.jsonl"},
		{`no artifact mentioned here`, ""},
		{`probe dan.Dan_11_0 ok`, ""},
	}
	for _, tc := range cases {
		if got := sniffArtifactPath(tc.line, reportSuffix); got != tc.want {
			t.Errorf("sniffArtifactPath(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestScanLinesHandlesLongLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	var got []string
	scanLines(strings.NewReader(long+"\nshort\n"), func(line string) {
		got = append(got, line)
	})
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if len(got[0]) != len(long) {
		t.Errorf("long line truncated to %d bytes", len(got[0]))
	}
	if got[1] != "short" {
		t.Errorf("second line = %q", got[1])
	}
}

func TestScanLinesSplitsOversizedLines(t *testing.T) {
	huge := strings.Repeat("y", 3*maxLineLen)
	var got []string
	scanLines(strings.NewReader(huge+"\ntrailer\n"), func(line string) {
		got = append(got, line)
	})
	if len(got) < 4 {
		t.Fatalf("got %d pieces, want the oversized line split plus the trailer", len(got))
	}
	if got[len(got)-1] != "trailer" {
		t.Errorf("last line = %q, want trailer", got[len(got)-1])
	}
	var total int
	for _, piece := range got[:len(got)-1] {
		total += len(piece)
	}
	if total != len(huge) {
		t.Errorf("reassembled %d bytes of the oversized line, want %d", total, len(huge))
	}
}

func TestRunnerSurvivesOversizedOutputLine(t *testing.T) {
	// One unterminated 3MB line, then a normal one. The reader must
	// drain all of it; stopping early wedges the child on a full pipe
	// and the run never completes.
	r := shellRunner(`head -c 3000000 /dev/zero | tr '\0' x; echo; echo done`)
	col := newCollector()

	if err := r.Start(validRunConfig(), col.callbacks()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := col.wait(t)

	if !res.Success {
		t.Errorf("Success = false, error %q", res.Error)
	}
	if r.Active() {
		t.Error("runner still active after the run finished")
	}
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.stdout) == 0 || col.stdout[len(col.stdout)-1] != "done" {
		t.Fatalf("final line not delivered, got %d lines", len(col.stdout))
	}
	var total int
	for _, line := range col.stdout[:len(col.stdout)-1] {
		total += len(line)
	}
	if total != 3000000 {
		t.Errorf("oversized line delivered %d bytes, want 3000000", total)
	}
}
