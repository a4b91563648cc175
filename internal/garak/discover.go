package garak

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner abstracts one-shot command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) (stdout string, exitCode int, err error)
}

// ExecRunner implements CommandRunner with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string) (string, int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = nil
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return stdout.String(), -1, fmt.Errorf("exec %s: %w", argv[0], err)
		}
	}
	return stdout.String(), exitCode, nil
}

// ResolveCommand returns the base argv for invoking garak: the
// standalone binary when it is on PATH, otherwise `python -m garak`.
func ResolveCommand() []string {
	if _, err := exec.LookPath("garak"); err == nil {
		return []string{"garak"}
	}
	return DefaultCommand
}

// Installed reports whether a standalone garak binary is on PATH.
func Installed() bool {
	_, err := exec.LookPath("garak")
	return err == nil
}

// Tool queries an installed garak for metadata (version, plugin
// listings). Every query carries a bounded timeout so a wedged garak
// install cannot hang the caller.
type Tool struct {
	command []string
	runner  CommandRunner
}

// NewTool creates a Tool around the given base command. A nil runner
// defaults to ExecRunner.
func NewTool(command []string, runner CommandRunner) *Tool {
	if len(command) == 0 {
		command = ResolveCommand()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Tool{command: command, runner: runner}
}

func (t *Tool) query(flag string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	argv := append(append([]string{}, t.command...), flag)
	out, exitCode, err := t.runner.Run(ctx, argv)
	if err != nil {
		return "", fmt.Errorf("query garak %s: %w", flag, err)
	}
	if exitCode != 0 {
		return "", fmt.Errorf("garak %s exited with code %d", flag, exitCode)
	}
	return strings.TrimSpace(out), nil
}

// Version returns garak's version string.
func (t *Tool) Version() (string, error) {
	return t.query("--version", 10*time.Second)
}

// ListProbes returns garak's installed probe identifiers, one per line
// of its --list_probes output.
func (t *Tool) ListProbes() ([]string, error) {
	return t.list("--list_probes")
}

// ListDetectors returns garak's installed detector identifiers.
func (t *Tool) ListDetectors() ([]string, error) {
	return t.list("--list_detectors")
}

// ListGenerators returns garak's installed generator identifiers.
func (t *Tool) ListGenerators() ([]string, error) {
	return t.list("--list_generators")
}

func (t *Tool) list(flag string) ([]string, error) {
	out, err := t.query(flag, 30*time.Second)
	if err != nil {
		return nil, err
	}
	var items []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return items, nil
}
