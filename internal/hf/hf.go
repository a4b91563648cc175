// Package hf checks local Hugging Face CLI availability and
// authentication, and exposes the HF token through an explicit
// provider instead of ambient lookups scattered through callers.
package hf

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Status is a snapshot of local Hugging Face CLI authentication state.
type Status struct {
	Command       string
	Installed     bool
	Authenticated bool
	Username      string
	Detail        string
}

// CLIRunner abstracts Hugging Face CLI invocation for testability.
type CLIRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, stderr string, exitCode int, err error)
}

// ExecCLI implements CLIRunner by shelling out.
type ExecCLI struct{}

func (ExecCLI) Run(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return stdout.String(), stderr.String(), -1, fmt.Errorf("exec %s: %w", name, err)
		}
	}
	return stdout.String(), stderr.String(), exitCode, nil
}

// Checker probes the local Hugging Face CLI.
type Checker struct {
	cli     CLIRunner
	lookup  func(string) (string, error)
	timeout time.Duration
}

// NewChecker creates a Checker. A nil cli defaults to ExecCLI.
func NewChecker(cli CLIRunner) *Checker {
	if cli == nil {
		cli = ExecCLI{}
	}
	return &Checker{cli: cli, lookup: exec.LookPath, timeout: 8 * time.Second}
}

// FindCommand returns the preferred Hugging Face CLI command name, or
// "" when neither `hf` nor `huggingface-cli` is installed.
func (c *Checker) FindCommand() string {
	if _, err := c.lookup("hf"); err == nil {
		return "hf"
	}
	if _, err := c.lookup("huggingface-cli"); err == nil {
		return "huggingface-cli"
	}
	return ""
}

// CheckAuth reports whether the Hugging Face CLI is installed and
// authenticated. The newer `hf` binary wants `auth whoami`, the older
// `huggingface-cli` wants plain `whoami`; both spellings are tried.
func (c *Checker) CheckAuth() Status {
	command := c.FindCommand()
	if command == "" {
		return Status{Detail: "Hugging Face CLI is not installed"}
	}

	attempts := [][]string{{"auth", "whoami"}, {"whoami"}}
	if command == "huggingface-cli" {
		attempts = [][]string{{"whoami"}, {"auth", "whoami"}}
	}

	lastDetail := ""
	for _, args := range attempts {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		stdout, stderr, exitCode, err := c.cli.Run(ctx, command, args...)
		timedOut := ctx.Err() == context.DeadlineExceeded
		cancel()

		if timedOut {
			return Status{
				Command:   command,
				Installed: true,
				Detail:    fmt.Sprintf("%s auth check timed out", command),
			}
		}
		if err != nil {
			return Status{
				Command: command,
				Detail:  fmt.Sprintf("failed to execute %s: %v", command, err),
			}
		}
		if exitCode == 0 {
			username := extractUsername(stdout)
			return Status{
				Command:       command,
				Installed:     true,
				Authenticated: true,
				Username:      username,
				Detail:        fmt.Sprintf("authenticated as %s", username),
			}
		}
		lastDetail = strings.TrimSpace(strings.TrimSpace(stderr) + " " + strings.TrimSpace(stdout))
	}

	detail := "not authenticated"
	if lastDetail != "" {
		detail = lastDetail
	}
	return Status{Command: command, Installed: true, Detail: detail}
}

func extractUsername(output string) string {
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "username:") {
			if name := strings.TrimSpace(line[len("username:"):]); name != "" {
				return name
			}
			return "unknown"
		}
		return line
	}
	return "unknown"
}

// tokenPattern matches the shape of Hugging Face access tokens.
var tokenPattern = regexp.MustCompile(`^hf_[a-zA-Z0-9]{8,498}$`)

// ValidToken reports whether s looks like a Hugging Face access token.
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}
