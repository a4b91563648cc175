package garak

import (
	"strconv"
	"strings"
)

// DefaultCommand is the base invocation used when garak is not found on
// PATH as a standalone binary. `python -m garak` works in any
// environment where the garak package is installed.
var DefaultCommand = []string{"python", "-m", "garak"}

// BuildCommand turns a validated RunConfig into a full argv. The
// result is deterministic: the same config always produces the same
// tokens in the same order, so the echoed command line is stable and
// testable.
//
// The argv is handed to the process launcher as discrete tokens and is
// never joined into a shell string; validation plus vector execution is
// what keeps hostile model/probe names from becoming shell input.
func BuildCommand(base []string, cfg RunConfig) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(base) == 0 {
		base = DefaultCommand
	}

	argv := make([]string, 0, len(base)+12)
	argv = append(argv, base...)
	argv = append(argv, "--model_type", cfg.ModelType)
	argv = append(argv, "--model_name", cfg.ModelName)
	if len(cfg.Probes) > 0 {
		argv = append(argv, "--probes", strings.Join(cfg.Probes, ","))
	}
	// garak's own default is 1; only pass the flag when it differs.
	if cfg.Generations != 1 {
		argv = append(argv, "--generations", strconv.Itoa(cfg.Generations))
	}
	if cfg.ReportPrefix != "" {
		argv = append(argv, "--report_prefix", cfg.ReportPrefix)
	}
	if cfg.Verbose {
		argv = append(argv, "-v")
	}
	return argv, nil
}

// CommandString renders an argv for display in logs and the command
// echo. Display only: the runner always execs the vector form.
func CommandString(argv []string) string {
	return strings.Join(argv, " ")
}
