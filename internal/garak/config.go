package garak

import (
	"fmt"
	"regexp"
	"time"
)

// RunConfig describes one garak invocation. It is passed by value into
// the Runner and never mutated by it.
type RunConfig struct {
	ModelType    string
	ModelName    string
	Probes       []string
	Generations  int
	Temperature  float64
	MaxTokens    int
	Verbose      bool
	Parallel     bool
	ReportPrefix string
	OutputDir    string

	// Timeout bounds the whole run wall-clock. Zero means no timeout.
	Timeout time.Duration
}

// DefaultRunConfig returns a RunConfig tuned for local HuggingFace
// models.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		ModelType:   "huggingface",
		Generations: 1,
		Temperature: 0.7,
		MaxTokens:   512,
		Parallel:    true,
		OutputDir:   "./garak_reports/",
	}
}

// ConfigError reports a RunConfig field that failed validation.
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %q: %s", e.Field, e.Value, e.Message)
}

const (
	maxModelNameLen = 256
	maxProbeNameLen = 128
)

// The allow-lists are deliberately restrictive: these values become argv
// tokens for a spawned process, so anything outside them is rejected
// before a process exists. Shell metacharacters never pass.
var (
	modelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-./: ]+$`)
	probeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_. ]+$`)
)

// Validate checks the injection-relevant fields of a RunConfig. It is
// called by BuildCommand and by Runner.Start before any process is
// spawned.
func (c RunConfig) Validate() error {
	if c.ModelType == "" {
		return &ConfigError{Field: "model_type", Message: "is required"}
	}
	if !probeNamePattern.MatchString(c.ModelType) {
		return &ConfigError{Field: "model_type", Value: c.ModelType, Message: "contains disallowed characters"}
	}
	if c.ModelName == "" {
		return &ConfigError{Field: "model_name", Message: "is required"}
	}
	if len(c.ModelName) > maxModelNameLen {
		return &ConfigError{Field: "model_name", Value: c.ModelName[:32] + "…", Message: fmt.Sprintf("exceeds %d characters", maxModelNameLen)}
	}
	if !modelNamePattern.MatchString(c.ModelName) {
		return &ConfigError{Field: "model_name", Value: c.ModelName, Message: "contains disallowed characters"}
	}
	for _, probe := range c.Probes {
		if probe == "" {
			return &ConfigError{Field: "probes", Message: "probe name is empty"}
		}
		if len(probe) > maxProbeNameLen {
			return &ConfigError{Field: "probes", Value: probe[:32] + "…", Message: fmt.Sprintf("exceeds %d characters", maxProbeNameLen)}
		}
		if !probeNamePattern.MatchString(probe) {
			return &ConfigError{Field: "probes", Value: probe, Message: "contains disallowed characters"}
		}
	}
	if c.Generations < 1 {
		return &ConfigError{Field: "generations", Value: fmt.Sprintf("%d", c.Generations), Message: "must be at least 1"}
	}
	return nil
}
