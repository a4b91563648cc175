package config

import (
	"fmt"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks an AppConfig for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
// Run-field allow-list checks (model/probe names) are not duplicated
// here; they are enforced at command-build time.
func Validate(cfg *AppConfig) []ValidationError {
	var errs []ValidationError

	if cfg.Garak.GracePeriod != "" {
		if _, err := time.ParseDuration(cfg.Garak.GracePeriod); err != nil {
			errs = append(errs, ValidationError{
				Field:   "garak.grace_period",
				Message: fmt.Sprintf("invalid duration %q", cfg.Garak.GracePeriod),
			})
		}
	}
	if cfg.Defaults.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Defaults.Timeout); err != nil {
			errs = append(errs, ValidationError{
				Field:   "defaults.timeout",
				Message: fmt.Sprintf("invalid duration %q", cfg.Defaults.Timeout),
			})
		}
	}
	if cfg.Defaults.Generations < 1 {
		errs = append(errs, ValidationError{
			Field:   "defaults.generations",
			Message: "must be at least 1",
		})
	}
	if cfg.Defaults.Temperature < 0 || cfg.Defaults.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "defaults.temperature",
			Message: "must be between 0 and 2",
		})
	}
	if cfg.Defaults.MaxTokens < 1 {
		errs = append(errs, ValidationError{
			Field:   "defaults.max_tokens",
			Message: "must be at least 1",
		})
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d out of range", cfg.Server.Port),
		})
	}
	return errs
}

// GraceDuration parses the configured grace period, falling back to 5s.
func (c *AppConfig) GraceDuration() time.Duration {
	if d, err := time.ParseDuration(c.Garak.GracePeriod); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}

// TimeoutDuration parses the configured run timeout; zero means none.
func (c *AppConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.Defaults.Timeout); err == nil && d > 0 {
		return d
	}
	return 0
}
