package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a garaklab configuration from the given YAML
// file path, then fills unset fields with defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads
// the first one found. Search order: ./garaklab.yaml,
// ~/.garaklab/config.yaml. When none exists it returns the built-in
// defaults rather than failing: garaklab is usable with zero config.
func LoadDefault() (*AppConfig, error) {
	candidates := []string{"garaklab.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".garaklab", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg, nil
}

// DefaultStateDir returns ~/.garaklab, creating it if needed.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".garaklab")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// applyDefaults fills unset fields with built-in defaults.
func applyDefaults(cfg *AppConfig) {
	if cfg.Garak.GracePeriod == "" {
		cfg.Garak.GracePeriod = "5s"
	}
	d := &cfg.Defaults
	if d.ModelType == "" {
		d.ModelType = "huggingface"
	}
	if d.Generations == 0 {
		d.Generations = 1
	}
	if d.Temperature == 0 {
		d.Temperature = 0.7
	}
	if d.MaxTokens == 0 {
		d.MaxTokens = 512
	}
	if d.OutputDir == "" {
		d.OutputDir = "./garak_reports/"
	}
	if cfg.Storage.ResultsDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Storage.ResultsDir = filepath.Join(home, ".garaklab", "results")
		}
	}
	if cfg.Storage.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Storage.DBPath = filepath.Join(home, ".garaklab", "garaklab.db")
		}
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8997
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}
