package garak

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// garakRunConfig mirrors the subset of garak's own YAML config schema
// this tool emits (`garak --config <file>`).
type garakRunConfig struct {
	Run struct {
		Verbose          bool `yaml:"verbose"`
		ParallelRequests int  `yaml:"parallel_requests"`
	} `yaml:"run"`
	Plugins struct {
		ModelType string `yaml:"model_type"`
		ModelName string `yaml:"model_name"`
		ProbeSpec string `yaml:"probe_spec"`
	} `yaml:"plugins"`
}

// WriteConfigFile renders cfg as a garak-native YAML config and writes
// it to a timestamped file under dir, returning the file path. The
// config is validated first: the same allow-list that guards argv
// construction guards what lands in the file.
func WriteConfigFile(dir string, cfg RunConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	var gc garakRunConfig
	gc.Run.Verbose = cfg.Verbose
	gc.Run.ParallelRequests = 1
	if cfg.Parallel {
		gc.Run.ParallelRequests = 4
	}
	gc.Plugins.ModelType = cfg.ModelType
	gc.Plugins.ModelName = cfg.ModelName
	gc.Plugins.ProbeSpec = strings.Join(cfg.Probes, ",")

	data, err := yaml.Marshal(&gc)
	if err != nil {
		return "", fmt.Errorf("marshal garak config: %w", err)
	}

	name := fmt.Sprintf("garak_config_%s.yaml", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write garak config: %w", err)
	}
	return path, nil
}
