package config

// AppConfig is the top-level configuration structure parsed from garaklab YAML.
type AppConfig struct {
	Garak    Garak    `yaml:"garak"`
	Defaults Defaults `yaml:"defaults"`
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	LogLevel string   `yaml:"log_level"`
}

// Garak configures how the external garak tool is invoked.
type Garak struct {
	// Command is the base argv, e.g. ["garak"] or ["python", "-m", "garak"].
	// Empty means auto-detect at startup.
	Command []string `yaml:"command"`
	// GracePeriod is how long a canceled run's terminate signal gets
	// before force-kill, as a Go duration string. Default "5s".
	GracePeriod string `yaml:"grace_period"`
}

// Defaults holds the run settings applied when a scan doesn't specify
// its own.
type Defaults struct {
	ModelType   string   `yaml:"model_type"`
	ModelName   string   `yaml:"model_name"`
	Probes      []string `yaml:"probes"`
	Generations int      `yaml:"generations"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Verbose     bool     `yaml:"verbose"`
	Parallel    bool     `yaml:"parallel"`
	OutputDir   string   `yaml:"output_dir"`
	// Timeout bounds one run's wall clock, as a Go duration string.
	// Empty means no timeout.
	Timeout string `yaml:"timeout"`
}

// Storage locates the on-disk state: saved summaries and the run
// history database.
type Storage struct {
	ResultsDir string `yaml:"results_dir"`
	DBPath     string `yaml:"db_path"`
}

// Server configures the read-only web dashboard.
type Server struct {
	Port int `yaml:"port"`
}
