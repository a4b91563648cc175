package cli

import (
	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/config"
	"github.com/lucasnoah/garaklab/internal/logging"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:   "garaklab",
	Short: "garaklab is a workbench around the garak LLM vulnerability scanner",
	Long: `garaklab wraps the garak scanner: it builds and launches scans with
validated arguments, streams live output, parses JSONL reports and hit
logs, and keeps a local history of every run.

State lives in ~/.garaklab/ (SQLite for run history, JSON for saved
summaries). Configuration is read from ./garaklab.yaml or
~/.garaklab/config.yaml when present.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logLevelFlag
		if level == "" {
			if cfg, err := config.LoadDefault(); err == nil {
				level = cfg.LogLevel
			}
		}
		logging.SetLogLevel(level)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(hitlogCmd)
	rootCmd.AddCommand(probesCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
