package cli

import (
	"fmt"

	"github.com/lucasnoah/garaklab/internal/config"
	"github.com/lucasnoah/garaklab/internal/db"
	"github.com/lucasnoah/garaklab/internal/garak"
	"github.com/lucasnoah/garaklab/internal/orchestrator"
	"github.com/lucasnoah/garaklab/internal/results"
)

// openDB opens and migrates the run-history database, returning it
// with a cleanup func.
func openDB(cfg *config.AppConfig) (*db.DB, func(), error) {
	path := cfg.Storage.DBPath
	d, err := db.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return d, func() { d.Close() }, nil
}

// newRunner builds a garak.Runner from the app config, falling back
// to PATH discovery when no command is configured.
func newRunner(cfg *config.AppConfig) *garak.Runner {
	command := cfg.Garak.Command
	if len(command) == 0 {
		command = garak.ResolveCommand()
	}
	r := garak.NewRunner(command)
	r.Grace = cfg.GraceDuration()
	return r
}

// openScanDeps wires the full scan stack: config, database, results
// store, and orchestrator.
func openScanDeps() (*config.AppConfig, *orchestrator.Orchestrator, func(), error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, nil, nil, fmt.Errorf("invalid config: %s", errs[0].Error())
	}

	d, cleanup, err := openDB(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store := results.NewStore(cfg.Storage.ResultsDir)
	orch := orchestrator.New(newRunner(cfg), d, store)
	return cfg, orch, cleanup, nil
}

// openResultsStore returns the saved-summaries store from config.
func openResultsStore() (*results.Store, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return results.NewStore(cfg.Storage.ResultsDir), nil
}
