package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/config"
	"github.com/lucasnoah/garaklab/internal/results"
	"github.com/lucasnoah/garaklab/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web dashboard",
	Long: `Start a read-only browser UI on localhost showing scan history, per-run
summaries, and lifecycle events. Runs launched from another garaklab
process appear once they are recorded in the shared database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadDefault()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		database, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		store := results.NewStore(cfg.Storage.ResultsDir)
		return web.NewServer(nil, database, store, port).Start()
	},
}

func init() {
	serveCmd.Flags().Int("port", 8997, "Port to listen on")
}
