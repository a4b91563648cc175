package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/config"
	"github.com/lucasnoah/garaklab/internal/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Run-history database management",
}

var dbPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the database file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadDefault()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.Storage.DBPath)
		return nil
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadDefault()
		if err != nil {
			return err
		}
		_, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		cleanup()
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all run history and re-create the schema (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			return fmt.Errorf("refusing to reset without --yes")
		}

		cfg, err := config.LoadDefault()
		if err != nil {
			return err
		}
		d, err := db.Open(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Reset(); err != nil {
			return fmt.Errorf("reset database: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database reset.")
		return nil
	},
}

func init() {
	dbResetCmd.Flags().Bool("yes", false, "Confirm the destructive reset")

	dbCmd.AddCommand(dbPathCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
