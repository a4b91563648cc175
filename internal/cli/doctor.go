package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/config"
	"github.com/lucasnoah/garaklab/internal/garak"
	"github.com/lucasnoah/garaklab/internal/hf"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that garak, Hugging Face auth, and config are usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		ok := true

		// garak itself
		command := garak.ResolveCommand()
		fmt.Fprintf(w, "garak command:   %s\n", garak.CommandString(command))
		tool := garak.NewTool(command, nil)
		if ver, err := tool.Version(); err == nil {
			fmt.Fprintf(w, "garak version:   %s\n", ver)
		} else {
			fmt.Fprintf(w, "garak version:   UNAVAILABLE (%v)\n", err)
			ok = false
		}

		// Hugging Face CLI auth
		status := hf.NewChecker(nil).CheckAuth()
		switch {
		case !status.Installed:
			fmt.Fprintf(w, "hf cli:          not installed (%s)\n", status.Detail)
		case status.Authenticated:
			fmt.Fprintf(w, "hf cli:          %s, logged in as %s\n", status.Command, status.Username)
		default:
			fmt.Fprintf(w, "hf cli:          %s, NOT logged in (%s)\n", status.Command, status.Detail)
		}

		// HF_TOKEN from environment / .env
		provider := &hf.EnvTokenProvider{}
		if _, err := provider.Token(); err == nil {
			fmt.Fprintf(w, "hf token:        present\n")
		} else {
			fmt.Fprintf(w, "hf token:        not set (%v)\n", err)
		}

		// configuration
		cfg, err := config.LoadDefault()
		if err != nil {
			fmt.Fprintf(w, "config:          LOAD FAILED (%v)\n", err)
			ok = false
		} else if errs := config.Validate(cfg); len(errs) > 0 {
			fmt.Fprintf(w, "config:          INVALID\n")
			for _, e := range errs {
				fmt.Fprintf(w, "  - %s\n", e.Error())
			}
			ok = false
		} else {
			fmt.Fprintf(w, "config:          ok (db %s)\n", cfg.Storage.DBPath)
		}

		if !ok {
			cmd.SilenceUsage = true
			return fmt.Errorf("environment is not ready")
		}
		fmt.Fprintln(w, "\nAll checks passed.")
		return nil
	},
}
