package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/catalog"
	"github.com/lucasnoah/garaklab/internal/garak"
)

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List probe categories",
	Long: `Lists the built-in probe category catalog. With --from-garak, asks the
installed garak for its full probe list instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		if fromGarak, _ := cmd.Flags().GetBool("from-garak"); fromGarak {
			tool := garak.NewTool(garak.ResolveCommand(), nil)
			probes, err := tool.ListProbes()
			if err != nil {
				return fmt.Errorf("list probes from garak: %w", err)
			}
			for _, p := range probes {
				fmt.Fprintln(w, p)
			}
			return nil
		}

		fmt.Fprintf(w, "%-16s %-28s %s\n", "ID", "NAME", "DESCRIPTION")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 80))
		for _, c := range catalog.ProbeCategories {
			fmt.Fprintf(w, "%-16s %-28s %s\n", c.ID, c.Name, c.Description)
		}
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List verified models known to work with quick scans",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		for _, m := range catalog.VerifiedModels {
			fmt.Fprintln(w, m)
		}
	},
}

func init() {
	probesCmd.Flags().Bool("from-garak", false, "Query the installed garak for its probe list")
}
