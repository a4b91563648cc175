package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/garaklab/internal/garak"
	"github.com/lucasnoah/garaklab/internal/hf"
	"github.com/lucasnoah/garaklab/internal/report"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a garak scan against a model",
	Long: `Launches garak with validated arguments, streams its output, and on
completion parses the JSONL report (or scrapes the console output when
no report was produced). The run is recorded in the local history.

Ctrl-C cancels the scan: garak receives SIGTERM and is killed after a
grace period if it does not exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, orch, cleanup, err := openScanDeps()
		if err != nil {
			return err
		}
		defer cleanup()

		cfg := garak.DefaultRunConfig()
		cfg.ModelType = appCfg.Defaults.ModelType
		cfg.Generations = appCfg.Defaults.Generations
		cfg.OutputDir = appCfg.Defaults.OutputDir
		cfg.Timeout = appCfg.TimeoutDuration()

		if v, _ := cmd.Flags().GetString("model-type"); v != "" {
			cfg.ModelType = v
		}
		cfg.ModelName, _ = cmd.Flags().GetString("model")
		cfg.Probes, _ = cmd.Flags().GetStringSlice("probes")
		if cmd.Flags().Changed("generations") {
			cfg.Generations, _ = cmd.Flags().GetInt("generations")
		}
		cfg.ReportPrefix, _ = cmd.Flags().GetString("report-prefix")
		if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
			cfg.OutputDir = v
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")
		}
		cfg.Verbose, _ = cmd.Flags().GetBool("verbose")

		argv, err := garak.BuildCommand(nil, cfg)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "$ %s\n", garak.CommandString(argv))
		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			return nil
		}

		// Load HF_TOKEN from .env into the environment so the garak
		// child process inherits it. Absence is not fatal here.
		tokenProvider := &hf.EnvTokenProvider{EnvFile: ".env"}
		_, _ = tokenProvider.Token()

		done := make(chan garak.RunResult, 1)
		runID, err := orch.StartScan(cfg, garak.Callbacks{
			OnStdoutLine: func(line string) { fmt.Fprintln(w, line) },
			OnStderrLine: func(line string) { fmt.Fprintln(cmd.ErrOrStderr(), line) },
			OnComplete:   func(res garak.RunResult) { done <- res },
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "run %s started\n\n", runID)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		var res garak.RunResult
	wait:
		for {
			select {
			case <-sigCh:
				fmt.Fprintln(w, "\ncanceling scan...")
				orch.Cancel()
			case res = <-done:
				break wait
			}
		}

		fmt.Fprintln(w)
		switch {
		case res.Canceled:
			fmt.Fprintf(w, "run %s canceled after %s\n", runID, res.Duration.Round(time.Second))
		case res.TimedOut:
			fmt.Fprintf(w, "run %s timed out after %s\n", runID, res.Duration.Round(time.Second))
		case res.Success:
			fmt.Fprintf(w, "run %s completed in %s\n", runID, res.Duration.Round(time.Second))
		default:
			fmt.Fprintf(w, "run %s failed: %s\n", runID, res.Error)
		}
		if res.ReportPath != "" {
			fmt.Fprintf(w, "report: %s\n", res.ReportPath)
		}
		if res.HitlogPath != "" {
			fmt.Fprintf(w, "hitlog: %s\n", res.HitlogPath)
		}

		if state := orch.Current(); state != nil && state.Summary != nil && state.Summary.TotalAttempts > 0 {
			fmt.Fprintln(w)
			printSummary(w, *state.Summary)
		}

		if !res.Success {
			cmd.SilenceUsage = true
			return fmt.Errorf("scan did not complete successfully")
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().String("model-type", "", "garak model type (default from config, usually huggingface)")
	scanCmd.Flags().String("model", "", "Model name, e.g. distilgpt2 or TinyLlama/TinyLlama-1.1B-Chat-v1.0")
	scanCmd.Flags().StringSlice("probes", nil, "Probes to run, e.g. dan.Dan_11_0,encoding.Base64 (default: all)")
	scanCmd.Flags().Int("generations", 1, "Generations per prompt")
	scanCmd.Flags().String("report-prefix", "", "Report filename prefix")
	scanCmd.Flags().String("output-dir", "", "Directory garak writes reports into")
	scanCmd.Flags().Duration("timeout", 0, "Abort the scan after this duration (0 = no limit)")
	scanCmd.Flags().BoolP("verbose", "v", false, "Pass -v to garak")
	scanCmd.Flags().Bool("dry-run", false, "Print the command without running it")
	scanCmd.MarkFlagRequired("model")
}

// printSummary renders a parsed summary as an aligned table, one row
// per probe/detector pair plus a totals line.
func printSummary(w io.Writer, s report.Summary) {
	fmt.Fprintf(w, "%-28s %-24s %8s %8s %8s %9s\n", "PROBE", "DETECTOR", "TOTAL", "PASSED", "FAILED", "RATE")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 90))
	for _, p := range s.ByProbe {
		fmt.Fprintf(w, "%-28s %-24s %8d %8d %8d %8.1f%%\n",
			p.Probe, p.Detector, p.Total, p.Passed, p.Failed, p.PassRate*100)
	}
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 90))
	fmt.Fprintf(w, "%-28s %-24s %8d %8d %8d %8.1f%%\n",
		"TOTAL", "", s.TotalAttempts, s.TotalPassed, s.TotalFailed, s.PassRate*100)
}
