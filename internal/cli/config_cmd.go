package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lucasnoah/garaklab/internal/config"
	"github.com/lucasnoah/garaklab/internal/garak"
)

var configFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and inspect garaklab configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			cmd.Println("Configuration is valid.")
			return nil
		}

		cmd.Println("Validation errors:")
		for _, e := range errs {
			cmd.Printf("  - %s\n", e)
		}
		return fmt.Errorf("config has %d validation error(s)", len(errs))
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration with defaults merged",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config: %w", err)
		}

		cmd.Print(string(data))
		return nil
	},
}

var configWriteGarakCmd = &cobra.Command{
	Use:   "write-garak [dir]",
	Short: "Write a garak-native YAML config file from the current defaults",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadConfig()
		if err != nil {
			return err
		}

		runCfg := garak.DefaultRunConfig()
		runCfg.ModelType = appCfg.Defaults.ModelType
		runCfg.ModelName, _ = cmd.Flags().GetString("model")
		runCfg.Probes, _ = cmd.Flags().GetStringSlice("probes")
		runCfg.Parallel = appCfg.Defaults.Parallel

		path, err := garak.WriteConfigFile(args[0], runCfg)
		if err != nil {
			return err
		}
		cmd.Printf("wrote %s\n", path)
		return nil
	},
}

func loadConfig() (*config.AppConfig, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadDefault()
}

func init() {
	configCmd.PersistentFlags().StringVarP(&configFile, "file", "f", "", "path to garaklab config file")
	configWriteGarakCmd.Flags().String("model", "", "Model name for the generated config")
	configWriteGarakCmd.Flags().StringSlice("probes", nil, "Probes for the generated config")
	configWriteGarakCmd.MarkFlagRequired("model")

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configWriteGarakCmd)
}
