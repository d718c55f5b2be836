package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nyabot/nyabot/config"
)

// ConfigCmd groups the configuration subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage the bot configuration",
	Long: `Inspect and manage the nyabot configuration.

Configuration sources (in order of precedence):
1. Environment variables (NYABOT_* prefix)
2. The YAML config file (./nyabot.yaml by default)
3. Default values

Examples:
  nyabot config show                 # Show the effective configuration
  nyabot config show --format json   # Show configuration as JSON
  nyabot config init                 # Write a default nyabot.yaml
  nyabot config validate             # Check the configuration`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with defaults",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configuration is usable",
	RunE:  runConfigValidate,
}

func init() {
	configShowCmd.Flags().String("format", "yaml", "Output format: yaml or json")
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func loadFromFlag(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromFile(configPath)
	return cfg, configPath, err
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadFromFlag(cmd)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadFromFlag(cmd)
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	pterm.Success.Printf("Wrote %s\n", configPath)
	pterm.Info.Println("Set bt_uin and napcat.ws_uri before running the bot")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadFromFlag(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		pterm.Error.Printf("%s: %v\n", configPath, err)
		os.Exit(1)
	}
	pterm.Success.Printf("%s is valid\n", configPath)
	return nil
}
