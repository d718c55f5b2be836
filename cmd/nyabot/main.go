package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nyabot/nyabot/cmd/nyabot/commands"
	"github.com/nyabot/nyabot/config"
	"github.com/nyabot/nyabot/logger"

	// Built-in plugin factories register themselves on import.
	_ "github.com/nyabot/nyabot/plugins/echo"
	_ "github.com/nyabot/nyabot/plugins/status"
)

var rootCmd = &cobra.Command{
	Use:   "nyabot",
	Short: "nyabot - OneBot v11 bot framework",
	Long: `nyabot - plugin-based bot framework for OneBot v11 gateways.

nyabot connects to a napcat (or any OneBot v11) WebSocket gateway,
dispatches events onto an in-process bus, and runs plugins with
declarative commands, filters, scheduled tasks and role-based access
control.

Available commands:
  run      - Connect to the gateway and run the bot
  config   - Inspect and manage the bot configuration
  plugins  - List discovered plugins
  version  - Show version information

Examples:
  nyabot run                      # Run with ./nyabot.yaml
  nyabot run -c /etc/nyabot.yaml  # Run with an explicit config
  nyabot config show              # Show the effective configuration
  nyabot plugins ls               # List plugin manifests`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "show" || cmd.Name() == "version" {
			return nil
		}
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigFile, "Path to the configuration file")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.PluginsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
