package commands

import (
	"context"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/nyabot/nyabot/bot"
	"github.com/nyabot/nyabot/config"
	"github.com/nyabot/nyabot/logger"
	"github.com/nyabot/nyabot/version"
)

// RunCmd connects to the gateway and runs the bot until interrupted.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the gateway and run the bot",
	Long: `Connect to the configured OneBot gateway, load plugins and run
until the process receives SIGINT/SIGTERM or the connection is lost.`,
	RunE: runBot,
}

func init() {
	RunCmd.Flags().Bool("debug", false, "Enable debug logging")
	RunCmd.Flags().Bool("skip-plugins", false, "Start without loading external plugins")
}

func runBot(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	skipPlugins, _ := cmd.Flags().GetBool("skip-plugins")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
	}
	if skipPlugins {
		cfg.Plugin.SkipLoad = true
	}

	if cfg.Debug {
		if err := logger.InitializeWithLevel(cfg.Log.JSON, zapcore.DebugLevel); err != nil {
			return err
		}
	} else if err := logger.Initialize(cfg.Log.JSON); err != nil {
		return err
	}

	info := version.Get()
	pterm.Printf("%s\n", pterm.LightCyan(info.String()))
	pterm.Info.Printf("Gateway: %s\n", cfg.Napcat.WSURI)
	pterm.Info.Printf("Bot account: %s\n", cfg.BtUIN)

	client := bot.New(cfg)
	if _, err := os.Stat(configPath); err == nil {
		if werr := client.WatchConfig(configPath); werr != nil {
			pterm.Warning.Printf("Config hot-reload disabled: %v\n", werr)
		}
	}
	return client.RunFrontend(context.Background())
}
