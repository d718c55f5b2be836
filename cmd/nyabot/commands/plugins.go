package commands

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nyabot/nyabot/config"
	"github.com/nyabot/nyabot/plugin"
)

// PluginsCmd groups plugin inspection subcommands.
var PluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List discovered plugins",
}

var pluginsLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List plugin manifests in the plugin directory",
	RunE:    runPluginsLs,
}

func init() {
	PluginsCmd.AddCommand(pluginsLsCmd)
}

func runPluginsLs(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(cfg.Plugin.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			pterm.Warning.Printf("Plugin directory %s does not exist\n", cfg.Plugin.Dir)
			return nil
		}
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	found := 0
	for _, name := range names {
		m, err := plugin.ReadManifest(filepath.Join(cfg.Plugin.Dir, name))
		if err != nil {
			pterm.Warning.Printf("%s: %v\n", name, err)
			continue
		}
		found++
		pterm.Printf("%s %s", pterm.LightGreen(m.Name), pterm.Gray("v"+m.Version))
		if m.Author != "" {
			pterm.Printf(" %s", pterm.Gray("by "+m.Author))
		}
		pterm.Println()
		if m.Description != "" {
			pterm.Printf("  %s\n", m.Description)
		}
		for dep, rng := range m.Dependencies {
			pterm.Printf("  %s %s %s\n", pterm.Yellow("requires"), dep, rng)
		}
	}

	if found == 0 {
		pterm.Info.Printf("No plugins found in %s\n", cfg.Plugin.Dir)
	} else {
		pterm.Success.Printf("%d plugin(s)\n", found)
	}
	return nil
}
