package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/emerald-finance/emerald/internal/configs"
	"github.com/emerald-finance/emerald/internal/ui"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configShowJSON  bool
	configInitForce bool
)

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output in JSON format")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// resetConfigCommandState resets the config commands' global state for testing.
func resetConfigCommandState() {
	configShowJSON = false
	configInitForce = false
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Displays the effective configuration and where Emerald keeps its files.

Set EMERALD_HOME to keep everything in one directory.

Examples:
  emerald config show
  emerald config show --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config show command")
		settings := configs.EmeraldSettings

		if configShowJSON {
			output, err := json.MarshalIndent(struct {
				Config      *configs.Config `json:"config"`
				ConfigFile  string          `json:"configFile"`
				Database    string          `json:"database"`
				Preferences string          `json:"preferences"`
				AuditLog    string          `json:"auditLog"`
			}{Config, settings.ConfigPath(), settings.DatabasePath(Config), settings.PreferencesPath(), settings.AuditPath()}, "", "  ")
			if err != nil {
				return Logger.ErrorfAndReturn("Failed to marshal config to JSON: %v", err)
			}
			fmt.Println(string(output))
			return nil
		}

		source := settings.ConfigPath()
		if _, err := os.Stat(source); os.IsNotExist(err) {
			source = "defaults"
		}

		fmt.Println(color.CyanString("Configuration") + " (" + source + "):")
		fmt.Println()
		fmt.Printf("  %-16s %s\n", "Database:", ui.Path.Sprint(settings.DatabasePath(Config)))
		fmt.Printf("  %-16s %s\n", "Open timeout:", color.GreenString(Config.Database.OpenTimeout))
		fmt.Printf("  %-16s %s\n", "Cipher:", color.GreenString(string(Config.Algorithm())))
		fmt.Printf("  %-16s %s\n", "Currency:", color.GreenString(Config.Display.Currency))
		fmt.Printf("  %-16s %s\n", "Backup dir:", valueOrUnset(Config.Backup.Dir))
		fmt.Printf("  %-16s %s\n", "Sync dir:", valueOrUnset(Config.Backup.SyncDir))
		fmt.Println()
		fmt.Printf("  %-16s %s\n", "Preferences:", ui.Path.Sprint(settings.PreferencesPath()))
		fmt.Printf("  %-16s %s\n", "Audit log:", ui.Path.Sprint(settings.AuditPath()))
		return nil
	},
}

func valueOrUnset(v string) string {
	if v == "" {
		return color.YellowString("(not set)")
	}
	return ui.Path.Sprint(v)
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config init command")
		path := configs.EmeraldSettings.ConfigPath()

		if _, err := os.Stat(path); err == nil && !configInitForce {
			fmt.Println(ui.Warning.Sprint("⚠") + " " + ui.Path.Sprint(path) + " already exists\n" +
				ui.Info.Sprint("→") + " Pass " + ui.Flag.Sprint("--force") + " to overwrite it")
			return nil
		}

		if err := configs.SaveConfig(path, configs.DefaultConfig()); err != nil {
			return Logger.ErrorfAndReturn("Failed to write %s: %v", path, err)
		}
		fmt.Println(ui.Success.Sprint("✓") + " Wrote " + ui.Path.Sprint(path))
		return nil
	},
}
