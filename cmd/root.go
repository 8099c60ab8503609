package cmd

import (
	"github.com/emerald-finance/emerald/internal/configs"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
	tenant  string
	Logger  logger.Logger

	// Config is loaded by the root command before any subcommand runs.
	Config *configs.Config

	RootCmd = &cobra.Command{
		Use:   "emerald",
		Short: "Emerald - a local, encrypted personal finance ledger.",
		Long: `Emerald keeps transactions, budgets, subscriptions, goals and debts in an
encrypted database on this machine.

Records are grouped into budget contexts, such as a household or a side
business. Backups are plain JSON documents that restore on any machine.

Usage:
  emerald <command> [flags]

Run 'emerald help <command>' for more details on a specific command.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupRoot,
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	RootCmd.PersistentFlags().StringVar(&tenant, "tenant", "", "budget context id (default: the active context)")

	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(contextCmd)
	RootCmd.AddCommand(txCmd)
	RootCmd.AddCommand(budgetCmd)
	RootCmd.AddCommand(subCmd)
	RootCmd.AddCommand(goalCmd)
	RootCmd.AddCommand(debtCmd)
	RootCmd.AddCommand(backupCmd)
	RootCmd.AddCommand(syncCmd)
	RootCmd.AddCommand(restoreCmd)
	RootCmd.AddCommand(resetCmd)
	RootCmd.AddCommand(logCmd)
	RootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// setupRoot resolves the data directories, migrates legacy preferences and
// loads the configuration. The database is opened by the commands that
// need it.
func setupRoot(cmd *cobra.Command, args []string) error {
	Logger = logger.Logger{
		Verbose: verbose,
		Debug:   debug,
	}
	Logger.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.CommandPath(), verbose, debug)

	settings, err := configs.ResolveSettings()
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to resolve settings: %v", err)
	}
	configs.EmeraldSettings = settings
	Logger.Debugf("Config dir: %s, data dir: %s", settings.ConfigDir, settings.DataDir)

	if configs.IsLegacyPreferences(settings) {
		result, err := configs.MigrateLegacyPreferences(settings)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to migrate preferences: %v", err)
		}
		Logger.Infof("Migrated %d legacy preferences, original kept at %s", len(result.Migrated), result.BackupPath)
	}

	Config, err = configs.LoadConfig(settings.ConfigPath())
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to load %s: %v", settings.ConfigPath(), err)
	}
	return nil
}

// Helper functions for testing

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	tenant = ""
	Config = nil
	resetInitCommandState()
	resetContextCommandState()
	resetTxCommandState()
	resetBudgetCommandState()
	resetPlanningCommandState()
	resetBackupCommandState()
	resetLogCommandState()
	resetConfigCommandState()
}

// SetLogger sets the logger for testing.
func SetLogger(l logger.Logger) {
	Logger = l
}
