package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/emerald-finance/emerald/internal/backup"
	"github.com/emerald-finance/emerald/internal/ui"
	"github.com/emerald-finance/emerald/internal/utils"
	"github.com/spf13/cobra"
)

var (
	backupDir     string
	restoreLatest bool
	resetYes      bool

	// Swapped in tests.
	confirmInput io.Reader = os.Stdin
	interactive            = utils.IsTerminal
)

func init() {
	backupCmd.Flags().StringVarP(&backupDir, "dir", "o", "", "directory to write the backup to (default: backup.dir from config, or the current directory)")
	restoreCmd.Flags().BoolVar(&restoreLatest, "latest", false, "restore the newest backup in the backup directory")
	restoreCmd.Flags().StringVar(&backupDir, "dir", "", "directory searched by --latest")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
}

// resetBackupCommandState resets the backup, restore and reset commands' global state for testing.
func resetBackupCommandState() {
	backupDir = ""
	restoreLatest = false
	resetYes = false
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a backup of all data",
	Long: `Writes every record, budget and attachment to emerald_backup_YYYY-MM-DD.json.

The backup is plain JSON and does not depend on this machine's encryption
key, so keep it somewhere safe. A backup from the same day is overwritten.

Examples:
  emerald backup
  emerald backup -o ~/Backups`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting backup command")
		spinner, cleanup := startSpinner("Writing backup...")
		defer cleanup()

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		result, err := ws.Backups.Export(context.Background(), backupDir)
		if err != nil {
			return reportError(spinner, err, "write the backup")
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Backed up to " + ui.Path.Sprint(result.Path) + "\n" +
			fmt.Sprintf("  %d records, %d attachments\n\n", result.Records, result.Attachments) +
			ui.Warning.Sprint("Note:") + " The backup is not encrypted."
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write a backup to the cloud sync folder",
	Long: `Writes a backup into backup.sync_dir, a folder mirrored by a cloud
storage client. Without a sync folder, a local backup is written instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting sync command")
		spinner, cleanup := startSpinner("Syncing...")
		defer cleanup()

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		result, err := ws.Backups.Sync(context.Background())
		if err != nil {
			return reportError(spinner, err, "sync")
		}

		if result.FellBack {
			spinner.FinalMSG = ui.Warning.Sprint("⚠") + " No sync folder available, wrote a local backup to " + ui.Path.Sprint(result.Path) + "\n" +
				ui.Info.Sprint("→") + " Set " + ui.Code.Sprint("backup.sync_dir") + " in your config to sync"
			return nil
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " Synced to " + ui.Path.Sprint(result.Path) +
			fmt.Sprintf("\n  %d records, %d attachments", result.Records, result.Attachments)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [file|-]",
	Short: "Replace all data with a backup",
	Long: `Restores a backup written by 'emerald backup' or 'emerald sync'.

The backup is checked completely before anything changes. Then all records
are replaced in one step: if anything fails, your current data is kept.

Examples:
  emerald restore emerald_backup_2024-03-15.json
  emerald restore --latest
  cat backup.json | emerald restore -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting restore command")
		spinner, cleanup := startSpinner("Restoring backup...")
		defer cleanup()

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		var source string
		switch {
		case len(args) == 1:
			source = args[0]
		case restoreLatest:
			source, err = ws.Backups.Latest(backupDir)
			if err != nil {
				return reportError(spinner, err, "find a backup")
			}
		default:
			spinner.FinalMSG = ui.Error.Sprint("✗") + " No backup given\n" +
				ui.Info.Sprint("→") + " Pass a file, " + ui.Code.Sprint("-") + " for stdin, or " + ui.Flag.Sprint("--latest")
			return nil
		}
		Logger.Debugf("Restoring from %s", source)

		data, err := utils.ReadInput(source)
		if err != nil {
			return reportError(spinner, err, "read the backup")
		}

		opts := backup.RestoreOptions{
			OnPhase: func(p backup.Phase) {
				spinner.Lock()
				spinner.Suffix = " Restoring backup (" + p.String() + ")..."
				spinner.Unlock()
			},
		}
		result, err := ws.Backups.Restore(context.Background(), data, source, opts)
		if err != nil {
			return reportError(spinner, err, "restore the backup")
		}

		finalMessage := ui.Success.Sprint("✓") + " Restored " + ui.Path.Sprint(source) + "\n" +
			fmt.Sprintf("  %d records, %d attachments", result.Records, result.Attachments)
		if result.FailedAttachments > 0 {
			finalMessage += "\n" + ui.Warning.Sprint("⚠") + fmt.Sprintf(" %d attachments could not be restored", result.FailedAttachments)
		}
		spinner.FinalMSG = finalMessage
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase all data",
	Long: `Erases every record and preference on this machine. The encryption key
is kept. Take a backup first if you may want the data back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting reset command")

		if !resetYes {
			if !interactive() {
				fmt.Println(ui.Error.Sprint("✗") + " Refusing to erase data without confirmation\n" +
					ui.Info.Sprint("→") + " Pass " + ui.Flag.Sprint("--yes") + " to confirm")
				return nil
			}
			ok, err := utils.Confirm(confirmInput, os.Stdout, "Erase all Emerald data on this machine?")
			if err != nil {
				return Logger.ErrorfAndReturn("Failed to read confirmation: %v", err)
			}
			if !ok {
				fmt.Println(ui.Info.Sprint("ℹ") + " Nothing was erased")
				return nil
			}
		}

		spinner, cleanup := startSpinner("Erasing data...")
		defer cleanup()

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		if err := ws.Users.Reset(context.Background()); err != nil {
			return reportError(spinner, err, "erase data")
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " All data erased\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("emerald init") + " to start again"
		return nil
	},
}
