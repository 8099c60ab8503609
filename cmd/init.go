package cmd

import (
	"context"

	"github.com/common-nighthawk/go-figure"
	"github.com/emerald-finance/emerald/internal/ui"
	"github.com/emerald-finance/emerald/internal/utils"
	"github.com/spf13/cobra"
)

var (
	initName  string
	initClear bool
)

func init() {
	initCmd.Flags().StringVarP(&initName, "name", "n", "", "display name (default: your login name)")
	initCmd.Flags().BoolVar(&initClear, "clear", false, "erase existing data before onboarding")
}

// resetInitCommandState resets the init command's global state for testing.
func resetInitCommandState() {
	initName = ""
	initClear = false
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up Emerald on this machine",
	Long: `Completes onboarding: stores your display name and creates the
encryption key on first use.

Running init again only updates the display name, unless --clear is given.

Examples:
  emerald init
  emerald init --name Asha
  emerald init --clear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting init command")

		if utils.IsTerminal() && !verbose && !debug {
			figure.NewColorFigure("Emerald", "alligator2", "green", true).Print()
		}

		spinner, cleanup := startSpinner("Setting up Emerald...")
		defer cleanup()

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		profile, err := ws.Users.Profile()
		if err != nil {
			return reportError(spinner, err, "load your profile")
		}

		name := initName
		if name == "" {
			name = utils.DefaultDisplayName()
		}
		Logger.Debugf("Onboarding as %q (clear=%t, onboarded=%t)", name, initClear, profile.Onboarded)

		if err := ws.Users.CompleteOnboarding(context.Background(), name, initClear); err != nil {
			return reportError(spinner, err, "complete onboarding")
		}

		finalMessage := ui.Success.Sprint("✓") + " Welcome, " + ui.Highlight.Sprint(name)
		if profile.Onboarded && !initClear {
			finalMessage = ui.Success.Sprint("✓") + " Display name set to " + ui.Highlight.Sprint(name)
		}
		if profile.ActiveContext == "" || initClear {
			finalMessage += "\n" + ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("emerald context add <name>") + " to create your first budget"
		}
		spinner.FinalMSG = finalMessage
		return nil
	},
}
