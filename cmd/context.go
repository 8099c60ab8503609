package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/emerald-finance/emerald/internal/ui"
	"github.com/emerald-finance/emerald/internal/utils"
	"github.com/emerald-finance/emerald/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	contextDescription string
	contextIcon        string
	contextTimeline    = newEnumValue(workflows.DefaultContextTimeline, "weekly", "monthly", "yearly", "one-time")
	contextStartDate   string
	contextEndDate     string
	contextBudget      string
)

func init() {
	contextAddCmd.Flags().StringVar(&contextDescription, "description", "", "what the budget is for")
	contextAddCmd.Flags().StringVar(&contextIcon, "icon", "", "icon name (default: Folder)")
	contextAddCmd.Flags().Var(contextTimeline, "timeline", "budget period")
	contextAddCmd.Flags().StringVar(&contextStartDate, "start", "", "start date (YYYY-MM-DD)")
	contextAddCmd.Flags().StringVar(&contextEndDate, "end", "", "end date (YYYY-MM-DD)")
	contextAddCmd.Flags().StringVar(&contextBudget, "budget", "", "default monthly limit")

	contextCmd.AddCommand(contextAddCmd)
	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextUseCmd)
	contextCmd.AddCommand(contextRenameCmd)
	contextCmd.AddCommand(contextDeleteCmd)
}

// resetContextCommandState resets the context commands' global state for testing.
func resetContextCommandState() {
	contextDescription = ""
	contextIcon = ""
	contextTimeline.value = workflows.DefaultContextTimeline
	contextStartDate = ""
	contextEndDate = ""
	contextBudget = ""
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage budget contexts",
	Long: `A budget context keeps its transactions, budgets and plans apart from
the others, such as a household budget and a side business.

Commands that work on records use the active context unless --tenant is given.`,
}

var contextAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a budget context",
	Long: `Creates a budget context. The first context you create becomes active.

Examples:
  emerald context add Household --budget 3000
  emerald context add "Wedding" --timeline one-time --start 2025-01-01 --end 2025-06-30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting context add command")
		spinner, cleanup := startSpinner("Creating budget context...")
		defer cleanup()

		var budget float64
		if contextBudget != "" {
			amount, err := parseAmountFlag(contextBudget)
			if err != nil {
				return reportError(spinner, err, "create the context")
			}
			budget = amount
		}

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		id, err := ws.Users.AddContext(context.Background(), workflows.ContextInput{
			Name:         args[0],
			Description:  contextDescription,
			Icon:         contextIcon,
			Timeline:     contextTimeline.String(),
			StartDate:    contextStartDate,
			EndDate:      contextEndDate,
			BudgetAmount: budget,
		})
		if err != nil {
			return reportError(spinner, err, "create the context")
		}

		finalMessage := ui.Success.Sprint("✓") + " Created " + ui.Highlight.Sprint(strings.TrimSpace(args[0])) + " " + ui.Muted.Sprint(id)
		if budget > 0 {
			finalMessage += "\n" + ui.Info.Sprint("→") + " Monthly limit " + utils.FormatAmount(currency(ws), budget)
		}
		spinner.FinalMSG = finalMessage
		return nil
	},
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List budget contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting context list command")
		spinner, cleanup := startSpinner("Loading budget contexts...")
		defer cleanup()

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		contexts, err := ws.Users.Contexts(context.Background())
		if err != nil {
			return reportError(spinner, err, "list contexts")
		}
		profile, err := ws.Users.Profile()
		if err != nil {
			return reportError(spinner, err, "load your profile")
		}

		if len(contexts) == 0 {
			spinner.FinalMSG = ui.Info.Sprint("ℹ") + " No budget contexts yet\n" +
				ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("emerald context add <name>") + " to create one"
			return nil
		}

		var b strings.Builder
		for _, c := range contexts {
			marker := " "
			if c.ID == profile.ActiveContext {
				marker = ui.Success.Sprint("*")
			}
			fmt.Fprintf(&b, "%s %-24s %-10s %s\n", marker, c.Name, c.Timeline, ui.Muted.Sprint(c.ID))
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}

var contextUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Switch the active budget context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting context use command")
		spinner, cleanup := startSpinner("Switching budget context...")
		defer cleanup()

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		if err := ws.Users.SetActiveContext(context.Background(), args[0]); err != nil {
			return reportError(spinner, err, "switch context")
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " Active context is now " + ui.Highlight.Sprint(args[0])
		return nil
	},
}

var contextRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a budget context",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting context rename command")
		spinner, cleanup := startSpinner("Renaming budget context...")
		defer cleanup()

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		name := args[1]
		meta, err := ws.Users.UpdateContext(context.Background(), args[0], workflows.ContextPatch{Name: &name})
		if err != nil {
			return reportError(spinner, err, "rename the context")
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " Renamed " + ui.Muted.Sprint(meta.ID) + " to " + ui.Highlight.Sprint(meta.Name)
		return nil
	},
}

var contextDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a budget context",
	Long: `Deletes a budget context. Its transactions and plans are kept and
reappear if a context with the same id is restored from a backup.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting context delete command")
		spinner, cleanup := startSpinner("Deleting budget context...")
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
		next, err := ws.Users.DeleteContext(context.Background(), args[0], profile.ActiveContext)
		if err != nil {
			return reportError(spinner, err, "delete the context")
		}

		finalMessage := ui.Success.Sprint("✓") + " Deleted " + ui.Highlight.Sprint(args[0])
		if profile.ActiveContext == args[0] {
			if next == "" {
				finalMessage += "\n" + ui.Warning.Sprint("⚠") + " No budget context is active"
			} else {
				finalMessage += "\n" + ui.Info.Sprint("→") + " Active context is now " + ui.Highlight.Sprint(next)
			}
		}
		spinner.FinalMSG = finalMessage
		return nil
	},
}
