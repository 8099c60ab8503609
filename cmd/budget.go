package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emerald-finance/emerald/internal/ui"
	"github.com/emerald-finance/emerald/internal/utils"
	"github.com/spf13/cobra"
)

const progressBarWidth = 20

var (
	budgetMonth    string
	budgetCategory string
)

func init() {
	budgetSetCmd.Flags().StringVarP(&budgetMonth, "month", "m", "", "month (YYYY-MM or default, default: this month)")
	budgetSetCmd.Flags().StringVarP(&budgetCategory, "category", "c", "", "limit one category instead of the whole month")
	budgetShowCmd.Flags().StringVarP(&budgetMonth, "month", "m", "", "month (YYYY-MM, default: this month)")

	budgetCmd.AddCommand(budgetSetCmd)
	budgetCmd.AddCommand(budgetShowCmd)
}

// resetBudgetCommandState resets the budget commands' global state for testing.
func resetBudgetCommandState() {
	budgetMonth = ""
	budgetCategory = ""
}

func currentMonth() string {
	return time.Now().Format("2006-01")
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Set and review monthly limits",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set <amount>",
	Short: "Set a monthly limit",
	Long: `Sets the spending limit of a month, or of one category in that month.
A "default" limit applies to every month without its own.

Examples:
  emerald budget set 3000
  emerald budget set 400 --category Food --month 2024-03
  emerald budget set 2500 --month default`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting budget set command")
		spinner, cleanup := startSpinner("Saving budget...")
		defer cleanup()

		amount, err := parseAmountFlag(args[0])
		if err != nil {
			return reportError(spinner, err, "save the budget")
		}
		month := budgetMonth
		if month == "" {
			month = currentMonth()
		}

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		tenantID, err := resolveTenant(ws)
		if err != nil {
			return reportError(spinner, err, "save the budget")
		}
		key, err := ws.Ledger.UpdateBudget(context.Background(), amount, month, budgetCategory, tenantID)
		if err != nil {
			return reportError(spinner, err, "save the budget")
		}
		Logger.Debugf("Saved budget under %s", key)

		target := month
		if budgetCategory != "" {
			target = strings.TrimSpace(budgetCategory) + " in " + month
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " Limit for " + ui.Highlight.Sprint(target) + " set to " +
			utils.FormatAmount(currency(ws), amount)
		return nil
	},
}

var budgetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show spending against limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting budget show command")
		spinner, cleanup := startSpinner("Calculating budget...")
		defer cleanup()

		month := budgetMonth
		if month == "" {
			month = currentMonth()
		}

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		tenantID, err := resolveTenant(ws)
		if err != nil {
			return reportError(spinner, err, "show the budget")
		}
		status, err := ws.Ledger.BudgetStatus(context.Background(), tenantID, month)
		if err != nil {
			return reportError(spinner, err, "show the budget")
		}

		sym := currency(ws)
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s\n\n", ui.Info.Sprint("Budget"), ui.Highlight.Sprint(status.Month))
		fmt.Fprintf(&b, "  %-14s %s\n", "Income:", ui.Amount("income", utils.FormatAmount(sym, status.Income)))
		fmt.Fprintf(&b, "  %-14s %s\n", "Spent:", ui.Amount("expense", utils.FormatAmount(sym, status.Spent)))
		if status.HasLimit {
			fmt.Fprintf(&b, "  %-14s %s %s\n", "Limit:", utils.FormatAmount(sym, status.Limit),
				ui.ProgressBar(status.Spent, status.Limit, progressBarWidth))
			fmt.Fprintf(&b, "  %-14s %s\n", "Remaining:", utils.FormatAmount(sym, status.Remaining))
		} else {
			fmt.Fprintf(&b, "  %-14s %s\n", "Limit:", ui.Muted.Sprint("none"))
		}

		if len(status.Categories) > 0 {
			b.WriteString("\n")
		}
		for _, c := range status.Categories {
			if c.HasLimit {
				fmt.Fprintf(&b, "  %-14s %12s of %-12s %s\n", c.Category,
					utils.FormatAmount(sym, c.Spent), utils.FormatAmount(sym, c.Limit),
					ui.ProgressBar(c.Spent, c.Limit, progressBarWidth))
				continue
			}
			fmt.Fprintf(&b, "  %-14s %12s\n", c.Category, utils.FormatAmount(sym, c.Spent))
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}
