package cmd

import (
	"context"
	"fmt"
	"strings"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/ui"
	"github.com/emerald-finance/emerald/internal/utils"
	"github.com/emerald-finance/emerald/internal/workflows"
	"github.com/spf13/cobra"
)

const defaultGoalColor = "#10b981"

var (
	subCycle    = newEnumValue(models.Monthly, models.Daily, models.Weekly, models.Monthly, models.Quarterly, models.HalfYearly, models.Yearly)
	subNext     string
	subCategory string
	subAutoPay  bool

	goalSaved    string
	goalDeadline string
	goalColor    string
	goalIcon     string

	debtRate     float64
	debtMinimum  string
	debtCategory string
)

func init() {
	subAddCmd.Flags().Var(subCycle, "cycle", "billing cycle")
	subAddCmd.Flags().StringVar(&subNext, "next", "", "next billing date (YYYY-MM-DD, default: today)")
	subAddCmd.Flags().StringVarP(&subCategory, "category", "c", "Subscriptions", "spending category")
	subAddCmd.Flags().BoolVar(&subAutoPay, "autopay", false, "paid automatically")
	subCmd.AddCommand(subAddCmd)
	subCmd.AddCommand(newPlanningListCmd("subscriptions", subscriptions, subscriptionRow))
	subCmd.AddCommand(newPlanningDeleteCmd("subscription", subscriptions))

	goalAddCmd.Flags().StringVar(&goalSaved, "saved", "", "amount already saved")
	goalAddCmd.Flags().StringVar(&goalDeadline, "deadline", "", "target date (YYYY-MM-DD)")
	goalAddCmd.Flags().StringVar(&goalColor, "color", defaultGoalColor, "display color")
	goalAddCmd.Flags().StringVar(&goalIcon, "icon", "", "icon name")
	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalSaveCmd)
	goalCmd.AddCommand(newPlanningListCmd("goals", goals, goalRow))
	goalCmd.AddCommand(newPlanningDeleteCmd("goal", goals))

	debtAddCmd.Flags().Float64Var(&debtRate, "rate", 0, "annual interest rate in percent")
	debtAddCmd.Flags().StringVar(&debtMinimum, "minimum", "0", "minimum monthly payment")
	debtAddCmd.Flags().StringVarP(&debtCategory, "category", "c", "Loan", "debt category")
	debtCmd.AddCommand(debtAddCmd)
	debtCmd.AddCommand(newPlanningListCmd("debts", debts, debtRow))
	debtCmd.AddCommand(newPlanningDeleteCmd("debt", debts))
}

// resetPlanningCommandState resets the sub, goal and debt commands' global state for testing.
func resetPlanningCommandState() {
	subCycle.value = models.Monthly
	subNext = ""
	subCategory = "Subscriptions"
	subAutoPay = false
	goalSaved = ""
	goalDeadline = ""
	goalColor = defaultGoalColor
	goalIcon = ""
	debtRate = 0
	debtMinimum = "0"
	debtCategory = "Loan"
}

func subscriptions(ws *workflows.Workspace) *workflows.Collection[models.Subscription] {
	return ws.Planning.Subscriptions
}

func goals(ws *workflows.Workspace) *workflows.Collection[models.Goal] {
	return ws.Planning.Goals
}

func debts(ws *workflows.Workspace) *workflows.Collection[models.Debt] {
	return ws.Planning.Debts
}

// addPlanned stores v in the collection of the resolved tenant and sets the
// spinner's final message.
func addPlanned[T any](noun string, collection func(*workflows.Workspace) *workflows.Collection[T], v T, name func(T) (string, string)) error {
	spinner, cleanup := startSpinner("Saving " + noun + "...")
	defer cleanup()

	ws, err := openWorkspace()
	if err != nil {
		return reportError(spinner, err, "open the database")
	}
	defer ws.Close()

	tenantID, err := resolveTenant(ws)
	if err != nil {
		return reportError(spinner, err, "save the "+noun)
	}
	saved, err := collection(ws).Add(context.Background(), tenantID, v)
	if err != nil {
		return reportError(spinner, err, "save the "+noun)
	}
	title, id := name(saved)
	spinner.FinalMSG = ui.Success.Sprint("✓") + " Added " + noun + " " + ui.Highlight.Sprint(title) + " " + ui.Muted.Sprint(id)
	return nil
}

func newPlanningListCmd[T any](plural string, collection func(*workflows.Workspace) *workflows.Collection[T], row func(sym string, v T) string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List " + plural,
		RunE: func(cmd *cobra.Command, args []string) error {
			Logger.Infof("Starting %s list command", plural)
			spinner, cleanup := startSpinner("Loading " + plural + "...")
			defer cleanup()

			ws, err := openWorkspace()
			if err != nil {
				return reportError(spinner, err, "open the database")
			}
			defer ws.Close()

			tenantID, err := resolveTenant(ws)
			if err != nil {
				return reportError(spinner, err, "list "+plural)
			}
			items, err := collection(ws).List(context.Background(), tenantID)
			if err != nil {
				return reportError(spinner, err, "list "+plural)
			}
			if len(items) == 0 {
				spinner.FinalMSG = ui.Info.Sprint("ℹ") + " No " + plural + " found"
				return nil
			}

			sym := currency(ws)
			var b strings.Builder
			for _, item := range items {
				b.WriteString(row(sym, item))
				b.WriteString("\n")
			}
			spinner.FinalMSG = b.String()
			return nil
		},
	}
}

func newPlanningDeleteCmd[T any](noun string, collection func(*workflows.Workspace) *workflows.Collection[T]) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			Logger.Infof("Starting %s delete command", noun)
			spinner, cleanup := startSpinner("Deleting " + noun + "...")
			defer cleanup()

			ws, err := openWorkspace()
			if err != nil {
				return reportError(spinner, err, "open the database")
			}
			defer ws.Close()

			ctx := context.Background()
			c := collection(ws)
			if _, ok, err := c.Get(ctx, args[0]); err != nil {
				return reportError(spinner, err, "delete the "+noun)
			} else if !ok {
				return reportError(spinner, fmt.Errorf("%w: %s %s", kerrors.ErrNotFound, noun, args[0]), "delete the "+noun)
			}
			if err := c.Delete(ctx, args[0]); err != nil {
				return reportError(spinner, err, "delete the "+noun)
			}
			spinner.FinalMSG = ui.Success.Sprint("✓") + " Deleted " + noun + " " + ui.Muted.Sprint(args[0])
			return nil
		},
	}
}

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Track recurring subscriptions",
}

var subAddCmd = &cobra.Command{
	Use:   "add <name> <amount>",
	Short: "Add a subscription",
	Long: `Adds a recurring payment to the active budget context.

Examples:
  emerald sub add Netflix 649 --cycle monthly --next 2024-04-01
  emerald sub add "Domain renewal" 1200 --cycle yearly --autopay`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting sub add command")
		amount, err := parseAmountFlag(args[1])
		if err != nil {
			fmt.Println(formatError(err, "add the subscription"))
			return nil
		}
		next := subNext
		if next == "" {
			next = today()
		}
		sub := models.Subscription{
			Name:            strings.TrimSpace(args[0]),
			Amount:          amount,
			BillingCycle:    subCycle.String(),
			NextBillingDate: next,
			Category:        subCategory,
			AutoPay:         subAutoPay,
		}
		return addPlanned("subscription", subscriptions, sub, func(s models.Subscription) (string, string) { return s.Name, s.ID })
	},
}

func subscriptionRow(sym string, s models.Subscription) string {
	autoPay := ""
	if s.AutoPay {
		autoPay = ui.Muted.Sprint("autopay")
	}
	return fmt.Sprintf("%-24s %12s %-12s next %s %s  %s", s.Name, utils.FormatAmount(sym, s.Amount),
		s.BillingCycle, s.NextBillingDate, autoPay, ui.Muted.Sprint(s.ID))
}

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Track savings goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <name> <target>",
	Short: "Add a savings goal",
	Long: `Adds a savings goal to the active budget context.

Examples:
  emerald goal add "Emergency fund" 100000 --saved 25000
  emerald goal add Holiday 60000 --deadline 2024-12-01`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting goal add command")
		target, err := parseAmountFlag(args[1])
		if err != nil {
			fmt.Println(formatError(err, "add the goal"))
			return nil
		}
		var saved float64
		if goalSaved != "" {
			if saved, err = parseAmountFlag(goalSaved); err != nil {
				fmt.Println(formatError(err, "add the goal"))
				return nil
			}
		}
		goal := models.Goal{
			Name:          strings.TrimSpace(args[0]),
			TargetAmount:  target,
			CurrentAmount: saved,
			Deadline:      goalDeadline,
			Color:         goalColor,
			Icon:          goalIcon,
		}
		return addPlanned("goal", goals, goal, func(g models.Goal) (string, string) { return g.Name, g.ID })
	},
}

var goalSaveCmd = &cobra.Command{
	Use:   "save <id> <amount>",
	Short: "Add money to a savings goal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting goal save command")
		spinner, cleanup := startSpinner("Updating goal...")
		defer cleanup()

		amount, err := parseAmountFlag(args[1])
		if err != nil {
			return reportError(spinner, err, "update the goal")
		}

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		ctx := context.Background()
		goal, ok, err := ws.Planning.Goals.Get(ctx, args[0])
		if err != nil {
			return reportError(spinner, err, "update the goal")
		}
		if !ok {
			return reportError(spinner, fmt.Errorf("%w: goal %s", kerrors.ErrNotFound, args[0]), "update the goal")
		}
		goal.CurrentAmount += amount
		goal, err = ws.Planning.Goals.Update(ctx, goal.Context, goal)
		if err != nil {
			return reportError(spinner, err, "update the goal")
		}

		sym := currency(ws)
		spinner.FinalMSG = ui.Success.Sprint("✓") + " " + ui.Highlight.Sprint(goal.Name) + " is at " +
			utils.FormatAmount(sym, goal.CurrentAmount) + " of " + utils.FormatAmount(sym, goal.TargetAmount) + " " +
			ui.ProgressBar(goal.CurrentAmount, goal.TargetAmount, progressBarWidth)
		return nil
	},
}

func goalRow(sym string, g models.Goal) string {
	deadline := ""
	if g.Deadline != "" {
		deadline = "by " + g.Deadline
	}
	return fmt.Sprintf("%-24s %12s of %-12s %s %s  %s", g.Name, utils.FormatAmount(sym, g.CurrentAmount),
		utils.FormatAmount(sym, g.TargetAmount), ui.ProgressBar(g.CurrentAmount, g.TargetAmount, progressBarWidth),
		deadline, ui.Muted.Sprint(g.ID))
}

var debtCmd = &cobra.Command{
	Use:   "debt",
	Short: "Track debts",
}

var debtAddCmd = &cobra.Command{
	Use:   "add <name> <balance>",
	Short: "Add a debt",
	Long: `Adds a loan or card balance to the active budget context.

Examples:
  emerald debt add "Car loan" 350000 --rate 9.5 --minimum 8500`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting debt add command")
		balance, err := parseAmountFlag(args[1])
		if err != nil {
			fmt.Println(formatError(err, "add the debt"))
			return nil
		}
		minimum, err := parseAmountFlag(debtMinimum)
		if err != nil {
			fmt.Println(formatError(err, "add the debt"))
			return nil
		}
		if debtRate < 0 {
			fmt.Println(formatError(fmt.Errorf("%w: interest rate %v", kerrors.ErrInvalidAmount, debtRate), "add the debt"))
			return nil
		}
		debt := models.Debt{
			Name:           strings.TrimSpace(args[0]),
			CurrentBalance: balance,
			InterestRate:   debtRate,
			MinimumPayment: minimum,
			Category:       debtCategory,
		}
		return addPlanned("debt", debts, debt, func(d models.Debt) (string, string) { return d.Name, d.ID })
	},
}

func debtRow(sym string, d models.Debt) string {
	return fmt.Sprintf("%-24s %12s %6.2f%%  min %s  %s", d.Name, utils.FormatAmount(sym, d.CurrentBalance),
		d.InterestRate, utils.FormatAmount(sym, d.MinimumPayment), ui.Muted.Sprint(d.ID))
}
