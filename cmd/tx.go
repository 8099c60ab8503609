package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/ui"
	"github.com/emerald-finance/emerald/internal/utils"
	"github.com/spf13/cobra"
)

var (
	txCategory   string
	txDate       string
	txType       = newEnumValue(string(models.Expense), string(models.Income), string(models.Expense))
	txAttachment string
	txListDate   string
	txListLimit  int
)

func init() {
	txAddCmd.Flags().StringVarP(&txCategory, "category", "c", "Other", "spending category")
	txAddCmd.Flags().StringVar(&txDate, "date", "", "date (YYYY-MM-DD, default: today)")
	txAddCmd.Flags().VarP(txType, "type", "t", "transaction type")
	txAddCmd.Flags().StringVar(&txAttachment, "attachment", "", "receipt file to attach")

	txListCmd.Flags().StringVar(&txListDate, "date", "", "only show transactions on this date (YYYY-MM-DD)")
	txListCmd.Flags().IntVarP(&txListLimit, "number", "n", 0, "limit number of transactions shown")

	txCmd.AddCommand(txAddCmd)
	txCmd.AddCommand(txListCmd)
	txCmd.AddCommand(txDeleteCmd)
	txCmd.AddCommand(txImportCmd)
}

// resetTxCommandState resets the tx commands' global state for testing.
func resetTxCommandState() {
	txCategory = "Other"
	txDate = ""
	txType.value = string(models.Expense)
	txAttachment = ""
	txListDate = ""
	txListLimit = 0
}

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Record and list transactions",
}

var txAddCmd = &cobra.Command{
	Use:   "add <title> <amount>",
	Short: "Record a transaction",
	Long: `Records an income or expense in the active budget context.

Examples:
  emerald tx add "Groceries" 42.50 --category Food
  emerald tx add "Salary" 5000 --type income --date 2024-03-01
  emerald tx add "Laptop" 1200 --attachment receipt.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting tx add command")
		spinner, cleanup := startSpinner("Recording transaction...")
		defer cleanup()

		amount, err := parseAmountFlag(args[1])
		if err != nil {
			return reportError(spinner, err, "record the transaction")
		}

		tx := models.Transaction{
			Title:    strings.TrimSpace(args[0]),
			Category: txCategory,
			Amount:   amount,
			Date:     txDate,
			Type:     models.TransactionType(txType.String()),
		}
		if tx.Date == "" {
			tx.Date = today()
		}
		if txAttachment != "" {
			Logger.Debugf("Reading attachment %s", txAttachment)
			data, err := readAttachment(txAttachment)
			if err != nil {
				return reportError(spinner, err, "read the attachment")
			}
			tx.Attachment = data
		}

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		tenantID, err := resolveTenant(ws)
		if err != nil {
			return reportError(spinner, err, "record the transaction")
		}
		saved, err := ws.Ledger.AddTransaction(context.Background(), tenantID, tx)
		if err != nil {
			return reportError(spinner, err, "record the transaction")
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Recorded " + ui.Highlight.Sprint(saved.Title) + " " +
			ui.Amount(string(saved.Type), utils.FormatAmount(currency(ws), saved.Amount)) + " " +
			ui.Muted.Sprint(strconv.FormatInt(saved.ID, 10))
		return nil
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting tx list command")
		spinner, cleanup := startSpinner("Loading transactions...")
		defer cleanup()

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		tenantID, err := resolveTenant(ws)
		if err != nil {
			return reportError(spinner, err, "list transactions")
		}

		var txs []models.Transaction
		if txListDate != "" {
			txs, err = ws.Ledger.TransactionsOn(context.Background(), tenantID, txListDate)
		} else {
			txs, err = ws.Ledger.Transactions(context.Background(), tenantID)
		}
		if err != nil {
			return reportError(spinner, err, "list transactions")
		}
		Logger.Debugf("Loaded %d transactions for %s", len(txs), tenantID)

		if len(txs) == 0 {
			spinner.FinalMSG = ui.Info.Sprint("ℹ") + " No transactions found"
			return nil
		}
		if txListLimit > 0 && len(txs) > txListLimit {
			txs = txs[:txListLimit]
		}

		sym := currency(ws)
		var b strings.Builder
		for _, tx := range txs {
			title := tx.Title
			if tx.HasAttachment {
				title += " 📎"
			}
			fmt.Fprintf(&b, "%s  %-28s %-14s %s  %s\n", tx.Date, title, tx.Category,
				ui.Amount(string(tx.Type), utils.FormatAmount(sym, tx.Amount)),
				ui.Muted.Sprint(strconv.FormatInt(tx.ID, 10)))
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}

var txDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a transaction and its attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting tx delete command")
		spinner, cleanup := startSpinner("Deleting transaction...")
		defer cleanup()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return reportError(spinner, fmt.Errorf("%w: transaction %q", kerrors.ErrNotFound, args[0]), "delete the transaction")
		}

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		ctx := context.Background()
		if _, ok, err := ws.Ledger.Transaction(ctx, id); err != nil {
			return reportError(spinner, err, "delete the transaction")
		} else if !ok {
			return reportError(spinner, fmt.Errorf("%w: transaction %d", kerrors.ErrNotFound, id), "delete the transaction")
		}
		if err := ws.Ledger.DeleteTransaction(ctx, id); err != nil {
			return reportError(spinner, err, "delete the transaction")
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " Deleted transaction " + ui.Muted.Sprint(args[0])
		return nil
	},
}

var txImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import transactions from a JSON array",
	Long: `Imports a JSON array of transactions into one budget context. Every
transaction is filed under the context, whatever context it names.
Nothing is imported if any transaction is invalid.

Use - to read from stdin.

Examples:
  emerald tx import statement.json
  cat statement.json | emerald tx import - --tenant business`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting tx import command")
		spinner, cleanup := startSpinner("Importing transactions...")
		defer cleanup()

		data, err := utils.ReadInput(args[0])
		if err != nil {
			return reportError(spinner, err, "read the import file")
		}
		var txs []models.Transaction
		if err := json.Unmarshal(data, &txs); err != nil {
			return reportError(spinner, fmt.Errorf("%w: %v", kerrors.ErrParse, err), "import transactions")
		}

		ws, err := openWorkspace()
		if err != nil {
			return reportError(spinner, err, "open the database")
		}
		defer ws.Close()

		tenantID, err := resolveTenant(ws)
		if err != nil {
			return reportError(spinner, err, "import transactions")
		}
		n, err := ws.Ledger.ImportTransactions(context.Background(), tenantID, txs)
		if err != nil {
			return reportError(spinner, err, "import transactions")
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Imported %d transactions into ", n) + ui.Highlight.Sprint(tenantID)
		return nil
	},
}
