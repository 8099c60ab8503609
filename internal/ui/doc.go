// Package ui provides semantic text formatting for CLI output.
//
// Formatters colorize text when the terminal supports it. When NO_COLOR is
// set or the terminal has no colors, they fall back to text decorations:
//
//	ui.Code.Sprint("emerald backup")   // `emerald backup`
//	ui.Highlight.Sprint("Household")   // 'Household'
//	ui.Muted.Sprint("no budget")       // (no budget)
//	ui.Income.Sprint("₹500.00")        // +₹500.00
//	ui.Expense.Sprint("₹20.00")        // -₹20.00
//
// Amount and ProgressBar build on them for ledger and budget output.
package ui
