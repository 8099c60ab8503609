package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Formatter applies semantic formatting to text.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

// Sprint formats the arguments and returns the resulting string.
func (f Formatter) Sprint(a ...interface{}) string {
	return f.render(fmt.Sprint(a...))
}

// Sprintf formats according to a format specifier and returns the resulting string.
func (f Formatter) Sprintf(format string, a ...interface{}) string {
	return f.render(fmt.Sprintf(format, a...))
}

func (f Formatter) render(text string) string {
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// EnsureNewline ensures the string ends with a newline character.
func EnsureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

// noColor returns true if color output should be disabled.
func noColor() bool {
	// https://no-color.org/
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

// Semantic formatters for different types of CLI output.
var (
	// Code formats runnable commands. `backticks` without color.
	Code = Formatter{color.New(color.FgYellow), "`", "`"}

	// Path formats file or directory paths.
	Path = Formatter{color.New(color.FgYellow), "", ""}

	// Flag formats CLI flags like --tenant.
	Flag = Formatter{color.New(color.FgYellow), "", ""}

	Success = Formatter{color.New(color.FgGreen), "", ""}
	Error   = Formatter{color.New(color.FgRed), "", ""}
	Warning = Formatter{color.New(color.FgYellow), "", ""}
	Info    = Formatter{color.New(color.FgCyan), "", ""}

	// Highlight formats user values such as budget names. 'single quotes'
	// without color.
	Highlight = Formatter{color.New(color.FgCyan), "'", "'"}

	// Muted formats secondary text. (parentheses) without color.
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}

	// Income and Expense format signed amounts. Without color the sign
	// carries the meaning.
	Income  = Formatter{color.New(color.FgGreen), "+", ""}
	Expense = Formatter{color.New(color.FgRed), "-", ""}
)

// Amount formats an amount of the given transaction type. Income is green,
// expenses are red.
func Amount(kind, text string) string {
	if kind == "income" {
		return Income.Sprint(text)
	}
	return Expense.Sprint(text)
}

// ProgressBar renders how much of a limit is used as a bar of width cells.
// The bar turns yellow past 80% and red past 100%.
func ProgressBar(used, limit float64, width int) string {
	if width <= 0 {
		return ""
	}
	ratio := 0.0
	if limit > 0 {
		ratio = used / limit
	} else if used > 0 {
		ratio = 1.5
	}

	filled := int(ratio*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"

	switch {
	case ratio > 1:
		return Error.Sprint(bar)
	case ratio > 0.8:
		return Warning.Sprint(bar)
	default:
		return Success.Sprint(bar)
	}
}
