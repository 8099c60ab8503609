package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount with two decimals behind a currency symbol.
// Negative amounts keep the sign in front of the symbol.
func FormatAmount(currency string, amount float64) string {
	d := decimal.NewFromFloat(amount)
	if d.IsNegative() {
		return "-" + currency + d.Neg().StringFixed(2)
	}
	return currency + d.StringFixed(2)
}

// ParseAmount parses a user supplied amount. Thousands separators are
// ignored; negative and non-numeric values are rejected.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%q is negative", s)
	}
	return d.InexactFloat64(), nil
}
