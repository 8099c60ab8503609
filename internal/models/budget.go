package models

import (
	"regexp"
	"strings"
)

var prefixedMonth = regexp.MustCompile(`^(?:personal|business|.*)-(\d{4}-\d{2})$`)

// NormalizeMonthKey strips a tenant prefix from a month key, so that
// "home-2024-03" and "2024-03" name the same month. Other keys, such as
// "default", pass through.
func NormalizeMonthKey(monthKey string) string {
	return prefixedMonth.ReplaceAllString(monthKey, "$1")
}

// BudgetKey is the budgets store key for a tenant's month, or for one
// category within that month when category is set.
func BudgetKey(tenant, monthKey, category string) string {
	key := tenant + "-" + NormalizeMonthKey(monthKey)
	if category != "" {
		key += "-category-" + category
	}
	return key
}

// DefaultBudgetKey is the key of the limit used when a month has none.
func DefaultBudgetKey(tenant string) string {
	return BudgetKey(tenant, "default", "")
}

// CategoryLimits returns the per-category limits of a tenant's month.
func (m BudgetMap) CategoryLimits(tenant, month string) map[string]float64 {
	prefix := BudgetKey(tenant, month, "") + "-category-"
	out := map[string]float64{}
	for key, amount := range m {
		if category, ok := strings.CutPrefix(key, prefix); ok {
			out[category] = amount
		}
	}
	return out
}

// MonthLimit returns the overall limit of a tenant's month, falling back to
// the tenant default.
func (m BudgetMap) MonthLimit(tenant, month string) (float64, bool) {
	if v, ok := m[BudgetKey(tenant, month, "")]; ok {
		return v, true
	}
	v, ok := m[DefaultBudgetKey(tenant)]
	return v, ok
}
