package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	"github.com/emerald-finance/emerald/internal/models"
)

// FormatVersion is the version stamped on every snapshot.
const FormatVersion = 1

// Theme carries the display preferences that travel with a backup.
type Theme struct {
	IsDark   bool   `json:"isDark"`
	Currency string `json:"currency"`
}

// Snapshot is the portable backup document. It holds decrypted records and
// never depends on the master key.
type Snapshot struct {
	Version        int                   `json:"version"`
	Timestamp      string                `json:"timestamp"`
	Transactions   []models.Transaction  `json:"transactions"`
	Budgets        models.BudgetMap      `json:"budgets"`
	Subscriptions  []models.Subscription `json:"subscriptions"`
	Goals          []models.Goal         `json:"goals"`
	Debts          []models.Debt         `json:"debts"`
	CustomContexts []models.ContextMeta  `json:"customContexts,omitempty"`
	Theme          *Theme                `json:"theme,omitempty"`
	Attachments    map[string]string     `json:"attachments,omitempty"`
}

// Records counts the records of the six restored stores.
func (s *Snapshot) Records() int {
	return len(s.Transactions) + len(s.Budgets) + len(s.Subscriptions) +
		len(s.Goals) + len(s.Debts) + len(s.CustomContexts)
}

// FileName is the conventional file name of a backup taken at t.
func FileName(t time.Time) string {
	return "emerald_backup_" + t.UTC().Format("2006-01-02") + ".json"
}

// Encode renders a snapshot as indented JSON.
func Encode(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Parse decodes and validates a backup document. Malformed JSON and
// non-object documents fail with ErrParse; anything that is JSON but not a
// valid snapshot fails with a *models.ValidationError listing every
// violation.
func Parse(data []byte) (*Snapshot, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrParse, err)
	}
	if members == nil {
		return nil, fmt.Errorf("%w: backup must be a JSON object", kerrors.ErrParse)
	}

	verr := &models.ValidationError{}
	snap := &Snapshot{}

	snap.Version = decodeVersion(verr, members["version"])
	snap.Timestamp = decodeString(verr, "timestamp", members["timestamp"])
	snap.Transactions = decodeList[models.Transaction](verr, "transactions", members["transactions"], true)
	snap.Budgets = decodeBudgets(verr, members["budgets"])
	snap.Subscriptions = decodeList[models.Subscription](verr, "subscriptions", members["subscriptions"], true)
	snap.Goals = decodeList[models.Goal](verr, "goals", members["goals"], true)
	snap.Debts = decodeList[models.Debt](verr, "debts", members["debts"], true)
	snap.CustomContexts = decodeList[models.ContextMeta](verr, "customContexts", members["customContexts"], false)
	snap.Theme = decodeTheme(verr, members["theme"])
	snap.Attachments = decodeAttachments(verr, members["attachments"])

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

func absent(raw json.RawMessage) bool {
	return raw == nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeVersion(verr *models.ValidationError, raw json.RawMessage) int {
	if absent(raw) {
		verr.Add("version", "is required")
		return 0
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		verr.Add("version", "must be a number")
		return 0
	}
	if v != math.Trunc(v) {
		verr.Add("version", "must be an integer")
		return 0
	}
	return int(v)
}

func decodeString(verr *models.ValidationError, field string, raw json.RawMessage) string {
	if absent(raw) {
		verr.Add(field, "is required")
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		verr.Add(field, "must be a string")
	}
	return s
}

func decodeList[T models.Record](verr *models.ValidationError, field string, raw json.RawMessage, required bool) []T {
	if absent(raw) {
		if required {
			verr.Add(field, "is required")
		}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		verr.Add(field, "must be an array")
		return nil
	}

	out := make([]T, 0, len(items))
	for i, item := range items {
		v, errs := models.DecodeRecord[T](fmt.Sprintf("%s[%d]", field, i), item)
		if len(errs) > 0 {
			verr.Errors = append(verr.Errors, errs...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func decodeBudgets(verr *models.ValidationError, raw json.RawMessage) models.BudgetMap {
	if absent(raw) {
		verr.Add("budgets", "is required")
		return nil
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		verr.Add("budgets", "must be an object")
		return nil
	}

	out := make(models.BudgetMap, len(members))
	for key, v := range members {
		var amount float64
		if absent(v) || json.Unmarshal(v, &amount) != nil {
			verr.Add("budgets."+key, "must be a number")
			continue
		}
		out[key] = amount
	}
	return out
}

func decodeTheme(verr *models.ValidationError, raw json.RawMessage) *Theme {
	if absent(raw) {
		return nil
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil || members == nil {
		verr.Add("theme", "must be an object")
		return nil
	}

	theme := &Theme{}
	if absent(members["isDark"]) || json.Unmarshal(members["isDark"], &theme.IsDark) != nil {
		verr.Add("theme.isDark", "must be a boolean")
	}
	if absent(members["currency"]) || json.Unmarshal(members["currency"], &theme.Currency) != nil {
		verr.Add("theme.currency", "must be a string")
	}
	return theme
}

func decodeAttachments(verr *models.ValidationError, raw json.RawMessage) map[string]string {
	if absent(raw) {
		return nil
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		verr.Add("attachments", "must be an object")
		return nil
	}

	out := make(map[string]string, len(members))
	for id, v := range members {
		var data string
		if absent(v) || json.Unmarshal(v, &data) != nil {
			verr.Add("attachments."+id, "must be a string")
			continue
		}
		out[id] = data
	}
	return out
}
