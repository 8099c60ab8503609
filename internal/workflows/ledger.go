package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emerald-finance/emerald/internal/audit"
	kerrors "github.com/emerald-finance/emerald/internal/errors"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/records"
	"github.com/emerald-finance/emerald/internal/store"
	"github.com/shopspring/decimal"
)

// Ledger manages transactions, their attachments and budgets.
type Ledger struct {
	gateway *records.Gateway
	log     logger.Logger
	now     func() time.Time
}

func NewLedger(gateway *records.Gateway, log logger.Logger) *Ledger {
	return &Ledger{gateway: gateway, log: log, now: time.Now}
}

func attachmentKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// tag fills the context from tenant when tx carries none and validates tx.
func tag(path, tenant string, tx *models.Transaction) []models.FieldError {
	if tx.Context == "" {
		tx.Context = tenant
	}
	var errs []models.FieldError
	if tx.Context == "" {
		errs = append(errs, models.FieldError{Field: joinPath(path, "context"), Message: "is required"})
	}
	return append(errs, models.Validate(path, tx)...)
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// AddTransaction stores a new transaction. A zero id becomes the current
// time in milliseconds. An attachment is moved to the attachments store and
// only hasAttachment stays on the record.
func (l *Ledger) AddTransaction(ctx context.Context, tenant string, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == 0 {
		tx.ID = l.now().UnixMilli()
	}
	if errs := tag("", tenant, &tx); len(errs) > 0 {
		return tx, &models.ValidationError{Errors: errs}
	}

	if tx.Attachment != "" {
		if err := l.gateway.DB().Put(ctx, store.Attachments, tx.Attachment, attachmentKey(tx.ID)); err != nil {
			return tx, fmt.Errorf("saving attachment: %w", err)
		}
		tx.Attachment = ""
		tx.HasAttachment = true
	}

	if err := l.gateway.Save(ctx, store.Transactions, tx); err != nil {
		return tx, fmt.Errorf("saving transaction: %w", err)
	}
	l.log.Debugf("Added transaction %d to %s", tx.ID, tx.Context)
	return tx, nil
}

// UpdateTransaction replaces an existing transaction. A new attachment
// replaces the stored one; without one the stored attachment is kept.
//
// Returns ErrNotFound if no transaction has the id of tx.
func (l *Ledger) UpdateTransaction(ctx context.Context, tenant string, tx models.Transaction) (models.Transaction, error) {
	existing, ok, err := l.Transaction(ctx, tx.ID)
	if err != nil {
		return tx, err
	}
	if !ok {
		return tx, fmt.Errorf("%w: transaction %d", kerrors.ErrNotFound, tx.ID)
	}
	if errs := tag("", tenant, &tx); len(errs) > 0 {
		return tx, &models.ValidationError{Errors: errs}
	}

	if tx.Attachment != "" {
		if err := l.gateway.DB().Put(ctx, store.Attachments, tx.Attachment, attachmentKey(tx.ID)); err != nil {
			return tx, fmt.Errorf("saving attachment: %w", err)
		}
		tx.Attachment = ""
		tx.HasAttachment = true
	} else {
		tx.HasAttachment = tx.HasAttachment || existing.HasAttachment
	}

	if err := l.gateway.Save(ctx, store.Transactions, tx); err != nil {
		return tx, fmt.Errorf("saving transaction: %w", err)
	}
	return tx, nil
}

// DeleteTransaction removes a transaction and its attachment. A missing
// transaction is not an error.
func (l *Ledger) DeleteTransaction(ctx context.Context, id int64) error {
	if err := l.gateway.Delete(ctx, store.Transactions, id); err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	if err := l.gateway.DB().Delete(ctx, store.Attachments, attachmentKey(id)); err != nil {
		l.log.Warnf("Could not delete attachment of transaction %d: %v", id, err)
	}
	return nil
}

// ImportTransactions stores a batch of transactions in one transaction.
// Every transaction is tagged with tenant, replacing any context it
// carried. Transactions without an id get consecutive millisecond ids.
// The whole batch is validated first; nothing is written if any record is
// invalid. Attachments are written after the batch, best effort.
func (l *Ledger) ImportTransactions(ctx context.Context, tenant string, txs []models.Transaction) (int, error) {
	if tenant == "" {
		verr := &models.ValidationError{}
		verr.Add("context", "is required")
		return 0, verr
	}

	base := l.now().UnixMilli()
	verr := &models.ValidationError{}
	batch := make([]any, len(txs))
	attachments := map[int64]string{}
	for i := range txs {
		tx := txs[i]
		if tx.ID == 0 {
			tx.ID = base + int64(i)
		}
		tx.Context = tenant
		verr.Errors = append(verr.Errors, tag(fmt.Sprintf("transactions[%d]", i), tenant, &tx)...)
		if tx.Attachment != "" {
			attachments[tx.ID] = tx.Attachment
			tx.Attachment = ""
			tx.HasAttachment = true
		}
		batch[i] = tx
	}
	if err := verr.Err(); err != nil {
		return 0, err
	}

	if err := l.gateway.SaveMany(ctx, store.Transactions, batch); err != nil {
		return 0, fmt.Errorf("importing transactions: %w", err)
	}
	for id, data := range attachments {
		if err := l.gateway.DB().Put(ctx, store.Attachments, data, attachmentKey(id)); err != nil {
			l.log.Warnf("Could not save attachment of transaction %d: %v", id, err)
		}
	}

	entry := audit.LogWithUser("import")
	entry.Tenant = tenant
	entry.Records = len(batch)
	audit.Log(entry)
	return len(batch), nil
}

// Transaction returns the transaction with id.
func (l *Ledger) Transaction(ctx context.Context, id int64) (models.Transaction, bool, error) {
	row, ok, err := l.gateway.Load(ctx, store.Transactions, id)
	if err != nil || !ok {
		return models.Transaction{}, false, err
	}
	items, _, err := records.DecodeRows[models.Transaction]([]records.Row{row})
	if err != nil || len(items) == 0 {
		return models.Transaction{}, false, err
	}
	return items[0], true, nil
}

// Transactions returns the transactions of one tenant, newest first.
func (l *Ledger) Transactions(ctx context.Context, tenant string) ([]models.Transaction, error) {
	rows, err := l.gateway.LoadByIndex(ctx, store.Transactions, store.IndexContext, tenant)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}
	return l.decode(rows)
}

// TransactionsOn returns the transactions of one tenant dated exactly date.
func (l *Ledger) TransactionsOn(ctx context.Context, tenant, date string) ([]models.Transaction, error) {
	rows, err := l.gateway.LoadByIndex(ctx, store.Transactions, store.IndexDate, date)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}
	all, err := l.decode(rows)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, tx := range all {
		if tx.Context == tenant {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (l *Ledger) decode(rows []records.Row) ([]models.Transaction, error) {
	txs, skipped, err := records.DecodeRows[models.Transaction](rows)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		l.log.Warnf("%d transactions could not be decrypted and are hidden", skipped)
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date > txs[j].Date
		}
		return txs[i].ID > txs[j].ID
	})
	return txs, nil
}

// Attachment returns the attachment of a transaction.
func (l *Ledger) Attachment(ctx context.Context, id int64) (string, bool, error) {
	raw, ok, err := l.gateway.DB().Get(ctx, store.Attachments, attachmentKey(id))
	if err != nil || !ok {
		return "", false, err
	}
	var data string
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", false, fmt.Errorf("reading attachment %d: %w", id, err)
	}
	return data, true, nil
}

// UpdateBudget sets a limit and returns the budget key it was stored
// under. Without category the limit covers the whole month; monthKey may
// be "YYYY-MM", a prefixed month such as "home-2024-03", or "default".
//
// Returns ErrInvalidAmount if amount is negative.
func (l *Ledger) UpdateBudget(ctx context.Context, amount float64, monthKey, category, tenant string) (string, error) {
	if amount < 0 {
		return "", fmt.Errorf("%w: %v", kerrors.ErrInvalidAmount, amount)
	}
	verr := &models.ValidationError{}
	if tenant == "" {
		verr.Add("context", "is required")
	}
	month := models.NormalizeMonthKey(monthKey)
	if month != "default" {
		if _, err := time.Parse("2006-01", month); err != nil {
			verr.Add("month", "must be YYYY-MM or default")
		}
	}
	if err := verr.Err(); err != nil {
		return "", err
	}

	key := models.BudgetKey(tenant, month, strings.TrimSpace(category))
	if err := l.gateway.Save(ctx, store.Budgets, models.Budget{Key: key, Amount: amount}); err != nil {
		return "", fmt.Errorf("saving budget: %w", err)
	}
	return key, nil
}

// Budgets returns every budget of every tenant.
func (l *Ledger) Budgets(ctx context.Context) (models.BudgetMap, error) {
	rows, err := l.gateway.LoadAll(ctx, store.Budgets)
	if err != nil {
		return nil, fmt.Errorf("loading budgets: %w", err)
	}
	budgets, _, err := records.DecodeRows[models.Budget](rows)
	if err != nil {
		return nil, err
	}
	out := make(models.BudgetMap, len(budgets))
	for _, b := range budgets {
		out[b.Key] = b.Amount
	}
	return out, nil
}

// CategoryStatus is the spending of one category against its limit.
type CategoryStatus struct {
	Category  string
	Spent     float64
	Limit     float64
	HasLimit  bool
	Remaining float64
}

// BudgetStatus is a tenant's month: income, spending and limits.
type BudgetStatus struct {
	Tenant     string
	Month      string
	Income     float64
	Spent      float64
	Limit      float64
	HasLimit   bool
	Remaining  float64
	Categories []CategoryStatus
}

// BudgetStatus totals a tenant's month. Splits move part of an expense to
// other categories. Sums are exact decimals, rounded to cents.
func (l *Ledger) BudgetStatus(ctx context.Context, tenant, month string) (*BudgetStatus, error) {
	month = models.NormalizeMonthKey(month)
	if _, err := time.Parse("2006-01", month); err != nil {
		verr := &models.ValidationError{}
		verr.Add("month", "must be YYYY-MM")
		return nil, verr
	}

	txs, err := l.Transactions(ctx, tenant)
	if err != nil {
		return nil, err
	}
	budgets, err := l.Budgets(ctx)
	if err != nil {
		return nil, err
	}

	income := decimal.Zero
	spent := decimal.Zero
	byCategory := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if !strings.HasPrefix(tx.Date, month) {
			continue
		}
		amount := decimal.NewFromFloat(tx.Amount)
		if tx.Type == models.Income {
			income = income.Add(amount)
			continue
		}
		spent = spent.Add(amount)

		rest := amount
		for _, s := range tx.Splits {
			part := decimal.NewFromFloat(s.Amount)
			byCategory[s.Category] = byCategory[s.Category].Add(part)
			rest = rest.Sub(part)
		}
		if !rest.IsZero() || len(tx.Splits) == 0 {
			byCategory[tx.Category] = byCategory[tx.Category].Add(rest)
		}
	}

	limits := budgets.CategoryLimits(tenant, month)
	for category := range limits {
		if _, ok := byCategory[category]; !ok {
			byCategory[category] = decimal.Zero
		}
	}

	status := &BudgetStatus{
		Tenant: tenant,
		Month:  month,
		Income: cents(income),
		Spent:  cents(spent),
	}
	if limit, ok := budgets.MonthLimit(tenant, month); ok {
		status.Limit = limit
		status.HasLimit = true
		status.Remaining = cents(decimal.NewFromFloat(limit).Sub(spent))
	}

	for category, total := range byCategory {
		cs := CategoryStatus{Category: category, Spent: cents(total)}
		if limit, ok := limits[category]; ok {
			cs.Limit = limit
			cs.HasLimit = true
			cs.Remaining = cents(decimal.NewFromFloat(limit).Sub(total))
		}
		status.Categories = append(status.Categories, cs)
	}
	sort.Slice(status.Categories, func(i, j int) bool {
		return status.Categories[i].Category < status.Categories[j].Category
	})
	return status, nil
}

func cents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
