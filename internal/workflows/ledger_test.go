package workflows

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/store"
	"pgregory.net/rapid"
)

func expense(id int64, title, category string, amount float64, date string) models.Transaction {
	return models.Transaction{ID: id, Title: title, Category: category, Amount: amount, Date: date, Type: models.Expense}
}

func TestLedger_TwoTenants(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	if _, err := ws.Ledger.AddTransaction(ctx, "t1", expense(1, "Lunch", "Food", 12, "2024-03-05")); err != nil {
		t.Fatal(err)
	}
	// Written while t1 is the tenant the caller works in, but tagged t2.
	tx := expense(2, "Printer", "Office", 150, "2024-03-06")
	tx.Context = "t2"
	if _, err := ws.Ledger.AddTransaction(ctx, "t1", tx); err != nil {
		t.Fatal(err)
	}

	t1, _ := ws.Ledger.Transactions(ctx, "t1")
	t2, _ := ws.Ledger.Transactions(ctx, "t2")
	if len(t1) != 1 || t1[0].ID != 1 {
		t.Errorf("Expected only the t1 transaction in t1, got %+v", t1)
	}
	if len(t2) != 1 || t2[0].ID != 2 {
		t.Errorf("Expected the t2 transaction in t2, got %+v", t2)
	}
}

func TestLedger_AddAssignsID(t *testing.T) {
	ws := newTestWorkspace(t)
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	ws.Ledger.now = func() time.Time { return now }

	tx, err := ws.Ledger.AddTransaction(context.Background(), "t1", expense(0, "Coffee", "Food", 3, "2024-03-05"))
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	if tx.ID != now.UnixMilli() {
		t.Errorf("Expected a millisecond id, got %d", tx.ID)
	}
}

func TestLedger_AddRejectsInvalid(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	bad := expense(1, "", "Food", 3, "yesterday")
	bad.Type = "transfer"
	_, err := ws.Ledger.AddTransaction(ctx, "", bad)

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a validation error, got %v", err)
	}
	fields := map[string]bool{}
	for _, f := range verr.Errors {
		fields[f.Field] = true
	}
	for _, want := range []string{"context", "title", "date", "type"} {
		if !fields[want] {
			t.Errorf("Expected a violation at %s, got %v", want, verr.Errors)
		}
	}
}

func TestLedger_Attachments(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	tx := expense(7, "Receipt", "Food", 30, "2024-03-05")
	tx.Attachment = "data:image/png;base64,AAAA"
	saved, err := ws.Ledger.AddTransaction(ctx, "t1", tx)
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	if saved.Attachment != "" || !saved.HasAttachment {
		t.Errorf("Expected the attachment split off, got %+v", saved)
	}

	stored, _, _ := ws.Ledger.Transaction(ctx, 7)
	if stored.Attachment != "" || !stored.HasAttachment {
		t.Errorf("Expected no attachment in the record, got %+v", stored)
	}
	data, ok, err := ws.Ledger.Attachment(ctx, 7)
	if err != nil || !ok || data != tx.Attachment {
		t.Errorf("Attachment = %q, %v, %v", data, ok, err)
	}

	// An update without a new attachment keeps the flag and the data.
	update := expense(7, "Receipt (edited)", "Food", 31, "2024-03-05")
	if _, err := ws.Ledger.UpdateTransaction(ctx, "t1", update); err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}
	stored, _, _ = ws.Ledger.Transaction(ctx, 7)
	if !stored.HasAttachment || stored.Title != "Receipt (edited)" {
		t.Errorf("Unexpected record after update %+v", stored)
	}
	if _, ok, _ := ws.Ledger.Attachment(ctx, 7); !ok {
		t.Error("Expected the attachment kept after update")
	}

	if err := ws.Ledger.DeleteTransaction(ctx, 7); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	if _, ok, _ := ws.Ledger.Transaction(ctx, 7); ok {
		t.Error("Expected the transaction gone")
	}
	if _, ok, _ := ws.Ledger.Attachment(ctx, 7); ok {
		t.Error("Expected the attachment gone")
	}
}

func TestLedger_UpdateMissing(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.Ledger.UpdateTransaction(context.Background(), "t1", expense(99, "X", "Y", 1, "2024-01-01"))
	if !errors.Is(err, kerrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLedger_UpdateMovesTenant(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	if _, err := ws.Ledger.AddTransaction(ctx, "t1", expense(1, "Desk", "Office", 200, "2024-03-01")); err != nil {
		t.Fatal(err)
	}
	moved := expense(1, "Desk", "Office", 200, "2024-03-01")
	moved.Context = "t2"
	if _, err := ws.Ledger.UpdateTransaction(ctx, "t1", moved); err != nil {
		t.Fatal(err)
	}

	t1, _ := ws.Ledger.Transactions(ctx, "t1")
	t2, _ := ws.Ledger.Transactions(ctx, "t2")
	if len(t1) != 0 || len(t2) != 1 {
		t.Errorf("Expected the transaction under t2 only, got t1=%d t2=%d", len(t1), len(t2))
	}
}

func TestLedger_ImportTagsTenant(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()
	ws.Ledger.now = func() time.Time { return time.UnixMilli(1000) }

	other := expense(0, "Rent", "Housing", 900, "2024-03-01")
	other.Context = "elsewhere"
	withFile := expense(0, "Bill", "Utilities", 60, "2024-03-02")
	withFile.Attachment = "pdf-bytes"

	n, err := ws.Ledger.ImportTransactions(ctx, "t1", []models.Transaction{other, withFile})
	if err != nil {
		t.Fatalf("ImportTransactions failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 imported, got %d", n)
	}

	txs, _ := ws.Ledger.Transactions(ctx, "t1")
	if len(txs) != 2 {
		t.Fatalf("Expected both under t1, got %+v", txs)
	}
	// Newest first.
	if txs[0].ID != 1001 || txs[1].ID != 1000 {
		t.Errorf("Unexpected ids %d, %d", txs[0].ID, txs[1].ID)
	}
	if data, ok, _ := ws.Ledger.Attachment(ctx, 1001); !ok || data != "pdf-bytes" {
		t.Errorf("Expected the imported attachment stored, got %q", data)
	}
	if elsewhere, _ := ws.Ledger.Transactions(ctx, "elsewhere"); len(elsewhere) != 0 {
		t.Error("Expected imported contexts to be replaced by the tenant")
	}

	ops := auditOps(t)
	if len(ops) == 0 || ops[len(ops)-1] != "import" {
		t.Errorf("Expected an import audit entry, got %v", ops)
	}
}

func TestLedger_ImportIsAllOrNothing(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	good := expense(1, "Ok", "Food", 1, "2024-03-01")
	bad := expense(2, "", "Food", 1, "2024-03-01")

	_, err := ws.Ledger.ImportTransactions(ctx, "t1", []models.Transaction{good, bad})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a validation error, got %v", err)
	}
	if len(verr.Errors) != 1 || verr.Errors[0].Field != "transactions[1].title" {
		t.Errorf("Unexpected violations %v", verr.Errors)
	}
	if txs, _ := ws.Ledger.Transactions(ctx, "t1"); len(txs) != 0 {
		t.Errorf("Expected nothing imported, got %d", len(txs))
	}
}

func TestLedger_TransactionsOn(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	for _, tx := range []struct {
		id     int64
		tenant string
		date   string
	}{{1, "t1", "2024-03-05"}, {2, "t2", "2024-03-05"}, {3, "t1", "2024-03-06"}} {
		if _, err := ws.Ledger.AddTransaction(ctx, tx.tenant, expense(tx.id, "x", "y", 1, tx.date)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ws.Ledger.TransactionsOn(ctx, "t1", "2024-03-05")
	if err != nil {
		t.Fatalf("TransactionsOn failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("Unexpected transactions %+v", got)
	}
}

func TestUpdateBudget_Keys(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		amount   float64
		month    string
		category string
		tenant   string
		wantKey  string
	}{
		{"category", 500, "2024-03", "Food", "t1", "t1-2024-03-category-Food"},
		{"month total", 2000, "2024-03", "", "t1", "t1-2024-03"},
		{"prefixed month", 1800, "business-2024-04", "", "t1", "t1-2024-04"},
		{"default", 1500, "default", "", "t2", "t2-default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ws.Ledger.UpdateBudget(ctx, tt.amount, tt.month, tt.category, tt.tenant)
			if err != nil {
				t.Fatalf("UpdateBudget failed: %v", err)
			}
			if key != tt.wantKey {
				t.Errorf("Key = %q, want %q", key, tt.wantKey)
			}
			budgets, _ := ws.Ledger.Budgets(ctx)
			if budgets[tt.wantKey] != tt.amount {
				t.Errorf("Expected %v under %s, got %v", tt.amount, tt.wantKey, budgets)
			}
		})
	}
}

func TestUpdateBudget_Rejections(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	if _, err := ws.Ledger.UpdateBudget(ctx, -5, "2024-03", "", "t1"); !errors.Is(err, kerrors.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ws.Ledger.UpdateBudget(ctx, 5, "March", "", "t1"); !errors.Is(err, kerrors.ErrValidation) {
		t.Errorf("Expected ErrValidation for a bad month, got %v", err)
	}
	if _, err := ws.Ledger.UpdateBudget(ctx, 5, "2024-03", "", ""); !errors.Is(err, kerrors.ErrValidation) {
		t.Errorf("Expected ErrValidation without a tenant, got %v", err)
	}
}

// Category updates within one month resolve to the same keys in any order.
func TestUpdateBudget_OrderIndependent(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()
	categories := []string{"Food", "Rent", "Fun", "Travel"}

	rapid.Check(t, func(t *rapid.T) {
		if err := ws.db.Clear(ctx, store.Budgets); err != nil {
			t.Fatal(err)
		}
		order := rapid.Permutation(categories).Draw(t, "order")
		want := models.BudgetMap{}
		for i, category := range order {
			amount := float64(100 * (i + 1))
			key, err := ws.Ledger.UpdateBudget(ctx, amount, "2024-03", category, "t1")
			if err != nil {
				t.Fatal(err)
			}
			want[key] = amount
		}

		got, _ := ws.Ledger.Budgets(ctx)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Budgets = %v, want %v", got, want)
		}
		for _, category := range categories {
			if _, ok := got[models.BudgetKey("t1", "2024-03", category)]; !ok {
				t.Fatalf("Missing key for %s", category)
			}
		}
	})
}

func TestBudgetStatus(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	split := expense(3, "Supermarket", "Food", 100.30, "2024-03-10")
	split.Splits = []models.Split{{Category: "Household", Amount: 40.10}}
	txs := []models.Transaction{
		expense(1, "Lunch", "Food", 0.1, "2024-03-05"),
		expense(2, "Dinner", "Food", 0.2, "2024-03-06T19:00:00Z"),
		split,
		expense(4, "Cinema", "Fun", 15, "2024-03-12"),
		expense(5, "Old", "Food", 999, "2024-02-28"),
		{ID: 6, Title: "Salary", Category: "Income", Amount: 5000, Date: "2024-03-01", Type: models.Income},
	}
	for _, tx := range txs {
		if _, err := ws.Ledger.AddTransaction(ctx, "t1", tx); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ws.Ledger.AddTransaction(ctx, "t2", expense(7, "Other tenant", "Food", 50, "2024-03-05")); err != nil {
		t.Fatal(err)
	}

	_, _ = ws.Ledger.UpdateBudget(ctx, 1000, "default", "", "t1")
	_, _ = ws.Ledger.UpdateBudget(ctx, 60, "2024-03", "Food", "t1")
	_, _ = ws.Ledger.UpdateBudget(ctx, 20, "2024-03", "Travel", "t1")

	status, err := ws.Ledger.BudgetStatus(ctx, "t1", "t1-2024-03")
	if err != nil {
		t.Fatalf("BudgetStatus failed: %v", err)
	}

	if status.Month != "2024-03" || status.Income != 5000 || status.Spent != 115.6 {
		t.Errorf("Unexpected totals %+v", status)
	}
	if !status.HasLimit || status.Limit != 1000 || status.Remaining != 884.4 {
		t.Errorf("Expected the default limit to apply, got %+v", status)
	}

	want := []CategoryStatus{
		{Category: "Food", Spent: 60.5, Limit: 60, HasLimit: true, Remaining: -0.5},
		{Category: "Fun", Spent: 15},
		{Category: "Household", Spent: 40.1},
		{Category: "Travel", Spent: 0, Limit: 20, HasLimit: true, Remaining: 20},
	}
	if !reflect.DeepEqual(status.Categories, want) {
		t.Errorf("Categories = %+v\nwant %+v", status.Categories, want)
	}

	if _, err := ws.Ledger.BudgetStatus(ctx, "t1", "2024"); !errors.Is(err, kerrors.ErrValidation) {
		t.Errorf("Expected ErrValidation for a bad month, got %v", err)
	}
}
