package workflows

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/store"
)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func TestProfile_Defaults(t *testing.T) {
	ws := newTestWorkspace(t)

	p, err := ws.Users.Profile()
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if p.UserName != DefaultUserName || p.Onboarded || p.ActiveContext != "" {
		t.Errorf("Unexpected fresh profile %+v", p)
	}
}

func TestSetUserName(t *testing.T) {
	ws := newTestWorkspace(t)

	if err := ws.Users.SetUserName("  Asha "); err != nil {
		t.Fatalf("SetUserName failed: %v", err)
	}
	p, _ := ws.Users.Profile()
	if p.UserName != "Asha" {
		t.Errorf("Expected trimmed name, got %q", p.UserName)
	}

	if err := ws.Users.SetUserName("   "); !errors.Is(err, kerrors.ErrValidation) {
		t.Errorf("Expected ErrValidation for an empty name, got %v", err)
	}
}

func TestAddContext(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.Users.newID = sequentialIDs("ctx-")
	ctx := context.Background()

	id, err := ws.Users.AddContext(ctx, ContextInput{Name: "Household", BudgetAmount: 3000})
	if err != nil {
		t.Fatalf("AddContext failed: %v", err)
	}
	if id != "ctx-1" {
		t.Errorf("Unexpected id %s", id)
	}

	contexts, _ := ws.Users.Contexts(ctx)
	want := []models.ContextMeta{{ID: "ctx-1", Name: "Household", Icon: DefaultContextIcon, Timeline: DefaultContextTimeline, Type: "custom"}}
	if !reflect.DeepEqual(contexts, want) {
		t.Errorf("Contexts = %+v, want %+v", contexts, want)
	}

	budgets, _ := ws.Ledger.Budgets(ctx)
	if budgets["ctx-1-default"] != 3000 {
		t.Errorf("Expected a default budget, got %v", budgets)
	}

	p, _ := ws.Users.Profile()
	if p.ActiveContext != "ctx-1" {
		t.Errorf("Expected the first context to become active, got %q", p.ActiveContext)
	}

	if _, err := ws.Users.AddContext(ctx, ContextInput{Name: "Side Gig"}); err != nil {
		t.Fatalf("AddContext failed: %v", err)
	}
	p, _ = ws.Users.Profile()
	if p.ActiveContext != "ctx-1" {
		t.Errorf("Expected the active context to stay, got %q", p.ActiveContext)
	}
	budgets, _ = ws.Ledger.Budgets(ctx)
	if _, ok := budgets["ctx-2-default"]; ok {
		t.Error("Expected no default budget without an amount")
	}
}

func TestAddContext_Rejections(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	if _, err := ws.Users.AddContext(ctx, ContextInput{Name: "Household"}); err != nil {
		t.Fatalf("AddContext failed: %v", err)
	}

	tests := []struct {
		name    string
		input   ContextInput
		wantErr error
	}{
		{"duplicate name", ContextInput{Name: "household"}, kerrors.ErrContextExists},
		{"duplicate with spaces", ContextInput{Name: " HOUSEHOLD "}, kerrors.ErrContextExists},
		{"empty name", ContextInput{Name: " "}, kerrors.ErrValidation},
		{"unknown timeline", ContextInput{Name: "Trip", Timeline: "daily"}, kerrors.ErrValidation},
		{"negative budget", ContextInput{Name: "Trip", BudgetAmount: -1}, kerrors.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ws.Users.AddContext(ctx, tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	contexts, _ := ws.Users.Contexts(ctx)
	if len(contexts) != 1 {
		t.Errorf("Expected rejected contexts not to be stored, got %d", len(contexts))
	}
}

func TestUpdateContext(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	home, _ := ws.Users.AddContext(ctx, ContextInput{Name: "Home"})
	if _, err := ws.Users.AddContext(ctx, ContextInput{Name: "Work"}); err != nil {
		t.Fatal(err)
	}

	name := "Family"
	desc := "Shared expenses"
	meta, err := ws.Users.UpdateContext(ctx, home, ContextPatch{Name: &name, Description: &desc})
	if err != nil {
		t.Fatalf("UpdateContext failed: %v", err)
	}
	if meta.Name != "Family" || meta.Description != desc || meta.Timeline != DefaultContextTimeline {
		t.Errorf("Unexpected context %+v", meta)
	}

	taken := "work"
	if _, err := ws.Users.UpdateContext(ctx, home, ContextPatch{Name: &taken}); !errors.Is(err, kerrors.ErrContextExists) {
		t.Errorf("Expected ErrContextExists, got %v", err)
	}

	same := "FAMILY"
	if _, err := ws.Users.UpdateContext(ctx, home, ContextPatch{Name: &same}); err != nil {
		t.Errorf("Expected renaming to a different case of the same name to work, got %v", err)
	}

	if _, err := ws.Users.UpdateContext(ctx, "missing", ContextPatch{Name: &name}); !errors.Is(err, kerrors.ErrContextNotFound) {
		t.Errorf("Expected ErrContextNotFound, got %v", err)
	}
}

func TestDeleteContext(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.Users.newID = sequentialIDs("c")
	ctx := context.Background()

	c1, _ := ws.Users.AddContext(ctx, ContextInput{Name: "One"})
	c2, _ := ws.Users.AddContext(ctx, ContextInput{Name: "Two"})
	if _, err := ws.Ledger.AddTransaction(ctx, c1, models.Transaction{ID: 1, Title: "Tea", Category: "Food", Amount: 2, Date: "2024-03-01", Type: models.Expense}); err != nil {
		t.Fatal(err)
	}

	next, err := ws.Users.DeleteContext(ctx, c2, c1)
	if err != nil {
		t.Fatalf("DeleteContext failed: %v", err)
	}
	if next != c1 {
		t.Errorf("Deleting an inactive context should keep the active one, got %q", next)
	}

	next, err = ws.Users.DeleteContext(ctx, c1, c1)
	if err != nil {
		t.Fatalf("DeleteContext failed: %v", err)
	}
	if next != "" {
		t.Errorf("Deleting the last context should leave none active, got %q", next)
	}
	p, _ := ws.Users.Profile()
	if p.ActiveContext != "" {
		t.Errorf("Expected the stored active context cleared, got %q", p.ActiveContext)
	}

	txs, _ := ws.Ledger.Transactions(ctx, c1)
	if len(txs) != 1 {
		t.Error("Expected records of a deleted context to be kept")
	}

	if _, err := ws.Users.DeleteContext(ctx, c1, ""); !errors.Is(err, kerrors.ErrContextNotFound) {
		t.Errorf("Expected ErrContextNotFound, got %v", err)
	}
}

func TestDeleteContext_MovesToFirstRemaining(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.Users.newID = sequentialIDs("c")
	ctx := context.Background()

	c1, _ := ws.Users.AddContext(ctx, ContextInput{Name: "One"})
	c2, _ := ws.Users.AddContext(ctx, ContextInput{Name: "Two"})
	c3, _ := ws.Users.AddContext(ctx, ContextInput{Name: "Three"})
	if err := ws.Users.SetActiveContext(ctx, c2); err != nil {
		t.Fatal(err)
	}

	next, err := ws.Users.DeleteContext(ctx, c2, c2)
	if err != nil {
		t.Fatalf("DeleteContext failed: %v", err)
	}
	if next != c1 {
		t.Errorf("Expected %s to become active, got %s (remaining %s, %s)", c1, next, c1, c3)
	}
	p, _ := ws.Users.Profile()
	if p.ActiveContext != c1 {
		t.Errorf("Expected the stored active context to follow, got %q", p.ActiveContext)
	}
}

func TestSetActiveContext_Unknown(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.Users.SetActiveContext(context.Background(), "nope"); !errors.Is(err, kerrors.ErrContextNotFound) {
		t.Errorf("Expected ErrContextNotFound, got %v", err)
	}
}

func TestCompleteOnboarding(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	if _, err := ws.Users.AddContext(ctx, ContextInput{Name: "Demo", BudgetAmount: 100}); err != nil {
		t.Fatal(err)
	}

	if err := ws.Users.CompleteOnboarding(ctx, "Ravi", false); err != nil {
		t.Fatalf("CompleteOnboarding failed: %v", err)
	}
	p, _ := ws.Users.Profile()
	if !p.Onboarded || p.UserName != "Ravi" || p.ActiveContext == "" {
		t.Errorf("Unexpected profile %+v", p)
	}
	contexts, _ := ws.Users.Contexts(ctx)
	if len(contexts) != 1 {
		t.Error("Expected data kept without clearData")
	}

	if err := ws.Users.CompleteOnboarding(ctx, "", true); err != nil {
		t.Fatalf("CompleteOnboarding failed: %v", err)
	}
	p, _ = ws.Users.Profile()
	if p.UserName != DefaultUserName || p.ActiveContext != "" {
		t.Errorf("Unexpected profile after clearing %+v", p)
	}
	contexts, _ = ws.Users.Contexts(ctx)
	budgets, _ := ws.Ledger.Budgets(ctx)
	if len(contexts) != 0 || len(budgets) != 0 {
		t.Error("Expected every store cleared")
	}

	ops := auditOps(t)
	if len(ops) < 2 || ops[len(ops)-1] != "onboard" {
		t.Errorf("Expected onboarding in the audit log, got %v", ops)
	}
}

func TestReset_KeepsMasterKey(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	c, _ := ws.Users.AddContext(ctx, ContextInput{Name: "Home"})
	if _, err := ws.Planning.Goals.Add(ctx, c, models.Goal{Name: "Bike", TargetAmount: 500, Color: "#fff"}); err != nil {
		t.Fatal(err)
	}
	before, _ := ws.Prefs.Load()

	if err := ws.Users.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	after, _ := ws.Prefs.Load()
	if after.MasterKey == "" || after.MasterKey != before.MasterKey {
		t.Error("Expected the master key to survive a reset")
	}
	if after.ActiveContext != "" || after.Onboarded {
		t.Errorf("Expected preferences cleared, got %+v", after)
	}
	for _, name := range []string{store.Contexts, store.Goals} {
		rows, _ := ws.db.GetAll(ctx, name)
		if len(rows) != 0 {
			t.Errorf("Expected %s empty after reset", name)
		}
	}
}
