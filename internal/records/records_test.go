package records

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/secrets"
	"github.com/emerald-finance/emerald/internal/store"
	"pgregory.net/rapid"
)

func newTestGateway(t *testing.T, log logger.Logger) *Gateway {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "emerald.db"), store.Options{NoSync: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	cipher := secrets.NewCipher(secrets.NewKeyManager(secrets.NewMemoryKeyStore("")), secrets.AES256GCM)
	return New(db, cipher, log)
}

func sampleTx(id int64, tenant string) models.Transaction {
	return models.Transaction{
		ID:       id,
		Title:    "Groceries",
		Category: "Food",
		Amount:   42.5,
		Date:     "2024-03-01",
		Type:     models.Expense,
		Context:  tenant,
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	g := newTestGateway(t, logger.Discard())
	ctx := context.Background()
	want := sampleTx(1700000000000, "home")

	if err := g.Save(ctx, store.Transactions, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	row, ok, err := g.Load(ctx, store.Transactions, want.ID)
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%v err=%v", ok, err)
	}
	var got models.Transaction
	if err := json.Unmarshal(row.Body, &got); err != nil {
		t.Fatalf("Body is not a transaction: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestSave_EnvelopeProjectsOnlyKeyAndIndexes(t *testing.T) {
	g := newTestGateway(t, logger.Discard())
	ctx := context.Background()

	if err := g.Save(ctx, store.Transactions, sampleTx(7, "home")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, _, _ := g.DB().Get(ctx, store.Transactions, 7)
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		t.Fatalf("Envelope is not an object: %v", err)
	}

	var names []string
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	want := []string{"_encrypted", "_iv", "_payload", "context", "date", "id"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Envelope members = %v, want %v", names, want)
	}
	if bytes.Contains(raw, []byte("Groceries")) {
		t.Error("Expected the title to stay out of the stored envelope")
	}
}

func TestSave_OmitsAbsentIndexFields(t *testing.T) {
	g := newTestGateway(t, logger.Discard())
	ctx := context.Background()

	if err := g.Save(ctx, store.Goals, models.Goal{ID: "g1", Name: "Car", Color: "#fff"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, _, _ := g.DB().Get(ctx, store.Goals, "g1")
	if bytes.Contains(raw, []byte(`"context"`)) {
		t.Errorf("Expected no context member, got %s", raw)
	}
}

func TestSave_NonSensitivePassesThrough(t *testing.T) {
	g := newTestGateway(t, logger.Discard())
	ctx := context.Background()

	budget := models.Budget{Key: "home-2024-03", Amount: 500}
	if err := g.Save(ctx, store.Budgets, budget); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, _, _ := g.DB().Get(ctx, store.Budgets, budget.Key)
	if string(raw) != `{"key":"home-2024-03","amount":500}` {
		t.Errorf("Expected the budget stored as-is, got %s", raw)
	}
}

func TestLoad_CorruptEnvelopeIsReturnedRaw(t *testing.T) {
	var warn bytes.Buffer
	g := newTestGateway(t, logger.Logger{Err: &warn})
	ctx := context.Background()

	_ = g.Save(ctx, store.Transactions, sampleTx(1, "home"))
	_ = g.Save(ctx, store.Transactions, sampleTx(2, "home"))

	raw, _, _ := g.DB().Get(ctx, store.Transactions, 2)
	var envelope map[string]any
	_ = json.Unmarshal(raw, &envelope)
	payload, _ := base64.StdEncoding.DecodeString(envelope["_payload"].(string))
	payload[0] ^= 0xff
	envelope["_payload"] = base64.StdEncoding.EncodeToString(payload)
	if err := g.DB().Put(ctx, store.Transactions, envelope); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rows, err := g.LoadByIndex(ctx, store.Transactions, store.IndexContext, "home")
	if err != nil {
		t.Fatalf("Expected the batch to succeed, got %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Undecryptable {
		t.Error("Expected the first row to decrypt")
	}
	if !rows[1].Undecryptable || !bytes.Contains(rows[1].Body, []byte(`"_payload"`)) {
		t.Errorf("Expected the raw envelope for the corrupt row, got %s", rows[1].Body)
	}
	if !strings.Contains(warn.String(), "Could not decrypt") {
		t.Errorf("Expected a warning, got %q", warn.String())
	}

	txs, skipped, err := DecodeRows[models.Transaction](rows)
	if err != nil {
		t.Fatalf("DecodeRows failed: %v", err)
	}
	if len(txs) != 1 || skipped != 1 || txs[0].ID != 1 {
		t.Errorf("Expected one decoded and one skipped, got %d decoded, %d skipped", len(txs), skipped)
	}
}

func TestLoad_EnvelopesFromEitherCipher(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "emerald.db"), store.Options{NoSync: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	keys := secrets.NewKeyManager(secrets.NewMemoryKeyStore(""))
	aesGateway := New(db, secrets.NewCipher(keys, secrets.AES256GCM), logger.Discard())
	chachaGateway := New(db, secrets.NewCipher(keys, secrets.ChaCha20Poly1305), logger.Discard())
	ctx := context.Background()

	if err := aesGateway.Save(ctx, store.Transactions, sampleTx(1, "home")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := chachaGateway.Save(ctx, store.Transactions, sampleTx(2, "home")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	first, _, _ := db.Get(ctx, store.Transactions, 1)
	second, _, _ := db.Get(ctx, store.Transactions, 2)
	if bytes.Contains(first, []byte(`"_alg"`)) {
		t.Errorf("Expected no _alg member on an AES-GCM envelope, got %s", first)
	}
	if !bytes.Contains(second, []byte(`"_alg":"chacha20-poly1305"`)) {
		t.Errorf("Expected the cipher on a ChaCha20-Poly1305 envelope, got %s", second)
	}

	for _, g := range []*Gateway{aesGateway, chachaGateway} {
		rows, err := g.LoadAll(ctx, store.Transactions)
		if err != nil {
			t.Fatalf("LoadAll failed: %v", err)
		}
		txs, skipped, err := DecodeRows[models.Transaction](rows)
		if err != nil || skipped != 0 || len(txs) != 2 {
			t.Errorf("%s: expected both records, got %d decoded, %d skipped, %v", g.cipher.Algorithm(), len(txs), skipped, err)
		}
	}

	var envelope map[string]any
	_ = json.Unmarshal(second, &envelope)
	envelope["_alg"] = 7
	if err := db.Put(ctx, store.Transactions, envelope); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	row, _, err := chachaGateway.Load(ctx, store.Transactions, 2)
	if err != nil || !row.Undecryptable {
		t.Errorf("Expected a malformed _alg to make the row undecryptable, got %+v, %v", row, err)
	}
}

func TestLoad_PlaintextRowInSensitiveStore(t *testing.T) {
	g := newTestGateway(t, logger.Discard())
	ctx := context.Background()

	plain := map[string]any{"id": "d1", "name": "Card", "currentBalance": 100}
	_ = g.DB().Put(ctx, store.Debts, plain)

	row, ok, err := g.Load(ctx, store.Debts, "d1")
	if err != nil || !ok || row.Undecryptable {
		t.Fatalf("Load failed: ok=%v err=%v row=%+v", ok, err, row)
	}
	if !bytes.Contains(row.Body, []byte(`"Card"`)) {
		t.Errorf("Expected the plaintext row, got %s", row.Body)
	}
}

func TestLoad_LegacyFlag(t *testing.T) {
	g := newTestGateway(t, logger.Discard())
	ctx := context.Background()

	sealed, err := g.cipher.Seal(models.Debt{ID: "d1", Name: "Loan"})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	_ = g.DB().Put(ctx, store.Debts, map[string]any{"id": "d1", "_enc": true, "_payload": sealed.Payload, "_iv": sealed.IV})

	row, _, err := g.Load(ctx, store.Debts, "d1")
	if err != nil || row.Undecryptable {
		t.Fatalf("Expected the legacy envelope to open, err=%v", err)
	}
	if !bytes.Contains(row.Body, []byte(`"Loan"`)) {
		t.Errorf("Unexpected body %s", row.Body)
	}
}

func TestLoad_Missing(t *testing.T) {
	g := newTestGateway(t, logger.Discard())
	if _, ok, err := g.Load(context.Background(), store.Goals, "nope"); ok || err != nil {
		t.Errorf("Expected absent result, got ok=%v err=%v", ok, err)
	}
}

func TestPrepareEntries_FreshIVs(t *testing.T) {
	g := newTestGateway(t, logger.Discard())
	goal := models.Goal{ID: "g1", Name: "Car", Color: "#fff"}

	first, err := g.PrepareEntries(store.Goals, []any{goal})
	if err != nil {
		t.Fatalf("PrepareEntries failed: %v", err)
	}
	second, _ := g.PrepareEntries(store.Goals, []any{goal})
	if bytes.Equal(first[0].Value, second[0].Value) {
		t.Error("Expected distinct envelopes for the same record")
	}
}

func TestSaveMany_AndIndexConsistency(t *testing.T) {
	g := newTestGateway(t, logger.Discard())
	ctx := context.Background()
	tenants := []string{"home", "work"}

	rapid.Check(t, func(rt *rapid.T) {
		if err := g.DB().Clear(ctx, store.Subscriptions); err != nil {
			rt.Fatalf("Clear failed: %v", err)
		}
		n := rapid.IntRange(0, 12).Draw(rt, "n")
		want := map[string]int{}
		var subs []any
		for i := 0; i < n; i++ {
			tenant := tenants[rapid.IntRange(0, 1).Draw(rt, "tenant")]
			want[tenant]++
			subs = append(subs, models.Subscription{
				ID:              fmt.Sprintf("sub-%d", i),
				Name:            "Stream",
				BillingCycle:    models.Monthly,
				NextBillingDate: "2024-04-01",
				Context:         tenant,
			})
		}
		if err := g.SaveMany(ctx, store.Subscriptions, subs); err != nil {
			rt.Fatalf("SaveMany failed: %v", err)
		}
		for _, tenant := range tenants {
			rows, err := g.LoadByIndex(ctx, store.Subscriptions, store.IndexContext, tenant)
			if err != nil {
				rt.Fatalf("LoadByIndex failed: %v", err)
			}
			got, skipped, _ := DecodeRows[models.Subscription](rows)
			if len(got) != want[tenant] || skipped != 0 {
				rt.Fatalf("Tenant %s: got %d rows, want %d", tenant, len(got), want[tenant])
			}
			for _, s := range got {
				if s.Context != tenant {
					rt.Fatalf("Row of %s returned for %s", s.Context, tenant)
				}
			}
		}
	})
}
