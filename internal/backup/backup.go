package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/emerald-finance/emerald/internal/configs"
	kerrors "github.com/emerald-finance/emerald/internal/errors"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/records"
	"github.com/emerald-finance/emerald/internal/store"
	"golang.org/x/sync/errgroup"
)

// Phase is a step of a restore.
type Phase int

const (
	Idle Phase = iota
	Validating
	Preparing
	Applying
	Committed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Preparing:
		return "preparing"
	case Applying:
		return "applying"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// RestoreOptions configures Restore.
type RestoreOptions struct {
	// OnPhase is called on every phase change.
	OnPhase func(Phase)
}

// RestoreResult summarizes a committed restore.
type RestoreResult struct {
	Snapshot          *Snapshot
	Records           int
	Attachments       int
	FailedAttachments int
}

// Service takes snapshots of the database and restores them.
type Service struct {
	gateway *records.Gateway
	prefs   *configs.PreferenceStore
	log     logger.Logger
	now     func() time.Time
}

func New(gateway *records.Gateway, prefs *configs.PreferenceStore, log logger.Logger) *Service {
	return &Service{gateway: gateway, prefs: prefs, log: log, now: time.Now}
}

// Create reads every store and returns a snapshot. A record that cannot be
// decrypted aborts the export rather than leaking an envelope into the
// document.
func (s *Service) Create(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Version:   FormatVersion,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	}

	var budgets []models.Budget
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loadAll(gctx, s.gateway, store.Transactions, &snap.Transactions) })
	g.Go(func() error { return loadAll(gctx, s.gateway, store.Budgets, &budgets) })
	g.Go(func() error { return loadAll(gctx, s.gateway, store.Subscriptions, &snap.Subscriptions) })
	g.Go(func() error { return loadAll(gctx, s.gateway, store.Goals, &snap.Goals) })
	g.Go(func() error { return loadAll(gctx, s.gateway, store.Debts, &snap.Debts) })
	g.Go(func() error { return loadAll(gctx, s.gateway, store.Contexts, &snap.CustomContexts) })
	g.Go(func() error {
		attachments, err := s.attachments(gctx)
		snap.Attachments = attachments
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.Budgets = make(models.BudgetMap, len(budgets))
	for _, b := range budgets {
		snap.Budgets[b.Key] = b.Amount
	}

	prefs, err := s.prefs.Load()
	if err != nil {
		return nil, err
	}
	theme := &Theme{IsDark: prefs.DarkTheme, Currency: prefs.Currency}
	if theme.Currency == "" {
		theme.Currency = configs.DefaultCurrency
	}
	snap.Theme = theme

	s.log.Debugf("Created snapshot with %d records and %d attachments", snap.Records(), len(snap.Attachments))
	return snap, nil
}

func loadAll[T any](ctx context.Context, g *records.Gateway, name string, dst *[]T) error {
	rows, err := g.LoadAll(ctx, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	items, skipped, err := records.DecodeRows[T](rows)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if skipped > 0 {
		return fmt.Errorf("%w: %d %s records cannot be decrypted", kerrors.ErrDecryptFailed, skipped, name)
	}
	*dst = items
	return nil
}

func (s *Service) attachments(ctx context.Context) (map[string]string, error) {
	entries, err := s.gateway.DB().Entries(ctx, store.Attachments)
	if err != nil {
		return nil, fmt.Errorf("reading attachments: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		var data string
		if err := json.Unmarshal(e.Value, &data); err != nil {
			s.log.Warnf("Skipping attachment %v: %v", e.Key, err)
			continue
		}
		out[fmt.Sprint(e.Key)] = data
	}
	return out, nil
}

// Restore replaces the six record stores with the contents of a backup
// document in one transaction. Preferences and attachments are written
// after the commit; attachment failures are counted and logged but do not
// fail the restore. The master key is kept.
func (s *Service) Restore(ctx context.Context, data []byte, opts RestoreOptions) (*RestoreResult, error) {
	phase := func(p Phase) {
		s.log.Debugf("Restore %s", p)
		if opts.OnPhase != nil {
			opts.OnPhase(p)
		}
	}
	fail := func(err error) (*RestoreResult, error) {
		phase(Failed)
		return nil, err
	}

	phase(Validating)
	snap, err := Parse(data)
	if err != nil {
		return fail(err)
	}

	phase(Preparing)
	batches, err := s.prepare(snap)
	if err != nil {
		return fail(err)
	}

	phase(Applying)
	if err := s.gateway.DB().Replace(ctx, batches); err != nil {
		return fail(err)
	}
	phase(Committed)

	result := &RestoreResult{Snapshot: snap, Records: snap.Records()}
	s.rehydrate(snap)

	ids := make([]string, 0, len(snap.Attachments))
	for id := range snap.Attachments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := s.gateway.DB().Put(ctx, store.Attachments, snap.Attachments[id], id); err != nil {
			s.log.Warnf("Could not restore attachment %s: %v", id, err)
			result.FailedAttachments++
			continue
		}
		result.Attachments++
	}

	return result, nil
}

func (s *Service) prepare(snap *Snapshot) (map[string][]store.Entry, error) {
	keys := make([]string, 0, len(snap.Budgets))
	for key := range snap.Budgets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	budgets := make([]models.Budget, len(keys))
	for i, key := range keys {
		budgets[i] = models.Budget{Key: key, Amount: snap.Budgets[key]}
	}

	sources := map[string][]any{
		store.Transactions:  toAny(snap.Transactions),
		store.Budgets:       toAny(budgets),
		store.Subscriptions: toAny(snap.Subscriptions),
		store.Goals:         toAny(snap.Goals),
		store.Debts:         toAny(snap.Debts),
		store.Contexts:      toAny(snap.CustomContexts),
	}

	batches := make(map[string][]store.Entry, len(sources))
	for name, items := range sources {
		entries, err := s.gateway.PrepareEntries(name, items)
		if err != nil {
			return nil, fmt.Errorf("preparing %s: %w", name, err)
		}
		batches[name] = entries
	}
	return batches, nil
}

// rehydrate resets the preference slot to the restored state. It runs after
// the commit, so a failure is logged rather than returned.
func (s *Service) rehydrate(snap *Snapshot) {
	if err := s.prefs.Clear(true); err != nil {
		s.log.Warnf("Could not reset preferences: %v", err)
		return
	}
	err := s.prefs.Update(func(p *configs.Preferences) {
		p.Onboarded = true
		p.LastBackup = s.now().UTC().Format(time.RFC3339Nano)
		if snap.Theme != nil {
			p.DarkTheme = snap.Theme.IsDark
			p.Currency = snap.Theme.Currency
		}
		if len(snap.CustomContexts) > 0 {
			p.ActiveContext = snap.CustomContexts[0].ID
		}
	})
	if err != nil {
		s.log.Warnf("Could not restore preferences: %v", err)
	}
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}
