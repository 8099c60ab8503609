package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/emerald-finance/emerald/internal/audit"
	"github.com/emerald-finance/emerald/internal/configs"
	kerrors "github.com/emerald-finance/emerald/internal/errors"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/records"
	"github.com/emerald-finance/emerald/internal/store"
	"github.com/google/uuid"
)

// Context defaults applied by AddContext.
const (
	DefaultContextIcon     = "Folder"
	DefaultContextTimeline = "monthly"
	DefaultUserName        = "User"
)

// Users manages the profile, onboarding and the budget contexts (tenants).
type Users struct {
	gateway *records.Gateway
	prefs   *configs.PreferenceStore
	log     logger.Logger
	newID   func() string
}

func NewUsers(gateway *records.Gateway, prefs *configs.PreferenceStore, log logger.Logger) *Users {
	return &Users{gateway: gateway, prefs: prefs, log: log, newID: uuid.NewString}
}

// Profile is the user-facing part of the preference slot.
type Profile struct {
	UserName      string
	Onboarded     bool
	ActiveContext string
	LastBackup    string
	LastCloudSync string
	DarkTheme     bool
	Currency      string
}

// Profile returns the stored profile. A fresh install has the default name
// and no active context.
func (u *Users) Profile() (*Profile, error) {
	prefs, err := u.prefs.Load()
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	p := &Profile{
		UserName:      prefs.UserName,
		Onboarded:     prefs.Onboarded,
		ActiveContext: prefs.ActiveContext,
		LastBackup:    prefs.LastBackup,
		LastCloudSync: prefs.LastCloudSync,
		DarkTheme:     prefs.DarkTheme,
		Currency:      prefs.Currency,
	}
	if p.UserName == "" {
		p.UserName = DefaultUserName
	}
	return p, nil
}

// SetUserName stores the display name.
func (u *Users) SetUserName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		verr := &models.ValidationError{}
		verr.Add("name", "must not be empty")
		return verr
	}
	return u.prefs.Update(func(p *configs.Preferences) { p.UserName = name })
}

// SetActiveContext records which context the user last worked in. The
// workflows never read it; callers pass the tenant explicitly.
//
// Returns ErrContextNotFound if no context has that id.
func (u *Users) SetActiveContext(ctx context.Context, id string) error {
	if _, err := u.findContext(ctx, id); err != nil {
		return err
	}
	return u.prefs.Update(func(p *configs.Preferences) { p.ActiveContext = id })
}

// CompleteOnboarding stores the display name and marks onboarding done.
// With clearData every store is emptied first; the master key is kept.
func (u *Users) CompleteOnboarding(ctx context.Context, name string, clearData bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultUserName
	}

	if clearData {
		if err := u.gateway.DB().ClearAll(ctx); err != nil {
			return fmt.Errorf("clearing data: %w", err)
		}
	}

	err := u.prefs.Update(func(p *configs.Preferences) {
		p.UserName = name
		p.Onboarded = true
		if clearData {
			p.ActiveContext = ""
		}
	})
	if err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}

	entry := audit.LogWithUser("onboard")
	entry.Name = name
	audit.Log(entry)
	return nil
}

// Contexts returns every budget context in id order. Contexts that cannot
// be decrypted are skipped with a warning.
func (u *Users) Contexts(ctx context.Context) ([]models.ContextMeta, error) {
	rows, err := u.gateway.LoadAll(ctx, store.Contexts)
	if err != nil {
		return nil, fmt.Errorf("loading contexts: %w", err)
	}
	contexts, skipped, err := records.DecodeRows[models.ContextMeta](rows)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		u.log.Warnf("%d contexts could not be decrypted and are hidden", skipped)
	}
	return contexts, nil
}

func (u *Users) findContext(ctx context.Context, id string) (*models.ContextMeta, error) {
	row, ok, err := u.gateway.Load(ctx, store.Contexts, id)
	if err != nil {
		return nil, fmt.Errorf("loading context: %w", err)
	}
	if !ok || row.Undecryptable {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrContextNotFound, id)
	}
	items, _, err := records.DecodeRows[models.ContextMeta]([]records.Row{row})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ContextInput describes a new budget context.
type ContextInput struct {
	Name        string
	Description string
	Icon        string
	Timeline    string
	StartDate   string
	EndDate     string

	// BudgetAmount, when positive, becomes the context's default monthly
	// limit.
	BudgetAmount float64
}

// AddContext creates a custom budget context and returns its id. The first
// context created becomes the active one.
//
// Returns ErrContextExists if a context with the same name exists, compared
// case-insensitively.
// Returns ErrInvalidAmount if BudgetAmount is negative.
// Returns ErrValidation if the name is empty or the timeline is unknown.
func (u *Users) AddContext(ctx context.Context, in ContextInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if in.BudgetAmount < 0 {
		return "", fmt.Errorf("%w: %v", kerrors.ErrInvalidAmount, in.BudgetAmount)
	}

	existing, err := u.Contexts(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name, name) {
			return "", fmt.Errorf("%w: %s", kerrors.ErrContextExists, c.Name)
		}
	}

	meta := models.ContextMeta{
		ID:          u.newID(),
		Name:        name,
		Description: in.Description,
		Icon:        in.Icon,
		Timeline:    in.Timeline,
		Type:        "custom",
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	if meta.Icon == "" {
		meta.Icon = DefaultContextIcon
	}
	if meta.Timeline == "" {
		meta.Timeline = DefaultContextTimeline
	}
	if err := validateContext(meta); err != nil {
		return "", err
	}

	if err := u.gateway.Save(ctx, store.Contexts, meta); err != nil {
		return "", fmt.Errorf("saving context: %w", err)
	}
	if in.BudgetAmount > 0 {
		budget := models.Budget{Key: models.DefaultBudgetKey(meta.ID), Amount: in.BudgetAmount}
		if err := u.gateway.Save(ctx, store.Budgets, budget); err != nil {
			return "", fmt.Errorf("saving default budget: %w", err)
		}
	}

	if err := u.prefs.Update(func(p *configs.Preferences) {
		if p.ActiveContext == "" {
			p.ActiveContext = meta.ID
		}
	}); err != nil {
		u.log.Warnf("Could not activate context %s: %v", meta.ID, err)
	}

	entry := audit.LogWithUser("context-add")
	entry.Tenant = meta.ID
	entry.Name = meta.Name
	audit.Log(entry)

	u.log.Infof("Created context %s (%s)", meta.Name, meta.ID)
	return meta.ID, nil
}

func validateContext(meta models.ContextMeta) error {
	verr := &models.ValidationError{}
	if meta.Name == "" {
		verr.Add("name", "must not be empty")
	}
	verr.Errors = append(verr.Errors, models.Validate("", meta)...)
	return verr.Err()
}

// ContextPatch holds the fields UpdateContext changes. Nil fields are kept.
type ContextPatch struct {
	Name        *string
	Description *string
	Icon        *string
	Timeline    *string
	StartDate   *string
	EndDate     *string
}

// UpdateContext applies patch to the context with the given id.
//
// Returns ErrContextNotFound if no context has that id.
// Returns ErrContextExists if the new name is taken by another context.
func (u *Users) UpdateContext(ctx context.Context, id string, patch ContextPatch) (*models.ContextMeta, error) {
	meta, err := u.findContext(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		existing, err := u.Contexts(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range existing {
			if c.ID != id && strings.EqualFold(c.Name, name) {
				return nil, fmt.Errorf("%w: %s", kerrors.ErrContextExists, c.Name)
			}
		}
		meta.Name = name
	}
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&meta.Description, patch.Description)
	apply(&meta.Icon, patch.Icon)
	apply(&meta.Timeline, patch.Timeline)
	apply(&meta.StartDate, patch.StartDate)
	apply(&meta.EndDate, patch.EndDate)

	if err := validateContext(*meta); err != nil {
		return nil, err
	}
	if err := u.gateway.Save(ctx, store.Contexts, *meta); err != nil {
		return nil, fmt.Errorf("saving context: %w", err)
	}

	if patch.Name != nil {
		entry := audit.LogWithUser("context-rename")
		entry.Tenant = id
		entry.Name = meta.Name
		audit.Log(entry)
	}
	return meta, nil
}

// DeleteContext removes a context and returns the context that should be
// active afterwards. Deleting the active context moves to the first
// remaining one, or to none when it was the last. Records tagged with the
// context are kept.
//
// Returns ErrContextNotFound if no context has that id.
func (u *Users) DeleteContext(ctx context.Context, id, activeTenant string) (string, error) {
	if _, err := u.findContext(ctx, id); err != nil {
		return "", err
	}
	if err := u.gateway.Delete(ctx, store.Contexts, id); err != nil {
		return "", fmt.Errorf("deleting context: %w", err)
	}

	next := activeTenant
	if activeTenant == id {
		remaining, err := u.Contexts(ctx)
		if err != nil {
			return "", err
		}
		next = ""
		if len(remaining) > 0 {
			next = remaining[0].ID
		}
	}

	if err := u.prefs.Update(func(p *configs.Preferences) {
		if p.ActiveContext == id {
			p.ActiveContext = next
		}
	}); err != nil {
		u.log.Warnf("Could not update the active context: %v", err)
	}

	entry := audit.LogWithUser("context-delete")
	entry.Tenant = id
	audit.Log(entry)
	return next, nil
}

// Reset empties every store and every preference except the master key.
func (u *Users) Reset(ctx context.Context) error {
	entry := audit.LogWithUser("reset")

	if err := u.gateway.DB().ClearAll(ctx); err != nil {
		return fmt.Errorf("clearing data: %w", err)
	}
	if err := u.prefs.Clear(true); err != nil {
		return fmt.Errorf("clearing preferences: %w", err)
	}

	audit.Log(entry)
	u.log.Infof("All data erased")
	return nil
}
