package workflows

import (
	"context"
	"fmt"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/records"
	"github.com/emerald-finance/emerald/internal/store"
	"github.com/google/uuid"
)

// Collection is the CRUD surface of one planning store. Every record is
// tagged with a tenant; List reads through the context index.
type Collection[T any] struct {
	gateway *records.Gateway
	store   string
	log     logger.Logger
	newID   func() string

	id     func(*T) *string
	tenant func(*T) *string
}

func newCollection[T any](gateway *records.Gateway, name string, log logger.Logger, id, tenant func(*T) *string) *Collection[T] {
	return &Collection[T]{
		gateway: gateway,
		store:   name,
		log:     log,
		newID:   uuid.NewString,
		id:      id,
		tenant:  tenant,
	}
}

// prepare tags v with tenant when it carries none and validates it.
func (c *Collection[T]) prepare(tenant string, v *T) error {
	if *c.tenant(v) == "" {
		*c.tenant(v) = tenant
	}
	verr := &models.ValidationError{}
	if *c.tenant(v) == "" {
		verr.Add("context", "is required")
	}
	verr.Errors = append(verr.Errors, models.Validate("", v)...)
	return verr.Err()
}

// Add stores a new record. An empty id is generated; an empty context
// inherits tenant.
func (c *Collection[T]) Add(ctx context.Context, tenant string, v T) (T, error) {
	if *c.id(&v) == "" {
		*c.id(&v) = c.newID()
	}
	if err := c.prepare(tenant, &v); err != nil {
		return v, err
	}
	if err := c.gateway.Save(ctx, c.store, v); err != nil {
		return v, fmt.Errorf("saving %s: %w", c.store, err)
	}
	c.log.Debugf("Added %s %s", c.store, *c.id(&v))
	return v, nil
}

// Update replaces an existing record.
//
// Returns ErrNotFound if no record has the id of v.
func (c *Collection[T]) Update(ctx context.Context, tenant string, v T) (T, error) {
	id := *c.id(&v)
	if _, ok, err := c.Get(ctx, id); err != nil {
		return v, err
	} else if !ok {
		return v, fmt.Errorf("%w: %s %s", kerrors.ErrNotFound, c.store, id)
	}
	if err := c.prepare(tenant, &v); err != nil {
		return v, err
	}
	if err := c.gateway.Save(ctx, c.store, v); err != nil {
		return v, fmt.Errorf("saving %s: %w", c.store, err)
	}
	return v, nil
}

// Delete removes the record with id. A missing record is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.gateway.Delete(ctx, c.store, id); err != nil {
		return fmt.Errorf("deleting %s: %w", c.store, err)
	}
	return nil
}

// Get returns the record with id. An undecryptable record reads as absent.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	if id == "" {
		return zero, false, nil
	}
	row, ok, err := c.gateway.Load(ctx, c.store, id)
	if err != nil || !ok {
		return zero, false, err
	}
	items, _, err := records.DecodeRows[T]([]records.Row{row})
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

// List returns the records of one tenant in id order.
func (c *Collection[T]) List(ctx context.Context, tenant string) ([]T, error) {
	rows, err := c.gateway.LoadByIndex(ctx, c.store, store.IndexContext, tenant)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", c.store, err)
	}
	items, skipped, err := records.DecodeRows[T](rows)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		c.log.Warnf("%d %s could not be decrypted and are hidden", skipped, c.store)
	}
	return items, nil
}

// Planning groups the subscriptions, goals and debts collections.
type Planning struct {
	Subscriptions *Collection[models.Subscription]
	Goals         *Collection[models.Goal]
	Debts         *Collection[models.Debt]
}

func NewPlanning(gateway *records.Gateway, log logger.Logger) *Planning {
	return &Planning{
		Subscriptions: newCollection(gateway, store.Subscriptions, log,
			func(s *models.Subscription) *string { return &s.ID },
			func(s *models.Subscription) *string { return &s.Context }),
		Goals: newCollection(gateway, store.Goals, log,
			func(g *models.Goal) *string { return &g.ID },
			func(g *models.Goal) *string { return &g.Context }),
		Debts: newCollection(gateway, store.Debts, log,
			func(d *models.Debt) *string { return &d.ID },
			func(d *models.Debt) *string { return &d.Context }),
	}
}
