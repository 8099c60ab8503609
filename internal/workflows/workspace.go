package workflows

import (
	"fmt"
	"time"

	"github.com/emerald-finance/emerald/internal/backup"
	"github.com/emerald-finance/emerald/internal/configs"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/emerald-finance/emerald/internal/records"
	"github.com/emerald-finance/emerald/internal/secrets"
	"github.com/emerald-finance/emerald/internal/store"
)

// OpenOptions configures Open.
type OpenOptions struct {
	Settings *configs.Settings
	Config   *configs.Config
	Logger   logger.Logger

	// NoSync skips fsync per transaction. Tests only.
	NoSync bool
}

// Workspace holds the open database and the workflows built on it.
type Workspace struct {
	Users    *Users
	Planning *Planning
	Ledger   *Ledger
	Backups  *Backups

	Config *configs.Config
	Prefs  *configs.PreferenceStore

	db  *store.DB
	log logger.Logger
}

// Open opens the database described by the settings and config and wires
// the key manager, cipher and record gateway to it. One Workspace is
// opened per process; Close releases the database lock.
//
// Returns ErrStoreUnavailable if the database cannot be opened in time.
// Returns ErrSchemaTooNew if the database was written by a newer build.
func Open(opts OpenOptions) (*Workspace, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = configs.DefaultConfig()
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("opening workspace: settings are not resolved")
	}

	db, err := store.Open(opts.Settings.DatabasePath(cfg), store.Options{
		Timeout: cfg.OpenTimeout(),
		NoSync:  opts.NoSync,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	prefs := configs.NewPreferenceStore(opts.Settings.PreferencesPath())
	keys := secrets.NewKeyManager(prefs)
	cipher := secrets.NewCipher(keys, cfg.Algorithm())
	gateway := records.New(db, cipher, opts.Logger)

	ws := &Workspace{Config: cfg, Prefs: prefs, db: db, log: opts.Logger}
	ws.Users = NewUsers(gateway, prefs, opts.Logger)
	ws.Planning = NewPlanning(gateway, opts.Logger)
	ws.Ledger = NewLedger(gateway, opts.Logger)
	ws.Backups = NewBackups(backup.New(gateway, prefs, opts.Logger), prefs, cfg, opts.Logger)

	opts.Logger.Debugf("Workspace ready (cipher %s, open timeout %s)", cfg.Algorithm(), cfg.OpenTimeout().Round(time.Millisecond))
	return ws, nil
}

// Close closes the database.
func (w *Workspace) Close() error {
	return w.db.Close()
}
