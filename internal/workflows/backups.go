package workflows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/emerald-finance/emerald/internal/audit"
	"github.com/emerald-finance/emerald/internal/backup"
	"github.com/emerald-finance/emerald/internal/configs"
	kerrors "github.com/emerald-finance/emerald/internal/errors"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/emerald-finance/emerald/internal/utils"
)

// Backups writes snapshots to disk and restores them.
type Backups struct {
	service *backup.Service
	prefs   *configs.PreferenceStore
	cfg     *configs.Config
	log     logger.Logger
}

func NewBackups(service *backup.Service, prefs *configs.PreferenceStore, cfg *configs.Config, log logger.Logger) *Backups {
	return &Backups{service: service, prefs: prefs, cfg: cfg, log: log}
}

// ExportResult contains the outcome of an export or sync.
type ExportResult struct {
	// Path is the written backup file.
	Path string

	// Records is the number of records in the six record stores.
	Records int

	Attachments int

	// Timestamp is the snapshot timestamp, also stored as the last backup
	// or last sync time.
	Timestamp string
}

// SyncResult contains the outcome of a sync.
type SyncResult struct {
	ExportResult

	// FellBack is set when no sync directory was usable and a local backup
	// was written instead.
	FellBack bool
}

func (b *Backups) dir(dir string) string {
	if dir != "" {
		return dir
	}
	if b.cfg != nil && b.cfg.Backup.Dir != "" {
		return b.cfg.Backup.Dir
	}
	return "."
}

// write snapshots the database into dir.
func (b *Backups) write(ctx context.Context, dir string) (*ExportResult, error) {
	snap, err := b.service.Create(ctx)
	if err != nil {
		return nil, err
	}
	data, err := backup.Encode(snap)
	if err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, snap.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	path := filepath.Join(dir, backup.FileName(ts))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("writing backup: %w", err)
	}

	return &ExportResult{
		Path:        path,
		Records:     snap.Records(),
		Attachments: len(snap.Attachments),
		Timestamp:   snap.Timestamp,
	}, nil
}

// Export writes a backup file named emerald_backup_YYYY-MM-DD.json into
// dir, or into the configured backup directory when dir is empty. A backup
// from the same day is overwritten.
//
// Returns ErrDecryptFailed if any record cannot be decrypted.
func (b *Backups) Export(ctx context.Context, dir string) (*ExportResult, error) {
	result, err := b.write(ctx, b.dir(dir))
	if err != nil {
		return nil, err
	}

	if err := b.prefs.Update(func(p *configs.Preferences) { p.LastBackup = result.Timestamp }); err != nil {
		b.log.Warnf("Could not record the backup time: %v", err)
	}

	entry := audit.LogWithUser("backup")
	entry.Path = result.Path
	entry.Records = result.Records
	entry.Attachments = result.Attachments
	audit.Log(entry)

	b.log.Infof("Wrote backup %s", result.Path)
	return result, nil
}

// Sync writes a backup into the configured sync directory, a folder a
// cloud client mirrors. Without a sync directory, or when writing there
// fails, it falls back to Export.
func (b *Backups) Sync(ctx context.Context) (*SyncResult, error) {
	syncDir := ""
	if b.cfg != nil {
		syncDir = b.cfg.Backup.SyncDir
	}

	if syncDir != "" {
		result, err := b.write(ctx, syncDir)
		if err == nil {
			if err := b.prefs.Update(func(p *configs.Preferences) { p.LastCloudSync = result.Timestamp }); err != nil {
				b.log.Warnf("Could not record the sync time: %v", err)
			}

			entry := audit.LogWithUser("sync")
			entry.Path = result.Path
			entry.Records = result.Records
			entry.Attachments = result.Attachments
			audit.Log(entry)
			return &SyncResult{ExportResult: *result}, nil
		}
		if errors.Is(err, kerrors.ErrDecryptFailed) {
			return nil, err
		}
		b.log.Warnf("Sync to %s failed, writing a local backup instead: %v", syncDir, err)
	}

	result, err := b.Export(ctx, "")
	if err != nil {
		return nil, err
	}
	return &SyncResult{ExportResult: *result, FellBack: true}, nil
}

// Restore replaces the database with a backup document. source names the
// document in the audit log.
//
// Returns ErrParse if data is not a JSON object.
// Returns ErrValidation if data is not a valid backup.
// Returns ErrTransaction if the stores could not be replaced; the previous
// data is then unchanged.
func (b *Backups) Restore(ctx context.Context, data []byte, source string, opts backup.RestoreOptions) (*backup.RestoreResult, error) {
	entry := audit.LogWithUser("restore")

	result, err := b.service.Restore(ctx, data, opts)
	if err != nil {
		return nil, err
	}

	entry.Path = source
	entry.Records = result.Records
	entry.Attachments = result.Attachments
	entry.Failed = result.FailedAttachments
	audit.Log(entry)

	if result.FailedAttachments > 0 {
		b.log.Warnf("%d attachments could not be restored", result.FailedAttachments)
	}
	return result, nil
}

// Latest returns the newest backup file below dir, or below the configured
// backup directory when dir is empty.
//
// Returns ErrNoBackupFound if there is none.
func (b *Backups) Latest(dir string) (string, error) {
	dir = b.dir(dir)
	path, err := utils.FindLatestBackup(dir)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("%w in %s", kerrors.ErrNoBackupFound, dir)
	}
	return path, nil
}
