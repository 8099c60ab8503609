package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// BackupPattern matches backup files at any depth below a directory.
const BackupPattern = "**/emerald_backup_*.json"

// FindBackups returns every backup file below dir, oldest first.
// Backups sort by the date in their name, then by modification time.
// Returns an empty slice if dir does not exist.
func FindBackups(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, BackupPattern)
	if err != nil {
		return nil, fmt.Errorf("searching %s for backups: %w", dir, err)
	}

	type candidate struct {
		path string
		name string
		mod  int64
	}
	var found []candidate
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil || info.IsDir() {
			continue
		}
		found = append(found, candidate{
			path: filepath.Join(dir, filepath.FromSlash(m)),
			name: path.Base(m),
			mod:  info.ModTime().UnixNano(),
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].name != found[j].name {
			return found[i].name < found[j].name
		}
		return found[i].mod < found[j].mod
	})

	paths := make([]string, len(found))
	for i, c := range found {
		paths[i] = c.path
	}
	return paths, nil
}

// FindLatestBackup returns the newest backup below dir, or an empty string
// when there is none.
func FindLatestBackup(dir string) (string, error) {
	paths, err := FindBackups(dir)
	if err != nil || len(paths) == 0 {
		return "", err
	}
	return paths[len(paths)-1], nil
}
