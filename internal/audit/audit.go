package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emerald-finance/emerald/internal/configs"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`   // RFC3339 with microseconds.
	User      string `json:"user"` // Display name at the time of the operation.
	Operation string `json:"op"`

	Tenant      string `json:"tenant,omitempty"`      // For import, context operations.
	Records     int    `json:"records,omitempty"`     // For backup, restore, import.
	Attachments int    `json:"attachments,omitempty"` // For backup, restore.
	Failed      int    `json:"failed,omitempty"`      // Attachments not restored.
	Path        string `json:"path,omitempty"`        // For backup, sync, restore.
	Name        string `json:"name,omitempty"`        // For context add, rename.
}

// LogPath returns the path to the audit log file.
// Returns empty string if settings are not resolved.
func LogPath() string {
	if configs.EmeraldSettings == nil {
		return ""
	}
	return configs.EmeraldSettings.AuditPath()
}

// Log appends an entry to the audit log.
// Failures are swallowed; an operation never fails because its audit entry
// could not be written.
func Log(entry Entry) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	logPath := LogPath()
	if logPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = f.Write(append(data, '\n'))
}

// LogWithUser returns an entry with the user and active tenant filled in
// from the preference slot.
func LogWithUser(op string) Entry {
	entry := Entry{Operation: op}
	if configs.EmeraldSettings == nil {
		return entry
	}

	prefs, err := configs.NewPreferenceStore(configs.EmeraldSettings.PreferencesPath()).Load()
	if err != nil {
		return entry
	}
	entry.User = prefs.UserName
	entry.Tenant = prefs.ActiveContext
	return entry
}

// ReadEntries reads all entries from the audit log.
// Returns an empty slice if the log doesn't exist.
func ReadEntries() ([]Entry, error) {
	logPath := LogPath()
	if logPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are skipped; a crash mid-write leaves at most one.
func ParseEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

// Filter returns the entries whose operation is one of ops, compared
// case-insensitively, in log order. No ops means no filtering.
func Filter(entries []Entry, ops ...string) []Entry {
	if len(ops) == 0 {
		return entries
	}
	want := make(map[string]bool, len(ops))
	for _, op := range ops {
		want[strings.ToLower(strings.TrimSpace(op))] = true
	}
	var out []Entry
	for _, e := range entries {
		if want[strings.ToLower(e.Operation)] {
			out = append(out, e)
		}
	}
	return out
}
