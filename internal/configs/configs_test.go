package configs

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emerald-finance/emerald/internal/secrets"
)

func TestSaveAndLoadTOML(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "nested", "test.toml")

	type TestStruct struct {
		Name  string
		Limit float64
	}

	original := TestStruct{Name: "home", Limit: 1250.5}
	if err := SaveTOML(testFile, original); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	info, err := os.Stat(testFile)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	var loaded TestStruct
	if err := LoadTOML(testFile, &loaded); err != nil {
		t.Fatalf("LoadTOML failed: %v", err)
	}
	if loaded != original {
		t.Errorf("Expected %+v, got %+v", original, loaded)
	}

	entries, _ := os.ReadDir(filepath.Dir(testFile))
	if len(entries) != 1 {
		t.Errorf("Expected no temporary files left behind, got %d entries", len(entries))
	}
}

func TestLoadTOMLNonExistent(t *testing.T) {
	var data struct{ Name string }
	if err := LoadTOML(filepath.Join(t.TempDir(), "missing.toml"), &data); err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
}

func TestResolveSettings_EmeraldHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EMERALD_HOME", home)

	s, err := ResolveSettings()
	if err != nil {
		t.Fatalf("ResolveSettings failed: %v", err)
	}
	if s.ConfigDir != home || s.DataDir != home {
		t.Errorf("Expected both dirs at %s, got %+v", home, s)
	}
	if s.AuditPath() != filepath.Join(home, "audit.jsonl") {
		t.Errorf("Unexpected audit path %s", s.AuditPath())
	}
}

func TestResolveSettings_XDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv("EMERALD_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))

	s, err := ResolveSettings()
	if err != nil {
		t.Fatalf("ResolveSettings failed: %v", err)
	}
	if s.ConfigDir != filepath.Join(base, "config", "emerald") {
		t.Errorf("Unexpected config dir %s", s.ConfigDir)
	}
	if s.DataDir != filepath.Join(base, "data", "emerald") {
		t.Errorf("Unexpected data dir %s", s.DataDir)
	}
}

func TestDatabasePath(t *testing.T) {
	s := &Settings{DataDir: "/data"}
	cfg := DefaultConfig()
	if got := s.DatabasePath(cfg); got != filepath.Join("/data", DefaultDatabaseFile) {
		t.Errorf("Unexpected relative path %s", got)
	}
	cfg.Database.File = "/elsewhere/finance.db"
	if got := s.DatabasePath(cfg); got != "/elsewhere/finance.db" {
		t.Errorf("Expected absolute path to be kept, got %s", got)
	}
}

func TestLoadConfig_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Algorithm() != secrets.AES256GCM {
		t.Errorf("Expected AES-GCM by default, got %s", cfg.Algorithm())
	}
	if cfg.OpenTimeout() != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", cfg.OpenTimeout())
	}
	if cfg.Display.Currency != DefaultCurrency {
		t.Errorf("Expected default currency, got %q", cfg.Display.Currency)
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[crypto]\ncipher = \"chacha20-poly1305\"\n\n[backup]\nsync_dir = \"/cloud/emerald\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Algorithm() != secrets.ChaCha20Poly1305 {
		t.Errorf("Expected chacha20-poly1305, got %s", cfg.Algorithm())
	}
	if cfg.Backup.SyncDir != "/cloud/emerald" {
		t.Errorf("Unexpected sync dir %q", cfg.Backup.SyncDir)
	}
	if cfg.Database.File != DefaultDatabaseFile {
		t.Errorf("Expected default database file, got %q", cfg.Database.File)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown cipher", "[crypto]\ncipher = \"rot13\"\n"},
		{"bad timeout", "[database]\nopen_timeout = \"soon\"\n"},
		{"malformed toml", "[crypto\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			_ = os.WriteFile(path, []byte(tt.content), 0600)
			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Backup.Dir = "/backups"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("Expected %+v, got %+v", cfg, loaded)
	}
}

func TestPreferenceStore_UpdateAndClear(t *testing.T) {
	store := NewPreferenceStore(filepath.Join(t.TempDir(), "preferences.toml"))

	prefs, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if prefs.Onboarded {
		t.Error("Expected fresh preferences")
	}

	err = store.Update(func(p *Preferences) {
		p.MasterKey = "a2V5"
		p.Onboarded = true
		p.UserName = "Asha"
		p.ActiveContext = "home"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := store.Clear(true); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	prefs, _ = store.Load()
	if prefs.MasterKey != "a2V5" {
		t.Errorf("Expected the master key to survive, got %q", prefs.MasterKey)
	}
	if prefs.Onboarded || prefs.UserName != "" || prefs.ActiveContext != "" {
		t.Errorf("Expected other preferences cleared, got %+v", prefs)
	}

	if err := store.Clear(false); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	prefs, _ = store.Load()
	if prefs.MasterKey != "" {
		t.Error("Expected the master key cleared")
	}
}

func TestPreferenceStore_IsKeySlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.toml")

	first, err := secrets.NewKeyManager(NewPreferenceStore(path)).Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}

	// A fresh process reads the same key back from disk.
	second, err := secrets.NewKeyManager(NewPreferenceStore(path)).Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Expected the key to persist across instances")
	}

	prefs, _ := NewPreferenceStore(path).Load()
	if prefs.MasterKey != base64.StdEncoding.EncodeToString(first) {
		t.Error("Expected the key stored as base64")
	}
}

func TestMigrateLegacyPreferences(t *testing.T) {
	s := &Settings{DataDir: t.TempDir()}
	legacy := `{
		"emerald_master_key": "a2V5",
		"emerald_onboarded": "true",
		"emerald_user_name": "Asha",
		"emerald_active_context": "1700000000000",
		"emerald_last_backup": "2024-03-01T10:00:00.000Z",
		"emerald_theme": "true",
		"emerald_currency": "$",
		"emerald_pin": "1234"
	}`
	if err := os.WriteFile(s.LegacyPreferencesPath(), []byte(legacy), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if !IsLegacyPreferences(s) {
		t.Fatal("Expected legacy preferences to be detected")
	}

	result, err := MigrateLegacyPreferences(s)
	if err != nil {
		t.Fatalf("MigrateLegacyPreferences failed: %v", err)
	}
	if len(result.Migrated) != 7 || len(result.Skipped) != 1 || result.Skipped[0] != "emerald_pin" {
		t.Errorf("Unexpected result %+v", result)
	}

	prefs, err := NewPreferenceStore(s.PreferencesPath()).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Preferences{
		MasterKey:     "a2V5",
		Onboarded:     true,
		UserName:      "Asha",
		ActiveContext: "1700000000000",
		LastBackup:    "2024-03-01T10:00:00.000Z",
		DarkTheme:     true,
		Currency:      "$",
	}
	if *prefs != want {
		t.Errorf("Expected %+v, got %+v", want, *prefs)
	}

	if _, err := os.Stat(result.BackupPath); err != nil {
		t.Errorf("Expected backup at %s: %v", result.BackupPath, err)
	}
	if IsLegacyPreferences(s) {
		t.Error("Expected migration to run only once")
	}
	if _, err := MigrateLegacyPreferences(s); err == nil {
		t.Error("Expected a second migration to fail")
	}
}

func TestMigrateLegacyPreferences_BooleanValues(t *testing.T) {
	s := &Settings{DataDir: t.TempDir()}
	_ = os.WriteFile(s.LegacyPreferencesPath(), []byte(`{"emerald_onboarded": true, "emerald_theme": false}`), 0600)

	if _, err := MigrateLegacyPreferences(s); err != nil {
		t.Fatalf("MigrateLegacyPreferences failed: %v", err)
	}
	prefs, _ := NewPreferenceStore(s.PreferencesPath()).Load()
	if !prefs.Onboarded || prefs.DarkTheme {
		t.Errorf("Unexpected preferences %+v", prefs)
	}
}
