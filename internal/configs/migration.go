package configs

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// MigrationResult contains information about what was migrated.
type MigrationResult struct {
	Migrated   []string
	Skipped    []string
	BackupPath string
}

// legacyKeys maps the flat preference keys of the browser build onto
// Preferences.
var legacyKeys = map[string]func(p *Preferences, v string){
	"emerald_master_key":      func(p *Preferences, v string) { p.MasterKey = v },
	"emerald_onboarded":       func(p *Preferences, v string) { p.Onboarded = parseLegacyBool(v) },
	"emerald_user_name":       func(p *Preferences, v string) { p.UserName = v },
	"emerald_active_context":  func(p *Preferences, v string) { p.ActiveContext = v },
	"emerald_last_backup":     func(p *Preferences, v string) { p.LastBackup = v },
	"emerald_last_cloud_sync": func(p *Preferences, v string) { p.LastCloudSync = v },
	"emerald_theme":           func(p *Preferences, v string) { p.DarkTheme = parseLegacyBool(v) },
	"emerald_currency":        func(p *Preferences, v string) { p.Currency = v },
}

func parseLegacyBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

// IsLegacyPreferences reports whether a legacy preferences.json exists and
// has not been migrated yet.
func IsLegacyPreferences(s *Settings) bool {
	if _, err := os.Stat(s.PreferencesPath()); err == nil {
		return false
	}
	_, err := os.Stat(s.LegacyPreferencesPath())
	return err == nil
}

// MigrateLegacyPreferences converts preferences.json into preferences.toml
// and keeps the original as preferences.json.bak.
func MigrateLegacyPreferences(s *Settings) (*MigrationResult, error) {
	if !IsLegacyPreferences(s) {
		return nil, fmt.Errorf("no legacy preferences to migrate")
	}

	data, err := os.ReadFile(s.LegacyPreferencesPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy preferences: %w", err)
	}

	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("failed to parse legacy preferences: %w", err)
	}

	result := &MigrationResult{}
	prefs := &Preferences{}
	for key, raw := range legacy {
		apply, ok := legacyKeys[key]
		if !ok {
			result.Skipped = append(result.Skipped, key)
			continue
		}
		apply(prefs, legacyString(raw))
		result.Migrated = append(result.Migrated, key)
	}
	sort.Strings(result.Migrated)
	sort.Strings(result.Skipped)

	if err := NewPreferenceStore(s.PreferencesPath()).Save(prefs); err != nil {
		return nil, err
	}

	result.BackupPath = s.LegacyPreferencesPath() + ".bak"
	if err := os.Rename(s.LegacyPreferencesPath(), result.BackupPath); err != nil {
		return nil, fmt.Errorf("failed to keep legacy preferences: %w", err)
	}
	return result, nil
}

// legacyString unquotes JSON strings and keeps any other value as its JSON
// text, which is how the browser stored booleans.
func legacyString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
