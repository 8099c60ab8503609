package configs

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	configFileName            = "config.toml"
	preferencesFileName       = "preferences.toml"
	legacyPreferencesFileName = "preferences.json"
	auditFileName             = "audit.jsonl"
)

// Settings holds the resolved directories Emerald reads and writes.
type Settings struct {
	ConfigDir string
	DataDir   string
}

// EmeraldSettings is set by the root command before any subcommand runs.
var EmeraldSettings *Settings

// ResolveSettings finds the config and data directories. EMERALD_HOME puts
// both in one directory; otherwise the XDG locations are used.
func ResolveSettings() (*Settings, error) {
	if home := os.Getenv("EMERALD_HOME"); home != "" {
		return &Settings{ConfigDir: home, DataDir: home}, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error getting config directory: %w", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("error getting home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return &Settings{
		ConfigDir: filepath.Join(configDir, "emerald"),
		DataDir:   filepath.Join(dataDir, "emerald"),
	}, nil
}

func (s *Settings) ConfigPath() string {
	return filepath.Join(s.ConfigDir, configFileName)
}

func (s *Settings) PreferencesPath() string {
	return filepath.Join(s.DataDir, preferencesFileName)
}

func (s *Settings) LegacyPreferencesPath() string {
	return filepath.Join(s.DataDir, legacyPreferencesFileName)
}

func (s *Settings) AuditPath() string {
	return filepath.Join(s.DataDir, auditFileName)
}

// DatabasePath resolves the configured database file against the data
// directory.
func (s *Settings) DatabasePath(cfg *Config) string {
	if filepath.IsAbs(cfg.Database.File) {
		return cfg.Database.File
	}
	return filepath.Join(s.DataDir, cfg.Database.File)
}
