package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/emerald-finance/emerald/internal/secrets"
)

const (
	DefaultDatabaseFile = "emerald.db"
	DefaultOpenTimeout  = "5s"
	DefaultCurrency     = "₹"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Crypto   CryptoConfig   `toml:"crypto"`
	Display  DisplayConfig  `toml:"display"`
	Backup   BackupConfig   `toml:"backup"`
}

type DatabaseConfig struct {
	File        string `toml:"file"`
	OpenTimeout string `toml:"open_timeout"`
}

type CryptoConfig struct {
	Cipher string `toml:"cipher"`
}

type DisplayConfig struct {
	Currency string `toml:"currency"`
}

type BackupConfig struct {
	// Dir is where local backups are written. Empty means the working
	// directory.
	Dir string `toml:"dir"`

	// SyncDir is a folder mirrored by a cloud client. Empty disables sync.
	SyncDir string `toml:"sync_dir"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{File: DefaultDatabaseFile, OpenTimeout: DefaultOpenTimeout},
		Crypto:   CryptoConfig{Cipher: string(secrets.AES256GCM)},
		Display:  DisplayConfig{Currency: DefaultCurrency},
	}
}

// LoadConfig loads the configuration at path. A missing file yields the
// defaults, and empty fields are filled from them.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadTOML(path, config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	defaults := DefaultConfig()
	if config.Database.File == "" {
		config.Database.File = defaults.Database.File
	}
	if config.Database.OpenTimeout == "" {
		config.Database.OpenTimeout = defaults.Database.OpenTimeout
	}
	if config.Crypto.Cipher == "" {
		config.Crypto.Cipher = defaults.Crypto.Cipher
	}
	if config.Display.Currency == "" {
		config.Display.Currency = defaults.Display.Currency
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes the configuration to path.
func SaveConfig(path string, config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if err := SaveTOML(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate rejects unknown ciphers and malformed durations.
func (c *Config) Validate() error {
	if _, err := secrets.ParseAlgorithm(c.Crypto.Cipher); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.ParseDuration(c.Database.OpenTimeout); err != nil {
		return fmt.Errorf("invalid config: database.open_timeout: %w", err)
	}
	return nil
}

// Algorithm returns the configured cipher.
func (c *Config) Algorithm() secrets.Algorithm {
	alg, err := secrets.ParseAlgorithm(c.Crypto.Cipher)
	if err != nil {
		return secrets.AES256GCM
	}
	return alg
}

// OpenTimeout returns how long to wait for the database lock.
func (c *Config) OpenTimeout() time.Duration {
	d, err := time.ParseDuration(c.Database.OpenTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
