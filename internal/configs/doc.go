// Package configs manages Emerald's configuration and preference files.
//
// Both are TOML, written with mode 0600:
//
//   - Config: <config dir>/config.toml (database file, cipher, currency,
//     backup and sync directories)
//   - Preferences: <data dir>/preferences.toml (onboarding state, display
//     name, active tenant, backup timestamps, theme, master key)
//
// # Settings
//
// ResolveSettings picks the directories. EMERALD_HOME overrides both;
// otherwise the config dir follows os.UserConfigDir and the data dir follows
// XDG_DATA_HOME, falling back to ~/.local/share.
//
// # Preferences
//
// PreferenceStore is the master key slot for secrets.KeyManager. Clear can
// keep the key, which is what reset and restore do so that existing and
// future ciphertexts stay readable.
//
// # Migration
//
// A preferences.json written by the browser build is converted once by
// MigrateLegacyPreferences and kept as preferences.json.bak.
package configs
