package configs

import (
	"fmt"
	"os"
	"sync"
)

// Preferences is the small non-transactional slot that sits beside the
// database. It also holds the encoded master key.
type Preferences struct {
	MasterKey     string `toml:"master_key,omitempty"`
	Onboarded     bool   `toml:"onboarded"`
	UserName      string `toml:"user_name,omitempty"`
	ActiveContext string `toml:"active_context,omitempty"`
	LastBackup    string `toml:"last_backup,omitempty"`
	LastCloudSync string `toml:"last_cloud_sync,omitempty"`
	DarkTheme     bool   `toml:"dark_theme"`
	Currency      string `toml:"currency,omitempty"`
}

// PreferenceStore reads and writes Preferences at one path. Read-modify-write
// cycles are serialized within the process.
type PreferenceStore struct {
	path string
	mu   sync.Mutex
}

func NewPreferenceStore(path string) *PreferenceStore {
	return &PreferenceStore{path: path}
}

func (s *PreferenceStore) Path() string {
	return s.path
}

// Load returns the stored preferences, or empty ones when none exist.
func (s *PreferenceStore) Load() (*Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *PreferenceStore) load() (*Preferences, error) {
	prefs := &Preferences{}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return prefs, nil
	}
	if err := LoadTOML(s.path, prefs); err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return prefs, nil
}

// Save replaces the stored preferences.
func (s *PreferenceStore) Save(prefs *Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(prefs)
}

func (s *PreferenceStore) save(prefs *Preferences) error {
	if err := SaveTOML(s.path, prefs); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// Update applies fn to the stored preferences and saves the result.
func (s *PreferenceStore) Update(fn func(*Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.load()
	if err != nil {
		return err
	}
	fn(prefs)
	return s.save(prefs)
}

// Clear resets every preference. With keepKey the master key survives, so
// encrypted data written afterwards stays readable with the same key.
func (s *PreferenceStore) Clear(keepKey bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.load()
	if err != nil {
		return err
	}
	cleared := &Preferences{}
	if keepKey {
		cleared.MasterKey = prefs.MasterKey
	}
	return s.save(cleared)
}

// LoadMasterKey implements secrets.KeyStore.
func (s *PreferenceStore) LoadMasterKey() (string, error) {
	prefs, err := s.Load()
	if err != nil {
		return "", err
	}
	return prefs.MasterKey, nil
}

// SaveMasterKey implements secrets.KeyStore.
func (s *PreferenceStore) SaveMasterKey(encoded string) error {
	return s.Update(func(p *Preferences) {
		p.MasterKey = encoded
	})
}
