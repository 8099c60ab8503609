package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
)

// KeySize is the master key length in bytes (256 bits).
const KeySize = 32

// KeyStore is the durable slot holding the base64-encoded master key.
// LoadMasterKey returns an empty string when no key has been stored yet.
type KeyStore interface {
	LoadMasterKey() (string, error)
	SaveMasterKey(encoded string) error
}

// KeyManager loads the master key once and caches it for the lifetime of the
// process. Construct one per process and share it.
//
// Creation is serialized within the process only. Two processes racing on an
// empty slot both generate a key and the last SaveMasterKey wins.
type KeyManager struct {
	store KeyStore
	rand  io.Reader

	mu  sync.Mutex
	key []byte
}

// KeyManagerOption configures a KeyManager.
type KeyManagerOption func(*KeyManager)

// WithRandom replaces the source of key material.
func WithRandom(r io.Reader) KeyManagerOption {
	return func(m *KeyManager) {
		m.rand = r
	}
}

// NewKeyManager returns a KeyManager backed by the given slot.
func NewKeyManager(store KeyStore, opts ...KeyManagerOption) *KeyManager {
	m := &KeyManager{
		store: store,
		rand:  rand.Reader,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key returns the master key, generating and persisting one on first use.
func (m *KeyManager) Key() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key != nil {
		return m.key, nil
	}

	encoded, err := m.store.LoadMasterKey()
	if err != nil {
		return nil, fmt.Errorf("loading master key: %w", err)
	}

	if encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding master key: %w", err)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d bytes", kerrors.ErrInvalidKeyLength, KeySize, len(key))
		}
		m.key = key
		return m.key, nil
	}

	key, err := CreateSymmetricKey(m.rand)
	if err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}

	if err := m.store.SaveMasterKey(base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("failed to save master key: %w", err)
	}

	m.key = key
	return m.key, nil
}

// Forget drops the cached key so the next call reloads it from the slot.
func (m *KeyManager) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = nil
}

// CreateSymmetricKey generates a new random 256-bit key.
func CreateSymmetricKey(r io.Reader) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// MemoryKeyStore keeps the master key in memory. Used by tests and by
// callers that manage key persistence themselves.
type MemoryKeyStore struct {
	mu      sync.Mutex
	encoded string
	saves   int
}

// NewMemoryKeyStore returns a slot preloaded with encoded (may be empty).
func NewMemoryKeyStore(encoded string) *MemoryKeyStore {
	return &MemoryKeyStore{encoded: encoded}
}

func (s *MemoryKeyStore) LoadMasterKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoded, nil
}

func (s *MemoryKeyStore) SaveMasterKey(encoded string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoded = encoded
	s.saves++
	return nil
}

// Saves reports how many times a key was written to the slot.
func (s *MemoryKeyStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
