package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
)

func TestKeyManager_GeneratesAndPersistsOnFirstUse(t *testing.T) {
	store := NewMemoryKeyStore("")
	m := NewKeyManager(store)

	key, err := m.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if len(key) != KeySize {
		t.Fatalf("Expected %d byte key, got %d", KeySize, len(key))
	}

	encoded, _ := store.LoadMasterKey()
	if encoded != base64.StdEncoding.EncodeToString(key) {
		t.Errorf("Stored key does not match generated key")
	}
}

func TestKeyManager_CachesAfterFirstLoad(t *testing.T) {
	store := NewMemoryKeyStore("")
	m := NewKeyManager(store)

	first, err := m.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	second, err := m.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("Expected the cached key to be returned")
	}
	if store.Saves() != 1 {
		t.Errorf("Expected one save, got %d", store.Saves())
	}
}

func TestKeyManager_LoadsExistingKey(t *testing.T) {
	existing := bytes.Repeat([]byte{7}, KeySize)
	store := NewMemoryKeyStore(base64.StdEncoding.EncodeToString(existing))

	key, err := NewKeyManager(store).Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if !bytes.Equal(key, existing) {
		t.Errorf("Expected the stored key to be loaded")
	}
	if store.Saves() != 0 {
		t.Errorf("Expected no save when a key exists, got %d", store.Saves())
	}
}

func TestKeyManager_SharedSlotAcrossManagers(t *testing.T) {
	store := NewMemoryKeyStore("")

	sealer := NewCipher(NewKeyManager(store), AES256GCM)
	sealed, err := sealer.Seal(map[string]int{"id": 42})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	// A second process reading the same slot can open the record.
	opener := NewCipher(NewKeyManager(store), AES256GCM)
	if _, err := opener.Open(sealed); err != nil {
		t.Errorf("Expected second manager to open the record, got %v", err)
	}
}

func TestKeyManager_RejectsWrongLength(t *testing.T) {
	store := NewMemoryKeyStore(base64.StdEncoding.EncodeToString([]byte("too-short")))

	if _, err := NewKeyManager(store).Key(); !errors.Is(err, kerrors.ErrInvalidKeyLength) {
		t.Errorf("Expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestKeyManager_ConcurrentFirstUseCreatesOneKey(t *testing.T) {
	store := NewMemoryKeyStore("")
	m := NewKeyManager(store)

	var wg sync.WaitGroup
	keys := make([][]byte, 8)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := m.Key()
			if err != nil {
				t.Errorf("Key failed: %v", err)
				return
			}
			keys[i] = k
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(keys); i++ {
		if !bytes.Equal(keys[0], keys[i]) {
			t.Fatalf("Expected every caller to see the same key")
		}
	}
	if store.Saves() != 1 {
		t.Errorf("Expected exactly one save, got %d", store.Saves())
	}
}

func TestKeyManager_ForgetReloadsFromSlot(t *testing.T) {
	store := NewMemoryKeyStore("")
	m := NewKeyManager(store)

	first, err := m.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}

	replacement := bytes.Repeat([]byte{9}, KeySize)
	_ = store.SaveMasterKey(base64.StdEncoding.EncodeToString(replacement))
	m.Forget()

	second, err := m.Key()
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if bytes.Equal(first, second) || !bytes.Equal(second, replacement) {
		t.Errorf("Expected Forget to reload the key from the slot")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestKeyManager_RandomFailure(t *testing.T) {
	m := NewKeyManager(NewMemoryKeyStore(""), WithRandom(failingReader{}))
	if _, err := m.Key(); err == nil {
		t.Fatal("Expected an error when the random source fails")
	}
}
