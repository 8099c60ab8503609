package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the IV length in bytes (96 bits) for both supported ciphers.
const NonceSize = 12

// Algorithm names an authenticated cipher.
type Algorithm string

const (
	AES256GCM        Algorithm = "aes-256-gcm"
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// ParseAlgorithm validates a configured cipher name. Empty selects AES-256-GCM.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", AES256GCM:
		return AES256GCM, nil
	case ChaCha20Poly1305:
		return ChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("unsupported cipher %q", name)
	}
}

// Sealed is an encrypted JSON payload and the IV it was sealed with, both
// base64. An empty Algorithm means AES-256-GCM.
type Sealed struct {
	Payload   string    `json:"payload"`
	IV        string    `json:"iv"`
	Algorithm Algorithm `json:"alg,omitempty"`
}

// Cipher encrypts and decrypts JSON documents under the master key. Seal
// uses the configured algorithm; Open uses the one recorded on the sealed
// value, so switching the configuration keeps old records readable.
// Safe for concurrent use.
type Cipher struct {
	keys      *KeyManager
	algorithm Algorithm
	rand      io.Reader
}

// NewCipher returns a Cipher using the given key manager and algorithm.
func NewCipher(keys *KeyManager, algorithm Algorithm) *Cipher {
	if algorithm == "" {
		algorithm = AES256GCM
	}
	return &Cipher{
		keys:      keys,
		algorithm: algorithm,
		rand:      rand.Reader,
	}
}

// Algorithm reports the cipher in use.
func (c *Cipher) Algorithm() Algorithm {
	return c.algorithm
}

func (c *Cipher) aead(algorithm Algorithm) (cipher.AEAD, error) {
	key, err := c.keys.Key()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrCryptoUnavailable, err)
	}

	switch algorithm {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrCryptoUnavailable, err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrCryptoUnavailable, err)
		}
		return gcm, nil
	case ChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrCryptoUnavailable, err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("%w: unsupported cipher %q", kerrors.ErrCryptoUnavailable, algorithm)
	}
}

// Seal marshals v to JSON and encrypts it with a fresh random IV.
func (c *Cipher) Seal(v any) (Sealed, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return Sealed{}, fmt.Errorf("encoding payload: %w", err)
	}

	aead, err := c.aead(c.algorithm)
	if err != nil {
		return Sealed{}, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return Sealed{}, fmt.Errorf("%w: reading IV: %v", kerrors.ErrCryptoUnavailable, err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return Sealed{
		Payload:   base64.StdEncoding.EncodeToString(ciphertext),
		IV:        base64.StdEncoding.EncodeToString(nonce),
		Algorithm: c.algorithm,
	}, nil
}

// Open decrypts a sealed payload. Any mismatch between ciphertext, IV and key
// yields ErrDecryptFailed and nil data, never a partially decoded document.
func (c *Cipher) Open(s Sealed) (json.RawMessage, error) {
	algorithm, err := ParseAlgorithm(string(s.Algorithm))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrDecryptFailed, err)
	}
	aead, err := c.aead(algorithm)
	if err != nil {
		return nil, err
	}

	// Strict decoding rejects altered padding bits, which would otherwise
	// decode to the same bytes.
	nonce, err := base64.StdEncoding.Strict().DecodeString(s.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid IV encoding", kerrors.ErrDecryptFailed)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: IV must be %d bytes, got %d", kerrors.ErrDecryptFailed, aead.NonceSize(), len(nonce))
	}

	ciphertext, err := base64.StdEncoding.Strict().DecodeString(s.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid payload encoding", kerrors.ErrDecryptFailed)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrDecryptFailed, err)
	}

	if !json.Valid(plaintext) {
		return nil, fmt.Errorf("%w: payload is not JSON", kerrors.ErrDecryptFailed)
	}

	return json.RawMessage(plaintext), nil
}
