// Package secrets provides the cryptographic operations behind Emerald's
// encrypted stores.
//
// # Master Key
//
// One random 256-bit key protects every sensitive store on a machine. It is
// created lazily on the first Seal or Open, exported as base64 into the
// preference slot (see configs.PreferenceStore), and cached in memory by the
// KeyManager for the life of the process. It is never rotated.
//
// Losing the slot makes the encrypted stores unrecoverable. Backups written
// by the backup package are decrypted documents and do not depend on the key.
//
// # Record Encryption
//
// Cipher seals a JSON document with an AEAD (AES-256-GCM by default,
// ChaCha20-Poly1305 when configured). Every call draws a fresh 96-bit IV
// from crypto/rand, so sealing the same record twice yields different
// ciphertexts.
//
// Open reports ErrDecryptFailed for any ciphertext, IV or key mismatch. It
// never returns a silently wrong document.
//
// # Concurrency
//
// KeyManager serializes key creation inside one process. Two processes that
// start against an empty slot at the same moment each generate a key; the
// last write to the slot wins and the other process keeps a divergent key in
// memory until it restarts.
package secrets
