package errors

import "errors"

// Crypto errors indicate failures of the cipher or the master key.
var (
	// ErrCryptoUnavailable indicates the cipher or its key material could not be obtained.
	ErrCryptoUnavailable = errors.New("encryption is unavailable")

	// ErrDecryptFailed indicates a payload could not be authenticated and decrypted.
	ErrDecryptFailed = errors.New("failed to decrypt record")

	// ErrInvalidKeyLength indicates the stored master key has an unexpected length.
	ErrInvalidKeyLength = errors.New("invalid master key length")

	// ErrKeyNotFound indicates the master key slot is empty.
	ErrKeyNotFound = errors.New("master key not found")
)

// Store errors indicate failures of the embedded database.
var (
	// ErrStoreUnavailable indicates the database could not be opened or upgraded.
	ErrStoreUnavailable = errors.New("database is unavailable")

	// ErrSchemaTooNew indicates the database was written by a newer schema version.
	ErrSchemaTooNew = errors.New("database schema is newer than this build")

	// ErrUnknownStore indicates the named store is not part of the schema.
	ErrUnknownStore = errors.New("unknown store")

	// ErrUnknownIndex indicates the named index is not declared on the store.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrInvalidKey indicates a key is missing or of an unsupported type.
	ErrInvalidKey = errors.New("invalid key")

	// ErrKeyExists indicates an insert collided with an existing key.
	ErrKeyExists = errors.New("key already exists")
)

// Backup errors indicate a snapshot could not be read or applied.
var (
	// ErrValidation indicates a document does not match the expected shape.
	ErrValidation = errors.New("validation failed")

	// ErrParse indicates a document is not well-formed JSON.
	ErrParse = errors.New("malformed document")

	// ErrTransaction indicates an atomic multi-store write was aborted.
	ErrTransaction = errors.New("transaction aborted")
)

// Domain errors are returned by the workflows.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrContextExists indicates a budget context with the same name already exists.
	ErrContextExists = errors.New("budget context already exists")

	// ErrContextNotFound indicates the budget context does not exist.
	ErrContextNotFound = errors.New("budget context not found")

	// ErrNoActiveContext indicates no budget context was given and none is active.
	ErrNoActiveContext = errors.New("no active budget context")

	// ErrNotOnboarded indicates onboarding has not been completed.
	ErrNotOnboarded = errors.New("onboarding has not been completed")

	// ErrInvalidAmount indicates an amount is negative or not a number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNoBackupFound indicates no backup file matched in the backup directory.
	ErrNoBackupFound = errors.New("no backup file found")
)
