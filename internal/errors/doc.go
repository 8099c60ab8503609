// Package errors provides typed error values for Emerald.
//
// Sentinel errors let callers branch on a failure class with errors.Is()
// instead of matching message text. Every layer wraps the sentinel with its
// own context, so the class survives up to the CLI.
//
// # Error Categories
//
//   - Crypto errors: the cipher or master key failed (ErrCryptoUnavailable,
//     ErrDecryptFailed)
//   - Store errors: the embedded database failed (ErrStoreUnavailable,
//     ErrUnknownStore, ErrKeyExists)
//   - Backup errors: a snapshot could not be read or applied (ErrParse,
//     ErrValidation, ErrTransaction)
//   - Domain errors: workflow preconditions (ErrNotFound, ErrContextExists)
//
// # Usage
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("opening %s: %w", path, errors.ErrStoreUnavailable)
//
// Handle them in the CLI layer:
//
//	if errors.Is(err, kerrors.ErrValidation) {
//	    // Explain that the backup file is damaged
//	}
//
// ErrDecryptFailed is special: the record gateway swallows it per row and
// returns the raw envelope, so one damaged record never blocks a listing.
package errors
