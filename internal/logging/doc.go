// Package logger provides leveled logging for Emerald commands and the
// storage layers beneath them.
//
// # Verbosity Levels
//
// Logging behavior is controlled by two flags:
//
//   - --verbose: Shows info messages
//   - --debug: Shows info and debug messages
//
// Warnings and errors are always written to the error stream. The record
// gateway uses Warnf to report rows it could not decrypt, so those reach the
// user even without flags.
//
// # Usage
//
//	log := Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Restored %d transactions", count)
//
// The logger is a small value type; pass it by value into constructors.
// Tests use Discard() or point Out and Err at a bytes.Buffer.
package logger
