// Package audit keeps a local trail of Emerald operations that move or
// destroy data: backup, sync, restore, reset, import and onboarding, plus
// tenant changes.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at:
//
//	<data dir>/audit.jsonl
//
// Each entry carries a UTC timestamp with microseconds, the display name,
// the operation and operation-specific counts or paths. Record contents are
// never written.
//
// # Usage
//
//	entry := audit.LogWithUser("backup")
//	entry.Path = path
//	entry.Records = n
//	audit.Log(entry)
//
// # Failure Handling
//
// Audit logging is best-effort. If the file cannot be written the
// operation continues without error.
package audit
