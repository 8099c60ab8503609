// Package backup exports the database as a portable JSON document and
// restores it.
//
// A Snapshot holds decrypted records, flattened budgets, attachments and the
// display theme. It is independent of the master key, so a backup taken on
// one machine restores on another.
//
// Restore validates the whole document before touching the database. It
// then seals every record with a fresh IV and replaces the six record stores
// in a single transaction, so a failure at any point leaves the previous
// data in place. Preferences and attachments follow the commit and are best
// effort.
package backup
