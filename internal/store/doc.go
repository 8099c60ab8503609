// Package store is Emerald's local object store, a set of named key/value
// stores with secondary indexes kept in one bbolt file.
//
// # Layout
//
// Each store is a bucket keyed by the encoded primary key. Each index is a
// separate bucket named "idx:<store>:<index>" whose keys are the encoded
// index value followed by the primary key, so one value can map to many
// rows. A "_meta" bucket records the schema version.
//
// Keys are strings or integers. EncodeKey orders integers before strings and
// preserves numeric order across signs.
//
// # Upgrades
//
// Open runs the upgrade inside a single write transaction. Buckets and
// indexes are created only when missing, and a new index is backfilled from
// the rows already present. A database written by a newer build fails with
// ErrSchemaTooNew and is left untouched.
//
// # Transactions
//
// Every operation is one bbolt transaction. Replace clears and refills
// several stores at once and either commits all of them or none.
package store
