// Package records is the encrypted record gateway between the domain layer
// and the object store.
//
// Records of sensitive stores are written as envelopes: the primary key and
// the indexed fields stay readable so the store can key and index them, and
// the complete record is sealed into "_payload" with its "_iv". On read the
// payload is the authority, and projected fields are ignored.
//
// A record that fails to decrypt does not fail the read. It comes back as a
// Row with Undecryptable set, and a warning is logged.
package records
