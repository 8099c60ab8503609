// Package models defines Emerald's records, their validation rules and the
// budget key format.
//
// JSON member names match the backup document, so a record decoded from a
// snapshot can be stored without conversion. Validation is split in two:
// DecodeRecord reports missing members and wrong types, and Validate applies
// the rule tags (non-empty names, enums, date strings) through
// go-playground/validator.
package models
