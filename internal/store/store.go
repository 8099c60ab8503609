package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"go.etcd.io/bbolt"
)

// Options configures Open.
type Options struct {
	// Timeout bounds the wait for the file lock. Zero waits forever.
	Timeout time.Duration

	// NoSync skips fsync per transaction. Tests only.
	NoSync bool

	Logger logger.Logger
}

// Entry is one stored value with its primary key.
type Entry struct {
	Key   any
	Value json.RawMessage
}

// DB is the object store. It is safe for concurrent use.
type DB struct {
	bolt    *bbolt.DB
	log     logger.Logger
	path    string
	version int
}

// Open opens or creates the database at path and upgrades it to Version.
func Open(path string, opts Options) (*DB, error) {
	return openVersion(path, opts, Version)
}

func openVersion(path string, opts Options, target int) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrStoreUnavailable, err)
	}

	b, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: opts.Timeout,
		NoSync:  opts.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", kerrors.ErrStoreUnavailable, path, err)
	}

	db := &DB{bolt: b, log: opts.Logger, path: path, version: target}
	if err := b.Update(func(tx *bbolt.Tx) error {
		return db.upgrade(tx, target)
	}); err != nil {
		_ = b.Close()
		return nil, err
	}

	db.log.Debugf("Opened store %s at version %d", path, target)
	return db, nil
}

// upgrade brings every bucket and index up to target. Each step checks for
// existence first, so running it twice is a no-op.
func (db *DB) upgrade(tx *bbolt.Tx, target int) error {
	meta, err := tx.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrStoreUnavailable, err)
	}

	current := 0
	if v := meta.Get(versionKey); len(v) == 8 {
		current = int(binary.BigEndian.Uint64(v))
	}
	if current > target {
		return fmt.Errorf("%w: database is at version %d, this build supports %d", kerrors.ErrSchemaTooNew, current, target)
	}

	for _, s := range Schemas {
		if s.Since > target {
			continue
		}
		if tx.Bucket(dataBucket(s.Name)) == nil {
			if _, err := tx.CreateBucket(dataBucket(s.Name)); err != nil {
				return fmt.Errorf("creating store %s: %w", s.Name, err)
			}
			db.log.Debugf("Created store %s", s.Name)
		}

		for _, idx := range s.Indexes {
			if idx.Since > target || tx.Bucket(indexBucket(s.Name, idx.Name)) != nil {
				continue
			}
			n, err := backfill(tx, s, idx)
			if err != nil {
				return err
			}
			db.log.Debugf("Created index %s.%s with %d entries", s.Name, idx.Name, n)
		}
	}

	if current != target {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(target))
		if err := meta.Put(versionKey, buf); err != nil {
			return err
		}
		db.log.Debugf("Upgraded store from version %d to %d", current, target)
	}
	return nil
}

// backfill creates an index bucket and fills it from existing rows.
func backfill(tx *bbolt.Tx, s Schema, idx Index) (int, error) {
	ib, err := tx.CreateBucket(indexBucket(s.Name, idx.Name))
	if err != nil {
		return 0, fmt.Errorf("creating index %s.%s: %w", s.Name, idx.Name, err)
	}

	n := 0
	err = tx.Bucket(dataBucket(s.Name)).ForEach(func(pk, raw []byte) error {
		row, err := decodeObject(raw)
		if err != nil {
			return nil
		}
		value, ok := indexValue(row, idx)
		if !ok {
			return nil
		}
		n++
		return ib.Put(indexEntry(value, pk), pk)
	})
	return n, err
}

// Version reports the schema version stored in the database.
func (db *DB) Version() (int, error) {
	var v int
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(metaBucket).Get(versionKey); len(raw) == 8 {
			v = int(binary.BigEndian.Uint64(raw))
		}
		return nil
	})
	return v, err
}

// Close releases the file lock.
func (db *DB) Close() error {
	if db.bolt == nil {
		return nil
	}
	db.log.Debugf("Closing store %s", db.path)
	return db.bolt.Close()
}

// lookup returns the schema of a store that exists at the opened version.
func (db *DB) lookup(store string) (Schema, error) {
	s, ok := Lookup(store)
	if !ok || s.Since > db.version {
		return Schema{}, fmt.Errorf("%w: %s", kerrors.ErrUnknownStore, store)
	}
	return s, nil
}

// Get returns the value stored under key.
func (db *DB) Get(ctx context.Context, store string, key any) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s, err := db.lookup(store)
	if err != nil {
		return nil, false, err
	}
	pk, err := EncodeKey(key)
	if err != nil {
		return nil, false, err
	}

	var out json.RawMessage
	err = db.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(dataBucket(s.Name)).Get(pk); v != nil {
			out = bytes.Clone(v)
		}
		return nil
	})
	return out, out != nil, err
}

// GetAll returns every value of the store in primary key order.
func (db *DB) GetAll(ctx context.Context, store string) ([]json.RawMessage, error) {
	entries, err := db.Entries(ctx, store)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out, nil
}

// Entries returns every key and value of the store in primary key order.
func (db *DB) Entries(ctx context.Context, store string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := db.lookup(store)
	if err != nil {
		return nil, err
	}

	var out []Entry
	err = db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(dataBucket(s.Name)).ForEach(func(k, v []byte) error {
			key, err := DecodeKey(k)
			if err != nil {
				return err
			}
			out = append(out, Entry{Key: key, Value: bytes.Clone(v)})
			return nil
		})
	})
	return out, err
}

// GetFromIndex returns every value whose indexed field equals value,
// ordered by primary key.
func (db *DB) GetFromIndex(ctx context.Context, store, index string, value any) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := db.lookup(store)
	if err != nil {
		return nil, err
	}
	idx, ok := s.Index(index)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", kerrors.ErrUnknownIndex, store, index)
	}
	encoded, err := EncodeKey(value)
	if err != nil {
		return nil, err
	}
	prefix := indexPrefix(encoded)

	var out []json.RawMessage
	err = db.bolt.View(func(tx *bbolt.Tx) error {
		ib := tx.Bucket(indexBucket(s.Name, idx.Name))
		if ib == nil {
			return nil
		}
		data := tx.Bucket(dataBucket(s.Name))
		c := ib.Cursor()
		for k, pk := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, pk = c.Next() {
			if v := data.Get(pk); v != nil {
				out = append(out, bytes.Clone(v))
			}
		}
		return nil
	})
	return out, err
}

// Put inserts or replaces value. Stores with a key path read the key from
// the value; out-of-line stores take it as the single extra argument.
func (db *DB) Put(ctx context.Context, store string, value any, key ...any) error {
	return db.write(ctx, store, value, key, false)
}

// Add is Put that fails with ErrKeyExists when the key is taken.
func (db *DB) Add(ctx context.Context, store string, value any, key ...any) error {
	return db.write(ctx, store, value, key, true)
}

func (db *DB) write(ctx context.Context, store string, value any, key []any, insert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := db.lookup(store)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s value: %w", store, err)
	}
	var k any
	if len(key) > 0 {
		k = key[0]
	}
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return putTx(tx, s, k, raw, insert)
	})
}

// BulkPut upserts every value in one transaction.
func (db *DB) BulkPut(ctx context.Context, store string, values []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := db.lookup(store)
	if err != nil {
		return err
	}
	raws := make([][]byte, len(values))
	for i, v := range values {
		if raws[i], err = json.Marshal(v); err != nil {
			return fmt.Errorf("encoding %s value: %w", store, err)
		}
	}
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		for _, raw := range raws {
			if err := putTx(tx, s, nil, raw, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the value under key. A missing key is not an error.
func (db *DB) Delete(ctx context.Context, store string, key any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := db.lookup(store)
	if err != nil {
		return err
	}
	pk, err := EncodeKey(key)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(dataBucket(s.Name))
		old := data.Get(pk)
		if old == nil {
			return nil
		}
		if err := removeIndexes(tx, s, pk, old); err != nil {
			return err
		}
		return data.Delete(pk)
	})
}

// Clear empties one store and its indexes.
func (db *DB) Clear(ctx context.Context, store string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := db.lookup(store)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return clearTx(tx, s)
	})
}

// ClearAll empties every store in one transaction.
func (db *DB) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		for _, s := range Schemas {
			if s.Since > db.version {
				continue
			}
			if err := clearTx(tx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replace clears each named store and adds its entries, all in one
// transaction. Any failure leaves every store as it was.
func (db *DB) Replace(ctx context.Context, batches map[string][]Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	names := make([]string, 0, len(batches))
	for name := range batches {
		if _, err := db.lookup(name); err != nil {
			return fmt.Errorf("%w: %w", kerrors.ErrTransaction, err)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	err := db.bolt.Update(func(tx *bbolt.Tx) error {
		for _, name := range names {
			s, _ := Lookup(name)
			if err := clearTx(tx, s); err != nil {
				return fmt.Errorf("clearing %s: %w", name, err)
			}
			for _, e := range batches[name] {
				if err := ctx.Err(); err != nil {
					return err
				}
				var key any
				if s.KeyPath == "" {
					key = e.Key
				}
				if err := putTx(tx, s, key, e.Value, true); err != nil {
					return fmt.Errorf("writing %s: %w", name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrTransaction, err)
	}
	return nil
}

func clearTx(tx *bbolt.Tx, s Schema) error {
	buckets := [][]byte{dataBucket(s.Name)}
	for _, idx := range s.Indexes {
		buckets = append(buckets, indexBucket(s.Name, idx.Name))
	}
	for _, name := range buckets {
		if tx.Bucket(name) == nil {
			continue
		}
		if err := tx.DeleteBucket(name); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return err
		}
	}
	return nil
}

func putTx(tx *bbolt.Tx, s Schema, key any, raw []byte, insert bool) error {
	if !json.Valid(raw) {
		return fmt.Errorf("%w: %s value is not JSON", kerrors.ErrInvalidKey, s.Name)
	}

	var row map[string]any
	if s.KeyPath != "" || len(s.Indexes) > 0 {
		var err error
		if row, err = decodeObject(raw); err != nil {
			return fmt.Errorf("%w: %s value must be an object", kerrors.ErrInvalidKey, s.Name)
		}
	}

	if s.KeyPath != "" {
		if key != nil {
			return fmt.Errorf("%w: %s uses inline keys", kerrors.ErrInvalidKey, s.Name)
		}
		key = row[s.KeyPath]
	} else if key == nil {
		return fmt.Errorf("%w: %s requires an explicit key", kerrors.ErrInvalidKey, s.Name)
	}

	pk, err := EncodeKey(key)
	if err != nil {
		return err
	}

	data := tx.Bucket(dataBucket(s.Name))
	if old := data.Get(pk); old != nil {
		if insert {
			return fmt.Errorf("%w: %s %v", kerrors.ErrKeyExists, s.Name, key)
		}
		if err := removeIndexes(tx, s, pk, old); err != nil {
			return err
		}
	}

	if err := data.Put(pk, raw); err != nil {
		return err
	}
	for _, idx := range s.Indexes {
		value, ok := indexValue(row, idx)
		if !ok {
			continue
		}
		// Indexes newer than the opened version are filled by backfill
		// on upgrade.
		ib := tx.Bucket(indexBucket(s.Name, idx.Name))
		if ib == nil {
			continue
		}
		if err := ib.Put(indexEntry(value, pk), pk); err != nil {
			return err
		}
	}
	return nil
}

func removeIndexes(tx *bbolt.Tx, s Schema, pk, old []byte) error {
	if len(s.Indexes) == 0 {
		return nil
	}
	row, err := decodeObject(old)
	if err != nil {
		return nil
	}
	for _, idx := range s.Indexes {
		value, ok := indexValue(row, idx)
		if !ok {
			continue
		}
		ib := tx.Bucket(indexBucket(s.Name, idx.Name))
		if ib == nil {
			continue
		}
		if err := ib.Delete(indexEntry(value, pk)); err != nil {
			return err
		}
	}
	return nil
}

// indexValue extracts the encoded index key. Rows whose field is missing or
// not a valid key are left out of the index.
func indexValue(row map[string]any, idx Index) ([]byte, bool) {
	v, ok := row[idx.KeyPath]
	if !ok || v == nil {
		return nil, false
	}
	encoded, err := EncodeKey(v)
	if err != nil {
		return nil, false
	}
	return encoded, true
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("null object")
	}
	return row, nil
}
