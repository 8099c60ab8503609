package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/emerald-finance/emerald/internal/secrets"
	"github.com/emerald-finance/emerald/internal/store"
)

// Envelope members.
const (
	encryptedField = "_encrypted"
	payloadField   = "_payload"
	ivField        = "_iv"

	// Present only for ciphers other than AES-256-GCM, so default envelopes
	// stay readable by the browser build.
	algorithmField = "_alg"

	// Written by the browser build.
	legacyEncryptedField = "_enc"
)

// Row is one loaded record. When its envelope cannot be opened, Body holds
// the envelope itself and Undecryptable is set.
type Row struct {
	Body          json.RawMessage
	Undecryptable bool
}

// Gateway encrypts records of sensitive stores on the way in and decrypts
// them on the way out. Other stores pass through unchanged.
type Gateway struct {
	db     *store.DB
	cipher *secrets.Cipher
	log    logger.Logger
}

func New(db *store.DB, cipher *secrets.Cipher, log logger.Logger) *Gateway {
	return &Gateway{db: db, cipher: cipher, log: log}
}

// DB returns the underlying store.
func (g *Gateway) DB() *store.DB {
	return g.db
}

func schema(name string) (store.Schema, error) {
	s, ok := store.Lookup(name)
	if !ok {
		return store.Schema{}, fmt.Errorf("%w: %s", kerrors.ErrUnknownStore, name)
	}
	return s, nil
}

// Save upserts one record.
func (g *Gateway) Save(ctx context.Context, storeName string, record any) error {
	s, err := schema(storeName)
	if err != nil {
		return err
	}
	value, err := g.prepare(s, record)
	if err != nil {
		return err
	}
	return g.db.Put(ctx, storeName, value)
}

// SaveMany upserts records in one transaction.
func (g *Gateway) SaveMany(ctx context.Context, storeName string, records []any) error {
	entries, err := g.PrepareEntries(storeName, records)
	if err != nil {
		return err
	}
	values := make([]any, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return g.db.BulkPut(ctx, storeName, values)
}

// PrepareEntries builds the stored form of each record for store.Replace.
// Every sensitive record is sealed with a fresh IV.
func (g *Gateway) PrepareEntries(storeName string, records []any) ([]store.Entry, error) {
	s, err := schema(storeName)
	if err != nil {
		return nil, err
	}
	entries := make([]store.Entry, len(records))
	for i, r := range records {
		value, err := g.prepare(s, r)
		if err != nil {
			return nil, err
		}
		entries[i] = store.Entry{Value: value}
	}
	return entries, nil
}

func (g *Gateway) prepare(s store.Schema, record any) (json.RawMessage, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encoding %s record: %w", s.Name, err)
	}
	if !s.Sensitive {
		return raw, nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil || members == nil {
		return nil, fmt.Errorf("%w: %s record must be an object", kerrors.ErrInvalidKey, s.Name)
	}

	sealed, err := g.cipher.Seal(json.RawMessage(raw))
	if err != nil {
		return nil, err
	}

	envelope := map[string]any{
		encryptedField: true,
		payloadField:   sealed.Payload,
		ivField:        sealed.IV,
	}
	if sealed.Algorithm != "" && sealed.Algorithm != secrets.AES256GCM {
		envelope[algorithmField] = sealed.Algorithm
	}
	for _, field := range s.ProjectedFields() {
		if v, ok := members[field]; ok && !isNull(v) {
			envelope[field] = v
		}
	}
	return json.Marshal(envelope)
}

// Load returns the record stored under key.
func (g *Gateway) Load(ctx context.Context, storeName string, key any) (Row, bool, error) {
	raw, ok, err := g.db.Get(ctx, storeName, key)
	if err != nil || !ok {
		return Row{}, false, err
	}
	row, err := g.open(storeName, raw)
	return row, err == nil, err
}

// LoadAll returns every record of the store.
func (g *Gateway) LoadAll(ctx context.Context, storeName string) ([]Row, error) {
	raws, err := g.db.GetAll(ctx, storeName)
	if err != nil {
		return nil, err
	}
	return g.openAll(storeName, raws)
}

// LoadByIndex returns the records whose indexed field equals value.
func (g *Gateway) LoadByIndex(ctx context.Context, storeName, index string, value any) ([]Row, error) {
	raws, err := g.db.GetFromIndex(ctx, storeName, index, value)
	if err != nil {
		return nil, err
	}
	return g.openAll(storeName, raws)
}

// Delete removes the record under key.
func (g *Gateway) Delete(ctx context.Context, storeName string, key any) error {
	return g.db.Delete(ctx, storeName, key)
}

func (g *Gateway) openAll(storeName string, raws []json.RawMessage) ([]Row, error) {
	rows := make([]Row, 0, len(raws))
	for _, raw := range raws {
		row, err := g.open(storeName, raw)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// open decrypts one stored value. A record that fails to decrypt is
// returned as its envelope; a missing or broken key fails the whole call.
func (g *Gateway) open(storeName string, raw json.RawMessage) (Row, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil || !isEnvelope(members) {
		return Row{Body: raw}, nil
	}

	var sealed secrets.Sealed
	_ = json.Unmarshal(members[payloadField], &sealed.Payload)
	_ = json.Unmarshal(members[ivField], &sealed.IV)
	if alg, ok := members[algorithmField]; ok {
		if err := json.Unmarshal(alg, &sealed.Algorithm); err != nil {
			// Not a string; let the cipher reject it.
			sealed.Algorithm = secrets.Algorithm(alg)
		}
	}

	body, err := g.cipher.Open(sealed)
	switch {
	case err == nil:
		return Row{Body: body}, nil
	case errors.Is(err, kerrors.ErrDecryptFailed):
		g.log.Warnf("Could not decrypt %s record %s: %v", storeName, members["id"], err)
		return Row{Body: raw, Undecryptable: true}, nil
	default:
		return Row{}, err
	}
}

func isEnvelope(members map[string]json.RawMessage) bool {
	if members == nil {
		return false
	}
	flag, ok := members[encryptedField]
	if !ok {
		flag, ok = members[legacyEncryptedField]
	}
	if !ok || !bytes.Equal(bytes.TrimSpace(flag), []byte("true")) {
		return false
	}
	_, hasPayload := members[payloadField]
	_, hasIV := members[ivField]
	return hasPayload && hasIV
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// DecodeRows decodes the readable rows into T and reports how many were
// skipped as undecryptable.
func DecodeRows[T any](rows []Row) ([]T, int, error) {
	out := make([]T, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if row.Undecryptable {
			skipped++
			continue
		}
		var v T
		if err := json.Unmarshal(row.Body, &v); err != nil {
			return nil, skipped, fmt.Errorf("decoding record: %w", err)
		}
		out = append(out, v)
	}
	return out, skipped, nil
}
