package store

// Store names.
const (
	Transactions  = "transactions"
	Budgets       = "budgets"
	Subscriptions = "subscriptions"
	Goals         = "goals"
	Debts         = "debts"
	Contexts      = "custom_contexts"
	Attachments   = "attachments"
)

// Index names.
const (
	IndexDate    = "date"
	IndexContext = "context"
)

// Version is the current schema version.
const Version = 3

// Index is a non-unique secondary index over one top-level field.
type Index struct {
	Name    string
	KeyPath string
	Since   int
}

// Schema describes one store. The same descriptor drives bucket and index
// creation here and the plaintext projection in the record gateway.
type Schema struct {
	Name string

	// KeyPath is the field holding the primary key. Empty means keys are
	// supplied by the caller (out-of-line).
	KeyPath string

	Indexes []Index

	// Sensitive stores hold encrypted envelopes.
	Sensitive bool

	Since int
}

// Schemas lists every store of the current version.
var Schemas = []Schema{
	{
		Name:    Transactions,
		KeyPath: "id",
		Indexes: []Index{
			{Name: IndexDate, KeyPath: "date", Since: 1},
			{Name: IndexContext, KeyPath: "context", Since: 3},
		},
		Sensitive: true,
		Since:     1,
	},
	{Name: Budgets, KeyPath: "key", Since: 1},
	{
		Name:      Subscriptions,
		KeyPath:   "id",
		Indexes:   []Index{{Name: IndexContext, KeyPath: "context", Since: 3}},
		Sensitive: true,
		Since:     1,
	},
	{
		Name:      Goals,
		KeyPath:   "id",
		Indexes:   []Index{{Name: IndexContext, KeyPath: "context", Since: 3}},
		Sensitive: true,
		Since:     1,
	},
	{
		Name:      Debts,
		KeyPath:   "id",
		Indexes:   []Index{{Name: IndexContext, KeyPath: "context", Since: 3}},
		Sensitive: true,
		Since:     1,
	},
	{Name: Contexts, KeyPath: "id", Sensitive: true, Since: 2},
	{Name: Attachments, Since: 2},
}

// Lookup returns the schema of the named store.
func Lookup(name string) (Schema, bool) {
	for _, s := range Schemas {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

// Index returns the named index of the store.
func (s Schema) Index(name string) (Index, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// ProjectedFields returns the fields that must stay readable without
// decryption: the primary key and every index key path.
func (s Schema) ProjectedFields() []string {
	var fields []string
	if s.KeyPath != "" {
		fields = append(fields, s.KeyPath)
	}
	for _, idx := range s.Indexes {
		fields = append(fields, idx.KeyPath)
	}
	return fields
}

func dataBucket(store string) []byte {
	return []byte(store)
}

func indexBucket(store, index string) []byte {
	return []byte("idx:" + store + ":" + index)
}

var (
	metaBucket = []byte("_meta")
	versionKey = []byte("version")
)
