package solver

import (
	"github.com/funvibe/rulesolver/internal/entity"
)

// Store is the read-only view of an entity store that rules compile and
// execute against. Any storage that provides these operations can back the
// solver; the reference implementation lives in internal/store.
type Store interface {
	// ResolveTableSet returns every table whose id list contains at least one
	// id matching mask, with wildcards allowed in either half, or nil when no
	// table matches. Lookups for fully concrete masks must be O(1).
	ResolveTableSet(mask entity.ID) TableSet

	// LookupEntity returns the table and row that hold an entity.
	LookupEntity(e entity.ID) (Table, int, bool)

	// IsTransitive reports whether a predicate has the Transitive tag.
	IsTransitive(id entity.ID) bool

	// IsFinal reports whether a predicate has the Final tag.
	IsFinal(id entity.ID) bool

	// EntityName returns the display name of an id, used in diagnostics and
	// program listings.
	EntityName(id entity.ID) string
}

// Table is an externally defined group of entities sharing one ordered id
// list.
type Table interface {
	// IDs returns the table type, sorted by predicate half then object half.
	IDs() []entity.ID

	// Count returns the number of entity rows.
	Count() int

	// Entities returns the entity rows.
	Entities() []entity.ID
}

// TableRecord is one element of a table set: a table plus the first column at
// which the set's mask matches.
type TableRecord struct {
	Table  Table
	Column int
}

// TableSet is an ordered collection of table records. Iteration order must be
// stable for a frozen store; result determinism depends on it.
type TableSet interface {
	Len() int
	At(i int) TableRecord

	// Lookup returns the record for a table in O(1), if present.
	Lookup(t Table) (TableRecord, bool)
}
