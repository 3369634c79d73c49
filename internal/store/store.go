// Package store provides the reference in-memory entity store the rule
// solver executes against. Entities are grouped into tables keyed by their
// ordered id list, and every table is indexed under each mask that matches
// one of its ids, including wildcard masks.
package store

import (
	"fmt"
	"sort"

	"github.com/funvibe/rulesolver/internal/entity"
	"github.com/funvibe/rulesolver/internal/solver"
)

// Table groups entities that share the same type (ordered id list). It
// implements solver.Table.
type Table struct {
	seq      int
	ids      []entity.ID
	entities []entity.ID
}

// IDs returns the table type, sorted by predicate half then object half.
func (t *Table) IDs() []entity.ID {
	return t.ids
}

// Count returns the number of entity rows in the table.
func (t *Table) Count() int {
	return len(t.entities)
}

// Entities returns the entity rows in insertion order.
func (t *Table) Entities() []entity.ID {
	return t.entities
}

type tableRecord struct {
	table  *Table
	column int
}

// TableSet is the ordered set of tables registered under one mask. Iteration
// order is table creation order; membership checks are O(1). It implements
// solver.TableSet.
type TableSet struct {
	records []tableRecord
	byTable map[*Table]int
}

// Len returns the number of tables in the set.
func (s *TableSet) Len() int {
	return len(s.records)
}

// At returns the i'th table record.
func (s *TableSet) At(i int) solver.TableRecord {
	rec := s.records[i]
	return solver.TableRecord{Table: rec.table, Column: rec.column}
}

// Lookup returns the record for a specific table, if it is in the set.
func (s *TableSet) Lookup(t solver.Table) (solver.TableRecord, bool) {
	tab, ok := t.(*Table)
	if !ok {
		return solver.TableRecord{}, false
	}
	i, ok := s.byTable[tab]
	if !ok {
		return solver.TableRecord{}, false
	}
	return s.At(i), true
}

func (s *TableSet) add(t *Table, column int) {
	if _, ok := s.byTable[t]; ok {
		return
	}
	s.byTable[t] = len(s.records)
	s.records = append(s.records, tableRecord{table: t, column: column})
}

type record struct {
	table *Table
	row   int
}

// World is an entity store: a name registry, tables, the per-mask table-set
// index and the entity location map. It implements solver.Store.
type World struct {
	names   map[string]entity.ID
	byID    map[entity.ID]string
	next    entity.ID
	tables  []*Table
	byType  map[string]*Table
	index   map[entity.ID]*TableSet
	records map[entity.ID]record
}

// NewWorld creates a world with the reserved entities registered. IsA is
// transitive and final out of the box.
func NewWorld() *World {
	w := &World{
		names:   make(map[string]entity.ID),
		byID:    make(map[entity.ID]string),
		next:    entity.FirstUser,
		byType:  make(map[string]*Table),
		index:   make(map[entity.ID]*TableSet),
		records: make(map[entity.ID]record),
	}

	w.register("*", entity.Wildcard)
	w.register(".", entity.This)
	w.register("IsA", entity.IsA)
	w.register("Transitive", entity.Transitive)
	w.register("Final", entity.Final)
	w.register("Name", entity.Name)

	w.place(entity.Name)
	w.place(entity.Transitive)
	w.place(entity.Final)
	w.place(entity.IsA, entity.Transitive, entity.Final)

	return w
}

func (w *World) register(name string, id entity.ID) {
	w.names[name] = id
	w.byID[id] = name
}

// ID returns the id registered for a name, creating the entity if needed.
// Entities created this way have no table until they are placed by Entity or
// Tag.
func (w *World) ID(name string) entity.ID {
	if id, ok := w.names[name]; ok {
		return id
	}
	id := w.next
	w.next++
	w.register(name, id)
	return id
}

// Lookup resolves a name without creating it.
func (w *World) Lookup(name string) (entity.ID, bool) {
	id, ok := w.names[name]
	return id, ok
}

// Name returns the display name of an id, or a numeric fallback.
func (w *World) Name(id entity.ID) string {
	if n, ok := w.byID[id]; ok {
		return n
	}
	if id.IsPair() {
		return fmt.Sprintf("(%s,%s)", w.Name(id.Hi()), w.Name(id.Lo()))
	}
	return fmt.Sprintf("#%d", uint64(id))
}

// EntityName implements solver.Store.
func (w *World) EntityName(id entity.ID) string {
	return w.Name(id)
}

// Tag registers a name and places the entity in the Name-only table.
func (w *World) Tag(name string) entity.ID {
	return w.Entity(name)
}

// Entity registers a named entity, adds the Name component to the given ids
// and places the entity in the matching table. Placing the same entity twice
// panics; worlds are built once and frozen before iteration.
func (w *World) Entity(name string, ids ...entity.ID) entity.ID {
	id := w.ID(name)
	if _, ok := w.records[id]; ok {
		panic(fmt.Sprintf("store: entity %q placed twice", name))
	}
	w.place(id, ids...)
	return id
}

// place adds an entity row to the table for the given type, creating and
// indexing the table on first use.
func (w *World) place(e entity.ID, ids ...entity.ID) {
	typ := make([]entity.ID, 0, len(ids)+1)
	typ = append(typ, entity.Name)
	typ = append(typ, ids...)
	sort.Slice(typ, func(i, j int) bool { return typ[i] < typ[j] })
	typ = dedup(typ)

	t := w.table(typ)
	w.records[e] = record{table: t, row: len(t.entities)}
	t.entities = append(t.entities, e)
}

func dedup(ids []entity.ID) []entity.ID {
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || ids[i-1] != id {
			out = append(out, id)
		}
	}
	return out
}

func (w *World) table(typ []entity.ID) *Table {
	key := typeKey(typ)
	if t, ok := w.byType[key]; ok {
		return t
	}
	t := &Table{seq: len(w.tables), ids: typ}
	w.tables = append(w.tables, t)
	w.byType[key] = t
	w.indexTable(t)
	return t
}

func typeKey(typ []entity.ID) string {
	b := make([]byte, 0, len(typ)*8)
	for _, id := range typ {
		for s := 0; s < 64; s += 8 {
			b = append(b, byte(id>>s))
		}
	}
	return string(b)
}

// indexTable registers a table under every mask one of its ids matches: the
// concrete id, both single-wildcard pair masks, the all-pair mask and the
// any-id wildcard. The stored column is the first matching position.
func (w *World) indexTable(t *Table) {
	w.indexUnder(entity.Wildcard, t, 0)
	for column, id := range t.ids {
		w.indexUnder(id, t, column)
		if id.IsPair() {
			w.indexUnder(entity.Pair(id.Hi(), entity.Wildcard), t, column)
			w.indexUnder(entity.Pair(entity.Wildcard, id.Lo()), t, column)
			w.indexUnder(entity.Pair(entity.Wildcard, entity.Wildcard), t, column)
		}
	}
}

func (w *World) indexUnder(mask entity.ID, t *Table, column int) {
	set, ok := w.index[mask]
	if !ok {
		set = &TableSet{byTable: make(map[*Table]int)}
		w.index[mask] = set
	}
	set.add(t, column)
}

// ResolveTableSet implements solver.Store. It returns the set of tables
// containing at least one id that matches the mask, or nil.
func (w *World) ResolveTableSet(mask entity.ID) solver.TableSet {
	set, ok := w.index[mask]
	if !ok {
		return nil
	}
	return set
}

// LookupEntity implements solver.Store.
func (w *World) LookupEntity(e entity.ID) (solver.Table, int, bool) {
	rec, ok := w.records[e]
	if !ok {
		return nil, 0, false
	}
	return rec.table, rec.row, true
}

// IsTransitive reports whether a predicate carries the Transitive tag.
func (w *World) IsTransitive(id entity.ID) bool {
	return w.hasComponent(id, entity.Transitive)
}

// IsFinal reports whether a predicate carries the Final tag.
func (w *World) IsFinal(id entity.ID) bool {
	return w.hasComponent(id, entity.Final)
}

func (w *World) hasComponent(e, comp entity.ID) bool {
	rec, ok := w.records[e]
	if !ok {
		return false
	}
	for _, id := range rec.table.ids {
		if id == comp {
			return true
		}
		if id > comp {
			return false
		}
	}
	return false
}
