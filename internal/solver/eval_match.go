package solver

import (
	"github.com/funvibe/rulesolver/internal/entity"
)

// findNextMatch scans a table type from a starting column and returns the
// first index matching the filter, or -1. Because a type is sorted with the
// predicate in the most significant bits, the scan is capped to the element
// at the starting column when the predicate is concrete and the start is not
// zero; ids sharing a predicate are contiguous, so the next match is either
// at the start or absent.
func findNextMatch(typ []entity.ID, column int, f *filter) int {
	count := len(typ)

	if !f.predWildcard {
		if column != 0 && column < count {
			count = column + 1
		}
	}

	for i := column; i < count; i++ {
		if typ[i]&f.exprMask != f.exprMatch {
			continue
		}
		if f.sameVar {
			// The pair used one variable for both halves; a match must bind
			// them to the same value.
			if typ[i].Lo() != typ[i].Hi() {
				continue
			}
		}
		return i
	}
	return -1
}

// findNextTable advances the cursor across a table set, skipping empty
// tables and tables in which the filter has no match.
func (it *Iter) findNextTable(set TableSet, f *filter, ctx *withCtx) TableRecord {
	for {
		ctx.tableIndex++
		if ctx.tableIndex >= set.Len() {
			return TableRecord{}
		}

		rec := set.At(ctx.tableIndex)
		if rec.Table.Count() == 0 {
			continue
		}

		column := findNextMatch(rec.Table.IDs(), rec.Column, f)
		if column == -1 {
			continue
		}
		return TableRecord{Table: rec.Table, Column: column}
	}
}

// evalSelect enumerates every (table, column) matching the operation's
// filter, writing the table into the output register. Wildcard matches also
// reify the variables bound to the matched id's halves.
func (it *Iter) evalSelect(o *op, opIndex int, redo bool) bool {
	r := o.rOut
	f := it.pairToFilter(o.param)
	ctx := it.withState(opIndex)
	regs := it.regs(opIndex)

	var tableSet TableSet
	if redo {
		tableSet = ctx.tableSet
	} else {
		// Variables may have changed since the last visit, which can change
		// the table set to look up.
		tableSet = it.rule.store.ResolveTableSet(f.mask)
		ctx.tableSet = tableSet
	}
	if tableSet == nil {
		return false
	}

	column := -1
	var table Table

	if !redo {
		ctx.tableIndex = -1
		rec := it.findNextTable(tableSet, &f, ctx)
		if rec.Table == nil {
			return false
		}
		table = rec.Table
		column = rec.Column
		it.storeSelectColumn(ctx, opIndex, o, column)
		it.tableRegSet(regs, r, table)
	} else {
		// A wildcard filter may have further matches inside the current
		// table before the cursor moves on.
		if f.wildcard {
			table = it.tableRegGet(regs, r)
			column = findNextMatch(table.IDs(), it.loadSelectColumn(ctx, opIndex, o)+1, &f)
			it.storeSelectColumn(ctx, opIndex, o, column)
		}

		if column == -1 {
			rec := it.findNextTable(tableSet, &f, ctx)
			if rec.Table == nil {
				return false
			}
			table = rec.Table
			it.tableRegSet(regs, r, table)
			column = rec.Column
			it.storeSelectColumn(ctx, opIndex, o, column)
		}
	}

	if f.wildcard {
		it.reifyVariables(&f, table.IDs(), column)
	}
	it.setColumn(o, table.IDs(), column)
	return true
}

// Select operations emitted for a signature term track their match position
// in the term's column frame slot; compiler-generated selects fall back to
// the operation context.
func (it *Iter) storeSelectColumn(ctx *withCtx, opIndex int, o *op, column int) {
	if o.column == noColumn {
		ctx.column = column
		return
	}
	it.cols(opIndex)[o.column] = column
}

func (it *Iter) loadSelectColumn(ctx *withCtx, opIndex int, o *op) int {
	if o.column == noColumn {
		return ctx.column
	}
	return it.cols(opIndex)[o.column]
}

// evalWith checks whether the input table, or the table of the input entity,
// matches the operation's filter. Membership in the table set is a single
// lookup; wildcard filters additionally scan for matches within the table on
// redo.
func (it *Iter) evalWith(o *op, opIndex int, redo bool) bool {
	r := o.rIn
	f := it.pairToFilter(o.param)

	// A concrete filter has nothing further to yield after the first pass.
	if redo && !f.wildcard {
		return false
	}

	ctx := it.withState(opIndex)
	regs := it.regs(opIndex)

	var tableSet TableSet
	if redo {
		tableSet = ctx.tableSet
	} else {
		// Transitive terms are inclusive: when subject and object resolve to
		// the same entity the term holds even though the entity has no
		// relationship with itself.
		if o.param.transitive {
			var subj entity.ID
			if r == noReg {
				subj = o.subject
			} else if it.rule.vars[r].kind == varKindEntity {
				subj = it.entityRegGet(regs, r)
			}
			if subj != 0 && !f.objWildcard {
				if obj := f.mask.Lo(); subj == obj {
					it.components[o.column] = f.mask
					return true
				}
			}
		}

		tableSet = it.rule.store.ResolveTableSet(f.mask)
		ctx.tableSet = tableSet
	}
	if tableSet == nil {
		return false
	}

	columns := it.cols(opIndex)
	newColumn := -1
	var table Table

	if !redo {
		table = it.regGetTable(o, regs, r)
		if table == nil {
			return false
		}
		rec, ok := tableSet.Lookup(table)
		if !ok {
			return false
		}
		newColumn = findNextMatch(table.IDs(), rec.Column, &f)
	} else {
		table = it.regGetTable(o, regs, r)
		if f.wildcard {
			if table == nil {
				return false
			}
			newColumn = findNextMatch(table.IDs(), columns[o.column]+1, &f)
		}
	}

	if newColumn == -1 {
		return false
	}
	columns[o.column] = newColumn

	if f.wildcard {
		it.reifyVariables(&f, table.IDs(), newColumn)
	}
	it.setColumn(o, table.IDs(), newColumn)
	return true
}
