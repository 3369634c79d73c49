package solver

import (
	"github.com/funvibe/rulesolver/internal/entity"
)

// evalSubSet computes the downward transitive closure of (P, obj): every
// table reached by following P relations from obj and from each entity so
// reached, depth first. Correctness relies on the relation graph being
// acyclic; the traversal has no cycle protection.
func (it *Iter) evalSubSet(o *op, opIndex int, redo bool) bool {
	ctx := it.subsetState(opIndex)
	regs := it.regs(opIndex)
	r := o.rOut
	p := o.param
	f := it.pairToFilter(p)

	if !redo {
		ctx.sp = 0
		frame := ctx.frame(0)
		frame.with.tableSet = it.rule.store.ResolveTableSet(f.mask)
		if frame.with.tableSet == nil {
			return false
		}
		frame.with.tableIndex = -1

		rec := it.findNextTable(frame.with.tableSet, &f, &frame.with)
		if rec.Table == nil {
			return false
		}

		frame.row = 0
		frame.column = rec.Column
		frame.table = rec.Table
		it.tableRegSet(regs, r, rec.Table)
		it.setColumn(o, rec.Table.IDs(), rec.Column)
		return true
	}

	for {
		sp := ctx.sp
		frame := ctx.frame(sp)
		table := frame.table
		tableSet := frame.with.tableSet
		row := frame.row

		// The current table is exhausted; advance within this frame's set,
		// or pop back to the parent and move it past the finished entity.
		for row >= table.Count() {
			rec := it.findNextTable(tableSet, &f, &frame.with)
			if rec.Table != nil {
				table = rec.Table
				frame.table = table
				frame.row = 0
				frame.column = rec.Column
				it.setColumn(o, table.IDs(), rec.Column)
				it.tableRegSet(regs, r, table)
				return true
			}

			ctx.sp--
			sp = ctx.sp
			if sp < 0 {
				return false
			}
			frame = ctx.frame(sp)
			table = frame.table
			tableSet = frame.with.tableSet
			frame.row++
			row = frame.row
		}

		rowCount := table.Count()
		entities := table.Entities()

		// Descend: the current row's entity becomes the object of the next
		// level's lookup.
		var next Table
		for next == nil && row < rowCount {
			e := entities[row]

			child := p
			child.regMask &^= pairObj
			child.obj = e
			f = it.pairToFilter(child)

			childSet := it.rule.store.ResolveTableSet(f.mask)
			if childSet != nil {
				newFrame := ctx.frame(sp + 1)
				newFrame.with.tableSet = childSet
				newFrame.with.tableIndex = -1

				rec := it.findNextTable(childSet, &f, &newFrame.with)
				if rec.Table != nil {
					next = rec.Table
					ctx.sp++
					newFrame.table = next
					newFrame.row = 0
					newFrame.column = rec.Column
					frame = newFrame
				}
			}

			if next == nil {
				frame.row++
				row = frame.row
			}
		}

		if next != nil {
			it.tableRegSet(regs, r, next)
			it.setColumn(o, next.IDs(), frame.column)
			return true
		}
	}
}

// evalSuperSet computes the upward transitive closure of (P, subj): every
// entity reachable by following the object halves of (P, *) ids from the
// subject's table upwards.
func (it *Iter) evalSuperSet(o *op, opIndex int, redo bool) bool {
	ctx := it.supersetState(opIndex)
	regs := it.regs(opIndex)
	r := o.rOut
	f := it.pairToFilter(o.param)

	// The traversal scans for any (P, *) id regardless of the filter's
	// object, so it uses its own wildcard mask.
	mask := entity.Pair(o.param.pred, entity.Wildcard)
	var scan filter
	scan.mask = mask
	scan.setFilterExprMask(mask)

	if !redo {
		ctx.sp = 0
		frame := ctx.frame(0)

		ctx.tableSet = it.rule.store.ResolveTableSet(mask)
		if ctx.tableSet == nil {
			// No table has the transitive relationship at all.
			return false
		}

		obj := f.mask.Lo()
		table := it.tableForEntity(obj)
		if table == nil {
			return false
		}

		column := findNextMatch(table.IDs(), 0, &scan)
		if column == -1 {
			return false
		}

		colObj := table.IDs()[column].Lo()
		it.entityRegSet(regs, r, colObj)
		it.setColumn(o, table.IDs(), column)

		frame.table = table
		frame.column = column
		return true
	}

	sp := ctx.sp
	frame := ctx.frame(sp)
	table := frame.table
	column := frame.column

	// Try to descend into the table of the entity matched last.
	colObj := table.IDs()[column].Lo()
	if next := it.tableForEntity(colObj); next != nil {
		sp++
		frame = ctx.frame(sp)
		frame.table = next
		frame.column = -1
	}

	for {
		frame = ctx.frame(sp)
		table = frame.table

		column = findNextMatch(table.IDs(), frame.column+1, &scan)
		if column != -1 {
			ctx.sp = sp
			frame.column = column
			colObj = table.IDs()[column].Lo()
			it.entityRegSet(regs, r, colObj)
			it.setColumn(o, table.IDs(), column)
			return true
		}

		sp--
		if sp < 0 {
			return false
		}
	}
}
