package solver

import (
	"fmt"

	"github.com/funvibe/rulesolver/internal/entity"
)

// Iter enumerates the results of a rule. Each iterator owns its register
// frames and per-operation contexts; the compiled rule itself is shared
// read-only. Iterators are not safe for concurrent use.
type Iter struct {
	rule *Rule

	registers  []register
	columns    []int
	ctx        []opCtx
	components []entity.ID

	op   int
	redo bool

	freed bool

	table         Table
	count         int
	offset        int
	entities      []entity.ID
	resultColumns []int
}

// Iterate creates an iterator over the rule's results.
func (r *Rule) Iterate() *Iter {
	it := &Iter{rule: r}

	opCount := len(r.ops)
	varCount := len(r.vars)
	colCount := len(r.terms)

	it.registers = make([]register, opCount*varCount)
	it.columns = make([]int, opCount*colCount)
	it.ctx = make([]opCtx, opCount)
	it.components = make([]entity.ID, colCount)

	if varCount > 0 {
		regs := it.regs(0)
		for i := range r.vars {
			regs[i].varID = i
			if r.vars[i].kind == varKindEntity {
				regs[i].entity = entity.Wildcard
			}
		}
	}

	return it
}

// Next advances the iterator. It returns true when a result is available and
// false when the enumeration is exhausted, at which point the iterator's
// buffers are released.
func (it *Iter) Next() bool {
	if it.freed {
		return false
	}

	rule := it.rule
	redo := it.redo
	lastIndex := 0

	for it.op != -1 {
		opIndex := it.op
		o := &rule.ops[opIndex]

		// Give the operation its own frame so a later redo can resume from
		// undisturbed state. Control flow operations carry no frame.
		if !redo && opIndex != 0 && !o.isControlFlow() {
			it.pushRegisters(lastIndex, opIndex)
			it.pushColumns(lastIndex, opIndex)
			it.ctx[opIndex].lastOp = lastIndex
		}

		result := it.evalOp(o, opIndex, redo)
		it.traceOp(opIndex, o, redo, result)

		if result {
			it.op = o.onPass
		} else {
			it.op = o.onFail
		}
		redo = !result

		if o.kind == opYield {
			it.populate(o, opIndex)
			it.redo = true
			return true
		}

		switch o.kind {
		case opJump:
			// The destination lives in the paired setjmp context; the jump's
			// pass label names the setjmp operation.
			it.op = it.setjmpState(o.onPass).label
		case opSetJmp:
			// A setjmp is the first evaluation of a branch.
			redo = false
		default:
			lastIndex = opIndex
		}
	}

	it.release()
	return false
}

func (it *Iter) evalOp(o *op, opIndex int, redo bool) bool {
	switch o.kind {
	case opInput:
		return it.evalInput(o, opIndex, redo)
	case opSelect:
		return it.evalSelect(o, opIndex, redo)
	case opWith:
		return it.evalWith(o, opIndex, redo)
	case opSubSet:
		return it.evalSubSet(o, opIndex, redo)
	case opSuperSet:
		return it.evalSuperSet(o, opIndex, redo)
	case opEach:
		return it.evalEach(o, opIndex, redo)
	case opStore:
		return it.evalStore(o, opIndex, redo)
	case opSetJmp:
		return it.evalSetJmp(o, opIndex, redo)
	case opJump:
		return it.evalJump(o, opIndex, redo)
	case opYield:
		return it.evalYield(o, opIndex, redo)
	default:
		return false
	}
}

func (it *Iter) pushRegisters(cur, next int) {
	if len(it.rule.vars) == 0 {
		return
	}
	copy(it.regs(next), it.regs(cur))
}

func (it *Iter) pushColumns(cur, next int) {
	if len(it.rule.terms) == 0 {
		return
	}
	copy(it.cols(next), it.cols(cur))
}

// setColumn records the concrete id an operation matched for its term.
func (it *Iter) setColumn(o *op, typ []entity.ID, column int) {
	if o.column == noColumn {
		return
	}
	if typ == nil {
		it.components[o.column] = 0
		return
	}
	it.components[o.column] = typ[column]
}

// setIterTable fills the result fields from a table. The column indices of
// the yield frame are bumped by one; the public contract numbers term
// columns from 1.
func (it *Iter) setIterTable(table Table, cur, offset int) {
	it.table = table
	it.count = table.Count()
	it.offset = offset
	it.entities = table.Entities()[offset:]

	cols := it.cols(cur)
	for i := range cols {
		cols[i]++
	}
	it.resultColumns = cols
}

// populate prepares the result fields before yielding to the caller.
func (it *Iter) populate(o *op, opIndex int) {
	r := o.rIn

	if r == noReg {
		// No this variable; the rule reports plain truth, one empty result
		// per satisfied assignment of the remaining variables.
		it.table = nil
		it.count = 0
		it.offset = 0
		it.entities = nil
		cols := it.cols(opIndex)
		for i := range cols {
			cols[i]++
		}
		it.resultColumns = cols
		return
	}

	regs := it.regs(opIndex)
	v := &it.rule.vars[r]

	if v.kind == varKindTable {
		view := regs[r].table
		it.setIterTable(view.table, opIndex, view.offset)
		if view.count != 0 {
			it.offset = view.offset
			it.count = view.count
		}
	} else {
		e := it.entityRegGet(regs, r)
		table, row, ok := it.rule.store.LookupEntity(e)
		if !ok {
			panic(fmt.Sprintf("solver: yielded entity %d has no table", uint64(e)))
		}
		it.setIterTable(table, opIndex, row)
		it.count = 1
	}
}

// Table returns the table of the current result, if the rule yields tables.
func (it *Iter) Table() Table {
	return it.table
}

// Count returns the number of entities in the current result; zero for
// rules without a this variable.
func (it *Iter) Count() int {
	return it.count
}

// Offset returns the starting row of the current result within its table.
func (it *Iter) Offset() int {
	return it.offset
}

// Entities returns the entity rows of the current result.
func (it *Iter) Entities() []entity.ID {
	if it.count == 0 || it.entities == nil {
		return nil
	}
	return it.entities[:it.count]
}

// Columns returns, per term, the 1-based position in the table type at
// which the term matched.
func (it *Iter) Columns() []int {
	return it.resultColumns
}

// Components returns, per term, the concrete id the term resolved to.
func (it *Iter) Components() []entity.ID {
	return it.components
}

// Variable returns the value of an entity variable for the current result,
// or 0 for table variables.
func (it *Iter) Variable(id int) entity.ID {
	if it.freed {
		return 0
	}
	if it.rule.vars[id].kind != varKindEntity {
		return 0
	}
	regs := it.regs(len(it.rule.ops) - 1)
	return it.entityRegGet(regs, id)
}

// Free releases the iterator's buffers. It is safe to call at any point and
// more than once; an exhausted iterator frees itself.
func (it *Iter) Free() {
	it.release()
}

func (it *Iter) release() {
	if it.freed {
		return
	}
	it.freed = true
	it.registers = nil
	it.columns = nil
	it.ctx = nil
	it.components = nil
	it.entities = nil
	it.resultColumns = nil
	it.table = nil
}
