package solver

import (
	"fmt"

	"github.com/funvibe/rulesolver/internal/entity"
)

// tableView is the value of a table register: a table plus an optional row
// window. A zero count means the whole table.
type tableView struct {
	table  Table
	offset int
	count  int
}

// register holds the reified value of one variable within one frame. Its
// kind follows the variable's kind and never changes.
type register struct {
	varID  int
	entity entity.ID
	table  tableView
}

// regs returns the register frame of an operation.
func (it *Iter) regs(op int) []register {
	n := len(it.rule.vars)
	return it.registers[op*n : (op+1)*n]
}

// cols returns the column frame of an operation.
func (it *Iter) cols(op int) []int {
	n := len(it.rule.terms)
	return it.columns[op*n : (op+1)*n]
}

func (it *Iter) entityRegGet(regs []register, r int) entity.ID {
	if it.rule.vars[regs[r].varID].kind != varKindEntity {
		panic(fmt.Sprintf("solver: register %d is not an entity register", r))
	}
	return regs[r].entity
}

func (it *Iter) entityRegSet(regs []register, r int, e entity.ID) {
	if it.rule.vars[regs[r].varID].kind != varKindEntity {
		panic(fmt.Sprintf("solver: register %d is not an entity register", r))
	}
	regs[r].entity = e
}

func (it *Iter) tableRegGet(regs []register, r int) Table {
	if it.rule.vars[regs[r].varID].kind != varKindTable {
		panic(fmt.Sprintf("solver: register %d is not a table register", r))
	}
	return regs[r].table.table
}

func (it *Iter) tableRegSet(regs []register, r int, t Table) {
	if it.rule.vars[regs[r].varID].kind != varKindTable {
		panic(fmt.Sprintf("solver: register %d is not a table register", r))
	}
	regs[r].table = tableView{table: t}
}

// regGetEntity resolves an operation input to a single entity: a constant
// subject, an entity register, or a table register narrowed to one row.
func (it *Iter) regGetEntity(o *op, regs []register, r int) entity.ID {
	if r == noReg {
		return o.subject
	}
	switch it.rule.vars[r].kind {
	case varKindTable:
		view := regs[r].table
		if view.count != 1 {
			panic("solver: table register does not hold a single row")
		}
		return view.table.Entities()[view.offset]
	case varKindEntity:
		return it.entityRegGet(regs, r)
	}
	panic("solver: register cannot produce an entity")
}

// regGetTable resolves an operation input to a table, consulting the entity
// index for entity-valued inputs.
func (it *Iter) regGetTable(o *op, regs []register, r int) Table {
	if r == noReg {
		return it.tableForEntity(o.subject)
	}
	switch it.rule.vars[r].kind {
	case varKindTable:
		return it.tableRegGet(regs, r)
	case varKindEntity:
		return it.tableForEntity(it.entityRegGet(regs, r))
	}
	return nil
}

// regSetEntity writes an entity into a register of either kind. Entity
// values stored into table registers become single-row windows.
func (it *Iter) regSetEntity(regs []register, r int, e entity.ID) {
	if it.rule.vars[r].kind == varKindTable {
		table, row, ok := it.rule.store.LookupEntity(e)
		if !ok {
			panic(fmt.Sprintf("solver: entity %d has no table", uint64(e)))
		}
		regs[r].table = tableView{table: table, offset: row, count: 1}
		return
	}
	it.entityRegSet(regs, r, e)
}

// tableForEntity returns the table holding an entity, or nil.
func (it *Iter) tableForEntity(e entity.ID) Table {
	table, _, ok := it.rule.store.LookupEntity(e)
	if !ok {
		return nil
	}
	return table
}
