package solver

import (
	"github.com/funvibe/rulesolver/internal/entity"
	"github.com/funvibe/rulesolver/internal/term"
)

// Register mask bits of a pair. A set bit means the corresponding field
// holds a variable id instead of a literal entity id.
const (
	pairPred = 1 << 0
	pairObj  = 1 << 1
)

// pair is the compile-time form of a term's predicate and object. Operations
// use pairs to build filters and, on a match, to reify variables.
type pair struct {
	pred       entity.ID
	obj        entity.ID
	regMask    int
	transitive bool
	final      bool
}

// filter is a pair after substituting the variables resolved so far. The
// expr mask and match act as a bloom-style check: an id e matches when
// e&exprMask == exprMatch.
type filter struct {
	mask entity.ID

	exprMask  entity.ID
	exprMatch entity.ID

	wildcard     bool
	predWildcard bool
	objWildcard  bool
	sameVar      bool

	hiVar int
	loVar int
}

// termToPair encodes a term's predicate and object. Variables are stored as
// entity-variable ids with the matching register bit set; a variable
// predicate is always final, since there is nothing to expand.
func (r *Rule) termToPair(t term.Term) pair {
	var result pair

	if t.Pred.IsVariable() || t.Pred.IsThis() {
		v := r.findVariable(varKindEntity, t.Pred.Name)
		result.pred = entity.ID(v.id)
		result.regMask |= pairPred
		result.final = true
	} else {
		result.pred = t.Pred.Value
		if r.store.IsTransitive(t.Pred.Value) && len(t.Args) == 2 {
			result.transitive = true
		}
		if r.store.IsFinal(t.Pred.Value) {
			result.final = true
		}
	}

	obj, ok := t.Object()
	if !ok {
		return result
	}

	if obj.IsVariable() || obj.IsThis() {
		v := r.findVariable(varKindEntity, obj.Name)
		result.obj = entity.ID(v.id)
		result.regMask |= pairObj
	} else {
		result.obj = obj.Value
	}

	return result
}

// setFilterExprMask derives the bloom mask and match for an id with optional
// wildcard halves. Non-wildcard halves contribute all ones to the mask and
// their value to the match; role bits are preserved in both.
func (f *filter) setFilterExprMask(mask entity.ID) {
	lo := mask.Lo()
	hi := mask.Hi()

	f.exprMask = entity.RoleMask & mask
	f.exprMatch = entity.RoleMask & mask

	if lo != entity.Wildcard {
		f.exprMask |= 0xFFFFFFFF
		f.exprMatch |= lo
	}
	if hi != entity.Wildcard {
		f.exprMask |= entity.ID(0xFFFFFFFF) << 32
		f.exprMatch |= hi << 32
	}
}

// pairToFilter substitutes reified variable values into a pair. Registers
// are read from the previous frame, since the current operation has not
// reified its own variables yet.
func (it *Iter) pairToFilter(p pair) filter {
	pred := p.pred
	obj := p.obj
	result := filter{loVar: -1, hiVar: -1}

	regs := it.regs(it.ctx[it.op].lastOp)

	if p.regMask&pairObj != 0 {
		obj = it.entityRegGet(regs, int(p.obj))
		if obj == entity.Wildcard {
			result.wildcard = true
			result.objWildcard = true
			result.loVar = int(p.obj)
		}
	}

	if p.regMask&pairPred != 0 {
		pred = it.entityRegGet(regs, int(p.pred))
		if pred == entity.Wildcard {
			if result.wildcard {
				result.sameVar = p.pred == p.obj
			}
			result.wildcard = true
			result.predWildcard = true
			if obj != 0 {
				result.hiVar = int(p.pred)
			} else {
				result.loVar = int(p.pred)
			}
		}
	}

	if obj == 0 {
		result.mask = pred
	} else {
		result.mask = entity.Pair(pred, obj)
	}

	if result.wildcard {
		result.setFilterExprMask(result.mask)
	}

	return result
}

// reifyVariables writes the halves of a matched id into the registers of the
// variables the filter left unresolved. A pair without an object assigns the
// whole id to the low variable.
func (it *Iter) reifyVariables(f *filter, typ []entity.ID, column int) {
	regs := it.regs(it.op)
	elem := typ[column]

	if f.loVar != -1 {
		it.entityRegSet(regs, f.loVar, elem.Lo())
	}
	if f.hiVar != -1 {
		it.entityRegSet(regs, f.hiVar, elem.Hi())
	}
}
