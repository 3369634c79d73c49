package solver

import (
	"github.com/funvibe/rulesolver/internal/entity"
	"github.com/funvibe/rulesolver/internal/term"
)

// compiler tracks which variables have been written while operations are
// emitted; the written state decides between Select and With and where Each
// operations are needed.
type compiler struct {
	r       *Rule
	written []bool
}

func (c *compiler) markWritten(id int) {
	for len(c.written) <= id {
		c.written = append(c.written, false)
	}
	c.written[id] = true
}

func (c *compiler) writtenID(id int) bool {
	return id < len(c.written) && c.written[id]
}

// isKnown reports whether a variable has been written. Literals are always
// known.
func (c *compiler) isKnown(v *variable) bool {
	return v == nil || c.writtenID(v.id)
}

// newOp appends a zeroed operation and returns its index.
func (c *compiler) newOp(kind opKind) int {
	c.r.ops = append(c.r.ops, op{
		kind:   kind,
		column: noColumn,
		rIn:    noReg,
		rOut:   noReg,
	})
	return len(c.r.ops) - 1
}

// insertOperation appends an operation with default control flow: pass moves
// to the next operation, fail backtracks to the previous one. When the
// operation originates from a term, the term is encoded into the operation's
// pair, inserting Each operations for entity variables whose tables are
// known.
func (c *compiler) insertOperation(columnIndex int) int {
	var p pair
	if columnIndex != noColumn {
		p = c.r.termToPair(c.r.terms[columnIndex])

		if p.regMask&pairPred != 0 {
			pred := c.mostSpecificVar(&c.r.vars[p.pred])
			p.pred = entity.ID(pred.id)
		}
		if p.regMask&pairObj != 0 {
			obj := c.mostSpecificVar(&c.r.vars[p.obj])
			p.obj = entity.ID(obj.id)
		}
	}

	i := c.newOp(opInput)
	o := &c.r.ops[i]
	o.onPass = i + 1
	o.onFail = i - 1
	o.param = p
	o.column = columnIndex
	return i
}

// insertInput emits the entry operation. On redo it fails, which terminates
// the program.
func (c *compiler) insertInput() {
	i := c.newOp(opInput)
	o := &c.r.ops[i]
	o.onPass = 1
	o.onFail = -1
}

// insertYield emits the final operation. Its input is the this variable,
// preferring the entity form, or noReg for rules without this.
func (c *compiler) insertYield() {
	i := c.newOp(opYield)
	o := &c.r.ops[i]
	o.hasIn = true
	o.onFail = i - 1

	v := c.r.findVariable(varKindEntity, ".")
	if v == nil {
		v = c.r.findVariable(varKindTable, ".")
	}
	if v == nil {
		o.rIn = noReg
	} else {
		o.rIn = v.id
	}
}

// toEntity returns the entity form of a variable.
func (c *compiler) toEntity(v *variable) *variable {
	if v == nil {
		return nil
	}
	if v.kind == varKindTable {
		return c.r.findVariable(varKindEntity, v.name)
	}
	return v
}

// mostSpecificVar returns the most specific written form of a variable,
// preferring the entity form. If only the table form has been written, an
// Each operation is inserted to derive the entities.
func (c *compiler) mostSpecificVar(v *variable) *variable {
	if v == nil {
		return nil
	}

	evar := c.toEntity(v)
	if evar == nil {
		return v
	}

	var tvar *variable
	if v.kind == varKindTable {
		tvar = v
	} else {
		tvar = c.r.findVariable(varKindTable, v.name)
	}

	// Table variables usually resolve before they are used as a predicate or
	// object, but cyclic dependencies can leave the table unwritten; only
	// derive entities from tables that exist.
	if tvar != nil && c.writtenID(tvar.id) {
		if !c.writtenID(evar.id) {
			i := c.newOp(opEach)
			o := &c.r.ops[i]
			o.onPass = i + 1
			o.onFail = i - 1
			o.hasIn = true
			o.hasOut = true
			o.rIn = tvar.id
			o.rOut = evar.id
			c.markWritten(evar.id)
		}
		return evar
	}
	if c.writtenID(evar.id) {
		return evar
	}
	return v
}

// ensureEntityWritten returns the entity form of a variable, guaranteed to
// be written before the next operation reads it.
func (c *compiler) ensureEntityWritten(v *variable) *variable {
	if v == nil {
		return nil
	}
	evar := c.mostSpecificVar(v)
	if evar.kind != varKindEntity || !c.writtenID(evar.id) {
		panic("solver: entity variable not written")
	}
	return evar
}

func (c *compiler) setInputToSubj(o *op, t term.Term, v *variable) {
	o.hasIn = true
	if v == nil {
		o.rIn = noReg
		o.subject = t.Subject().Value
	} else {
		o.rIn = v.id
	}
}

func (c *compiler) setOutputToSubj(o *op, t term.Term, v *variable) {
	o.hasOut = true
	if v == nil {
		o.rOut = noReg
		o.subject = t.Subject().Value
	} else {
		o.rOut = v.id
	}
}

// insertSelectOrWith turns an emitted operation into a Select or a With. A
// subject that has been written, or is a literal, is checked with With;
// otherwise Select enumerates tables and writes the subject.
func (c *compiler) insertSelectOrWith(opIdx int, t term.Term, subj *variable) {
	o := &c.r.ops[opIdx]

	evar := c.toEntity(subj)
	var tvar *variable
	if subj != nil && subj.kind == varKindTable {
		tvar = subj
	}

	switch {
	case evar != nil && c.writtenID(evar.id):
		o.kind = opWith
		o.rIn = evar.id
		c.setInputToSubj(o, t, subj)
	case tvar != nil && c.writtenID(tvar.id):
		o.kind = opWith
		o.rIn = tvar.id
		c.setInputToSubj(o, t, subj)
	case tvar == nil && evar == nil:
		o.kind = opWith
		c.setInputToSubj(o, t, nil)
	default:
		o.kind = opSelect
		c.setOutputToSubj(o, t, subj)
		c.markWritten(subj.id)
	}

	if o.param.regMask&pairPred != 0 {
		c.markWritten(int(o.param.pred))
	}
	if o.param.regMask&pairObj != 0 {
		c.markWritten(int(o.param.obj))
	}
}

// insertInclusiveSet emits the four-operation pattern that yields the root
// element before the transitive enumeration:
//
//	setjmp: pass -> store, fail -> set
//	store:  emit the root once
//	set:    SubSet or SuperSet
//	jump:   back to the label stored by setjmp
//
// The first entry passes through Store; the first redo flips the setjmp to
// the set operation, which then drives the traversal.
func (c *compiler) insertInclusiveSet(kind opKind, outID int, param pair, rootID int, rootEntity entity.ID, column int) {
	setjmpLbl := len(c.r.ops)
	storeLbl := setjmpLbl + 1
	setLbl := setjmpLbl + 2
	jumpLbl := setjmpLbl + 3
	nextOp := setjmpLbl + 4
	prevOp := setjmpLbl - 1

	c.newOp(opSetJmp)
	c.newOp(opStore)
	c.newOp(kind)
	c.newOp(opJump)

	setjmp := &c.r.ops[setjmpLbl]
	setjmp.onPass = storeLbl
	setjmp.onFail = setLbl

	store := &c.r.ops[storeLbl]
	store.param.pred = param.pred
	store.onPass = nextOp
	store.onFail = setjmpLbl
	store.hasIn = true
	store.hasOut = true
	store.rOut = outID
	store.column = column
	if rootID == -1 {
		store.rIn = noReg
		store.subject = rootEntity
		store.param.obj = rootEntity
	} else {
		store.rIn = rootID
		store.param.obj = entity.ID(rootID)
		store.param.regMask = pairObj
	}

	set := &c.r.ops[setLbl]
	set.param.pred = param.pred
	set.onPass = nextOp
	set.onFail = prevOp
	set.hasOut = true
	set.rOut = outID
	set.column = column
	if rootID == -1 {
		set.param.obj = rootEntity
	} else {
		set.param.obj = entity.ID(rootID)
		set.param.regMask = pairObj
	}

	// The jump's pass label stores the setjmp position, not a destination;
	// the destination is read from the setjmp context at runtime.
	jump := &c.r.ops[jumpLbl]
	jump.onPass = setjmpLbl
	jump.onFail = -1

	c.markWritten(outID)
}

// storeInclusiveSet creates the anonymous output variable for an inclusive
// set and emits the operations, returning the written entity form.
func (c *compiler) storeInclusiveSet(kind opKind, param pair, root *variable, rootEntity entity.ID) *variable {
	outKind := varKindTable
	if kind == opSuperSet {
		outKind = varKindEntity
	}

	rootID := -1
	if root != nil {
		rootID = root.id
	}

	av := c.r.createAnonymousVariable(outKind)
	avID := av.id
	if outKind == varKindTable {
		// The set result is consumed as an entity, so the table variable
		// needs an entity twin sharing its name.
		name := c.r.vars[avID].name
		c.r.createVariable(varKindEntity, name)
	}

	if rootID != -1 {
		root = c.mostSpecificVar(&c.r.vars[rootID])
		rootID = root.id
	}

	c.insertInclusiveSet(kind, avID, param, rootID, rootEntity, noColumn)

	return c.ensureEntityWritten(&c.r.vars[avID])
}

// insertNonfinalSelectOrWith expands a non-final predicate into the
// inclusive IsA subsets of the predicate, then matches the term against the
// anonymous subset variable. This gives terms with non-final predicates
// implicit IsA semantics.
func (c *compiler) insertNonfinalSelectOrWith(t term.Term, param pair, subj *variable, column int) {
	subjID := -1
	if subj != nil {
		subjID = subj.id
	}

	predParam := pair{pred: entity.IsA, obj: param.pred}
	predSubsets := c.storeInclusiveSet(opSubSet, predParam, nil, param.pred)
	predSubsetsID := predSubsets.id

	if subjID != -1 {
		subj = &c.r.vars[subjID]
	}

	if param.regMask&pairObj != 0 {
		c.mostSpecificVar(&c.r.vars[param.obj])
	}

	i := c.insertOperation(noColumn)
	o := &c.r.ops[i]
	o.param.pred = entity.ID(predSubsetsID)
	o.param.obj = param.obj
	o.param.regMask = param.regMask | pairPred
	o.column = column

	c.insertSelectOrWith(i, t, subj)
}

func (c *compiler) insertTerm1(t term.Term, column int) {
	pred := c.r.termPredVar(t)
	subj := c.r.termSubjVar(t)
	param := c.r.termToPair(t)

	subj = c.mostSpecificVar(subj)

	if pred != nil || param.final {
		i := c.insertOperation(column)
		c.insertSelectOrWith(i, t, subj)
	} else {
		c.insertNonfinalSelectOrWith(t, param, subj, column)
	}
}

func (c *compiler) insertTerm2(t term.Term, column int) {
	pred := c.r.termPredVar(t)
	subj := c.r.termSubjVar(t)
	obj := c.r.termObjVar(t)
	param := c.r.termToPair(t)

	subjID := -1
	if subj != nil {
		subjID = subj.id
	}
	objID := -1
	if obj != nil {
		objID = obj.id
	}

	subj = c.mostSpecificVar(subj)

	switch {
	case pred != nil || (param.final && !param.transitive):
		i := c.insertOperation(column)
		c.insertSelectOrWith(i, t, subj)

	case !param.final:
		c.insertNonfinalSelectOrWith(t, param, subj, column)

	case param.transitive:
		objIdent, _ := t.Object()

		if c.isKnown(subj) {
			if c.isKnown(obj) {
				// Both sides bound: enumerate the inclusive subsets of the
				// object and match the subject against each.
				objSubsets := c.storeInclusiveSet(opSubSet, param, obj, objIdent.Value)

				if subjID != -1 {
					subj = &c.r.vars[subjID]
					if subj.kind == varKindTable {
						subj = c.mostSpecificVar(subj)
					}
				}

				i := c.insertOperation(column)
				o := &c.r.ops[i]
				o.kind = opWith
				c.setInputToSubj(o, t, subj)
				o.param.obj = entity.ID(objSubsets.id)
				o.param.regMask = pairObj
			} else {
				// Subject bound, object free: climb from the subject.
				obj = c.toEntity(&c.r.vars[objID])
				rootID := -1
				if subj != nil {
					rootID = subj.id
				}
				c.insertInclusiveSet(opSuperSet, obj.id, param, rootID, t.Subject().Value, column)
			}
		} else {
			if c.isKnown(obj) {
				// Object bound, subject free: descend from the object.
				rootID := -1
				if objID != -1 {
					obj = c.mostSpecificVar(&c.r.vars[objID])
					rootID = obj.id
				}
				subj = &c.r.vars[subjID]
				c.insertInclusiveSet(opSubSet, subj.id, param, rootID, objIdent.Value, column)
			} else {
				// Neither side bound: select any relation first, then climb
				// from an anonymous object.
				av := c.r.createAnonymousVariable(varKindEntity)
				avID := av.id

				subj = &c.r.vars[subjID]
				obj = &c.r.vars[objID]

				i := c.insertOperation(noColumn)
				o := &c.r.ops[i]
				o.kind = opSelect
				c.setOutputToSubj(o, t, subj)
				o.param.pred = param.pred
				o.param.obj = entity.ID(avID)
				o.param.regMask = param.regMask | pairObj

				c.markWritten(subj.id)
				c.markWritten(avID)

				setParam := o.param
				c.insertInclusiveSet(opSuperSet, obj.id, setParam, avID, 0, column)
			}
		}
	}
}

func (c *compiler) insertTerm(t term.Term, column int) {
	if len(t.Args) == 1 {
		c.insertTerm1(t, column)
	} else {
		c.insertTerm2(t, column)
	}
}

// compileProgram emits the full program: literal-subject terms first, then
// each subject variable's terms in dependency order, Each operations for any
// entity variable still unwritten, and finally Yield.
func (r *Rule) compileProgram() {
	c := &compiler{r: r}

	c.insertInput()

	// Terms with a literal subject iterate one entity's type and narrow the
	// search quickly, so they go first.
	for i, t := range r.terms {
		if r.termSubjVar(t) != nil {
			continue
		}
		c.insertTerm(t, i)
	}

	for v := 0; v < r.subjectVarCount; v++ {
		for i := range r.terms {
			t := r.terms[i]
			subj := r.termSubjVar(t)
			if subj == nil || subj.id != v {
				continue
			}
			c.insertTerm(t, i)
		}
	}

	// Entity variables that are only constrained through a shared predicate
	// or object still need values for the iterator to report; derive them
	// from their table variables.
	for v := r.subjectVarCount; v < len(r.vars); v++ {
		if c.writtenID(v) {
			continue
		}
		tableVar := r.findVariable(varKindTable, r.vars[v].name)
		if tableVar == nil {
			panic("solver: unwritten entity variable has no table form")
		}
		i := c.insertOperation(noColumn)
		o := &c.r.ops[i]
		o.kind = opEach
		o.rIn = tableVar.id
		o.rOut = v
		o.hasIn = true
		o.hasOut = true
		c.markWritten(v)
	}

	c.insertYield()
}
