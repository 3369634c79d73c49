package solver

import (
	"github.com/funvibe/rulesolver/internal/entity"
)

// opKind identifies a rule program operation.
type opKind int

const (
	opInput opKind = iota
	opSelect
	opWith
	opSubSet
	opSuperSet
	opStore
	opEach
	opSetJmp
	opJump
	opYield
)

// opKindNames maps operation kinds to their listing names.
var opKindNames = map[opKind]string{
	opInput:    "input",
	opSelect:   "select",
	opWith:     "with",
	opSubSet:   "subset",
	opSuperSet: "superset",
	opStore:    "store",
	opEach:     "each",
	opSetJmp:   "setjmp",
	opJump:     "jump",
	opYield:    "yield",
}

func (k opKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// noReg marks an unused register slot; operations with a constant subject
// carry it in the subject field instead.
const noReg = 255

// noColumn marks operations that are not associated with a signature term.
const noColumn = -1

// op is a single operation of a compiled rule program. After evaluating an
// operation the interpreter continues at onPass or onFail depending on the
// result; onPass usually points to the next operation and onFail to the
// previous one.
type op struct {
	kind    opKind
	param   pair
	subject entity.ID

	onPass int
	onFail int

	column int
	rIn    int
	rOut   int

	hasIn  bool
	hasOut bool
}

// isControlFlow reports whether an operation manipulates the instruction
// pointer directly. Control flow operations do not take part in frame
// copying.
func (o *op) isControlFlow() bool {
	switch o.kind {
	case opSetJmp, opJump:
		return true
	default:
		return false
	}
}
