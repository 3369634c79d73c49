// Package solver compiles rule expressions into programs of typed operations
// and evaluates them lazily against an entity store. A rule is compiled once
// and can be iterated any number of times; every iterator enumerates all
// variable assignments that satisfy the rule's terms.
package solver

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/funvibe/rulesolver/internal/term"
)

// Compile error kinds. New wraps these with the offending expression.
var (
	ErrArity         = errors.New("too many arguments")
	ErrCapacity      = errors.New("too many variables in rule")
	ErrUnconstrained = errors.New("unconstrained variable")
)

// Rule is a compiled rule program. It is immutable after compilation and may
// be shared read-only across iterators.
type Rule struct {
	id    uuid.UUID
	store Store
	expr  string
	terms []term.Term

	vars []variable
	ops  []op

	subjectVarCount int

	logger hclog.Logger
}

// Option configures rule compilation.
type Option func(*Rule)

// WithLogger attaches a logger. Compile failures are logged at error level
// and operation dispatch at trace level; the default logger discards
// everything.
func WithLogger(l hclog.Logger) Option {
	return func(r *Rule) {
		if l != nil {
			r.logger = l
		}
	}
}

// New compiles a parsed term list into a rule program. The expression text is
// carried for diagnostics only; parsing happens upstream.
func New(store Store, expr string, terms []term.Term, opts ...Option) (*Rule, error) {
	r := &Rule{
		id:     uuid.New(),
		store:  store,
		expr:   expr,
		terms:  terms,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.scanVariables(); err != nil {
		r.logger.Error("rule compilation failed", "rule", r.id, "error", err)
		return nil, err
	}

	r.compileProgram()

	r.logger.Debug("rule compiled", "rule", r.id,
		"terms", len(r.terms), "variables", len(r.vars), "operations", len(r.ops))
	return r, nil
}

// ID returns the rule's unique identity, used to correlate log output.
func (r *Rule) ID() uuid.UUID {
	return r.id
}

// Expr returns the original expression text.
func (r *Rule) Expr() string {
	return r.expr
}

// TermCount returns the number of terms in the rule.
func (r *Rule) TermCount() int {
	return len(r.terms)
}

// VariableCount returns the number of variables, including the table and
// entity forms of subjects and compiler-generated variables.
func (r *Rule) VariableCount() int {
	return len(r.vars)
}

// FindVariable returns the id of the entity variable with the given name, or
// -1.
func (r *Rule) FindVariable(name string) int {
	if v := r.findVariable(varKindEntity, name); v != nil {
		return v.id
	}
	return -1
}

// VariableName returns the name of a variable.
func (r *Rule) VariableName(id int) string {
	return r.vars[id].name
}

// VariableIsEntity reports whether a variable holds entities rather than
// tables.
func (r *Rule) VariableIsEntity(id int) bool {
	return r.vars[id].kind == varKindEntity
}

// variableByID returns the variable for a register id, or nil for noReg.
func (r *Rule) variableByID(id int) *variable {
	if id == noReg {
		return nil
	}
	return &r.vars[id]
}

func (r *Rule) String() string {
	return fmt.Sprintf("Rule(%s)", r.expr)
}
