// Package pipeline chains the processing stages that turn rule expression
// text into a compiled rule program.
package pipeline

import (
	"github.com/funvibe/rulesolver/internal/solver"
	"github.com/funvibe/rulesolver/internal/term"
)

// Context carries an expression through the stages.
type Context struct {
	Expr   string
	Terms  []term.Term
	Rule   *solver.Rule
	Errors []error
}

// NewContext creates a context for one expression.
func NewContext(expr string) *Context {
	return &Context{Expr: expr}
}

// Processor is a single stage.
type Processor interface {
	Process(ctx *Context) *Context
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. Stages are expected to skip work when earlier
// stages recorded errors.
func (p *Pipeline) Run(ctx *Context) *Context {
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
	}
	return ctx
}
