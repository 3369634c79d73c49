// Package rules is the embedding surface of the rule solver. It wires the
// expression parser and the program compiler into a pipeline and re-exports
// the solver's iteration API.
package rules

import (
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/funvibe/rulesolver/internal/config"
	"github.com/funvibe/rulesolver/internal/pipeline"
	"github.com/funvibe/rulesolver/internal/solver"
	"github.com/funvibe/rulesolver/internal/store"
	"github.com/funvibe/rulesolver/internal/term"
)

// Rule is a compiled rule program.
type Rule = solver.Rule

// Iter enumerates rule results.
type Iter = solver.Iter

// Option configures compilation.
type Option = solver.Option

// WithLogger attaches a structured logger to the compiled rule.
func WithLogger(l hclog.Logger) Option {
	return solver.WithLogger(l)
}

// parseProcessor turns expression text into a term list.
type parseProcessor struct {
	world *store.World
}

func (p parseProcessor) Process(ctx *pipeline.Context) *pipeline.Context {
	if len(ctx.Errors) > 0 {
		return ctx
	}
	terms, err := term.Parse(ctx.Expr, p.world)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Terms = terms
	return ctx
}

// compileProcessor turns a term list into a rule program.
type compileProcessor struct {
	world *store.World
	opts  []Option
}

func (p compileProcessor) Process(ctx *pipeline.Context) *pipeline.Context {
	if len(ctx.Errors) > 0 {
		return ctx
	}
	rule, err := solver.New(p.world, ctx.Expr, ctx.Terms, p.opts...)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Rule = rule
	return ctx
}

// Compile parses and compiles an expression against a world. The returned
// rule is reusable and may be iterated concurrently from a single goroutine
// per iterator. Setting the trace environment variable attaches a stderr
// trace logger to every rule compiled without an explicit logger.
func Compile(w *store.World, expr string, opts ...Option) (*Rule, error) {
	if len(opts) == 0 && os.Getenv(config.TraceEnv) != "" {
		opts = append(opts, WithLogger(hclog.New(&hclog.LoggerOptions{
			Name:  "rulesolver",
			Level: hclog.Trace,
		})))
	}

	ctx := pipeline.New(
		parseProcessor{world: w},
		compileProcessor{world: w, opts: opts},
	).Run(pipeline.NewContext(expr))

	if len(ctx.Errors) > 0 {
		return nil, ctx.Errors[0]
	}
	return ctx.Rule, nil
}
