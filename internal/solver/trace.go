package solver

// traceOp logs one dispatch step. The check keeps the hot path free of
// logging costs unless the embedder asked for trace output.
func (it *Iter) traceOp(opIndex int, o *op, redo, result bool) {
	if !it.rule.logger.IsTrace() {
		return
	}
	it.rule.logger.Trace("op",
		"rule", it.rule.id,
		"ip", opIndex,
		"kind", o.kind.String(),
		"redo", redo,
		"pass", result,
	)
}
