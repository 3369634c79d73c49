package solver

// Per-operation iterator state. Contexts are indexed by operation position,
// not by kind: two instances of the same kind never share state. The state
// field holds the kind-specific context, allocated on first use.
type opCtx struct {
	// lastOp is the most recent non-control-flow operation evaluated before
	// this one; its frame is the source of this operation's inputs.
	lastOp int

	state any
}

// withCtx is shared by Select and With: a table set plus a cursor into it.
// The column cursor is used by Select operations that have no signature
// term to track their position in.
type withCtx struct {
	tableSet   TableSet
	tableIndex int
	column     int
}

// subsetFrame is one level of the downward transitive traversal.
type subsetFrame struct {
	with   withCtx
	table  Table
	row    int
	column int
}

// subsetCtx is the DFS state of a SubSet operation. Frames are allocated
// individually so pointers held across stack growth stay valid.
type subsetCtx struct {
	stack []*subsetFrame
	sp    int
}

// supersetFrame is one level of the upward transitive traversal.
type supersetFrame struct {
	table  Table
	column int
}

// supersetCtx is the DFS state of a SuperSet operation.
type supersetCtx struct {
	stack    []*supersetFrame
	tableSet TableSet
	sp       int
}

// eachCtx tracks the row an Each operation will forward next.
type eachCtx struct {
	row int
}

// setjmpCtx stores the destination a paired Jump operation reads.
type setjmpCtx struct {
	label int
}

// smallStackDepth is the pre-allocated DFS depth for transitive traversals;
// deeper relation graphs fall back to regular slice growth.
const smallStackDepth = 16

func (it *Iter) withState(opIndex int) *withCtx {
	ctx, _ := it.ctx[opIndex].state.(*withCtx)
	if ctx == nil {
		ctx = &withCtx{}
		it.ctx[opIndex].state = ctx
	}
	return ctx
}

func (it *Iter) subsetState(opIndex int) *subsetCtx {
	ctx, _ := it.ctx[opIndex].state.(*subsetCtx)
	if ctx == nil {
		ctx = &subsetCtx{stack: make([]*subsetFrame, 0, smallStackDepth)}
		it.ctx[opIndex].state = ctx
	}
	return ctx
}

func (it *Iter) supersetState(opIndex int) *supersetCtx {
	ctx, _ := it.ctx[opIndex].state.(*supersetCtx)
	if ctx == nil {
		ctx = &supersetCtx{stack: make([]*supersetFrame, 0, smallStackDepth)}
		it.ctx[opIndex].state = ctx
	}
	return ctx
}

func (it *Iter) eachState(opIndex int) *eachCtx {
	ctx, _ := it.ctx[opIndex].state.(*eachCtx)
	if ctx == nil {
		ctx = &eachCtx{}
		it.ctx[opIndex].state = ctx
	}
	return ctx
}

func (it *Iter) setjmpState(opIndex int) *setjmpCtx {
	ctx, _ := it.ctx[opIndex].state.(*setjmpCtx)
	if ctx == nil {
		ctx = &setjmpCtx{}
		it.ctx[opIndex].state = ctx
	}
	return ctx
}

// frame returns the i'th DFS frame, growing the stack as needed.
func (c *subsetCtx) frame(i int) *subsetFrame {
	for len(c.stack) <= i {
		c.stack = append(c.stack, &subsetFrame{})
	}
	return c.stack[i]
}

func (c *supersetCtx) frame(i int) *supersetFrame {
	for len(c.stack) <= i {
		c.stack = append(c.stack, &supersetFrame{})
	}
	return c.stack[i]
}
