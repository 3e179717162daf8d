package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// varBinding is {pointer, declared_type, treated_as_pointer?}:
// treatedAsPointer means the slot itself holds the value's pointer
// identity (by-val structs, a self that already arrived as a pointer)
// rather than a pointer-to-scalar that must be loaded.
type varBinding struct {
	Ptr              value.Value
	Type             *types.Type
	TreatedAsPointer bool
}

// phiEntry records one terminating block's contribution to a rendezvous
// phi: one entry in a return- or break-block table.
type phiEntry struct {
	Value value.Value
	Block *ir.Block
}

// handlerFrame is {node, catch_block} pushed by an exception handler
// while its protected body emits.
type handlerFrame struct {
	node       *ast.Node
	catchBlock *ir.Block
}

// blockActivation is the stashed context of a call-with-block, consulted
// at each `yield` inside the callee. callerReturn is the caller's own
// saved return rendezvous, restored during a yield so a bare `return`
// inside the block behaves as if written at the call site. callBreak is
// different: a `break` inside the block must exit the call itself (the
// call's own rendezvous, callDone), not whatever loop happens to
// enclose the call site, so it holds the call's own break rendezvous
// rather than the caller's.
type blockActivation struct {
	block        *ast.Block
	vars         map[string]*varBinding
	callerReturn savedReturn
	callBreak    savedBreak
}

// funcState is the per-function part of the emission context: the IR
// function under construction and its two fixed prologue blocks.
type funcState struct {
	def         *ast.Def
	irFunc      *ir.Func
	allocaBlock *ir.Block
	entryBlock  *ir.Block
	owner       *types.Type
	noReturn    bool
}

// emitCtx is the mutable, per-compile emission context threaded through
// recursion. It is never global: Codegen owns exactly one, and every
// recursive descent that changes one of its stacks restores it on the
// way back out, strict LIFO, paired with the AST frame that pushed it.
type emitCtx struct {
	fn  *funcState
	cur *ir.Block // current insertion block, carried explicitly rather than as shared mutable state

	vars map[string]*varBinding

	returnBlock *ir.Block
	returnTable []phiEntry
	returnType  *types.Type
	returnUnion value.Value

	breakBlock *ir.Block
	breakTable []phiEntry
	breakType  *types.Type
	breakUnion value.Value

	handlers []handlerFrame
	blocks   []*blockActivation
}

func newEmitCtx() *emitCtx {
	return &emitCtx{vars: make(map[string]*varBinding)}
}

// pushVars installs the given variable environment and returns the
// prior one for restoration — used at each yield, where the inlined
// block body runs in the call-site environment plus its own parameter
// bindings.
func (c *emitCtx) pushVars(fresh map[string]*varBinding) map[string]*varBinding {
	old := c.vars
	c.vars = fresh
	return old
}

func (c *emitCtx) popVars(old map[string]*varBinding) {
	c.vars = old
}

// cloneVars snapshots the current environment by value (shallow copy of
// bindings), matching the block inliner's "clone its var environment" at
// each yield.
func (c *emitCtx) cloneVars() map[string]*varBinding {
	out := make(map[string]*varBinding, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}

// savedReturn captures the return-rendezvous fields for restoration; used
// around an inlined block call and around a block body at a yield.
type savedReturn struct {
	block *ir.Block
	table []phiEntry
	typ   *types.Type
	union value.Value
}

func (c *emitCtx) saveReturn() savedReturn {
	return savedReturn{c.returnBlock, c.returnTable, c.returnType, c.returnUnion}
}

func (c *emitCtx) setReturn(s savedReturn) {
	c.returnBlock, c.returnTable, c.returnType, c.returnUnion = s.block, s.table, s.typ, s.union
}

func (c *emitCtx) restoreReturn(s savedReturn) { c.setReturn(s) }

func (c *emitCtx) addReturnEntry(v value.Value, b *ir.Block) {
	c.returnTable = append(c.returnTable, phiEntry{v, b})
}

type savedBreak struct {
	block *ir.Block
	table []phiEntry
	typ   *types.Type
	union value.Value
}

func (c *emitCtx) saveBreak() savedBreak {
	return savedBreak{c.breakBlock, c.breakTable, c.breakType, c.breakUnion}
}

func (c *emitCtx) setBreak(s savedBreak) {
	c.breakBlock, c.breakTable, c.breakType, c.breakUnion = s.block, s.table, s.typ, s.union
}

func (c *emitCtx) restoreBreak(s savedBreak) { c.setBreak(s) }

func (c *emitCtx) addBreakEntry(v value.Value, b *ir.Block) {
	c.breakTable = append(c.breakTable, phiEntry{v, b})
}

// pushHandler/popHandler maintain the exception-handler stack call
// lowering consults to choose invoke over call.
func (c *emitCtx) pushHandler(h handlerFrame) { c.handlers = append(c.handlers, h) }

func (c *emitCtx) popHandler() {
	c.handlers = c.handlers[:len(c.handlers)-1]
}

func (c *emitCtx) activeHandler() (handlerFrame, bool) {
	if len(c.handlers) == 0 {
		return handlerFrame{}, false
	}
	return c.handlers[len(c.handlers)-1], true
}

// pushBlockActivation/popBlockActivation maintain the block-activation
// stack.
func (c *emitCtx) pushBlockActivation(a *blockActivation) { c.blocks = append(c.blocks, a) }

func (c *emitCtx) popBlockActivation() *blockActivation {
	n := len(c.blocks)
	a := c.blocks[n-1]
	c.blocks = c.blocks[:n-1]
	return a
}

func (c *emitCtx) topBlockActivation() (*blockActivation, bool) {
	if len(c.blocks) == 0 {
		return nil, false
	}
	return c.blocks[len(c.blocks)-1], true
}

// atEnd reports whether all scoped stacks unwound back to empty, which
// must hold once a function finishes emitting successfully.
func (c *emitCtx) atEnd() bool {
	return len(c.handlers) == 0 && len(c.blocks) == 0
}
