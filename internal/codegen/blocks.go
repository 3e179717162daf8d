package codegen

import (
	"github.com/llir/llvm/ir/value"

	"github.com/nocturn-lang/noctc/internal/ast"
)

// inlineBlockCall lowers a call with an attached iterator block. The
// callee def runs inline in the caller's function (never as a separate
// IR function): its own `return` rendezvous is local to this call, and
// non-local `return` reached through a `yield` must land on the
// rendezvous that was active in the caller before this call started,
// which is why the activation pushed below carries the caller's saved
// return state. `break` is different: it must exit this call itself
// (landing on callDone, the call's own rendezvous, alongside a normal
// fall-through return) rather than any loop enclosing the call site, so
// a break rendezvous targeting callDone is installed before the callee
// body runs and threaded through yields via the activation's callBreak.
func (g *Codegen) inlineBlockCall(n *ast.Node, def *ast.Def) value.Value {
	callerVars := g.ctx.cloneVars()
	callerReturn := g.ctx.saveReturn()
	callerBreak := g.ctx.saveBreak()

	if def.Owner != nil && def.Owner.PassedAsSelf() && n.Receiver != nil {
		recv := g.lowerReceiver(n.Receiver, def.Owner)
		g.ctx.vars["self"] = &varBinding{Ptr: recv, Type: def.Owner, TreatedAsPointer: true}
	}
	for i, argNode := range n.Args {
		if i >= len(def.Args) {
			break
		}
		p := def.Args[i]
		v := g.emitNode(argNode)
		slot := g.Alloca(g.LLVMType(p.Type), p.Name+".addr")
		g.ctx.cur.NewStore(v, slot)
		g.ctx.vars[p.Name] = &varBinding{Ptr: slot, Type: p.Type}
	}

	callDone := g.ctx.fn.irFunc.NewBlock("block.call.done")
	g.ctx.returnBlock = callDone
	g.ctx.returnTable = nil
	g.ctx.returnType = def.ReturnType
	if def.ReturnType != nil && def.ReturnType.UnionQ() {
		g.ctx.returnUnion = g.Alloca(g.LLVMType(def.ReturnType), "block.call.result")
	} else {
		g.ctx.returnUnion = nil
	}

	// break shares callDone and the union slot with return: whichever
	// one a yielded block's body hits, the call produces one value at
	// one rendezvous block.
	g.ctx.breakBlock = callDone
	g.ctx.breakTable = nil
	g.ctx.breakType = def.ReturnType
	g.ctx.breakUnion = g.ctx.returnUnion
	callBreak := g.ctx.saveBreak()

	g.ctx.pushBlockActivation(&blockActivation{
		block:        n.Block,
		vars:         callerVars,
		callerReturn: callerReturn,
		callBreak:    callBreak,
	})

	lastVal := g.emitNode(def.Body)
	if !blockTerminated(g.ctx.cur) {
		if lastVal != nil {
			g.ctx.addReturnEntry(lastVal, g.ctx.cur)
		}
		g.ctx.cur.NewBr(callDone)
	}

	activation := g.ctx.popBlockActivation()
	g.ctx.popVars(callerVars)

	retUnion := g.ctx.returnUnion
	// The union case needs no extra merging: break and return share the
	// same union slot (returnUnion == breakUnion), so every contribution
	// already landed there regardless of which one fired. The phi-table
	// case has three possible sources of a callDone contribution: the
	// callee body falling through to a plain return, a bare top-level
	// break (rare, no enclosing yield), and every break reached through
	// a yield, accumulated in the activation's callBreak across however
	// many times the callee yielded.
	retTable := append(append([]phiEntry{}, g.ctx.returnTable...), g.ctx.breakTable...)
	retTable = append(retTable, activation.callBreak.table...)
	g.ctx.cur = callDone
	g.ctx.restoreReturn(activation.callerReturn)
	g.ctx.restoreBreak(callerBreak)

	if def.ReturnType != nil && def.ReturnType.UnionQ() {
		return retUnion
	}
	return g.buildPhi(callDone, def.ReturnType, retTable)
}

// emitYield implements the heart of iterator-block inlining: it pops the
// innermost activation, binds the block's formal parameters to the
// evaluated yield arguments inside a clone of the environment captured
// at the call site, restores the caller's return rendezvous (so a bare
// `return` inside the block behaves exactly as if written at the call
// site) and the call's own break rendezvous (so a bare `break` exits the
// call rather than whatever loop encloses the call site) for the
// duration of the block body, emits the body, then restores the
// callee's own rendezvous and pushes the activation back so later
// yields in a loop reuse it.
func (g *Codegen) emitYield(n *ast.Node) value.Value {
	activation, ok := g.ctx.topBlockActivation()
	if !ok {
		internalAssertion("emitYield: yield with no enclosing block activation")
		return nil
	}
	g.ctx.popBlockActivation()

	blockVars := make(map[string]*varBinding, len(activation.vars))
	for k, v := range activation.vars {
		blockVars[k] = v
	}
	for i, argNode := range n.YieldArgs {
		if i >= len(activation.block.Params) {
			break
		}
		p := activation.block.Params[i]
		v := g.emitNode(argNode)
		slot := g.Alloca(g.LLVMType(p.Type), p.Name+".addr")
		g.ctx.cur.NewStore(v, slot)
		blockVars[p.Name] = &varBinding{Ptr: slot, Type: p.Type}
	}

	calleeVars := g.ctx.pushVars(blockVars)
	calleeReturn := g.ctx.saveReturn()
	calleeBreak := g.ctx.saveBreak()

	// `return` in the block body behaves as if written at the call
	// site, so it gets the caller's own rendezvous restored. `break`
	// must instead exit the call, so it gets the call's own rendezvous
	// (callDone), not the caller's enclosing loop.
	g.ctx.restoreReturn(activation.callerReturn)
	g.ctx.restoreBreak(activation.callBreak)

	blockVal := g.emitNode(activation.block.Body)

	activation.callerReturn = g.ctx.saveReturn()
	activation.callBreak = g.ctx.saveBreak()

	g.ctx.restoreReturn(calleeReturn)
	g.ctx.restoreBreak(calleeBreak)
	g.ctx.popVars(calleeVars)

	g.ctx.pushBlockActivation(activation)
	return blockVal
}
