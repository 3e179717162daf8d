package codegen

import (
	"github.com/llir/llvm/ir"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// emitCall dispatches a call node three ways: a macro-expanded call
// accepts its expansion directly, a multi-target call delegates to the
// dispatch lowerer, and a single-target call monomorphizes and either
// inlines an attached block or emits call/invoke.
func (g *Codegen) emitCall(n *ast.Node) value.Value {
	if n.MacroResult != nil {
		return g.emitNode(n.MacroResult)
	}
	if len(n.TargetDefs) > 1 {
		return g.emitDispatch(n)
	}
	def := n.TargetDefs[0]

	if n.Block != nil {
		return g.inlineBlockCall(n, def)
	}
	return g.emitMonomorphicCall(n, def)
}

// emitMonomorphicCall lowers receiver/out/regular arguments, materializes
// the callee, and chooses call vs invoke per the active handler stack.
func (g *Codegen) emitMonomorphicCall(n *ast.Node, def *ast.Def) value.Value {
	return g.emitMonomorphicCallRecv(n, def, nil)
}

// emitMonomorphicCallRecv is emitMonomorphicCall with an optional
// already-evaluated receiver (precomputedRecv != nil): dispatch.go
// evaluates the receiver once for the whole candidate cascade and reuses
// it here instead of letting each candidate re-evaluate n.Receiver.
func (g *Codegen) emitMonomorphicCallRecv(n *ast.Node, def *ast.Def, precomputedRecv value.Value) value.Value {
	b := g.ctx.cur
	fn := g.MaterializeFunc(def, def.Owner)

	var args []value.Value
	if def.Owner != nil && def.Owner.PassedAsSelf() && n.Receiver != nil {
		if precomputedRecv != nil {
			args = append(args, g.lowerReceiverValue(precomputedRecv, n.Receiver.Type, def.Owner))
		} else {
			args = append(args, g.lowerReceiver(n.Receiver, def.Owner))
		}
	}

	var outCopies []outArgCopy
	for i, argNode := range n.Args {
		if i >= len(def.Args) {
			break
		}
		param := def.Args[i]
		v, copyBack := g.lowerArgument(argNode, param)
		args = append(args, v)
		if copyBack != nil {
			outCopies = append(outCopies, *copyBack)
		}
	}

	result := g.invokeOrCall(b, fn, def, args)

	for _, oc := range outCopies {
		g.copyOutArgBack(g.ctx.cur, oc)
	}

	if def.ReturnType != nil && def.ReturnType.UnionQ() && result != nil {
		slot := g.Alloca(g.LLVMType(def.ReturnType), "call.result")
		g.ctx.cur.NewStore(result, slot)
		return slot
	}
	return result
}

// lowerReceiver accepts obj; if its static type differs from the
// target's owner, box into a hierarchy or bit-cast to the owner's
// pointer, loading once first when the static type carries an extra
// level of indirection.
func (g *Codegen) lowerReceiver(recv *ast.Node, owner *types.Type) value.Value {
	v := g.emitNode(recv)
	return g.lowerReceiverValue(v, recv.Type, owner)
}

// lowerReceiverValue adapts an already-evaluated receiver value v (static
// type st) to owner's representation, without re-evaluating the
// originating expression — used by dispatch.go, which evaluates the
// receiver once up front and reuses the result across every candidate.
func (g *Codegen) lowerReceiverValue(v value.Value, st, owner *types.Type) value.Value {
	b := g.ctx.cur
	if st == owner {
		return v
	}
	if owner.HierarchyQ() {
		return g.boxIntoHierarchy(b, v, st, owner)
	}
	if st != nil && (st.UnionQ() || st.HierarchyQ()) && !owner.UnionQ() {
		payload := b.NewBitCast(g.UnionValuePtr(b, v), irtypes.NewPointer(g.LLVMType(owner)))
		return b.NewLoad(g.LLVMType(owner), payload)
	}
	return b.NewBitCast(v, g.LLVMType(owner))
}

// boxIntoHierarchy wraps a concrete value into the {type_id, opaque_ptr}
// hierarchy representation.
func (g *Codegen) boxIntoHierarchy(b *ir.Block, v value.Value, concrete, hierarchy *types.Type) value.Value {
	slot := g.Alloca(g.LLVMType(hierarchy), "box")
	g.AssignToUnion(b, slot, hierarchy, concrete, v)
	return slot
}

type outArgCopy struct {
	calleeSlot value.Value
	callerPtr  value.Value
	t          *types.Type
}

// lowerArgument splits argument lowering in two: an out argument passes
// the slot pointer and schedules a post-call copy back into the
// caller's pointer (pre-allocating a scratch struct slot for C-struct/
// union out args); a regular argument is accepted and passed by value
// (by-val struct arguments arrive already as a pointer-shaped
// LLVMArgType).
func (g *Codegen) lowerArgument(argNode *ast.Node, param ast.Param) (value.Value, *outArgCopy) {
	if !param.Out {
		return g.emitNode(argNode), nil
	}
	callerPtr := g.addressOfArgument(argNode)
	if param.Type.CStructQ() || param.Type.CUnionQ() {
		scratch := g.Alloca(g.LLVMStructType(param.Type), "out.scratch")
		return scratch, &outArgCopy{calleeSlot: scratch, callerPtr: callerPtr, t: param.Type}
	}
	return callerPtr, nil
}

func (g *Codegen) addressOfArgument(n *ast.Node) value.Value {
	if n.Kind == ast.VarRef {
		if bind, ok := g.ctx.vars[n.Name]; ok {
			return bind.Ptr
		}
	}
	internalAssertion("addressOfArgument: out argument %v is not an addressable local", n)
	return nil
}

func (g *Codegen) copyOutArgBack(b *ir.Block, oc outArgCopy) {
	loaded := b.NewLoad(g.LLVMStructType(oc.t), oc.calleeSlot)
	b.NewStore(loaded, oc.callerPtr)
}

// invokeOrCall emits call when there is no active handler (or the
// callee cannot raise), else invoke targeting the innermost handler's
// catch block and a fresh continuation block.
func (g *Codegen) invokeOrCall(b *ir.Block, fn *ir.Func, def *ast.Def, args []value.Value) value.Value {
	handler, active := g.ctx.activeHandler()
	if !active || !def.Raises {
		return b.NewCall(fn, args...)
	}
	cont := g.ctx.fn.irFunc.NewBlock("invoke.cont")
	result := b.NewInvoke(fn, args, cont, handler.catchBlock)
	g.ctx.cur = cont
	return result
}
