package codegen

import (
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/nocturn-lang/noctc/internal/ast"
)

// emitExceptionHandler lowers a protected body with rescue/ensure clauses
// onto Itanium-style landing pads: push a handler frame so every invoke
// generated while the protected body emits targets this catch block,
// build the landingpad itself against the shared personality function,
// and branch by runtime type-id into whichever rescue clause's flat type
// disjunction matches, re-raising when none does.
func (g *Codegen) emitExceptionHandler(n *ast.Node) value.Value {
	fn := g.ctx.fn.irFunc
	catchBlk := fn.NewBlock("rescue.landingpad")
	endBlk := fn.NewBlock("rescue.end")

	g.ctx.pushHandler(handlerFrame{node: n, catchBlock: catchBlk})

	var unionSlot value.Value
	resultIsUnion := n.Type != nil && n.Type.UnionQ()
	if resultIsUnion {
		unionSlot = g.Alloca(g.LLVMType(n.Type), "rescue.result")
	}
	var table []phiEntry

	protVal := g.emitNode(n.Protected)
	g.ctx.popHandler()
	if !blockTerminated(g.ctx.cur) {
		g.emitEnsure(n.Ensure)
		g.widenBranchResult(n.Type, n.Protected.Type, protVal, unionSlot, &table)
		g.ctx.cur.NewBr(endBlk)
	}

	g.ctx.cur = catchBlk
	lpType := irtypes.NewStruct(irtypes.NewPointer(irtypes.I8), irtypes.I32)
	lp := catchBlk.NewLandingPad(lpType, g.personalityClause())
	lp.SetName("exc")
	excVal := catchBlk.NewExtractValue(lp, 0)
	excTag := catchBlk.NewExtractValue(lp, 1)

	for i, rescue := range n.Rescues {
		rescBlk := fn.NewBlock("rescue.case" + strconv.Itoa(i))
		nextBlk := fn.NewBlock("rescue.next" + strconv.Itoa(i))

		var match value.Value
		for _, t := range rescue.Types {
			id := constant.NewInt(irtypes.I32, int64(t.TypeID()))
			eq := g.ctx.cur.NewICmp(enum.IPredEQ, excTag, id)
			if match == nil {
				match = eq
			} else {
				match = g.ctx.cur.NewOr(match, eq)
			}
		}
		g.ctx.cur.NewCondBr(match, rescBlk, nextBlk)

		g.ctx.cur = rescBlk
		if rescue.BindName != "" {
			slot := g.Alloca(irtypes.NewPointer(irtypes.I8), rescue.BindName+".addr")
			g.ctx.cur.NewStore(excVal, slot)
			g.ctx.vars[rescue.BindName] = &varBinding{Ptr: slot, Type: nil, TreatedAsPointer: true}
		}
		rescVal := g.emitNode(rescue.Body)
		if !blockTerminated(g.ctx.cur) {
			g.emitEnsure(n.Ensure)
			g.widenBranchResult(n.Type, rescue.Body.Type, rescVal, unionSlot, &table)
			g.ctx.cur.NewBr(endBlk)
		}

		g.ctx.cur = nextBlk
	}

	g.emitEnsure(n.Ensure)
	g.emitReraise(g.ctx.cur, excVal)

	g.ctx.cur = endBlk
	if len(table) == 0 && !resultIsUnion {
		endBlk.NewUnreachable()
		return nil
	}
	if resultIsUnion {
		return unionSlot
	}
	return g.buildPhi(endBlk, n.Type, table)
}

// emitEnsure evaluates the ensure clause, discarding its value, on every
// path out of the protected body — normal fall-through, a matched
// rescue, and the re-raise path all run it exactly once.
func (g *Codegen) emitEnsure(ensure *ast.Node) {
	if ensure == nil {
		return
	}
	g.emitNode(ensure)
}

// emitReraise hands excVal back to the unwinder via _Unwind_RaiseException
// and terminates the block with unreachable: the path taken when a
// rescue cascade's clauses all fail to match.
func (g *Codegen) emitReraise(b *ir.Block, excVal value.Value) {
	raise := g.runtimeFunc(unwindRaise)
	b.NewCall(raise, excVal)
	b.NewUnreachable()
}

// personalityClause builds the single catch-all clause every landingpad
// in this module shares: the personality function recognizes Nocturn's
// own exception type table, so every handler's landingpad looks the same
// at the LLVM level regardless of which rescue types it actually tests.
func (g *Codegen) personalityClause() []*ir.Clause {
	return []*ir.Clause{
		ir.NewClause(enum.LandingPadCatch, constant.NewNull(irtypes.NewPointer(irtypes.I8))),
	}
}
