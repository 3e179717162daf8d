package codegen

import (
	"strconv"

	"github.com/llir/llvm/ir"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// matchesReceiver tests whether recvVal (of static type recvType) is
// compatible with a dispatch candidate's owner. A nilable receiver has
// no {tag, value} struct to GEP into — it's represented as the bare
// pointer itself — so its match reduces to a null check rather than a
// tag load; anything else reads the tagged-union/hierarchy runtime tag
// and compares it the usual way.
func (g *Codegen) matchesReceiver(b *ir.Block, recvVal value.Value, recvType, owner *types.Type) value.Value {
	if recvType != nil && recvType.NilableQ() {
		return b.NewNot(g.NullPointerQ(b, recvVal))
	}
	tag := b.NewLoad(irtypes.I32, g.UnionTypeIDPtr(b, recvVal))
	return g.matchesTag(b, tag, owner)
}

// emitDispatch lowers a call with more than one resolved target: the
// receiver's runtime type tag selects which concrete def actually runs,
// with no vtable indirection — a straight-line cascade of tag compares,
// each guarding a synthetic single-target call into one candidate.
// Candidates are tried in the order the type checker resolved them;
// the cascade falls through to unreachable if the runtime tag matches
// none of them, which a sound type checker never lets happen.
func (g *Codegen) emitDispatch(n *ast.Node) value.Value {
	fn := g.ctx.fn.irFunc
	b := g.ctx.cur

	var recvVal value.Value
	var recvType *types.Type
	if n.Receiver != nil {
		recvVal = g.emitNode(n.Receiver)
		b = g.ctx.cur
		recvType = n.Receiver.Type
	}

	endBlk := fn.NewBlock("dispatch.end")
	var unionSlot value.Value
	resultIsUnion := n.Type != nil && n.Type.UnionQ()
	if resultIsUnion {
		unionSlot = g.Alloca(g.LLVMType(n.Type), "dispatch.result")
	}
	var table []phiEntry

	for i, def := range n.TargetDefs {
		caseBlk := fn.NewBlock("dispatch.case" + strconv.Itoa(i))
		nextBlk := fn.NewBlock("dispatch.next" + strconv.Itoa(i))

		match := g.matchesReceiver(b, recvVal, recvType, def.Owner)
		b.NewCondBr(match, caseBlk, nextBlk)

		g.ctx.cur = caseBlk
		synthetic := &ast.Node{
			Kind:       ast.Call,
			Type:       n.Type,
			Receiver:   n.Receiver,
			Args:       n.Args,
			TargetDefs: []*ast.Def{def},
		}
		v := g.emitMonomorphicCallRecv(synthetic, def, recvVal)
		if !blockTerminated(g.ctx.cur) {
			g.widenBranchResult(n.Type, def.ReturnType, v, unionSlot, &table)
			g.ctx.cur.NewBr(endBlk)
		}

		b = nextBlk
	}
	b.NewUnreachable()

	g.ctx.cur = endBlk
	if resultIsUnion {
		return unionSlot
	}
	return g.buildPhi(endBlk, n.Type, table)
}

