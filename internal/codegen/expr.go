package codegen

import (
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// emitNode is the exhaustive case-analysis dispatcher over the closed
// Node.Kind set. It always emits into, and may advance, g.ctx.cur — the
// current insertion block, a single mutable cursor carried on the
// explicit per-compile emitCtx rather than a package-level global.
func (g *Codegen) emitNode(n *ast.Node) value.Value {
	switch n.Kind {
	case ast.Literal:
		return g.emitLiteral(n)
	case ast.VarRef:
		return g.emitVarRef(n)
	case ast.Assign:
		return g.emitAssign(n)
	case ast.If:
		return g.emitIf(n)
	case ast.While:
		return g.emitWhile(n)
	case ast.Return:
		return g.emitReturn(n)
	case ast.Break:
		return g.emitBreak(n)
	case ast.Yield:
		return g.emitYield(n)
	case ast.Call:
		return g.emitCall(n)
	case ast.BinaryPrimitive:
		return g.emitBinaryPrimitive(n)
	case ast.UnaryPrimitive:
		return g.emitUnaryPrimitive(n)
	case ast.PointerPrimitive:
		return g.emitPointerPrimitive(n)
	case ast.IsA:
		return g.emitIsA(n)
	case ast.ExceptionHandler:
		return g.emitExceptionHandler(n)
	case ast.SimpleOr:
		return g.emitSimpleOr(n)
	case ast.Expressions:
		return g.emitExpressions(n)
	case ast.Nop:
		return nil
	default:
		internalAssertion("emitNode: unclassified node kind %v", n.Kind)
		return nil
	}
}

func (g *Codegen) emitLiteral(n *ast.Node) value.Value {
	switch n.LitKind {
	case ast.LitNil:
		return constant.NewNull(irtypes.NewPointer(irtypes.I8))
	case ast.LitBool:
		return boolConst(n.BoolVal)
	case ast.LitNumber:
		return g.numberConst(n)
	case ast.LitChar:
		return charConst(n.CharVal)
	case ast.LitString:
		str := g.InternString(n.StringVal)
		return g.GEP(g.ctx.cur, str.ContentType, str, 0, 0)
	case ast.LitSymbol:
		g.InternSymbol(n.SymbolVal)
		// SymbolID is resolved against the finalized table; Generate
		// finalizes the table before any def body is emitted, so every
		// literal here already has a stable id.
		return constant.NewInt(irtypes.I32, int64(g.SymbolID(n.SymbolVal)))
	default:
		internalAssertion("emitLiteral: unclassified literal kind %v", n.LitKind)
		return nil
	}
}

func boolConst(v bool) constant.Constant {
	if v {
		return constant.NewInt(irtypes.I1, 1)
	}
	return constant.NewInt(irtypes.I1, 0)
}

func charConst(r rune) constant.Constant {
	return constant.NewInt(irtypes.I32, int64(r))
}

func (g *Codegen) numberConst(n *ast.Node) constant.Constant {
	switch n.NumberKind {
	case ast.F32:
		f, _ := strconv.ParseFloat(n.NumberText, 32)
		return constant.NewFloat(irtypes.Float, f)
	case ast.F64:
		f, _ := strconv.ParseFloat(n.NumberText, 64)
		return constant.NewFloat(irtypes.Double, f)
	default:
		i, _ := strconv.ParseInt(n.NumberText, 10, 64)
		return constant.NewInt(intType(numberBits(n.NumberKind)), i)
	}
}

func numberBits(k ast.NumberKind) int {
	switch k {
	case ast.I8, ast.U8:
		return 8
	case ast.I16, ast.U16:
		return 16
	case ast.I64, ast.U64:
		return 64
	default:
		return 32
	}
}

// emitVarRef reads a variable by kind: exact-type
// read loads the slot (unless treated-as-pointer, union or hierarchy); a nilable
// slot read at the nil alternative becomes a null-pointer test; a union
// slot read at a concrete arm bit-casts the value slot and loads
// (skipping the load for by-val structs). Instance/class/global/
// constant var kinds route through their own slot resolution.
func (g *Codegen) emitVarRef(n *ast.Node) value.Value {
	b := g.ctx.cur
	switch n.VarKind {
	case ast.LocalVar, ast.CastedVar:
		bind, ok := g.ctx.vars[n.Name]
		if !ok {
			internalAssertion("emitVarRef: undefined local %q", n.Name)
		}
		return g.readBinding(b, bind, n.Type)
	case ast.InstanceVar:
		self, ok := g.ctx.vars["self"]
		if !ok {
			internalAssertion("emitVarRef: instance var %q read with no self", n.Name)
		}
		return g.readInstanceVar(b, self, n.Name, n.Type)
	case ast.ClassVar, ast.GlobalVar:
		gv := g.classVarByName(n.Name)
		return g.readGlobalSlot(b, gv, n.Type)
	case ast.ConstantVar:
		def := g.constByName(n.Name)
		gv := g.globalConstant(def)
		return g.readGlobalSlot(b, gv, n.Type)
	default:
		internalAssertion("emitVarRef: unclassified var kind %v", n.VarKind)
		return nil
	}
}

// readBinding applies the coercion rules for a local/casted read.
func (g *Codegen) readBinding(b *ir.Block, bind *varBinding, want *types.Type) value.Value {
	switch {
	case bind.Type == want:
		if bind.TreatedAsPointer || want.UnionQ() || want.HierarchyQ() {
			return bind.Ptr
		}
		return b.NewLoad(g.LLVMType(want), bind.Ptr)
	case bind.Type.NilableQ() && want.NilTypeQ():
		loaded := b.NewLoad(g.pointeeType(bind.Ptr), bind.Ptr)
		return g.NullPointerQ(b, loaded)
	case bind.Type.UnionQ():
		valuePtr := g.UnionValuePtr(b, bind.Ptr)
		casted := b.NewBitCast(valuePtr, irtypes.NewPointer(g.LLVMType(want)))
		if want.PassedByVal() {
			return casted
		}
		return b.NewLoad(g.LLVMType(want), casted)
	default:
		if bind.TreatedAsPointer {
			return bind.Ptr
		}
		return b.NewLoad(g.LLVMType(bind.Type), bind.Ptr)
	}
}

func (g *Codegen) readGlobalSlot(b *ir.Block, gv *ir.Global, want *types.Type) value.Value {
	llt := gv.ContentType
	if want.UnionQ() {
		return gv
	}
	return b.NewLoad(llt, gv)
}

func (g *Codegen) readInstanceVar(b *ir.Block, self *varBinding, name string, want *types.Type) value.Value {
	owner := self.Type
	if owner.NilableQ() || owner.HierarchyQ() {
		owner = owner.NilableType()
	}
	idx := owner.IndexOfInstanceVar(name)
	if idx < 0 {
		internalAssertion("readInstanceVar: %q has no field %q", owner.Name, name)
	}
	fieldPtr := g.GEP(b, g.LLVMStructType(owner), self.Ptr, 0, int64(idx))
	return b.NewLoad(g.LLVMType(want), fieldPtr)
}

// emitAssign resolves the slot pointer by the target's variable kind,
// then AssignToUnion (which also subsumes the direct-store case)
// performs the actual store with whatever widening the type pair needs.
func (g *Codegen) emitAssign(n *ast.Node) value.Value {
	val := g.emitNode(n.Value)
	b := g.ctx.cur

	switch n.VarKind {
	case ast.InstanceVar:
		self := g.ctx.vars["self"]
		owner := self.Type
		if owner.NilableQ() || owner.HierarchyQ() {
			owner = owner.NilableType()
		}
		idx := owner.IndexOfInstanceVar(n.Name)
		fieldPtr := g.GEP(b, g.LLVMStructType(owner), self.Ptr, 0, int64(idx))
		fieldType, _ := owner.LookupInstanceVar(n.Name)
		g.AssignToUnion(b, fieldPtr, fieldType.Type, n.Value.Type, val)

	case ast.ClassVar, ast.GlobalVar:
		gv := g.classVarByName(n.Name)
		g.AssignToUnion(b, gv, g.classVarType(n.Name), n.Value.Type, val)

	default: // LocalVar
		bind, ok := g.ctx.vars[n.Name]
		if !ok {
			slot := g.Alloca(g.LLVMType(n.Value.Type), n.Name+".addr")
			bind = &varBinding{Ptr: slot, Type: n.Value.Type}
			g.ctx.vars[n.Name] = bind
		}
		g.AssignToUnion(b, bind.Ptr, bind.Type, n.Value.Type, val)
	}
	return val
}

// emitIf pre-allocates a union slot only when
// the result type is itself a union, emits then/else into fresh blocks,
// widen a bare nil literal to the nilable pointer type when the if's
// static type is nilable, and assemble the result with a phi (or the
// union slot) over whichever branches actually fall through.
func (g *Codegen) emitIf(n *ast.Node) value.Value {
	fn := g.ctx.fn.irFunc
	thenBlk := fn.NewBlock("if.then")
	var elseBlk *ir.Block
	endBlk := fn.NewBlock("if.end")
	if n.Else != nil {
		elseBlk = fn.NewBlock("if.else")
	} else {
		elseBlk = endBlk
	}

	cond := g.codegenCond(n.Cond)
	g.ctx.cur.NewCondBr(cond, thenBlk, elseBlk)

	var unionSlot value.Value
	resultIsUnion := n.Type != nil && n.Type.UnionQ()
	if resultIsUnion {
		unionSlot = g.Alloca(g.LLVMType(n.Type), "if.result")
	}
	var table []phiEntry

	g.ctx.cur = thenBlk
	thenVal := g.emitNode(n.Then)
	if !blockTerminated(g.ctx.cur) {
		g.widenBranchResult(n.Type, n.Then.Type, thenVal, unionSlot, &table)
		g.ctx.cur.NewBr(endBlk)
	}

	if n.Else != nil {
		g.ctx.cur = elseBlk
		elseVal := g.emitNode(n.Else)
		if !blockTerminated(g.ctx.cur) {
			g.widenBranchResult(n.Type, n.Else.Type, elseVal, unionSlot, &table)
			g.ctx.cur.NewBr(endBlk)
		}
	}

	g.ctx.cur = endBlk
	if len(table) == 0 && !resultIsUnion {
		// Both branches diverged: this if provably never produces a
		// value here.
		endBlk.NewUnreachable()
		return nil
	}
	if resultIsUnion {
		return unionSlot
	}
	return g.buildPhi(endBlk, n.Type, table)
}

// widenBranchResult records one branch's contribution to the if's
// result, either into the shared union slot or the phi table, widening
// a bare nil to the nilable pointer type first when needed.
func (g *Codegen) widenBranchResult(resultType, branchType *types.Type, v value.Value, unionSlot value.Value, table *[]phiEntry) {
	if resultType == nil {
		return
	}
	if unionSlot != nil {
		g.AssignToUnion(g.ctx.cur, unionSlot, resultType, branchType, v)
		return
	}
	if resultType.NilableQ() && branchType.NilTypeQ() {
		v = constant.NewNull(g.LLVMType(resultType).(*irtypes.PointerType))
	}
	*table = append(*table, phiEntry{v, g.ctx.cur})
}

func (g *Codegen) buildPhi(b *ir.Block, t *types.Type, table []phiEntry) value.Value {
	if t == nil || len(table) == 0 {
		return nil
	}
	if len(table) == 1 {
		return table[0].Value
	}
	incs := make([]*ir.Incoming, len(table))
	for i, e := range table {
		incs[i] = ir.NewIncoming(e.Value, e.Block)
	}
	return b.NewPhi(incs...)
}

func blockTerminated(b *ir.Block) bool {
	return b.Term != nil
}

// emitWhile builds fresh cond/body/exit blocks;
// run_once starts in body (do/while), break/continue state is saved and
// scoped to this loop so a break inside the body targets this loop's
// exit, and an unreachable is emitted at the end if the loop provably
// never falls through normally.
func (g *Codegen) emitWhile(n *ast.Node) value.Value {
	fn := g.ctx.fn.irFunc
	condBlk := fn.NewBlock("while.cond")
	bodyBlk := fn.NewBlock("while.body")
	exitBlk := fn.NewBlock("while.exit")

	if n.RunOnce {
		g.ctx.cur.NewBr(bodyBlk)
	} else {
		g.ctx.cur.NewBr(condBlk)
	}

	g.ctx.cur = condBlk
	cond := g.codegenCond(n.Cond)
	condBlk.NewCondBr(cond, bodyBlk, exitBlk)

	savedBreak := g.ctx.saveBreak()
	g.ctx.breakBlock = exitBlk
	g.ctx.breakTable = nil
	g.ctx.breakType = n.Type
	g.ctx.breakUnion = nil

	g.ctx.cur = bodyBlk
	g.emitNode(n.Body)
	if !blockTerminated(g.ctx.cur) {
		g.ctx.cur.NewBr(condBlk)
	}

	table := g.ctx.breakTable
	g.ctx.restoreBreak(savedBreak)

	g.ctx.cur = exitBlk
	if len(exitBlk.Preds()) == 0 {
		exitBlk.NewUnreachable()
		return nil
	}
	return g.buildPhi(exitBlk, n.Type, table)
}

// codegenCond produces an i1 from v, switching on v's static type.
func (g *Codegen) codegenCond(n *ast.Node) value.Value {
	b := g.ctx.cur
	v := g.emitNode(n)
	t := n.Type
	switch {
	case t.NilTypeQ():
		return boolConst(false)
	case t.Kind == types.Bool:
		return v
	case t.NilableQ():
		return b.NewNot(g.NullPointerQ(b, v))
	case t.HierarchyQ():
		return boolConst(true)
	case t.Kind == types.Pointer:
		return b.NewNot(g.NullPointerQ(b, v))
	case t.UnionQ():
		return g.codegenUnionCond(b, v, t)
	default:
		return boolConst(true)
	}
}

// codegenUnionCond: a union value is falsy only if its tag is Nil, or
// its tag is Bool and the boxed value is false; anything else is truthy.
func (g *Codegen) codegenUnionCond(b *ir.Block, slot value.Value, t *types.Type) value.Value {
	tag := b.NewLoad(irtypes.I32, g.UnionTypeIDPtr(b, slot))
	nilID := constant.NewInt(irtypes.I32, int64(g.reg.Nil().TypeID()))
	boolID := constant.NewInt(irtypes.I32, int64(g.reg.Bool().TypeID()))
	isNil := b.NewICmp(enum.IPredEQ, tag, nilID)
	isBool := b.NewICmp(enum.IPredEQ, tag, boolID)

	valuePtr := g.UnionValuePtr(b, slot)
	boolPtr := b.NewBitCast(valuePtr, irtypes.NewPointer(irtypes.I1))
	boolVal := b.NewLoad(irtypes.I1, boolPtr)
	falseBool := b.NewAnd(isBool, b.NewNot(boolVal))

	falsy := b.NewOr(isNil, falseBool)
	return b.NewNot(falsy)
}

func (g *Codegen) emitReturn(n *ast.Node) value.Value {
	b := g.ctx.cur
	var v value.Value
	var vt *types.Type
	if n.Value != nil {
		v = g.emitNode(n.Value)
		vt = n.Value.Type
	}
	if g.ctx.returnUnion != nil {
		if v != nil {
			g.AssignToUnion(b, g.ctx.returnUnion, g.ctx.returnType, vt, v)
		}
	} else if v != nil {
		g.ctx.addReturnEntry(v, b)
	}
	b.NewBr(g.ctx.returnBlock)
	return nil
}

func (g *Codegen) emitBreak(n *ast.Node) value.Value {
	b := g.ctx.cur
	var v value.Value
	var vt *types.Type
	if n.Value != nil {
		v = g.emitNode(n.Value)
		vt = n.Value.Type
	}
	if g.ctx.breakUnion != nil {
		if v != nil {
			g.AssignToUnion(b, g.ctx.breakUnion, g.ctx.breakType, vt, v)
		}
	} else if v != nil {
		g.ctx.addBreakEntry(v, b)
	}
	b.NewBr(g.ctx.breakBlock)
	return nil
}

func (g *Codegen) emitIsA(n *ast.Node) value.Value {
	b := g.ctx.cur
	subjVal := g.emitNode(n.Subject)
	st := n.Subject.Type
	want := n.CheckType

	switch {
	case st.UnionQ() || st.HierarchyQ():
		tag := b.NewLoad(irtypes.I32, g.UnionTypeIDPtr(b, subjVal))
		return g.matchesTag(b, tag, want)
	case st.NilableQ():
		isNull := g.NullPointerQ(b, subjVal)
		if want.NilTypeQ() {
			return isNull
		}
		return b.NewNot(isNull)
	default:
		return boolConst(st == want || st.Implements(want))
	}
}

// matchesTag builds the disjunction-over-concrete-ids test a dynamic tag
// must satisfy to match want, expanding unions/hierarchies into their
// concrete members (shared with dispatch.go's candidate matching).
func (g *Codegen) matchesTag(b *ir.Block, tag value.Value, want *types.Type) value.Value {
	concretes := want.ConcreteTypes()
	var acc value.Value
	for _, c := range concretes {
		id := constant.NewInt(irtypes.I32, int64(c.TypeID()))
		eq := b.NewICmp(enum.IPredEQ, tag, id)
		if acc == nil {
			acc = eq
		} else {
			acc = b.NewOr(acc, eq)
		}
	}
	if acc == nil {
		return boolConst(false)
	}
	return acc
}

func (g *Codegen) emitSimpleOr(n *ast.Node) value.Value {
	// `x || y`: yields x if truthy/non-nil, else y. Lowered with the same
	// if/phi machinery as a real If so union results widen identically.
	synthetic := &ast.Node{
		Kind: ast.If,
		Type: n.Type,
		Cond: n.Left,
		Then: n.Left,
		Else: n.Right,
	}
	return g.emitIf(synthetic)
}

func (g *Codegen) emitExpressions(n *ast.Node) value.Value {
	var last value.Value
	for _, c := range n.Children {
		last = g.emitNode(c)
		if blockTerminated(g.ctx.cur) {
			return last
		}
	}
	return last
}

func (g *Codegen) emitBinaryPrimitive(n *ast.Node) value.Value {
	b := g.ctx.cur
	l := g.emitNode(n.Left)
	r := g.emitNode(n.Right)
	switch n.Op {
	case ast.BinAdd:
		return b.NewAdd(l, r)
	case ast.BinSub:
		return b.NewSub(l, r)
	case ast.BinMul:
		return b.NewMul(l, r)
	case ast.BinSDiv:
		return b.NewSDiv(l, r)
	case ast.BinUDiv:
		return b.NewUDiv(l, r)
	case ast.BinSRem:
		return b.NewSRem(l, r)
	case ast.BinURem:
		return b.NewURem(l, r)
	case ast.BinFAdd:
		return b.NewFAdd(l, r)
	case ast.BinFSub:
		return b.NewFSub(l, r)
	case ast.BinFMul:
		return b.NewFMul(l, r)
	case ast.BinFDiv:
		return b.NewFDiv(l, r)
	case ast.BinAnd:
		return b.NewAnd(l, r)
	case ast.BinOr:
		return b.NewOr(l, r)
	case ast.BinXor:
		return b.NewXor(l, r)
	case ast.BinShl:
		return b.NewShl(l, r)
	case ast.BinLShr:
		return b.NewLShr(l, r)
	case ast.BinAShr:
		return b.NewAShr(l, r)
	case ast.BinICmpEq:
		return b.NewICmp(enum.IPredEQ, l, r)
	case ast.BinICmpNe:
		return b.NewICmp(enum.IPredNE, l, r)
	case ast.BinICmpSLt:
		return b.NewICmp(enum.IPredSLT, l, r)
	case ast.BinICmpSLe:
		return b.NewICmp(enum.IPredSLE, l, r)
	case ast.BinICmpSGt:
		return b.NewICmp(enum.IPredSGT, l, r)
	case ast.BinICmpSGe:
		return b.NewICmp(enum.IPredSGE, l, r)
	case ast.BinFCmpEq:
		return b.NewFCmp(enum.FPredOEQ, l, r)
	case ast.BinFCmpNe:
		return b.NewFCmp(enum.FPredONE, l, r)
	case ast.BinFCmpLt:
		return b.NewFCmp(enum.FPredOLT, l, r)
	case ast.BinFCmpLe:
		return b.NewFCmp(enum.FPredOLE, l, r)
	case ast.BinFCmpGt:
		return b.NewFCmp(enum.FPredOGT, l, r)
	case ast.BinFCmpGe:
		return b.NewFCmp(enum.FPredOGE, l, r)
	default:
		internalAssertion("emitBinaryPrimitive: unclassified op %v", n.Op)
		return nil
	}
}

func (g *Codegen) emitUnaryPrimitive(n *ast.Node) value.Value {
	b := g.ctx.cur
	v := g.emitNode(n.Subject)
	switch n.UOp {
	case ast.UnNeg:
		return b.NewSub(constant.NewInt(v.Type().(*irtypes.IntType), 0), v)
	case ast.UnFNeg:
		return b.NewFNeg(v)
	case ast.UnNot:
		return b.NewXor(v, constant.NewInt(irtypes.I1, 1))
	case ast.UnBitNot:
		allOnes := constant.NewInt(v.Type().(*irtypes.IntType), -1)
		return b.NewXor(v, allOnes)
	default:
		internalAssertion("emitUnaryPrimitive: unclassified op %v", n.UOp)
		return nil
	}
}

func (g *Codegen) emitPointerPrimitive(n *ast.Node) value.Value {
	b := g.ctx.cur
	switch n.PtrOp {
	case ast.PointerNull:
		return constant.NewNull(irtypes.NewPointer(g.LLVMType(n.Type.Inner)))
	case ast.PointerNew:
		inner := n.Type.Inner
		size := constant.NewInt(irtypes.I32, int64(inner.LLVMSize()))
		raw := g.Malloc(b, size)
		return b.NewBitCast(raw, irtypes.NewPointer(g.LLVMType(inner)))
	case ast.PointerGet:
		p := g.emitNode(n.PtrOperand)
		return b.NewLoad(g.pointeeType(p), p)
	case ast.PointerSet:
		p := g.emitNode(n.PtrOperand)
		val := g.emitNode(n.PtrValue)
		b.NewStore(val, p)
		return val
	case ast.PointerAdd:
		p := g.emitNode(n.PtrOperand)
		off := g.emitNode(n.PtrOffset)
		return b.NewGetElementPtr(g.pointeeType(p), p, off)
	case ast.PointerAddress:
		bind, ok := g.ctx.vars[n.PtrOperand.Name]
		if !ok {
			internalAssertion("emitPointerPrimitive: address-of undefined local %q", n.PtrOperand.Name)
		}
		return bind.Ptr
	default:
		internalAssertion("emitPointerPrimitive: unclassified op %v", n.PtrOp)
		return nil
	}
}
