package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/nocturn-lang/noctc/internal/types"
)

// UnionTypeIDPtr returns a pointer to the tag field of a tagged-union
// slot: GEP p,0,0.
func (g *Codegen) UnionTypeIDPtr(b *ir.Block, p value.Value) value.Value {
	return b.NewGetElementPtr(g.pointeeType(p), p, zero32, zero32)
}

// UnionValuePtr returns a pointer to the payload field of a tagged-union
// slot: GEP p,0,1.
func (g *Codegen) UnionValuePtr(b *ir.Block, p value.Value) value.Value {
	return b.NewGetElementPtr(g.pointeeType(p), p, zero32, one32)
}

func (g *Codegen) pointeeType(p value.Value) irtypes.Type {
	pt, ok := p.Type().(*irtypes.PointerType)
	if !ok {
		internalAssertion("pointeeType: %v is not a pointer", p)
	}
	return pt.ElemType
}

var zero32 = constant.NewInt(irtypes.I32, 0)
var one32 = constant.NewInt(irtypes.I32, 1)

// AssignToUnion stores src (of srcType) into dst (a slot of dstType),
// widening as needed. dstType is one of Union, Nilable, Hierarchy, Class,
// or a primitive — AssignToUnion also covers the direct-store case so
// every local assign/out-argument copy can go through one function.
func (g *Codegen) AssignToUnion(b *ir.Block, dst value.Value, dstType, srcType *types.Type, src value.Value) {
	switch {
	case dstType.NilableQ():
		g.assignToNilable(b, dst, srcType, src)
	case srcType.UnionQ() && dstType == srcType:
		// Union-to-union copy of the same shape: load through the
		// source pointer and store verbatim.
		loaded := b.NewLoad(g.pointeeType(src), src)
		b.NewStore(loaded, dst)
	case srcType.NilableQ():
		g.assignNilableIntoUnion(b, dst, srcType, src)
	case dstType.UnionQ() || dstType.HierarchyQ():
		g.assignConcreteIntoUnion(b, dst, srcType, src)
	default:
		b.NewStore(g.coerceToStoreValue(b, dstType, srcType, src), dst)
	}
}

// assignToNilable stores src into a Nilable dst slot. An integer source
// is int-to-ptr'd and any other pointer type (including the null i8*
// that emitLiteral produces for a nil literal) is bit-cast, so the
// store types line up.
func (g *Codegen) assignToNilable(b *ir.Block, dst value.Value, srcType *types.Type, src value.Value) {
	ptrType := g.pointeeType(dst)
	if _, isInt := src.Type().(*irtypes.IntType); isInt {
		src = b.NewIntToPtr(src, ptrType)
	} else if src.Type() != ptrType {
		src = b.NewBitCast(src, ptrType)
	}
	b.NewStore(src, dst)
}

// assignNilableIntoUnion widens a nilable source into a union/hierarchy
// destination: the tag becomes Nil's type_id when the pointer is null,
// else the nilable's carrier type_id.
func (g *Codegen) assignNilableIntoUnion(b *ir.Block, dst value.Value, srcType *types.Type, src value.Value) {
	isNull := g.NullPointerQ(b, src)
	nilID := constant.NewInt(irtypes.I32, int64(g.reg.Nil().TypeID()))
	carrierID := constant.NewInt(irtypes.I32, int64(srcType.NilableType().TypeID()))
	tag := b.NewSelect(isNull, nilID, carrierID)
	b.NewStore(tag, g.UnionTypeIDPtr(b, dst))
	valuePtr := g.UnionValuePtr(b, dst)
	casted := b.NewBitCast(valuePtr, src.Type())
	b.NewStore(src, casted)
}

// assignConcreteIntoUnion stores src.type_id as the tag and bit-casts the
// value slot to src's own pointer shape before storing.
func (g *Codegen) assignConcreteIntoUnion(b *ir.Block, dst value.Value, srcType *types.Type, src value.Value) {
	tag := constant.NewInt(irtypes.I32, int64(srcType.TypeID()))
	b.NewStore(tag, g.UnionTypeIDPtr(b, dst))
	valuePtr := g.UnionValuePtr(b, dst)
	storeTy := irtypes.NewPointer(src.Type())
	casted := b.NewBitCast(valuePtr, storeTy)
	b.NewStore(src, casted)
}

// coerceToStoreValue adapts src to dstType's lowered shape for a direct
// (non-union) store: a bit-cast between pointer-shaped types of
// different static Nocturn types, or src verbatim when already the right
// shape.
func (g *Codegen) coerceToStoreValue(b *ir.Block, dstType, srcType *types.Type, src value.Value) value.Value {
	want := g.LLVMType(dstType)
	if src.Type() == want {
		return src
	}
	if _, ok := want.(*irtypes.PointerType); ok {
		return b.NewBitCast(src, want)
	}
	return src
}

// NullPointerQ reports ptr-to-int(v) == 0, used for nilable truthiness
// and nil-ness tests throughout the emitter.
func (g *Codegen) NullPointerQ(b *ir.Block, v value.Value) value.Value {
	asInt := b.NewPtrToInt(v, irtypes.I64)
	return b.NewICmp(enum.IPredEQ, asInt, constant.NewInt(irtypes.I64, 0))
}
