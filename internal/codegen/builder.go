package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Alloca emits an alloca for t into the current function's dedicated
// alloca block, regardless of the builder's current insertion point,
// then restores the previous position: every stack slot's defining
// instruction lives in the alloca block so it dominates every use no
// matter where in the function it's read.
func (g *Codegen) Alloca(t irtypes.Type, name string) *ir.InstAlloca {
	fn := g.ctx.fn
	a := fn.allocaBlock.NewAlloca(t)
	if name != "" {
		a.SetName(name)
	}
	return a
}

// Malloc allocates size bytes on the heap by calling the lazily
// declared external __crystal_malloc (see runtime.go), resolved
// against the language runtime at link time.
func (g *Codegen) Malloc(b *ir.Block, size value.Value) value.Value {
	fn := g.runtimeFunc(crystalMalloc)
	return b.NewCall(fn, size)
}

// Realloc grows/shrinks a previous Malloc allocation.
func (g *Codegen) Realloc(b *ir.Block, buf, size value.Value) value.Value {
	fn := g.runtimeFunc(crystalRealloc)
	return b.NewCall(fn, buf, size)
}

// Memset zero-initializes n bytes starting at ptr. Nothing in this
// package calls it, so memory returned by Malloc is not zeroed here.
func (g *Codegen) Memset(b *ir.Block, ptr value.Value, n int64) {
	memset := g.intrinsicMemset()
	i8ptr := b.NewBitCast(ptr, irtypes.NewPointer(irtypes.I8))
	b.NewCall(memset, i8ptr, constant.NewInt(irtypes.I8, 0), constant.NewInt(irtypes.I64, n), constant.NewInt(irtypes.I1, 0))
}

// GEP wraps a typed GetElementPtr over ptr with the given 0-based
// integer indices, all as i32 constants — the common case used
// throughout the emitter for struct field and array element access.
func (g *Codegen) GEP(b *ir.Block, elemType irtypes.Type, ptr value.Value, indices ...int64) value.Value {
	idxVals := make([]value.Value, len(indices))
	for i, idx := range indices {
		idxVals[i] = constant.NewInt(irtypes.I32, idx)
	}
	return b.NewGetElementPtr(elemType, ptr, idxVals...)
}
