package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
)

// runtimeSymbol names one of the externally linked C-ABI symbols the
// emitter calls by name: a pre-declared ir.Func with no body, resolved
// at link time against the language runtime. This package only ever
// declares these symbols; it never implements allocation or unwinding
// semantics itself.
type runtimeSymbol string

const (
	crystalMalloc      runtimeSymbol = "__crystal_malloc"
	crystalRealloc     runtimeSymbol = "__crystal_realloc"
	crystalPersonality runtimeSymbol = "__crystal_personality"
	unwindRaise        runtimeSymbol = "_Unwind_RaiseException"
)

// runtimeFunc returns the declared ir.Func for sym, declaring it lazily
// on first use. Every runtime symbol is declared `external` linkage;
// none are ever given a body.
func (g *Codegen) runtimeFunc(sym runtimeSymbol) *ir.Func {
	if fn, ok := g.runtimeFuncs[sym]; ok {
		return fn
	}
	var fn *ir.Func
	i8ptr := irtypes.NewPointer(irtypes.I8)
	switch sym {
	case crystalMalloc:
		fn = g.module.NewFunc(string(sym), i8ptr, ir.NewParam("size", irtypes.I32))
	case crystalRealloc:
		fn = g.module.NewFunc(string(sym), i8ptr,
			ir.NewParam("buf", i8ptr), ir.NewParam("size", irtypes.I32))
	case crystalPersonality:
		fn = g.module.NewFunc(string(sym), irtypes.I32)
		fn.Sig.Variadic = true
	case unwindRaise:
		fn = g.module.NewFunc(string(sym), i8ptr, ir.NewParam("exc", i8ptr))
	default:
		internalAssertion("runtimeFunc: unknown symbol %q", sym)
	}
	fn.Linkage = enum.LinkageExternal
	g.runtimeFuncs[sym] = fn
	return fn
}

// personalityFunc returns the personality function landingpads
// reference, declaring it on first use.
func (g *Codegen) personalityFunc() *ir.Func {
	return g.runtimeFunc(crystalPersonality)
}

// intrinsicMemset declares (once) the llvm.memset intrinsic that Memset
// calls. There is no intrinsic fallback for allocation: Malloc always
// calls the external __crystal_malloc.
func (g *Codegen) intrinsicMemset() *ir.Func {
	const name = "llvm.memset.p0i8.i64"
	if fn, ok := g.intrinsics[name]; ok {
		return fn
	}
	i8ptr := irtypes.NewPointer(irtypes.I8)
	fn := g.module.NewFunc(name, irtypes.Void,
		ir.NewParam("dst", i8ptr), ir.NewParam("val", irtypes.I8),
		ir.NewParam("len", irtypes.I64), ir.NewParam("isvolatile", irtypes.I1))
	g.intrinsics[name] = fn
	return fn
}
