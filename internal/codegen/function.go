package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// MaterializeFunc returns the IR function for def specialized to owner,
// creating and (for a non-external def) generating its body on first
// reference. Every later call with the same (def, owner) pair returns
// the identical *ir.Func, because the lookup key IS the mangled name.
func (g *Codegen) MaterializeFunc(def *ast.Def, owner *types.Type) *ir.Func {
	name := MangledName(def, owner)
	if fn, ok := g.funcs[name]; ok {
		return fn
	}
	fn := g.declareFunc(name, def, owner)
	g.funcs[name] = fn
	if !def.External {
		g.generateFuncBody(fn, def, owner)
	}
	return fn
}

// declareFunc builds the signature: void return for a void-typed def,
// self prepended when the owner is passed as self, internal linkage
// unless external. By-value struct parameters and a diverging def's
// return both get their ABI shape from LLVMArgType/terminateReturnBlock
// (pointer-shaped argument, unreachable-terminated ret block); no
// explicit byval/noreturn IR attribute is attached since caller and
// callee both come from this same generator and already agree on the
// shape without one.
func (g *Codegen) declareFunc(name string, def *ast.Def, owner *types.Type) *ir.Func {
	retType := irtypes.Type(irtypes.Void)
	if def.ReturnType != nil && def.ReturnType.Kind != types.Void {
		retType = g.LLVMType(def.ReturnType)
	}

	var params []*ir.Param
	if owner != nil && owner.PassedAsSelf() {
		params = append(params, ir.NewParam("self", g.LLVMType(owner)))
	}
	for _, p := range def.Args {
		param := ir.NewParam(p.Name, g.LLVMArgType(p.Type))
		params = append(params, param)
	}

	fn := g.module.NewFunc(name, retType, params...)
	if def.External {
		fn.Linkage = enum.LinkageExternal
	} else {
		fn.Linkage = enum.LinkageInternal
	}
	g.emitDebugInfo(def, name)
	return fn
}

// generateFuncBody emits a fresh function body: fresh alloca/entry
// blocks, parameters bound by address unless they already arrive as a
// pointer, a terminator chosen by the def's return shape, and
// restoration of the caller's emission state on the way out.
func (g *Codegen) generateFuncBody(fn *ir.Func, def *ast.Def, owner *types.Type) {
	savedCtx := g.ctx
	var fs *funcState
	if fn == g.mainFunc {
		// __crystal_main's alloca/entry pair was already created by
		// declareEntryPoint, before any other def's body (and so before
		// any constant a def's body might reference got spliced in).
		fs = g.mainFuncState
		fs.def = def
		fs.owner = owner
		fs.noReturn = def.NoReturn
	} else {
		fs = &funcState{def: def, irFunc: fn, owner: owner, noReturn: def.NoReturn}
		fs.allocaBlock = fn.NewBlock("alloca")
		fs.entryBlock = fn.NewBlock("entry")
	}

	g.ctx = newEmitCtx()
	g.ctx.fn = fs
	g.ctx.cur = fs.entryBlock
	fn.Personality = g.personalityFunc()

	argOffset := 0
	if owner != nil && owner.PassedAsSelf() {
		g.bindParam(fs, "self", owner, fn.Params[0], true)
		argOffset = 1
	}
	for i, p := range def.Args {
		g.bindParam(fs, p.Name, p.Type, fn.Params[i+argOffset], p.ByVal || p.Type.PassedByVal())
	}

	retBlk := fn.NewBlock("ret")
	g.ctx.returnBlock = retBlk
	if def.ReturnType != nil && def.ReturnType.UnionQ() {
		g.ctx.returnUnion = g.Alloca(g.LLVMType(def.ReturnType), "ret.slot")
	}
	g.ctx.returnType = def.ReturnType

	lastVal := g.emitNode(def.Body)
	if !blockTerminated(g.ctx.cur) {
		if lastVal != nil && def.Body.Type != nil {
			g.ctx.addReturnEntry(lastVal, g.ctx.cur)
		}
		g.ctx.cur.NewBr(retBlk)
	}

	g.terminateReturnBlock(retBlk, def, fs)

	if fn == g.mainFunc {
		g.wireConstChain(fs)
	} else {
		fs.allocaBlock.NewBr(fs.entryBlock)
	}

	g.ctx = savedCtx
}

func (g *Codegen) bindParam(fs *funcState, name string, t *types.Type, irParam *ir.Param, treatAsPointer bool) {
	if treatAsPointer {
		g.ctx.vars[name] = &varBinding{Ptr: irParam, Type: t, TreatedAsPointer: true}
		return
	}
	slot := g.Alloca(irParam.Type(), name+".addr")
	g.ctx.cur.NewStore(irParam, slot)
	g.ctx.vars[name] = &varBinding{Ptr: slot, Type: t}
}

// terminateReturnBlock picks the ret-block terminator: ret void for a
// void external, unreachable for a provably non-returning body, a
// union-return load, a nilable-from-nil null return, or the ordinary
// phi-assembled value.
func (g *Codegen) terminateReturnBlock(retBlk *ir.Block, def *ast.Def, fs *funcState) {
	switch {
	case def.NoReturn:
		retBlk.NewUnreachable()
	case def.ReturnType == nil || def.ReturnType.Kind == types.Void:
		retBlk.NewRet(nil)
	case def.ReturnType.UnionQ():
		retBlk.NewRet(retBlk.NewLoad(g.LLVMType(def.ReturnType), g.ctx.returnUnion))
	case def.ReturnType.NilableQ() && def.Body != nil && def.Body.Type != nil && def.Body.Type.NilTypeQ():
		retBlk.NewRet(constant.NewNull(g.LLVMType(def.ReturnType).(*irtypes.PointerType)))
	default:
		v := g.buildPhi(retBlk, def.ReturnType, g.ctx.returnTable)
		if v == nil {
			retBlk.NewUnreachable()
			return
		}
		retBlk.NewRet(v)
	}
}
