// Package codegen lowers a fully typed Program into an LLVM IR module
// built with github.com/llir/llvm, covering tagged-union representation,
// hierarchy dispatch, iterator blocks, Itanium-style exception handling,
// deferred constant initialization, and call monomorphization.
package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// Codegen holds every piece of mutable state threaded through one
// compile: the module under construction, the type oracle that resolved
// the input AST, and the caches that give monomorphization, string/symbol
// interning, and deferred constant initialization their identity
// guarantees.
type Codegen struct {
	module *ir.Module
	reg    *types.Registry
	prog   *ast.Program

	llvmTypes       map[*types.Type]irtypes.Type
	llvmStructTypes map[*types.Type]*irtypes.StructType
	stringType      *irtypes.StructType

	interned    *internTable
	symbolTable *ir.Global

	runtimeFuncs map[runtimeSymbol]*ir.Func
	intrinsics   map[string]*ir.Func

	constGlobals    map[*ast.ConstantDef]*ir.Global
	classVarGlobals map[*ast.ClassVarDef]*ir.Global
	consts          *constChain

	funcs    map[string]*ir.Func
	mainFunc *ir.Func
	// mainFuncState is __crystal_main's funcState, created as soon as
	// mainFunc is declared rather than when its body is generated, so
	// every def materialized before the entry point (and any constant
	// initializer spliced in along the way) has a stable alloca/entry
	// pair to target.
	mainFuncState *funcState

	ctx *emitCtx

	classVarsByName map[string]*ast.ClassVarDef
	constsByName    map[string]*ast.ConstantDef

	// DebugInfo enables compile-unit/subprogram metadata emission
	// (debuginfo.go). Off by default: most callers only need the bitcode.
	DebugInfo bool
	// SkipVerify disables the structural verifier Generate otherwise runs
	// after emission (verify.go).
	SkipVerify bool

	debugCompileUnit bool
}

// NewCodegen builds a Codegen ready to emit prog's definitions against
// reg's resolved types. Call Generate to produce the module.
func NewCodegen(prog *ast.Program, reg *types.Registry) *Codegen {
	g := &Codegen{
		module:          ir.NewModule(),
		reg:             reg,
		prog:            prog,
		llvmTypes:       make(map[*types.Type]irtypes.Type),
		llvmStructTypes: make(map[*types.Type]*irtypes.StructType),
		interned:        newInternTable(),
		runtimeFuncs:    make(map[runtimeSymbol]*ir.Func),
		intrinsics:      make(map[string]*ir.Func),
		constGlobals:    make(map[*ast.ConstantDef]*ir.Global),
		classVarGlobals: make(map[*ast.ClassVarDef]*ir.Global),
		consts:          &constChain{},
		funcs:           make(map[string]*ir.Func),
		classVarsByName: make(map[string]*ast.ClassVarDef),
		constsByName:    make(map[string]*ast.ConstantDef),
	}
	for _, cv := range prog.ClassVars {
		g.classVarsByName[cv.Owner.Name+"."+cv.Name] = cv
	}
	for _, c := range prog.Constants {
		g.constsByName[c.Name] = c
	}
	return g
}

func (g *Codegen) classVarDefByName(name string) *ast.ClassVarDef {
	if cv, ok := g.classVarsByName[name]; ok {
		return cv
	}
	internalAssertion("classVarDefByName: no class var registered for %q", name)
	return nil
}

func (g *Codegen) classVarByName(name string) *ir.Global {
	return g.globalClassVar(g.classVarDefByName(name))
}

func (g *Codegen) classVarType(name string) *types.Type {
	return g.classVarDefByName(name).Type
}

func (g *Codegen) constByName(name string) *ast.ConstantDef {
	if c, ok := g.constsByName[name]; ok {
		return c
	}
	internalAssertion("constByName: no constant registered for %q", name)
	return nil
}

// Generate lowers the whole program into an *ir.Module. Every internal
// invariant violation surfaces as a panic inside the emitter; Generate is
// the single recover point, turning that panic into a *CodegenError that
// carries whatever module had been built so far.
func (g *Codegen) Generate() (mod *ir.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			cerr := &CodegenError{Module: g.module, Partial: true}
			if e, ok := r.(error); ok {
				cerr.Err = e
			} else {
				cerr.Err = errors.Errorf("%v", r)
			}
			mod = nil
			err = cerr
		}
	}()

	g.collectSymbols()
	g.FinalizeSymbolTable()

	entryDef := g.declareEntryPoint()

	for _, def := range g.prog.Defs {
		if def.Owner == nil {
			g.MaterializeFunc(def, nil)
		}
	}

	g.generateFuncBody(g.mainFunc, entryDef, nil)

	if !g.atEndInvariant() {
		internalAssertion("Generate: emission finished with unbalanced handler/block stacks")
	}

	if !g.SkipVerify {
		if verr := g.Verify(g.module); verr != nil {
			return g.module, &CodegenError{Err: verr, Module: g.module, Verify: true}
		}
	}

	return g.module, nil
}

func (g *Codegen) atEndInvariant() bool {
	if g.ctx == nil {
		return true
	}
	return g.ctx.atEnd()
}

// collectSymbols walks every literal in the program up front so every
// symbol has a stable id before any def body is emitted (symbol ids
// depend on the complete set, sorted; see intern.go).
func (g *Codegen) collectSymbols() {
	walk := func(n *ast.Node) {}
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Kind == ast.Literal && n.LitKind == ast.LitSymbol {
			g.InternSymbol(n.SymbolVal)
		}
		for _, c := range []*ast.Node{n.Target, n.Value, n.Cond, n.Then, n.Else, n.Body,
			n.Receiver, n.PtrOperand, n.PtrOffset, n.PtrValue, n.Subject, n.Protected,
			n.Ensure, n.Left, n.Right, n.MacroResult} {
			walk(c)
		}
		for _, c := range n.Args {
			walk(c)
		}
		for _, c := range n.Children {
			walk(c)
		}
		for _, c := range n.YieldArgs {
			walk(c)
		}
		if n.Block != nil {
			walk(n.Block.Body)
		}
		for _, r := range n.Rescues {
			walk(r.Body)
		}
	}
	for _, def := range g.prog.Defs {
		walk(def.Body)
	}
	for _, c := range g.prog.Constants {
		walk(c.Init)
	}
	for _, cv := range g.prog.ClassVars {
		walk(cv.Init)
	}
	walk(g.prog.EntryBody)
}

// declareEntryPoint declares (but does not yet generate the body of) the
// program's single entry point, named __crystal_main, wrapping EntryBody
// the same way any other def's body is wrapped. It runs before any other
// def's body is generated so that g.mainFunc already exists by the time a
// top-level def's body first references a deferred constant or class
// var — the const-init chain (constants.go) always splices into this
// function's alloca/entry blocks, never into whichever function happened
// to be emitting when a constant was first touched.
func (g *Codegen) declareEntryPoint() *ast.Def {
	entryDef := &ast.Def{
		Name:       "__crystal_main",
		ReturnType: g.prog.EntryType,
		Body:       g.prog.EntryBody,
	}
	fn := g.declareFunc("__crystal_main", entryDef, nil)
	fn.Linkage = enum.LinkageExternal
	g.mainFunc = fn
	g.funcs["__crystal_main"] = fn

	fs := &funcState{def: entryDef, irFunc: fn}
	fs.allocaBlock = fn.NewBlock("alloca")
	fs.entryBlock = fn.NewBlock("entry")
	g.mainFuncState = fs

	return entryDef
}
