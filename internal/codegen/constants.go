package codegen

import (
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"

	"github.com/nocturn-lang/noctc/internal/ast"
)

// constChain is the deferred-initialization prelude: a sequence of
// blocks spliced before __crystal_main's entry block, one per constant
// whose initializer is not itself a compile-time constant.
type constChain struct {
	head    *ir.Block
	tail    *ir.Block
	counter int
}

// globalConstant returns the lazily materialized global for def,
// creating and scheduling its initializer on first reference. Every
// later reference to the same constant returns the same global.
func (g *Codegen) globalConstant(def *ast.ConstantDef) *ir.Global {
	if gv, ok := g.constGlobals[def]; ok {
		return gv
	}
	llt := g.LLVMType(def.Type)
	gv := g.module.NewGlobalDef("const."+def.Name, constant.NewZeroInitializer(llt))
	g.constGlobals[def] = gv

	if isConstExprNode(def.Init) {
		cv := g.constFoldLiteral(def.Init)
		if cv != nil {
			gv.Init = cv
			gv.Immutable = true
			return gv
		}
	}

	g.spliceConstInit(func(b *ir.Block) {
		v := g.emitNode(def.Init)
		g.AssignToUnion(b, gv, def.Type, def.Init.Type, v)
	})
	return gv
}

// globalClassVar is the writable counterpart of globalConstant: a
// per-class mutable global, zero-initialized when Init is nil, otherwise
// run through the same deferred-init splice.
func (g *Codegen) globalClassVar(cv *ast.ClassVarDef) *ir.Global {
	if gv, ok := g.classVarGlobals[cv]; ok {
		return gv
	}
	llt := g.LLVMType(cv.Type)
	name := "classvar." + cv.Owner.Name + "." + cv.Name
	gv := g.module.NewGlobalDef(name, constant.NewZeroInitializer(llt))
	g.classVarGlobals[cv] = gv

	if cv.Init != nil {
		g.spliceConstInit(func(b *ir.Block) {
			v := g.emitNode(cv.Init)
			g.AssignToUnion(b, gv, cv.Type, cv.Init.Type, v)
		})
	}
	return gv
}

// spliceConstInit creates a fresh block in the const chain, lets fn emit
// into it, then re-links the chain and restores the caller's insertion
// point — "detach emission to the program's const_block chain ... splice
// the new block into the chain and resume at the caller's insertion
// point". The chain always lives in __crystal_main, regardless of which
// def's body is currently generating when a constant is first
// referenced: g.ctx.fn is swapped to mainFuncState for the duration of
// fn(b), so any block the initializer itself creates (a nested if/while)
// or alloca it needs lands in main rather than in whatever function
// happened to be current.
func (g *Codegen) spliceConstInit(fn func(b *ir.Block)) {
	cc := g.consts
	cc.counter++
	blk := g.mainFunc.NewBlock(blockName("const", cc.counter))

	if cc.head == nil {
		cc.head = blk
	} else {
		cc.tail.NewBr(blk)
	}
	savedCur := g.ctx.cur
	savedFn := g.ctx.fn
	g.ctx.cur = blk
	g.ctx.fn = g.mainFuncState
	fn(blk)
	g.ctx.cur = savedCur
	g.ctx.fn = savedFn
	cc.tail = blk
}

// wireConstChain links the accumulated const chain between a function's
// alloca block and its entry block: alloca → const.1..const.n → entry. Called
// once, after __crystal_main's body has emitted, so every constant/
// class-var the body touched has already spliced its initializer in.
func (g *Codegen) wireConstChain(fs *funcState) {
	if g.consts.head == nil {
		fs.allocaBlock.NewBr(fs.entryBlock)
		return
	}
	fs.allocaBlock.NewBr(g.consts.head)
	g.consts.tail.NewBr(fs.entryBlock)
}

func isConstExprNode(n *ast.Node) bool {
	return n != nil && n.Kind == ast.Literal && n.LitKind != ast.LitString && n.LitKind != ast.LitSymbol
}

// constFoldLiteral converts a guaranteed-constant literal node directly
// into an LLVM constant, letting globalConstant mark the global
// immutable and skip the const chain entirely. This performs no folding
// of non-literal expressions; those always go through the const chain.
func (g *Codegen) constFoldLiteral(n *ast.Node) constant.Constant {
	switch n.LitKind {
	case ast.LitBool:
		return boolConst(n.BoolVal)
	case ast.LitNumber:
		return g.numberConst(n)
	case ast.LitChar:
		return charConst(n.CharVal)
	case ast.LitNil:
		return nil // nil has no meaningful standalone constant form here
	default:
		return nil
	}
}

func blockName(prefix string, n int) string {
	if n == 0 {
		return prefix
	}
	return prefix + "." + strconv.Itoa(n)
}
