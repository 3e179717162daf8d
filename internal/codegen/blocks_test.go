package codegen

import (
	"strings"
	"testing"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// TestInlineBlockCallYieldsIntoCallerBody builds an each-style def that
// yields once, called with an attached block that just returns its
// yielded argument. The callee must never become a separate IR
// function: its body inlines straight into the caller, and the yield
// must not emit any kind of indirect call.
func TestInlineBlockCallYieldsIntoCallerBody(t *testing.T) {
	reg := types.NewRegistry()
	intT := reg.NewInt(32, true)

	eachDef := &ast.Def{
		Name:       "each_one",
		ReturnType: intT,
		Body: &ast.Node{
			Kind: ast.Yield, Type: intT,
			YieldArgs: []*ast.Node{numberLit(reg, "7")},
		},
	}

	blockParam := ast.Param{Name: "x", Type: intT}
	call := &ast.Node{
		Kind:       ast.Call,
		Type:       intT,
		TargetDefs: []*ast.Def{eachDef},
		Block: &ast.Block{
			Params: []ast.Param{blockParam},
			Body:   &ast.Node{Kind: ast.VarRef, VarKind: ast.LocalVar, Name: "x", Type: intT},
		},
	}

	callerDef := &ast.Def{
		Name:       "run_each",
		ReturnType: intT,
		Body:       call,
	}

	prog := &ast.Program{
		Name:      "blocks",
		Defs:      []*ast.Def{eachDef, callerDef},
		EntryType: intT,
		EntryBody: numberLit(reg, "0"),
	}

	gen := NewCodegen(prog, reg)
	mod, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	ir := mod.String()
	eachMangled := MangledName(eachDef, nil)
	if strings.Contains(ir, "@"+eachMangled+"(") {
		t.Fatalf("expected each_one to never be materialized as its own function, got:\n%s", ir)
	}
	if !strings.Contains(ir, "block.call.done") {
		t.Fatalf("expected the inlined block call's rendezvous block in the module:\n%s", ir)
	}
}

// TestInlineBlockCallBreakTargetsCallDone builds an each-style def that
// yields 0, 1, 2 in sequence (no enclosing loop anywhere in this
// program), called at a method's top level with a block that breaks
// once its argument reaches 2 and otherwise accumulates it into a
// caller-local. A `break` reached through `yield` must land on the
// call's own rendezvous (block.call.done) — with no loop enclosing the
// call site, there is nothing else for it to target, and the old
// behavior of restoring whatever break rendezvous was active at the
// call site produced a nil block label here. Generate succeeding and
// mod.String() not panicking is itself most of the regression check;
// the exact occurrence count confirms break branches directly to
// block.call.done rather than somewhere else: the block label, one
// break branch per inlined copy of the block body (three yields), and
// the callee's own fall-through branch.
func TestInlineBlockCallBreakTargetsCallDone(t *testing.T) {
	reg := types.NewRegistry()
	intT := reg.NewInt(32, true)
	boolT := reg.Bool()

	yieldSeq := &ast.Node{
		Kind: ast.Expressions,
		Children: []*ast.Node{
			{Kind: ast.Yield, YieldArgs: []*ast.Node{numberLit(reg, "0")}},
			{Kind: ast.Yield, YieldArgs: []*ast.Node{numberLit(reg, "1")}},
			{Kind: ast.Yield, YieldArgs: []*ast.Node{numberLit(reg, "2")}},
		},
	}
	eachDef := &ast.Def{Name: "each_upto_two", Body: yieldSeq}

	iVar := &ast.Node{Kind: ast.VarRef, VarKind: ast.LocalVar, Name: "i", Type: intT}
	sumVar := &ast.Node{Kind: ast.VarRef, VarKind: ast.LocalVar, Name: "sum", Type: intT}
	blockBody := &ast.Node{
		Kind: ast.If,
		Type: intT,
		Cond: &ast.Node{Kind: ast.BinaryPrimitive, Op: ast.BinICmpEq, Type: boolT, Left: iVar, Right: numberLit(reg, "2")},
		Then: &ast.Node{Kind: ast.Break},
		Else: &ast.Node{
			Kind: ast.Assign, VarKind: ast.LocalVar, Name: "sum", Type: intT,
			Value: &ast.Node{Kind: ast.BinaryPrimitive, Op: ast.BinAdd, Type: intT, Left: sumVar, Right: iVar},
		},
	}

	call := &ast.Node{
		Kind:       ast.Call,
		TargetDefs: []*ast.Def{eachDef},
		Block: &ast.Block{
			Params: []ast.Param{{Name: "i", Type: intT}},
			Body:   blockBody,
		},
	}

	callerDef := &ast.Def{
		Name:       "sum_until_two",
		ReturnType: intT,
		Body: &ast.Node{
			Kind: ast.Expressions,
			Type: intT,
			Children: []*ast.Node{
				{Kind: ast.Assign, VarKind: ast.LocalVar, Name: "sum", Type: intT, Value: numberLit(reg, "0")},
				call,
				sumVar,
			},
		},
	}

	prog := &ast.Program{
		Name:      "blocks_break",
		Defs:      []*ast.Def{eachDef, callerDef},
		EntryType: intT,
		EntryBody: numberLit(reg, "0"),
	}

	gen := NewCodegen(prog, reg)
	mod, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	ir := mod.String()
	if got := strings.Count(ir, "block.call.done"); got != 5 {
		t.Fatalf("expected block.call.done to appear exactly 5 times (block label, three break branches, one fall-through branch), got %d:\n%s", got, ir)
	}
}
