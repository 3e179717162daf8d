package codegen

import (
	"strings"
	"testing"

	"github.com/llir/llvm/ir"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// TestDeferredConstantSplicesIntoMainOnly verifies two things: a
// constant whose initializer is a plain literal folds to an immutable
// global with no const-chain block at all, while a constant whose
// initializer is a call gets deferred into a const.N block spliced
// between __crystal_main's alloca and entry blocks.
func TestDeferredConstantSplicesIntoMainOnly(t *testing.T) {
	reg := types.NewRegistry()
	intT := reg.NewInt(32, true)

	literalConst := &ast.ConstantDef{Name: "MAX", Type: intT, Init: numberLit(reg, "100")}

	computeDef := &ast.Def{
		Name:       "compute",
		ReturnType: intT,
		Body:       numberLit(reg, "5"),
	}
	deferredInit := &ast.Node{
		Kind:       ast.Call,
		Type:       intT,
		TargetDefs: []*ast.Def{computeDef},
	}
	deferredConst := &ast.ConstantDef{Name: "COMPUTED", Type: intT, Init: deferredInit}

	entryBody := &ast.Node{
		Kind: ast.Expressions,
		Type: intT,
		Children: []*ast.Node{
			{Kind: ast.VarRef, VarKind: ast.ConstantVar, Name: "MAX", Type: intT},
			{Kind: ast.VarRef, VarKind: ast.ConstantVar, Name: "COMPUTED", Type: intT},
		},
	}

	prog := &ast.Program{
		Name:      "constants",
		Defs:      []*ast.Def{computeDef},
		Constants: []*ast.ConstantDef{literalConst, deferredConst},
		EntryType: intT,
		EntryBody: entryBody,
	}

	gen := NewCodegen(prog, reg)
	mod, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	ir := mod.String()
	if !strings.Contains(ir, "const.MAX") {
		t.Fatalf("expected const.MAX global in the module:\n%s", ir)
	}
	if !strings.Contains(ir, "const.1") {
		t.Fatalf("expected a deferred const.1 chain block for the non-literal initializer:\n%s", ir)
	}
	if strings.Contains(ir, "const.2") {
		t.Fatalf("expected the literal-initialized MAX to fold without taking a const-chain block:\n%s", ir)
	}
}

// TestDeferredConstantFromNonMainDefSplicesIntoMain covers the case
// where a deferred constant's first reference is inside an ordinary
// def's body, not __crystal_main's — materialized before the entry
// point ever runs. The const-init chain block must still land in
// __crystal_main, never in the referencing def's own function.
func TestDeferredConstantFromNonMainDefSplicesIntoMain(t *testing.T) {
	reg := types.NewRegistry()
	intT := reg.NewInt(32, true)

	computeDef := &ast.Def{
		Name:       "compute",
		ReturnType: intT,
		Body:       numberLit(reg, "5"),
	}
	deferredInit := &ast.Node{
		Kind:       ast.Call,
		Type:       intT,
		TargetDefs: []*ast.Def{computeDef},
	}
	deferredConst := &ast.ConstantDef{Name: "COMPUTED", Type: intT, Init: deferredInit}

	readDef := &ast.Def{
		Name:       "read_computed",
		ReturnType: intT,
		Body:       &ast.Node{Kind: ast.VarRef, VarKind: ast.ConstantVar, Name: "COMPUTED", Type: intT},
	}

	prog := &ast.Program{
		Name:      "constants_nonmain",
		Defs:      []*ast.Def{computeDef, readDef},
		Constants: []*ast.ConstantDef{deferredConst},
		EntryType: intT,
		// EntryBody deliberately never references COMPUTED: readDef is
		// the first (and only) def whose body touches it, and readDef
		// is materialized before __crystal_main's body is generated.
		EntryBody: numberLit(reg, "0"),
	}

	gen := NewCodegen(prog, reg)
	mod, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var mainFn, readFn *ir.Func
	for _, fn := range mod.Funcs {
		switch fn.Name() {
		case "__crystal_main":
			mainFn = fn
		case MangledName(readDef, nil):
			readFn = fn
		}
	}
	if mainFn == nil {
		t.Fatalf("expected __crystal_main in the module")
	}
	if readFn == nil {
		t.Fatalf("expected %s in the module", MangledName(readDef, nil))
	}

	if !hasBlockNamed(mainFn, "const.1") {
		t.Fatalf("expected __crystal_main to carry the const.1 chain block, blocks: %v", blockNames(mainFn))
	}
	if hasBlockNamed(readFn, "const.1") {
		t.Fatalf("expected read_computed to NOT carry the const.1 chain block, blocks: %v", blockNames(readFn))
	}
}

func hasBlockNamed(fn *ir.Func, name string) bool {
	for _, blk := range fn.Blocks {
		if blk.Name() == name {
			return true
		}
	}
	return false
}

func blockNames(fn *ir.Func) []string {
	names := make([]string, len(fn.Blocks))
	for i, blk := range fn.Blocks {
		names[i] = blk.Name()
	}
	return names
}
