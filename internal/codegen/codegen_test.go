package codegen

import (
	"strings"
	"testing"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

func numberLit(reg *types.Registry, text string) *ast.Node {
	return &ast.Node{Kind: ast.Literal, LitKind: ast.LitNumber, NumberKind: ast.I32,
		NumberText: text, Type: reg.NewInt(32, true)}
}

func TestGenerateProducesSingleEntryPoint(t *testing.T) {
	reg := types.NewRegistry()
	intT := reg.NewInt(32, true)
	prog := &ast.Program{
		Name:      "hello",
		EntryType: intT,
		EntryBody: numberLit(reg, "0"),
	}

	gen := NewCodegen(prog, reg)
	mod, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	found := 0
	for _, fn := range mod.Funcs {
		if fn.Name() == "__crystal_main" {
			found++
		}
	}
	if found != 1 {
		t.Fatalf("expected exactly one __crystal_main, got %d", found)
	}
}

func TestGenerateTopLevelDefIsMaterialized(t *testing.T) {
	reg := types.NewRegistry()
	intT := reg.NewInt(32, true)
	addDef := &ast.Def{
		Name:       "add_one",
		ReturnType: intT,
		Args:       []ast.Param{{Name: "x", Type: intT}},
		Body: &ast.Node{
			Kind: ast.BinaryPrimitive, Op: ast.BinAdd, Type: intT,
			Left:  &ast.Node{Kind: ast.VarRef, VarKind: ast.LocalVar, Name: "x", Type: intT},
			Right: numberLit(reg, "1"),
		},
	}
	prog := &ast.Program{
		Name:      "withdef",
		Defs:      []*ast.Def{addDef},
		EntryType: intT,
		EntryBody: numberLit(reg, "0"),
	}

	gen := NewCodegen(prog, reg)
	mod, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := MangledName(addDef, nil)
	for _, fn := range mod.Funcs {
		if fn.Name() == want {
			return
		}
	}
	t.Fatalf("expected materialized function %q, module:\n%s", want, mod.String())
}

func TestGenerateRecoversInternalAssertionAsCodegenError(t *testing.T) {
	reg := types.NewRegistry()
	prog := &ast.Program{
		Name:      "broken",
		EntryType: reg.Bool(),
		// VarRef to an undeclared local trips internalAssertion inside
		// emitVarRef, which Generate must turn into a *CodegenError
		// rather than letting the panic escape.
		EntryBody: &ast.Node{Kind: ast.VarRef, VarKind: ast.LocalVar, Name: "nope", Type: reg.Bool()},
	}

	gen := NewCodegen(prog, reg)
	_, err := gen.Generate()
	if err == nil {
		t.Fatalf("expected an error from an undefined local read")
	}
	cerr, ok := err.(*CodegenError)
	if !ok {
		t.Fatalf("expected *CodegenError, got %T", err)
	}
	if !cerr.Partial {
		t.Fatalf("expected Partial to be set for a recovered panic")
	}
	if !strings.Contains(cerr.Error(), "codegen:") {
		t.Fatalf("expected error message to report the codegen: prefix, got %q", cerr.Error())
	}
}

func TestGenerateSkipVerifyBypassesStructuralCheck(t *testing.T) {
	reg := types.NewRegistry()
	prog := &ast.Program{
		Name:      "skip",
		EntryType: reg.Bool(),
		EntryBody: &ast.Node{Kind: ast.Literal, LitKind: ast.LitBool, BoolVal: true, Type: reg.Bool()},
	}

	gen := NewCodegen(prog, reg)
	gen.SkipVerify = true
	if _, err := gen.Generate(); err != nil {
		t.Fatalf("Generate with SkipVerify failed: %v", err)
	}
}
