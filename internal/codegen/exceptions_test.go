package codegen

import (
	"strings"
	"testing"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// TestEmitExceptionHandlerBuildsLandingPadAndRescueCascade exercises a
// protected body with two rescue clauses (the second binding its
// exception value) and an ensure clause, checking the generated module
// carries the Itanium landingpad shape and a rescue cascade rather than
// any other mechanism.
func TestEmitExceptionHandlerBuildsLandingPadAndRescueCascade(t *testing.T) {
	reg := types.NewRegistry()
	intT := reg.NewInt(32, true)
	errA := reg.NewClass("IOError", nil)
	errB := reg.NewClass("ValueError", nil)

	handler := &ast.Node{
		Kind:      ast.ExceptionHandler,
		Type:      intT,
		Protected: numberLit(reg, "1"),
		Rescues: []ast.Rescue{
			{Types: []*types.Type{errA}, Body: numberLit(reg, "2")},
			{BindName: "e", Types: []*types.Type{errB}, Body: numberLit(reg, "3")},
		},
		Ensure: &ast.Node{Kind: ast.Nop},
	}

	entryDef := &ast.Def{
		Name:       "run_protected",
		ReturnType: intT,
		Body:       handler,
	}

	prog := &ast.Program{
		Name:      "exceptions",
		Defs:      []*ast.Def{entryDef},
		EntryType: intT,
		EntryBody: numberLit(reg, "0"),
	}

	gen := NewCodegen(prog, reg)
	mod, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	ir := mod.String()
	for _, want := range []string{"rescue.landingpad", "landingpad", "rescue.case0", "rescue.case1", "rescue.end"} {
		if !strings.Contains(ir, want) {
			t.Fatalf("expected %q in the generated module:\n%s", want, ir)
		}
	}
}
