package codegen

import (
	"strings"
	"testing"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// TestEmitDispatchCascadesOverCandidates builds a hierarchy with two
// subtypes, each implementing "speak", and a call site that resolved
// both as candidates (dynamic dispatch rather than a single
// monomorphic target). The generated module must carry a tag-compare
// cascade rather than any vtable-style indirect call.
func TestEmitDispatchCascadesOverCandidates(t *testing.T) {
	reg := types.NewRegistry()
	intT := reg.NewInt(32, true)

	cat := reg.NewClass("Cat", nil)
	dog := reg.NewClass("Dog", nil)
	animal := reg.NewHierarchy("Animal", cat, dog)

	speakOnCat := &ast.Def{
		Name: "speak", Owner: cat, ReturnType: intT,
		Body: numberLit(reg, "1"),
	}
	speakOnDog := &ast.Def{
		Name: "speak", Owner: dog, ReturnType: intT,
		Body: numberLit(reg, "2"),
	}

	recv := &ast.Node{Kind: ast.VarRef, VarKind: ast.LocalVar, Name: "a", Type: animal}
	call := &ast.Node{
		Kind:       ast.Call,
		Type:       intT,
		Receiver:   recv,
		TargetDefs: []*ast.Def{speakOnCat, speakOnDog},
	}

	callDef := &ast.Def{
		Name:       "call_speak",
		ReturnType: intT,
		Args:       []ast.Param{{Name: "a", Type: animal}},
		Body:       call,
	}

	prog := &ast.Program{
		Name:      "dispatch",
		Defs:      []*ast.Def{speakOnCat, speakOnDog, callDef},
		EntryType: intT,
		EntryBody: numberLit(reg, "0"),
	}

	gen := NewCodegen(prog, reg)
	mod, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	ir := mod.String()
	if !strings.Contains(ir, "dispatch.case0") {
		t.Fatalf("expected a dispatch.case0 block in the generated module:\n%s", ir)
	}
	if !strings.Contains(ir, "dispatch.case1") {
		t.Fatalf("expected a dispatch.case1 block in the generated module:\n%s", ir)
	}
	if !strings.Contains(ir, "unreachable") {
		t.Fatalf("expected the dispatch cascade to fall through to unreachable:\n%s", ir)
	}
}
