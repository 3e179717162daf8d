package codegen

import (
	"testing"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

func TestMangledNameShapes(t *testing.T) {
	reg := types.NewRegistry()
	point := reg.NewClass("Point", nil)

	topLevel := &ast.Def{Name: "add"}
	method := &ast.Def{Name: "distance", Owner: point}
	operator := &ast.Def{Name: "+", Owner: point}
	predicate := &ast.Def{Name: "empty?", Owner: point}
	indexSet := &ast.Def{Name: "[]=", Owner: point}

	tests := []struct {
		name  string
		def   *ast.Def
		owner *types.Type
	}{
		{"top-level function", topLevel, nil},
		{"instance method", method, point},
		{"operator overload", operator, point},
		{"predicate method", predicate, point},
		{"index-set operator", indexSet, point},
	}

	seen := make(map[string]string, len(tests))
	for _, tt := range tests {
		got := MangledName(tt.def, tt.owner)
		if got == "" {
			t.Fatalf("%s: MangledName returned an empty string", tt.name)
		}
		for label, prior := range seen {
			if prior == got {
				t.Fatalf("%s and %s both mangled to %q, expected distinct names", tt.name, label, got)
			}
		}
		seen[tt.name] = got
	}
}

func TestMangledNameIsStableAndCached(t *testing.T) {
	reg := types.NewRegistry()
	class := reg.NewClass("Widget", nil)
	def := &ast.Def{Name: "reset", Owner: class}

	first := MangledName(def, class)
	second := MangledName(def, class)
	if first != second {
		t.Fatalf("expected repeated MangledName calls to agree: %q vs %q", first, second)
	}
	if _, ok := def.MangledCache(); !ok {
		t.Fatalf("expected MangledName to populate the def's cache")
	}
}

func TestMangledNameDistinguishesOwners(t *testing.T) {
	reg := types.NewRegistry()
	cat := reg.NewClass("Cat", nil)
	dog := reg.NewClass("Dog", nil)
	catDef := &ast.Def{Name: "speak", Owner: cat}
	dogDef := &ast.Def{Name: "speak", Owner: dog}

	asCat := MangledName(catDef, cat)
	asDog := MangledName(dogDef, dog)
	if asCat == asDog {
		t.Fatalf("expected distinct owners to mangle to distinct names, both got %q", asCat)
	}
}
