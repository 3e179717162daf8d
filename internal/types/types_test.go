package types

import "testing"

func TestNilableCollapsesTwoMemberUnion(t *testing.T) {
	r := NewRegistry()
	class := r.NewClass("Thing", nil)

	u := r.NewUnion(r.Nil(), class)
	if !u.NilableQ() {
		t.Fatalf("expected Nil|Thing to collapse to Nilable, got kind %v", u.Kind)
	}
	if u.NilableType() != class {
		t.Fatalf("expected nilable carrier to be Thing, got %v", u.NilableType())
	}
	if u.UnionQ() {
		t.Fatalf("nilable type must not also report Union")
	}
}

func TestUnionFlattensNestedUnions(t *testing.T) {
	r := NewRegistry()
	a := r.NewInt(32, true)
	b := r.NewFloat(64)
	c := r.NewClass("C", nil)

	inner := r.NewUnion(a, b)
	outer := r.NewUnion(inner, c)

	if !outer.UnionQ() {
		t.Fatalf("expected flattened union")
	}
	if len(outer.Types()) != 3 {
		t.Fatalf("expected 3 flattened members, got %d", len(outer.Types()))
	}
}

func TestUnionSizeCoversLargestMember(t *testing.T) {
	r := NewRegistry()
	small := r.NewInt(8, true)
	large := r.NewCStruct("Big", []InstanceVar{
		{Name: "a", Type: r.NewFloat(64)},
		{Name: "b", Type: r.NewFloat(64)},
	}, false, true)

	u := r.NewUnion(small, large)
	if u.LLVMSize() != large.LLVMSize() {
		t.Fatalf("union size %d does not cover largest member %d", u.LLVMSize(), large.LLVMSize())
	}
}

func TestHierarchySubtypingImplements(t *testing.T) {
	r := NewRegistry()
	cat := r.NewClass("Cat", nil)
	dog := r.NewClass("Dog", nil)
	animal := r.NewHierarchy("Animal", cat, dog)

	if !cat.Implements(animal) {
		t.Fatalf("expected Cat to implement its hierarchy base Animal")
	}
	if dog.BaseType() != animal {
		t.Fatalf("expected Dog.BaseType() == Animal")
	}
	if len(animal.Subtypes()) != 2 {
		t.Fatalf("expected 2 subtypes, got %d", len(animal.Subtypes()))
	}
}

func TestInstanceVarLookup(t *testing.T) {
	r := NewRegistry()
	point := r.NewClass("Point", []InstanceVar{
		{Name: "x", Type: r.NewInt(32, true)},
		{Name: "y", Type: r.NewInt(32, true)},
	})

	if idx := point.IndexOfInstanceVar("y"); idx != 1 {
		t.Fatalf("expected index 1 for y, got %d", idx)
	}
	if idx := point.IndexOfInstanceVar("z"); idx != -1 {
		t.Fatalf("expected -1 for missing field, got %d", idx)
	}
	if _, ok := point.LookupInstanceVar("x"); !ok {
		t.Fatalf("expected to find field x")
	}
}

func TestTypeIDsAreStableAndUnique(t *testing.T) {
	r := NewRegistry()
	a := r.NewInt(32, true)
	b := r.NewInt(64, true)

	if a.TypeID() == b.TypeID() {
		t.Fatalf("expected distinct type ids")
	}
	if a.TypeID() != a.TypeID() {
		t.Fatalf("type id must be stable across calls")
	}
}

func TestPassedByValAndAsSelf(t *testing.T) {
	r := NewRegistry()
	byVal := r.NewCStruct("Vec2", []InstanceVar{
		{Name: "x", Type: r.NewFloat(32)},
		{Name: "y", Type: r.NewFloat(32)},
	}, false, true)
	byPtr := r.NewCStruct("Big", []InstanceVar{
		{Name: "x", Type: r.NewFloat(64)},
	}, false, false)

	if !byVal.PassedByVal() {
		t.Fatalf("expected Vec2 to be passed by value")
	}
	if byVal.PassedAsSelf() {
		t.Fatalf("by-value struct should not be passed as self")
	}
	if !byPtr.PassedAsSelf() {
		t.Fatalf("expected Big to be passed as self (pointer)")
	}
}
