// Package types is the type oracle the code generator queries. It is
// consumed, not produced, by internal/codegen: every Node the generator
// walks already carries a *Type resolved by type inference, and the
// generator never classifies a value by any means other than the
// predicates declared here.
package types

import "sort"

// Kind is the closed set of type classifications the oracle can report.
type Kind int

const (
	Void Kind = iota
	NilKind
	Bool
	Int
	Float
	Char
	Symbol
	StringKind
	Pointer
	CStruct
	CUnion
	Class
	Union
	Nilable
	Hierarchy
	NoReturn
)

// InstanceVar describes one field of a class/struct/union type.
type InstanceVar struct {
	Name string
	Type *Type
}

// Type is a single node in the type graph. Identity is by pointer; two
// Type values describing the "same" type in different parts of a program
// are never required to be ==, only TypeID-equal.
type Type struct {
	Kind Kind
	Name string

	id int // stable integer identity, see TypeID

	// Int
	IntBits   int
	IntSigned bool

	// Float
	FloatBits int

	// Union: Members holds every alternative. Nilable is the special case
	// of a two-member union {T, Nil} collapsed to a bare pointer.
	Members []*Type

	// Nilable: Inner is the non-nil carrier type (a class or hierarchy).
	Inner *Type

	// Hierarchy: Base is set on every subtype, pointing at the open
	// supertype; HierarchySubtypes is set on the base, listing every
	// subtype currently known to the oracle.
	Base              *Type
	HierarchySubtypes []*Type

	// Class/CStruct/CUnion
	InstanceVars []InstanceVar

	// PassedByVal marks a C struct/union that is passed and returned by
	// value rather than by pointer.
	ByVal bool

	// PassedAsSelf marks a type whose instances are threaded through calls
	// as an implicit receiver pointer (true for Class, String and
	// by-pointer CStruct/CUnion; false for by-value structs and for
	// primitives used as "self" in e.g. extended Int methods).
	AsSelf bool

	sizeBytes int
}

// Registry assigns stable type_ids: sequential in registration order,
// starting at 1.
type Registry struct {
	nextID int
	nilT   *Type
	boolT  *Type
	noRet  *Type
}

// NewRegistry creates a registry seeded with the handful of singleton
// types every program needs (nil, bool, no-return).
func NewRegistry() *Registry {
	r := &Registry{}
	r.nilT = r.newType(NilKind, "Nil")
	r.boolT = r.newType(Bool, "Bool")
	r.noRet = r.newType(NoReturn, "NoReturn")
	return r
}

func (r *Registry) newType(k Kind, name string) *Type {
	r.nextID++
	return &Type{Kind: k, Name: name, id: r.nextID}
}

// Nil returns the registry's singleton Nil type.
func (r *Registry) Nil() *Type { return r.nilT }

// Bool returns the registry's singleton Bool type.
func (r *Registry) Bool() *Type { return r.boolT }

// NoReturn returns the registry's singleton bottom type.
func (r *Registry) NoReturn() *Type { return r.noRet }

// NewInt registers a fixed-width integer type.
func (r *Registry) NewInt(bits int, signed bool) *Type {
	t := r.newType(Int, intName(bits, signed))
	t.IntBits = bits
	t.IntSigned = signed
	t.sizeBytes = (bits + 7) / 8
	return t
}

func intName(bits int, signed bool) string {
	prefix := "I"
	if !signed {
		prefix = "U"
	}
	switch bits {
	case 8:
		return prefix + "8"
	case 16:
		return prefix + "16"
	case 32:
		return prefix + "32"
	case 64:
		return prefix + "64"
	default:
		return prefix + "X"
	}
}

// NewFloat registers a floating point type (32 or 64 bits).
func (r *Registry) NewFloat(bits int) *Type {
	t := r.newType(Float, floatName(bits))
	t.FloatBits = bits
	t.sizeBytes = bits / 8
	return t
}

func floatName(bits int) string {
	if bits == 32 {
		return "F32"
	}
	return "F64"
}

// NewChar registers the character type. Characters are a 32-bit code
// point rather than a raw byte: Nocturn strings are UTF-8 but `Char`
// literals denote a single Unicode scalar value.
func (r *Registry) NewChar() *Type {
	t := r.newType(Char, "Char")
	t.sizeBytes = 4
	return t
}

// NewSymbol registers the interned-symbol type.
func (r *Registry) NewSymbol() *Type {
	t := r.newType(Symbol, "Symbol")
	t.sizeBytes = 4
	return t
}

// NewString registers the built-in string type (a boxed, GC'd length+bytes
// struct accessed through a pointer).
func (r *Registry) NewString() *Type {
	t := r.newType(StringKind, "String")
	t.AsSelf = true
	t.sizeBytes = 8
	return t
}

// NewPointer registers a raw C-level pointer-to-T primitive (Pointer(T)).
func (r *Registry) NewPointer(to *Type) *Type {
	t := r.newType(Pointer, "Pointer("+to.Name+")")
	t.Inner = to
	t.sizeBytes = 8
	return t
}

// NewClass registers a concrete, non-hierarchy reference class.
func (r *Registry) NewClass(name string, ivars []InstanceVar) *Type {
	t := r.newType(Class, name)
	t.InstanceVars = ivars
	t.AsSelf = true
	t.sizeBytes = 8
	return t
}

// NewCStruct registers a C struct/union value type. byVal marks whether
// instances are passed by value (true) or always behind a pointer.
func (r *Registry) NewCStruct(name string, ivars []InstanceVar, isUnion, byVal bool) *Type {
	kind := CStruct
	if isUnion {
		kind = CUnion
	}
	t := r.newType(kind, name)
	t.InstanceVars = ivars
	t.ByVal = byVal
	t.AsSelf = !byVal
	largest := 0
	for _, iv := range ivars {
		if isUnion {
			if s := iv.Type.LLVMSize(); s > largest {
				largest = s
			}
		} else {
			largest += iv.Type.LLVMSize()
		}
	}
	t.sizeBytes = largest
	return t
}

// NewUnion registers a sum type over members. A two-member union where one
// member is exactly Nil collapses to the Nilable representation, since a
// nilable value needs no separate tag: null-pointer-or-not already tells
// the two arms apart.
func (r *Registry) NewUnion(members ...*Type) *Type {
	flat := make([]*Type, 0, len(members))
	for _, m := range members {
		if m.Kind == Union {
			flat = append(flat, m.Members...)
		} else {
			flat = append(flat, m)
		}
	}
	if len(flat) == 2 {
		if flat[0].Kind == NilKind {
			return r.newNilable(flat[1])
		}
		if flat[1].Kind == NilKind {
			return r.newNilable(flat[0])
		}
	}
	t := r.newType(Union, unionName(flat))
	t.Members = flat
	largest := 0
	for _, m := range flat {
		if s := m.LLVMSize(); s > largest {
			largest = s
		}
	}
	t.sizeBytes = largest
	return t
}

func (r *Registry) newNilable(inner *Type) *Type {
	t := r.newType(Nilable, inner.Name+"?")
	t.Inner = inner
	t.sizeBytes = 8
	return t
}

func unionName(members []*Type) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += "|"
		}
		out += n
	}
	return out
}

// NewHierarchy registers an open-polymorphism base type together with its
// currently-known subtypes. Later subtypes may be added with AddSubtype.
func (r *Registry) NewHierarchy(name string, subtypes ...*Type) *Type {
	base := r.newType(Hierarchy, name)
	base.sizeBytes = 8
	for _, s := range subtypes {
		r.AddSubtype(base, s)
	}
	return base
}

// AddSubtype registers sub as a subtype of the hierarchy base, wiring both
// BaseType and the base's Subtypes list.
func (r *Registry) AddSubtype(base, sub *Type) {
	sub.Base = base
	base.HierarchySubtypes = append(base.HierarchySubtypes, sub)
}

// Alloc creates a blank type of the given kind with a fresh id. It exists
// for callers — such as the JSON decoder in internal/ast — that must
// resolve cyclic type references (a hierarchy member pointing back at its
// base, a struct field pointing at its own type) in two passes: allocate
// every node first with Alloc, wire up cross-references directly on the
// returned *Type, then call Finalize.
func (r *Registry) Alloc(k Kind, name string) *Type {
	return r.newType(k, name)
}

// Finalize computes size-related derived state after a two-pass caller has
// filled in a type's cross-references. It does not perform the nilable-
// collapse New* constructors apply; a two-pass caller must allocate
// Nilable directly if that is the shape the oracle resolved.
func (t *Type) Finalize() {
	switch t.Kind {
	case Union:
		largest := 0
		for _, m := range t.Members {
			if s := m.LLVMSize(); s > largest {
				largest = s
			}
		}
		t.sizeBytes = largest
	case CStruct, CUnion:
		size := 0
		for _, iv := range t.InstanceVars {
			if t.Kind == CUnion {
				if s := iv.Type.LLVMSize(); s > size {
					size = s
				}
			} else {
				size += iv.Type.LLVMSize()
			}
		}
		t.sizeBytes = size
	case Nilable, Class, Hierarchy, Pointer, StringKind:
		t.sizeBytes = 8
	case Int:
		t.sizeBytes = (t.IntBits + 7) / 8
	case Float:
		t.sizeBytes = t.FloatBits / 8
	case Char, Symbol:
		t.sizeBytes = 4
	}
}

// --- classification predicates ---

func (t *Type) UnionQ() bool     { return t.Kind == Union }
func (t *Type) NilableQ() bool   { return t.Kind == Nilable }
func (t *Type) HierarchyQ() bool { return t.Kind == Hierarchy }
func (t *Type) CStructQ() bool   { return t.Kind == CStruct }
func (t *Type) CUnionQ() bool    { return t.Kind == CUnion }
func (t *Type) NilTypeQ() bool   { return t.Kind == NilKind }
func (t *Type) NoReturnQ() bool  { return t.Kind == NoReturn }
func (t *Type) ClassQ() bool     { return t.Kind == Class }

// PassedByVal reports whether values of this type are passed/returned by
// value (true for C structs/unions marked ByVal; false otherwise).
func (t *Type) PassedByVal() bool {
	return (t.Kind == CStruct || t.Kind == CUnion) && t.ByVal
}

// PassedAsSelf reports whether a receiver of this type arrives at a
// method already as a pointer (self IS the pointer).
func (t *Type) PassedAsSelf() bool { return t.AsSelf }

// --- structural queries ---

// Types returns the members of a union type.
func (t *Type) Types() []*Type { return t.Members }

// ConcreteTypes flattens a union/hierarchy/nilable into its concrete leaf
// members, suitable for dispatch-candidate enumeration.
func (t *Type) ConcreteTypes() []*Type {
	switch t.Kind {
	case Union:
		return t.Members
	case Nilable:
		return []*Type{t.Inner}
	case Hierarchy:
		return t.HierarchySubtypes
	default:
		return []*Type{t}
	}
}

// Subtypes returns the subtypes of a hierarchy base type.
func (t *Type) Subtypes() []*Type { return t.HierarchySubtypes }

// NilableType returns the non-nil carrier of a Nilable type.
func (t *Type) NilableType() *Type { return t.Inner }

// BaseType returns the hierarchy base of a subtype, or nil if t is itself
// a base or not part of a hierarchy.
func (t *Type) BaseType() *Type { return t.Base }

// TypeID returns the stable integer identity assigned at registration.
func (t *Type) TypeID() int { return t.id }

// LLVMSize returns the size in bytes of the lowered LLVM representation,
// used to size tagged-union value slots.
func (t *Type) LLVMSize() int {
	if t.sizeBytes == 0 {
		return 8
	}
	return t.sizeBytes
}

// IndexOfInstanceVar returns the 0-based struct-field index of name, or -1
// if no such field exists.
func (t *Type) IndexOfInstanceVar(name string) int {
	for i, iv := range t.InstanceVars {
		if iv.Name == name {
			return i
		}
	}
	return -1
}

// LookupInstanceVar returns the InstanceVar named name.
func (t *Type) LookupInstanceVar(name string) (InstanceVar, bool) {
	for _, iv := range t.InstanceVars {
		if iv.Name == name {
			return iv, true
		}
	}
	return InstanceVar{}, false
}

// Implements reports whether t satisfies other — identity, union
// membership, or hierarchy subtyping.
func (t *Type) Implements(other *Type) bool {
	if t == other || t.id == other.id {
		return true
	}
	switch other.Kind {
	case Union:
		for _, m := range other.Members {
			if t.Implements(m) {
				return true
			}
		}
	case Hierarchy:
		for b := t.Base; b != nil; b = b.Base {
			if b == other {
				return true
			}
		}
	}
	return false
}
