package codegen

import (
	irtypes "github.com/llir/llvm/ir/types"

	"github.com/nocturn-lang/noctc/internal/types"
)

// LLVMType returns the value-form LLVM type for t: a scalar for
// primitives, a tagged-union struct for Union, the {type_id, opaque
// pointer} struct for Hierarchy, a bare pointer for Nilable/Class/String,
// and for CStruct/CUnion the struct's own type when passed by value or a
// pointer to it otherwise.
func (g *Codegen) LLVMType(t *types.Type) irtypes.Type {
	if cached, ok := g.llvmTypes[t]; ok {
		return cached
	}
	lt := g.lowerType(t)
	g.llvmTypes[t] = lt
	return lt
}

func (g *Codegen) lowerType(t *types.Type) irtypes.Type {
	switch t.Kind {
	case types.Void:
		return irtypes.Void
	case types.NilKind:
		return irtypes.NewPointer(irtypes.I8)
	case types.Bool:
		return irtypes.I1
	case types.Int:
		return intType(t.IntBits)
	case types.Float:
		if t.FloatBits == 32 {
			return irtypes.Float
		}
		return irtypes.Double
	case types.Char, types.Symbol:
		return irtypes.I32
	case types.StringKind:
		return irtypes.NewPointer(g.stringStructType())
	case types.Pointer:
		return irtypes.NewPointer(g.LLVMType(t.Inner))
	case types.Class:
		return irtypes.NewPointer(g.LLVMStructType(t))
	case types.CStruct, types.CUnion:
		if t.PassedByVal() {
			return g.LLVMStructType(t)
		}
		return irtypes.NewPointer(g.LLVMStructType(t))
	case types.Union:
		return unionStructType(t)
	case types.Nilable:
		return irtypes.NewPointer(g.LLVMType(t.Inner))
	case types.Hierarchy:
		return hierarchyStructType()
	case types.NoReturn:
		return irtypes.Void
	default:
		internalAssertion("lowerType: unclassified kind %v for type %s", t.Kind, t.Name)
		return nil
	}
}

func intType(bits int) irtypes.Type {
	switch bits {
	case 1:
		return irtypes.I1
	case 8:
		return irtypes.I8
	case 16:
		return irtypes.I16
	case 32:
		return irtypes.I32
	case 64:
		return irtypes.I64
	default:
		return irtypes.NewInt(int64(bits))
	}
}

// unionStructType is the tagged-union layout {i32 type_id, [N x i8] value},
// where N covers the largest member.
func unionStructType(t *types.Type) *irtypes.StructType {
	return irtypes.NewStruct(irtypes.I32, irtypes.NewArray(uint64(t.LLVMSize()), irtypes.I8))
}

// hierarchyStructType is the open-polymorphism layout: {type_id, opaque
// pointer}, identical in shape to a union but over a runtime-open set of
// concrete subtypes.
func hierarchyStructType() *irtypes.StructType {
	return irtypes.NewStruct(irtypes.I32, irtypes.NewPointer(irtypes.I8))
}

// LLVMStructType returns the struct body (not a pointer to it) for a
// Class/CStruct/CUnion type: one field per instance var, in declaration
// order, collapsed to the largest member for a CUnion.
func (g *Codegen) LLVMStructType(t *types.Type) *irtypes.StructType {
	if cached, ok := g.llvmStructTypes[t]; ok {
		return cached
	}
	var fields []irtypes.Type
	if t.Kind == types.CUnion {
		// A union struct's single field is a byte array sized to the
		// largest member; access is via bit-cast at each read/write.
		fields = []irtypes.Type{irtypes.NewArray(uint64(t.LLVMSize()), irtypes.I8)}
	} else {
		for _, iv := range t.InstanceVars {
			fields = append(fields, g.LLVMType(iv.Type))
		}
	}
	st := irtypes.NewStruct(fields...)
	g.llvmStructTypes[t] = st
	return st
}

// LLVMArgType is the ABI form of t at a call boundary: a pointer for a
// by-value struct argument (a plain pointer parameter; no byval
// attribute is attached), the ordinary LLVMType otherwise.
func (g *Codegen) LLVMArgType(t *types.Type) irtypes.Type {
	if t.PassedByVal() {
		return irtypes.NewPointer(g.LLVMStructType(t))
	}
	return g.LLVMType(t)
}

// stringStructType is the boxed string representation: {i32 length, i8*
// bytes}, referenced everywhere else through a pointer.
func (g *Codegen) stringStructType() *irtypes.StructType {
	if g.stringType != nil {
		return g.stringType
	}
	g.stringType = irtypes.NewStruct(irtypes.I32, irtypes.NewPointer(irtypes.I8))
	return g.stringType
}
