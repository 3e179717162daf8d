// Package ast defines the fully typed AST that internal/codegen consumes.
// Every node is one of a closed set of variants; there is no
// open inheritance, only exhaustive case analysis over Kind.
package ast

import "github.com/nocturn-lang/noctc/internal/types"

// Kind discriminates the closed set of node variants.
type Kind int

const (
	Literal Kind = iota
	VarRef
	Assign
	If
	While
	Return
	Break
	Yield
	Call
	BinaryPrimitive
	UnaryPrimitive
	PointerPrimitive
	IsA
	ExceptionHandler
	SimpleOr
	Expressions
	Nop
)

// LiteralKind discriminates the literal sub-variants.
type LiteralKind int

const (
	LitNil LiteralKind = iota
	LitBool
	LitNumber
	LitChar
	LitString
	LitSymbol
)

// NumberKind names the concrete numeric representation of a LitNumber.
type NumberKind int

const (
	I8 NumberKind = iota
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
)

// VarKind discriminates the storage class of a VarRef/Assign target.
type VarKind int

const (
	LocalVar VarKind = iota
	CastedVar
	InstanceVar
	ClassVar
	GlobalVar
	ConstantVar
)

// PointerOp names a pointer-primitive operation.
type PointerOp int

const (
	PointerNew PointerOp = iota
	PointerGet
	PointerSet
	PointerAdd
	PointerNull
	PointerAddress
)

// BinOp names a primitive binary operator recognized directly by the
// expression emitter (everything else is a Call to a user/primitive def).
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinSDiv
	BinUDiv
	BinSRem
	BinURem
	BinFAdd
	BinFSub
	BinFMul
	BinFDiv
	BinAnd
	BinOr
	BinXor
	BinShl
	BinLShr
	BinAShr
	BinICmpEq
	BinICmpNe
	BinICmpSLt
	BinICmpSLe
	BinICmpSGt
	BinICmpSGe
	BinFCmpEq
	BinFCmpNe
	BinFCmpLt
	BinFCmpLe
	BinFCmpGt
	BinFCmpGe
)

// UnOp names a primitive unary operator.
type UnOp int

const (
	UnNeg UnOp = iota
	UnFNeg
	UnNot
	UnBitNot
)

// Node is a single typed AST node. Only the fields relevant to Kind are
// populated; the zero value of every other field is unused filler, a
// closed discriminated-union shape rather than open inheritance.
type Node struct {
	Kind Kind
	Type *types.Type // resolved type; nil for statements with no value

	// Literal
	LitKind    LiteralKind
	BoolVal    bool
	NumberKind NumberKind
	NumberText string // literal source text, e.g. "42", "3.5"
	CharVal    rune
	StringVal  string
	SymbolVal  string

	// VarRef / Assign
	VarKind VarKind
	Name    string
	Target  *Node // Assign only: nil for VarRef
	Value   *Node // Assign: rhs. Return/Break: optional value. Yield: unused (see YieldArgs)

	// If / While
	Cond    *Node
	Then    *Node
	Else    *Node // nil if no else branch
	Body    *Node // While body
	RunOnce bool  // do/while: body runs before first condition check

	// Yield
	YieldArgs []*Node

	// Call
	Receiver    *Node   // nil for a call with no explicit receiver (self/top-level)
	Args        []*Node
	TargetDefs  []*Def  // resolved candidates; len>1 triggers dynamic dispatch
	Block       *Block  // attached iterator block, nil if this is a true call
	MacroResult *Node   // non-nil: this call was macro-expanded to this body

	// PointerPrimitive
	PtrOp     PointerOp
	PtrOperand *Node
	PtrOffset  *Node // PointerAdd operand
	PtrValue   *Node // PointerSet value

	// IsA
	Subject   *Node
	CheckType *types.Type

	// ExceptionHandler
	Protected *Node
	Rescues   []Rescue
	Ensure    *Node // nil if no ensure clause

	// SimpleOr (x || y : yields x if truthy/non-nil else y)
	Left  *Node
	Right *Node

	// BinaryPrimitive: operands in Left/Right, operator in Op.
	Op BinOp
	// UnaryPrimitive: operand in Subject, operator in UOp.
	UOp UnOp

	// Expressions (sequence)
	Children []*Node
}

// Block is a caller-supplied iterator closure attached to a Call.
type Block struct {
	Params []Param
	Body   *Node
}

// Param is a formal parameter of a Def or Block.
type Param struct {
	Name  string
	Type  *types.Type
	ByVal bool // true when Type.PassedByVal() — carried here so call sites
	// don't need to re-query the oracle at every argument lowering site.
	Out bool // true for "out" parameters: callee receives the slot pointer
}

// Rescue is one `rescue` clause of an ExceptionHandler. Types is a flat
// disjunction: a multi-type rescue clause matches any of Types
// directly, never a subtype chain walk.
type Rescue struct {
	BindName string // "" if the exception value is not bound
	Types    []*types.Type
	Body     *Node
}

// Def is a method or plain function definition.
type Def struct {
	Name       string
	Owner      *types.Type // nil for a top-level function
	Args       []Param
	ReturnType *types.Type // nil/Void for a statement-only def
	Body       *Node
	External   bool // true: an extern "C" declaration, no Body
	Raises     bool // true: calls to this def use invoke under a handler
	NoReturn   bool // true: body never falls through

	mangled string // cache, set by codegen on first materialization
}

// MangledCache returns the cached mangled name and whether it was set.
func (d *Def) MangledCache() (string, bool) { return d.mangled, d.mangled != "" }

// SetMangledCache stores the mangled name computed for d.
func (d *Def) SetMangledCache(name string) { d.mangled = name }

// ConstantDef is a top-level constant with a possibly non-constant
// initializer.
type ConstantDef struct {
	Name string
	Type *types.Type
	Init *Node
}

// ClassVarDef is a per-class mutable global, initialized lazily like a
// ConstantDef but writable.
type ClassVarDef struct {
	Owner *types.Type
	Name  string
	Type  *types.Type
	Init  *Node // nil: zero-initialized
}

// Program is the top-level typed-AST unit the code generator consumes: the
// full set of user defs, constants, class vars, and the entry-point body.
type Program struct {
	Name       string
	Defs       []*Def
	Constants  []*ConstantDef
	ClassVars  []*ClassVarDef
	EntryBody  *Node // the top-level expressions lowered into __crystal_main
	EntryType  *types.Type
	SourceFile string
}
