package ast

import (
	"encoding/json"
	"fmt"

	"github.com/nocturn-lang/noctc/internal/types"
)

// The wire format is how a front end hands a fully typed program to
// the code generator: a JSON document naming every type by a small integer
// id and every node by a "kind" string tag. Decode resolves ids into the
// pointer-identity graph internal/codegen actually walks.

// WireProgram is the top-level JSON document.
type WireProgram struct {
	Name       string          `json:"name"`
	SourceFile string          `json:"source_file"`
	Types      []WireType      `json:"types"`
	Defs       []WireDef       `json:"defs"`
	Constants  []WireConstant  `json:"constants,omitempty"`
	ClassVars  []WireClassVar  `json:"class_vars,omitempty"`
	Entry      *WireNode       `json:"entry"`
	EntryType  int             `json:"entry_type"`
}

// WireType describes one node of the type graph, referenced elsewhere by
// Id.
type WireType struct {
	ID           int              `json:"id"`
	Kind         string           `json:"kind"`
	Name         string           `json:"name"`
	IntBits      int              `json:"int_bits,omitempty"`
	IntSigned    bool             `json:"int_signed,omitempty"`
	FloatBits    int              `json:"float_bits,omitempty"`
	Members      []int            `json:"members,omitempty"`
	Inner        int              `json:"inner,omitempty"`
	Subtypes     []int            `json:"subtypes,omitempty"`
	InstanceVars []WireInstanceVar `json:"instance_vars,omitempty"`
	ByVal        bool             `json:"by_val,omitempty"`
}

// WireInstanceVar names one field of a class/struct/union WireType.
type WireInstanceVar struct {
	Name string `json:"name"`
	Type int    `json:"type"`
}

// WireParam names one formal parameter.
type WireParam struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	ByVal bool   `json:"by_val,omitempty"`
	Out   bool   `json:"out,omitempty"`
}

// WireDef is a method or function definition.
type WireDef struct {
	Name       string      `json:"name"`
	Owner      int         `json:"owner,omitempty"` // 0 = top-level
	Args       []WireParam `json:"args,omitempty"`
	ReturnType int         `json:"return_type,omitempty"`
	Body       *WireNode   `json:"body,omitempty"`
	External   bool        `json:"external,omitempty"`
	Raises     bool        `json:"raises,omitempty"`
	NoReturn   bool        `json:"no_return,omitempty"`
}

// WireConstant is a top-level constant.
type WireConstant struct {
	Name string    `json:"name"`
	Type int       `json:"type"`
	Init *WireNode `json:"init"`
}

// WireClassVar is a per-class mutable global.
type WireClassVar struct {
	Owner int       `json:"owner"`
	Name  string    `json:"name"`
	Type  int       `json:"type"`
	Init  *WireNode `json:"init,omitempty"`
}

// WireRescue mirrors Rescue.
type WireRescue struct {
	BindName string    `json:"bind_name,omitempty"`
	Types    []int     `json:"types"`
	Body     *WireNode `json:"body"`
}

// WireBlock mirrors Block.
type WireBlock struct {
	Params []WireParam `json:"params"`
	Body   *WireNode   `json:"body"`
}

// WireNode is the JSON shape of a Node. Only the fields relevant to Kind
// are populated by an encoder; Decode ignores the rest.
type WireNode struct {
	Kind string `json:"kind"`
	Type int    `json:"type,omitempty"` // 0 = no static type (void statement)

	LitKind    string `json:"lit_kind,omitempty"`
	BoolVal    bool   `json:"bool_val,omitempty"`
	NumberKind string `json:"number_kind,omitempty"`
	NumberText string `json:"number_text,omitempty"`
	CharVal    int32  `json:"char_val,omitempty"`
	StringVal  string `json:"string_val,omitempty"`
	SymbolVal  string `json:"symbol_val,omitempty"`

	VarKind string `json:"var_kind,omitempty"`
	Name    string `json:"name,omitempty"`
	Target  *WireNode `json:"target,omitempty"`
	Value   *WireNode `json:"value,omitempty"`

	Cond    *WireNode `json:"cond,omitempty"`
	Then    *WireNode `json:"then,omitempty"`
	Else    *WireNode `json:"else,omitempty"`
	Body    *WireNode `json:"body,omitempty"`
	RunOnce bool      `json:"run_once,omitempty"`

	YieldArgs []*WireNode `json:"yield_args,omitempty"`

	Receiver   *WireNode   `json:"receiver,omitempty"`
	Args       []*WireNode `json:"args,omitempty"`
	TargetDefs []string    `json:"target_defs,omitempty"` // mangled-independent def keys, see defKey
	Block      *WireBlock  `json:"block,omitempty"`

	PtrOp      string    `json:"ptr_op,omitempty"`
	PtrOperand *WireNode `json:"ptr_operand,omitempty"`
	PtrOffset  *WireNode `json:"ptr_offset,omitempty"`
	PtrValue   *WireNode `json:"ptr_value,omitempty"`

	Subject   *WireNode `json:"subject,omitempty"`
	CheckType int       `json:"check_type,omitempty"`

	Protected *WireNode    `json:"protected,omitempty"`
	Rescues   []WireRescue `json:"rescues,omitempty"`
	Ensure    *WireNode    `json:"ensure,omitempty"`

	Left  *WireNode `json:"left,omitempty"`
	Right *WireNode `json:"right,omitempty"`

	Op  string `json:"op,omitempty"`
	UOp string `json:"uop,omitempty"`

	Children []*WireNode `json:"children,omitempty"`
}

// Decode parses a JSON-encoded WireProgram and resolves it into a Program
// whose Nodes and Defs reference a shared, pointer-identity *types.Type
// graph built on reg.
func Decode(data []byte, reg *types.Registry) (*Program, error) {
	var wp WireProgram
	if err := json.Unmarshal(data, &wp); err != nil {
		return nil, fmt.Errorf("ast: decode program: %w", err)
	}
	d := &decoder{reg: reg, types: map[int]*types.Type{}, defs: map[string]*Def{}}
	return d.decodeProgram(&wp)
}

type decoder struct {
	reg   *types.Registry
	types map[int]*types.Type
	defs  map[string]*Def
}

func (d *decoder) decodeProgram(wp *WireProgram) (*Program, error) {
	// Pass 1: allocate every type so forward/cyclic references resolve.
	for _, wt := range wp.Types {
		k, err := parseTypeKind(wt.Kind)
		if err != nil {
			return nil, err
		}
		d.types[wt.ID] = d.reg.Alloc(k, wt.Name)
	}
	// Pass 2: fill cross-references and scalar fields, then finalize sizes.
	for _, wt := range wp.Types {
		t := d.types[wt.ID]
		t.IntBits = wt.IntBits
		t.IntSigned = wt.IntSigned
		t.FloatBits = wt.FloatBits
		t.ByVal = wt.ByVal
		t.AsSelf = wt.Kind == "class" || wt.Kind == "string" ||
			(wt.Kind == "c_struct" && !wt.ByVal) || (wt.Kind == "c_union" && !wt.ByVal)
		for _, m := range wt.Members {
			t.Members = append(t.Members, d.mustType(m))
		}
		if wt.Inner != 0 {
			t.Inner = d.mustType(wt.Inner)
		}
		for _, s := range wt.Subtypes {
			sub := d.mustType(s)
			sub.Base = t
			t.HierarchySubtypes = append(t.HierarchySubtypes, sub)
		}
		for _, iv := range wt.InstanceVars {
			t.InstanceVars = append(t.InstanceVars, types.InstanceVar{Name: iv.Name, Type: d.mustType(iv.Type)})
		}
	}
	for _, t := range d.types {
		t.Finalize()
	}

	prog := &Program{Name: wp.Name, SourceFile: wp.SourceFile}
	if wp.EntryType != 0 {
		prog.EntryType = d.mustType(wp.EntryType)
	}

	// Pass 1 for defs: allocate so TargetDefs (resolved by key) can find
	// forward-declared methods.
	for i := range wp.Defs {
		wd := &wp.Defs[i]
		def := &Def{Name: wd.Name, External: wd.External, Raises: wd.Raises, NoReturn: wd.NoReturn}
		if wd.Owner != 0 {
			def.Owner = d.mustType(wd.Owner)
		}
		if wd.ReturnType != 0 {
			def.ReturnType = d.mustType(wd.ReturnType)
		}
		for _, a := range wd.Args {
			def.Args = append(def.Args, Param{Name: a.Name, Type: d.mustType(a.Type), ByVal: a.ByVal, Out: a.Out})
		}
		prog.Defs = append(prog.Defs, def)
		d.defs[defKey(wd.Owner, wd.Name)] = def
	}
	for i, wd := range wp.Defs {
		if wd.Body != nil {
			body, err := d.decodeNode(wd.Body)
			if err != nil {
				return nil, fmt.Errorf("ast: def %s: %w", wd.Name, err)
			}
			prog.Defs[i].Body = body
		}
	}

	for _, wc := range wp.Constants {
		init, err := d.decodeNode(wc.Init)
		if err != nil {
			return nil, fmt.Errorf("ast: constant %s: %w", wc.Name, err)
		}
		prog.Constants = append(prog.Constants, &ConstantDef{Name: wc.Name, Type: d.mustType(wc.Type), Init: init})
	}

	for _, wcv := range wp.ClassVars {
		var init *Node
		if wcv.Init != nil {
			var err error
			init, err = d.decodeNode(wcv.Init)
			if err != nil {
				return nil, fmt.Errorf("ast: class var %s: %w", wcv.Name, err)
			}
		}
		prog.ClassVars = append(prog.ClassVars, &ClassVarDef{
			Owner: d.mustType(wcv.Owner), Name: wcv.Name, Type: d.mustType(wcv.Type), Init: init,
		})
	}

	if wp.Entry != nil {
		entry, err := d.decodeNode(wp.Entry)
		if err != nil {
			return nil, fmt.Errorf("ast: entry: %w", err)
		}
		prog.EntryBody = entry
	}

	return prog, nil
}

func (d *decoder) mustType(id int) *types.Type {
	t, ok := d.types[id]
	if !ok {
		panic(fmt.Sprintf("ast: undefined type id %d", id))
	}
	return t
}

// defKey is the lookup key TargetDefs entries use to find a previously (or
// later) declared Def: "Owner.Name" for methods, bare "Name" for
// top-level functions. Owner ids, not pointers, are used here because def
// resolution happens before every type's final pointer identity is
// guaranteed stable across the two decode passes.
func defKey(ownerID int, name string) string {
	if ownerID == 0 {
		return name
	}
	return fmt.Sprintf("%d.%s", ownerID, name)
}

func (d *decoder) decodeNode(w *WireNode) (*Node, error) {
	if w == nil {
		return nil, nil
	}
	n := &Node{}
	if w.Type != 0 {
		n.Type = d.mustType(w.Type)
	}
	var err error
	switch w.Kind {
	case "literal":
		n.Kind = Literal
		n.LitKind, err = parseLiteralKind(w.LitKind)
		n.BoolVal = w.BoolVal
		n.NumberKind, _ = parseNumberKind(w.NumberKind)
		n.NumberText = w.NumberText
		n.CharVal = w.CharVal
		n.StringVal = w.StringVal
		n.SymbolVal = w.SymbolVal
	case "var_ref":
		n.Kind = VarRef
		n.VarKind, err = parseVarKind(w.VarKind)
		n.Name = w.Name
	case "assign":
		n.Kind = Assign
		n.VarKind, err = parseVarKind(w.VarKind)
		n.Name = w.Name
		n.Target, err = d.decodeNode(w.Target)
		if err == nil {
			n.Value, err = d.decodeNode(w.Value)
		}
	case "if":
		n.Kind = If
		n.Cond, err = d.decodeNode(w.Cond)
		if err == nil {
			n.Then, err = d.decodeNode(w.Then)
		}
		if err == nil {
			n.Else, err = d.decodeNode(w.Else)
		}
	case "while":
		n.Kind = While
		n.RunOnce = w.RunOnce
		n.Cond, err = d.decodeNode(w.Cond)
		if err == nil {
			n.Body, err = d.decodeNode(w.Body)
		}
	case "return":
		n.Kind = Return
		n.Value, err = d.decodeNode(w.Value)
	case "break":
		n.Kind = Break
		n.Value, err = d.decodeNode(w.Value)
	case "yield":
		n.Kind = Yield
		n.YieldArgs, err = d.decodeNodes(w.YieldArgs)
	case "call":
		n.Kind = Call
		n.Name = w.Name
		n.Receiver, err = d.decodeNode(w.Receiver)
		if err == nil {
			n.Args, err = d.decodeNodes(w.Args)
		}
		for _, k := range w.TargetDefs {
			def, ok := d.defs[k]
			if !ok {
				return nil, fmt.Errorf("call %s: undefined target def %q", w.Name, k)
			}
			n.TargetDefs = append(n.TargetDefs, def)
		}
		if w.Block != nil {
			params := make([]Param, len(w.Block.Params))
			for i, p := range w.Block.Params {
				params[i] = Param{Name: p.Name, Type: d.mustType(p.Type), ByVal: p.ByVal}
			}
			body, berr := d.decodeNode(w.Block.Body)
			if berr != nil {
				return nil, berr
			}
			n.Block = &Block{Params: params, Body: body}
		}
	case "binary_primitive":
		n.Kind = BinaryPrimitive
		n.Op, err = parseBinOp(w.Op)
		if err == nil {
			n.Left, err = d.decodeNode(w.Left)
		}
		if err == nil {
			n.Right, err = d.decodeNode(w.Right)
		}
	case "unary_primitive":
		n.Kind = UnaryPrimitive
		n.UOp, err = parseUnOp(w.UOp)
		n.Subject, err = d.decodeNode(w.Subject)
	case "pointer_primitive":
		n.Kind = PointerPrimitive
		n.PtrOp, err = parsePointerOp(w.PtrOp)
		if err == nil {
			n.PtrOperand, err = d.decodeNode(w.PtrOperand)
		}
		if err == nil {
			n.PtrOffset, err = d.decodeNode(w.PtrOffset)
		}
		if err == nil {
			n.PtrValue, err = d.decodeNode(w.PtrValue)
		}
	case "is_a":
		n.Kind = IsA
		n.Subject, err = d.decodeNode(w.Subject)
		if w.CheckType != 0 {
			n.CheckType = d.mustType(w.CheckType)
		}
	case "exception_handler":
		n.Kind = ExceptionHandler
		n.Protected, err = d.decodeNode(w.Protected)
		for _, r := range w.Rescues {
			body, rerr := d.decodeNode(r.Body)
			if rerr != nil {
				return nil, rerr
			}
			rescue := Rescue{BindName: r.BindName, Body: body}
			for _, tid := range r.Types {
				rescue.Types = append(rescue.Types, d.mustType(tid))
			}
			n.Rescues = append(n.Rescues, rescue)
		}
		if err == nil {
			n.Ensure, err = d.decodeNode(w.Ensure)
		}
	case "simple_or":
		n.Kind = SimpleOr
		n.Left, err = d.decodeNode(w.Left)
		if err == nil {
			n.Right, err = d.decodeNode(w.Right)
		}
	case "expressions":
		n.Kind = Expressions
		n.Children, err = d.decodeNodes(w.Children)
	case "nop":
		n.Kind = Nop
	default:
		return nil, fmt.Errorf("unknown node kind %q", w.Kind)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (d *decoder) decodeNodes(ws []*WireNode) ([]*Node, error) {
	if ws == nil {
		return nil, nil
	}
	out := make([]*Node, len(ws))
	for i, w := range ws {
		n, err := d.decodeNode(w)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseTypeKind(s string) (types.Kind, error) {
	switch s {
	case "void":
		return types.Void, nil
	case "nil":
		return types.NilKind, nil
	case "bool":
		return types.Bool, nil
	case "int":
		return types.Int, nil
	case "float":
		return types.Float, nil
	case "char":
		return types.Char, nil
	case "symbol":
		return types.Symbol, nil
	case "string":
		return types.StringKind, nil
	case "pointer":
		return types.Pointer, nil
	case "c_struct":
		return types.CStruct, nil
	case "c_union":
		return types.CUnion, nil
	case "class":
		return types.Class, nil
	case "union":
		return types.Union, nil
	case "nilable":
		return types.Nilable, nil
	case "hierarchy":
		return types.Hierarchy, nil
	case "no_return":
		return types.NoReturn, nil
	default:
		return 0, fmt.Errorf("unknown type kind %q", s)
	}
}

func parseLiteralKind(s string) (LiteralKind, error) {
	switch s {
	case "nil":
		return LitNil, nil
	case "bool":
		return LitBool, nil
	case "number":
		return LitNumber, nil
	case "char":
		return LitChar, nil
	case "string":
		return LitString, nil
	case "symbol":
		return LitSymbol, nil
	default:
		return 0, fmt.Errorf("unknown literal kind %q", s)
	}
}

func parseNumberKind(s string) (NumberKind, error) {
	switch s {
	case "i8":
		return I8, nil
	case "i16":
		return I16, nil
	case "i32", "":
		return I32, nil
	case "i64":
		return I64, nil
	case "u8":
		return U8, nil
	case "u16":
		return U16, nil
	case "u32":
		return U32, nil
	case "u64":
		return U64, nil
	case "f32":
		return F32, nil
	case "f64":
		return F64, nil
	default:
		return 0, fmt.Errorf("unknown number kind %q", s)
	}
}

func parseVarKind(s string) (VarKind, error) {
	switch s {
	case "local":
		return LocalVar, nil
	case "instance":
		return InstanceVar, nil
	case "class":
		return ClassVar, nil
	case "global":
		return GlobalVar, nil
	case "constant":
		return ConstantVar, nil
	case "casted":
		return CastedVar, nil
	default:
		return 0, fmt.Errorf("unknown var kind %q", s)
	}
}

func parsePointerOp(s string) (PointerOp, error) {
	switch s {
	case "new":
		return PointerNew, nil
	case "get":
		return PointerGet, nil
	case "set":
		return PointerSet, nil
	case "add":
		return PointerAdd, nil
	case "null":
		return PointerNull, nil
	case "address":
		return PointerAddress, nil
	default:
		return 0, fmt.Errorf("unknown pointer op %q", s)
	}
}

var binOpNames = map[string]BinOp{
	"add": BinAdd, "sub": BinSub, "mul": BinMul, "sdiv": BinSDiv, "udiv": BinUDiv,
	"srem": BinSRem, "urem": BinURem, "fadd": BinFAdd, "fsub": BinFSub, "fmul": BinFMul,
	"fdiv": BinFDiv, "and": BinAnd, "or": BinOr, "xor": BinXor, "shl": BinShl,
	"lshr": BinLShr, "ashr": BinAShr, "icmp_eq": BinICmpEq, "icmp_ne": BinICmpNe,
	"icmp_slt": BinICmpSLt, "icmp_sle": BinICmpSLe, "icmp_sgt": BinICmpSGt, "icmp_sge": BinICmpSGe,
	"fcmp_eq": BinFCmpEq, "fcmp_ne": BinFCmpNe, "fcmp_lt": BinFCmpLt, "fcmp_le": BinFCmpLe,
	"fcmp_gt": BinFCmpGt, "fcmp_ge": BinFCmpGe,
}

func parseBinOp(s string) (BinOp, error) {
	if op, ok := binOpNames[s]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown binary op %q", s)
}

func parseUnOp(s string) (UnOp, error) {
	switch s {
	case "neg":
		return UnNeg, nil
	case "fneg":
		return UnFNeg, nil
	case "not":
		return UnNot, nil
	case "bitnot":
		return UnBitNot, nil
	default:
		return 0, fmt.Errorf("unknown unary op %q", s)
	}
}
