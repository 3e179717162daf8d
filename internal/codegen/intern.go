package codegen

import (
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
)

// internTable caches one private global per distinct string literal
// value, keyed by content so two calls that emit the same literal text
// share a global.
type internTable struct {
	strings map[string]*ir.Global
	symbols map[string]int
	symOrder []string
}

func newInternTable() *internTable {
	return &internTable{strings: make(map[string]*ir.Global), symbols: make(map[string]int)}
}

// InternString returns a pointer to the boxed-string global for s,
// creating it on first reference: a private constant
// `[i32 length][bytes...][\0]`.
func (g *Codegen) InternString(s string) *ir.Global {
	if gl, ok := g.interned.strings[s]; ok {
		return gl
	}
	bytes := constant.NewCharArrayFromString(s + "\x00")
	layout := irtypes.NewStruct(irtypes.I32, bytes.Type())
	init := constant.NewStruct(layout.(*irtypes.StructType),
		constant.NewInt(irtypes.I32, int64(len(s))), bytes)
	gv := g.module.NewGlobalDef("", init)
	gv.Immutable = true
	gv.Linkage = enum.LinkagePrivate
	g.interned.strings[s] = gv
	return gv
}

// InternSymbol records a symbol name; its stable 0-based id, the name's
// index in the sorted set of every recorded symbol, is assigned later by
// FinalizeSymbolTable.
// Because the final id depends on the complete symbol set, callers must
// not read SymbolID for a fresh name until FinalizeSymbolTable runs, so
// Generate records every symbol literal up front, then finalizes the
// table before any symbol is referenced by IR.
func (g *Codegen) InternSymbol(name string) {
	if _, ok := g.interned.symbols[name]; ok {
		return
	}
	g.interned.symbols[name] = -1 // placeholder until finalized
	g.interned.symOrder = append(g.interned.symOrder, name)
}

// FinalizeSymbolTable assigns ids and builds the module-level
// `symbol_table` global array of lowered string constants indexed by
// symbol id.
func (g *Codegen) FinalizeSymbolTable() {
	names := append([]string(nil), g.interned.symOrder...)
	sort.Strings(names)
	entries := make([]constant.Constant, len(names))
	for i, n := range names {
		g.interned.symbols[n] = i
		entries[i] = g.InternString(n)
	}
	if len(entries) == 0 {
		return
	}
	arrType := irtypes.NewArray(uint64(len(entries)), entries[0].Type())
	tableInit := constant.NewArray(arrType, entries...)
	table := g.module.NewGlobalDef("symbol_table", tableInit)
	table.Immutable = true
	g.symbolTable = table
}

// SymbolID returns the finalized id for name. Panics (an internal
// assertion) if FinalizeSymbolTable has not yet run or name was never
// interned — both indicate a codegen ordering bug, not user input.
func (g *Codegen) SymbolID(name string) int {
	id, ok := g.interned.symbols[name]
	if !ok || id < 0 {
		internalAssertion("SymbolID: %q not finalized", name)
	}
	return id
}
