package codegen

import (
	"github.com/llir/llvm/ir/metadata"

	"github.com/nocturn-lang/noctc/internal/ast"
)

// emitCompileUnitMetadata attaches one module-level named metadata node
// describing the source this module was compiled from, the nearest
// llir/llvm equivalent of a DWARF compile unit available without pulling
// in a full DWARF emitter. Called from emitDebugInfo for every declared
// function when Codegen.DebugInfo is set; only the first call emits the
// node.
func (g *Codegen) emitCompileUnitMetadata(sourceFile string) {
	if g.debugCompileUnit {
		return
	}
	g.debugCompileUnit = true
	cu := &metadata.Tuple{
		Fields: []metadata.Field{
			&metadata.String{Value: "noctc"},
			&metadata.String{Value: sourceFile},
		},
	}
	g.module.NewNamedMetadataDef("llvm.dbg.cu", cu)
}

// emitDebugInfo attaches a per-function metadata node naming the def
// and its mangled IR name when DebugInfo is enabled. Kept intentionally
// small: full DWARF-quality line tables are out of scope.
func (g *Codegen) emitDebugInfo(def *ast.Def, irName string) {
	if !g.DebugInfo {
		return
	}
	g.emitCompileUnitMetadata(g.prog.SourceFile)
	sub := &metadata.Tuple{
		Fields: []metadata.Field{
			&metadata.String{Value: def.Name},
			&metadata.String{Value: irName},
		},
	}
	g.module.NewMetadataDef(sub)
}
