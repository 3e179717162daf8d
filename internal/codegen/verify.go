package codegen

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
)

// Verify performs the structural checks of the emitted module that don't
// require a real LLVM toolchain: exactly one entry point, every
// function's first block holds only allocas and ends in an unconditional
// branch, and every block in every function ends with a terminator. This is not a substitute for llvm's own verifier — it
// catches the mistakes this emitter itself is prone to making, not
// arbitrary malformed IR.
func (g *Codegen) Verify(mod *ir.Module) error {
	var problems []string

	mainCount := 0
	for _, fn := range mod.Funcs {
		if fn.Name() == "__crystal_main" {
			mainCount++
		}
	}
	if mainCount != 1 {
		problems = append(problems, fmt.Sprintf("expected exactly one __crystal_main, found %d", mainCount))
	}

	for _, fn := range mod.Funcs {
		if len(fn.Blocks) == 0 {
			continue // external declaration
		}
		for _, blk := range fn.Blocks {
			if blk.Term == nil {
				problems = append(problems, fmt.Sprintf("function %s: block %s has no terminator", fn.Ident(), blk.Ident()))
			}
		}
		if err := verifyAllocaBlockFirst(fn); err != "" {
			problems = append(problems, err)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// verifyAllocaBlockFirst checks the fixed prologue shape every
// materialized function follows: its first block holds every alloca and
// nothing else observable, branching unconditionally into the rest of
// the function.
func verifyAllocaBlockFirst(fn *ir.Func) string {
	first := fn.Blocks[0]
	for _, inst := range first.Insts {
		switch inst.(type) {
		case *ir.InstAlloca:
		default:
			return fmt.Sprintf("function %s: alloca block contains a non-alloca instruction %T", fn.Ident(), inst)
		}
	}
	if _, ok := first.Term.(*ir.TermBr); !ok {
		return fmt.Sprintf("function %s: alloca block does not end in an unconditional branch", fn.Ident())
	}
	return ""
}
