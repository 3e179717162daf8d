package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
)

// CodegenError is returned by Generate when emission fails. It always
// carries whatever partial module had been built at the point of
// failure, so a caller can dump it for debugging even after an
// internal assertion panic.
type CodegenError struct {
	Err     error
	Module  *ir.Module
	Verify  bool // true: this is a verification failure, not an internal panic
	Partial bool // true: Module may be incomplete (panic recovered mid-emission)
}

func (e *CodegenError) Error() string {
	if e.Verify {
		return fmt.Sprintf("module verification failed: %v", e.Err)
	}
	return fmt.Sprintf("codegen: %v", e.Err)
}

func (e *CodegenError) Unwrap() error { return e.Err }

// internalAssertion panics with a stack-carrying error. Every recover in
// Generate turns this into a *CodegenError; nothing in the emitter calls
// recover itself; invariants are expected to hold for any well-typed
// input, so a panic here always indicates the fully typed AST violated
// a contract the type oracle was supposed to guarantee.
func internalAssertion(format string, args ...interface{}) {
	panic(errors.WithStack(errors.Errorf(format, args...)))
}
