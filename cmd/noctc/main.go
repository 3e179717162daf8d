// Command noctc compiles a typed-AST JSON program into LLVM IR.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/codegen"
	"github.com/nocturn-lang/noctc/internal/types"
	"github.com/nocturn-lang/noctc/internal/validator"
)

func main() {
	var input string
	var output string
	var debugInfo bool
	var noVerify bool
	flag.StringVar(&input, "file", "", "typed-AST JSON program to compile (reads from stdin if not provided)")
	flag.StringVar(&output, "o", "", "output file (default: input file with .ll extension)")
	flag.BoolVar(&debugInfo, "debug", false, "emit debug info metadata")
	flag.BoolVar(&noVerify, "no-verify", false, "skip the post-emission structural verifier")
	flag.Parse()

	var data []byte
	var err error

	if input == "" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading from stdin: %v\n", err)
			os.Exit(1)
		}
	} else {
		data, err = os.ReadFile(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading file %s: %v\n", input, err)
			os.Exit(1)
		}
	}

	reg := types.NewRegistry()
	prog, err := ast.Decode(data, reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing program: %v\n", err)
		os.Exit(1)
	}
	if err := validator.New().ValidateProgram(prog); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed:\n%v\n", err)
		os.Exit(1)
	}

	gen := codegen.NewCodegen(prog, reg)
	gen.DebugInfo = debugInfo
	gen.SkipVerify = noVerify

	mod, err := gen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Code generation failed: %v\n", err)
		os.Exit(1)
	}

	if output == "" {
		if input == "" {
			output = "output.ll"
		} else {
			base := strings.TrimSuffix(input, filepath.Ext(input))
			output = base + ".ll"
		}
	}

	if err := os.WriteFile(output, []byte(mod.String()), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing LLVM IR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("LLVM IR written to %s\n", output)
}
