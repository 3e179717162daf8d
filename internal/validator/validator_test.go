package validator

import (
	"strings"
	"testing"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

func boolLit(v bool) *ast.Node {
	return &ast.Node{Kind: ast.Literal, LitKind: ast.LitBool, BoolVal: v}
}

func numberLit(text string) *ast.Node {
	return &ast.Node{Kind: ast.Literal, LitKind: ast.LitNumber, NumberKind: ast.I32, NumberText: text}
}

func TestValidateProgram(t *testing.T) {
	reg := types.NewRegistry()
	intT := reg.NewInt(32, true)

	mainDef := func(body *ast.Node) *ast.Def {
		return &ast.Def{Name: "main", ReturnType: intT, Body: body}
	}

	tests := []struct {
		name    string
		program func() *ast.Program
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid program",
			program: func() *ast.Program {
				return &ast.Program{
					Name: "test",
					Defs: []*ast.Def{mainDef(numberLit("0"))},
				}
			},
			wantErr: false,
		},
		{
			name: "empty program name",
			program: func() *ast.Program {
				return &ast.Program{Defs: []*ast.Def{mainDef(numberLit("0"))}}
			},
			wantErr: true,
			errMsg:  "program name cannot be empty",
		},
		{
			name: "duplicate def names",
			program: func() *ast.Program {
				return &ast.Program{
					Name: "test",
					Defs: []*ast.Def{mainDef(numberLit("0")), mainDef(numberLit("1"))},
				}
			},
			wantErr: true,
			errMsg:  "duplicate definition",
		},
		{
			name: "non-external def missing body",
			program: func() *ast.Program {
				return &ast.Program{
					Name: "test",
					Defs: []*ast.Def{{Name: "main", ReturnType: intT}},
				}
			},
			wantErr: true,
			errMsg:  "body cannot be nil",
		},
		{
			name: "external def with body is invalid",
			program: func() *ast.Program {
				return &ast.Program{
					Name: "test",
					Defs: []*ast.Def{{Name: "puts", External: true, Body: numberLit("0")}},
				}
			},
			wantErr: true,
			errMsg:  "must not have a body",
		},
		{
			name: "undefined local variable",
			program: func() *ast.Program {
				ref := &ast.Node{Kind: ast.VarRef, VarKind: ast.LocalVar, Name: "missing"}
				return &ast.Program{Name: "test", Defs: []*ast.Def{mainDef(ref)}}
			},
			wantErr: true,
			errMsg:  "undefined local variable",
		},
		{
			name: "assign brings a local into scope before it's read",
			program: func() *ast.Program {
				assign := &ast.Node{
					Kind: ast.Assign, VarKind: ast.LocalVar, Name: "x",
					Value: numberLit("1"),
				}
				read := &ast.Node{Kind: ast.VarRef, VarKind: ast.LocalVar, Name: "x"}
				seq := &ast.Node{Kind: ast.Expressions, Children: []*ast.Node{assign, read}}
				return &ast.Program{Name: "test", Defs: []*ast.Def{mainDef(seq)}}
			},
			wantErr: false,
		},
		{
			name: "call with no resolved target defs",
			program: func() *ast.Program {
				call := &ast.Node{Kind: ast.Call, Name: "unresolved"}
				return &ast.Program{Name: "test", Defs: []*ast.Def{mainDef(call)}}
			},
			wantErr: true,
			errMsg:  "no resolved target defs",
		},
		{
			name: "exception handler with neither rescue nor ensure",
			program: func() *ast.Program {
				h := &ast.Node{Kind: ast.ExceptionHandler, Protected: numberLit("0")}
				return &ast.Program{Name: "test", Defs: []*ast.Def{mainDef(h)}}
			},
			wantErr: true,
			errMsg:  "must have at least one rescue or an ensure",
		},
		{
			name: "rescue binds exception name into its own body scope",
			program: func() *ast.Program {
				exType := reg.NewClass("IndexError", nil)
				bound := &ast.Node{Kind: ast.VarRef, VarKind: ast.LocalVar, Name: "e"}
				h := &ast.Node{
					Kind:      ast.ExceptionHandler,
					Protected: numberLit("0"),
					Rescues: []ast.Rescue{
						{BindName: "e", Types: []*types.Type{exType}, Body: bound},
					},
				}
				return &ast.Program{Name: "test", Defs: []*ast.Def{mainDef(h)}}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().ValidateProgram(tt.program())
			if tt.wantErr && err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errMsg)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error containing %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateJSONRoundTrip(t *testing.T) {
	input := []byte(`{
		"name": "test",
		"types": [{"id": 1, "kind": "int", "int_bits": 32, "int_signed": true}],
		"defs": [{
			"name": "main",
			"return_type": 1,
			"body": {"kind": "literal", "type": 1, "lit_kind": "number", "number_text": "0"}
		}]
	}`)

	prog, err := ValidateJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prog.Name != "test" {
		t.Fatalf("expected program name %q, got %q", "test", prog.Name)
	}
	if len(prog.Defs) != 1 || prog.Defs[0].Name != "main" {
		t.Fatalf("expected a single main def, got %+v", prog.Defs)
	}
}

func TestValidateJSONRejectsUnknownDefTarget(t *testing.T) {
	input := []byte(`{
		"name": "test",
		"types": [{"id": 1, "kind": "int", "int_bits": 32, "int_signed": true}],
		"defs": [{
			"name": "main",
			"return_type": 1,
			"body": {"kind": "call", "name": "missing", "target_defs": ["missing"]}
		}]
	}`)

	if _, err := ValidateJSON(input); err == nil {
		t.Fatalf("expected an error for an unresolved call target, got nil")
	}
}
