// Package validator checks a decoded ast.Program for the structural
// invariants internal/codegen assumes and never re-checks itself: unique
// names, in-scope references, well-formed rescue clauses. Call arity is
// not checked.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// Validator accumulates errors across a single ValidateProgram call
// rather than failing fast on the first one, so a caller sees every
// problem in a malformed program at once.
type Validator struct {
	errors []string
}

// New creates a new validator.
func New() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// ValidateProgram validates a complete program.
func (v *Validator) ValidateProgram(p *ast.Program) error {
	v.errors = v.errors[:0]

	if p.Name == "" {
		v.addError("program name cannot be empty")
	}

	defNames := make(map[string]bool)
	for i, def := range p.Defs {
		key := defKey(def)
		if defNames[key] {
			v.addError("def %d: duplicate definition %q", i, key)
		}
		defNames[key] = true
		if err := v.validateDef(def); err != nil {
			v.addError("def %d (%s): %v", i, def.Name, err)
		}
	}

	constNames := make(map[string]bool)
	for i, c := range p.Constants {
		if c.Name == "" {
			v.addError("constant %d: name cannot be empty", i)
		} else if !isValidIdentifier(c.Name) {
			v.addError("constant %d: invalid name %q", i, c.Name)
		}
		if constNames[c.Name] {
			v.addError("duplicate constant name: %s", c.Name)
		}
		constNames[c.Name] = true
		if c.Init == nil {
			v.addError("constant %s: missing initializer", c.Name)
			continue
		}
		scope := map[string]bool{}
		if err := v.validateNode(c.Init, scope); err != nil {
			v.addError("constant %s: %v", c.Name, err)
		}
	}

	for i, cv := range p.ClassVars {
		if cv.Name == "" {
			v.addError("class var %d: name cannot be empty", i)
		}
		if cv.Owner == nil {
			v.addError("class var %d (%s): missing owner type", i, cv.Name)
		}
		if cv.Init != nil {
			if err := v.validateNode(cv.Init, map[string]bool{}); err != nil {
				v.addError("class var %s: %v", cv.Name, err)
			}
		}
	}

	if p.EntryBody != nil {
		if err := v.validateNode(p.EntryBody, map[string]bool{}); err != nil {
			v.addError("entry: %v", err)
		}
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

func defKey(d *ast.Def) string {
	if d.Owner == nil {
		return d.Name
	}
	return d.Owner.Name + "#" + d.Name
}

// validateDef validates a single def's signature and body.
func (v *Validator) validateDef(d *ast.Def) error {
	if d.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !isValidIdentifier(d.Name) && !isValidOperatorName(d.Name) {
		return fmt.Errorf("invalid def name %q", d.Name)
	}

	scope := make(map[string]bool)
	paramNames := make(map[string]bool)
	for i, p := range d.Args {
		if p.Name == "" {
			return fmt.Errorf("param %d: name cannot be empty", i)
		}
		if paramNames[p.Name] {
			return fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		paramNames[p.Name] = true
		scope[p.Name] = true
		if p.Type == nil {
			return fmt.Errorf("param %s: missing type", p.Name)
		}
	}

	if d.External {
		if d.Body != nil {
			return fmt.Errorf("external def must not have a body")
		}
		return nil
	}

	if d.Body == nil {
		return fmt.Errorf("body cannot be nil for a non-external def")
	}
	if err := v.validateNode(d.Body, scope); err != nil {
		return fmt.Errorf("body: %v", err)
	}
	return nil
}

// validateNode recursively validates a Node, threading a scope map of
// local names currently in scope through each nested body so a
// variable reference can be checked against what's actually bound at
// that point.
func (v *Validator) validateNode(n *ast.Node, scope map[string]bool) error {
	if n == nil {
		return fmt.Errorf("nil node")
	}
	switch n.Kind {
	case ast.Literal:
		return v.validateLiteral(n)

	case ast.VarRef:
		if n.Name == "" {
			return fmt.Errorf("var_ref must have a name")
		}
		if n.VarKind == ast.LocalVar && !scope[n.Name] {
			return fmt.Errorf("undefined local variable: %s", n.Name)
		}

	case ast.Assign:
		if n.Name == "" && n.Target == nil {
			return fmt.Errorf("assign must have a name or target")
		}
		if n.Value == nil {
			return fmt.Errorf("assign must have a value")
		}
		if n.Target != nil {
			if err := v.validateNode(n.Target, scope); err != nil {
				return fmt.Errorf("assign target: %v", err)
			}
		}
		if err := v.validateNode(n.Value, scope); err != nil {
			return fmt.Errorf("assign value: %v", err)
		}
		if n.VarKind == ast.LocalVar && n.Name != "" {
			scope[n.Name] = true
		}

	case ast.If:
		if n.Cond == nil {
			return fmt.Errorf("if must have a condition")
		}
		if err := v.validateNode(n.Cond, scope); err != nil {
			return fmt.Errorf("if condition: %v", err)
		}
		if n.Then == nil {
			return fmt.Errorf("if must have a then branch")
		}
		if err := v.validateNode(n.Then, copyScope(scope)); err != nil {
			return fmt.Errorf("if then: %v", err)
		}
		if n.Else != nil {
			if err := v.validateNode(n.Else, copyScope(scope)); err != nil {
				return fmt.Errorf("if else: %v", err)
			}
		}

	case ast.While:
		if n.Cond == nil {
			return fmt.Errorf("while must have a condition")
		}
		if err := v.validateNode(n.Cond, scope); err != nil {
			return fmt.Errorf("while condition: %v", err)
		}
		if n.Body == nil {
			return fmt.Errorf("while must have a body")
		}
		if err := v.validateNode(n.Body, copyScope(scope)); err != nil {
			return fmt.Errorf("while body: %v", err)
		}

	case ast.Return:
		if n.Value != nil {
			if err := v.validateNode(n.Value, scope); err != nil {
				return fmt.Errorf("return value: %v", err)
			}
		}

	case ast.Break:
		if n.Value != nil {
			if err := v.validateNode(n.Value, scope); err != nil {
				return fmt.Errorf("break value: %v", err)
			}
		}

	case ast.Yield:
		for i, a := range n.YieldArgs {
			if err := v.validateNode(a, scope); err != nil {
				return fmt.Errorf("yield arg %d: %v", i, err)
			}
		}

	case ast.Call:
		if n.Name == "" {
			return fmt.Errorf("call must have a name")
		}
		if n.Receiver != nil {
			if err := v.validateNode(n.Receiver, scope); err != nil {
				return fmt.Errorf("call receiver: %v", err)
			}
		}
		for i, a := range n.Args {
			if err := v.validateNode(a, scope); err != nil {
				return fmt.Errorf("call arg %d: %v", i, err)
			}
		}
		if len(n.TargetDefs) == 0 && n.MacroResult == nil {
			return fmt.Errorf("call %s: no resolved target defs", n.Name)
		}
		if n.Block != nil {
			blockScope := copyScope(scope)
			for _, p := range n.Block.Params {
				if p.Name == "" {
					return fmt.Errorf("block param: name cannot be empty")
				}
				blockScope[p.Name] = true
			}
			if n.Block.Body == nil {
				return fmt.Errorf("block must have a body")
			}
			if err := v.validateNode(n.Block.Body, blockScope); err != nil {
				return fmt.Errorf("block body: %v", err)
			}
		}

	case ast.BinaryPrimitive:
		if n.Left == nil || n.Right == nil {
			return fmt.Errorf("binary_primitive must have left and right operands")
		}
		if err := v.validateNode(n.Left, scope); err != nil {
			return fmt.Errorf("left operand: %v", err)
		}
		if err := v.validateNode(n.Right, scope); err != nil {
			return fmt.Errorf("right operand: %v", err)
		}

	case ast.UnaryPrimitive:
		if n.Subject == nil {
			return fmt.Errorf("unary_primitive must have an operand")
		}
		if err := v.validateNode(n.Subject, scope); err != nil {
			return fmt.Errorf("operand: %v", err)
		}

	case ast.PointerPrimitive:
		if n.PtrOp != ast.PointerNew && n.PtrOp != ast.PointerNull && n.PtrOperand == nil {
			return fmt.Errorf("pointer_primitive must have an operand")
		}
		if n.PtrOperand != nil {
			if err := v.validateNode(n.PtrOperand, scope); err != nil {
				return fmt.Errorf("pointer operand: %v", err)
			}
		}
		if n.PtrOffset != nil {
			if err := v.validateNode(n.PtrOffset, scope); err != nil {
				return fmt.Errorf("pointer offset: %v", err)
			}
		}
		if n.PtrValue != nil {
			if err := v.validateNode(n.PtrValue, scope); err != nil {
				return fmt.Errorf("pointer value: %v", err)
			}
		}

	case ast.IsA:
		if n.Subject == nil {
			return fmt.Errorf("is_a must have a subject")
		}
		if n.CheckType == nil {
			return fmt.Errorf("is_a must name a check type")
		}
		if err := v.validateNode(n.Subject, scope); err != nil {
			return fmt.Errorf("is_a subject: %v", err)
		}

	case ast.ExceptionHandler:
		if n.Protected == nil {
			return fmt.Errorf("exception_handler must have a protected body")
		}
		if err := v.validateNode(n.Protected, copyScope(scope)); err != nil {
			return fmt.Errorf("protected: %v", err)
		}
		if len(n.Rescues) == 0 && n.Ensure == nil {
			return fmt.Errorf("exception_handler must have at least one rescue or an ensure")
		}
		for i, r := range n.Rescues {
			if len(r.Types) == 0 {
				return fmt.Errorf("rescue %d: must name at least one type", i)
			}
			if r.Body == nil {
				return fmt.Errorf("rescue %d: must have a body", i)
			}
			rescueScope := copyScope(scope)
			if r.BindName != "" {
				rescueScope[r.BindName] = true
			}
			if err := v.validateNode(r.Body, rescueScope); err != nil {
				return fmt.Errorf("rescue %d: %v", i, err)
			}
		}
		if n.Ensure != nil {
			if err := v.validateNode(n.Ensure, copyScope(scope)); err != nil {
				return fmt.Errorf("ensure: %v", err)
			}
		}

	case ast.SimpleOr:
		if n.Left == nil || n.Right == nil {
			return fmt.Errorf("simple_or must have left and right operands")
		}
		if err := v.validateNode(n.Left, scope); err != nil {
			return fmt.Errorf("simple_or left: %v", err)
		}
		if err := v.validateNode(n.Right, scope); err != nil {
			return fmt.Errorf("simple_or right: %v", err)
		}

	case ast.Expressions:
		seqScope := scope
		for i, c := range n.Children {
			if err := v.validateNode(c, seqScope); err != nil {
				return fmt.Errorf("expression %d: %v", i, err)
			}
		}

	case ast.Nop:
		// always valid

	default:
		return fmt.Errorf("unknown node kind: %d", n.Kind)
	}
	return nil
}

func (v *Validator) validateLiteral(n *ast.Node) error {
	switch n.LitKind {
	case ast.LitNil, ast.LitBool:
		return nil
	case ast.LitNumber:
		if n.NumberText == "" {
			return fmt.Errorf("number literal missing source text")
		}
	case ast.LitChar, ast.LitString, ast.LitSymbol:
		return nil
	default:
		return fmt.Errorf("unknown literal kind: %d", n.LitKind)
	}
	return nil
}

func (v *Validator) addError(format string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func copyScope(scope map[string]bool) map[string]bool {
	out := make(map[string]bool, len(scope))
	for k, val := range scope {
		out[k] = val
	}
	return out
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*[?!]?$`)

// isValidIdentifier validates a Nocturn identifier: letters/digits/
// underscore, optionally suffixed with ? or ! (predicate/bang methods).
func isValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

var operatorNames = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"&": true, "|": true, "^": true, "<<": true, ">>": true, "~": true,
	"[]": true, "[]=": true, "!": true,
}

// isValidOperatorName validates the operator-overload def names Nocturn
// allows in place of a plain identifier (e.g. "+", "[]=").
func isValidOperatorName(name string) bool {
	return operatorNames[name]
}

// ValidateJSON decodes a JSON-encoded program and validates it in one
// step. The decoded program is returned so a caller doesn't have to
// decode twice; it owns a private registry, so a caller that needs the
// registry for a later stage (e.g. codegen) should decode and validate
// separately instead of calling this convenience wrapper.
func ValidateJSON(input []byte) (*ast.Program, error) {
	reg := types.NewRegistry()
	prog, err := ast.Decode(input, reg)
	if err != nil {
		return nil, fmt.Errorf("invalid program: %v", err)
	}
	if err := New().ValidateProgram(prog); err != nil {
		return nil, err
	}
	return prog, nil
}
