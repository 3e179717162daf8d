package codegen

import (
	"strconv"
	"strings"

	"github.com/nocturn-lang/noctc/internal/ast"
	"github.com/nocturn-lang/noctc/internal/types"
)

// MangledName computes the stable IR function name identifying a
// monomorphized def: its identity plus the concrete receiver type it was
// specialized against. Two calls
// that compute the same mangled name for the same def must resolve to
// one cached IR function.
func MangledName(d *ast.Def, owner *types.Type) string {
	if cached, ok := d.MangledCache(); ok && cachedOwnerMatches(cached, owner) {
		return cached
	}
	var b strings.Builder
	if owner != nil {
		b.WriteString(owner.Name)
		b.WriteByte('#')
	}
	b.WriteString(sanitizeDefName(d.Name))
	if owner != nil {
		b.WriteByte('@')
		b.WriteString(strconv.Itoa(owner.TypeID()))
	}
	name := b.String()
	d.SetMangledCache(name)
	return name
}

// cachedOwnerMatches guards against a pathological cache collision: a
// def materialized once under owner A must never be returned for a
// different owner B. In practice a *Def's owner never changes after
// decode, so this is a defensive equality check, not a real code path.
func cachedOwnerMatches(cached string, owner *types.Type) bool {
	if owner == nil {
		return true
	}
	return strings.HasSuffix(cached, "@"+strconv.Itoa(owner.TypeID()))
}

// sanitizeDefName maps operator-overload def names ("+", "[]=") to
// IR-identifier-safe tokens; ordinary identifiers pass through.
func sanitizeDefName(name string) string {
	replacer := strings.NewReplacer(
		"+", "op_add", "-", "op_sub", "*", "op_mul", "/", "op_div", "%", "op_mod",
		"==", "op_eq", "!=", "op_ne", "<", "op_lt", "<=", "op_le", ">", "op_gt", ">=", "op_ge",
		"&", "op_and", "|", "op_or", "^", "op_xor", "<<", "op_shl", ">>", "op_shr",
		"~", "op_bnot", "!", "op_not", "[]", "op_index", "[]=", "op_index_set",
		"?", "_q", "=", "_eq",
	)
	return replacer.Replace(name)
}
