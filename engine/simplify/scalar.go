package simplify

import (
	"strings"

	"github.com/stokaro/ptah/core/stmt"
)

// simplifyNot folds double negation and pushes a NOT through IsNull by
// flipping its Negate flag, so later stages see "is not null" directly
// instead of `not(is_null(x))`.
func (s *Simplifier) simplifyNot(e stmt.Expr) (stmt.Expr, bool) {
	inner := *e.Lhs
	if inner.Kind == stmt.ExprNot {
		return *inner.Lhs, true
	}
	if inner.Kind == stmt.ExprIsNull {
		return stmt.IsNull(*inner.Lhs, !inner.Negate), true
	}
	if v, ok := stmt.IsLiteralBool(inner); ok {
		return litBool(!v), true
	}
	return e, false
}

// simplifyIsNull folds IsNull over a literal and over an expression
// already proven non-nullable by NonNullable.
func (s *Simplifier) simplifyIsNull(e stmt.Expr) (stmt.Expr, bool) {
	target := *e.Lhs
	if target.Kind == stmt.ExprValue {
		isNull := target.Value.Null
		return litBool(isNull != e.Negate), true
	}
	if stmt.NonNullable(target) {
		return litBool(e.Negate), true
	}
	return e, false
}

// simplifyBinaryOp constant-folds a binary comparison over two literal
// operands.
func (s *Simplifier) simplifyBinaryOp(e stmt.Expr) (stmt.Expr, bool) {
	lhs, rhs := *e.Lhs, *e.Rhs
	if lhs.Kind != stmt.ExprValue || rhs.Kind != stmt.ExprValue {
		return e, false
	}
	if lhs.Value.Null || rhs.Value.Null {
		return e, false
	}

	switch e.Op {
	case stmt.OpEq:
		return litBool(valuesEqual(lhs.Value, rhs.Value)), true
	case stmt.OpNe:
		return litBool(!valuesEqual(lhs.Value, rhs.Value)), true
	default:
		return e, false
	}
}

// simplifyCast drops a Cast over a literal whose AbstractType is already
// the cast's target, and collapses a Cast directly over another Cast to
// the same type. A Cast of a literal to a different type is left as is.
func (s *Simplifier) simplifyCast(e stmt.Expr) (stmt.Expr, bool) {
	inner := *e.Lhs
	if inner.Kind == stmt.ExprValue && inner.Value.Ty == e.CastTo {
		return inner, true
	}
	if inner.Kind == stmt.ExprCast && inner.CastTo == e.CastTo {
		return inner, true
	}
	return e, false
}

// simplifyLike applies only when the simplifier was built with a
// CollationLocale; without one, LIKE is left unchanged. With one, it
// normalizes a prefix LIKE pattern ("foo%") into BeginsWith form and
// collation-folds the literal prefix (spec §4.2's "narrower rewrites"):
// if the locale's collator treats the prefix as equivalent to its lowercase
// form, the pattern is folded to that lowercase form so a storage layer
// doing a plain byte-wise BEGINS_WITH still matches case-insensitively
// under that locale.
func (s *Simplifier) simplifyLike(e stmt.Expr) (stmt.Expr, bool) {
	if e.BeginsWith || s.collate == nil {
		return e, false
	}
	if len(e.Pattern) == 0 || e.Pattern[len(e.Pattern)-1] != '%' {
		return e, false
	}
	prefix := e.Pattern[:len(e.Pattern)-1]
	for _, c := range prefix {
		if c == '%' || c == '_' {
			return e, false
		}
	}

	out := e
	out.BeginsWith = true
	if folded := strings.ToLower(prefix); folded != prefix && s.collate.CompareString(prefix, folded) == 0 {
		out.Pattern = folded + "%"
	}
	return out, true
}

// simplifyDecodeEnum folds a DecodeEnum node whose operand is a literal
// int64 discriminant known at plan time into true when it equals Tag and
// false otherwise.
func (s *Simplifier) simplifyDecodeEnum(e stmt.Expr) (stmt.Expr, bool) {
	target := *e.Lhs
	if target.Kind != stmt.ExprValue || target.Value.Null {
		return e, false
	}
	tag, ok := target.Value.V.(int64)
	if !ok {
		return e, false
	}
	return litBool(int(tag) == e.Tag), true
}
