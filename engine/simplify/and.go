package simplify

import "github.com/stokaro/ptah/core/stmt"

// simplifyAnd mirrors simplifyOr under De Morgan duality (spec §4.2 lists
// the And rules symmetrically with Or's, and the reference planner has
// no separate expr_and module — the same flatten/short-circuit/
// null-propagation/idempotence/absorption/factoring shape applies with
// "and" and "or" swapped).
func (s *Simplifier) simplifyAnd(e stmt.Expr) (stmt.Expr, bool) {
	operands := flattenAnd(e.Items)

	for _, op := range operands {
		if v, ok := stmt.IsLiteralBool(op); ok && !v {
			return litBool(false), true
		}
	}

	operands = filterOut(operands, func(op stmt.Expr) bool {
		v, ok := stmt.IsLiteralBool(op)
		return ok && v
	})

	if len(operands) > 0 && allNull(operands) {
		return stmt.Null(), true
	}

	operands = dedupe(operands)

	operands = absorbAnd(operands)

	if factored, ok := tryFactorAnd(operands); ok {
		return factored, true
	}

	if complementPresentAnd(operands) {
		return litBool(false), true
	}

	switch len(operands) {
	case 0:
		return litBool(true), true
	case 1:
		return operands[0], true
	default:
		if exprListEqual(operands, e.Items) {
			return e, false
		}
		return stmt.And(operands...), true
	}
}

func flattenAnd(items []stmt.Expr) []stmt.Expr {
	out := make([]stmt.Expr, 0, len(items))
	for _, it := range items {
		if it.Kind == stmt.ExprAnd {
			out = append(out, flattenAnd(it.Items)...)
			continue
		}
		out = append(out, it)
	}
	return out
}

// absorbAnd implements `x and (x or y)` -> `x`: any OR operand that
// contains, as one of its own operands, some non-OR operand of the AND
// is dropped entirely.
func absorbAnd(items []stmt.Expr) []stmt.Expr {
	nonOr := filterOut(items, func(op stmt.Expr) bool { return op.Kind == stmt.ExprOr })

	return filterOut(items, func(op stmt.Expr) bool {
		if op.Kind != stmt.ExprOr {
			return false
		}
		for _, sub := range op.Items {
			for _, other := range nonOr {
				if stmt.Equal(sub, other) {
					return true
				}
			}
		}
		return false
	})
}

// tryFactorAnd implements `(a or b) and (a or c)` -> `a or (b and c)`.
func tryFactorAnd(items []stmt.Expr) (stmt.Expr, bool) {
	if len(items) < 2 {
		return stmt.Expr{}, false
	}
	for _, op := range items {
		if op.Kind != stmt.ExprOr {
			return stmt.Expr{}, false
		}
	}

	first := items[0]
	var common []stmt.Expr
	for _, cand := range first.Items {
		inAll := true
		for _, other := range items[1:] {
			found := false
			for _, sub := range other.Items {
				if stmt.Equal(sub, cand) {
					found = true
					break
				}
			}
			if !found {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, cand)
		}
	}
	if len(common) == 0 {
		return stmt.Expr{}, false
	}

	remainder := make([]stmt.Expr, len(items))
	for i, op := range items {
		kept := filterOut(op.Items, func(sub stmt.Expr) bool {
			for _, c := range common {
				if stmt.Equal(sub, c) {
					return true
				}
			}
			return false
		})
		switch len(kept) {
		case 0:
			remainder[i] = litBool(false)
		case 1:
			remainder[i] = kept[0]
		default:
			remainder[i] = stmt.Or(kept...)
		}
	}

	andOfRemainder := remainder[0]
	if len(remainder) > 1 {
		andOfRemainder = stmt.And(remainder...)
	}
	result := append(append([]stmt.Expr{}, common...), andOfRemainder)
	return stmt.Or(result...), true
}

// complementPresentAnd implements `a and not(a)` -> `false`, requiring a
// to be provably non-nullable.
func complementPresentAnd(items []stmt.Expr) bool {
	var negated []stmt.Expr
	for _, op := range items {
		if op.Kind == stmt.ExprNot {
			negated = append(negated, *op.Lhs)
		}
	}
	for _, op := range items {
		if op.Kind == stmt.ExprNot {
			continue
		}
		if !stmt.NonNullable(op) {
			continue
		}
		for _, neg := range negated {
			if stmt.Equal(op, neg) {
				return true
			}
		}
	}
	return false
}
