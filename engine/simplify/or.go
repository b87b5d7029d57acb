package simplify

import "github.com/stokaro/ptah/core/stmt"

// simplifyOr runs the rewrite chain of spec §4.2 over an ExprOr node,
// ported from the reference planner's simplify_expr_or: flatten nested
// ORs, short-circuit on a literal true, drop literal-false operands,
// propagate null, drop duplicates, apply absorption and factoring, check
// the complement law, and finally try OR-to-IN conversion.
func (s *Simplifier) simplifyOr(e stmt.Expr) (stmt.Expr, bool) {
	operands := flattenOr(e.Items)

	for _, op := range operands {
		if v, ok := stmt.IsLiteralBool(op); ok && v {
			return litBool(true), true
		}
	}

	operands = filterOut(operands, func(op stmt.Expr) bool {
		v, ok := stmt.IsLiteralBool(op)
		return ok && !v
	})

	if len(operands) > 0 && allNull(operands) {
		return stmt.Null(), true
	}

	operands = dedupe(operands)

	operands = absorbOr(operands)

	if factored, ok := tryFactorOr(operands); ok {
		return factored, true
	}

	if complementPresent(operands) {
		return litBool(true), true
	}

	if converted, ok := tryOrToIn(operands); ok {
		return wrapOr(converted), true
	}

	switch len(operands) {
	case 0:
		return litBool(false), true
	case 1:
		return operands[0], true
	default:
		if exprListEqual(operands, e.Items) {
			return e, false
		}
		return stmt.Or(operands...), true
	}
}

func flattenOr(items []stmt.Expr) []stmt.Expr {
	out := make([]stmt.Expr, 0, len(items))
	for _, it := range items {
		if it.Kind == stmt.ExprOr {
			out = append(out, flattenOr(it.Items)...)
			continue
		}
		out = append(out, it)
	}
	return out
}

func filterOut(items []stmt.Expr, drop func(stmt.Expr) bool) []stmt.Expr {
	out := make([]stmt.Expr, 0, len(items))
	for _, it := range items {
		if !drop(it) {
			out = append(out, it)
		}
	}
	return out
}

func allNull(items []stmt.Expr) bool {
	for _, it := range items {
		if !stmt.IsLiteralNull(it) {
			return false
		}
	}
	return true
}

func dedupe(items []stmt.Expr) []stmt.Expr {
	out := make([]stmt.Expr, 0, len(items))
	for _, it := range items {
		dup := false
		for _, seen := range out {
			if stmt.Equal(seen, it) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	return out
}

// absorbOr implements `x or (x and y)` -> `x`: any AND operand that
// contains, as one of its own operands, some non-AND operand of the OR is
// dropped entirely.
func absorbOr(items []stmt.Expr) []stmt.Expr {
	nonAnd := filterOut(items, func(op stmt.Expr) bool { return op.Kind == stmt.ExprAnd })

	return filterOut(items, func(op stmt.Expr) bool {
		if op.Kind != stmt.ExprAnd {
			return false
		}
		for _, sub := range op.Items {
			for _, other := range nonAnd {
				if stmt.Equal(sub, other) {
					return true
				}
			}
		}
		return false
	})
}

// tryFactorOr implements `(a and b) or (a and c)` -> `a and (b or c)`.
func tryFactorOr(items []stmt.Expr) (stmt.Expr, bool) {
	if len(items) < 2 {
		return stmt.Expr{}, false
	}
	for _, op := range items {
		if op.Kind != stmt.ExprAnd {
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
			remainder[i] = litBool(true)
		case 1:
			remainder[i] = kept[0]
		default:
			remainder[i] = stmt.And(kept...)
		}
	}

	result := append(append([]stmt.Expr{}, common...), wrapOr(remainder))
	return stmt.And(result...), true
}

func wrapOr(items []stmt.Expr) stmt.Expr {
	if len(items) == 1 {
		return items[0]
	}
	return stmt.Or(items...)
}

// complementPresent implements the complement law `a or not(a)` -> `true`,
// requiring a to be provably non-nullable (spec §4.2 rule 7).
func complementPresent(items []stmt.Expr) bool {
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

// tryOrToIn groups `lhs = value` equality operands by their LHS and
// converts any group with two or more values into an IN list, leaving
// everything else untouched.
func tryOrToIn(items []stmt.Expr) ([]stmt.Expr, bool) {
	type group struct {
		lhs    stmt.Expr
		values []stmt.Expr
	}
	var groups []group
	var others []stmt.Expr

	for _, op := range items {
		if op.Kind == stmt.ExprBinaryOp && op.Op == stmt.OpEq {
			if op.Rhs.Kind == stmt.ExprValue {
				idx := -1
				for i := range groups {
					if stmt.Equal(groups[i].lhs, *op.Lhs) {
						idx = i
						break
					}
				}
				if idx == -1 {
					groups = append(groups, group{lhs: *op.Lhs})
					idx = len(groups) - 1
				}
				groups[idx].values = append(groups[idx].values, *op.Rhs)
				continue
			}
		}
		others = append(others, op)
	}

	converted := false
	result := append([]stmt.Expr{}, others...)
	for _, g := range groups {
		if len(g.values) >= 2 {
			result = append(result, stmt.InList(g.lhs, g.values...))
			converted = true
			continue
		}
		result = append(result, stmt.Binary(stmt.OpEq, g.lhs, g.values[0]))
	}
	if !converted {
		return nil, false
	}
	return result, true
}

func exprListEqual(a, b []stmt.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !stmt.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
