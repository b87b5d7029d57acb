// Package indexplan chooses which index a lowered statement's filter
// should be served from and splits the filter into the three pieces of
// spec §4.4: the predicate expressible against the chosen index's key
// columns, the predicate safe to apply during fetch, and the residual
// predicate that must run in memory afterward.
package indexplan

import (
	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/capability"
)

// Plan is the output of Choose: the selected table index plus the
// filter split across index/result/post stages.
type Plan struct {
	// Index is the chosen index's position in the table's Indices slice,
	// or -1 for the synthetic primary-key index.
	Index int

	// IndexFilter is the predicate expressible against the chosen
	// index's key columns.
	IndexFilter *stmt.Expr

	// ResultFilter applies to rows fetched by the index and is safe for
	// the backend to evaluate during the fetch itself.
	ResultFilter *stmt.Expr

	// PostFilter is the residual predicate applied in memory after
	// fetching.
	PostFilter *stmt.Expr
}

// Choose implements spec §4.4's selection policy over table for filter
// (already lowered to column-level expressions).
func Choose(table *schema.Table, cap capability.Capability, filter *stmt.Expr) *Plan {
	if filter == nil {
		return &Plan{Index: -1}
	}

	constrained := equalityConstrainedColumns(*filter)

	if coversPrefix(table.PrimaryKey, constrained) {
		return splitFilter(-1, table.PrimaryKey, cap, *filter)
	}

	best := -2
	bestLen := 0
	for i, idx := range table.Indices {
		cols := indexColumns(idx)
		n := prefixLen(cols, constrained)
		if n == 0 {
			continue
		}
		if n > bestLen || (n == bestLen && (best == -2 || len(cols) > len(indexColumns(table.Indices[best])) || idx.Unique)) {
			best = i
			bestLen = n
		}
	}

	if best == -2 {
		return splitFilter(-1, table.PrimaryKey, cap, *filter)
	}
	return splitFilter(best, indexColumns(table.Indices[best]), cap, *filter)
}

func indexColumns(idx schema.TableIndex) []int {
	cols := make([]int, len(idx.Parts))
	for i, p := range idx.Parts {
		cols[i] = p.Column
	}
	return cols
}

// equalityConstrainedColumns collects every column equality-constrained
// by filter, via a structural walk over And/Or/BinaryOp(Eq)/InList (spec
// §4.3's detection rule, reused here for index selection).
func equalityConstrainedColumns(filter stmt.Expr) map[int]bool {
	out := map[int]bool{}
	stmt.Walk(filter, func(e stmt.Expr) {
		switch e.Kind {
		case stmt.ExprBinaryOp:
			if e.Op == stmt.OpEq {
				if col, ok := asColumn(*e.Lhs); ok {
					out[col] = true
				}
				if col, ok := asColumn(*e.Rhs); ok {
					out[col] = true
				}
			}
		case stmt.ExprInList:
			if col, ok := asColumn(*e.Lhs); ok {
				out[col] = true
			}
		}
	})
	return out
}

func asColumn(e stmt.Expr) (int, bool) {
	if e.Kind == stmt.ExprColumn {
		return e.Column.Column, true
	}
	return 0, false
}

func coversPrefix(cols []int, constrained map[int]bool) bool {
	return len(cols) > 0 && prefixLen(cols, constrained) == len(cols)
}

// prefixLen returns how many leading columns of cols are
// equality-constrained, stopping at the first gap.
func prefixLen(cols []int, constrained map[int]bool) int {
	n := 0
	for _, c := range cols {
		if !constrained[c] {
			break
		}
		n++
	}
	return n
}

// splitFilter partitions filter into index/result/post stages: an
// equality conjunct against one of keyCols goes to IndexFilter; any
// other conjunct goes to ResultFilter if the backend supports a
// post-fetch predicate (cap.SQL), otherwise to PostFilter.
func splitFilter(index int, keyCols []int, cap capability.Capability, filter stmt.Expr) *Plan {
	keySet := map[int]bool{}
	for _, c := range keyCols {
		keySet[c] = true
	}

	conjuncts := flattenAnd(filter)
	var indexParts, otherParts []stmt.Expr

	for _, conj := range conjuncts {
		if conj.Kind == stmt.ExprBinaryOp && conj.Op == stmt.OpEq {
			if col, ok := asColumn(*conj.Lhs); ok && keySet[col] {
				indexParts = append(indexParts, conj)
				continue
			}
		}
		otherParts = append(otherParts, conj)
	}

	plan := &Plan{Index: index}
	if len(indexParts) > 0 {
		f := andOf(indexParts)
		plan.IndexFilter = &f
	}
	if len(otherParts) > 0 {
		f := andOf(otherParts)
		if cap.SQL {
			plan.ResultFilter = &f
		} else {
			plan.PostFilter = &f
		}
	}
	return plan
}

func flattenAnd(e stmt.Expr) []stmt.Expr {
	if e.Kind != stmt.ExprAnd {
		return []stmt.Expr{e}
	}
	var out []stmt.Expr
	for _, it := range e.Items {
		out = append(out, flattenAnd(it)...)
	}
	return out
}

func andOf(items []stmt.Expr) stmt.Expr {
	if len(items) == 1 {
		return items[0]
	}
	return stmt.And(items...)
}
