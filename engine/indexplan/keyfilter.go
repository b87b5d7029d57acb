package indexplan

import (
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/eval"
)

// KeyFilter is a pre-evaluated set of primary-key tuples, produced by
// TryBuildKeyFilter (spec §4.6 step 3) from a predicate whose key values
// are constants that fold with no upstream inputs. It mirrors engine/mir.KeyFilter
// without importing engine/mir, matching this package's existing
// dependency boundary (indexplan knows nothing about MIR).
type KeyFilter struct {
	Columns []int
	Keys    []stmt.Expr // each a Record matching len(Columns), in Columns order
}

// TryBuildKeyFilter reports whether indexFilter (the IndexFilter half of a
// Plan chosen over the primary key, Index == -1) reduces to an explicit set
// of key tuples: every column in pk must be equality-constrained by
// indexFilter, and the matched value on the non-column side of each
// equality must fold to a compile-time constant (engine/eval.Fold)
// independent of any row or argument context. splitFilter only ever routes
// plain equality conjuncts into IndexFilter (never InList), so a successful
// reduction always yields exactly one key tuple.
func TryBuildKeyFilter(pk []int, indexFilter *stmt.Expr) (*KeyFilter, bool) {
	if len(pk) == 0 || indexFilter == nil {
		return nil, false
	}

	matched := make(map[int]stmt.Expr, len(pk))
	for _, conj := range flattenAnd(*indexFilter) {
		if conj.Kind != stmt.ExprBinaryOp || conj.Op != stmt.OpEq {
			return nil, false
		}
		lhs, rhs := *conj.Lhs, *conj.Rhs
		col, ok := asColumn(lhs)
		value := rhs
		if !ok {
			col, ok = asColumn(rhs)
			value = lhs
		}
		if !ok {
			return nil, false
		}
		if _, dup := matched[col]; dup {
			return nil, false
		}
		matched[col] = value
	}

	keys := make([]stmt.Expr, len(pk))
	for i, col := range pk {
		value, ok := matched[col]
		if !ok {
			return nil, false
		}
		if _, err := eval.Fold(value); err != nil {
			return nil, false
		}
		keys[i] = value
	}

	return &KeyFilter{Columns: append([]int{}, pk...), Keys: []stmt.Expr{{Kind: stmt.ExprRecord, Items: keys}}}, true
}
