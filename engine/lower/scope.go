package lower

import "github.com/stokaro/ptah/engine/hir"

// scope is one level of the lowerer's scope stack (spec §4.3): the
// statement currently being lowered, and — while walking an insert
// values row — the row index letting sibling references resolve.
type scope struct {
	stmtID   hir.StatementID
	rowIndex *int
}

func (l *Lowerer) pushScope(s scope) {
	l.scopes = append(l.scopes, s)
}

func (l *Lowerer) popScope() {
	l.scopes = l.scopes[:len(l.scopes)-1]
}

func (l *Lowerer) currentScope() scope {
	return l.scopes[len(l.scopes)-1]
}

// scopeAt returns the scope `nesting` levels above the current one: 0 is
// the current statement, 1 its immediate parent, and so on.
func (l *Lowerer) scopeAt(nesting int) (scope, bool) {
	idx := len(l.scopes) - 1 - nesting
	if idx < 0 {
		return scope{}, false
	}
	return l.scopes[idx], true
}
