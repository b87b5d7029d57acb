// Package simplify applies the algebraic rewrite rules of spec §4.2 to an
// expression tree: flattening, short-circuiting, null propagation,
// idempotence, absorption, factoring, complement elimination, and
// OR-to-IN conversion. It never changes an expression's observable value
// for any well-typed input; it only makes that value cheaper to compute
// or easier for a later stage (index planning, MIR lowering) to match
// against.
package simplify

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/config"
)

// Simplifier holds the options a simplify pass runs with. The zero value
// is usable and runs with config.DefaultPlannerOptions' locale (none, so
// LIKE/BEGINS_WITH prefix comparisons aren't collation-normalized).
type Simplifier struct {
	opts    *config.PlannerOptions
	collate *collate.Collator
}

// New builds a Simplifier from opts. A nil opts uses the defaults.
func New(opts *config.PlannerOptions) *Simplifier {
	if opts == nil {
		opts = config.DefaultPlannerOptions()
	}
	s := &Simplifier{opts: opts}
	if opts.CollationLocale != "" {
		if tag, err := language.Parse(opts.CollationLocale); err == nil {
			s.collate = collate.New(tag)
		}
	}
	return s
}

// Expr simplifies a single expression bottom-up: every child is
// simplified first, then the rewrite rules for the resulting node's Kind
// run once against the simplified children. Rewrites that themselves
// produce a further-simplifiable shape (e.g. factoring producing a new
// nested And/Or) are re-run until the expression stops changing.
func (s *Simplifier) Expr(e stmt.Expr) stmt.Expr {
	return stmt.Transform(e, s.rewriteOnce)
}

// Statement simplifies every expression reachable from a statement's
// Filter, Condition, Returning.Expr, and Assignment values. It does not
// descend into sub-statements (InsertSource, Project/Map subqueries);
// those are simplified independently when the lowerer visits them, since
// simplification and lowering interleave per statement scope.
func (s *Simplifier) Statement(stmt_ *stmt.Statement) {
	stmt.TransformStatement(stmt_, s.rewriteOnce)
}

func (s *Simplifier) rewriteOnce(e stmt.Expr) stmt.Expr {
	for {
		next, changed := s.rewriteStep(e)
		if !changed {
			return next
		}
		e = next
	}
}

func (s *Simplifier) rewriteStep(e stmt.Expr) (stmt.Expr, bool) {
	switch e.Kind {
	case stmt.ExprOr:
		return s.simplifyOr(e)
	case stmt.ExprAnd:
		return s.simplifyAnd(e)
	case stmt.ExprNot:
		return s.simplifyNot(e)
	case stmt.ExprIsNull:
		return s.simplifyIsNull(e)
	case stmt.ExprBinaryOp:
		return s.simplifyBinaryOp(e)
	case stmt.ExprCast:
		return s.simplifyCast(e)
	case stmt.ExprLike:
		return s.simplifyLike(e)
	case stmt.ExprDecodeEnum:
		return s.simplifyDecodeEnum(e)
	default:
		return e, false
	}
}

func litBool(b bool) stmt.Expr {
	return stmt.Expr{Kind: stmt.ExprValue, Value: stmt.BoolValue(b)}
}

func valuesEqual(a, b stmt.Value) bool {
	if a.Null || b.Null {
		return a.Null == b.Null
	}
	return a.Ty == b.Ty && a.V == b.V
}
