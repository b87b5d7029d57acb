package stmt

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ptah/core/schema"
)

func TestEqualStructural(t *testing.T) {
	c := qt.New(t)

	a := Binary(OpEq, Col(0, 1), Lit(schema.TyString, "x"))
	b := Binary(OpEq, Col(0, 1), Lit(schema.TyString, "x"))
	d := Binary(OpEq, Col(0, 1), Lit(schema.TyString, "y"))

	c.Assert(Equal(a, b), qt.IsTrue)
	c.Assert(Equal(a, d), qt.IsFalse)
}

func TestNonNullable(t *testing.T) {
	c := qt.New(t)

	c.Assert(NonNullable(Lit(schema.TyBool, true)), qt.IsTrue)
	c.Assert(NonNullable(Null()), qt.IsFalse)
	c.Assert(NonNullable(Col(0, 0)), qt.IsFalse)
	c.Assert(NonNullable(Binary(OpEq, Col(0, 0), Null())), qt.IsTrue)
	c.Assert(NonNullable(And(Binary(OpEq, Col(0, 0), Null()), Col(0, 1))), qt.IsFalse)
}

func TestWalkVisitsEveryNode(t *testing.T) {
	c := qt.New(t)

	e := And(Binary(OpEq, Col(0, 0), Lit(schema.TyI64, int64(1))), Not(IsNull(Col(0, 1), false)))
	var kinds []ExprKind
	Walk(e, func(n Expr) { kinds = append(kinds, n.Kind) })

	c.Assert(kinds, qt.DeepEquals, []ExprKind{
		ExprAnd, ExprBinaryOp, ExprColumn, ExprValue, ExprNot, ExprIsNull, ExprColumn,
	})
}

func TestTransformRewritesBottomUp(t *testing.T) {
	c := qt.New(t)

	e := And(Lit(schema.TyBool, true), Lit(schema.TyBool, false))
	out := Transform(e, func(n Expr) Expr {
		if n.Kind == ExprAnd {
			return Lit(schema.TyBool, true) // pretend-fold for the test
		}
		return n
	})
	v, ok := IsLiteralBool(out)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsTrue)
}
