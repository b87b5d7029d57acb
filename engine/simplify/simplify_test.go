package simplify

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/stmt"
)

func col(i int) stmt.Expr { return stmt.Col(0, i) }

func eq(lhs stmt.Expr, v int64) stmt.Expr {
	return stmt.Binary(stmt.OpEq, lhs, stmt.Lit(schema.TyI64, v))
}

func TestOrShortCircuitsOnTrue(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	e := stmt.Or(eq(col(0), 1), litBool(true), eq(col(1), 2))
	got := s.Expr(e)
	c.Assert(got.Kind, qt.Equals, stmt.ExprValue)
	v, ok := stmt.IsLiteralBool(got)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsTrue)
}

func TestOrDropsFalseOperands(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	e := stmt.Or(eq(col(0), 1), litBool(false))
	got := s.Expr(e)
	c.Assert(stmt.Equal(got, eq(col(0), 1)), qt.IsTrue)
}

func TestOrIdempotence(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	a := eq(col(0), 1)
	got := s.Expr(stmt.Or(a, a))
	c.Assert(stmt.Equal(got, a), qt.IsTrue)
}

func TestOrAbsorption(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	a := eq(col(0), 1)
	b := eq(col(1), 2)
	e := stmt.Or(a, stmt.And(a, b))
	got := s.Expr(e)
	c.Assert(stmt.Equal(got, a), qt.IsTrue)
}

func TestOrFactoring(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	a := eq(col(0), 1)
	b := eq(col(1), 2)
	cc := eq(col(2), 3)
	e := stmt.Or(stmt.And(a, b), stmt.And(a, cc))
	got := s.Expr(e)

	c.Assert(got.Kind, qt.Equals, stmt.ExprAnd)
	c.Assert(got.Items, qt.HasLen, 2)
	c.Assert(stmt.Equal(got.Items[0], a), qt.IsTrue)
	c.Assert(got.Items[1].Kind, qt.Equals, stmt.ExprOr)
}

func TestOrComplementLaw(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	a := eq(col(0), 1)
	e := stmt.Or(a, stmt.Not(a))
	got := s.Expr(e)
	v, ok := stmt.IsLiteralBool(got)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsTrue)
}

func TestOrToInList(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	e := stmt.Or(eq(col(0), 1), eq(col(0), 2), eq(col(0), 3))
	got := s.Expr(e)
	c.Assert(got.Kind, qt.Equals, stmt.ExprInList)
	c.Assert(got.Items, qt.HasLen, 3)
}

func TestAndShortCircuitsOnFalse(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	e := stmt.And(eq(col(0), 1), litBool(false))
	got := s.Expr(e)
	v, ok := stmt.IsLiteralBool(got)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsFalse)
}

func TestAndComplementLaw(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	a := eq(col(0), 1)
	e := stmt.And(a, stmt.Not(a))
	got := s.Expr(e)
	v, ok := stmt.IsLiteralBool(got)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsFalse)
}

func TestNotPushesThroughIsNull(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	e := stmt.Not(stmt.IsNull(col(0), false))
	got := s.Expr(e)
	c.Assert(got.Kind, qt.Equals, stmt.ExprIsNull)
	c.Assert(got.Negate, qt.IsTrue)
}

func TestIsNullFoldsLiteral(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	got := s.Expr(stmt.IsNull(stmt.Null(), false))
	v, ok := stmt.IsLiteralBool(got)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsTrue)
}

func TestBinaryOpConstantFolds(t *testing.T) {
	c := qt.New(t)
	s := New(nil)

	got := s.Expr(stmt.Binary(stmt.OpEq, stmt.Lit(schema.TyI64, int64(1)), stmt.Lit(schema.TyI64, int64(1))))
	v, ok := stmt.IsLiteralBool(got)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsTrue)
}
