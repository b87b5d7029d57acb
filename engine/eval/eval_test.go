package eval

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/stmt"
)

func TestFoldLiteral(t *testing.T) {
	c := qt.New(t)
	v, err := Fold(stmt.Lit(schema.TyI64, int64(42)))
	c.Assert(err, qt.IsNil)
	c.Assert(v.V, qt.Equals, int64(42))
}

func TestFoldBinaryOp(t *testing.T) {
	c := qt.New(t)
	v, err := Fold(stmt.Binary(stmt.OpEq, stmt.Lit(schema.TyI64, int64(1)), stmt.Lit(schema.TyI64, int64(1))))
	c.Assert(err, qt.IsNil)
	c.Assert(v.V, qt.Equals, true)
}

func TestCompileColumnProjection(t *testing.T) {
	c := qt.New(t)
	f, err := Compile(stmt.Col(0, 1))
	c.Assert(err, qt.IsNil)

	row := Row{stmt.Lit(schema.TyI64, int64(1)).Value, stmt.Lit(schema.TyString, "bob").Value}
	v, err := f(row, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(v.V, qt.Equals, "bob")
}

func TestCompileRejectsSubstatement(t *testing.T) {
	c := qt.New(t)
	_, err := Compile(stmt.Expr{Kind: stmt.ExprStmt})
	c.Assert(err, qt.ErrorMatches, ".*not evaluable outside the executor.*")
}
