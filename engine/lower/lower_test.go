package lower

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/schema/mapbuild"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/capability"
)

func userAppSchema() *schema.Schema {
	userID := schema.ModelID(0)
	return &schema.Schema{
		Models: []schema.Model{
			{
				ID:   userID,
				Name: "User",
				Fields: []schema.Field{
					{ID: schema.FieldID{Model: userID, Index: 0}, Name: "id", Kind: schema.FieldPrimitive, Ty: schema.TyI64},
					{ID: schema.FieldID{Model: userID, Index: 1}, Name: "name", Kind: schema.FieldPrimitive, Ty: schema.TyString},
				},
				PrimaryKey: schema.PrimaryKey{Fields: []int{0}},
			},
		},
	}
}

func TestLowerSourceRewritesModelToTable(t *testing.T) {
	c := qt.New(t)

	app := userAppSchema()
	db, err := mapbuild.Build(app, capability.Postgres())
	c.Assert(err, qt.IsNil)

	filter := stmt.Binary(stmt.OpEq, stmt.Field(0, schema.FieldID{Model: 0, Index: 1}), stmt.Lit(schema.TyString, "alice"))
	root := &stmt.Statement{
		Kind:   stmt.StmtQuery,
		Source: stmt.Source{Kind: stmt.SourceModel, Model: 0},
		Filter: &filter,
		Returning: &stmt.Returning{
			Kind: stmt.ReturningModel,
		},
	}

	l := New(app, db, capability.Postgres(), nil)
	arena, err := l.Lower(root)
	c.Assert(err, qt.IsNil)

	lowered := arena.Get(arena.Root).Stmt
	c.Assert(lowered.Source.Kind, qt.Equals, stmt.SourceTable)
	c.Assert(lowered.Filter.Kind, qt.Equals, stmt.ExprBinaryOp)
	c.Assert(lowered.Filter.Lhs.Kind, qt.Equals, stmt.ExprColumn)
	c.Assert(lowered.Returning.Kind, qt.Equals, stmt.ReturningExpr)
}

func TestLowerRejectsPrimaryKeyUpdate(t *testing.T) {
	c := qt.New(t)

	app := userAppSchema()
	db, err := mapbuild.Build(app, capability.Postgres())
	c.Assert(err, qt.IsNil)

	root := &stmt.Statement{
		Kind:   stmt.StmtUpdate,
		Source: stmt.Source{Kind: stmt.SourceModel, Model: 0},
		Assignments: []stmt.Assignment{
			{Field: schema.FieldID{Model: 0, Index: 0}, Value: stmt.Lit(schema.TyI64, int64(5))},
		},
	}

	l := New(app, db, capability.Postgres(), nil)
	_, err = l.Lower(root)
	c.Assert(err, qt.ErrorMatches, ".*primary key update.*")
}
