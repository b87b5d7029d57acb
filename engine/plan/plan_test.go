package plan

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/schema/mapbuild"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/capability"
	"github.com/stokaro/ptah/engine/hir"
	"github.com/stokaro/ptah/engine/lower"
	"github.com/stokaro/ptah/engine/mir"
)

func newSingleStatementArena(s *stmt.Statement) *hir.Arena {
	a := hir.NewArena()
	a.Root = a.Alloc(s)
	return a
}

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

func lowerQuery(c *qt.C, cap capability.Capability) (*mapbuild.DBSchema, *stmt.Statement) {
	app := userAppSchema()
	db, err := mapbuild.Build(app, cap)
	c.Assert(err, qt.IsNil)

	filter := stmt.Binary(stmt.OpEq, stmt.Field(0, schema.FieldID{Model: 0, Index: 1}), stmt.Lit(schema.TyString, "alice"))
	root := &stmt.Statement{
		Kind:      stmt.StmtQuery,
		Source:    stmt.Source{Kind: stmt.SourceModel, Model: 0},
		Filter:    &filter,
		Returning: &stmt.Returning{Kind: stmt.ReturningModel},
	}

	l := lower.New(app, db, cap, nil)
	arena, err := l.Lower(root)
	c.Assert(err, qt.IsNil)

	return db, arena.Get(arena.Root).Stmt
}

func TestPlanSQLQueryEmitsExecStatement(t *testing.T) {
	c := qt.New(t)
	db, lowered := lowerQuery(c, capability.Postgres())

	p := New(newSingleStatementArena(lowered), db, capability.Postgres())
	graph, err := p.Plan()
	c.Assert(err, qt.IsNil)
	c.Assert(len(graph.Nodes) > 0, qt.IsTrue)

	var sawExec bool
	for _, n := range graph.Nodes {
		if n.Op.Kind == mir.OpExecStatement {
			sawExec = true
		}
	}
	c.Assert(sawExec, qt.IsTrue)
}

func TestPlanKeyValueQueryUsesQueryPk(t *testing.T) {
	c := qt.New(t)
	db, lowered := lowerQuery(c, capability.DynamoDB())

	arena := newSingleStatementArena(lowered)
	p := New(arena, db, capability.DynamoDB())
	graph, err := p.Plan()
	c.Assert(err, qt.IsNil)

	var kvNode *mir.Node
	for i := range graph.Nodes {
		if graph.Nodes[i].Op.Kind == mir.OpQueryPk {
			kvNode = &graph.Nodes[i]
		}
	}
	c.Assert(kvNode, qt.Not(qt.IsNil))
}

func TestPlanUpdateWithNoAssignmentsIsConst(t *testing.T) {
	c := qt.New(t)
	app := userAppSchema()
	db, err := mapbuild.Build(app, capability.Postgres())
	c.Assert(err, qt.IsNil)

	root := &stmt.Statement{
		Kind:   stmt.StmtUpdate,
		Source: stmt.Source{Kind: stmt.SourceTable, Table: 0},
	}
	arena := newSingleStatementArena(root)

	p := New(arena, db, capability.Postgres())
	graph, err := p.Plan()
	c.Assert(err, qt.IsNil)
	c.Assert(graph.Nodes[graph.Root].Op.Kind, qt.Equals, mir.OpConst)
}
