package indexplan

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/capability"
)

func sampleTable() *schema.Table {
	return &schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id"}, {Name: "tenant_id"}, {Name: "email"}, {Name: "age"},
		},
		PrimaryKey: []int{0},
		Indices: []schema.TableIndex{
			{Name: "by_tenant_email", Unique: true, Parts: []schema.TableIndexPart{{Column: 1}, {Column: 2}}},
		},
	}
}

func TestChoosePrimaryKeyWhenFullyConstrained(t *testing.T) {
	c := qt.New(t)
	table := sampleTable()
	filter := stmt.Binary(stmt.OpEq, stmt.Col(-1, 0), stmt.Lit(schema.TyI64, int64(1)))

	plan := Choose(table, capability.Postgres(), &filter)
	c.Assert(plan.Index, qt.Equals, -1)
	c.Assert(plan.IndexFilter, qt.Not(qt.IsNil))
	c.Assert(plan.PostFilter, qt.IsNil)
}

func TestChooseSecondaryIndexPrefix(t *testing.T) {
	c := qt.New(t)
	table := sampleTable()
	filter := stmt.And(
		stmt.Binary(stmt.OpEq, stmt.Col(-1, 1), stmt.Lit(schema.TyI64, int64(7))),
		stmt.Binary(stmt.OpEq, stmt.Col(-1, 2), stmt.Lit(schema.TyString, "a@b.com")),
		stmt.Binary(stmt.OpGt, stmt.Col(-1, 3), stmt.Lit(schema.TyI32, int32(21))),
	)

	plan := Choose(table, capability.Postgres(), &filter)
	c.Assert(plan.Index, qt.Equals, 0)
	c.Assert(plan.IndexFilter, qt.Not(qt.IsNil))
	c.Assert(plan.ResultFilter, qt.Not(qt.IsNil))
}

func TestChooseFallsBackWithoutSQLResultFilter(t *testing.T) {
	c := qt.New(t)
	table := sampleTable()
	filter := stmt.And(
		stmt.Binary(stmt.OpEq, stmt.Col(-1, 1), stmt.Lit(schema.TyI64, int64(7))),
		stmt.Binary(stmt.OpEq, stmt.Col(-1, 2), stmt.Lit(schema.TyString, "a@b.com")),
		stmt.Binary(stmt.OpGt, stmt.Col(-1, 3), stmt.Lit(schema.TyI32, int32(21))),
	)

	plan := Choose(table, capability.DynamoDB(), &filter)
	c.Assert(plan.ResultFilter, qt.IsNil)
	c.Assert(plan.PostFilter, qt.Not(qt.IsNil))
}
