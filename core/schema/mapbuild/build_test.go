package mapbuild

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/capability"
)

func userSchema() *schema.Schema {
	userID := schema.ModelID(0)
	return &schema.Schema{
		Models: []schema.Model{
			{
				ID:   userID,
				Name: "User",
				Fields: []schema.Field{
					{ID: schema.FieldID{Model: userID, Index: 0}, Name: "id", Kind: schema.FieldPrimitive, Ty: schema.TyI64, AutoInc: true},
					{ID: schema.FieldID{Model: userID, Index: 1}, Name: "name", Kind: schema.FieldPrimitive, Ty: schema.TyString},
				},
				PrimaryKey: schema.PrimaryKey{Fields: []int{0}},
			},
		},
	}
}

func TestBuildSimpleModel(t *testing.T) {
	c := qt.New(t)

	db, err := Build(userSchema(), capability.DynamoDB())
	c.Assert(err, qt.IsNil)
	c.Assert(db.Tables, qt.HasLen, 1)

	table := &db.Tables[0]
	c.Assert(table.Name, qt.Equals, "users")
	c.Assert(table.Columns, qt.HasLen, 2)
	c.Assert(table.Columns[0].Name, qt.Equals, "id")
	c.Assert(table.Columns[0].PrimaryKey, qt.IsTrue)
	c.Assert(table.Columns[1].Name, qt.Equals, "name")

	mapping := db.Mapping(0)
	c.Assert(mapping.ModelToTable, qt.HasLen, 2)
	c.Assert(mapping.ModelPkToTable, qt.HasLen, 1)
	c.Assert(mapping.ModelPkToTable[0].Kind, qt.Equals, stmt.ExprArg)
	c.Assert(mapping.ModelPkToTable[0].ArgIndex, qt.Equals, 0)
}

func TestBuildMixedEnum(t *testing.T) {
	c := qt.New(t)

	eventID := schema.ModelID(0)
	payloadField := schema.FieldID{Model: eventID, Index: 1}
	model := schema.Model{
		ID:   eventID,
		Name: "Event",
		Fields: []schema.Field{
			{ID: schema.FieldID{Model: eventID, Index: 0}, Name: "id", Kind: schema.FieldPrimitive, Ty: schema.TyI64},
			{
				ID:   payloadField,
				Name: "payload",
				Kind: schema.FieldEmbedded,
				EmbeddedEnum: &schema.EmbeddedEnum{
					HasDataVariants: true,
					DiscriminantTy:  schema.TyI32,
					Variants: []schema.EnumVariant{
						{Name: "Ping", Discriminant: 0},
						{
							Name:         "Error",
							Discriminant: 1,
							Fields: []schema.Field{
								{ID: payloadField, Name: "code", Kind: schema.FieldPrimitive, Ty: schema.TyI64},
								{ID: payloadField, Name: "msg", Kind: schema.FieldPrimitive, Ty: schema.TyString},
							},
						},
					},
				},
			},
		},
		PrimaryKey: schema.PrimaryKey{Fields: []int{0}},
	}

	db, err := Build(&schema.Schema{Models: []schema.Model{model}}, capability.Postgres())
	c.Assert(err, qt.IsNil)

	table := &db.Tables[0]
	c.Assert(table.Columns, qt.HasLen, 4)
	c.Assert(table.Columns[1].Name, qt.Equals, "payload")
	c.Assert(table.Columns[1].Nullable, qt.IsFalse)
	c.Assert(table.Columns[2].Name, qt.Equals, "payload_code")
	c.Assert(table.Columns[2].Nullable, qt.IsTrue)
	c.Assert(table.Columns[3].Name, qt.Equals, "payload_msg")
	c.Assert(table.Columns[3].Nullable, qt.IsTrue)

	mapping := db.Mapping(0)
	payloadExpr := mapping.TableToModel.Items[1]
	c.Assert(payloadExpr.Kind, qt.Equals, stmt.ExprMatch)
	c.Assert(payloadExpr.MatchArms, qt.HasLen, 2)
	c.Assert(payloadExpr.MatchArms[1].Body.Kind, qt.Equals, stmt.ExprRecord)
	c.Assert(payloadExpr.MatchArms[1].Body.Items, qt.HasLen, 3)
}

func TestBuildRejectsMultiModelTable(t *testing.T) {
	c := qt.New(t)

	s := &schema.Schema{
		Models: []schema.Model{
			{ID: 0, Name: "A", TableName: "shared"},
			{ID: 1, Name: "B", TableName: "shared"},
		},
	}
	_, err := Build(s, capability.Postgres())
	c.Assert(err, qt.ErrorMatches, ".*multi-model table mapping is not implemented.*")
}
