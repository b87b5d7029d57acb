// Package mapbuild computes the model↔table mapping (spec §4.1): column
// synthesis, the bidirectional lowering/lifting expressions, and enum
// discriminant handling. It is the one package allowed to depend on both
// core/schema (the application model) and core/stmt (the expression AST
// the mapping's lowering expressions are built from) — core/schema
// itself stays expression-agnostic so schema entities can be built
// without pulling in the statement AST.
package mapbuild

import (
	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/stmt"
)

// FieldMappingKind discriminates how a model field maps onto columns.
type FieldMappingKind int

const (
	MapPrimitive FieldMappingKind = iota
	MapStruct
	MapEnum
	MapRelation
)

// FieldMapping records, for a single model field, how it maps onto the
// owning Table's columns.
type FieldMapping struct {
	Field schema.FieldID
	Kind  FieldMappingKind

	// MapPrimitive payload.
	Column        int
	LoweringIndex int
	MaskBit       int
	SubProjection []string

	// MapStruct payload.
	Nested           []FieldMapping
	AggregateColumns []int

	// MapEnum payload.
	DiscriminantColumn int
	Variants           []VariantMapping

	// MapRelation shares MaskBit with the common fields above and
	// synthesizes no columns.
}

// VariantMapping is one enum variant's column mapping.
type VariantMapping struct {
	Discriminant int64
	Fields       []FieldMapping
}

// Mapping is the per-model artifact translating between model records
// and table rows (spec §3).
type Mapping struct {
	Table  schema.TableID
	Fields []FieldMapping

	// ModelToTable has one entry per column, in column order.
	ModelToTable []stmt.Expr

	// TableToModel rebuilds a model record from columns.
	TableToModel stmt.Expr

	// ModelPkToTable is ModelToTable reduced to primary-key columns.
	ModelPkToTable []stmt.Expr
}

// DBSchema is the database-level schema produced by Build: one Table per
// distinct table name, plus a Mapping per model (indexed by ModelID).
type DBSchema struct {
	Tables   []schema.Table
	Mappings []Mapping
}

func (d *DBSchema) Table(id schema.TableID) *schema.Table { return &d.Tables[id] }

func (d *DBSchema) Mapping(id schema.ModelID) *Mapping { return &d.Mappings[id] }

// TableFor returns the physical table backing model, via its Mapping.
// This is the accessor engine/plan's materialization planner uses to
// resolve a lowered statement's Source.Model back to a schema.Table.
func (d *DBSchema) TableFor(model schema.ModelID) *schema.Table {
	return d.Table(d.Mapping(model).Table)
}

func (d *DBSchema) TableByName(name string) schema.TableID {
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			return schema.TableID(i)
		}
	}
	return -1
}
