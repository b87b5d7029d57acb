// Package schema is the in-memory representation of application models:
// fields, relations, primary keys and indices, and the database-level
// tables/columns they lower to.
//
// Schema entities are built once at startup and are immutable afterward.
// Nothing in this package mutates a *Schema once it has been built.
package schema

import "fmt"

// ModelID identifies a Model within a Schema. It is a dense index into
// Schema.Models, not a hash, so it stays cheap to compare and to use as a
// map key across the planner.
type ModelID int

// FieldID identifies a Field by (model, index within that model's Fields).
type FieldID struct {
	Model ModelID
	Index int
}

func (f FieldID) String() string {
	return fmt.Sprintf("Field(%d.%d)", f.Model, f.Index)
}

// Model is a named record: a stable id, an ordered list of fields, a
// declared primary key, and zero or more indices.
type Model struct {
	ID         ModelID
	Name       string
	Fields     []Field
	PrimaryKey PrimaryKey
	Indices    []Index

	// TableName is the explicit table name from the application schema, if
	// any. When empty, the mapping builder derives one (see mapbuild).
	TableName string
}

// Field returns the field at id's index, asserting it belongs to m.
func (m *Model) Field(id FieldID) *Field {
	if id.Model != m.ID {
		panic(fmt.Sprintf("schema: field %s does not belong to model %d", id, m.ID))
	}
	return &m.Fields[id.Index]
}

// FieldByName returns the field with the given name, or nil.
func (m *Model) FieldByName(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// PrimaryKeyFields returns the model's primary-key fields in declared order.
func (m *Model) PrimaryKeyFields() []*Field {
	out := make([]*Field, len(m.PrimaryKey.Fields))
	for i, idx := range m.PrimaryKey.Fields {
		out[i] = &m.Fields[idx]
	}
	return out
}

// PrimaryKey is an ordered subset of a model's fields, identified by their
// index within Model.Fields (not FieldID, since the model isn't known yet
// at construction time inside the builder).
type PrimaryKey struct {
	Fields []int
}

// FieldKind discriminates the closed sum of field shapes a Field can take.
// Pattern match exhaustively on this; never add a new kind without updating
// every switch over it (mapbuild and lower switch over it).
type FieldKind int

const (
	FieldPrimitive FieldKind = iota
	FieldEmbedded
	FieldBelongsTo
	FieldHasOne
	FieldHasMany
)

func (k FieldKind) String() string {
	switch k {
	case FieldPrimitive:
		return "Primitive"
	case FieldEmbedded:
		return "Embedded"
	case FieldBelongsTo:
		return "BelongsTo"
	case FieldHasOne:
		return "HasOne"
	case FieldHasMany:
		return "HasMany"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// AbstractType is the driver-independent type of a primitive value. The
// capability descriptor (engine/capability) maps each AbstractType to a
// concrete storage type per backend.
type AbstractType int

const (
	TyInvalid AbstractType = iota
	TyBool
	TyI32
	TyI64
	TyF64
	TyString
	TyBytes
	TyUUID
	TyTimestamp
)

func (t AbstractType) String() string {
	switch t {
	case TyBool:
		return "Bool"
	case TyI32:
		return "I32"
	case TyI64:
		return "I64"
	case TyF64:
		return "F64"
	case TyString:
		return "String"
	case TyBytes:
		return "Bytes"
	case TyUUID:
		return "UUID"
	case TyTimestamp:
		return "Timestamp"
	default:
		return "Invalid"
	}
}

// FKPair is one (source-field, target-field) pair of a BelongsTo foreign
// key. Composite foreign keys carry more than one pair, in declared order.
type FKPair struct {
	Source int // index into the source model's Fields
	Target int // index into the target model's Fields
}

// ForeignKey describes a BelongsTo field's link to its target model.
type ForeignKey struct {
	Target ModelID
	Pairs  []FKPair

	// PairFieldName, if set, names the identifier shared with the inverse
	// HasOne/HasMany field on the target model (spec §3's "optional pair
	// identifier"). Relation planning does not read it; it detects cycles
	// by the field ids on its own stack.
	PairFieldName string
}

// Relation describes a HasOne/HasMany field's link to its target model.
type Relation struct {
	Target        ModelID
	PairFieldName string
}

// Field is identified by (model-id, field-index) and carries exactly one
// of the FieldKind-discriminated payloads below, selected by Kind.
type Field struct {
	ID       FieldID
	Name     string
	Kind     FieldKind
	Nullable bool
	AutoInc  bool

	// Primitive payload (Kind == FieldPrimitive).
	Ty          AbstractType
	StorageType string // optional override; empty means "use capability default"

	// Embedded payload (Kind == FieldEmbedded).
	EmbeddedStruct *EmbeddedStruct // nil if this embeds an enum instead
	EmbeddedEnum   *EmbeddedEnum

	// BelongsTo payload (Kind == FieldBelongsTo).
	BelongsTo *ForeignKey

	// HasOne / HasMany payload (Kind == FieldHasOne or FieldHasMany).
	Rel *Relation
}

// EmbeddedStruct is an ordered list of member fields serialized inline into
// the owning model's columns.
type EmbeddedStruct struct {
	Fields []Field
}

// EnumVariant is one arm of an EmbeddedEnum: a discriminant integer and an
// ordered list of data-carrying member fields. A unit variant has no
// Fields.
type EnumVariant struct {
	Name        string
	Discriminant int64
	Fields      []Field
}

// EmbeddedEnum is a tagged union serialized as a discriminant column plus,
// for data-carrying variants, one nullable column per member field across
// all variants (spec §4.1's "variant-field columns").
type EmbeddedEnum struct {
	Variants      []EnumVariant
	DiscriminantTy AbstractType

	// HasDataVariants is true if any variant carries fields; it controls
	// whether table_to_model emits a bare discriminant expression or a
	// Match dispatch (spec §3 invariant).
	HasDataVariants bool
}

// Index is an ordered list of (field, op, scope) describing a secondary or
// primary index over a model's fields.
type Index struct {
	Name   string
	Unique bool
	Parts  []IndexPart
}

// IndexOp is the comparison operator a key part supports (equality vs a
// range comparison usable for a key-prefix scan).
type IndexOp int

const (
	OpEq IndexOp = iota
	OpLt
	OpLe
	OpGt
	OpGe
)

// IndexPart is one (field, op, scope) triple of an Index.
type IndexPart struct {
	Field int // index into the owning model's Fields
	Op    IndexOp
	Scope string // optional partitioning scope, e.g. a tenant discriminator
}

// Schema is the full, immutable application schema: every model keyed by
// its ModelID.
type Schema struct {
	Models []Model
}

// Model returns the model for id, asserting it is in range.
func (s *Schema) Model(id ModelID) *Model {
	return &s.Models[id]
}

// ModelByName returns the model with the given name, or nil.
func (s *Schema) ModelByName(name string) *Model {
	for i := range s.Models {
		if s.Models[i].Name == name {
			return &s.Models[i]
		}
	}
	return nil
}
