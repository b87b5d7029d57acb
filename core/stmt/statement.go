package stmt

import "github.com/stokaro/ptah/core/schema"

// StmtKind discriminates the Statement sum type (spec §3: "Statement =
// {Query, Insert, Update, Delete}").
type StmtKind int

const (
	StmtQuery StmtKind = iota
	StmtInsert
	StmtUpdate
	StmtDelete
)

func (k StmtKind) String() string {
	switch k {
	case StmtQuery:
		return "Query"
	case StmtInsert:
		return "Insert"
	case StmtUpdate:
		return "Update"
	case StmtDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// SourceKind discriminates Source between a model-level and a
// table-level target. Lowering rewrites every Source::Model to
// Source::Table (spec §4.3); only Source::Table is legal once lowering
// has run.
type SourceKind int

const (
	SourceModel SourceKind = iota
	SourceTable
)

// Source is a statement's FROM/INTO target.
type Source struct {
	Kind  SourceKind
	Model schema.ModelID
	Table schema.TableID
}

// ReturningKind discriminates the shape of a statement's Returning
// clause (spec §3).
type ReturningKind int

const (
	ReturningNone ReturningKind = iota
	ReturningModel
	ReturningExpr
	ReturningValue
	ReturningChanged
)

// IncludePath is a dot-path into a model's relation fields requested by a
// Returning{Model} clause (e.g. "todos" or "todos.tags").
type IncludePath struct {
	Steps []schema.FieldID
}

// Returning is a statement's optional result-shape request.
type Returning struct {
	Kind    ReturningKind
	Include []IncludePath // ReturningModel
	Expr    Expr          // ReturningExpr / ReturningValue (a constant Expr)
}

// AssignmentKind discriminates the mutation shape of an Assignment (spec
// §4.5's relation mutation-kind matrix). AssignSet is the default/zero
// value, covering both ordinary `field = expr` assignments and a
// belongs-to/has-one/has-many "associate" with Value holding the target.
type AssignmentKind int

const (
	// AssignSet assigns Value directly: a plain column for a primitive
	// field, or an associate target (value, query key, Insert-builder, or
	// Query sub-statement) for a relation field.
	AssignSet AssignmentKind = iota

	// AssignDisassociate removes exactly the pair named by Value from a
	// has-one/has-many field without touching any other pair.
	AssignDisassociate

	// AssignDisassociateAll removes every pair currently associated with a
	// has-one/has-many field; Value is unused.
	AssignDisassociateAll
)

// Assignment is one `field = expr` pair of an Update statement. Lowering
// rewrites Statement.Assignments in place: Field still names the model
// field, and Value becomes the lowered column expression (see lower
// package).
type Assignment struct {
	Field schema.FieldID
	Kind  AssignmentKind
	Value Expr

	// Exclusive marks an AssignSet on a has-one/has-many field as
	// exclusive (spec §4.5): every pair currently associated other than
	// the one(s) given by Value is disassociated first.
	Exclusive bool
}

// Offset describes pagination. OffsetAfter(key) is rewritten during
// lowering into an additional filter constraint (spec §4.3 "Offset
// rewrite").
type OffsetKind int

const (
	OffsetNone OffsetKind = iota
	OffsetSkip
	OffsetAfter
)

type Offset struct {
	Kind OffsetKind
	N    int   // OffsetSkip
	Key  []Expr // OffsetAfter: the key tuple to page after
}

// Statement is the model-level or (post-lowering) column-level
// representation of a query/insert/update/delete.
type Statement struct {
	Kind   StmtKind
	Source Source
	Filter *Expr // nil means "no filter" (matches every row)

	Returning *Returning

	// Update-only.
	Assignments []Assignment
	Condition   *Expr // required precondition on the current row

	// Insert-only: generally a Values query (spec §3).
	InsertSource *Statement

	Offset *Offset
	Single bool // true if the caller expects at most one result row
}

// Values constructs an insert source statement whose filter-free "rows"
// are literal record expressions, matching the spec's "generally Values"
// note for InsertSource.
func Values(rows ...Expr) *Statement {
	items := make([]Expr, len(rows))
	copy(items, rows)
	return &Statement{
		Kind:      StmtQuery,
		Source:    Source{},
		Returning: &Returning{Kind: ReturningValue, Expr: Expr{Kind: ExprList, Items: items}},
	}
}
