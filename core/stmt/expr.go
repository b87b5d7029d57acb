// Package stmt is the statement/expression AST shared by every stage of
// the planner: the model-level tree produced by callers, the
// column-level tree produced by lowering, and every shape in between.
// A single closed sum type (Expr, discriminated by Kind) represents every
// arm named in spec §3; pattern match exhaustively over Kind rather than
// type-asserting — see Walk/Transform in visit.go for the one place that
// enumerates every arm.
package stmt

import "github.com/stokaro/ptah/core/schema"

// ExprKind discriminates the arms of Expr. Never dispatch dynamically on
// an Expr; switch on Kind. Adding an arm means updating Walk, Transform,
// and every simplify rule that switches exhaustively.
type ExprKind int

const (
	ExprInvalid ExprKind = iota
	ExprValue
	ExprColumn
	ExprFieldRef
	ExprArg
	ExprProject
	ExprRecord
	ExprList
	ExprCast
	ExprConcatStr
	ExprMap
	ExprStmt
	ExprMatch
	ExprExists
	ExprFunc
	ExprDecodeEnum
	ExprBinaryOp
	ExprAnd
	ExprOr
	ExprNot
	ExprInList
	ExprInSubquery
	ExprIsNull
	ExprLike
)

func (k ExprKind) String() string {
	names := [...]string{
		"Invalid", "Value", "Column", "FieldRef", "Arg", "Project", "Record",
		"List", "Cast", "ConcatStr", "Map", "Stmt", "Match", "Exists", "Func",
		"DecodeEnum", "BinaryOp", "And", "Or", "Not", "InList", "InSubquery",
		"IsNull", "Like",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// BinOp is the operator of an ExprBinaryOp node.
type BinOp int

const (
	OpEq BinOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
)

// FuncKind is the function of an ExprFunc node (spec §3: "count,
// last-insert-id").
type FuncKind int

const (
	FuncCount FuncKind = iota
	FuncLastInsertID
)

// Value is an ExprValue literal. Null is a distinct state from any typed
// zero value, since SQL/KV null-handling depends on that distinction
// throughout the simplifier.
type Value struct {
	Null bool
	Ty   schema.AbstractType
	V    any
}

// NullValue is the canonical SQL/KV null literal.
func NullValue() Value { return Value{Null: true} }

// BoolValue wraps a bool literal.
func BoolValue(b bool) Value { return Value{Ty: schema.TyBool, V: b} }

// ColumnRef is a resolved reference to a physical column, used once
// lowering has rewritten model/field references away. Table is -1 when
// the statement targets a single, already-unambiguous table.
type ColumnRef struct {
	Table  int
	Column int
}

// FieldRef is a model-relative field reference. Nesting counts how many
// enclosing statement scopes to walk outward (spec §4.3 "Scope stack"):
// 0 is the current statement, 1 is its immediate parent, and so on.
type FieldRef struct {
	Nesting int
	Field   schema.FieldID
}

// MatchArm is one (tag, body) arm of an ExprMatch node.
type MatchArm struct {
	Tag  int64
	Body Expr
}

// Expr is the single AST node type for every expression arm in spec §3.
// Only the fields relevant to Kind are populated; zero values elsewhere
// are a harmless waste of a few words, not a correctness hazard, since no
// code ever reads a field without checking Kind first.
type Expr struct {
	Kind ExprKind

	// ExprValue
	Value Value

	// ExprColumn
	Column ColumnRef

	// ExprFieldRef
	FieldRef FieldRef

	// ExprArg
	ArgIndex int

	// ExprProject: Base is the record/list-shaped expr; Path is the
	// sequence of field/element indices walked from it.
	Base *Expr
	Path []int

	// ExprRecord / ExprList / ExprAnd / ExprOr / ExprInList (Items is the
	// candidate list) / ExprConcatStr (Items is the parts)
	Items []Expr

	// ExprCast
	CastTo schema.AbstractType

	// ExprMap: Lambda's body references ExprArg(0) as the row placeholder
	// applied to each element of Items[0].
	Lambda *Expr

	// ExprStmt / ExprExists / ExprInSubquery (subquery)
	Sub    *Statement
	Single bool // ExprStmt: true if the subquery yields at most one row

	// ExprMatch
	MatchOn   *Expr
	MatchArms []MatchArm
	MatchElse *Expr

	// ExprFunc
	Func FuncKind

	// ExprDecodeEnum: Tag is the int64 discriminant value to test Lhs
	// against (see simplify's DecodeEnum rewrite).
	Tag int

	// ExprBinaryOp / ExprNot / ExprIsNull / ExprLike / ExprInList /
	// ExprInSubquery: Lhs is the left operand / the "target" of a
	// unary-shaped node; Rhs is the right operand of a binary op.
	Op  BinOp
	Lhs *Expr
	Rhs *Expr

	// ExprIsNull
	Negate bool // true => "is not null"

	// ExprLike
	Pattern    string
	BeginsWith bool
}

// Binary builds an ExprBinaryOp node.
func Binary(op BinOp, lhs, rhs Expr) Expr {
	return Expr{Kind: ExprBinaryOp, Op: op, Lhs: &lhs, Rhs: &rhs}
}

// And builds a flattened ExprAnd over operands.
func And(operands ...Expr) Expr {
	return Expr{Kind: ExprAnd, Items: operands}
}

// Or builds a flattened ExprOr over operands.
func Or(operands ...Expr) Expr {
	return Expr{Kind: ExprOr, Items: operands}
}

// Not builds an ExprNot node.
func Not(e Expr) Expr {
	return Expr{Kind: ExprNot, Lhs: &e}
}

// IsNull builds an ExprIsNull node; negate=true means "is not null".
func IsNull(target Expr, negate bool) Expr {
	return Expr{Kind: ExprIsNull, Lhs: &target, Negate: negate}
}

// InList builds an ExprInList node.
func InList(target Expr, candidates ...Expr) Expr {
	return Expr{Kind: ExprInList, Lhs: &target, Items: candidates}
}

// Col builds an ExprColumn node.
func Col(table, column int) Expr {
	return Expr{Kind: ExprColumn, Column: ColumnRef{Table: table, Column: column}}
}

// Field builds an ExprFieldRef node.
func Field(nesting int, id schema.FieldID) Expr {
	return Expr{Kind: ExprFieldRef, FieldRef: FieldRef{Nesting: nesting, Field: id}}
}

// Arg builds an ExprArg placeholder node.
func Arg(index int) Expr {
	return Expr{Kind: ExprArg, ArgIndex: index}
}

// Project builds an ExprProject node.
func Project(base Expr, path ...int) Expr {
	return Expr{Kind: ExprProject, Base: &base, Path: path}
}

// Lit builds an ExprValue node from a non-null literal.
func Lit(ty schema.AbstractType, v any) Expr {
	return Expr{Kind: ExprValue, Value: Value{Ty: ty, V: v}}
}

// Null builds the ExprValue null literal.
func Null() Expr {
	return Expr{Kind: ExprValue, Value: NullValue()}
}

// IsLiteralBool reports whether e is a non-null boolean literal, and its
// value.
func IsLiteralBool(e Expr) (v bool, ok bool) {
	if e.Kind != ExprValue || e.Value.Null {
		return false, false
	}
	b, ok := e.Value.V.(bool)
	return b, ok
}

// IsLiteralNull reports whether e is the null literal.
func IsLiteralNull(e Expr) bool {
	return e.Kind == ExprValue && e.Value.Null
}

// NonNullable reports whether e is provably non-null for every
// well-typed input: literals (other than the null literal itself),
// comparisons, and boolean connectives over provably non-nullable
// operands. A bare column/field/arg reference is never provably
// non-nullable here, even if the schema marks it NOT NULL, because the
// simplifier's complement rule (spec §4.2 rule 7) is deliberately
// conservative about anything that didn't go through a comparison.
func NonNullable(e Expr) bool {
	switch e.Kind {
	case ExprValue:
		return !e.Value.Null
	case ExprBinaryOp, ExprIsNull, ExprInList, ExprInSubquery, ExprLike, ExprExists:
		return true
	case ExprAnd, ExprOr:
		for _, it := range e.Items {
			if !NonNullable(it) {
				return false
			}
		}
		return true
	case ExprNot:
		return NonNullable(*e.Lhs)
	default:
		return false
	}
}

// Equal reports structural equality of two expressions, used by the
// simplifier's idempotence/absorption/factoring rules. Operand order is
// significant: Or(a, b) and Or(b, a) are unequal, and simplification
// does not sort operands into a canonical order.
func Equal(a, b Expr) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ExprValue:
		return a.Value.Null == b.Value.Null && a.Value.Ty == b.Value.Ty && a.Value.V == b.Value.V
	case ExprColumn:
		return a.Column == b.Column
	case ExprFieldRef:
		return a.FieldRef == b.FieldRef
	case ExprArg:
		return a.ArgIndex == b.ArgIndex
	case ExprProject:
		return Equal(*a.Base, *b.Base) && equalInts(a.Path, b.Path)
	case ExprRecord, ExprList, ExprAnd, ExprOr, ExprConcatStr:
		return equalExprSlice(a.Items, b.Items)
	case ExprCast:
		return Equal(*a.Lhs, *b.Lhs) && a.CastTo == b.CastTo
	case ExprNot:
		return Equal(*a.Lhs, *b.Lhs)
	case ExprIsNull:
		return Equal(*a.Lhs, *b.Lhs) && a.Negate == b.Negate
	case ExprLike:
		return Equal(*a.Lhs, *b.Lhs) && a.Pattern == b.Pattern && a.BeginsWith == b.BeginsWith
	case ExprInList:
		return Equal(*a.Lhs, *b.Lhs) && equalExprSlice(a.Items, b.Items)
	case ExprBinaryOp:
		return a.Op == b.Op && Equal(*a.Lhs, *b.Lhs) && Equal(*a.Rhs, *b.Rhs)
	case ExprFunc:
		return a.Func == b.Func && equalExprSlice(a.Items, b.Items)
	case ExprDecodeEnum:
		return a.Tag == b.Tag && Equal(*a.Lhs, *b.Lhs)
	default:
		// Statement-bearing and lambda-bearing arms (Stmt, Exists,
		// InSubquery, Map, Match) are compared by identity of their
		// sub-statement pointer: the simplifier never needs to prove two
		// distinct sub-statements equal.
		return a.Sub == b.Sub && a.Lambda == b.Lambda
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalExprSlice(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
