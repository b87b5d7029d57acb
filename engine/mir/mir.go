// Package mir is the materialized intermediate representation the
// executor (an external collaborator, spec §6) runs: a DAG of Node
// values in topological order, each an Operation tagged variant naming
// exactly one of the driver-facing shapes of spec §4.6/§6.
package mir

import "github.com/stokaro/ptah/core/stmt"

// NodeID indexes a Node within a Graph.
type NodeID int

// OpKind discriminates the Operation sum type. Pattern match
// exhaustively on this; never type-switch on Operation's payload fields.
type OpKind int

const (
	OpExecStatement OpKind = iota
	OpReadModifyWrite
	OpGetByKey
	OpFindPkByIndex
	OpQueryPk
	OpDeleteByKey
	OpUpdateByKey
	OpProject
	OpFilter
	OpEval
	OpConst
	OpNestedMerge
)

func (k OpKind) String() string {
	names := [...]string{
		"ExecStatement", "ReadModifyWrite", "GetByKey", "FindPkByIndex",
		"QueryPk", "DeleteByKey", "UpdateByKey", "Project", "Filter",
		"Eval", "Const", "NestedMerge",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// KeyFilter is a pre-evaluated set of primary-key tuples, produced by
// try_build_key_filter (spec §4.6 step 3) from a predicate whose key
// values are constants that fold with no upstream inputs.
type KeyFilter struct {
	// Columns are the table column indices each tuple in Keys assigns, in
	// order.
	Columns []int
	Keys    []stmt.Expr // each a Record matching len(Columns)
}

// Operation is the tagged union of every MIR node shape. Only the fields
// relevant to Kind are populated.
type Operation struct {
	Kind OpKind

	// OpExecStatement
	Stmt   *stmt.Statement
	Inputs []NodeID

	// OpReadModifyWrite
	Read  NodeID
	Write NodeID

	// OpGetByKey / OpDeleteByKey / OpUpdateByKey / OpQueryPk /
	// OpFindPkByIndex
	Table       int
	Keys        *KeyFilter
	PkFilter    *stmt.Expr
	RowFilter   *stmt.Expr
	Assignments []stmt.Assignment
	Condition   *stmt.Expr
	Columns     []int
	Index       int // secondary index position, OpFindPkByIndex only

	// OpProject / OpFilter / OpEval
	Source     NodeID
	Projection []int      // OpProject: column indices to keep
	Predicate  *stmt.Expr // OpFilter
	EvalExpr   *stmt.Expr // OpEval

	// OpConst
	Value stmt.Expr

	// OpNestedMerge
	LoadData NodeID
	Children []NodeID
	MergeExpr *stmt.Expr
}

// Node is one DAG vertex: its operation plus the statement-level
// dependencies that must complete before it (beyond the data edges
// already implied by Operation's own Inputs/Source/Read/Write fields).
type Node struct {
	ID   NodeID
	Op   Operation
	Deps []NodeID
}

// Graph is the full MIR produced for one planning session: every Node in
// an order already safe to execute (each node's dependencies, both data
// edges and Deps, precede it), plus the designated Root output node.
type Graph struct {
	Nodes []Node
	Root  NodeID
}

// Builder accumulates Nodes while the materialization planner (engine/plan)
// walks the HIR.
type Builder struct {
	nodes []Node
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Add appends op as a new node with the given extra Deps and returns its
// id.
func (b *Builder) Add(op Operation, deps ...NodeID) NodeID {
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, Node{ID: id, Op: op, Deps: append([]NodeID{}, deps...)})
	return id
}

// Graph finalizes the builder into a Graph rooted at root. The Builder's
// append order is already a valid reverse-postorder schedule, since
// engine/plan only ever references a NodeID after emitting it (spec §4.6
// "the executor's schedule is a reverse-postorder walk from the root
// output").
func (b *Builder) Graph(root NodeID) *Graph {
	return &Graph{Nodes: b.nodes, Root: root}
}
