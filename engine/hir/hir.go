// Package hir is the column-level high-level IR the lowerer (engine/lower)
// produces from a model-level stmt.Statement and the materialization
// planner (engine/plan) consumes. A HIR is an arena of StatementInfo
// nodes plus the Arg placeholders and BackRefs connecting them, so the
// dependency graph between a statement and its cross-statement
// sub-queries is an explicit set of indices rather than a tree of owned
// values (spec §5 "node references within an arena are position
// indices, never back-pointers").
package hir

import "github.com/stokaro/ptah/core/stmt"

// StatementID indexes a StatementInfo within an Arena.
type StatementID int

// ArgKind discriminates the two shapes an Arg placeholder can take.
type ArgKind int

const (
	// ArgSub is a value substituted directly at lowering time (e.g. an
	// insert row's sibling-value reference, or a primary-key position in
	// ModelPkToTable).
	ArgSub ArgKind = iota

	// ArgRef is a cross-statement dependency: the column value comes from
	// another statement's output, wired during materialization.
	ArgRef
)

// RefCells are the planning-time write-once slots a Ref arg carries,
// filled in by the materialization planner as it processes dependency
// order (spec §4.3 "cells to be filled during planning"). Each cell
// panics if written twice. engine/plan writes DataLoadInput only;
// ReturningInput and BatchLoadIndex are never written by it.
type RefCells struct {
	DataLoadInput  *int
	ReturningInput *int
	BatchLoadIndex *int
}

// SetDataLoadInput assigns the data-load input slot once.
func (c *RefCells) SetDataLoadInput(node int) {
	if c.DataLoadInput != nil {
		panic("hir: data_load_input cell written twice")
	}
	n := node
	c.DataLoadInput = &n
}

// SetReturningInput assigns the returning input slot once.
func (c *RefCells) SetReturningInput(node int) {
	if c.ReturningInput != nil {
		panic("hir: returning_input cell written twice")
	}
	n := node
	c.ReturningInput = &n
}

// SetBatchLoadIndex assigns the batch-load row/table index slot once.
func (c *RefCells) SetBatchLoadIndex(idx int) {
	if c.BatchLoadIndex != nil {
		panic("hir: batch_load_index cell written twice")
	}
	n := idx
	c.BatchLoadIndex = &n
}

// Arg is one placeholder referenced from a lowered statement's
// expressions by ArgIndex.
type Arg struct {
	Kind ArgKind

	// ArgSub payload: the substituted value, resolved entirely within the
	// current statement (no cross-statement wiring).
	Value stmt.Expr

	// ArgRef payload.
	Target       StatementID
	TargetColumn stmt.Expr // a stmt.Col expression at nesting zero from Target's perspective
	Cells        RefCells
}

// BackRef records that some consumer statement depends on a column this
// statement produces, so the materialization planner can emit a Project
// node supplying exactly that column (spec §4.6 step 4).
type BackRef struct {
	Consumer StatementID
	Column   int

	// ProjectNode is filled in once the planner emits the Project node
	// serving this back-ref; -1 until then.
	ProjectNode int
}

// StatementInfo is one node of the HIR arena: a lowered statement plus
// its cross-statement wiring.
type StatementInfo struct {
	ID   StatementID
	Stmt *stmt.Statement

	// Args are the placeholders this statement's expressions reference by
	// index.
	Args []Arg

	// Deps are statements that must be planned, and — at execution time —
	// executed, before this one (spec §4.6 "Dependencies").
	Deps []StatementID

	// BackRefs are the consumers that read a column back out of this
	// statement once it runs.
	BackRefs []BackRef
}

// Arena owns every StatementInfo produced while lowering one root
// statement and its dependency closure.
type Arena struct {
	Statements []StatementInfo
	Root       StatementID
}

// NewArena allocates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Alloc appends a new StatementInfo wrapping s and returns its id.
func (a *Arena) Alloc(s *stmt.Statement) StatementID {
	id := StatementID(len(a.Statements))
	a.Statements = append(a.Statements, StatementInfo{ID: id, Stmt: s, BackRefs: nil})
	return id
}

// Get returns the StatementInfo for id.
func (a *Arena) Get(id StatementID) *StatementInfo {
	return &a.Statements[id]
}

// AddArg appends arg to id's statement and returns its index, for use as
// an ExprArg's ArgIndex.
func (a *Arena) AddArg(id StatementID, arg Arg) int {
	info := &a.Statements[id]
	info.Args = append(info.Args, arg)
	return len(info.Args) - 1
}

// AddDep records that id depends on dep, if not already recorded.
func (a *Arena) AddDep(id, dep StatementID) {
	info := &a.Statements[id]
	for _, d := range info.Deps {
		if d == dep {
			return
		}
	}
	info.Deps = append(info.Deps, dep)
}

// AddBackRef records that consumer reads column out of producer.
func (a *Arena) AddBackRef(producer StatementID, ref BackRef) int {
	info := &a.Statements[producer]
	ref.ProjectNode = -1
	info.BackRefs = append(info.BackRefs, ref)
	return len(info.BackRefs) - 1
}
