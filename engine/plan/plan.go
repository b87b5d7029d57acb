// Package plan is the materialization planner of spec §4.6: it compiles
// an hir.Arena (the statement lowerer's output) into a mir.Graph, a DAG
// of driver-facing operations in an order the executor can run directly.
//
// This is the single canonical entry point for that compilation — the
// reference implementation carries the same algorithm in two places
// (plan/statement.rs and planner/materialize.rs); this package follows
// materialize.rs, the more complete of the two (see DESIGN.md's Open
// Question log).
package plan

import (
	"log/slog"

	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/capability"
	"github.com/stokaro/ptah/engine/eval"
	"github.com/stokaro/ptah/engine/hir"
	"github.com/stokaro/ptah/engine/indexplan"
	"github.com/stokaro/ptah/engine/mir"
)

// Planner holds the inputs shared across one materialization pass.
type Planner struct {
	db  TableSource
	cap capability.Capability
	log *slog.Logger

	arena   *hir.Arena
	builder *mir.Builder

	// dataLoadNode maps an hir.StatementID to the output node
	// planStatement returned for it, once planned; planStatement consults
	// it to avoid
	// replanning a statement reached through more than one dependency
	// edge.
	dataLoadNode map[hir.StatementID]mir.NodeID
}

// WithLogger returns a copy of p logging through log instead of
// slog.Default().
func (p *Planner) WithLogger(log *slog.Logger) *Planner {
	out := *p
	out.log = log
	return &out
}

// TableSource is the subset of mapbuild.DBSchema the planner needs: the
// physical table backing a statement's Source. Accepting an interface
// here (rather than importing core/schema/mapbuild directly) keeps this
// package's dependency surface to exactly what it uses.
type TableSource interface {
	TableFor(model schema.ModelID) *schema.Table
}

// New builds a Planner over arena (the lowerer's output), db (for
// resolving a statement's physical table), and cap.
func New(arena *hir.Arena, db TableSource, cap capability.Capability) *Planner {
	return &Planner{
		db:           db,
		cap:          cap,
		log:          slog.Default(),
		arena:        arena,
		builder:      mir.NewBuilder(),
		dataLoadNode: map[hir.StatementID]mir.NodeID{},
	}
}

// Plan compiles the arena's root statement and its dependency closure
// into a mir.Graph (spec §4.6).
func (p *Planner) Plan() (*mir.Graph, error) {
	root, err := p.planStatement(p.arena.Root)
	if err != nil {
		return nil, err
	}
	return p.builder.Graph(root), nil
}

// planStatement implements spec §4.6's per-statement algorithm. It
// returns the node id a consumer should treat as "this statement's
// output" (its NestedMerge, Project/Eval, Const, or bare data-load node,
// per step 6).
func (p *Planner) planStatement(id hir.StatementID) (mir.NodeID, error) {
	if node, ok := p.dataLoadNode[id]; ok {
		return node, nil
	}

	info := p.arena.Get(id)
	s := info.Stmt

	depNodes := make([]mir.NodeID, 0, len(info.Deps))
	for _, dep := range info.Deps {
		n, err := p.planStatement(dep)
		if err != nil {
			return 0, err
		}
		depNodes = append(depNodes, n)
	}

	argInputs, err := p.planArgs(info)
	if err != nil {
		return 0, err
	}

	dataNode, err := p.planDataLoad(id, s, argInputs, depNodes)
	if err != nil {
		return 0, err
	}

	output, err := p.planOutput(id, s, dataNode, depNodes)
	if err != nil {
		return 0, err
	}

	p.dataLoadNode[id] = output
	return output, nil
}

// planArgs plans every Ref arg's target statement first, so the
// argument's DataLoadInput cell is filled before this statement's own
// load step needs it (spec §4.6 step 1's "record where each sub-
// statement arg contributes an input"). When the target also recorded a
// back-ref for this consumer (spec §4.6 step 4, e.g. a nested-insert
// relation chaining the target's own generated key into this statement),
// the arg is wired to that back-ref's Project node instead of the
// target's full output — TargetColumn's own Returning shape is then
// irrelevant, which matters because the caller controls it.
func (p *Planner) planArgs(info *hir.StatementInfo) ([]mir.NodeID, error) {
	inputs := make([]mir.NodeID, 0, len(info.Args))
	for i := range info.Args {
		arg := &info.Args[i]
		if arg.Kind != hir.ArgRef {
			continue
		}
		node, err := p.planStatement(arg.Target)
		if err != nil {
			return nil, err
		}
		if proj, ok := p.backRefNode(arg.Target, info.ID, arg.TargetColumn); ok {
			node = proj
		}
		arg.Cells.SetDataLoadInput(int(node))
		inputs = append(inputs, node)
	}
	return inputs, nil
}

// backRefNode looks up the Project node already emitted (by target's own
// planOutput, which planStatement(target) just ran) for a back-ref from
// target to consumer over the column col names, if col is a bare Column
// reference.
func (p *Planner) backRefNode(target, consumer hir.StatementID, col stmt.Expr) (mir.NodeID, bool) {
	if col.Kind != stmt.ExprColumn {
		return 0, false
	}
	info := p.arena.Get(target)
	for i := range info.BackRefs {
		ref := &info.BackRefs[i]
		if ref.Consumer == consumer && ref.Column == col.Column.Column && ref.ProjectNode >= 0 {
			return mir.NodeID(ref.ProjectNode), true
		}
	}
	return 0, false
}

// planDataLoad implements spec §4.6 step 3: the Const fast path for a
// statement evaluable with no table access, an ExecStatement for a
// SQL-capable backend or an insert, or the key-value family chosen via
// engine/indexplan.
func (p *Planner) planDataLoad(id hir.StatementID, s *stmt.Statement, argInputs, depNodes []mir.NodeID) (mir.NodeID, error) {
	if isConstStatement(s) {
		p.log.Debug("collapsing statement to const", "statement", int(id))
		return p.planConst(s, depNodes)
	}

	if p.cap.SQL || s.Kind == stmt.StmtInsert {
		return p.planExecStatement(s, argInputs, depNodes)
	}

	return p.planKeyValue(id, s, depNodes)
}

// isConstStatement reports whether s needs no table access at all: an
// update with no assignments, or any statement whose filter is the
// literal false. A statement whose Returning is a Value expression is
// not collapsed on that account.
func isConstStatement(s *stmt.Statement) bool {
	if s.Kind == stmt.StmtUpdate && len(s.Assignments) == 0 {
		return true
	}
	if s.Filter != nil {
		if v, ok := stmt.IsLiteralBool(*s.Filter); ok && !v {
			return true
		}
	}
	return false
}

func (p *Planner) planConst(s *stmt.Statement, depNodes []mir.NodeID) (mir.NodeID, error) {
	var value stmt.Expr
	if s.Returning != nil && s.Returning.Kind == stmt.ReturningValue {
		value = s.Returning.Expr
	} else if s.Returning != nil && s.Single {
		value = stmt.Expr{Kind: stmt.ExprRecord}
	} else {
		value = stmt.Expr{Kind: stmt.ExprList}
	}
	folded, err := eval.Fold(value)
	if err != nil {
		return 0, err
	}
	return p.builder.Add(mir.Operation{Kind: mir.OpConst, Value: stmt.Expr{Kind: stmt.ExprValue, Value: folded}}, depNodes...), nil
}

func (p *Planner) planExecStatement(s *stmt.Statement, argInputs, depNodes []mir.NodeID) (mir.NodeID, error) {
	inputs := append(append([]mir.NodeID{}, argInputs...), depNodes...)

	if s.Condition != nil {
		return p.planConditionalUpdate(s, inputs)
	}

	return p.builder.Add(mir.Operation{Kind: mir.OpExecStatement, Stmt: s, Inputs: inputs}, depNodes...), nil
}

// planConditionalUpdate implements spec §4.6 step 3's conditional-update
// specialization: a CTEWithUpdate backend gets a single ExecStatement
// carrying the condition (the driver is responsible for the two-CTE
// rewrite, since only it can render the SQL); a backend without that
// shape gets a ReadModifyWrite pairing a read and a write node.
func (p *Planner) planConditionalUpdate(s *stmt.Statement, inputs []mir.NodeID) (mir.NodeID, error) {
	if p.cap.CTEWithUpdate {
		return p.builder.Add(mir.Operation{Kind: mir.OpExecStatement, Stmt: s, Inputs: inputs}), nil
	}

	readStmt := &stmt.Statement{
		Kind:      stmt.StmtQuery,
		Source:    s.Source,
		Filter:    s.Filter,
		Condition: s.Condition,
		Single:    true,
	}
	read := p.builder.Add(mir.Operation{Kind: mir.OpExecStatement, Stmt: readStmt, Inputs: inputs})
	write := p.builder.Add(mir.Operation{Kind: mir.OpExecStatement, Stmt: s, Inputs: inputs})
	return p.builder.Add(mir.Operation{Kind: mir.OpReadModifyWrite, Read: read, Write: write}), nil
}

// planKeyValue implements spec §4.6 step 3's key-value family: an index
// plan chosen over the statement's target table (with a preceding
// FindPkByIndex when the chosen index is secondary). Deletes and updates
// always become DeleteByKey/UpdateByKey, carrying Keys when the index
// filter reduces to an explicit key set; a query becomes GetByKey in
// that case and QueryPk otherwise.
func (p *Planner) planKeyValue(id hir.StatementID, s *stmt.Statement, depNodes []mir.NodeID) (mir.NodeID, error) {
	table := p.db.TableFor(s.Source.Model)
	ip := indexplan.Choose(table, p.cap, s.Filter)
	p.log.Debug("chose index plan", "statement", int(id), "table", table.Name, "index", ip.Index)
	if ip.PostFilter != nil {
		p.log.Warn("capability gap forces post_filter fallback", "statement", int(id), "table", table.Name)
	}

	op := mir.Operation{
		Table:       int(s.Source.Table),
		PkFilter:    ip.IndexFilter,
		RowFilter:   ip.ResultFilter,
		Assignments: s.Assignments,
		Condition:   s.Condition,
	}

	if ip.Index >= 0 {
		findNode := p.builder.Add(mir.Operation{
			Kind: mir.OpFindPkByIndex, Table: int(s.Source.Table), Index: ip.Index,
			PkFilter: ip.IndexFilter,
		}, depNodes...)
		op.Columns = table.PrimaryKey
		depNodes = append(depNodes, findNode)
	} else if kf, ok := indexplan.TryBuildKeyFilter(table.PrimaryKey, ip.IndexFilter); ok {
		op.Keys = &mir.KeyFilter{Columns: kf.Columns, Keys: kf.Keys}
	}

	switch {
	case s.Kind == stmt.StmtDelete:
		op.Kind = mir.OpDeleteByKey
	case s.Kind == stmt.StmtUpdate:
		op.Kind = mir.OpUpdateByKey
	case op.Keys != nil:
		op.Kind = mir.OpGetByKey
	default:
		op.Kind = mir.OpQueryPk
	}

	node := p.builder.Add(op, depNodes...)
	if ip.PostFilter != nil {
		node = p.builder.Add(mir.Operation{Kind: mir.OpFilter, Source: node, Predicate: ip.PostFilter}, node)
	}
	return node, nil
}

// planOutput implements spec §4.6 step 6: a bare Const/ExecStatement
// node with no returning shape passes straight through; so does the
// data node of a Value returning (a Const node only when planDataLoad
// took the Const fast path); an Expr returning becomes a
// Project (a pure column subset) or an Eval (anything computed) over the
// data node; a NestedMerge wraps a data node that feeds, or is fed by,
// dependent statements contributing to this statement's own returning.
func (p *Planner) planOutput(id hir.StatementID, s *stmt.Statement, dataNode mir.NodeID, depNodes []mir.NodeID) (mir.NodeID, error) {
	info := p.arena.Get(id)
	if len(info.BackRefs) > 0 {
		children := make([]mir.NodeID, 0, len(info.BackRefs))
		for i := range info.BackRefs {
			ref := &info.BackRefs[i]
			proj := p.builder.Add(mir.Operation{Kind: mir.OpProject, Source: dataNode, Projection: []int{ref.Column}}, dataNode)
			ref.ProjectNode = int(proj)
			children = append(children, proj)
		}
		var mergeExpr *stmt.Expr
		if s.Returning != nil && (s.Returning.Kind == stmt.ReturningExpr || s.Returning.Kind == stmt.ReturningValue) {
			mergeExpr = &s.Returning.Expr
		}
		return p.builder.Add(mir.Operation{Kind: mir.OpNestedMerge, LoadData: dataNode, Children: children, MergeExpr: mergeExpr}, append(append([]mir.NodeID{dataNode}, children...), depNodes...)...), nil
	}

	if s.Returning == nil || s.Returning.Kind == stmt.ReturningNone {
		return dataNode, nil
	}
	if s.Returning.Kind == stmt.ReturningValue {
		return dataNode, nil
	}

	expr := s.Returning.Expr
	if cols, ok := pureColumnProjection(expr); ok {
		return p.builder.Add(mir.Operation{Kind: mir.OpProject, Source: dataNode, Projection: cols}, dataNode), nil
	}
	e := expr
	return p.builder.Add(mir.Operation{Kind: mir.OpEval, Source: dataNode, EvalExpr: &e}, dataNode), nil
}

// pureColumnProjection reports whether expr is a Record of bare Column
// references, letting planOutput pick the cheaper Project node over a
// general Eval (spec §4.6 step 6 "depending on whether the data-load
// node itself is among the inputs").
func pureColumnProjection(expr stmt.Expr) ([]int, bool) {
	if expr.Kind != stmt.ExprRecord {
		return nil, false
	}
	cols := make([]int, len(expr.Items))
	for i, it := range expr.Items {
		if it.Kind != stmt.ExprColumn {
			return nil, false
		}
		cols[i] = it.Column.Column
	}
	return cols, true
}
