// Package lower implements the statement lowerer of spec §4.3: it turns a
// model-level stmt.Statement into a HIR whose statements operate purely
// on table columns, with cross-statement references recorded as
// explicit hir.Arg/hir.BackRef edges instead of nested model
// expressions.
package lower

import (
	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/schema/mapbuild"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/capability"
	"github.com/stokaro/ptah/engine/config"
	"github.com/stokaro/ptah/engine/hir"
	"github.com/stokaro/ptah/engine/perr"
	"github.com/stokaro/ptah/engine/simplify"
)

// Lowerer holds the shared, read-only inputs of one lowering session
// (schema mapping and capability descriptor) plus the mutable arena and
// scope stack it builds up while walking one root statement and its
// relation-planning dependents.
type Lowerer struct {
	app  *schema.Schema
	db   *mapbuild.DBSchema
	cap  capability.Capability
	opts *config.PlannerOptions
	simp *simplify.Simplifier

	arena  *hir.Arena
	scopes []scope

	// fieldStack supports relation planning's cycle prevention (spec
	// §4.5): the field id of every relation step currently being planned,
	// innermost last.
	fieldStack []schema.FieldID
}

// New builds a Lowerer over app/db/cap. A nil opts uses the defaults.
func New(app *schema.Schema, db *mapbuild.DBSchema, cap capability.Capability, opts *config.PlannerOptions) *Lowerer {
	if opts == nil {
		opts = config.DefaultPlannerOptions()
	}
	return &Lowerer{app: app, db: db, cap: cap, opts: opts, simp: simplify.New(opts)}
}

// Lower lowers root and its relation-planning dependents into a fresh
// hir.Arena, returning the arena with Root set to the lowered root
// statement's id.
func (l *Lowerer) Lower(root *stmt.Statement) (*hir.Arena, error) {
	l.arena = hir.NewArena()
	id := l.arena.Alloc(root)
	l.arena.Root = id

	l.pushScope(scope{stmtID: id})
	defer l.popScope()

	if err := l.lowerStatement(id); err != nil {
		return nil, err
	}
	return l.arena, nil
}

func (l *Lowerer) lowerStatement(id hir.StatementID) error {
	if depth := len(l.scopes) - 1; depth > l.opts.MaxSubqueryDepth {
		return perr.AtHIR(perr.ErrCapability, int(id), "statement nesting depth %d exceeds MaxSubqueryDepth %d", depth, l.opts.MaxSubqueryDepth)
	}

	info := l.arena.Get(id)
	s := info.Stmt

	if err := l.lowerSource(id, s); err != nil {
		return err
	}

	if s.Kind == stmt.StmtUpdate || s.Kind == stmt.StmtDelete {
		if err := l.planRelations(id, s); err != nil {
			return err
		}
	}

	if s.Kind == stmt.StmtInsert && s.InsertSource != nil {
		if err := l.planInsertRelations(id, s); err != nil {
			return err
		}
		if err := l.lowerInsertSource(id, s); err != nil {
			return err
		}
	}

	if s.Kind == stmt.StmtUpdate {
		if err := l.lowerAssignments(id, s); err != nil {
			return err
		}
	}

	if err := l.lowerFilter(id, s); err != nil {
		return err
	}

	if err := l.lowerOffset(s); err != nil {
		return err
	}

	if err := l.lowerReturning(id, s); err != nil {
		return err
	}

	l.simp.Statement(s)
	return nil
}

// lowerSource rewrites Source::Model into Source::Table (spec §4.3
// "Source"). Relation sources reaching this stage are a lowering
// invariant violation: the caller must have already resolved them.
func (l *Lowerer) lowerSource(id hir.StatementID, s *stmt.Statement) error {
	if s.Source.Kind == stmt.SourceTable {
		return nil
	}
	if s.Source.Kind != stmt.SourceModel {
		return perr.AtHIR(perr.ErrLowering, int(id), "source kind %v is not a valid lowering input", s.Source.Kind)
	}
	mapping := l.db.Mapping(s.Source.Model)
	s.Source = stmt.Source{Kind: stmt.SourceTable, Model: s.Source.Model, Table: mapping.Table}
	return nil
}

// lowerInsertSource rewrites each Values row by substituting the model's
// model_to_table lowering expression for each field reference with the
// corresponding entry of that row (spec §4.3 "Values rows").
func (l *Lowerer) lowerInsertSource(id hir.StatementID, s *stmt.Statement) error {
	mapping := l.db.Mapping(s.Source.Model)
	rows := s.InsertSource.Returning.Expr.Items

	out := make([]stmt.Expr, len(rows))
	for ri, row := range rows {
		if row.Kind != stmt.ExprRecord {
			return perr.AtHIR(perr.ErrLowering, int(id), "insert row %d is not a record expression", ri)
		}
		rowIdx := ri
		l.pushScope(scope{stmtID: id, rowIndex: &rowIdx})

		cols := make([]stmt.Expr, len(mapping.ModelToTable))
		for ci, colExpr := range mapping.ModelToTable {
			rewritten := stmt.Transform(colExpr, func(e stmt.Expr) stmt.Expr {
				if e.Kind != stmt.ExprFieldRef {
					return e
				}
				idx := e.FieldRef.Field.Index
				if idx >= 0 && idx < len(row.Items) {
					return row.Items[idx]
				}
				return e
			})
			cols[ci] = l.simp.Expr(rewritten)
		}
		out[ri] = stmt.Expr{Kind: stmt.ExprRecord, Items: cols}
		l.popScope()
	}
	s.InsertSource.Returning.Expr.Items = out
	return nil
}

// lowerAssignments lowers each model-level Assignment into a rewrite of
// the model_to_table expression of the column that field maps to (spec
// §4.3 "Assignments"). Primary-key updates are rejected outright, and so
// is an assignment to a field that does not map onto a single column
// (an embedded struct or enum field).
func (l *Lowerer) lowerAssignments(id hir.StatementID, s *stmt.Statement) error {
	model := l.app.Model(s.Source.Model)
	mapping := l.db.Mapping(s.Source.Model)

	rewritten := make([]stmt.Assignment, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		if isPrimaryKeyField(model, a.Field) {
			return perr.AtHIR(perr.ErrStatement, int(id), "field %s: primary key update is not permitted", a.Field)
		}

		rhs, err := l.lowerExpr(id, a.Value)
		if err != nil {
			return err
		}

		idx := a.Field.Index
		if idx < 0 || idx >= len(mapping.Fields) {
			return perr.AtHIR(perr.ErrLowering, int(id), "field %s: no column mapping", a.Field)
		}
		fm := mapping.Fields[idx]
		if fm.Kind != mapbuild.MapPrimitive {
			return perr.AtHIR(perr.ErrStatement, int(id), "field %s: assignment to a non-primitive field is not supported", a.Field)
		}
		if fm.Column < 0 || fm.Column >= len(mapping.ModelToTable) {
			return perr.AtHIR(perr.ErrLowering, int(id), "field %s: no column mapping", a.Field)
		}
		colExpr := mapping.ModelToTable[fm.Column]
		substituted := stmt.Transform(colExpr, func(e stmt.Expr) stmt.Expr {
			if e.Kind == stmt.ExprFieldRef && e.FieldRef.Field == a.Field {
				return rhs
			}
			return e
		})
		rewritten = append(rewritten, stmt.Assignment{Field: a.Field, Value: l.simp.Expr(substituted)})
	}
	s.Assignments = rewritten
	return nil
}

// lowerFilter lowers the statement's Filter expression, then appends the
// begins_with discriminant constraint of spec §4.3's "Filter lowering
// constraints" for any enum/variant column whose model_to_table
// expression is a constant concatenation and that isn't already
// equality-constrained.
func (l *Lowerer) lowerFilter(id hir.StatementID, s *stmt.Statement) error {
	if s.Filter == nil {
		return nil
	}
	lowered, err := l.lowerExpr(id, *s.Filter)
	if err != nil {
		return err
	}
	lowered = l.appendDiscriminantConstraints(s, lowered)
	s.Filter = &lowered
	return nil
}

// appendDiscriminantConstraints is a no-op under this mapping scheme:
// enum discriminants are synthesized as their own comparable column
// (mapbuild.mapEnum), never as a concatenated composite-key string, so
// there is no constant-concat column for spec §4.3's begins_with
// rewrite to target, and the filter is returned unchanged.
func (l *Lowerer) appendDiscriminantConstraints(_ *stmt.Statement, filter stmt.Expr) stmt.Expr {
	return filter
}

// lowerOffset rewrites OffsetAfter into an additional filter constraint
// (spec §4.3 "Offset rewrite"); OffsetSkip needs no rewrite since it
// becomes a row-count the executor applies directly.
func (l *Lowerer) lowerOffset(s *stmt.Statement) error {
	if s.Offset == nil || s.Offset.Kind != stmt.OffsetAfter {
		return nil
	}
	if len(s.Offset.Key) == 0 {
		return nil
	}
	var constraint stmt.Expr
	if len(s.Offset.Key) == 1 {
		constraint = stmt.Binary(stmt.OpGt, stmt.Col(-1, 0), s.Offset.Key[0])
	} else {
		parts := make([]stmt.Expr, len(s.Offset.Key))
		for i, k := range s.Offset.Key {
			parts[i] = stmt.Binary(stmt.OpGt, stmt.Col(-1, i), k)
		}
		constraint = stmt.Or(parts...)
	}
	if s.Filter == nil {
		s.Filter = &constraint
	} else {
		combined := stmt.And(*s.Filter, constraint)
		s.Filter = &combined
	}
	s.Offset.Kind = stmt.OffsetNone
	return nil
}

// lowerReturning lowers the statement's Returning clause per spec §4.3.
func (l *Lowerer) lowerReturning(id hir.StatementID, s *stmt.Statement) error {
	if s.Returning == nil {
		return nil
	}
	switch s.Returning.Kind {
	case stmt.ReturningNone:
		return nil
	case stmt.ReturningModel:
		mapping := l.db.Mapping(s.Source.Model)
		s.Returning.Kind = stmt.ReturningExpr
		s.Returning.Expr = mapping.TableToModel
		return nil
	case stmt.ReturningExpr, stmt.ReturningValue:
		lowered, err := l.lowerExpr(id, s.Returning.Expr)
		if err != nil {
			return err
		}
		s.Returning.Expr = l.simp.Expr(lowered)
		return nil
	case stmt.ReturningChanged:
		s.Returning.Kind = stmt.ReturningExpr
		s.Returning.Expr = sparseChangedRecord(s)
		return nil
	}
	return nil
}

// sparseChangedRecord builds the SparseRecord expression of spec §4.3
// ("Returning::Changed is first converted ... into a SparseRecord
// expression listing exactly the fields being assigned").
func sparseChangedRecord(s *stmt.Statement) stmt.Expr {
	items := make([]stmt.Expr, len(s.Assignments))
	for i, a := range s.Assignments {
		items[i] = a.Value
	}
	return stmt.Expr{Kind: stmt.ExprRecord, Items: items}
}

// lowerExpr rewrites every FieldRef reachable from e via resolveField,
// tracking errors through a local accumulator since stmt.Transform's
// callback signature carries no error return.
func (l *Lowerer) lowerExpr(id hir.StatementID, e stmt.Expr) (stmt.Expr, error) {
	var firstErr error
	out := stmt.Transform(e, func(node stmt.Expr) stmt.Expr {
		if node.Kind != stmt.ExprFieldRef {
			return node
		}
		resolved, err := l.resolveField(id, node.FieldRef)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return node
		}
		return resolved
	})
	if firstErr != nil {
		return stmt.Expr{}, firstErr
	}
	return out, nil
}

// resolveField implements spec §4.3's "Field/column references": it
// resolves a reference to the table_to_model entry of the referenced
// field's own model mapping. A nesting-0 reference inside an insert-row
// scope is an error here, since lowerInsertSource substitutes those
// with the row's values itself.
func (l *Lowerer) resolveField(id hir.StatementID, fr stmt.FieldRef) (stmt.Expr, error) {
	sc, ok := l.scopeAt(fr.Nesting)
	if !ok {
		return stmt.Expr{}, perr.AtHIR(perr.ErrLowering, int(id), "field reference %s: nesting %d exceeds scope stack depth %d", fr.Field, fr.Nesting, len(l.scopes))
	}
	if fr.Nesting == 0 && sc.rowIndex != nil {
		return stmt.Expr{}, perr.AtHIR(perr.ErrLowering, int(id), "field reference %s: row-scoped references are substituted by the caller", fr.Field)
	}

	mapping := l.db.Mapping(fr.Field.Model)
	model := l.app.Model(fr.Field.Model)
	idx := fr.Field.Index
	if idx < 0 || idx >= len(model.Fields) || idx >= len(mapping.TableToModel.Items) {
		return stmt.Expr{}, perr.AtHIR(perr.ErrLowering, int(id), "field reference %s: index out of range", fr.Field)
	}
	return mapping.TableToModel.Items[idx], nil
}

func isPrimaryKeyField(m *schema.Model, id schema.FieldID) bool {
	if id.Model != m.ID {
		return false
	}
	for _, pk := range m.PrimaryKey.Fields {
		if pk == id.Index {
			return true
		}
	}
	return false
}
