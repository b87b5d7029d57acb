package lower

import (
	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/hir"
	"github.com/stokaro/ptah/engine/perr"
)

// fkSink receives a resolved foreign-key column value during belongs-to
// planning: an Update assignment for the owning statement's own
// Assignments list, or a direct write into an insert row's Items for the
// insert case (spec §4.5, triggered for insert, update, and delete).
type fkSink func(fieldIdx int, value stmt.Expr)

// planRelations implements the belongs-to/has-one/has-many mutation
// planning of spec §4.5 for the relation fields among the statement's
// Assignments. Only assigned relation fields are planned: a delete's
// cascade or nullify obligations toward has-one/has-many dependents
// produce no dependent statement here. Each relation step pushes its
// field id onto fieldStack and pops it on return, so a cycle back through
// the inverse pair field is detectable by checking the stack (spec §4.5
// "Cycle prevention").
func (l *Lowerer) planRelations(id hir.StatementID, s *stmt.Statement) error {
	model := l.app.Model(s.Source.Model)

	remaining := s.Assignments[:0:0]
	for _, a := range s.Assignments {
		field := model.Field(a.Field)
		if field.Kind == schema.FieldPrimitive || field.Kind == schema.FieldEmbedded {
			remaining = append(remaining, a)
			continue
		}
		if l.onFieldStack(field.ID) {
			continue
		}
		if err := l.planRelationAssignment(id, s, field, a); err != nil {
			return err
		}
	}
	s.Assignments = remaining
	return nil
}

// planInsertRelations implements spec §4.5's belongs-to handling for
// insert rows: each row's relation-valued item is resolved into the
// foreign-key column values it implies, written back into that row at the
// paired primitive field's position. Has-one/has-many association on
// insert would need the freshly inserted row's own (possibly
// autoincrement-generated) primary key as a forward reference, which no
// dependency this arena can express yet supplies; a non-null value there
// is rejected rather than silently producing an unreachable dependent
// statement (see DESIGN.md).
func (l *Lowerer) planInsertRelations(id hir.StatementID, s *stmt.Statement) error {
	model := l.app.Model(s.Source.Model)
	rows := s.InsertSource.Returning.Expr.Items

	for ri := range rows {
		if rows[ri].Kind != stmt.ExprRecord {
			return perr.AtHIR(perr.ErrLowering, int(id), "insert row %d is not a record expression", ri)
		}
		items := rows[ri].Items

		for fi := range model.Fields {
			field := &model.Fields[fi]
			if field.Kind != schema.FieldBelongsTo && field.Kind != schema.FieldHasOne && field.Kind != schema.FieldHasMany {
				continue
			}
			if fi >= len(items) {
				continue
			}
			value := items[fi]

			if field.Kind == schema.FieldBelongsTo {
				l.fieldStack = append(l.fieldStack, field.ID)
				err := l.resolveBelongsTo(id, field, stmt.AssignSet, value, func(idx int, v stmt.Expr) {
					items[idx] = v
				})
				l.fieldStack = l.fieldStack[:len(l.fieldStack)-1]
				if err != nil {
					return err
				}
				continue
			}

			if !stmt.IsLiteralNull(value) {
				return perr.AtHIR(perr.ErrStatement, int(id),
					"field %s: has-one/has-many association on insert requires forward-referencing dependency scheduling, which is unimplemented", field.Name)
			}
		}
	}
	return nil
}

func (l *Lowerer) onFieldStack(id schema.FieldID) bool {
	for _, f := range l.fieldStack {
		if f == id {
			return true
		}
	}
	return false
}

// planRelationAssignment dispatches on field.Kind to the matching
// mutation shape of spec §4.5. BelongsTo resolves a value/query key, an
// Insert-builder, or a disassociate directly into the owning statement's
// FK columns; HasOne/HasMany emit one or more dependent statements
// against the target table and record them as HIR dependencies, since
// they mutate a different table's rows.
func (l *Lowerer) planRelationAssignment(id hir.StatementID, s *stmt.Statement, field *schema.Field, a stmt.Assignment) error {
	l.fieldStack = append(l.fieldStack, field.ID)
	defer func() { l.fieldStack = l.fieldStack[:len(l.fieldStack)-1] }()

	switch field.Kind {
	case schema.FieldBelongsTo:
		return l.planBelongsToAssignment(id, s, field, a)
	case schema.FieldHasOne, schema.FieldHasMany:
		return l.planHasRelationAssignment(id, s, field, a)
	default:
		return perr.AtHIR(perr.ErrStatement, int(id), "field %s: not a relation field", field.Name)
	}
}

// planBelongsToAssignment implements spec §4.5's "BelongsTo associate"
// for an Update/Delete's model-level Assignment, writing the resolved FK
// columns back onto s.Assignments.
func (l *Lowerer) planBelongsToAssignment(id hir.StatementID, s *stmt.Statement, field *schema.Field, a stmt.Assignment) error {
	return l.resolveBelongsTo(id, field, a.Kind, a.Value, func(fieldIdx int, value stmt.Expr) {
		s.Assignments = append(s.Assignments, stmt.Assignment{
			Field: schema.FieldID{Model: s.Source.Model, Index: fieldIdx},
			Value: value,
		})
	})
}

// resolveBelongsTo is the shared belongs-to resolution shared by
// planBelongsToAssignment (Update's Assignments sink) and
// planInsertRelations (an insert row's Items sink): a null value or
// explicit disassociate nulls the FK columns (or reports the required-
// pair cascade-delete gap if the relation isn't nullable), an
// Insert-builder value chains the freshly created target's key in via
// Arg/BackRef, and anything else is the plain value/query-key case,
// projected directly onto the FK columns.
func (l *Lowerer) resolveBelongsTo(id hir.StatementID, field *schema.Field, kind stmt.AssignmentKind, value stmt.Expr, set fkSink) error {
	fk := field.BelongsTo
	if fk == nil {
		return perr.AtHIR(perr.ErrSchema, int(id), "field %s: BelongsTo field has no ForeignKey", field.Name)
	}

	disassociating := kind == stmt.AssignDisassociate || kind == stmt.AssignDisassociateAll ||
		(kind == stmt.AssignSet && stmt.IsLiteralNull(value))
	if disassociating {
		if !field.Nullable {
			return perr.AtHIR(perr.ErrStatement,
				int(id), "field %s: disassociating a required belongs-to relation requires a cascade delete, which is unimplemented", field.Name)
		}
		for _, pair := range fk.Pairs {
			set(pair.Source, stmt.Null())
		}
		return nil
	}

	if value.Kind == stmt.ExprStmt {
		return l.resolveBelongsToInsertBuilder(id, fk, value, set)
	}

	for i, pair := range fk.Pairs {
		set(pair.Source, stmt.Project(value, i))
	}
	return nil
}

// resolveBelongsToInsertBuilder implements spec §4.5's Insert-builder
// sub-case: value is a pending Insert for the target row, which is
// lowered and recorded as a dependency (it must execute before this
// statement), and each FK pair is wired via a BackRef/Arg over the
// target's own generated column rather than the target's Returning
// clause, so this works for composite foreign keys (each pair gets its
// own single-column back-ref, matching engine/eval.Compile's requirement
// that an Arg's resolved input row be exactly one column) and never
// clobbers a Returning the caller already set on the target statement.
func (l *Lowerer) resolveBelongsToInsertBuilder(id hir.StatementID, fk *schema.ForeignKey, value stmt.Expr, set fkSink) error {
	target := value.Sub
	if target == nil || target.Kind != stmt.StmtInsert {
		return perr.AtHIR(perr.ErrStatement, int(id), "belongs-to Insert-builder value is not an insert statement")
	}

	depID := l.arena.Alloc(target)
	l.pushScope(scope{stmtID: depID})
	if err := l.lowerStatement(depID); err != nil {
		l.popScope()
		return err
	}
	l.popScope()
	l.arena.AddDep(id, depID)

	targetMapping := l.db.Mapping(fk.Target)
	for _, pair := range fk.Pairs {
		col := targetMapping.Fields[pair.Target].Column
		l.arena.AddBackRef(depID, hir.BackRef{Consumer: id, Column: col})
		argIdx := l.arena.AddArg(id, hir.Arg{Kind: hir.ArgRef, Target: depID, TargetColumn: stmt.Col(-1, col)})
		set(pair.Source, stmt.Arg(argIdx))
	}
	return nil
}

// planHasRelationAssignment implements the has-one/has-many mutation
// shapes of spec §4.5: exclusive associate's disassociate-all precursor,
// a plain-value/query-key associate, the Query sub-statement associate
// (reusing its filter directly against the target table), and the
// Disassociate/DisassociateAll mutation kinds. The Insert-builder
// sub-case for a has-one/has-many field is not covered here: chaining
// this row's own (possibly not-yet-generated) primary key into a freshly
// created child needs a forward dependency this arena cannot express, so
// it is out of scope (see DESIGN.md); it is reported the same way
// planInsertRelations reports it, rather than implemented unsoundly.
func (l *Lowerer) planHasRelationAssignment(id hir.StatementID, s *stmt.Statement, field *schema.Field, a stmt.Assignment) error {
	rel := field.Rel
	if rel == nil {
		return perr.AtHIR(perr.ErrSchema, int(id), "field %s: has-one/has-many field has no Relation", field.Name)
	}
	targetModel := l.app.Model(rel.Target)
	pairField := targetModel.FieldByName(rel.PairFieldName)
	if pairField == nil {
		return perr.AtHIR(perr.ErrSchema, int(id), "field %s: pair field %q not found on %s", field.Name, rel.PairFieldName, targetModel.Name)
	}

	switch a.Kind {
	case stmt.AssignDisassociateAll:
		return l.disassociateAllHasRelation(id, s, targetModel, pairField, nil)
	case stmt.AssignDisassociate:
		return l.disassociateOneHasRelation(id, s, targetModel, pairField, a.Value)
	}

	if a.Exclusive {
		var exclude *stmt.Expr
		if a.Value.Kind != stmt.ExprStmt {
			v := a.Value
			exclude = &v
		}
		if err := l.disassociateAllHasRelation(id, s, targetModel, pairField, exclude); err != nil {
			return err
		}
	}

	if a.Value.Kind == stmt.ExprStmt {
		if a.Value.Sub != nil && a.Value.Sub.Kind == stmt.StmtInsert {
			return perr.AtHIR(perr.ErrStatement, int(id),
				"field %s: has-one/has-many Insert-builder chaining into this row's own generated key requires forward-referencing dependency scheduling, which is unimplemented", field.Name)
		}
		return l.associateHasRelationQuery(id, s, field, targetModel, pairField, a.Value.Sub)
	}

	return l.associateHasRelationValue(id, s, targetModel, pairField, a.Value)
}

// associateHasRelationValue implements the has-one/has-many associate
// shape for a plain value argument (spec §4.5 "for each supplied target:
// if given as a value, emit an Update setting the pair FK to the source
// selection"): it allocates a dependent Update statement against the
// target table, filtered to the supplied key, setting the pair field to
// this row's own primary key, and records it as a HIR dependency so it
// executes before this statement's load step.
func (l *Lowerer) associateHasRelationValue(id hir.StatementID, s *stmt.Statement, targetModel *schema.Model, pairField *schema.Field, value stmt.Expr) error {
	targetFilter := targetKeyFilter(targetModel, value)
	dependent := &stmt.Statement{
		Kind:   stmt.StmtUpdate,
		Source: stmt.Source{Kind: stmt.SourceModel, Model: targetModel.ID},
		Filter: &targetFilter,
		Assignments: []stmt.Assignment{
			{Field: pairField.ID, Value: selfPrimaryKeyExpr(l.app.Model(s.Source.Model))},
		},
	}
	return l.runDependentRelationStatement(id, dependent)
}

// associateHasRelationQuery implements spec §4.5's Query sub-statement
// associate case: query's own filter (already scoped to targetModel) is
// reused directly as the dependent Update's filter, rather than wrapped
// in a correlated predicate, since the dependent already targets exactly
// the rows the query would have selected.
func (l *Lowerer) associateHasRelationQuery(id hir.StatementID, s *stmt.Statement, field *schema.Field, targetModel *schema.Model, pairField *schema.Field, query *stmt.Statement) error {
	if query == nil || query.Kind != stmt.StmtQuery {
		return perr.AtHIR(perr.ErrStatement, int(id), "field %s: relation Query sub-statement is not a query", field.Name)
	}
	if query.Source.Kind == stmt.SourceModel && query.Source.Model != targetModel.ID {
		return perr.AtHIR(perr.ErrStatement, int(id), "field %s: relation Query sub-statement targets the wrong model", field.Name)
	}
	dependent := &stmt.Statement{
		Kind:   stmt.StmtUpdate,
		Source: stmt.Source{Kind: stmt.SourceModel, Model: targetModel.ID},
		Filter: query.Filter,
		Assignments: []stmt.Assignment{
			{Field: pairField.ID, Value: selfPrimaryKeyExpr(l.app.Model(s.Source.Model))},
		},
	}
	return l.runDependentRelationStatement(id, dependent)
}

// disassociateAllHasRelation implements spec §4.5's DisassociateAll: every
// row currently paired with this one is updated to null the pair FK, or
// deleted outright when the pair FK isn't nullable. exclude, when set,
// carves the row(s) named by it out of scope — the exclusive-associate
// precursor, keeping the row about to be (re-)associated untouched.
func (l *Lowerer) disassociateAllHasRelation(id hir.StatementID, s *stmt.Statement, targetModel *schema.Model, pairField *schema.Field, exclude *stmt.Expr) error {
	selfPK := selfPrimaryKeyExpr(l.app.Model(s.Source.Model))
	filter := stmt.Binary(stmt.OpEq, stmt.Field(0, pairField.ID), selfPK)
	if exclude != nil {
		filter = stmt.And(filter, stmt.Not(targetKeyFilter(targetModel, *exclude)))
	}

	dependent := &stmt.Statement{Source: stmt.Source{Kind: stmt.SourceModel, Model: targetModel.ID}, Filter: &filter}
	if pairField.Nullable {
		dependent.Kind = stmt.StmtUpdate
		dependent.Assignments = []stmt.Assignment{{Field: pairField.ID, Value: stmt.Null()}}
	} else {
		dependent.Kind = stmt.StmtDelete
	}
	return l.runDependentRelationStatement(id, dependent)
}

// disassociateOneHasRelation implements spec §4.5's Disassociate(expr):
// exactly the pair named by value is removed, without touching any other
// currently-associated row.
func (l *Lowerer) disassociateOneHasRelation(id hir.StatementID, s *stmt.Statement, targetModel *schema.Model, pairField *schema.Field, value stmt.Expr) error {
	selfPK := selfPrimaryKeyExpr(l.app.Model(s.Source.Model))
	filter := stmt.And(targetKeyFilter(targetModel, value), stmt.Binary(stmt.OpEq, stmt.Field(0, pairField.ID), selfPK))

	dependent := &stmt.Statement{Source: stmt.Source{Kind: stmt.SourceModel, Model: targetModel.ID}, Filter: &filter}
	if pairField.Nullable {
		dependent.Kind = stmt.StmtUpdate
		dependent.Assignments = []stmt.Assignment{{Field: pairField.ID, Value: stmt.Null()}}
	} else {
		dependent.Kind = stmt.StmtDelete
	}
	return l.runDependentRelationStatement(id, dependent)
}

// runDependentRelationStatement allocates dependent into the arena, lowers
// it under its own scope, and records it as a HIR dependency of id so it
// is planned and executed before id.
func (l *Lowerer) runDependentRelationStatement(id hir.StatementID, dependent *stmt.Statement) error {
	depID := l.arena.Alloc(dependent)
	l.pushScope(scope{stmtID: depID})
	if err := l.lowerStatement(depID); err != nil {
		l.popScope()
		return err
	}
	l.popScope()
	l.arena.AddDep(id, depID)
	return nil
}

// targetKeyFilter builds the filter selecting the target row(s) named by
// value, a primary-key value or record matching targetModel's primary key
// shape.
func targetKeyFilter(targetModel *schema.Model, value stmt.Expr) stmt.Expr {
	pk := targetModel.PrimaryKey.Fields
	if len(pk) == 1 {
		return stmt.Binary(stmt.OpEq, stmt.Field(0, schema.FieldID{Model: targetModel.ID, Index: pk[0]}), value)
	}
	parts := make([]stmt.Expr, len(pk))
	for i, idx := range pk {
		parts[i] = stmt.Binary(stmt.OpEq, stmt.Field(0, schema.FieldID{Model: targetModel.ID, Index: idx}), stmt.Project(value, i))
	}
	return stmt.And(parts...)
}

// selfPrimaryKeyExpr builds the expression a dependent relation statement
// uses to reference the owning row's primary key; single-field keys yield
// the key value directly, composite keys a record of them.
func selfPrimaryKeyExpr(m *schema.Model) stmt.Expr {
	if len(m.PrimaryKey.Fields) == 1 {
		return stmt.Field(0, schema.FieldID{Model: m.ID, Index: m.PrimaryKey.Fields[0]})
	}
	items := make([]stmt.Expr, len(m.PrimaryKey.Fields))
	for i, idx := range m.PrimaryKey.Fields {
		items[i] = stmt.Field(0, schema.FieldID{Model: m.ID, Index: idx})
	}
	return stmt.Expr{Kind: stmt.ExprRecord, Items: items}
}
