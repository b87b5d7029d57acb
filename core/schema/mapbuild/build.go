package mapbuild

import (
	"github.com/stokaro/ptah/core/schema"
	"github.com/stokaro/ptah/core/stmt"
	"github.com/stokaro/ptah/engine/capability"
	"github.com/stokaro/ptah/engine/perr"
)

// Build computes tables, columns, and per-model mappings for app (spec
// §4.1). The multi-model-table path (more than one model sharing a table
// name) is explicitly unimplemented per spec §4.1's own Failure clause;
// Build reports ErrSchema rather than attempting a mapping it cannot
// prove correct.
func Build(app *schema.Schema, cap capability.Capability) (*DBSchema, error) {
	if cap.NativeType == nil {
		return nil, perr.New(perr.ErrSchema, "capability descriptor has no NativeType function")
	}

	groups := map[string][]schema.ModelID{}
	order := []string{}
	for i := range app.Models {
		m := &app.Models[i]
		name := m.TableName
		if name == "" {
			name = defaultTableName(m.Name, "")
		}
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], m.ID)
	}

	db := &DBSchema{
		Mappings: make([]Mapping, len(app.Models)),
	}

	for _, tableName := range order {
		modelIDs := groups[tableName]
		if len(modelIDs) > 1 {
			return nil, perr.New(perr.ErrSchema,
				"table %q: multi-model table mapping is not implemented (models: %v)", tableName, modelIDs)
		}

		model := app.Model(modelIDs[0])
		table := schema.Table{Name: tableName, MultiModel: false}

		b := &builder{app: app, cap: cap, model: model, table: &table}
		topExprs, topMappings, err := b.mapFields(model.Fields, mapCtx{})
		if err != nil {
			return nil, err
		}

		tableToModel := stmt.Expr{Kind: stmt.ExprRecord, Items: topExprs}

		for _, col := range table.Columns {
			if col.PrimaryKey {
				table.PrimaryKey = append(table.PrimaryKey, table.ColumnByName(col.Name))
			}
		}

		modelToTable := make([]stmt.Expr, len(table.Columns))
		copy(modelToTable, b.modelToTable)

		pkToTable, err := buildPkToTable(model, topMappings, modelToTable)
		if err != nil {
			return nil, err
		}

		tableID := schema.TableID(len(db.Tables))
		db.Tables = append(db.Tables, table)
		db.Mappings[model.ID] = Mapping{
			Table:          tableID,
			Fields:         topMappings,
			ModelToTable:   modelToTable,
			TableToModel:   tableToModel,
			ModelPkToTable: pkToTable,
		}

		if len(modelToTable) != len(table.Columns) {
			return nil, perr.New(perr.ErrSchema,
				"model %q: model_to_table length %d does not match column count %d",
				model.Name, len(modelToTable), len(table.Columns))
		}
	}

	return db, nil
}

// builder accumulates table.Columns and model_to_table entries while
// mapFields/mapField recurse; it mirrors the original's BuildMapping
// accumulator (spec §9 "mutual recursion in mapping construction").
type builder struct {
	app          *schema.Schema
	cap          capability.Capability
	model        *schema.Model
	table        *schema.Table
	modelToTable []stmt.Expr
	nextMaskBit  int
}

// mapCtx is the per-recursion-level state of the MapField traversal
// (spec §4.1): accumulated embed-path prefix, whether we're inside a
// data-carrying enum variant arm (forces nullability), and the template
// used to wrap a raw field-value expression into its final lowering
// expression.
type mapCtx struct {
	prefix       []string
	inEnumVariant bool
	template     func(raw stmt.Expr) stmt.Expr
}

func (c mapCtx) wrap(raw stmt.Expr) stmt.Expr {
	if c.template == nil {
		return raw
	}
	return c.template(raw)
}

// mapFields maps a flat list of fields (a model's top-level Fields, or an
// embedded struct's member fields, or an enum variant's member fields)
// under ctx, returning the table_to_model record entries (one per field,
// in order) and the FieldMapping list.
func (b *builder) mapFields(fields []schema.Field, ctx mapCtx) ([]stmt.Expr, []FieldMapping, error) {
	topExprs := make([]stmt.Expr, 0, len(fields))
	mappings := make([]FieldMapping, 0, len(fields))

	for i := range fields {
		field := &fields[i]
		raw := stmt.Field(0, field.ID)
		expr, fm, err := b.mapField(field, raw, ctx)
		if err != nil {
			return nil, nil, err
		}
		topExprs = append(topExprs, expr)
		mappings = append(mappings, fm)
	}
	return topExprs, mappings, nil
}

func fieldBit(b *builder) int {
	bit := b.nextMaskBit
	b.nextMaskBit++
	return bit
}

// mapField maps a single field, given raw (the raw reference to that
// field's value from whatever record currently being lowered) and ctx.
// It returns the table_to_model expression for this field and its
// FieldMapping.
func (b *builder) mapField(field *schema.Field, raw stmt.Expr, ctx mapCtx) (stmt.Expr, FieldMapping, error) {
	bit := fieldBit(b)

	switch field.Kind {
	case schema.FieldPrimitive:
		return b.mapPrimitive(field, raw, ctx, bit)
	case schema.FieldEmbedded:
		if field.EmbeddedEnum != nil {
			return b.mapEnum(field, raw, ctx, bit)
		}
		if field.EmbeddedStruct != nil {
			return b.mapStruct(field, raw, ctx, bit)
		}
		return stmt.Expr{}, FieldMapping{}, perr.New(perr.ErrSchema,
			"field %s: embedded field has neither EmbeddedStruct nor EmbeddedEnum set", field.Name)
	case schema.FieldBelongsTo, schema.FieldHasOne, schema.FieldHasMany:
		return stmt.Null(), FieldMapping{Field: field.ID, Kind: MapRelation, MaskBit: bit}, nil
	default:
		return stmt.Expr{}, FieldMapping{}, perr.New(perr.ErrSchema, "field %s: unknown field kind %v", field.Name, field.Kind)
	}
}

func (b *builder) mapPrimitive(field *schema.Field, raw stmt.Expr, ctx mapCtx, bit int) (stmt.Expr, FieldMapping, error) {
	storage := field.StorageType
	if storage == "" {
		st := b.cap.NativeType(field.Ty)
		if st == "" {
			return stmt.Expr{}, FieldMapping{}, perr.New(perr.ErrSchema,
				"field %s: unsupported storage type for %s", field.Name, field.Ty)
		}
		storage = string(st)
	}

	name := columnName(b.model.Name, ctx.prefix, field.Name, b.table.MultiModel)
	col := schema.Column{
		Name:       name,
		Storage:    schema.StorageType(storage),
		Bridge:     field.Ty,
		Nullable:   field.Nullable || ctx.inEnumVariant,
		PrimaryKey: isPrimaryKeyField(b.model, field.ID),
		AutoInc:    field.AutoInc,
	}
	b.table.Columns = append(b.table.Columns, col)
	colIdx := len(b.table.Columns) - 1

	loweringExpr := ctx.wrap(raw)
	b.modelToTable = append(b.modelToTable, loweringExpr)

	fm := FieldMapping{
		Field:         field.ID,
		Kind:          MapPrimitive,
		Column:        colIdx,
		LoweringIndex: colIdx,
		MaskBit:       bit,
		SubProjection: append([]string{}, ctx.prefix...),
	}

	colRef := stmt.Col(-1, colIdx)
	if string(col.Storage) != storageDefaultName(b.cap, field.Ty) {
		return stmt.Expr{Kind: stmt.ExprCast, Lhs: exprPtr(colRef), CastTo: field.Ty}, fm, nil
	}
	return colRef, fm, nil
}

func storageDefaultName(cap capability.Capability, ty schema.AbstractType) string {
	return string(cap.NativeType(ty))
}

func exprPtr(e stmt.Expr) *stmt.Expr { return &e }

func (b *builder) mapStruct(field *schema.Field, raw stmt.Expr, ctx mapCtx, bit int) (stmt.Expr, FieldMapping, error) {
	childPrefix := append(append([]string{}, ctx.prefix...), field.Name)
	nestedExprs := make([]stmt.Expr, 0, len(field.EmbeddedStruct.Fields))
	nestedMappings := make([]FieldMapping, 0, len(field.EmbeddedStruct.Fields))
	aggregate := []int{}

	for i := range field.EmbeddedStruct.Fields {
		child := &field.EmbeddedStruct.Fields[i]
		childRaw := stmt.Project(raw, i)
		childCtx := mapCtx{prefix: childPrefix, inEnumVariant: ctx.inEnumVariant, template: ctx.template}
		expr, fm, err := b.mapField(child, childRaw, childCtx)
		if err != nil {
			return stmt.Expr{}, FieldMapping{}, err
		}
		nestedExprs = append(nestedExprs, expr)
		nestedMappings = append(nestedMappings, fm)
		aggregate = append(aggregate, columnsOf(fm)...)
	}

	fm := FieldMapping{
		Field:            field.ID,
		Kind:             MapStruct,
		MaskBit:          bit,
		Nested:           nestedMappings,
		AggregateColumns: aggregate,
	}
	return stmt.Expr{Kind: stmt.ExprRecord, Items: nestedExprs}, fm, nil
}

func (b *builder) mapEnum(field *schema.Field, raw stmt.Expr, ctx mapCtx, bit int) (stmt.Expr, FieldMapping, error) {
	en := field.EmbeddedEnum

	var discRaw stmt.Expr
	if en.HasDataVariants {
		discRaw = stmt.Project(raw, 0)
	} else {
		discRaw = raw
	}

	discName := columnName(b.model.Name, ctx.prefix, field.Name, b.table.MultiModel)
	discCol := schema.Column{
		Name:       discName,
		Storage:    b.cap.NativeType(en.DiscriminantTy),
		Bridge:     en.DiscriminantTy,
		Nullable:   field.Nullable || ctx.inEnumVariant,
		PrimaryKey: isPrimaryKeyField(b.model, field.ID),
	}
	b.table.Columns = append(b.table.Columns, discCol)
	discIdx := len(b.table.Columns) - 1
	b.modelToTable = append(b.modelToTable, ctx.wrap(discRaw))
	discColRef := stmt.Col(-1, discIdx)

	variantMappings := make([]VariantMapping, 0, len(en.Variants))
	arms := make([]stmt.MatchArm, 0, len(en.Variants))

	for vi := range en.Variants {
		v := &en.Variants[vi]
		variantPrefix := append(append([]string{}, ctx.prefix...), field.Name)
		outerTemplate := ctx.template
		guard := func(inner stmt.Expr) stmt.Expr {
			matchOn := discRaw
			arm := stmt.MatchArm{Tag: v.Discriminant, Body: inner}
			guarded := stmt.Expr{Kind: stmt.ExprMatch, MatchOn: &matchOn, MatchArms: []stmt.MatchArm{arm}, MatchElse: exprPtr(stmt.Null())}
			if outerTemplate != nil {
				return outerTemplate(guarded)
			}
			return guarded
		}
		variantCtx := mapCtx{prefix: variantPrefix, inEnumVariant: true, template: guard}

		nestedExprs := make([]stmt.Expr, 0, len(v.Fields))
		nestedMappings := make([]FieldMapping, 0, len(v.Fields))
		for fi := range v.Fields {
			vf := &v.Fields[fi]
			childRaw := stmt.Project(raw, 1+fi)
			expr, fm, err := b.mapField(vf, childRaw, variantCtx)
			if err != nil {
				return stmt.Expr{}, FieldMapping{}, err
			}
			nestedExprs = append(nestedExprs, expr)
			nestedMappings = append(nestedMappings, fm)
		}

		variantMappings = append(variantMappings, VariantMapping{Discriminant: v.Discriminant, Fields: nestedMappings})

		var armBody stmt.Expr
		if len(v.Fields) == 0 {
			armBody = discColRef
		} else {
			items := append([]stmt.Expr{discColRef}, nestedExprs...)
			armBody = stmt.Expr{Kind: stmt.ExprRecord, Items: items}
		}
		arms = append(arms, stmt.MatchArm{Tag: v.Discriminant, Body: armBody})
	}

	fm := FieldMapping{
		Field:              field.ID,
		Kind:               MapEnum,
		MaskBit:            bit,
		DiscriminantColumn: discIdx,
		Variants:           variantMappings,
	}

	if !en.HasDataVariants {
		return discColRef, fm, nil
	}
	return stmt.Expr{Kind: stmt.ExprMatch, MatchOn: exprPtr(discColRef), MatchArms: arms, MatchElse: exprPtr(stmt.Null())}, fm, nil
}

func isPrimaryKeyField(m *schema.Model, id schema.FieldID) bool {
	if id.Model != m.ID {
		return false
	}
	for _, idx := range m.PrimaryKey.Fields {
		if idx == id.Index {
			return true
		}
	}
	return false
}

func columnsOf(fm FieldMapping) []int {
	switch fm.Kind {
	case MapPrimitive:
		return []int{fm.Column}
	case MapStruct:
		return fm.AggregateColumns
	case MapEnum:
		cols := []int{fm.DiscriminantColumn}
		for _, v := range fm.Variants {
			for _, f := range v.Fields {
				cols = append(cols, columnsOf(f)...)
			}
		}
		return cols
	default:
		return nil
	}
}

// buildPkToTable implements spec §4.1's "Primary-key lowering": for each
// primary-key field, in declared order, rewrite its model_to_table
// lowering expression so the leading field reference becomes an Arg at
// that field's position within the primary key, instead of a FieldRef
// into a full model record.
func buildPkToTable(m *schema.Model, top []FieldMapping, modelToTable []stmt.Expr) ([]stmt.Expr, error) {
	out := make([]stmt.Expr, 0, len(m.PrimaryKey.Fields))
	for pos, fieldIdx := range m.PrimaryKey.Fields {
		fieldID := schema.FieldID{Model: m.ID, Index: fieldIdx}
		fm := findPrimitiveMapping(top, fieldID)
		if fm == nil {
			return nil, perr.New(perr.ErrSchema, "model %q: primary key field %d has no primitive mapping", m.Name, fieldIdx)
		}
		expr := modelToTable[fm.Column]
		rewritten := stmt.Transform(expr, func(e stmt.Expr) stmt.Expr {
			if e.Kind == stmt.ExprFieldRef && e.FieldRef.Field == fieldID {
				return stmt.Arg(pos)
			}
			return e
		})
		out = append(out, rewritten)
	}
	return out, nil
}

func findPrimitiveMapping(fields []FieldMapping, id schema.FieldID) *FieldMapping {
	for i := range fields {
		if fields[i].Field == id && fields[i].Kind == MapPrimitive {
			return &fields[i]
		}
		if fields[i].Kind == MapStruct {
			if found := findPrimitiveMapping(fields[i].Nested, id); found != nil {
				return found
			}
		}
	}
	return nil
}
