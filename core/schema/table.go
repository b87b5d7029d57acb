package schema

// TableID identifies a Table within a database-level schema (mapbuild.DBSchema),
// a dense index for the same reasons as ModelID.
type TableID int

// StorageType is a backend-concrete column type name (e.g. "VARCHAR(255)",
// "BIGINT", "TEXT"), chosen by the capability descriptor's NativeType
// function from an AbstractType, or overridden by Field.StorageType.
type StorageType string

// Column is one physical column of a Table.
type Column struct {
	Name        string
	Storage     StorageType
	Bridge      AbstractType // the AbstractType this column round-trips through
	Nullable    bool
	PrimaryKey  bool
	AutoInc     bool
}

// TableIndex mirrors schema.Index at the table level: ordered
// (column, op, scope) parts over physical columns instead of model fields.
type TableIndex struct {
	Name       string
	Unique     bool
	PrimaryKey bool
	Parts      []TableIndexPart
}

// TableIndexPart is one (column, op, scope) triple of a TableIndex.
type TableIndexPart struct {
	Column int // index into the owning Table's Columns
	Op     IndexOp
	Scope  string
}

// Table is a named, ordered list of columns plus its primary key and
// indices. Multiple models may map onto one Table (spec §4.1); Table
// itself carries no back-reference to the models that produced it —
// that association lives in Mapping.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []int // indices into Columns, in declared order
	Indices    []TableIndex

	// MultiModel is true when more than one model's mapping targets this
	// table, which is what forces the schema_prefix__ column-naming rule
	// (spec §3 "Invariants").
	MultiModel bool
}

// ColumnByName returns the column's index in t.Columns, or -1.
func (t *Table) ColumnByName(name string) int {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return i
		}
	}
	return -1
}
