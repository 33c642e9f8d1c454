// Package schema implements the schema snapshot data model and the DDL
// collector that builds one up from a source script (spec §4.7). Ground:
// qusql-type/src/schema.rs's Schema/Column/Procedure/Functions/IndexKey
// naming, reimplemented as plain Go structs and maps rather than a single
// serialized snapshot type.
package schema

import "github.com/sqly-go/sqly/ast"

// Column is one table or view column's tracked type information.
type Column struct {
	Name string
	Type ast.FullType

	// Generated holds a GENERATED ALWAYS AS (<expr>) column's expression,
	// retained so computeGeneratedColumnNullability can re-type it once
	// the whole schema is final (spec §4.7). Nil for ordinary columns.
	Generated ast.Expr
}

// TableKind distinguishes a base table from a view so DROP TABLE/DROP VIEW
// can reject a kind mismatch (spec §4.7).
type TableKind int

const (
	KindTable TableKind = iota
	KindView
)

// Schema is one table or view's column list.
type Schema struct {
	Name    string
	Kind    TableKind
	Columns []Column
}

// ColumnIndex returns the position of name in s.Columns, or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Procedure records a recognized CREATE PROCEDURE by name only; bodies are
// out of scope.
type Procedure struct {
	Name string
}

// Function records a recognized CREATE FUNCTION by name and declared
// return type.
type Function struct {
	Name       string
	ReturnType ast.NominalType
}

// IndexKey is the lookup key for the indices map (spec §4.7): (table,
// name), for MariaDB-style per-table indices. The collector always keys
// indices by their table; it never records PostgreSQL-style schema-scoped
// (empty, name) keys, so a DROP INDEX without ON finds no index.
type IndexKey struct {
	Table string
	Name  string
}

// Index is a recorded index: which columns it covers.
type Index struct {
	Key     IndexKey
	Columns []string
	Unique  bool
}

// Schemas is the full mutable snapshot the collector builds and the typer
// consults.
type Schemas struct {
	Tables     map[string]*Schema
	Procedures map[string]*Procedure
	Functions  map[string]*Function
	Indices    map[IndexKey]*Index
}

// New returns an empty snapshot, matching spec §4.7's "starts with empty
// mappings".
func New() *Schemas {
	return &Schemas{
		Tables:     make(map[string]*Schema),
		Procedures: make(map[string]*Procedure),
		Functions:  make(map[string]*Function),
		Indices:    make(map[IndexKey]*Index),
	}
}
