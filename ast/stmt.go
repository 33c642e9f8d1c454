package ast

// Statement is any top-level node the parser produces (spec §4.6).
type Statement interface {
	StmtSpan() Span
}

type stmtBase struct{ Sp Span }

func (s stmtBase) StmtSpan() Span { return s.Sp }

// ColumnDef is one column in a CREATE TABLE (or ALTER TABLE ADD COLUMN).
type ColumnDef struct {
	Name          string
	TypeName      string // raw SQL type name, e.g. "BIGINT", "VARCHAR(255)"
	Unsigned      bool
	NotNull       bool
	AutoIncrement bool
	Generated     Expr // non-nil for GENERATED ALWAYS AS (<expr>)
	Comment       string
	Span          Span
}

// ConstraintKind enumerates table-level constraints.
type ConstraintKind int

const (
	ConstraintPrimaryKey ConstraintKind = iota
	ConstraintUnique
	ConstraintForeignKey
)

// Constraint is a table-level constraint clause.
type Constraint struct {
	Kind       ConstraintKind
	Columns    []string
	RefTable   string // ConstraintForeignKey only
	RefColumns []string
}

// CreateTable is `CREATE TABLE [IF NOT EXISTS] name (...)`, optionally
// `LIKE other_table` (supplemented per original_source/, spec §4.7 carries
// it implicitly as a schema-copy operation).
type CreateTable struct {
	stmtBase
	Name        string
	IfNotExists bool
	OrReplace   bool
	LikeTable   string // non-empty for CREATE TABLE ... LIKE other
	Columns     []ColumnDef
	Constraints []Constraint
}

// CreateView is `CREATE [OR REPLACE] VIEW name AS select`.
type CreateView struct {
	stmtBase
	Name      string
	OrReplace bool
	Select    *Select
}

// CreateIndex is `CREATE INDEX name ON table (cols...)`.
type CreateIndex struct {
	stmtBase
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// DropIndex is `DROP INDEX [IF EXISTS] name [ON table]`.
type DropIndex struct {
	stmtBase
	Name     string
	Table    string // empty for dialects where indices are schema-scoped
	IfExists bool
}

// AlterSpecKind enumerates the ALTER TABLE clause kinds spec §4.6 names.
type AlterSpecKind int

const (
	AlterAddColumn AlterSpecKind = iota
	AlterModifyColumn
	AlterDropColumn
	AlterRenameColumn
	AlterAddIndex
	AlterDropIndex
	AlterAddForeignKey
	AlterDropForeignKey
)

// AlterSpec is one clause of an ALTER TABLE statement.
type AlterSpec struct {
	Kind       AlterSpecKind
	Column     ColumnDef // AlterAddColumn/AlterModifyColumn
	ColumnName string    // AlterDropColumn/AlterRenameColumn (old name)
	NewName    string    // AlterRenameColumn
	IndexName  string    // AlterAddIndex/AlterDropIndex
	IndexCols  []string  // AlterAddIndex
	IfExists   bool
}

// AlterTable is `ALTER TABLE name spec, spec, ...`.
type AlterTable struct {
	stmtBase
	Table string
	Specs []AlterSpec
}

// DropTable is `DROP TABLE [IF EXISTS] name`.
type DropTable struct {
	stmtBase
	Name     string
	IfExists bool
}

// DropView is `DROP VIEW [IF EXISTS] name`.
type DropView struct {
	stmtBase
	Name     string
	IfExists bool
}

// TableRef is a FROM-clause item: a base table, a subquery, or (by name
// resolution in the typer) a CTE.
type TableRef struct {
	Table    string  // empty if Subquery is set
	Alias    string
	Subquery *Select // non-nil for a derived table
}

// JoinKind enumerates the join kinds that affect nullability (spec §4.8
// "for LEFT/RIGHT/FULL, flip not-null on the nullable side's columns").
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
)

// Join extends a FROM clause.
type Join struct {
	Kind JoinKind
	Ref  TableRef
	On   Expr
}

// OrderByItem is one ORDER BY term.
type OrderByItem struct {
	Expr Expr
	Desc bool
}

// SelectItem is one projected expression, optionally aliased.
type SelectItem struct {
	Expr  Expr
	Alias string
	Star  bool // SELECT * or SELECT t.*
}

// Select is a SELECT statement (spec §4.8 "SELECT").
type Select struct {
	stmtBase
	With     *With // non-nil if this SELECT is itself inside a WITH (rare: top-level With wraps instead)
	Items    []SelectItem
	From     *TableRef
	Joins    []Join
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Distinct bool
	UnionAll *Select // non-nil for `... UNION [ALL] select`
	UnionIsAll bool
}

// InsertColumn is `col = expr`-shaped data pairing a column from the
// statement's explicit column list with its value. The parser always
// requires that column list; a row given in schema column order without
// one is not accepted.
type InsertColumn struct {
	Column string
	Value  Expr
}

// Insert is `INSERT INTO table (cols) VALUES (...) [RETURNING ...]`.
type Insert struct {
	stmtBase
	Table     string
	Columns   []InsertColumn
	Returning []SelectItem // empty if no RETURNING clause
}

// UpdateAssign is `col = expr` in an UPDATE's SET clause.
type UpdateAssign struct {
	Column string
	Value  Expr
}

// Update is `UPDATE table SET col = expr, ... WHERE ... [RETURNING ...]`.
type Update struct {
	stmtBase
	Table     string
	Set       []UpdateAssign
	Where     Expr
	Returning []SelectItem
}

// Delete is `DELETE FROM table WHERE ... [RETURNING ...]`.
type Delete struct {
	stmtBase
	Table     string
	Where     Expr
	Returning []SelectItem
}

// Replace is `REPLACE INTO table (cols) VALUES (...)`, MariaDB/MySQL's
// upsert-by-primary-key statement.
type Replace struct {
	stmtBase
	Table   string
	Columns []InsertColumn
}

// CTE is one `name AS (select)` binding inside a WITH clause.
type CTE struct {
	Name   string
	Select *Select
}

// With is a `WITH cte, cte, ... <statement>` wrapper. Recursive CTEs parse
// but the typer treats the recursive member conservatively (no fixpoint
// iteration), consistent with full-grammar completeness being out of
// scope.
type With struct {
	stmtBase
	Recursive bool
	CTEs      []CTE
	Body      Statement // typically *Select, but INSERT/UPDATE/DELETE ... WITH is legal in some dialects
}

// RoutineStub recognizes CREATE PROCEDURE / CREATE FUNCTION enough to
// register a name in the schema's procedure/function maps (supplemented
// per original_source/'s schema model) without parsing or typing the
// routine body, which is out of scope.
type RoutineStub struct {
	stmtBase
	Name       string
	IsFunction bool
	ReturnType string // IsFunction only
}
