// Package ast defines the typer-facing SQL AST (spec §4.6): statement and
// expression node shapes sufithcient to drive schema collection and static
// typing, plus the nominal-type lattice and argument-key types from spec
// §3/§4.8. Full SQL grammar (window functions, recursive CTEs, stored
// routine bodies) is intentionally out of scope; those constructs parse
// into a recognizable node that the typer treats conservatively.
package ast

import "github.com/sqly-go/sqly/issue"

// Span aliases issue.Span so every AST node can carry a diagnostic range
// without importing issue directly at each call site.
type Span = issue.Span

// NominalKind is the base type in the typer's nominal-type lattice (spec
// §4.7 "Data-type mapping").
type NominalKind int

const (
	KindNull NominalKind = iota
	KindBool
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindString
	KindBytes
	KindDate
	KindTime
	KindDateTime
	KindTimestamp
	KindEnum
	KindSet
	KindAny
)

func (k NominalKind) String() string {
	names := [...]string{
		"Null", "Bool", "I8", "U8", "I16", "U16", "I32", "U32", "I64", "U64",
		"F32", "F64", "String", "Bytes", "Date", "Time", "DateTime", "Timestamp",
		"Enum", "Set", "Any",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// NominalType is a base type plus, for Enum/Set, its value list.
type NominalType struct {
	Kind   NominalKind
	Values []string // only meaningful for KindEnum/KindSet
}

// FullType is a nominal type plus the two flags spec §3 names: NotNull and
// the "list hack" marker for IN (_LIST_) (spec §6). The typer tracks
// NotNull; it never sets ListHack, and IN (_LIST_) records no argument.
type FullType struct {
	Nominal  NominalType
	NotNull  bool
	ListHack bool
}

// ArgumentKeyKind discriminates positional (`?`) from named (`:name` /
// `$name`) parameters.
type ArgumentKeyKind int

const (
	ArgIndex ArgumentKeyKind = iota
	ArgName
)

// ArgumentKey identifies one bound parameter across a statement.
type ArgumentKey struct {
	Kind  ArgumentKeyKind
	Index int
	Name  string
}

// Argument pairs an ArgumentKey with its inferred type (spec §4.8
// "arguments").
type Argument struct {
	Key  ArgumentKey
	Type FullType
}

// Column is an ordered, optionally-named output column (spec §4.8
// "columns").
type Column struct {
	Name string // empty if the expression is unnamed
	Type FullType
}
