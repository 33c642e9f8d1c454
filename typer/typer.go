package typer

import (
	"fmt"

	"github.com/sqly-go/sqly/ast"
	"github.com/sqly-go/sqly/issue"
	"github.com/sqly-go/sqly/schema"
)

// Result is the outcome of typing one statement (spec §4.8).
type Result struct {
	Columns   []ast.Column
	Arguments []ast.Argument
	Invalid   bool
}

// Typer types statements and expressions against a schema snapshot,
// accumulating diagnostics into an issue.Collector. It implements
// schema.SelectTyper so the schema collector can type CREATE VIEW bodies
// and generated-column expressions without an import cycle.
type Typer struct {
	schemas *schema.Schemas
	issues  *issue.Collector

	frames    frameStack
	args      []ast.Argument
	nextIndex int
}

// New builds a Typer over schemas, recording diagnostics into issues.
func New(schemas *schema.Schemas, issues *issue.Collector) *Typer {
	return &Typer{schemas: schemas, issues: issues}
}

// TypeStatement types one top-level statement (spec §4.8's per-kind
// rules), returning Invalid if any error-severity issue was recorded
// while typing it.
func (t *Typer) TypeStatement(stmt ast.Statement) Result {
	t.args = nil
	t.nextIndex = 0
	before := len(t.issues.Issues())

	var cols []ast.Column
	switch s := stmt.(type) {
	case *ast.Select:
		cols = t.typeSelectPushed(s)
	case *ast.Insert:
		cols = t.typeInsert(s)
	case *ast.Update:
		cols = t.typeUpdate(s)
	case *ast.Delete:
		cols = t.typeDelete(s)
	case *ast.Replace:
		cols = t.typeReplace(s)
	case *ast.With:
		cols = t.typeWith(s)
	default:
		t.issues.Errorf(stmt.StmtSpan(), "statement kind not supported by the typer")
	}

	invalid := false
	for _, iss := range t.issues.Issues()[before:] {
		if iss.Severity == issue.Error {
			invalid = true
			break
		}
	}
	return Result{Columns: cols, Arguments: t.collectArguments(), Invalid: invalid}
}

// collectArguments sorts recorded arguments by positional index (spec
// §4.8 "Argument collection") and merges duplicate indices, widening to
// Any and emitting a warning when they disagree.
func (t *Typer) collectArguments() []ast.Argument {
	byIndex := make(map[int]*ast.Argument)
	var named []ast.Argument
	var order []int
	for _, a := range t.args {
		if a.Key.Kind == ast.ArgName {
			named = append(named, a)
			continue
		}
		if existing, ok := byIndex[a.Key.Index]; ok {
			if existing.Type.Nominal.Kind != a.Type.Nominal.Kind {
				t.issues.Warnf(issue.Span{}, "argument %d used with conflicting types; widening to Any", a.Key.Index)
				existing.Type = ast.FullType{Nominal: ast.NominalType{Kind: ast.KindAny}}
			}
			continue
		}
		cp := a
		byIndex[a.Key.Index] = &cp
		order = append(order, a.Key.Index)
	}
	out := make([]ast.Argument, 0, len(order)+len(named))
	for _, idx := range sortInts(order) {
		out = append(out, *byIndex[idx])
	}
	out = append(out, named...)
	return out
}

func sortInts(xs []int) []int {
	out := append([]int(nil), xs...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// recordArg tracks a parameter occurrence with its expected type.
func (t *Typer) recordArg(key ast.Key, expected ast.FullType) {
	ak := ast.ArgumentKey{Kind: ast.ArgIndex, Index: key.Index, Name: key.Name}
	if key.Named {
		ak.Kind = ast.ArgName
	}
	t.args = append(t.args, ast.Argument{Key: ak, Type: expected})
}

// TypeSelect implements schema.SelectTyper for CREATE VIEW bodies: types
// sel in a fresh Typer so its argument/frame state doesn't leak into the
// caller's, and returns its output columns.
func (t *Typer) TypeSelect(schemas *schema.Schemas, sel *ast.Select) ([]ast.Column, error) {
	sub := New(schemas, t.issues)
	before := len(t.issues.Issues())
	cols := sub.typeSelectPushed(sel)
	if hasErrorSince(t.issues, before) {
		return nil, fmt.Errorf("invalid SELECT")
	}
	return cols, nil
}

// TypeExprOverColumns implements schema.SelectTyper for generated-column
// nullability: types expr with a single anonymous reference frame made of
// cols (the table's own columns, as a generated column may reference any
// sibling column).
func (t *Typer) TypeExprOverColumns(schemas *schema.Schemas, cols []schema.Column, expr ast.Expr) (ast.FullType, error) {
	sub := New(schemas, t.issues)
	fcols := make([]frameColumn, len(cols))
	for i, c := range cols {
		fcols[i] = frameColumn{name: c.Name, typ: c.Type}
	}
	sub.frames.push(frame{columns: fcols})
	before := len(t.issues.Issues())
	ft := sub.typeExpr(expr, ast.FullType{})
	sub.frames.pop()
	if hasErrorSince(t.issues, before) {
		return ft, fmt.Errorf("invalid generated column expression")
	}
	return ft, nil
}

func hasErrorSince(issues *issue.Collector, before int) bool {
	for _, iss := range issues.Issues()[before:] {
		if iss.Severity == issue.Error {
			return true
		}
	}
	return false
}
