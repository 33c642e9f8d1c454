package typer

import (
	"github.com/sqly-go/sqly/ast"
)

// lookupTable resolves a FROM-clause table reference against the schema
// snapshot and returns its columns as a frame, or false if not found.
func (t *Typer) lookupTable(name, alias string) (frame, bool) {
	sch, ok := t.schemas.Tables[name]
	if !ok {
		return frame{}, false
	}
	qualifier := name
	if alias != "" {
		qualifier = alias
	}
	cols := make([]frameColumn, len(sch.Columns))
	for i, c := range sch.Columns {
		cols[i] = frameColumn{qualifier: qualifier, name: c.Name, typ: c.Type}
	}
	return frame{qualifier: qualifier, columns: cols}, true
}

// pushTableRef resolves ref (base table, CTE, or derived subquery) and
// pushes its frame.
func (t *Typer) pushTableRef(ref *ast.TableRef) {
	if ref == nil {
		return
	}
	if ref.Subquery != nil {
		cols := t.typeSelectPushed(ref.Subquery)
		qualifier := ref.Alias
		fcols := make([]frameColumn, len(cols))
		for i, c := range cols {
			fcols[i] = frameColumn{qualifier: qualifier, name: c.Name, typ: c.Type}
		}
		t.frames.push(frame{qualifier: qualifier, columns: fcols})
		return
	}
	if f, ok := t.lookupCTEFrame(ref.Table); ok {
		qualifier := ref.Alias
		if qualifier == "" {
			qualifier = ref.Table
		}
		fcols := make([]frameColumn, len(f.columns))
		for i, c := range f.columns {
			fcols[i] = frameColumn{qualifier: qualifier, name: c.name, typ: c.typ}
		}
		t.frames.push(frame{qualifier: qualifier, columns: fcols})
		return
	}
	f, ok := t.lookupTable(ref.Table, ref.Alias)
	if !ok {
		t.issues.Errorf(ast.Span{}, "unknown table %q", ref.Table)
		t.frames.push(frame{qualifier: ref.Alias})
		return
	}
	t.frames.push(f)
}

// lookupCTEFrame finds a frame already on the stack under the given
// qualifier, the shape typeWith pushes a CTE's result under so later
// FROM clauses in the same WITH block can reference it by name.
func (t *Typer) lookupCTEFrame(name string) (frame, bool) {
	for _, f := range t.frames.frames {
		if f.binding && f.qualifier == name {
			return f, true
		}
	}
	return frame{}, false
}

// typeSelectPushed types a SELECT statement (spec §4.8 "SELECT"),
// managing its own frame push/pop so callers (subqueries, CTEs, CREATE
// VIEW) can nest it freely.
func (t *Typer) typeSelectPushed(s *ast.Select) []ast.Column {
	framesPushed := 0
	if s.From != nil {
		t.pushTableRef(s.From)
		framesPushed++
	}
	for _, j := range s.Joins {
		cols := t.joinColumns(j)
		t.frames.extendTop(cols)
		if j.On != nil {
			t.typeExpr(j.On, notNullType(ast.KindBool))
		}
	}

	if s.Where != nil {
		t.typeExpr(s.Where, notNullType(ast.KindBool))
	}
	if s.Having != nil {
		t.typeExpr(s.Having, notNullType(ast.KindBool))
	}
	for _, g := range s.GroupBy {
		t.typeExpr(g, ast.FullType{})
	}
	for _, o := range s.OrderBy {
		t.typeExpr(o.Expr, ast.FullType{})
	}

	cols := t.typeSelectItems(s.Items)

	for framesPushed > 0 {
		t.frames.pop()
		framesPushed--
	}

	if s.UnionAll != nil {
		otherCols := t.typeSelectPushed(s.UnionAll)
		cols = unionColumns(cols, otherCols)
	}
	return cols
}

func (t *Typer) typeSelectItems(items []ast.SelectItem) []ast.Column {
	var cols []ast.Column
	for _, item := range items {
		if item.Star {
			cols = append(cols, t.starColumns()...)
			continue
		}
		ft := t.typeExpr(item.Expr, ast.FullType{})
		name := item.Alias
		if name == "" {
			if ref, ok := item.Expr.(*ast.ColumnRef); ok {
				name = ref.Name
			}
		}
		cols = append(cols, ast.Column{Name: name, Type: ft})
	}
	return cols
}

// starColumns expands SELECT * against every column currently in scope,
// across every frame on the stack (the top frame(s) pushed by this
// SELECT's own FROM/JOINs).
func (t *Typer) starColumns() []ast.Column {
	var cols []ast.Column
	for _, f := range t.frames.frames {
		if f.binding {
			continue
		}
		for _, c := range f.columns {
			cols = append(cols, ast.Column{Name: c.name, Type: c.typ})
		}
	}
	return cols
}

// joinColumns resolves a JOIN's table reference to columns, flipping
// NotNull to false on the nullable side for LEFT/RIGHT/FULL (spec §4.8).
func (t *Typer) joinColumns(j ast.Join) []frameColumn {
	f, ok := t.lookupTable(j.Ref.Table, j.Ref.Alias)
	if !ok {
		t.issues.Errorf(ast.Span{}, "unknown table %q", j.Ref.Table)
		return nil
	}
	if j.Kind == ast.JoinLeft || j.Kind == ast.JoinFull {
		for i := range f.columns {
			f.columns[i].typ.NotNull = false
		}
	}
	if (j.Kind == ast.JoinRight || j.Kind == ast.JoinFull) && len(t.frames.frames) > 0 {
		top := &t.frames.frames[len(t.frames.frames)-1]
		for i := range top.columns {
			top.columns[i].typ.NotNull = false
		}
	}
	return f.columns
}

func unionColumns(a, b []ast.Column) []ast.Column {
	if len(a) != len(b) {
		return a
	}
	out := make([]ast.Column, len(a))
	for i := range a {
		out[i] = ast.Column{
			Name: a[i].Name,
			Type: ast.FullType{
				Nominal: joinNominal(a[i].Type.Nominal, b[i].Type.Nominal),
				NotNull: a[i].Type.NotNull && b[i].Type.NotNull,
			},
		}
	}
	return out
}

func (t *Typer) typeInsert(s *ast.Insert) []ast.Column {
	sch, ok := t.schemas.Tables[s.Table]
	if !ok {
		t.issues.Errorf(s.StmtSpan(), "unknown table %q", s.Table)
		return nil
	}
	for _, ic := range s.Columns {
		idx := sch.ColumnIndex(ic.Column)
		if idx < 0 {
			t.issues.Errorf(s.StmtSpan(), "unknown column %q on %q", ic.Column, s.Table)
			continue
		}
		t.typeExpr(ic.Value, sch.Columns[idx].Type)
	}
	if len(s.Returning) == 0 {
		return nil
	}
	f, _ := t.lookupTable(s.Table, "")
	t.frames.push(f)
	cols := t.typeSelectItems(s.Returning)
	t.frames.pop()
	return cols
}

func (t *Typer) typeUpdate(s *ast.Update) []ast.Column {
	f, ok := t.lookupTable(s.Table, "")
	if !ok {
		t.issues.Errorf(s.StmtSpan(), "unknown table %q", s.Table)
		return nil
	}
	t.frames.push(f)
	sch := t.schemas.Tables[s.Table]
	for _, a := range s.Set {
		idx := sch.ColumnIndex(a.Column)
		if idx < 0 {
			t.issues.Errorf(s.StmtSpan(), "unknown column %q on %q", a.Column, s.Table)
			continue
		}
		t.typeExpr(a.Value, sch.Columns[idx].Type)
	}
	if s.Where != nil {
		t.typeExpr(s.Where, notNullType(ast.KindBool))
	}
	var cols []ast.Column
	if len(s.Returning) > 0 {
		cols = t.typeSelectItems(s.Returning)
	}
	t.frames.pop()
	return cols
}

func (t *Typer) typeDelete(s *ast.Delete) []ast.Column {
	f, ok := t.lookupTable(s.Table, "")
	if !ok {
		t.issues.Errorf(s.StmtSpan(), "unknown table %q", s.Table)
		return nil
	}
	t.frames.push(f)
	if s.Where != nil {
		t.typeExpr(s.Where, notNullType(ast.KindBool))
	}
	var cols []ast.Column
	if len(s.Returning) > 0 {
		cols = t.typeSelectItems(s.Returning)
	}
	t.frames.pop()
	return cols
}

func (t *Typer) typeReplace(s *ast.Replace) []ast.Column {
	sch, ok := t.schemas.Tables[s.Table]
	if !ok {
		t.issues.Errorf(s.StmtSpan(), "unknown table %q", s.Table)
		return nil
	}
	for _, ic := range s.Columns {
		idx := sch.ColumnIndex(ic.Column)
		if idx < 0 {
			t.issues.Errorf(s.StmtSpan(), "unknown column %q on %q", ic.Column, s.Table)
			continue
		}
		t.typeExpr(ic.Value, sch.Columns[idx].Type)
	}
	return nil
}

// typeWith types each CTE in turn under the schemas extended by
// previously-typed CTEs in the same WITH block (spec §4.8 "WITH"), then
// types the body statement with those CTEs visible as tables.
func (t *Typer) typeWith(s *ast.With) []ast.Column {
	for _, cte := range s.CTEs {
		cols := t.typeSelectPushed(cte.Select)
		fcols := make([]frameColumn, len(cols))
		for i, c := range cols {
			fcols[i] = frameColumn{qualifier: cte.Name, name: c.Name, typ: c.Type}
		}
		// CTEs push and then pop across the subordinate query (spec
		// §4.8): make the CTE's result visible as a frame for the rest of
		// this WITH block and the body, not just its own definition.
		t.frames.push(frame{qualifier: cte.Name, columns: fcols, binding: true})
	}
	defer func() {
		for range s.CTEs {
			t.frames.pop()
		}
	}()

	switch body := s.Body.(type) {
	case *ast.Select:
		return t.typeSelectPushed(body)
	case *ast.Insert:
		return t.typeInsert(body)
	case *ast.Update:
		return t.typeUpdate(body)
	case *ast.Delete:
		return t.typeDelete(body)
	default:
		t.issues.Errorf(s.StmtSpan(), "unsupported WITH body %T", s.Body)
		return nil
	}
}
