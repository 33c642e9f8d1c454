package schema

import (
	"github.com/sqly-go/sqly/ast"
	"github.com/sqly-go/sqly/issue"
)

// SelectTyper is the typer capability the collector needs: typing a
// SELECT's output columns (CREATE VIEW) and typing a single expression
// against a fixed column list (a generated column's defining expression).
// Defined here rather than in package typer so schema has no import-cycle
// dependency on it; the typer package implements this interface and is
// handed in by the caller that wires both packages together.
type SelectTyper interface {
	TypeSelect(schemas *Schemas, sel *ast.Select) ([]ast.Column, error)
	TypeExprOverColumns(schemas *Schemas, cols []Column, expr ast.Expr) (ast.FullType, error)
}

// Collector applies a sequence of DDL statements to a Schemas snapshot in
// source order (spec §4.7).
type Collector struct {
	schemas *Schemas
	typer   SelectTyper
	issues  *issue.Collector
}

// NewCollector builds a Collector over an existing (possibly non-empty)
// Schemas snapshot.
func NewCollector(schemas *Schemas, typer SelectTyper, issues *issue.Collector) *Collector {
	return &Collector{schemas: schemas, typer: typer, issues: issues}
}

// Apply processes stmts in order, mutating the Collector's Schemas.
// Statements that are not schema-affecting DDL are ignored; callers
// typically run Apply over only the DDL prefix of a script and the typer
// over the DML statements that follow.
func (c *Collector) Apply(stmts []ast.Statement) {
	for _, st := range stmts {
		c.applyOne(st)
	}
	c.computeGeneratedColumnNullability()
}

func (c *Collector) applyOne(st ast.Statement) {
	switch s := st.(type) {
	case *ast.CreateTable:
		c.createTable(s)
	case *ast.CreateView:
		c.createView(s)
	case *ast.AlterTable:
		c.alterTable(s)
	case *ast.DropTable:
		c.dropTable(s)
	case *ast.DropView:
		c.dropView(s)
	case *ast.CreateIndex:
		c.createIndex(s)
	case *ast.DropIndex:
		c.dropIndex(s)
	case *ast.RoutineStub:
		c.routineStub(s)
	}
}

func (c *Collector) createTable(s *ast.CreateTable) {
	if _, exists := c.schemas.Tables[s.Name]; exists {
		if !s.OrReplace && !s.IfNotExists {
			c.issues.Errorf(s.StmtSpan(), "table %q already exists", s.Name)
			return
		}
		if s.IfNotExists {
			return
		}
	}

	if s.LikeTable != "" {
		src, ok := c.schemas.Tables[s.LikeTable]
		if !ok {
			c.issues.Errorf(s.StmtSpan(), "CREATE TABLE %q LIKE %q: source table not found", s.Name, s.LikeTable)
			return
		}
		cols := make([]Column, len(src.Columns))
		copy(cols, src.Columns)
		c.schemas.Tables[s.Name] = &Schema{Name: s.Name, Kind: KindTable, Columns: cols}
		return
	}

	cols := make([]Column, 0, len(s.Columns))
	for _, cd := range s.Columns {
		nominal := MapDataType(cd.TypeName, cd.Unsigned)
		cols = append(cols, Column{
			Name:      cd.Name,
			Type:      ast.FullType{Nominal: nominal, NotNull: cd.NotNull},
			Generated: cd.Generated,
		})
	}
	c.schemas.Tables[s.Name] = &Schema{Name: s.Name, Kind: KindTable, Columns: cols}
}

func (c *Collector) createView(s *ast.CreateView) {
	if _, exists := c.schemas.Tables[s.Name]; exists && !s.OrReplace {
		c.issues.Errorf(s.StmtSpan(), "view %q already exists", s.Name)
		return
	}
	outCols, err := c.typer.TypeSelect(c.schemas, s.Select)
	if err != nil {
		c.issues.Errorf(s.StmtSpan(), "CREATE VIEW %q: %v", s.Name, err)
		return
	}
	cols := make([]Column, len(outCols))
	for i, oc := range outCols {
		cols[i] = Column{Name: oc.Name, Type: oc.Type}
	}
	c.schemas.Tables[s.Name] = &Schema{Name: s.Name, Kind: KindView, Columns: cols}
}

func (c *Collector) dropTable(s *ast.DropTable) {
	sch, ok := c.schemas.Tables[s.Name]
	if !ok {
		if !s.IfExists {
			c.issues.Errorf(s.StmtSpan(), "table %q not found", s.Name)
		}
		return
	}
	if sch.Kind != KindTable {
		c.issues.Errorf(s.StmtSpan(), "%q is a view, not a table", s.Name)
		return
	}
	delete(c.schemas.Tables, s.Name)
}

func (c *Collector) dropView(s *ast.DropView) {
	sch, ok := c.schemas.Tables[s.Name]
	if !ok {
		if !s.IfExists {
			c.issues.Errorf(s.StmtSpan(), "view %q not found", s.Name)
		}
		return
	}
	if sch.Kind != KindView {
		c.issues.Errorf(s.StmtSpan(), "%q is a table, not a view", s.Name)
		return
	}
	delete(c.schemas.Tables, s.Name)
}

func (c *Collector) alterTable(s *ast.AlterTable) {
	sch, ok := c.schemas.Tables[s.Table]
	if !ok {
		c.issues.Errorf(s.StmtSpan(), "table %q not found", s.Table)
		return
	}
	for _, spec := range s.Specs {
		c.applyAlterSpec(s, sch, spec)
	}
}

func (c *Collector) applyAlterSpec(s *ast.AlterTable, sch *Schema, spec ast.AlterSpec) {
	switch spec.Kind {
	case ast.AlterAddColumn:
		if sch.ColumnIndex(spec.Column.Name) >= 0 {
			c.issues.Errorf(s.StmtSpan(), "column %q already exists on %q", spec.Column.Name, sch.Name)
			return
		}
		nominal := MapDataType(spec.Column.TypeName, spec.Column.Unsigned)
		sch.Columns = append(sch.Columns, Column{
			Name:      spec.Column.Name,
			Type:      ast.FullType{Nominal: nominal, NotNull: spec.Column.NotNull},
			Generated: spec.Column.Generated,
		})

	case ast.AlterModifyColumn:
		idx := sch.ColumnIndex(spec.Column.Name)
		if idx < 0 {
			if !spec.IfExists {
				c.issues.Errorf(s.StmtSpan(), "column %q not found on %q", spec.Column.Name, sch.Name)
			}
			return
		}
		nominal := MapDataType(spec.Column.TypeName, spec.Column.Unsigned)
		sch.Columns[idx].Type = ast.FullType{Nominal: nominal, NotNull: spec.Column.NotNull}

	case ast.AlterDropColumn:
		idx := sch.ColumnIndex(spec.ColumnName)
		if idx < 0 {
			if !spec.IfExists {
				c.issues.Errorf(s.StmtSpan(), "column %q not found on %q", spec.ColumnName, sch.Name)
			}
			return
		}
		sch.Columns = append(sch.Columns[:idx], sch.Columns[idx+1:]...)

	case ast.AlterRenameColumn:
		idx := sch.ColumnIndex(spec.ColumnName)
		if idx < 0 {
			c.issues.Errorf(s.StmtSpan(), "column %q not found on %q", spec.ColumnName, sch.Name)
			return
		}
		sch.Columns[idx].Name = spec.NewName

	case ast.AlterAddIndex:
		key := IndexKey{Table: sch.Name, Name: spec.IndexName}
		for _, col := range spec.IndexCols {
			if sch.ColumnIndex(col) < 0 {
				c.issues.Errorf(s.StmtSpan(), "index %q references unknown column %q", spec.IndexName, col)
				return
			}
		}
		c.schemas.Indices[key] = &Index{Key: key, Columns: spec.IndexCols}

	case ast.AlterDropIndex:
		key := IndexKey{Table: sch.Name, Name: spec.IndexName}
		if _, ok := c.schemas.Indices[key]; !ok {
			if !spec.IfExists {
				c.issues.Errorf(s.StmtSpan(), "index %q not found on %q", spec.IndexName, sch.Name)
			}
			return
		}
		delete(c.schemas.Indices, key)

	case ast.AlterAddForeignKey, ast.AlterDropForeignKey:
		// Foreign keys don't affect column types or nullability, which is
		// all the typer consumes from the schema; Schemas does not track
		// them, so these clauses are accepted and ignored.
	}
}

func (c *Collector) createIndex(s *ast.CreateIndex) {
	sch, ok := c.schemas.Tables[s.Table]
	if !ok {
		c.issues.Errorf(s.StmtSpan(), "table %q not found", s.Table)
		return
	}
	for _, col := range s.Columns {
		if sch.ColumnIndex(col) < 0 {
			c.issues.Errorf(s.StmtSpan(), "index %q references unknown column %q", s.Name, col)
			return
		}
	}
	key := IndexKey{Table: s.Table, Name: s.Name}
	c.schemas.Indices[key] = &Index{Key: key, Columns: s.Columns, Unique: s.Unique}
}

func (c *Collector) dropIndex(s *ast.DropIndex) {
	key := IndexKey{Table: s.Table, Name: s.Name}
	if _, ok := c.schemas.Indices[key]; !ok {
		if !s.IfExists {
			c.issues.Errorf(s.StmtSpan(), "index %q not found", s.Name)
		}
		return
	}
	delete(c.schemas.Indices, key)
}

func (c *Collector) routineStub(s *ast.RoutineStub) {
	if s.IsFunction {
		c.schemas.Functions[s.Name] = &Function{Name: s.Name, ReturnType: MapDataType(s.ReturnType, false)}
		return
	}
	c.schemas.Procedures[s.Name] = &Procedure{Name: s.Name}
}

// computeGeneratedColumnNullability types each `GENERATED ALWAYS AS (expr)`
// column's expression against the now-final schema (spec §4.7, "After all
// statements, compute the nullability of generated columns"). A generated
// column may reference any other column of the same table, including
// ones added by a later ALTER TABLE, so this must run after every DDL
// statement has been applied rather than inline at definition time.
func (c *Collector) computeGeneratedColumnNullability() {
	for _, sch := range c.schemas.Tables {
		if sch.Kind != KindTable {
			continue
		}
		for i, col := range sch.Columns {
			if col.Generated == nil {
				continue
			}
			ft, err := c.typer.TypeExprOverColumns(c.schemas, sch.Columns, col.Generated)
			if err != nil {
				c.issues.Errorf(col.Generated.ExprSpan(), "generated column %q: %v", col.Name, err)
				continue
			}
			ft.Nominal = sch.Columns[i].Type.Nominal
			sch.Columns[i].Type = ft
		}
	}
}
