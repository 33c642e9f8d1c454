package typer

import (
	"testing"

	"github.com/sqly-go/sqly/ast"
	"github.com/sqly-go/sqly/issue"
	"github.com/sqly-go/sqly/schema"
)

func usersOrdersSchema() *schema.Schemas {
	s := schema.New()
	s.Tables["users"] = &schema.Schema{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: ast.FullType{Nominal: ast.NominalType{Kind: ast.KindI64}, NotNull: true}},
			{Name: "name", Type: ast.FullType{Nominal: ast.NominalType{Kind: ast.KindString}, NotNull: true}},
			{Name: "nickname", Type: ast.FullType{Nominal: ast.NominalType{Kind: ast.KindString}, NotNull: false}},
		},
	}
	s.Tables["orders"] = &schema.Schema{
		Name: "orders",
		Columns: []schema.Column{
			{Name: "id", Type: ast.FullType{Nominal: ast.NominalType{Kind: ast.KindI64}, NotNull: true}},
			{Name: "user_id", Type: ast.FullType{Nominal: ast.NominalType{Kind: ast.KindI64}, NotNull: true}},
			{Name: "total", Type: ast.FullType{Nominal: ast.NominalType{Kind: ast.KindF64}, NotNull: true}},
		},
	}
	return s
}

func col(qualifier, name string) *ast.ColumnRef {
	return &ast.ColumnRef{Qualifier: qualifier, Name: name}
}

func TestSelectWhereParamTakesColumnType(t *testing.T) {
	s := usersOrdersSchema()
	issues := &issue.Collector{}
	ty := New(s, issues)

	stmt := &ast.Select{
		Items: []ast.SelectItem{{Expr: col("", "id")}, {Expr: col("", "name")}},
		From:  &ast.TableRef{Table: "users"},
		Where: &ast.BinaryExpr{Op: ast.OpEq, Left: col("", "id"), Right: &ast.Param{Key: ast.Key{Index: 1}}},
	}

	res := ty.TypeStatement(stmt)
	if res.Invalid {
		t.Fatalf("expected valid statement, issues=%v", issues.Issues())
	}
	if len(res.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(res.Columns))
	}
	if !res.Columns[0].Type.NotNull || res.Columns[0].Type.Nominal.Kind != ast.KindI64 {
		t.Errorf("id column: got %+v", res.Columns[0].Type)
	}
	if len(res.Arguments) != 1 {
		t.Fatalf("expected 1 argument, got %d", len(res.Arguments))
	}
	arg := res.Arguments[0]
	if arg.Type.Nominal.Kind != ast.KindI64 || !arg.Type.NotNull {
		t.Errorf("param 1 should take users.id's type, got %+v", arg.Type)
	}
}

func TestLeftJoinFlipsNullability(t *testing.T) {
	s := usersOrdersSchema()
	issues := &issue.Collector{}
	ty := New(s, issues)

	stmt := &ast.Select{
		Items: []ast.SelectItem{{Expr: col("o", "total"), Alias: "total"}},
		From:  &ast.TableRef{Table: "users", Alias: "u"},
		Joins: []ast.Join{{
			Kind: ast.JoinLeft,
			Ref:  ast.TableRef{Table: "orders", Alias: "o"},
			On:   &ast.BinaryExpr{Op: ast.OpEq, Left: col("u", "id"), Right: col("o", "user_id")},
		}},
	}

	res := ty.TypeStatement(stmt)
	if res.Invalid {
		t.Fatalf("expected valid statement, issues=%v", issues.Issues())
	}
	if res.Columns[0].Type.NotNull {
		t.Errorf("orders.total through a LEFT JOIN must be nullable, got NotNull=true")
	}
}

func TestInListHackDoesNotRecordArguments(t *testing.T) {
	s := usersOrdersSchema()
	issues := &issue.Collector{}
	ty := New(s, issues)

	stmt := &ast.Select{
		Items: []ast.SelectItem{{Expr: col("", "id")}},
		From:  &ast.TableRef{Table: "users"},
		Where: &ast.InExpr{Operand: col("", "id"), ListHack: true},
	}

	res := ty.TypeStatement(stmt)
	if res.Invalid {
		t.Fatalf("expected valid statement, issues=%v", issues.Issues())
	}
	if len(res.Arguments) != 0 {
		t.Errorf("IN (_LIST_) should not itself record a bound argument, got %v", res.Arguments)
	}
}

func TestCaseNullabilityRequiresElseAndAllBranches(t *testing.T) {
	s := usersOrdersSchema()
	issues := &issue.Collector{}
	ty := New(s, issues)

	withElse := &ast.CaseExpr{
		Whens: []ast.WhenClause{{Cond: &ast.BoolLiteral{Value: true}, Then: &ast.StringLiteral{Value: "a"}}},
		Else:  &ast.StringLiteral{Value: "b"},
	}
	ft := ty.typeExpr(withElse, ast.FullType{})
	if !ft.NotNull {
		t.Errorf("CASE with ELSE and all not-null branches should be not-null, got %+v", ft)
	}

	noElse := &ast.CaseExpr{
		Whens: []ast.WhenClause{{Cond: &ast.BoolLiteral{Value: true}, Then: &ast.StringLiteral{Value: "a"}}},
	}
	ft2 := ty.typeExpr(noElse, ast.FullType{})
	if ft2.NotNull {
		t.Errorf("CASE with no ELSE can fall through to NULL, expected nullable, got %+v", ft2)
	}
}

func TestInsertReturningTypesAgainstTableColumns(t *testing.T) {
	s := usersOrdersSchema()
	issues := &issue.Collector{}
	ty := New(s, issues)

	stmt := &ast.Insert{
		Table: "users",
		Columns: []ast.InsertColumn{
			{Column: "id", Value: &ast.Param{Key: ast.Key{Index: 1}}},
			{Column: "name", Value: &ast.Param{Key: ast.Key{Index: 2}}},
		},
		Returning: []ast.SelectItem{{Expr: col("", "id")}},
	}

	res := ty.TypeStatement(stmt)
	if res.Invalid {
		t.Fatalf("expected valid statement, issues=%v", issues.Issues())
	}
	if len(res.Arguments) != 2 {
		t.Fatalf("expected 2 arguments, got %d", len(res.Arguments))
	}
	if res.Arguments[1].Type.Nominal.Kind != ast.KindString {
		t.Errorf("param 2 should take users.name's type, got %+v", res.Arguments[1].Type)
	}
	if len(res.Columns) != 1 || !res.Columns[0].Type.NotNull {
		t.Errorf("RETURNING id should yield one not-null column, got %+v", res.Columns)
	}
}

func TestUnknownTableIsInvalid(t *testing.T) {
	s := usersOrdersSchema()
	issues := &issue.Collector{}
	ty := New(s, issues)

	stmt := &ast.Select{
		Items: []ast.SelectItem{{Expr: col("", "id")}},
		From:  &ast.TableRef{Table: "ghosts"},
	}

	res := ty.TypeStatement(stmt)
	if !res.Invalid {
		t.Errorf("expected Invalid for a SELECT against an unknown table")
	}
}

func TestWithExposesCTEColumnsToBody(t *testing.T) {
	s := usersOrdersSchema()
	issues := &issue.Collector{}
	ty := New(s, issues)

	cte := ast.CTE{
		Name: "active_users",
		Select: &ast.Select{
			Items: []ast.SelectItem{{Expr: col("", "id")}, {Expr: col("", "name")}},
			From:  &ast.TableRef{Table: "users"},
		},
	}
	body := &ast.Select{
		Items: []ast.SelectItem{{Expr: col("", "name")}},
		From:  &ast.TableRef{Table: "active_users"},
	}
	stmt := &ast.With{CTEs: []ast.CTE{cte}, Body: body}

	res := ty.TypeStatement(stmt)
	if res.Invalid {
		t.Fatalf("expected valid statement, issues=%v", issues.Issues())
	}
	if len(res.Columns) != 1 || res.Columns[0].Type.Nominal.Kind != ast.KindString {
		t.Errorf("expected name column typed through the CTE, got %+v", res.Columns)
	}
}
