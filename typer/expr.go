package typer

import (
	"strings"

	"github.com/sqly-go/sqly/ast"
)

func notNullType(kind ast.NominalKind) ast.FullType {
	return ast.FullType{Nominal: ast.NominalType{Kind: kind}, NotNull: true}
}

func nullableType(kind ast.NominalKind) ast.FullType {
	return ast.FullType{Nominal: ast.NominalType{Kind: kind}, NotNull: false}
}

// typeExpr types e, propagating expected as the context's expected type
// (spec §4.8 "Positional parameter ... nominal type is the *expected*
// type at that context").
func (t *Typer) typeExpr(e ast.Expr, expected ast.FullType) ast.FullType {
	switch x := e.(type) {
	case *ast.NullLiteral:
		return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindNull}, NotNull: false}

	case *ast.IntLiteral:
		return notNullType(ast.KindI64)
	case *ast.FloatLiteral:
		return notNullType(ast.KindF64)
	case *ast.StringLiteral:
		return notNullType(ast.KindString)
	case *ast.BoolLiteral:
		return notNullType(ast.KindBool)

	case *ast.Param:
		key := x.Key
		ft := expected
		if ft.Nominal.Kind == ast.KindNull && !ft.NotNull {
			ft = ast.FullType{Nominal: ast.NominalType{Kind: ast.KindAny}}
		}
		t.recordArg(key, ft)
		return ft

	case *ast.ColumnRef:
		ft, ok, ambiguous := t.frames.resolve(x.Qualifier, x.Name)
		if !ok {
			t.issues.Errorf(x.ExprSpan(), "unknown column %q", qualifiedName(x.Qualifier, x.Name))
			return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindAny}}
		}
		if ambiguous && x.Qualifier == "" {
			t.issues.Errorf(x.ExprSpan(), "ambiguous column reference %q", x.Name)
		}
		return ft

	case *ast.BinaryExpr:
		return t.typeBinary(x, expected)

	case *ast.UnaryExpr:
		operand := t.typeExpr(x.Operand, expected)
		switch x.Op {
		case ast.OpNot:
			return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindBool}, NotNull: operand.NotNull}
		default: // OpNeg
			return ast.FullType{Nominal: operand.Nominal, NotNull: operand.NotNull}
		}

	case *ast.IsNullExpr:
		t.typeExpr(x.Operand, ast.FullType{})
		return notNullType(ast.KindBool)

	case *ast.BetweenExpr:
		opType := t.typeExpr(x.Operand, ast.FullType{})
		lo := t.typeExpr(x.Low, opType)
		hi := t.typeExpr(x.High, opType)
		return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindBool}, NotNull: opType.NotNull && lo.NotNull && hi.NotNull}

	case *ast.InExpr:
		return t.typeIn(x)

	case *ast.ExistsExpr:
		if x.Subquery != nil {
			t.typeSelectPushed(x.Subquery)
		}
		return notNullType(ast.KindBool)

	case *ast.SubqueryExpr:
		return t.typeScalarSubquery(x.Query)

	case *ast.CaseExpr:
		return t.typeCase(x)

	case *ast.FuncCall:
		return t.typeFuncCall(x)

	case *ast.CastExpr:
		t.typeExpr(x.Operand, ast.FullType{})
		return notNullType(castTargetKind(x.TypeName))

	case *ast.ListHackPlaceholder:
		t.issues.Errorf(x.ExprSpan(), "_LIST_ may only appear inside IN (...)")
		return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindAny}}

	default:
		t.issues.Errorf(e.ExprSpan(), "unsupported expression node %T", e)
		return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindAny}}
	}
}

func qualifiedName(qualifier, name string) string {
	if qualifier == "" {
		return name
	}
	return qualifier + "." + name
}

func castTargetKind(typeName string) ast.NominalKind {
	nominal := mapCastType(typeName)
	return nominal.Kind
}

func (t *Typer) typeBinary(x *ast.BinaryExpr, expected ast.FullType) ast.FullType {
	switch x.Op {
	case ast.OpAnd, ast.OpOr:
		left := t.typeExpr(x.Left, notNullType(ast.KindBool))
		right := t.typeExpr(x.Right, notNullType(ast.KindBool))
		// Three-valued logic: the typer conservatively marks not-null only
		// when every operand is not-null (spec §4.8).
		return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindBool}, NotNull: left.NotNull && right.NotNull}

	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		left := t.typeExpr(x.Left, ast.FullType{})
		right := t.typeExpr(x.Right, left)
		return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindBool}, NotNull: left.NotNull && right.NotNull}

	case ast.OpConcat, ast.OpLike:
		left := t.typeExpr(x.Left, notNullType(ast.KindString))
		right := t.typeExpr(x.Right, notNullType(ast.KindString))
		return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindString}, NotNull: left.NotNull && right.NotNull}

	default: // arithmetic: Add/Sub/Mul/Div/Mod
		left := t.typeExpr(x.Left, expected)
		right := t.typeExpr(x.Right, expected)
		return ast.FullType{Nominal: unifyNumeric(left.Nominal, right.Nominal), NotNull: left.NotNull && right.NotNull}
	}
}

// unifyNumeric implements SQL's integer/float widening for arithmetic
// (spec §4.8 "operands unified into a numeric super-type").
func unifyNumeric(a, b ast.NominalType) ast.NominalType {
	rank := func(k ast.NominalKind) int {
		switch k {
		case ast.KindI8, ast.KindU8:
			return 1
		case ast.KindI16, ast.KindU16:
			return 2
		case ast.KindI32, ast.KindU32:
			return 3
		case ast.KindI64, ast.KindU64:
			return 4
		case ast.KindF32:
			return 5
		case ast.KindF64:
			return 6
		default:
			return 0
		}
	}
	ra, rb := rank(a.Kind), rank(b.Kind)
	if ra == 0 {
		return b
	}
	if rb == 0 {
		return a
	}
	if ra >= rb {
		return a
	}
	return b
}

func (t *Typer) typeIn(x *ast.InExpr) ast.FullType {
	opType := t.typeExpr(x.Operand, ast.FullType{})
	switch {
	case x.ListHack:
		// IN (_LIST_) expands to N placeholders at execute time (spec §6);
		// nothing further to type here.
	case x.Subquery != nil:
		t.typeSelectPushed(x.Subquery)
	default:
		for _, item := range x.List {
			t.typeExpr(item, opType)
		}
	}
	return notNullType(ast.KindBool)
}

func (t *Typer) typeScalarSubquery(sel *ast.Select) ast.FullType {
	cols := t.typeSelectPushed(sel)
	if len(cols) != 1 {
		t.issues.Errorf(sel.StmtSpan(), "scalar subquery must return exactly one column, got %d", len(cols))
		return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindAny}}
	}
	// Empty subquery yields NULL, so the result is never not-null (spec
	// §4.8 "Subquery").
	ft := cols[0].Type
	ft.NotNull = false
	return ft
}

func (t *Typer) typeCase(x *ast.CaseExpr) ast.FullType {
	var opType ast.FullType
	if x.Operand != nil {
		opType = t.typeExpr(x.Operand, ast.FullType{})
	}
	var result ast.NominalType
	haveResult := false
	allNotNull := x.Else != nil
	join := func(next ast.NominalType) {
		if !haveResult {
			result, haveResult = next, true
			return
		}
		result = joinNominal(result, next)
	}
	for _, w := range x.Whens {
		if x.Operand != nil {
			t.typeExpr(w.Cond, opType)
		} else {
			t.typeExpr(w.Cond, notNullType(ast.KindBool))
		}
		branch := t.typeExpr(w.Then, ast.FullType{})
		join(branch.Nominal)
		if !branch.NotNull {
			allNotNull = false
		}
	}
	if x.Else != nil {
		branch := t.typeExpr(x.Else, ast.FullType{})
		join(branch.Nominal)
		if !branch.NotNull {
			allNotNull = false
		}
	}
	return ast.FullType{Nominal: result, NotNull: allNotNull}
}

// joinNominal picks a result type for CASE's branches: a Null branch never
// overrides a concrete one; mismatched concrete kinds widen to Any.
func joinNominal(acc, next ast.NominalType) ast.NominalType {
	if acc.Kind == ast.KindNull {
		return next
	}
	if next.Kind == ast.KindNull {
		return acc
	}
	if acc.Kind != next.Kind {
		return ast.NominalType{Kind: ast.KindAny}
	}
	return acc
}

func (t *Typer) typeFuncCall(x *ast.FuncCall) ast.FullType {
	name := strings.ToUpper(x.Name)

	switch name {
	case "COUNT":
		for _, a := range x.Args {
			t.typeExpr(a, ast.FullType{})
		}
		return notNullType(ast.KindU64)

	case "SUM", "AVG":
		kind := ast.KindF64
		for _, a := range x.Args {
			ft := t.typeExpr(a, ast.FullType{})
			if isIntegerKind(ft.Nominal.Kind) && name == "SUM" {
				kind = ast.KindI64
			}
		}
		// SUM/AVG are not-null false regardless (spec §4.8): an empty
		// group yields NULL.
		return nullableType(kind)
	}

	bf, ok := builtinFuncs[name]
	argsNotNull := true
	for _, a := range x.Args {
		ft := t.typeExpr(a, ast.FullType{})
		if !ft.NotNull {
			argsNotNull = false
		}
	}
	if !ok {
		t.issues.Warnf(x.ExprSpan(), "unknown function %q", x.Name)
		return ast.FullType{Nominal: ast.NominalType{Kind: ast.KindAny}}
	}
	return ast.FullType{Nominal: ast.NominalType{Kind: bf.resultKind}, NotNull: bf.notNull(argsNotNull)}
}

func isIntegerKind(k ast.NominalKind) bool {
	switch k {
	case ast.KindI8, ast.KindU8, ast.KindI16, ast.KindU16, ast.KindI32, ast.KindU32, ast.KindI64, ast.KindU64:
		return true
	default:
		return false
	}
}

func mapCastType(typeName string) ast.NominalType {
	switch strings.ToUpper(typeName) {
	case "SIGNED", "INTEGER", "INT":
		return ast.NominalType{Kind: ast.KindI64}
	case "UNSIGNED":
		return ast.NominalType{Kind: ast.KindU64}
	case "CHAR", "VARCHAR", "TEXT":
		return ast.NominalType{Kind: ast.KindString}
	case "DATE":
		return ast.NominalType{Kind: ast.KindDate}
	case "DATETIME":
		return ast.NominalType{Kind: ast.KindDateTime}
	case "DECIMAL", "FLOAT", "DOUBLE":
		return ast.NominalType{Kind: ast.KindF64}
	default:
		return ast.NominalType{Kind: ast.KindAny}
	}
}
