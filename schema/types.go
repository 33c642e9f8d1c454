package schema

import (
	"strings"

	"github.com/sqly-go/sqly/ast"
)

// MapDataType implements spec §4.7's "Data-type mapping" table: SQL
// nominal type name (as the parser hands it back, in any case, with an
// optional argument list) to typer nominal type. unsigned carries the
// column-level UNSIGNED modifier parsed by the caller; an " UNSIGNED"
// suffix on the type name itself has the same effect.
func MapDataType(typeName string, unsigned bool) ast.NominalType {
	name, args := splitTypeArgs(typeName)
	if strings.HasSuffix(name, " UNSIGNED") {
		name = strings.TrimSpace(strings.TrimSuffix(name, " UNSIGNED"))
		unsigned = true
	}
	switch name {
	case "TINYINT":
		if unsigned && args == "1" {
			return ast.NominalType{Kind: ast.KindBool}
		}
		if unsigned {
			return ast.NominalType{Kind: ast.KindU8}
		}
		return ast.NominalType{Kind: ast.KindI8}
	case "SMALLINT":
		if unsigned {
			return ast.NominalType{Kind: ast.KindU16}
		}
		return ast.NominalType{Kind: ast.KindI16}
	case "INT", "INTEGER":
		if unsigned {
			return ast.NominalType{Kind: ast.KindU32}
		}
		return ast.NominalType{Kind: ast.KindI32}
	case "BIGINT":
		if unsigned {
			return ast.NominalType{Kind: ast.KindU64}
		}
		return ast.NominalType{Kind: ast.KindI64}
	case "FLOAT":
		return ast.NominalType{Kind: ast.KindF32}
	case "DOUBLE", "FLOAT8":
		return ast.NominalType{Kind: ast.KindF64}
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT":
		return ast.NominalType{Kind: ast.KindString}
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BYTEA":
		return ast.NominalType{Kind: ast.KindBytes}
	case "DATE":
		return ast.NominalType{Kind: ast.KindDate}
	case "TIME":
		return ast.NominalType{Kind: ast.KindTime}
	case "DATETIME":
		return ast.NominalType{Kind: ast.KindDateTime}
	case "TIMESTAMP", "TIMESTAMPTZ":
		return ast.NominalType{Kind: ast.KindTimestamp}
	case "JSON":
		return ast.NominalType{Kind: ast.KindString}
	case "BOOLEAN", "BOOL":
		return ast.NominalType{Kind: ast.KindBool}
	case "BIT":
		return ast.NominalType{Kind: ast.KindBytes}
	case "ENUM":
		return ast.NominalType{Kind: ast.KindEnum, Values: splitValueList(args)}
	case "SET":
		return ast.NominalType{Kind: ast.KindSet, Values: splitValueList(args)}
	default:
		return ast.NominalType{Kind: ast.KindAny}
	}
}

func splitTypeArgs(typeName string) (name, args string) {
	name = strings.ToUpper(strings.TrimSpace(typeName))
	if i := strings.IndexByte(name, '('); i >= 0 {
		args = strings.TrimSuffix(name[i+1:], ")")
		name = name[:i]
	}
	return name, args
}

func splitValueList(args string) []string {
	if args == "" {
		return nil
	}
	parts := strings.Split(args, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.Trim(strings.TrimSpace(p), "'\"")
	}
	return out
}
