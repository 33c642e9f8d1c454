// Package parser implements the hand-rolled recursive-descent SQL parser
// spec.md treats as an external collaborator, producing the ast package's
// node shapes. Ground: original_source/qusql-parse's lexer.rs (token set)
// and statement.rs (top-level dispatch by leading keyword), re-expressed
// as idiomatic Go; keyword sets cross-checked against the retrieved
// skeema/sqldef tokenizers.
package parser

import (
	"strings"

	"github.com/sqly-go/sqly/issue"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokKeyword
	tokInteger
	tokFloat
	tokString
	tokParam       // ?
	tokNamedParam  // :name or $name
	tokListHack    // _LIST_
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokSemicolon
	tokStar
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokPlus
	tokMinus
	tokSlash
	tokPercent
	tokConcat // ||
	tokInvalid
)

type token struct {
	kind tokenKind
	text string
	kw   string // upper-cased keyword text, set when kind == tokKeyword
	span issue.Span
}

// keywords is the reserved-word set this grammar subset recognizes.
// Ground: qusql-parse's keywords module, pared to the statements and
// clauses this parser implements.
var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "BY": true,
	"HAVING": true, "ORDER": true, "LIMIT": true, "DISTINCT": true, "AS": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true, "ON": true,
	"AND": true, "OR": true, "NOT": true, "NULL": true, "IS": true, "IN": true,
	"BETWEEN": true, "LIKE": true, "EXISTS": true, "CASE": true, "WHEN": true,
	"THEN": true, "ELSE": true, "END": true, "CAST": true, "TRUE": true, "FALSE": true,
	"INSERT": true, "INTO": true, "VALUES": true, "UPDATE": true, "SET": true,
	"DELETE": true, "REPLACE": true, "RETURNING": true, "CREATE": true, "TABLE": true,
	"VIEW": true, "INDEX": true, "UNIQUE": true, "DROP": true, "ALTER": true,
	"ADD": true, "COLUMN": true, "MODIFY": true, "RENAME": true, "TO": true,
	"FOREIGN": true, "KEY": true, "REFERENCES": true, "PRIMARY": true, "IF": true,
	"UNSIGNED": true, "NOTNULL": true, "GENERATED": true, "ALWAYS": true,
	"COMMENT": true, "LIKE_TABLE": true, "REPLACE_VIEW": true,
	"WITH": true, "RECURSIVE": true, "UNION": true, "ALL": true, "ASC": true, "DESC": true,
	"PROCEDURE": true, "FUNCTION": true, "RETURNS": true, "AUTO_INCREMENT": true,
	"CONSTRAINT": true, "OVER": true, "PARTITION": true,
}

type lexer struct {
	src    string
	pos    int
	issues *issue.Collector
}

func newLexer(src string, issues *issue.Collector) *lexer {
	return &lexer{src: src, issues: issues}
}

func (l *lexer) tokenize() []token {
	var out []token
	for {
		t := l.next()
		out = append(out, t)
		if t.kind == tokEOF {
			return out
		}
	}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '-':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			l.pos += 2
			for l.pos+1 < len(l.src) && !(l.src[l.pos] == '*' && l.src[l.pos+1] == '/') {
				l.pos++
			}
			l.pos += 2
			if l.pos > len(l.src) {
				l.pos = len(l.src)
			}
		default:
			return
		}
	}
}

func (l *lexer) next() token {
	l.skipSpaceAndComments()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, span: issue.Span{Start: start, End: start}}
	}
	c := l.src[l.pos]

	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.pos++
		}
		text := l.src[start:l.pos]
		upper := strings.ToUpper(text)
		if upper == "_LIST_" {
			return token{kind: tokListHack, text: text, span: issue.Span{Start: start, End: l.pos}}
		}
		if keywords[upper] {
			return token{kind: tokKeyword, text: text, kw: upper, span: issue.Span{Start: start, End: l.pos}}
		}
		return token{kind: tokIdent, text: text, span: issue.Span{Start: start, End: l.pos}}

	case c == '`' || c == '"':
		quote := c
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] != quote {
			l.pos++
		}
		text := l.src[start+1 : l.pos]
		if l.pos < len(l.src) {
			l.pos++
		}
		return token{kind: tokQuotedIdent, text: text, span: issue.Span{Start: start, End: l.pos}}

	case c == '\'':
		l.pos++
		var sb strings.Builder
		for l.pos < len(l.src) {
			if l.src[l.pos] == '\'' {
				if l.pos+1 < len(l.src) && l.src[l.pos+1] == '\'' {
					sb.WriteByte('\'')
					l.pos += 2
					continue
				}
				break
			}
			if l.src[l.pos] == '\\' && l.pos+1 < len(l.src) {
				sb.WriteByte(l.src[l.pos+1])
				l.pos += 2
				continue
			}
			sb.WriteByte(l.src[l.pos])
			l.pos++
		}
		if l.pos < len(l.src) {
			l.pos++
		}
		return token{kind: tokString, text: sb.String(), span: issue.Span{Start: start, End: l.pos}}

	case isDigit(c):
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		isFloat := false
		if l.pos < len(l.src) && l.src[l.pos] == '.' {
			isFloat = true
			l.pos++
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
		if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
			isFloat = true
			l.pos++
			if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
				l.pos++
			}
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
		kind := tokInteger
		if isFloat {
			kind = tokFloat
		}
		return token{kind: kind, text: l.src[start:l.pos], span: issue.Span{Start: start, End: l.pos}}

	case c == '?':
		l.pos++
		return token{kind: tokParam, span: issue.Span{Start: start, End: l.pos}}

	case c == ':' || c == '$':
		l.pos++
		nameStart := l.pos
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.pos++
		}
		if l.pos == nameStart {
			// bare ':' or '$' with no identifier following: not a valid
			// named parameter in this grammar subset.
			return token{kind: tokInvalid, text: string(c), span: issue.Span{Start: start, End: l.pos}}
		}
		return token{kind: tokNamedParam, text: l.src[nameStart:l.pos], span: issue.Span{Start: start, End: l.pos}}

	case c == '(':
		l.pos++
		return token{kind: tokLParen, span: issue.Span{Start: start, End: l.pos}}
	case c == ')':
		l.pos++
		return token{kind: tokRParen, span: issue.Span{Start: start, End: l.pos}}
	case c == ',':
		l.pos++
		return token{kind: tokComma, span: issue.Span{Start: start, End: l.pos}}
	case c == '.':
		l.pos++
		return token{kind: tokDot, span: issue.Span{Start: start, End: l.pos}}
	case c == ';':
		l.pos++
		return token{kind: tokSemicolon, span: issue.Span{Start: start, End: l.pos}}
	case c == '*':
		l.pos++
		return token{kind: tokStar, span: issue.Span{Start: start, End: l.pos}}
	case c == '+':
		l.pos++
		return token{kind: tokPlus, span: issue.Span{Start: start, End: l.pos}}
	case c == '-':
		l.pos++
		return token{kind: tokMinus, span: issue.Span{Start: start, End: l.pos}}
	case c == '/':
		l.pos++
		return token{kind: tokSlash, span: issue.Span{Start: start, End: l.pos}}
	case c == '%':
		l.pos++
		return token{kind: tokPercent, span: issue.Span{Start: start, End: l.pos}}
	case c == '=':
		l.pos++
		return token{kind: tokEq, span: issue.Span{Start: start, End: l.pos}}
	case c == '!':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokNeq, span: issue.Span{Start: start, End: l.pos}}
		}
		l.pos++
		return token{kind: tokInvalid, span: issue.Span{Start: start, End: l.pos}}
	case c == '<':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '>' {
			l.pos += 2
			return token{kind: tokNeq, span: issue.Span{Start: start, End: l.pos}}
		}
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokLte, span: issue.Span{Start: start, End: l.pos}}
		}
		l.pos++
		return token{kind: tokLt, span: issue.Span{Start: start, End: l.pos}}
	case c == '>':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokGte, span: issue.Span{Start: start, End: l.pos}}
		}
		l.pos++
		return token{kind: tokGt, span: issue.Span{Start: start, End: l.pos}}
	case c == '|':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '|' {
			l.pos += 2
			return token{kind: tokConcat, span: issue.Span{Start: start, End: l.pos}}
		}
		l.pos++
		return token{kind: tokInvalid, span: issue.Span{Start: start, End: l.pos}}
	default:
		l.pos++
		return token{kind: tokInvalid, text: string(c), span: issue.Span{Start: start, End: l.pos}}
	}
}
