package parser

import (
	"fmt"

	"github.com/sqly-go/sqly/ast"
	"github.com/sqly-go/sqly/issue"
)

// Parser holds the token stream and diagnostic sink for one parse pass.
// Ground: qusql-parse's Parser type (statement.rs), which likewise
// carries a token cursor and accumulates errors rather than aborting the
// whole input on the first bad statement.
type Parser struct {
	toks   []token
	pos    int
	issues *issue.Collector

	nextParam int // next positional parameter index, 1-based, reset per statement
}

// New returns a Parser over src, reporting diagnostics into issues.
func New(src string, issues *issue.Collector) *Parser {
	l := newLexer(src, issues)
	return &Parser{toks: l.tokenize(), issues: issues}
}

// ParseStatements parses every semicolon-separated statement in src.
// A statement that fails to parse is skipped (with an Error-severity
// issue recorded) and parsing resumes at the next semicolon, matching
// qusql-parse's per-statement recovery in parse_statements.
func ParseStatements(src string, issues *issue.Collector) []ast.Statement {
	p := New(src, issues)
	var out []ast.Statement
	for !p.atEOF() {
		for p.at(tokSemicolon) {
			p.advance()
		}
		if p.atEOF() {
			break
		}
		start := p.pos
		stmt, err := p.parseStatement()
		if err != nil {
			p.issues.Errorf(p.cur().span, "%s", err)
			p.recoverToSemicolon(start)
			continue
		}
		if stmt != nil {
			out = append(out, stmt)
		}
		p.recoverToSemicolon(start)
	}
	return out
}

// Parse parses a single statement from src, for callers that already
// know src holds exactly one (spec.md's primary entrypoint shape: one
// SQL string in, one typed statement out).
func Parse(src string, issues *issue.Collector) (ast.Statement, error) {
	p := New(src, issues)
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	for p.at(tokSemicolon) {
		p.advance()
	}
	if !p.atEOF() {
		return stmt, fmt.Errorf("unexpected trailing input at %d", p.cur().span.Start)
	}
	return stmt, nil
}

// recoverToSemicolon advances past tokens until the next top-level
// semicolon or EOF, guaranteeing forward progress even if parseStatement
// consumed nothing.
func (p *Parser) recoverToSemicolon(minPos int) {
	if p.pos <= minPos {
		p.pos = minPos + 1
	}
	for !p.atEOF() && !p.at(tokSemicolon) {
		p.advance()
	}
}

func (p *Parser) cur() token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

func (p *Parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *Parser) advance() token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(k tokenKind) bool { return p.cur().kind == k }

func (p *Parser) atKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokKeyword && t.kw == kw
}

func (p *Parser) eatKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectKeyword(kw string) (issue.Span, error) {
	if !p.atKeyword(kw) {
		return issue.Span{}, fmt.Errorf("expected %q, got %s", kw, p.describeCur())
	}
	t := p.advance()
	return t.span, nil
}

func (p *Parser) expect(k tokenKind, what string) (token, error) {
	if !p.at(k) {
		return token{}, fmt.Errorf("expected %s, got %s", what, p.describeCur())
	}
	return p.advance(), nil
}

func (p *Parser) describeCur() string {
	t := p.cur()
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokKeyword:
		return fmt.Sprintf("keyword %q", t.kw)
	case tokIdent, tokQuotedIdent:
		return fmt.Sprintf("identifier %q", t.text)
	default:
		return fmt.Sprintf("token %q", t.text)
	}
}

// parseIdent accepts a plain or quoted identifier, not a keyword (most
// DDL/DML names in this grammar subset are not reserved).
func (p *Parser) parseIdent() (string, error) {
	t := p.cur()
	if t.kind == tokIdent || t.kind == tokQuotedIdent {
		p.advance()
		return t.text, nil
	}
	return "", fmt.Errorf("expected identifier, got %s", p.describeCur())
}

func (p *Parser) span(start int) issue.Span {
	end := p.toks[p.pos].span.Start
	if p.pos > 0 {
		end = p.toks[p.pos-1].span.End
	}
	return issue.Span{Start: start, End: end}
}
