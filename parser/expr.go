package parser

import (
	"fmt"
	"strconv"

	"github.com/sqly-go/sqly/ast"
)

// parseExpr parses the full expression grammar spec.md §4.8 names:
// literals, identifiers, qualified names, binary/unary ops, function
// calls, CASE, IN, BETWEEN, EXISTS, subqueries, CAST, positional/named
// placeholders, and the _LIST_ token. Precedence, low to high: OR, AND,
// NOT, comparison (incl. LIKE/IS NULL/BETWEEN/IN), concatenation (||),
// additive, multiplicative, unary.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.eatKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.eatKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.eatKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(tokEq):
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpEq, Left: left, Right: right}
		case p.at(tokNeq):
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpNeq, Left: left, Right: right}
		case p.at(tokLt):
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpLt, Left: left, Right: right}
		case p.at(tokLte):
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpLte, Left: left, Right: right}
		case p.at(tokGt):
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpGt, Left: left, Right: right}
		case p.at(tokGte):
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpGte, Left: left, Right: right}
		case p.atKeyword("LIKE"):
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpLike, Left: left, Right: right}
		case p.atKeyword("IS"):
			p.advance()
			not := p.eatKeyword("NOT")
			if _, err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			left = &ast.IsNullExpr{Operand: left, Not: not}
		case p.atKeyword("BETWEEN"):
			p.advance()
			lo, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectKeyword("AND"); err != nil {
				return nil, err
			}
			hi, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &ast.BetweenExpr{Operand: left, Low: lo, High: hi}
		case p.atKeyword("NOT") && p.peekIsBetweenOrIn():
			p.advance()
			notIn := p.atKeyword("IN")
			if notIn {
				in, err := p.parseInTail(left, true)
				if err != nil {
					return nil, err
				}
				left = in
				continue
			}
			p.advance() // BETWEEN
			lo, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectKeyword("AND"); err != nil {
				return nil, err
			}
			hi, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &ast.BetweenExpr{Operand: left, Low: lo, High: hi, Not: true}
		case p.atKeyword("IN"):
			in, err := p.parseInTail(left, false)
			if err != nil {
				return nil, err
			}
			left = in
		default:
			return left, nil
		}
	}
}

func (p *Parser) peekIsBetweenOrIn() bool {
	save := p.pos
	p.advance() // NOT
	ok := p.atKeyword("BETWEEN") || p.atKeyword("IN")
	p.pos = save
	return ok
}

func (p *Parser) parseInTail(operand ast.Expr, not bool) (ast.Expr, error) {
	if _, err := p.expectKeyword("IN"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	if p.at(tokListHack) {
		p.advance()
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return &ast.InExpr{Operand: operand, ListHack: true, Not: not}, nil
	}
	if p.atKeyword("SELECT") {
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return &ast.InExpr{Operand: operand, Subquery: sel, Not: not}, nil
	}
	var list []ast.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if p.at(tokComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return &ast.InExpr{Operand: operand, List: list, Not: not}, nil
}

func (p *Parser) parseConcat() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(tokConcat) {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpConcat, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(tokPlus):
			p.advance()
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpAdd, Left: left, Right: right}
		case p.at(tokMinus):
			p.advance()
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpSub, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(tokStar):
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpMul, Left: left, Right: right}
		case p.at(tokSlash):
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpDiv, Left: left, Right: right}
		case p.at(tokPercent):
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryExpr{Op: ast.OpMod, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.at(tokMinus) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNeg, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	start := p.cur().span.Start
	t := p.cur()

	switch t.kind {
	case tokInteger:
		p.advance()
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer literal %q", t.text)
		}
		return &ast.IntLiteral{Value: v}, nil

	case tokFloat:
		p.advance()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float literal %q", t.text)
		}
		return &ast.FloatLiteral{Value: v}, nil

	case tokString:
		p.advance()
		return &ast.StringLiteral{Value: t.text}, nil

	case tokParam:
		p.advance()
		p.nextParam++
		return &ast.Param{Key: ast.Key{Index: p.nextParam}}, nil

	case tokNamedParam:
		p.advance()
		return &ast.Param{Key: ast.Key{Named: true, Name: t.text}}, nil

	case tokListHack:
		p.advance()
		return &ast.ListHackPlaceholder{}, nil

	case tokLParen:
		p.advance()
		if p.atKeyword("SELECT") {
			sel, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return &ast.SubqueryExpr{Query: sel}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil

	case tokKeyword:
		switch t.kw {
		case "NULL":
			p.advance()
			return &ast.NullLiteral{}, nil
		case "TRUE":
			p.advance()
			return &ast.BoolLiteral{Value: true}, nil
		case "FALSE":
			p.advance()
			return &ast.BoolLiteral{Value: false}, nil
		case "CASE":
			return p.parseCase()
		case "CAST":
			return p.parseCast()
		case "EXISTS":
			return p.parseExists(false)
		case "NOT":
			if p.peekKeywordAt(1, "EXISTS") {
				p.advance()
				return p.parseExists(true)
			}
		}

	case tokIdent, tokQuotedIdent:
		return p.parseIdentOrCall(start)
	}

	return nil, fmt.Errorf("unexpected token %s in expression", p.describeCur())
}

func (p *Parser) peekKeywordAt(offset int, kw string) bool {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return false
	}
	t := p.toks[idx]
	return t.kind == tokKeyword && t.kw == kw
}

func (p *Parser) parseExists(not bool) (ast.Expr, error) {
	if _, err := p.expectKeyword("EXISTS"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return &ast.ExistsExpr{Subquery: sel, Not: not}, nil
}

func (p *Parser) parseCast() (ast.Expr, error) {
	p.advance() // CAST
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	operand, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	typeName, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return &ast.CastExpr{Operand: operand, TypeName: typeName}, nil
}

func (p *Parser) parseCase() (ast.Expr, error) {
	p.advance() // CASE
	var operand ast.Expr
	if !p.atKeyword("WHEN") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		operand = e
	}
	var whens []ast.WhenClause
	for p.atKeyword("WHEN") {
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		whens = append(whens, ast.WhenClause{Cond: cond, Then: then})
	}
	var elseExpr ast.Expr
	if p.eatKeyword("ELSE") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elseExpr = e
	}
	if _, err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return &ast.CaseExpr{Operand: operand, Whens: whens, Else: elseExpr}, nil
}

// parseIdentOrCall parses a (possibly qualified) column reference or, if
// followed by '(', a function call.
func (p *Parser) parseIdentOrCall(start int) (ast.Expr, error) {
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if p.at(tokDot) {
		p.advance()
		field, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if p.at(tokLParen) {
			return nil, fmt.Errorf("qualified function names are not supported")
		}
		return &ast.ColumnRef{Qualifier: name, Name: field}, nil
	}
	if p.at(tokLParen) {
		return p.parseFuncCallTail(name)
	}
	return &ast.ColumnRef{Name: name}, nil
}

func (p *Parser) parseFuncCallTail(name string) (ast.Expr, error) {
	p.advance() // '('
	call := &ast.FuncCall{Name: name}
	if p.at(tokStar) {
		p.advance()
		call.Star = true
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return call, nil
	}
	if p.eatKeyword("DISTINCT") {
		call.Distinct = true
	}
	if !p.at(tokRParen) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, e)
			if p.at(tokComma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if p.atKeyword("OVER") {
		over, err := p.parseOverClause()
		if err != nil {
			return nil, err
		}
		call.Over = over
	}
	return call, nil
}

func (p *Parser) parseOverClause() (*ast.OverClause, error) {
	p.advance() // OVER
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	over := &ast.OverClause{}
	if p.eatKeyword("PARTITION") {
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			over.PartitionBy = append(over.PartitionBy, e)
			if p.at(tokComma) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.eatKeyword("ORDER") {
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			over.OrderBy = append(over.OrderBy, e)
			p.eatKeyword("ASC")
			p.eatKeyword("DESC")
			if p.at(tokComma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return over, nil
}

// parseTypeName accepts a bare type name (INT, VARCHAR) or one with a
// parenthesized argument list (VARCHAR(255), DECIMAL(10,2)), returning
// the raw source text so schema.MapDataType can parse it uniformly with
// DDL column types.
func (p *Parser) parseTypeName() (string, error) {
	name, err := p.parseIdent()
	if err != nil {
		// Some type names are reserved words (INTEGER etc. are not in
		// this grammar's keyword set, but guard anyway).
		if p.at(tokKeyword) {
			name = p.advance().kw
		} else {
			return "", err
		}
	}
	if p.eatKeyword("UNSIGNED") {
		name += " UNSIGNED"
	}
	if !p.at(tokLParen) {
		return name, nil
	}
	p.advance()
	name += "("
	first := true
	for !p.at(tokRParen) {
		if !first {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return "", err
			}
			name += ","
		}
		first = false
		t := p.cur()
		if t.kind != tokInteger {
			return "", fmt.Errorf("expected integer type argument, got %s", p.describeCur())
		}
		p.advance()
		name += t.text
	}
	p.advance()
	name += ")"
	return name, nil
}
