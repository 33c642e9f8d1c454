package parser

import (
	"fmt"

	"github.com/sqly-go/sqly/ast"
)

// parseSelect parses a SELECT statement, including JOINs, WHERE, GROUP
// BY/HAVING, ORDER BY, LIMIT, and a trailing UNION [ALL] select. Ground:
// qusql-parse's select-clause sequencing in statement.rs, re-expressed as
// a single straight-line function rather than a combinator chain.
func (p *Parser) parseSelect() (*ast.Select, error) {
	if _, err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	sel := &ast.Select{}
	if p.eatKeyword("DISTINCT") {
		sel.Distinct = true
	} else {
		p.eatKeyword("ALL")
	}

	items, err := p.parseSelectItems()
	if err != nil {
		return nil, err
	}
	sel.Items = items

	if p.eatKeyword("FROM") {
		from, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}
		sel.From = from
		for p.atJoinStart() {
			j, err := p.parseJoin()
			if err != nil {
				return nil, err
			}
			sel.Joins = append(sel.Joins, j)
		}
	}

	if p.eatKeyword("WHERE") {
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = w
	}

	if p.eatKeyword("GROUP") {
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.GroupBy = append(sel.GroupBy, e)
			if p.at(tokComma) {
				p.advance()
				continue
			}
			break
		}
	}

	if p.eatKeyword("HAVING") {
		h, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Having = h
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
			item := ast.OrderByItem{Expr: e}
			if p.eatKeyword("DESC") {
				item.Desc = true
			} else {
				p.eatKeyword("ASC")
			}
			sel.OrderBy = append(sel.OrderBy, item)
			if p.at(tokComma) {
				p.advance()
				continue
			}
			break
		}
	}

	if p.eatKeyword("LIMIT") {
		lim, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Limit = lim
	}

	if p.eatKeyword("UNION") {
		all := p.eatKeyword("ALL")
		next, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		sel.UnionAll = next
		sel.UnionIsAll = all
	}

	return sel, nil
}

func (p *Parser) parseSelectItems() ([]ast.SelectItem, error) {
	var items []ast.SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.at(tokComma) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseSelectItem() (ast.SelectItem, error) {
	if p.at(tokStar) {
		p.advance()
		return ast.SelectItem{Star: true}, nil
	}
	// t.* is lexed as ident, dot, star.
	if (p.at(tokIdent) || p.at(tokQuotedIdent)) && p.peekIsDotStar() {
		name, _ := p.parseIdent()
		p.advance() // '.'
		p.advance() // '*'
		return ast.SelectItem{Star: true, Alias: name}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return ast.SelectItem{}, err
	}
	item := ast.SelectItem{Expr: e}
	if p.eatKeyword("AS") {
		alias, err := p.parseIdent()
		if err != nil {
			return ast.SelectItem{}, err
		}
		item.Alias = alias
	} else if p.at(tokIdent) || p.at(tokQuotedIdent) {
		alias, _ := p.parseIdent()
		item.Alias = alias
	}
	return item, nil
}

func (p *Parser) peekIsDotStar() bool {
	if p.pos+2 >= len(p.toks) {
		return false
	}
	return p.toks[p.pos+1].kind == tokDot && p.toks[p.pos+2].kind == tokStar
}

func (p *Parser) parseTableRef() (*ast.TableRef, error) {
	if p.at(tokLParen) {
		p.advance()
		sub, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		ref := &ast.TableRef{Subquery: sub}
		if p.eatKeyword("AS") {
			alias, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			ref.Alias = alias
		} else if p.at(tokIdent) || p.at(tokQuotedIdent) {
			alias, _ := p.parseIdent()
			ref.Alias = alias
		}
		return ref, nil
	}
	name, err := p.parseQualifiedTableName()
	if err != nil {
		return nil, err
	}
	ref := &ast.TableRef{Table: name}
	if p.eatKeyword("AS") {
		alias, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		ref.Alias = alias
	} else if p.at(tokIdent) || p.at(tokQuotedIdent) {
		alias, _ := p.parseIdent()
		ref.Alias = alias
	}
	return ref, nil
}

func (p *Parser) atJoinStart() bool {
	return p.atKeyword("JOIN") || p.atKeyword("INNER") || p.atKeyword("LEFT") ||
		p.atKeyword("RIGHT") || p.atKeyword("FULL")
}

func (p *Parser) parseJoin() (ast.Join, error) {
	kind := ast.JoinInner
	switch {
	case p.eatKeyword("INNER"):
		kind = ast.JoinInner
	case p.eatKeyword("LEFT"):
		kind = ast.JoinLeft
		p.eatKeyword("OUTER")
	case p.eatKeyword("RIGHT"):
		kind = ast.JoinRight
		p.eatKeyword("OUTER")
	case p.eatKeyword("FULL"):
		kind = ast.JoinFull
		p.eatKeyword("OUTER")
	}
	if _, err := p.expectKeyword("JOIN"); err != nil {
		return ast.Join{}, err
	}
	ref, err := p.parseTableRef()
	if err != nil {
		return ast.Join{}, err
	}
	if _, err := p.expectKeyword("ON"); err != nil {
		return ast.Join{}, err
	}
	on, err := p.parseExpr()
	if err != nil {
		return ast.Join{}, err
	}
	return ast.Join{Kind: kind, Ref: *ref, On: on}, nil
}

func (p *Parser) parseInsert() (ast.Statement, error) {
	p.advance() // INSERT
	if _, err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.parseQualifiedTableName()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return nil, err
	}
	ins := &ast.Insert{Table: table}

	if p.eatKeyword("VALUES") {
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		for i, col := range cols {
			if i > 0 {
				if _, err := p.expect(tokComma, "','"); err != nil {
					return nil, err
				}
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			ins.Columns = append(ins.Columns, ast.InsertColumn{Column: col, Value: v})
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
	} else if p.atKeyword("SELECT") {
		// INSERT ... SELECT: the value for each declared column is the
		// positionally corresponding SELECT item; typing happens against
		// the subquery's projected columns (spec §4.8's RETURNING/typed
		// statement handling covers the rest).
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		for i, col := range cols {
			var v ast.Expr
			if i < len(sel.Items) {
				v = sel.Items[i].Expr
			}
			ins.Columns = append(ins.Columns, ast.InsertColumn{Column: col, Value: v})
		}
	} else {
		return nil, fmt.Errorf("expected VALUES or SELECT after INSERT INTO ... (cols), got %s", p.describeCur())
	}

	if p.eatKeyword("RETURNING") {
		items, err := p.parseSelectItems()
		if err != nil {
			return nil, err
		}
		ins.Returning = items
	}
	return ins, nil
}

func (p *Parser) parseReplace() (ast.Statement, error) {
	p.advance() // REPLACE
	if _, err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.parseQualifiedTableName()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return nil, err
	}
	rep := &ast.Replace{Table: table}
	if _, err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	for i, col := range cols {
		if i > 0 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		rep.Columns = append(rep.Columns, ast.InsertColumn{Column: col, Value: v})
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return rep, nil
}

func (p *Parser) parseUpdate() (ast.Statement, error) {
	p.advance() // UPDATE
	table, err := p.parseQualifiedTableName()
	if err != nil {
		return nil, err
	}
	upd := &ast.Update{Table: table}
	if _, err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	for {
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokEq, "'='"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		upd.Set = append(upd.Set, ast.UpdateAssign{Column: col, Value: v})
		if p.at(tokComma) {
			p.advance()
			continue
		}
		break
	}
	if p.eatKeyword("WHERE") {
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		upd.Where = w
	}
	if p.eatKeyword("RETURNING") {
		items, err := p.parseSelectItems()
		if err != nil {
			return nil, err
		}
		upd.Returning = items
	}
	return upd, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	p.advance() // DELETE
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseQualifiedTableName()
	if err != nil {
		return nil, err
	}
	del := &ast.Delete{Table: table}
	if p.eatKeyword("WHERE") {
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		del.Where = w
	}
	if p.eatKeyword("RETURNING") {
		items, err := p.parseSelectItems()
		if err != nil {
			return nil, err
		}
		del.Returning = items
	}
	return del, nil
}
