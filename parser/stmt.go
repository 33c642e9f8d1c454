package parser

import (
	"fmt"

	"github.com/sqly-go/sqly/ast"
)

// parseStatement dispatches on the leading keyword, the same shape
// qusql-parse's parse_statement uses (statement.rs), pared to the
// statement kinds this grammar subset covers.
func (p *Parser) parseStatement() (ast.Statement, error) {
	p.nextParam = 0
	switch {
	case p.atKeyword("CREATE"):
		return p.parseCreate()
	case p.atKeyword("ALTER"):
		return p.parseAlterTable()
	case p.atKeyword("DROP"):
		return p.parseDrop()
	case p.atKeyword("WITH"):
		return p.parseWith()
	case p.atKeyword("SELECT"):
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		return sel, nil
	case p.atKeyword("INSERT"):
		return p.parseInsert()
	case p.atKeyword("REPLACE"):
		return p.parseReplace()
	case p.atKeyword("UPDATE"):
		return p.parseUpdate()
	case p.atKeyword("DELETE"):
		return p.parseDelete()
	default:
		return nil, fmt.Errorf("unsupported statement starting at %s", p.describeCur())
	}
}

func (p *Parser) parseCreate() (ast.Statement, error) {
	p.advance() // CREATE
	orReplace := false
	if p.atKeyword("OR") {
		p.advance()
		if _, err := p.expectKeyword("REPLACE"); err != nil {
			return nil, err
		}
		orReplace = true
	}
	unique := false
	if p.eatKeyword("UNIQUE") {
		unique = true
	}
	switch {
	case p.atKeyword("TABLE"):
		return p.parseCreateTable(orReplace)
	case p.atKeyword("VIEW"):
		return p.parseCreateView(orReplace)
	case p.atKeyword("INDEX"):
		return p.parseCreateIndex(unique)
	case p.atKeyword("PROCEDURE"):
		return p.parseRoutineStub(false)
	case p.atKeyword("FUNCTION"):
		return p.parseRoutineStub(true)
	default:
		return nil, fmt.Errorf("expected TABLE, VIEW, INDEX, PROCEDURE or FUNCTION after CREATE, got %s", p.describeCur())
	}
}

func (p *Parser) parseQualifiedTableName() (string, error) {
	name, err := p.parseIdent()
	if err != nil {
		return "", err
	}
	if p.at(tokDot) {
		p.advance()
		rest, err := p.parseIdent()
		if err != nil {
			return "", err
		}
		name = rest
	}
	return name, nil
}

func (p *Parser) parseCreateTable(orReplace bool) (ast.Statement, error) {
	p.advance() // TABLE
	ifNotExists := p.parseIfNotExists()
	name, err := p.parseQualifiedTableName()
	if err != nil {
		return nil, err
	}
	ct := &ast.CreateTable{Name: name, IfNotExists: ifNotExists, OrReplace: orReplace}

	if p.eatKeyword("LIKE") {
		like, err := p.parseQualifiedTableName()
		if err != nil {
			return nil, err
		}
		ct.LikeTable = like
		return ct, nil
	}

	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	for {
		if p.atKeyword("PRIMARY") || p.atKeyword("UNIQUE") || p.atKeyword("FOREIGN") || p.atKeyword("CONSTRAINT") {
			c, err := p.parseTableConstraint()
			if err != nil {
				return nil, err
			}
			ct.Constraints = append(ct.Constraints, c)
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			ct.Columns = append(ct.Columns, col)
			if p.eatKeyword("PRIMARY") {
				if _, err := p.expectKeyword("KEY"); err != nil {
					return nil, err
				}
				ct.Constraints = append(ct.Constraints, ast.Constraint{Kind: ast.ConstraintPrimaryKey, Columns: []string{col.Name}})
			}
		}
		if p.at(tokComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return ct, nil
}

func (p *Parser) parseIfNotExists() bool {
	if p.atKeyword("IF") {
		save := p.pos
		p.advance()
		if p.eatKeyword("NOT") {
			if _, err := p.expectKeyword("EXISTS"); err == nil {
				return true
			}
		}
		p.pos = save
	}
	return false
}

func (p *Parser) parseIfExists() bool {
	if p.atKeyword("IF") {
		save := p.pos
		p.advance()
		if _, err := p.expectKeyword("EXISTS"); err == nil {
			return true
		}
		p.pos = save
	}
	return false
}

func (p *Parser) parseColumnDef() (ast.ColumnDef, error) {
	name, err := p.parseIdent()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	typeName, err := p.parseTypeName()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	col := ast.ColumnDef{Name: name, TypeName: typeName}

	for {
		switch {
		case p.eatKeyword("UNSIGNED"):
			col.Unsigned = true
		case p.atKeyword("NOT"):
			save := p.pos
			p.advance()
			if p.eatKeyword("NULL") {
				col.NotNull = true
			} else {
				p.pos = save
				return col, nil
			}
		case p.eatKeyword("AUTO_INCREMENT"):
			col.AutoIncrement = true
		case p.eatKeyword("GENERATED"):
			p.eatKeyword("ALWAYS")
			if _, err := p.expectKeyword("AS"); err != nil {
				return col, err
			}
			if _, err := p.expect(tokLParen, "'('"); err != nil {
				return col, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return col, err
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return col, err
			}
			col.Generated = e
		case p.eatKeyword("COMMENT"):
			t := p.cur()
			if t.kind != tokString {
				return col, fmt.Errorf("expected string after COMMENT, got %s", p.describeCur())
			}
			p.advance()
			col.Comment = t.text
		case p.atKeyword("PRIMARY"):
			// inline PRIMARY KEY on a column def; recorded as a
			// table-level constraint for uniform handling.
			return col, nil
		default:
			return col, nil
		}
	}
}

func (p *Parser) parseTableConstraint() (ast.Constraint, error) {
	if p.eatKeyword("CONSTRAINT") {
		if _, err := p.parseIdent(); err != nil {
			return ast.Constraint{}, err
		}
	}
	switch {
	case p.eatKeyword("PRIMARY"):
		if _, err := p.expectKeyword("KEY"); err != nil {
			return ast.Constraint{}, err
		}
		cols, err := p.parseColumnList()
		if err != nil {
			return ast.Constraint{}, err
		}
		return ast.Constraint{Kind: ast.ConstraintPrimaryKey, Columns: cols}, nil
	case p.eatKeyword("UNIQUE"):
		p.eatKeyword("KEY")
		cols, err := p.parseColumnList()
		if err != nil {
			return ast.Constraint{}, err
		}
		return ast.Constraint{Kind: ast.ConstraintUnique, Columns: cols}, nil
	case p.eatKeyword("FOREIGN"):
		if _, err := p.expectKeyword("KEY"); err != nil {
			return ast.Constraint{}, err
		}
		cols, err := p.parseColumnList()
		if err != nil {
			return ast.Constraint{}, err
		}
		if _, err := p.expectKeyword("REFERENCES"); err != nil {
			return ast.Constraint{}, err
		}
		refTable, err := p.parseQualifiedTableName()
		if err != nil {
			return ast.Constraint{}, err
		}
		refCols, err := p.parseColumnList()
		if err != nil {
			return ast.Constraint{}, err
		}
		return ast.Constraint{Kind: ast.ConstraintForeignKey, Columns: cols, RefTable: refTable, RefColumns: refCols}, nil
	default:
		return ast.Constraint{}, fmt.Errorf("expected a table constraint, got %s", p.describeCur())
	}
}

func (p *Parser) parseColumnList() ([]string, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var cols []string
	for {
		c, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if p.at(tokComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return cols, nil
}

func (p *Parser) parseCreateView(orReplace bool) (ast.Statement, error) {
	p.advance() // VIEW
	name, err := p.parseQualifiedTableName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	return &ast.CreateView{Name: name, OrReplace: orReplace, Select: sel}, nil
}

func (p *Parser) parseCreateIndex(unique bool) (ast.Statement, error) {
	p.advance() // INDEX
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("ON"); err != nil {
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
	return &ast.CreateIndex{Name: name, Table: table, Columns: cols, Unique: unique}, nil
}

func (p *Parser) parseRoutineStub(isFunction bool) (ast.Statement, error) {
	p.advance() // PROCEDURE or FUNCTION
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	// Parameter list and body are opaque: skip balanced parens, then
	// skip to the statement's end (matched semicolon), since routine
	// bodies are out of scope (spec.md Non-goals; SPEC_FULL.md
	// "signature only, body treated as opaque text").
	if p.at(tokLParen) {
		if err := p.skipBalancedParens(); err != nil {
			return nil, err
		}
	}
	returnType := ""
	if isFunction && p.eatKeyword("RETURNS") {
		rt, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		returnType = rt
	}
	p.skipToStatementEnd()
	return &ast.RoutineStub{Name: name, IsFunction: isFunction, ReturnType: returnType}, nil
}

func (p *Parser) skipBalancedParens() error {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		if p.atEOF() {
			return fmt.Errorf("unterminated parenthesized list")
		}
		switch p.cur().kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		}
		p.advance()
	}
	return nil
}

// skipToStatementEnd advances to just before the next top-level
// semicolon, for constructs (routine bodies) this parser recognizes but
// does not fully parse.
func (p *Parser) skipToStatementEnd() {
	for !p.atEOF() && !p.at(tokSemicolon) {
		p.advance()
	}
}

func (p *Parser) parseAlterTable() (ast.Statement, error) {
	p.advance() // ALTER
	if _, err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.parseQualifiedTableName()
	if err != nil {
		return nil, err
	}
	at := &ast.AlterTable{Table: table}
	for {
		spec, err := p.parseAlterSpec()
		if err != nil {
			return nil, err
		}
		at.Specs = append(at.Specs, spec)
		if p.at(tokComma) {
			p.advance()
			continue
		}
		break
	}
	return at, nil
}

func (p *Parser) parseAlterSpec() (ast.AlterSpec, error) {
	switch {
	case p.atKeyword("ADD"):
		p.advance()
		if p.atKeyword("INDEX") || p.atKeyword("KEY") {
			p.advance()
			name, err := p.parseIdent()
			if err != nil {
				return ast.AlterSpec{}, err
			}
			cols, err := p.parseColumnList()
			if err != nil {
				return ast.AlterSpec{}, err
			}
			return ast.AlterSpec{Kind: ast.AlterAddIndex, IndexName: name, IndexCols: cols}, nil
		}
		if p.atKeyword("FOREIGN") {
			if _, err := p.parseTableConstraint(); err != nil {
				return ast.AlterSpec{}, err
			}
			return ast.AlterSpec{Kind: ast.AlterAddForeignKey}, nil
		}
		p.eatKeyword("COLUMN")
		col, err := p.parseColumnDef()
		if err != nil {
			return ast.AlterSpec{}, err
		}
		return ast.AlterSpec{Kind: ast.AlterAddColumn, Column: col}, nil

	case p.atKeyword("MODIFY"):
		p.advance()
		p.eatKeyword("COLUMN")
		col, err := p.parseColumnDef()
		if err != nil {
			return ast.AlterSpec{}, err
		}
		return ast.AlterSpec{Kind: ast.AlterModifyColumn, Column: col}, nil

	case p.atKeyword("DROP"):
		p.advance()
		if p.atKeyword("INDEX") || p.atKeyword("KEY") {
			p.advance()
			name, err := p.parseIdent()
			if err != nil {
				return ast.AlterSpec{}, err
			}
			return ast.AlterSpec{Kind: ast.AlterDropIndex, IndexName: name}, nil
		}
		if p.atKeyword("FOREIGN") {
			p.advance()
			if _, err := p.expectKeyword("KEY"); err != nil {
				return ast.AlterSpec{}, err
			}
			name, err := p.parseIdent()
			if err != nil {
				return ast.AlterSpec{}, err
			}
			return ast.AlterSpec{Kind: ast.AlterDropForeignKey, IndexName: name}, nil
		}
		p.eatKeyword("COLUMN")
		name, err := p.parseIdent()
		if err != nil {
			return ast.AlterSpec{}, err
		}
		return ast.AlterSpec{Kind: ast.AlterDropColumn, ColumnName: name}, nil

	case p.atKeyword("RENAME"):
		p.advance()
		p.eatKeyword("COLUMN")
		oldName, err := p.parseIdent()
		if err != nil {
			return ast.AlterSpec{}, err
		}
		if _, err := p.expectKeyword("TO"); err != nil {
			return ast.AlterSpec{}, err
		}
		newName, err := p.parseIdent()
		if err != nil {
			return ast.AlterSpec{}, err
		}
		return ast.AlterSpec{Kind: ast.AlterRenameColumn, ColumnName: oldName, NewName: newName}, nil

	default:
		return ast.AlterSpec{}, fmt.Errorf("unsupported ALTER TABLE clause at %s", p.describeCur())
	}
}

func (p *Parser) parseDrop() (ast.Statement, error) {
	p.advance() // DROP
	switch {
	case p.atKeyword("TABLE"):
		p.advance()
		ifExists := p.parseIfExists()
		name, err := p.parseQualifiedTableName()
		if err != nil {
			return nil, err
		}
		return &ast.DropTable{Name: name, IfExists: ifExists}, nil
	case p.atKeyword("VIEW"):
		p.advance()
		ifExists := p.parseIfExists()
		name, err := p.parseQualifiedTableName()
		if err != nil {
			return nil, err
		}
		return &ast.DropView{Name: name, IfExists: ifExists}, nil
	case p.atKeyword("INDEX"):
		p.advance()
		ifExists := p.parseIfExists()
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		table := ""
		if p.eatKeyword("ON") {
			t, err := p.parseQualifiedTableName()
			if err != nil {
				return nil, err
			}
			table = t
		}
		return &ast.DropIndex{Name: name, Table: table, IfExists: ifExists}, nil
	default:
		return nil, fmt.Errorf("expected TABLE, VIEW or INDEX after DROP, got %s", p.describeCur())
	}
}

func (p *Parser) parseWith() (ast.Statement, error) {
	p.advance() // WITH
	recursive := p.eatKeyword("RECURSIVE")
	var ctes []ast.CTE
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("AS"); err != nil {
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
		ctes = append(ctes, ast.CTE{Name: name, Select: sel})
		if p.at(tokComma) {
			p.advance()
			continue
		}
		break
	}
	var body ast.Statement
	var err error
	switch {
	case p.atKeyword("SELECT"):
		body, err = p.parseSelect()
	case p.atKeyword("INSERT"):
		body, err = p.parseInsert()
	case p.atKeyword("UPDATE"):
		body, err = p.parseUpdate()
	case p.atKeyword("DELETE"):
		body, err = p.parseDelete()
	default:
		err = fmt.Errorf("expected a statement after WITH clause, got %s", p.describeCur())
	}
	if err != nil {
		return nil, err
	}
	return &ast.With{Recursive: recursive, CTEs: ctes, Body: body}, nil
}
