package parser

import (
	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// Statement parsing: WITH clause, CTEs, SELECT body, SELECT list, ORDER BY.
//
// Grammar:
//
//	statement     → [WITH [RECURSIVE] cte_list] select_body
//	cte_list      → cte ("," cte)*
//	cte           → identifier ["(" ident_list ")"] AS "(" statement ")"
//	select_body   → select_core [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
//	select_list   → select_item ("," select_item)*
//	select_item   → "*" | qualified_name "." "*" | expr [[AS] identifier]
//	order_list    → order_item ("," order_item)*
//	order_item    → expr [ASC|DESC] [NULLS FIRST|LAST]

// parseStatement parses a complete SQL statement.
func (p *Parser) parseStatement() *core.SelectStmt {
	start := p.token.Pos
	stmt := &core.SelectStmt{}

	if p.check(token.WITH) {
		stmt.With = p.parseWithClause()
	}

	stmt.Body = p.parseSelectBody()
	stmt.NodeInfo = p.span(start)
	return stmt
}

// parseWithClause parses a WITH clause with CTEs.
func (p *Parser) parseWithClause() *core.WithClause {
	start := p.expect(token.WITH).Pos
	with := &core.WithClause{}

	if p.check(token.RECURSIVE) && isIdent(p.peekAt(1)) {
		p.nextToken()
		with.Recursive = true
	}

	for {
		with.CTEs = append(with.CTEs, p.parseCTE())
		if !p.match(token.COMMA) {
			break
		}
	}

	with.NodeInfo = p.span(start)
	return with
}

// parseCTE parses a single CTE.
func (p *Parser) parseCTE() *core.CTE {
	start := p.token.Pos
	cte := &core.CTE{Name: p.parseIdent()}

	if p.check(token.LPAREN) {
		cte.Columns = p.parseIdentList()
	}

	p.expect(token.AS)
	p.expect(token.LPAREN)
	cte.Select = p.parseStatement()
	p.expect(token.RPAREN)

	cte.NodeInfo = p.span(start)
	return cte
}

// parseSelectBody parses a SELECT body with possible set operations.
func (p *Parser) parseSelectBody() *core.SelectBody {
	start := p.token.Pos
	body := &core.SelectBody{Left: p.parseSelectCore()}

	switch p.token.Type {
	case token.UNION:
		p.nextToken()
		if p.match(token.ALL) {
			body.Op = core.SetOpUnionAll
		} else {
			p.match(token.DISTINCT)
			body.Op = core.SetOpUnion
		}
	case token.INTERSECT:
		p.nextToken()
		p.match(token.ALL)
		body.Op = core.SetOpIntersect
	case token.EXCEPT:
		p.nextToken()
		p.match(token.ALL)
		body.Op = core.SetOpExcept
	}

	if body.Op != core.SetOpNone {
		body.Right = p.parseSelectBody()
	}

	body.NodeInfo = p.span(start)
	return body
}

// parseSelectCore parses a single SELECT ... clause chain.
func (p *Parser) parseSelectCore() *core.SelectCore {
	start := p.expect(token.SELECT).Pos
	sel := &core.SelectCore{}

	if p.match(token.DISTINCT) {
		sel.Distinct = true
	} else {
		p.match(token.ALL)
	}

	sel.Columns = p.parseSelectList()

	if p.match(token.FROM) {
		sel.From = p.parseFromClause()
	}

	if p.match(token.WHERE) {
		sel.Where = p.parseExpression()
	}

	if p.check(token.GROUP) {
		p.nextToken()
		p.expect(token.BY)
		sel.GroupBy = p.parseExpressionList()
	}

	if p.match(token.HAVING) {
		sel.Having = p.parseExpression()
	}

	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		sel.OrderBy = p.parseOrderByList()
	}

	if p.match(token.LIMIT) {
		sel.Limit = p.parseExpression()
	}

	if p.match(token.OFFSET) {
		sel.Offset = p.parseExpression()
	}

	sel.NodeInfo = p.span(start)
	return sel
}

// parseSelectList parses the projection.
func (p *Parser) parseSelectList() []core.SelectItem {
	var items []core.SelectItem
	for {
		items = append(items, p.parseSelectItem())
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseSelectItem parses one projection item.
func (p *Parser) parseSelectItem() core.SelectItem {
	if p.match(token.STAR) {
		return core.SelectItem{Star: true}
	}

	if qualifier, ok := p.tryTableStar(); ok {
		return core.SelectItem{TableStar: qualifier}
	}

	item := core.SelectItem{Expr: p.parseExpression()}
	item.Alias = p.parseAlias()
	return item
}

// tryTableStar consumes t.* or s.t.* when present.
func (p *Parser) tryTableStar() ([]core.Ident, bool) {
	n := 0
	for isIdent(p.peekAt(n)) && p.peekAt(n+1).Type == token.DOT {
		n += 2
	}
	if n == 0 || p.peekAt(n).Type != token.STAR {
		return nil, false
	}

	var parts []core.Ident
	for i := 0; i < n; i += 2 {
		parts = append(parts, p.parseIdent())
		p.expect(token.DOT)
	}
	p.expect(token.STAR)
	return parts, true
}

// parseOrderByList parses an ORDER BY list.
func (p *Parser) parseOrderByList() []core.OrderByItem {
	var items []core.OrderByItem
	for {
		item := core.OrderByItem{Expr: p.parseExpression()}

		if p.match(token.DESC) {
			item.Desc = true
		} else {
			p.match(token.ASC)
		}

		if p.match(token.NULLS) {
			first := true
			switch {
			case p.match(token.FIRST):
			case p.match(token.LAST):
				first = false
			default:
				p.errorf(ErrUnexpectedToken, describe(p.token), "FIRST or LAST")
			}
			item.NullsFirst = &first
		}

		items = append(items, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}
