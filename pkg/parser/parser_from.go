package parser

import (
	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// FROM clause parsing: table references, derived tables, table functions, JOINs.
//
// Grammar:
//
//	from_clause   → table_ref (join)*
//	table_ref     → table_name | table_func | derived_table
//	table_name    → identifier ("." identifier)* [[AS] identifier]
//	table_func    → identifier ("." identifier)* "(" [expr_list] ")" [[AS] identifier]
//	derived_table → [LATERAL] "(" statement ")" [[AS] identifier]
//	join          → [NATURAL] join_type JOIN table_ref [ON expr | USING "(" ident_list ")"]
//	              | "," table_ref
//	join_type     → [INNER] | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS

// parseFromClause parses the FROM clause.
func (p *Parser) parseFromClause() *core.FromClause {
	start := p.token.Pos
	from := &core.FromClause{Source: p.parseTableRef()}

	for {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}

	from.NodeInfo = p.span(start)
	return from
}

// parseTableRef parses a table reference.
func (p *Parser) parseTableRef() core.TableRef {
	start := p.token.Pos

	if p.check(token.LATERAL) || p.check(token.LPAREN) {
		derived := &core.DerivedTable{Lateral: p.match(token.LATERAL)}
		p.expect(token.LPAREN)
		if !p.check(token.SELECT) && !p.check(token.WITH) {
			p.errorf(ErrUnexpectedToken, describe(p.token), "subquery")
		}
		derived.Select = p.parseStatement()
		p.expect(token.RPAREN)
		derived.Alias = p.parseAlias()
		derived.NodeInfo = p.span(start)
		return derived
	}

	name := p.parseQualifiedName()

	if p.match(token.LPAREN) {
		fn := &core.TableFunc{Name: name}
		if !p.check(token.RPAREN) {
			fn.Args = p.parseExpressionList()
		}
		p.expect(token.RPAREN)
		fn.Alias = p.parseAlias()
		fn.NodeInfo = p.span(start)
		return fn
	}

	table := &core.TableName{Parts: name}
	table.Alias = p.parseAlias()
	table.NodeInfo = p.span(start)
	return table
}

// parseJoin parses a single JOIN clause, or returns nil when the next
// token does not start one.
func (p *Parser) parseJoin() *core.Join {
	start := p.token.Pos

	if p.match(token.COMMA) {
		join := &core.Join{Type: core.JoinComma, Right: p.parseTableRef()}
		join.NodeInfo = p.span(start)
		return join
	}

	join := &core.Join{}
	join.Natural = p.match(token.NATURAL)

	switch p.token.Type {
	case token.JOIN:
		join.Type = core.JoinInner
	case token.INNER:
		p.nextToken()
		join.Type = core.JoinInner
	case token.LEFT:
		p.nextToken()
		p.match(token.OUTER)
		join.Type = core.JoinLeft
	case token.RIGHT:
		p.nextToken()
		p.match(token.OUTER)
		join.Type = core.JoinRight
	case token.FULL:
		p.nextToken()
		p.match(token.OUTER)
		join.Type = core.JoinFull
	case token.CROSS:
		p.nextToken()
		join.Type = core.JoinCross
	default:
		if join.Natural {
			p.errorf(ErrUnexpectedToken, describe(p.token), "JOIN")
		}
		return nil
	}

	p.expect(token.JOIN)
	join.Right = p.parseTableRef()

	switch {
	case p.check(token.ON):
		if join.Natural {
			p.errorf("NATURAL JOIN cannot have ON clause")
		}
		if join.Type == core.JoinCross {
			p.errorf("CROSS JOIN cannot have ON clause")
		}
		p.nextToken()
		join.Condition = p.parseExpression()
	case p.check(token.USING):
		if join.Natural {
			p.errorf("NATURAL JOIN cannot have USING clause")
		}
		p.nextToken()
		join.Using = p.parseIdentList()
	}

	join.NodeInfo = p.span(start)
	return join
}
