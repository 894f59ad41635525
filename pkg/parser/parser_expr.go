package parser

import (
	"slices"
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels:
//
//	precedenceNone       = 0
//	precedenceOr         = 1
//	precedenceAnd        = 2
//	precedenceNot        = 3
//	precedenceComparison = 4  (=, !=, <, >, <=, >=, IS, IN, BETWEEN, LIKE, ILIKE)
//	precedenceAddition   = 5  (+, -, ||)
//	precedenceMultiply   = 6  (*, /, %)
//	precedenceUnary      = 7  (-, +)
//	precedencePostfix    = 8  (::)
const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceAddition
	precedenceMultiply
	precedenceUnary
	precedencePostfix
)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() core.Expr {
	return p.parseExpressionWithPrecedence(precedenceNone + 1)
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []core.Expr {
	var exprs []core.Expr
	for {
		exprs = append(exprs, p.parseExpression())
		if !p.match(token.COMMA) {
			break
		}
	}
	return exprs
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) core.Expr {
	left := p.parsePrefixExpr()

	for {
		prec := infixPrecedence(p.token.Type)
		if prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
	}

	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() core.Expr {
	start := p.token.Pos

	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		if p.check(token.EXISTS) {
			exists := p.parseExists(start)
			exists.Not = true
			return exists
		}
		expr := p.parseExpressionWithPrecedence(precedenceNot)
		return &core.UnaryExpr{NodeInfo: p.span(start), Op: token.NOT, Expr: expr}

	case token.MINUS, token.PLUS:
		op := p.token.Type
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceUnary)
		return &core.UnaryExpr{NodeInfo: p.span(start), Op: op, Expr: expr}

	default:
		return p.parsePrimary()
	}
}

// infixPrecedence returns the precedence of t as an infix operator, or
// precedenceNone when t is not one.
func infixPrecedence(t token.TokenType) int {
	switch t {
	case token.OR:
		return precedenceOr
	case token.AND:
		return precedenceAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE,
		token.IS, token.IN, token.BETWEEN, token.LIKE, token.ILIKE, token.NOT:
		return precedenceComparison
	case token.PLUS, token.MINUS, token.DPIPE:
		return precedenceAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precedenceMultiply
	case token.DCOLON:
		return precedencePostfix
	}
	return precedenceNone
}

// parseInfixExpr parses an infix expression given the left operand and current precedence.
func (p *Parser) parseInfixExpr(left core.Expr, prec int) core.Expr {
	start := left.Pos()

	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		return p.parseNegatable(left, start, true)

	case token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
		return p.parseNegatable(left, start, false)

	case token.IS:
		p.nextToken()
		not := p.match(token.NOT)
		switch {
		case p.match(token.NULL):
			return &core.IsNullExpr{NodeInfo: p.span(start), Expr: left, Not: not}
		case p.match(token.TRUE):
			return &core.IsBoolExpr{NodeInfo: p.span(start), Expr: left, Not: not, Value: true}
		case p.match(token.FALSE):
			return &core.IsBoolExpr{NodeInfo: p.span(start), Expr: left, Not: not, Value: false}
		}
		p.errorf(ErrUnexpectedToken, describe(p.token), "NULL, TRUE or FALSE")

	case token.DCOLON:
		p.nextToken()
		typeName := p.parseTypeName()
		return &core.CastExpr{NodeInfo: p.span(start), Expr: left, TypeName: typeName, Style: core.CastColons}
	}

	op := p.token.Type
	p.nextToken()

	// Left-associative: the right operand binds tighter.
	right := p.parseExpressionWithPrecedence(prec + 1)

	return &core.BinaryExpr{NodeInfo: p.span(start), Left: left, Op: op, Right: right}
}

// parseNegatable parses IN, BETWEEN, LIKE and ILIKE, with the NOT (if any)
// already consumed.
func (p *Parser) parseNegatable(left core.Expr, start token.Position, not bool) core.Expr {
	switch p.token.Type {
	case token.IN:
		p.nextToken()
		in := &core.InExpr{Expr: left, Not: not}
		p.expect(token.LPAREN)
		if p.check(token.SELECT) || p.check(token.WITH) {
			in.Query = p.parseStatement()
		} else {
			in.Values = p.parseExpressionList()
		}
		p.expect(token.RPAREN)
		in.NodeInfo = p.span(start)
		return in

	case token.BETWEEN:
		p.nextToken()
		between := &core.BetweenExpr{Expr: left, Not: not}
		between.Low = p.parseExpressionWithPrecedence(precedenceAddition)
		p.expect(token.AND)
		between.High = p.parseExpressionWithPrecedence(precedenceAddition)
		between.NodeInfo = p.span(start)
		return between

	case token.LIKE, token.ILIKE:
		op := p.token.Type
		p.nextToken()
		pattern := p.parseExpressionWithPrecedence(precedenceAddition)
		return &core.LikeExpr{NodeInfo: p.span(start), Expr: left, Not: not, Pattern: pattern, Op: op}
	}

	p.errorf(ErrUnexpectedToken, describe(p.token), "IN, BETWEEN, LIKE or ILIKE")
	return nil
}

// ---------- Primary Expressions ----------

// typedLiteralPrefixes are the type names allowed before a string literal
// (DATE '2024-01-01').
var typedLiteralPrefixes = map[string]bool{
	"DATE":      true,
	"TIME":      true,
	"TIMESTAMP": true,
	"INTERVAL":  true,
}

// parsePrimary parses literals, column references, function calls,
// parenthesized expressions, subqueries, CASE and CAST.
func (p *Parser) parsePrimary() core.Expr {
	start := p.token.Pos
	tok := p.token

	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		return &core.Literal{NodeInfo: p.span(start), Type: core.LiteralNumber, Value: tok.Literal}

	case token.STRING:
		p.nextToken()
		return &core.Literal{NodeInfo: p.span(start), Type: core.LiteralString, Value: tok.Literal}

	case token.TRUE, token.FALSE:
		p.nextToken()
		return &core.Literal{NodeInfo: p.span(start), Type: core.LiteralBool, Value: strings.ToLower(tok.Literal)}

	case token.NULL:
		p.nextToken()
		return &core.Literal{NodeInfo: p.span(start), Type: core.LiteralNull, Value: "NULL"}

	case token.LPAREN:
		p.nextToken()
		if p.check(token.SELECT) || p.check(token.WITH) {
			sel := p.parseStatement()
			p.expect(token.RPAREN)
			return &core.SubqueryExpr{NodeInfo: p.span(start), Select: sel}
		}
		inner := p.parseExpression()
		p.expect(token.RPAREN)
		return &core.ParenExpr{NodeInfo: p.span(start), Expr: inner}

	case token.CASE:
		return p.parseCase()

	case token.CAST:
		p.nextToken()
		p.expect(token.LPAREN)
		expr := p.parseExpression()
		p.expect(token.AS)
		typeName := p.parseTypeName()
		p.expect(token.RPAREN)
		return &core.CastExpr{NodeInfo: p.span(start), Expr: expr, TypeName: typeName, Style: core.CastFunction}

	case token.EXISTS:
		return p.parseExists(start)

	case token.LEFT, token.RIGHT:
		// left(s, n) and right(s, n) are string functions.
		if p.checkPeek(token.LPAREN) {
			name := []core.Ident{{Value: tok.Literal}}
			p.nextToken()
			return p.parseFuncCall(name, start)
		}
	}

	if isIdent(tok) {
		if tok.Type == token.IDENT && typedLiteralPrefixes[strings.ToUpper(tok.Literal)] && p.checkPeek(token.STRING) {
			p.nextToken()
			lit := p.expect(token.STRING)
			value := &core.Literal{NodeInfo: core.NodeInfo{Start: lit.Pos, Stop: p.span(start).Stop}, Type: core.LiteralString, Value: lit.Literal}
			return &core.CastExpr{NodeInfo: p.span(start), Expr: value, TypeName: strings.ToUpper(tok.Literal), Style: core.CastTypedLiteral}
		}

		name := p.parseQualifiedName()
		if p.check(token.LPAREN) {
			return p.parseFuncCall(name, start)
		}
		return &core.ColumnRef{NodeInfo: p.span(start), Parts: name}
	}

	p.errorf("unexpected %s in expression", describe(tok))
	return nil
}

// parseExists parses EXISTS "(" statement ")".
func (p *Parser) parseExists(start token.Position) *core.ExistsExpr {
	p.expect(token.EXISTS)
	p.expect(token.LPAREN)
	sel := p.parseStatement()
	p.expect(token.RPAREN)
	return &core.ExistsExpr{NodeInfo: p.span(start), Select: sel}
}

// parseCase parses CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (p *Parser) parseCase() core.Expr {
	start := p.expect(token.CASE).Pos
	c := &core.CaseExpr{}

	if !p.check(token.WHEN) {
		c.Operand = p.parseExpression()
	}

	for p.match(token.WHEN) {
		var when core.WhenClause
		when.Condition = p.parseExpression()
		p.expect(token.THEN)
		when.Result = p.parseExpression()
		c.Whens = append(c.Whens, when)
	}
	if len(c.Whens) == 0 {
		p.errorf(ErrUnexpectedToken, describe(p.token), "WHEN")
	}

	if p.match(token.ELSE) {
		c.Else = p.parseExpression()
	}
	p.expect(token.END)

	c.NodeInfo = p.span(start)
	return c
}

// parseFuncCall parses the argument list and optional OVER clause of a
// function whose name has already been consumed.
func (p *Parser) parseFuncCall(name []core.Ident, start token.Position) core.Expr {
	fn := &core.FuncCall{Name: name}
	p.expect(token.LPAREN)

	switch {
	case p.match(token.STAR):
		fn.Star = true
	case p.check(token.RPAREN):
	default:
		if p.match(token.DISTINCT) {
			fn.Distinct = true
		} else {
			p.match(token.ALL)
		}
		fn.Args = p.parseExpressionList()
	}
	p.expect(token.RPAREN)

	if p.match(token.OVER) {
		fn.Window = p.parseWindowSpec()
	}

	fn.NodeInfo = p.span(start)
	return fn
}

// ---------- Window Specifications ----------
//
//	window_spec → "(" [PARTITION BY expr_list] [ORDER BY order_list] [frame] ")"
//	frame       → (ROWS|RANGE) (bound | BETWEEN bound AND bound)
//	bound       → UNBOUNDED (PRECEDING|FOLLOWING) | CURRENT ROW | expr (PRECEDING|FOLLOWING)

func (p *Parser) parseWindowSpec() *core.WindowSpec {
	p.expect(token.LPAREN)
	spec := &core.WindowSpec{}

	if p.check(token.PARTITION) {
		p.nextToken()
		p.expect(token.BY)
		spec.PartitionBy = p.parseExpressionList()
	}

	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		spec.OrderBy = p.parseOrderByList()
	}

	if p.check(token.ROWS) || p.check(token.RANGE) {
		frame := &core.FrameSpec{Type: core.FrameRows}
		if p.check(token.RANGE) {
			frame.Type = core.FrameRange
		}
		p.nextToken()
		if p.match(token.BETWEEN) {
			frame.Start = p.parseFrameBound()
			p.expect(token.AND)
			frame.End = p.parseFrameBound()
		} else {
			frame.Start = p.parseFrameBound()
		}
		spec.Frame = frame
	}

	p.expect(token.RPAREN)
	return spec
}

func (p *Parser) parseFrameBound() *core.FrameBound {
	switch {
	case p.match(token.UNBOUNDED):
		if p.match(token.PRECEDING) {
			return &core.FrameBound{Type: core.FrameUnboundedPreceding}
		}
		p.expect(token.FOLLOWING)
		return &core.FrameBound{Type: core.FrameUnboundedFollowing}
	case p.match(token.CURRENT):
		p.expect(token.ROW)
		return &core.FrameBound{Type: core.FrameCurrentRow}
	}

	offset := p.parseExpressionWithPrecedence(precedenceAddition)
	if p.match(token.PRECEDING) {
		return &core.FrameBound{Type: core.FrameExprPreceding, Offset: offset}
	}
	p.expect(token.FOLLOWING)
	return &core.FrameBound{Type: core.FrameExprFollowing, Offset: offset}
}

// ---------- Type Names ----------

// multiWordTypes lists the words that may follow the first word of a type name.
var multiWordTypes = map[string][]string{
	"DOUBLE":    {"PRECISION"},
	"CHARACTER": {"VARYING"},
	"TIMESTAMP": {"WITH", "WITHOUT", "TIME", "ZONE"},
	"TIME":      {"WITH", "WITHOUT", "TIME", "ZONE"},
}

// parseTypeName parses a type name such as INT, DECIMAL(10, 2) or
// TIMESTAMP WITH TIME ZONE and returns its normalized spelling.
func (p *Parser) parseTypeName() string {
	if !isIdent(p.token) {
		p.errorf(ErrUnexpectedToken, describe(p.token), "type name")
	}
	first := strings.ToUpper(p.token.Literal)
	words := []string{first}
	p.nextToken()

	for follow := multiWordTypes[first]; len(follow) > 0; {
		next := strings.ToUpper(p.token.Literal)
		if !slices.Contains(follow, next) || (p.token.Type != token.IDENT && p.token.Type != token.WITH) {
			break
		}
		words = append(words, next)
		p.nextToken()
	}

	name := strings.Join(words, " ")
	if p.match(token.LPAREN) {
		var args []string
		for {
			args = append(args, p.expect(token.NUMBER).Literal)
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		name += "(" + strings.Join(args, ",") + ")"
	}
	return name
}
