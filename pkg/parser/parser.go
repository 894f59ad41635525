// Package parser provides SQL parsing for the SELECT subset leapcheck analyzes.
//
// # Usage
//
//	stmt, err := parser.Parse("SELECT a, b FROM t")
//	if err != nil {
//	    // handle error
//	}
//
// # Grammar Overview
//
// The parser implements a recursive descent parser for a subset of SQL:
//
//	statement     → [WITH cte_list] select_body [";"]
//	select_body   → select_core [(UNION|INTERSECT|EXCEPT) [ALL] select_body]
//	select_core   → SELECT [DISTINCT] select_list [FROM from_clause]
//	                [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	                [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//
// WITH clauses and derived tables are parsed so that callers can report
// them precisely; rejecting them is the job of the dependency extractor.
//
// See each file for detailed grammar rules for that section.
package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// Parser parses SQL into an AST.
type Parser struct {
	tokens []token.Token
	ends   []token.Position // ends[i] is the position just after tokens[i]
	cur    int
	token  token.Token // tokens[cur]

	comments []*token.Comment
	lexErrs  []*ParseError
}

// NewParser creates a new parser for the given SQL input. The input is
// tokenized eagerly; the grammar needs more than two tokens of lookahead
// for qualified star expressions (s.t.*).
func NewParser(sql string) *Parser {
	l := NewLexer(sql)
	p := &Parser{}
	for {
		tok := l.NextToken()
		p.tokens = append(p.tokens, tok)
		p.ends = append(p.ends, l.currentPos())
		if tok.Type == token.EOF {
			break
		}
	}
	p.comments = l.Comments
	p.lexErrs = l.Errors
	p.token = p.tokens[0]
	return p
}

// Parse parses a single SELECT statement. Anything else, including an
// empty input or more than one statement, is an error.
func Parse(sql string) (*core.SelectStmt, error) {
	p := NewParser(sql)
	var stmt *core.SelectStmt
	err := p.run(func() {
		if !p.check(token.SELECT) && !p.check(token.WITH) {
			p.errorf(ErrNotSelect, describe(p.token))
		}
		stmt = p.parseStatement()
		for p.match(token.SEMICOLON) {
		}
		if !p.check(token.EOF) {
			p.errorf(ErrTrailingInput, describe(p.token))
		}
		stmt.Comments = p.comments
	})
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

// ParseExpr parses a standalone expression.
func ParseExpr(sql string) (core.Expr, error) {
	p := NewParser(sql)
	var expr core.Expr
	err := p.run(func() {
		expr = p.parseExpression()
		if !p.check(token.EOF) {
			p.errorf(ErrTrailingInput, describe(p.token))
		}
	})
	if err != nil {
		return nil, err
	}
	return expr, nil
}

// run executes fn and converts a bailout into the returned error. Lexical
// errors take priority because they explain any ILLEGAL token that follows.
func (p *Parser) run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			if len(p.lexErrs) > 0 {
				err = p.lexErrs[0]
				return
			}
			err = b.err
		}
	}()
	fn()
	if len(p.lexErrs) > 0 {
		return p.lexErrs[0]
	}
	return nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	if p.cur < len(p.tokens)-1 {
		p.cur++
	}
	p.token = p.tokens[p.cur]
}

// peekAt returns the token n positions ahead of the current one.
func (p *Parser) peekAt(n int) token.Token {
	i := p.cur + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the next token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peekAt(1).Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise fails the parse.
func (p *Parser) expect(t token.TokenType) token.Token {
	tok := p.token
	if !p.check(t) {
		p.errorf(ErrUnexpectedToken, describe(p.token), t)
	}
	p.nextToken()
	return tok
}

// errorf stops the parse with an error at the current token.
func (p *Parser) errorf(format string, args ...any) {
	panic(bailout{err: &ParseError{Pos: p.token.Pos, Message: fmt.Sprintf(format, args...)}})
}

// span returns the NodeInfo from start to the end of the last consumed token.
func (p *Parser) span(start token.Position) core.NodeInfo {
	stop := start
	if p.cur > 0 {
		stop = p.ends[p.cur-1]
	}
	return core.NodeInfo{Start: start, Stop: stop}
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT, token.NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case token.STRING:
		return "string literal"
	case token.QIDENT:
		return fmt.Sprintf("quoted identifier %q", tok.Literal)
	case token.ILLEGAL:
		return fmt.Sprintf("illegal character %q", tok.Literal)
	}
	return tok.Type.String()
}

// ---------- Identifier Helpers ----------

// softKeywords are keyword tokens that only carry meaning inside window
// frames, ORDER BY or WITH; elsewhere they are ordinary identifiers.
var softKeywords = map[token.TokenType]bool{
	token.FIRST:     true,
	token.LAST:      true,
	token.NULLS:     true,
	token.ROW:       true,
	token.ROWS:      true,
	token.RANGE:     true,
	token.CURRENT:   true,
	token.PRECEDING: true,
	token.FOLLOWING: true,
	token.UNBOUNDED: true,
	token.PARTITION: true,
	token.RECURSIVE: true,
}

// isIdent reports whether tok can be used as an identifier.
func isIdent(tok token.Token) bool {
	return tok.Type == token.IDENT || tok.Type == token.QIDENT || softKeywords[tok.Type]
}

// parseIdent consumes one identifier.
func (p *Parser) parseIdent() core.Ident {
	if !isIdent(p.token) {
		p.errorf(ErrUnexpectedToken, describe(p.token), "identifier")
	}
	id := core.Ident{Value: p.token.Literal, Quoted: p.token.Type == token.QIDENT}
	p.nextToken()
	return id
}

// parseQualifiedName parses ident ("." ident)*.
func (p *Parser) parseQualifiedName() []core.Ident {
	parts := []core.Ident{p.parseIdent()}
	for p.check(token.DOT) && isIdent(p.peekAt(1)) {
		p.nextToken()
		parts = append(parts, p.parseIdent())
	}
	return parts
}

// parseAlias parses an optional [AS] alias. A bare alias must be a plain
// or quoted identifier, never a soft keyword.
func (p *Parser) parseAlias() core.Ident {
	if p.match(token.AS) {
		return p.parseIdent()
	}
	if p.check(token.IDENT) || p.check(token.QIDENT) {
		return p.parseIdent()
	}
	return core.Ident{}
}

// parseIdentList parses "(" ident ("," ident)* ")".
func (p *Parser) parseIdentList() []core.Ident {
	p.expect(token.LPAREN)
	var ids []core.Ident
	for {
		ids = append(ids, p.parseIdent())
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return ids
}
