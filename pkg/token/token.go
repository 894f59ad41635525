// Package token defines the token types for SQL parsing.
//
// The keyword set is closed: leapcheck analyzes a fixed SELECT subset and
// rejects anything it cannot reason about statically, so there is no
// dialect-level keyword registration.
package token

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
//
//nolint:revive // token.TokenType reads clearly at call sites
type TokenType int32

//nolint:revive // ALL_CAPS mirrors SQL keyword spelling
const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // identifier
	QIDENT // "quoted identifier"
	NUMBER // 123, 45.67, 1e10
	STRING // 'hello'

	// Operators
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	DPIPE     // ||
	EQ        // =
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	DOT       // .
	COMMA     // ,
	LPAREN    // (
	RPAREN    // )
	DCOLON    // ::
	SEMICOLON // ;

	// Keywords (alphabetical)
	ALL
	AND
	AS
	ASC
	BETWEEN
	BY
	CASE
	CAST
	CROSS
	CURRENT
	DESC
	DISTINCT
	ELSE
	END
	EXCEPT
	EXISTS
	FALSE
	FIRST
	FOLLOWING
	FROM
	FULL
	GROUP
	HAVING
	ILIKE
	IN
	INNER
	INTERSECT
	IS
	JOIN
	LAST
	LATERAL
	LEFT
	LIKE
	LIMIT
	NATURAL
	NOT
	NULL
	NULLS
	OFFSET
	ON
	OR
	ORDER
	OUTER
	OVER
	PARTITION
	PRECEDING
	RANGE
	RECURSIVE
	RIGHT
	ROW
	ROWS
	SELECT
	THEN
	TRUE
	UNBOUNDED
	UNION
	USING
	WHEN
	WHERE
	WITH

	keywordEnd
)

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	QIDENT: "QIDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	DPIPE:     "||",
	EQ:        "=",
	NE:        "!=",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	DOT:       ".",
	COMMA:     ",",
	LPAREN:    "(",
	RPAREN:    ")",
	DCOLON:    "::",
	SEMICOLON: ";",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{}

func init() {
	for t := ALL; t < keywordEnd; t++ {
		keywords[strings.ToLower(keywordName(t))] = t
	}
}

// keywordName spells keyword tokens; kept as a switch so a new keyword
// without a spelling fails loudly in TestKeywordsRoundTrip.
func keywordName(t TokenType) string {
	switch t {
	case ALL:
		return "ALL"
	case AND:
		return "AND"
	case AS:
		return "AS"
	case ASC:
		return "ASC"
	case BETWEEN:
		return "BETWEEN"
	case BY:
		return "BY"
	case CASE:
		return "CASE"
	case CAST:
		return "CAST"
	case CROSS:
		return "CROSS"
	case CURRENT:
		return "CURRENT"
	case DESC:
		return "DESC"
	case DISTINCT:
		return "DISTINCT"
	case ELSE:
		return "ELSE"
	case END:
		return "END"
	case EXCEPT:
		return "EXCEPT"
	case EXISTS:
		return "EXISTS"
	case FALSE:
		return "FALSE"
	case FIRST:
		return "FIRST"
	case FOLLOWING:
		return "FOLLOWING"
	case FROM:
		return "FROM"
	case FULL:
		return "FULL"
	case GROUP:
		return "GROUP"
	case HAVING:
		return "HAVING"
	case ILIKE:
		return "ILIKE"
	case IN:
		return "IN"
	case INNER:
		return "INNER"
	case INTERSECT:
		return "INTERSECT"
	case IS:
		return "IS"
	case JOIN:
		return "JOIN"
	case LAST:
		return "LAST"
	case LATERAL:
		return "LATERAL"
	case LEFT:
		return "LEFT"
	case LIKE:
		return "LIKE"
	case LIMIT:
		return "LIMIT"
	case NATURAL:
		return "NATURAL"
	case NOT:
		return "NOT"
	case NULL:
		return "NULL"
	case NULLS:
		return "NULLS"
	case OFFSET:
		return "OFFSET"
	case ON:
		return "ON"
	case OR:
		return "OR"
	case ORDER:
		return "ORDER"
	case OUTER:
		return "OUTER"
	case OVER:
		return "OVER"
	case PARTITION:
		return "PARTITION"
	case PRECEDING:
		return "PRECEDING"
	case RANGE:
		return "RANGE"
	case RECURSIVE:
		return "RECURSIVE"
	case RIGHT:
		return "RIGHT"
	case ROW:
		return "ROW"
	case ROWS:
		return "ROWS"
	case SELECT:
		return "SELECT"
	case THEN:
		return "THEN"
	case TRUE:
		return "TRUE"
	case UNBOUNDED:
		return "UNBOUNDED"
	case UNION:
		return "UNION"
	case USING:
		return "USING"
	case WHEN:
		return "WHEN"
	case WHERE:
		return "WHERE"
	case WITH:
		return "WITH"
	}
	return ""
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	if name := keywordName(t); name != "" {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// LookupIdent returns the keyword token for ident, or IDENT.
// Matching is case-insensitive.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= ALL && t < keywordEnd
}

// IsOperator returns true if the token type is an operator.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= SEMICOLON
}

// Keywords returns every keyword spelling in token order.
func Keywords() []string {
	out := make([]string, 0, keywordEnd-ALL)
	for t := ALL; t < keywordEnd; t++ {
		out = append(out, keywordName(t))
	}
	return out
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	if t.Literal == "" {
		return t.Type.String()
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}
