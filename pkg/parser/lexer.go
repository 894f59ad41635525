package parser

import (
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	// Comments collected during lexing (for the printer)
	Comments []*token.Comment

	// Errors are lexical problems; the offending token is returned as ILLEGAL.
	Errors []*ParseError
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	if l.pos < len(l.input) && l.readPos > 0 && l.input[l.pos] == '\n' {
		l.line++
		l.col = 0
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the position of the current character.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	tok := token.Token{Pos: pos}

	switch l.ch {
	case 0:
		tok.Type = token.EOF
		return tok
	case '+':
		tok = l.single(token.PLUS)
	case '-':
		tok = l.single(token.MINUS)
	case '*':
		tok = l.single(token.STAR)
	case '/':
		tok = l.single(token.SLASH)
	case '%':
		tok = l.single(token.PERCENT)
	case '=':
		tok = l.single(token.EQ)
		if l.peekChar() == '=' {
			l.readChar()
			tok.Literal = "=="
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.LE, Literal: "<=", Pos: pos}
		case '>':
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "<>", Pos: pos}
		default:
			tok = l.single(token.LT)
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GE, Literal: ">=", Pos: pos}
		} else {
			tok = l.single(token.GT)
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "!=", Pos: pos}
		} else {
			tok = l.single(token.ILLEGAL)
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = token.Token{Type: token.DPIPE, Literal: "||", Pos: pos}
		} else {
			tok = l.single(token.ILLEGAL)
		}
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			tok = token.Token{Type: token.DCOLON, Literal: "::", Pos: pos}
		} else {
			tok = l.single(token.ILLEGAL)
		}
	case '.':
		if isDigit(l.peekChar()) {
			return token.Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
		}
		tok = l.single(token.DOT)
	case ',':
		tok = l.single(token.COMMA)
	case '(':
		tok = l.single(token.LPAREN)
	case ')':
		tok = l.single(token.RPAREN)
	case ';':
		tok = l.single(token.SEMICOLON)
	case '\'':
		lit, ok := l.readQuoted('\'')
		if !ok {
			l.errorAt(pos, ErrUnterminatedString)
			return token.Token{Type: token.ILLEGAL, Literal: lit, Pos: pos}
		}
		return token.Token{Type: token.STRING, Literal: lit, Pos: pos}
	case '"':
		lit, ok := l.readQuoted('"')
		if !ok {
			l.errorAt(pos, ErrUnterminatedIdent)
			return token.Token{Type: token.ILLEGAL, Literal: lit, Pos: pos}
		}
		return token.Token{Type: token.QIDENT, Literal: lit, Pos: pos}
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			lit := l.readIdentifier()
			return token.Token{Type: token.LookupIdent(lit), Literal: lit, Pos: pos}
		case isDigit(l.ch):
			return token.Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
		default:
			tok = l.single(token.ILLEGAL)
		}
	}

	l.readChar()
	return tok
}

// single builds a token from the current character (plus any characters
// already consumed by the caller).
func (l *Lexer) single(t token.TokenType) token.Token {
	pos := l.currentPos()
	lit := string(l.ch)
	if t != token.ILLEGAL {
		lit = t.String()
	}
	return token.Token{Type: t, Literal: lit, Pos: pos}
}

func (l *Lexer) errorAt(pos token.Position, msg string) {
	l.Errors = append(l.Errors, &ParseError{Pos: pos, Message: msg})
}

// skipWhitespaceAndComments skips whitespace and collects comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			l.collectLineComment()
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.collectBlockComment()
			continue
		}

		break
	}
}

// collectLineComment collects a line comment.
func (l *Lexer) collectLineComment() {
	startPos := l.currentPos()
	startOffset := l.pos

	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}

	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.LineComment,
		Text: strings.TrimRight(l.input[startOffset:l.pos], "\r"),
		Pos:  startPos,
	})
}

// collectBlockComment collects a block comment.
func (l *Lexer) collectBlockComment() {
	startPos := l.currentPos()
	startOffset := l.pos

	l.readChar() // skip '/'
	l.readChar() // skip '*'

	closed := false
	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			closed = true
			break
		}
		l.readChar()
	}
	if !closed {
		l.errorAt(startPos, ErrUnterminatedComment)
	}

	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.BlockComment,
		Text: l.input[startOffset:l.pos],
		Pos:  startPos,
	})
}

// readQuoted reads a quoted string or identifier. A doubled quote is an
// escaped quote. Reports false when the input ends before the closing quote.
func (l *Lexer) readQuoted(quote byte) (string, bool) {
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.ch != 0 {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String(), true
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return result.String(), false
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && (isDigit(l.peekChar()) || l.pos > start) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if (l.ch == 'e' || l.ch == 'E') &&
		(isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
