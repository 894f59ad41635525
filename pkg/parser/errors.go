package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken     = "unexpected token %s, expected %s"
	ErrUnterminatedString  = "unterminated string literal"
	ErrUnterminatedIdent   = "unterminated quoted identifier"
	ErrUnterminatedComment = "unterminated block comment"
	ErrNotSelect           = "expected SELECT or WITH, got %s"
	ErrTrailingInput       = "unexpected %s after end of statement"
)

// bailout is panicked by errorf and recovered at the API boundary so a
// parse stops at its first error.
type bailout struct{ err *ParseError }
