package format

import (
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Format formats a parsed SQL statement. Comments captured by the parser
// are emitted ahead of the statement, in source order.
func Format(stmt *core.SelectStmt) string {
	p := newPrinter()
	if stmt != nil {
		p.formatComments(stmt.Comments)
	}
	p.formatSelectStmt(stmt)
	return p.String()
}

// Expr formats a single expression on one line where possible.
func Expr(e core.Expr) string {
	p := newPrinter()
	p.formatExpr(e)
	out := p.String()
	return out[:len(out)-1]
}
