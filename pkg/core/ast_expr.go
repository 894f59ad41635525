package core

import (
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// ---------- Expression Types ----------

// ColumnRef represents a column reference, possibly qualified (t.col, s.t.col).
type ColumnRef struct {
	NodeInfo
	Parts []Ident
}

func (*ColumnRef) exprNode() {}

// Column returns the column name (last part).
func (c *ColumnRef) Column() string {
	if len(c.Parts) == 0 {
		return ""
	}
	return c.Parts[len(c.Parts)-1].Value
}

// Table returns the qualifier (every part but the last), or "".
func (c *ColumnRef) Table() string {
	if len(c.Parts) < 2 {
		return ""
	}
	return JoinIdents(c.Parts[:len(c.Parts)-1])
}

// Literal represents a literal value. String values are stored unescaped.
type Literal struct {
	NodeInfo
	Type  LiteralType
	Value string
}

func (*Literal) exprNode() {}

// LiteralType represents the type of a literal.
type LiteralType int

// LiteralType constants for SQL literal value types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// IsDecimal reports whether a numeric literal has a fractional part or exponent.
func (l *Literal) IsDecimal() bool {
	return l.Type == LiteralNumber && strings.ContainsAny(l.Value, ".eE")
}

// BinaryExpr represents a binary expression.
type BinaryExpr struct {
	NodeInfo
	Left  Expr
	Op    token.TokenType
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression (NOT x, -x).
type UnaryExpr struct {
	NodeInfo
	Op   token.TokenType
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	NodeInfo
	Name     []Ident
	Distinct bool
	Args     []Expr
	Star     bool        // COUNT(*)
	Window   *WindowSpec // OVER clause
}

func (*FuncCall) exprNode() {}

// FuncName returns the lowercase dotted function name.
func (f *FuncCall) FuncName() string { return strings.ToLower(JoinIdents(f.Name)) }

// WindowSpec represents a window specification (OVER clause).
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameSpec represents a window frame specification.
type FrameSpec struct {
	Type  FrameType
	Start *FrameBound
	End   *FrameBound // nil unless BETWEEN ... AND ...
}

// FrameType represents the type of window frame.
type FrameType string

// FrameType constants for window frame specification types.
const (
	FrameRows  FrameType = "ROWS"
	FrameRange FrameType = "RANGE"
)

// FrameBound represents a window frame bound.
type FrameBound struct {
	Type   FrameBoundType
	Offset Expr // for N PRECEDING/FOLLOWING
}

// FrameBoundType represents the type of frame bound.
type FrameBoundType string

// FrameBoundType constants for window frame bound types.
const (
	FrameUnboundedPreceding FrameBoundType = "UNBOUNDED PRECEDING"
	FrameUnboundedFollowing FrameBoundType = "UNBOUNDED FOLLOWING"
	FrameCurrentRow         FrameBoundType = "CURRENT ROW"
	FrameExprPreceding      FrameBoundType = "PRECEDING"
	FrameExprFollowing      FrameBoundType = "FOLLOWING"
)

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	NodeInfo
	Operand Expr // CASE operand WHEN... (optional)
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// WhenClause represents a WHEN clause in CASE expression.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastStyle records how a cast was spelled so it can be printed back.
type CastStyle int

// Cast spellings.
const (
	CastFunction     CastStyle = iota // CAST(x AS t)
	CastColons                        // x::t
	CastTypedLiteral                  // DATE '2024-01-01'
)

// CastExpr represents a CAST expression.
type CastExpr struct {
	NodeInfo
	Expr     Expr
	TypeName string
	Style    CastStyle
}

func (*CastExpr) exprNode() {}

// InExpr represents an IN expression.
type InExpr struct {
	NodeInfo
	Expr   Expr
	Not    bool
	Values []Expr      // IN (1, 2, 3)
	Query  *SelectStmt // IN (SELECT ...)
}

func (*InExpr) exprNode() {}

// BetweenExpr represents a BETWEEN expression.
type BetweenExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// IsNullExpr represents an IS [NOT] NULL expression.
type IsNullExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
}

func (*IsNullExpr) exprNode() {}

// IsBoolExpr represents an IS [NOT] TRUE/FALSE expression.
type IsBoolExpr struct {
	NodeInfo
	Expr  Expr
	Not   bool
	Value bool
}

func (*IsBoolExpr) exprNode() {}

// LikeExpr represents a LIKE or ILIKE expression.
type LikeExpr struct {
	NodeInfo
	Expr    Expr
	Not     bool
	Pattern Expr
	Op      token.TokenType // token.LIKE or token.ILIKE
}

func (*LikeExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	NodeInfo
	Expr Expr
}

func (*ParenExpr) exprNode() {}

// SubqueryExpr represents a scalar subquery used as an expression.
type SubqueryExpr struct {
	NodeInfo
	Select *SelectStmt
}

func (*SubqueryExpr) exprNode() {}

// ExistsExpr represents an EXISTS expression.
type ExistsExpr struct {
	NodeInfo
	Not    bool
	Select *SelectStmt
}

func (*ExistsExpr) exprNode() {}

// Unparen strips any number of enclosing parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*ParenExpr)
		if !ok {
			return e
		}
		e = p.Expr
	}
}
