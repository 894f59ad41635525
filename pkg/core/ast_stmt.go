package core

import "github.com/leapstack-labs/leapcheck/pkg/token"

// ---------- Statement Types ----------

// SelectStmt represents a complete SELECT statement with optional WITH clause.
type SelectStmt struct {
	NodeInfo
	With     *WithClause
	Body     *SelectBody
	Comments []*token.Comment // every comment seen while lexing, in source order
}

func (*SelectStmt) stmtNode() {}

// WithClause represents a WITH clause with CTEs.
type WithClause struct {
	NodeInfo
	Recursive bool
	CTEs      []*CTE
}

// CTE represents a Common Table Expression.
type CTE struct {
	NodeInfo
	Name    Ident
	Columns []Ident
	Select  *SelectStmt
}

// SelectBody represents the body of a SELECT with possible set operations.
// Chains are right-nested: a UNION b UNION c is {a, UNION, {b, UNION, {c}}}.
type SelectBody struct {
	NodeInfo
	Left  *SelectCore
	Op    SetOpType
	Right *SelectBody
}

// SetOpType represents the type of set operation.
type SetOpType string

// SetOpType constants for set operations in queries.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpUnionAll  SetOpType = "UNION ALL"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// Branches flattens the set operation chain into its SELECT cores.
func (b *SelectBody) Branches() []*SelectCore {
	var out []*SelectCore
	for cur := b; cur != nil; cur = cur.Right {
		if cur.Left != nil {
			out = append(out, cur.Left)
		}
	}
	return out
}

// SelectCore represents the core SELECT clause.
type SelectCore struct {
	NodeInfo
	Distinct bool
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool    // SELECT *
	TableStar []Ident // SELECT t.* (qualifier parts)
	Expr      Expr
	Alias     Ident
}

// FromClause represents the FROM clause.
type FromClause struct {
	NodeInfo
	Source TableRef
	Joins  []*Join
}

// Join represents a JOIN clause.
type Join struct {
	NodeInfo
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr    // ON clause (mutually exclusive with Using)
	Using     []Ident // USING (col1, col2)
}

// JoinType is the SQL keyword of a join.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
	JoinComma JoinType = "," // implicit cross join: FROM a, b
)

// OrderByItem represents an item in ORDER BY clause.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool // nil means default, true = NULLS FIRST, false = NULLS LAST
}
