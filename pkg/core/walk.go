package core

import "fmt"

// Inspect traverses the AST depth-first, calling f for every node.
// If f returns false, the children of that node are skipped.
//
// The switch is exhaustive over the AST types; an unknown node panics so a
// new node kind cannot be silently ignored by every analysis built on top.
func Inspect(n Node, f func(Node) bool) {
	if isNilNode(n) || !f(n) {
		return
	}

	switch n := n.(type) {
	// Statements
	case *SelectStmt:
		if n.With != nil {
			Inspect(n.With, f)
		}
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *WithClause:
		for _, cte := range n.CTEs {
			Inspect(cte, f)
		}
	case *CTE:
		if n.Select != nil {
			Inspect(n.Select, f)
		}
	case *SelectBody:
		if n.Left != nil {
			Inspect(n.Left, f)
		}
		if n.Right != nil {
			Inspect(n.Right, f)
		}
	case *SelectCore:
		for _, item := range n.Columns {
			inspectExpr(item.Expr, f)
		}
		if n.From != nil {
			Inspect(n.From, f)
		}
		inspectExpr(n.Where, f)
		inspectExprs(n.GroupBy, f)
		inspectExpr(n.Having, f)
		inspectOrderBy(n.OrderBy, f)
		inspectExpr(n.Limit, f)
		inspectExpr(n.Offset, f)
	case *FromClause:
		if n.Source != nil {
			Inspect(n.Source, f)
		}
		for _, j := range n.Joins {
			Inspect(j, f)
		}
	case *Join:
		if n.Right != nil {
			Inspect(n.Right, f)
		}
		inspectExpr(n.Condition, f)

	// Table references
	case *TableName:
	case *DerivedTable:
		if n.Select != nil {
			Inspect(n.Select, f)
		}
	case *TableFunc:
		inspectExprs(n.Args, f)

	// Expressions
	case *ColumnRef, *Literal:
	case *BinaryExpr:
		inspectExpr(n.Left, f)
		inspectExpr(n.Right, f)
	case *UnaryExpr:
		inspectExpr(n.Expr, f)
	case *FuncCall:
		inspectExprs(n.Args, f)
		if n.Window != nil {
			inspectExprs(n.Window.PartitionBy, f)
			inspectOrderBy(n.Window.OrderBy, f)
			if fr := n.Window.Frame; fr != nil {
				if fr.Start != nil {
					inspectExpr(fr.Start.Offset, f)
				}
				if fr.End != nil {
					inspectExpr(fr.End.Offset, f)
				}
			}
		}
	case *CaseExpr:
		inspectExpr(n.Operand, f)
		for _, w := range n.Whens {
			inspectExpr(w.Condition, f)
			inspectExpr(w.Result, f)
		}
		inspectExpr(n.Else, f)
	case *CastExpr:
		inspectExpr(n.Expr, f)
	case *InExpr:
		inspectExpr(n.Expr, f)
		inspectExprs(n.Values, f)
		if n.Query != nil {
			Inspect(n.Query, f)
		}
	case *BetweenExpr:
		inspectExpr(n.Expr, f)
		inspectExpr(n.Low, f)
		inspectExpr(n.High, f)
	case *IsNullExpr:
		inspectExpr(n.Expr, f)
	case *IsBoolExpr:
		inspectExpr(n.Expr, f)
	case *LikeExpr:
		inspectExpr(n.Expr, f)
		inspectExpr(n.Pattern, f)
	case *ParenExpr:
		inspectExpr(n.Expr, f)
	case *SubqueryExpr:
		if n.Select != nil {
			Inspect(n.Select, f)
		}
	case *ExistsExpr:
		if n.Select != nil {
			Inspect(n.Select, f)
		}
	default:
		panic(fmt.Sprintf("core.Inspect: unexpected node %T", n))
	}
}

func inspectExpr(e Expr, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

func inspectExprs(list []Expr, f func(Node) bool) {
	for _, e := range list {
		inspectExpr(e, f)
	}
}

func inspectOrderBy(items []OrderByItem, f func(Node) bool) {
	for _, item := range items {
		inspectExpr(item.Expr, f)
	}
}

// isNilNode catches typed nil pointers stored in an interface.
func isNilNode(n Node) bool {
	if n == nil {
		return true
	}
	switch v := n.(type) {
	case *SelectStmt:
		return v == nil
	case *SelectBody:
		return v == nil
	case *SelectCore:
		return v == nil
	case *FromClause:
		return v == nil
	case *WithClause:
		return v == nil
	}
	return false
}
