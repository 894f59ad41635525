package analysis

import (
	"github.com/leapstack-labs/leapcheck/internal/planner"
)

// eachExpr calls fn for every expression node of every operator in the
// plan, subquery plans included. Aggregate calls are shared between the
// Aggregate operator and the expressions above it; each node is visited once.
func eachExpr(root planner.Op, fn func(op planner.Op, e planner.Expr)) {
	seen := make(map[planner.Expr]bool)
	planner.WalkAll(root, func(op planner.Op) bool {
		for _, top := range planner.Exprs(op) {
			planner.WalkExpr(top, func(e planner.Expr) bool {
				if seen[e] {
					return false
				}
				seen[e] = true
				fn(op, e)
				return true
			})
		}
		return true
	})
}

// eachOp calls fn for every operator of the plan, subquery plans included.
func eachOp(root planner.Op, fn func(planner.Op)) {
	planner.WalkAll(root, func(op planner.Op) bool {
		fn(op)
		return true
	})
}

// outputProjects returns the projections that produce the plan's output
// rows: one per set operation branch, without descending into derived
// tables or subqueries.
func outputProjects(root planner.Op) []*planner.Project {
	var out []*planner.Project
	planner.Walk(root, func(op planner.Op) bool {
		switch op := op.(type) {
		case *planner.Project:
			out = append(out, op)
			return false
		case *planner.Scan:
			return false
		}
		return true
	})
	return out
}

// describe names an expression in a message: table.column for column
// references, the SQL text otherwise.
func describe(e planner.Expr) string {
	if ref, ok := e.(*planner.ColumnRef); ok {
		if ref.Column.Table != "" {
			return ref.Column.Table + "." + ref.Column.Name
		}
		return ref.Column.Name
	}
	if sql := e.SQL(); sql != "" {
		return sql
	}
	return "expr"
}
