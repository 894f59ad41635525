package analysis

import (
	"strings"

	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Nullability tracks columns made nullable by outer joins.
type Nullability struct{}

func (Nullability) Name() string { return PassNullability }

func (Nullability) Description() string {
	return "Detects outer-joined columns used without null guards and redundant null checks"
}

// guards are functions whose result does not propagate a NULL argument
// unchecked.
var guards = map[string]bool{"coalesce": true, "ifnull": true, "nvl": true, "isnull": true}

func (Nullability) RunModel(node string, plan *planner.Plan, ctx *Context) []Diagnostic {
	var ds []Diagnostic
	guarded := guardedColumns(plan.Root)

	for _, proj := range outputProjects(plan.Root) {
		for i, it := range proj.Items {
			ref := unguardedOuterRef(it.Expr, guarded)
			if ref == nil {
				continue
			}
			ds = append(ds, Newf(CodeUnguardedNullable, node, it.Name,
				"Column '%s' is nullable after JOIN but used without a null guard (e.g., COALESCE)", ref.Column.Name).
				WithHint("Wrap with COALESCE() or add an IS NOT NULL filter"))

			declared, ok := ctx.DeclaredColumn(node, it.Name)
			if ok && declared.Nullability == core.NotNull && proj.Schema()[i].Nullability == core.Nullable {
				ds = append(ds, Newf(CodeNotNullAfterJoin, node, it.Name,
					"Column '%s' is declared NOT NULL but becomes nullable after JOIN", it.Name).
					WithHint("Add a COALESCE or filter to ensure NOT NULL"))
			}
		}
	}

	eachOp(plan.Root, func(op planner.Op) {
		f, ok := op.(*planner.Filter)
		if !ok {
			return
		}
		planner.WalkExpr(f.Predicate, func(e planner.Expr) bool {
			isNull, ok := e.(*planner.IsNull)
			if !ok {
				return true
			}
			ref, ok := isNull.Operand.(*planner.ColumnRef)
			if !ok || ref.Column.Nullability != core.NotNull {
				return true
			}
			check := "IS NULL"
			if isNull.Not {
				check = "IS NOT NULL"
			}
			ds = append(ds, Newf(CodeRedundantNullCheck, node, ref.Column.Name,
				"%s check on column '%s' which is always NOT NULL", check, ref.Column.Name).
				WithHint("This check is redundant and can be removed"))
			return true
		})
	})
	return ds
}

// columnKey identifies a column by its binding label and name.
type columnKey struct{ table, name string }

func keyOf(c planner.Column) columnKey {
	return columnKey{strings.ToLower(c.Table), strings.ToLower(c.Name)}
}

// guardedColumns collects columns filtered with IS NOT NULL in a WHERE,
// HAVING or join condition conjunct.
func guardedColumns(root planner.Op) map[columnKey]bool {
	out := make(map[columnKey]bool)
	add := func(pred planner.Expr) {
		for _, c := range planner.Conjuncts(pred) {
			if n, ok := c.(*planner.IsNull); ok && n.Not {
				if ref, ok := n.Operand.(*planner.ColumnRef); ok {
					out[keyOf(ref.Column)] = true
				}
			}
		}
	}
	eachOp(root, func(op planner.Op) {
		switch op := op.(type) {
		case *planner.Filter:
			add(op.Predicate)
		case *planner.Join:
			add(op.Condition)
		}
	})
	return out
}

// unguardedOuterRef returns the first outer-joined column reference in e
// that is neither wrapped in a guard nor filtered.
func unguardedOuterRef(e planner.Expr, guarded map[columnKey]bool) *planner.ColumnRef {
	var found *planner.ColumnRef
	planner.WalkExpr(e, func(x planner.Expr) bool {
		if found != nil {
			return false
		}
		switch x := x.(type) {
		case *planner.Call:
			if guards[x.Name] || x.Aggregate {
				return false
			}
		case *planner.IsNull:
			return false
		case *planner.ColumnRef:
			if x.Column.OuterJoined && !guarded[keyOf(x.Column)] {
				found = x
			}
		}
		return true
	})
	return found
}
