package analysis

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// TypeInference checks set operation branches, aggregate argument domains
// and casts.
type TypeInference struct{}

func (TypeInference) Name() string { return PassTypeInference }

func (TypeInference) Description() string {
	return "Checks set operation branch types, SUM/AVG argument types and lossy casts"
}

func (TypeInference) RunModel(node string, plan *planner.Plan, _ *Context) []Diagnostic {
	var ds []Diagnostic

	eachOp(plan.Root, func(op planner.Op) {
		if set, ok := op.(*planner.SetOp); ok {
			ds = append(ds, checkSetOp(node, set)...)
		}
	})

	eachExpr(plan.Root, func(_ planner.Op, e planner.Expr) {
		switch e := e.(type) {
		case *planner.Call:
			if d, ok := checkAggregateDomain(node, e); ok {
				ds = append(ds, d)
			}
		case *planner.Cast:
			from, to := e.Operand.Type(), e.Target
			if lossyCast(from, to) {
				ds = append(ds, Newf(CodeLossyCast, node, "",
					"Potentially lossy cast from %s to %s in '%s'", from, to, e.SQL()).
					WithHint("Consider using TRY_CAST for safer conversion"))
			}
		}
	})
	return ds
}

// checkSetOp compares every branch after the first against the first.
func checkSetOp(node string, set *planner.SetOp) []Diagnostic {
	var ds []Diagnostic
	first := set.Branches[0].Schema()
	for i, branch := range set.Branches[1:] {
		kind := setOpName(set.Ops[i])
		cols := branch.Schema()
		if len(cols) != len(first) {
			ds = append(ds, Newf(CodeUnionColumnCount, node, "",
				"%s operands have different column counts: left=%d, right=%d", kind, len(first), len(cols)))
			continue
		}
		for j, left := range first {
			right := cols[j]
			if left.Type.CompatibleWith(right.Type) {
				continue
			}
			ds = append(ds, Newf(CodeUnionTypeMismatch, node, left.Name,
				"Type mismatch in %s column '%s': left is %s, right is %s", kind, left.Name, left.Type, right.Type).
				WithHint("Add explicit CASTs to ensure matching types"))
		}
	}
	return ds
}

func setOpName(op core.SetOpType) string {
	if op == "" {
		return "UNION"
	}
	return string(op)
}

// checkAggregateDomain flags SUM and AVG over a known non-numeric argument.
func checkAggregateDomain(node string, c *planner.Call) (Diagnostic, bool) {
	if !c.Aggregate || c.Star || len(c.Args) != 1 {
		return Diagnostic{}, false
	}
	switch c.Name {
	case "sum", "avg", "mean":
	default:
		return Diagnostic{}, false
	}
	arg := c.Args[0].Type()
	if arg.IsNumeric() || arg.IsUnknown() {
		return Diagnostic{}, false
	}
	col := ""
	if ref, ok := c.Args[0].(*planner.ColumnRef); ok {
		col = ref.Column.Name
	}
	d := Newf(CodeNonNumericAggregate, node, col,
		"%s() applied to non-numeric column '%s'", strings.ToUpper(c.Name), describe(c.Args[0]))
	return d.WithHint(fmt.Sprintf("The argument is %s; ensure the column is numeric, or add a CAST", arg)), true
}

// lossyCast reports conversions that can drop information or fail at run time.
func lossyCast(from, to core.SQLType) bool {
	if from.IsUnknown() || to.IsUnknown() {
		return false
	}
	switch {
	case to.IsInteger():
		switch from.Kind {
		case core.TypeFloat, core.TypeDecimal, core.TypeString:
			return true
		case core.TypeHugeInt:
			return to.Kind != core.TypeHugeInt
		case core.TypeInteger:
			return to.Kind == core.TypeInteger && to.Bits < from.Bits
		}
	case from.IsString():
		switch to.Kind {
		case core.TypeFloat, core.TypeDecimal, core.TypeBoolean, core.TypeDate, core.TypeTimestamp:
			return true
		}
	case from.Kind == core.TypeTimestamp && to.Kind == core.TypeDate:
		return true
	}
	return false
}
