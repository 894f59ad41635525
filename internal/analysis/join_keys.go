package analysis

import (
	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// JoinKeys inspects join conditions.
type JoinKeys struct{}

func (JoinKeys) Name() string { return PassJoinKeys }

func (JoinKeys) Description() string {
	return "Checks join conditions for key type mismatches, missing conditions and non-equi predicates"
}

func (JoinKeys) RunModel(node string, plan *planner.Plan, _ *Context) []Diagnostic {
	var ds []Diagnostic
	eachOp(plan.Root, func(op planner.Op) {
		j, ok := op.(*planner.Join)
		if !ok {
			return
		}
		switch {
		case j.Type == core.JoinCross && j.Condition == nil:
			ds = append(ds, New(CodeJoinNoCondition, node, "", "Cross join (Cartesian product) detected").
				WithHint("Ensure this is intentional; cross joins can produce very large result sets"))
		case j.Condition == nil && len(j.Using) == 0:
			ds = append(ds, Newf(CodeJoinNoCondition, node, "", "%s JOIN without any condition", j.Type).
				WithHint("This may produce a Cartesian product"))
		case j.Condition != nil:
			ds = append(ds, joinCondition(node, j.Condition)...)
		}
	})
	return ds
}

// joinCondition walks AND/OR trees of comparisons.
func joinCondition(node string, e planner.Expr) []Diagnostic {
	b, ok := e.(*planner.Binary)
	if !ok {
		return nil
	}
	switch b.Op {
	case token.AND, token.OR:
		return append(joinCondition(node, b.Left), joinCondition(node, b.Right)...)
	case token.EQ:
		lt, rt := b.Left.Type(), b.Right.Type()
		if lt.IsUnknown() || rt.IsUnknown() || joinCompatible(lt, rt) {
			return nil
		}
		return []Diagnostic{Newf(CodeJoinKeyType, node, "",
			"Join key type mismatch: '%s' (%s) = '%s' (%s)", describe(b.Left), lt, describe(b.Right), rt).
			WithHint("Add explicit CASTs to ensure matching types")}
	case token.NE, token.LT, token.GT, token.LE, token.GE:
		return []Diagnostic{Newf(CodeNonEquiJoin, node, "",
			"Non-equi join condition detected (operator: %s)", b.Op).
			WithHint("Non-equi joins may have performance implications")}
	}
	return nil
}

// joinCompatible is stricter than CompatibleWith: JSON and UUID keys do not
// match strings without a cast.
func joinCompatible(a, b core.SQLType) bool {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		return true
	case a.Kind == b.Kind:
		return true
	case a.Kind == core.TypeDate && b.Kind == core.TypeTimestamp,
		a.Kind == core.TypeTimestamp && b.Kind == core.TypeDate:
		return true
	}
	return false
}
