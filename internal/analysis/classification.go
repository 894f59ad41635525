package analysis

import (
	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Classification checks that derived columns keep the sensitivity of what
// they are derived from.
type Classification struct{}

func (Classification) Name() string { return PassClassification }

func (Classification) Description() string {
	return "Flags columns classified below the upstream columns they are derived from"
}

func (Classification) RunProject(ctx *Context) []Diagnostic {
	var ds []Diagnostic
	for _, node := range ctx.Order {
		plan, ok := ctx.Plans[node]
		if !ok || !declares(ctx, node) {
			continue
		}
		for _, e := range plan.Lineage {
			if e.Kind == planner.EdgeInspect {
				continue
			}
			src, ok := ctx.DeclaredColumn(e.Node, e.Column)
			if !ok || src.Classification == "" {
				continue
			}
			tgt, ok := ctx.DeclaredColumn(node, e.Output)
			if !ok || tgt.Classification.Rank() >= src.Classification.Rank() {
				continue
			}
			ds = append(ds, Newf(CodeClassificationDowngrade, node, e.Output,
				"Column '%s' is derived from '%s.%s' (%s) but is classified as %s",
				e.Output, e.Node, e.Column, src.Classification, classificationName(tgt.Classification)).
				WithHint("Classify '"+e.Output+"' as "+string(src.Classification)+" or higher"))
		}
	}
	return ds
}

func classificationName(c core.Classification) string {
	if c == "" {
		return "unclassified"
	}
	return string(c)
}
