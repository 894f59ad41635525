package analysis

import (
	"strings"

	"github.com/leapstack-labs/leapcheck/internal/planner"
)

// DescriptionDrift follows lineage edges to find documentation that was
// lost or changed on the way through a node.
type DescriptionDrift struct{}

func (DescriptionDrift) Name() string { return PassDescriptionDrift }

func (DescriptionDrift) Description() string {
	return "Detects missing or drifted column descriptions across lineage edges"
}

// RunProject only looks at nodes that declare a schema: an undeclared node
// has nothing to document against.
func (DescriptionDrift) RunProject(ctx *Context) []Diagnostic {
	var ds []Diagnostic
	for _, node := range ctx.Order {
		plan, ok := ctx.Plans[node]
		if !ok || !declares(ctx, node) {
			continue
		}
		seen := make(map[string]bool)
		for _, e := range plan.Lineage {
			tgt, _ := ctx.DeclaredColumn(node, e.Output)
			src, _ := ctx.DeclaredColumn(e.Node, e.Column)

			switch {
			case e.Kind == planner.EdgeCopy && src.Description != "" && tgt.Description == "":
				ds = append(ds, Newf(CodeDescriptionMissing, node, e.Output,
					"Column '%s' is a direct pass-through from '%s.%s' but has no description",
					e.Output, e.Node, e.Column).
					WithHint("Add a description to '"+e.Output+"', or copy it from '"+e.Node+"."+e.Column+"'"))
			case e.Kind == planner.EdgeCopy && src.Description != "" && src.Description != tgt.Description:
				ds = append(ds, Newf(CodeDescriptionDiffers, node, e.Output,
					"Column '%s' is a direct pass-through from '%s.%s' but has a different description",
					e.Output, e.Node, e.Column))
			case e.Kind == planner.EdgeTransform && tgt.Description == "":
				key := strings.ToLower(e.Output)
				if seen[key] {
					continue
				}
				seen[key] = true
				ds = append(ds, Newf(CodeDescriptionUndocumented, node, e.Output,
					"Column '%s' is a transformation but has no description", e.Output).
					WithHint("Add a description to '"+e.Output+"'"))
			}
		}
	}
	return ds
}

func declares(ctx *Context, node string) bool {
	n, ok := ctx.Node(node)
	return ok && n.HasDeclaredSchema()
}
