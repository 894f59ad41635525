package analysis

import (
	"strings"
)

// UnusedColumns finds output columns no downstream node reads.
type UnusedColumns struct{}

func (UnusedColumns) Name() string { return PassUnusedColumns }

func (UnusedColumns) Description() string {
	return "Detects columns produced by a node but never used by any downstream node"
}

func (UnusedColumns) RunProject(ctx *Context) []Diagnostic {
	var ds []Diagnostic
	for _, node := range ctx.Order {
		plan, ok := ctx.Plans[node]
		if !ok {
			continue
		}
		dependents := ctx.Dependents(node)
		if len(dependents) == 0 {
			continue // terminal nodes are final outputs
		}

		consumed, complete := consumedColumns(ctx, node, dependents)
		if !complete {
			continue
		}
		for _, col := range plan.Columns {
			if consumed[strings.ToLower(col.Name)] {
				continue
			}
			ds = append(ds, Newf(CodeUnusedColumn, node, col.Name,
				"Column '%s' produced but never used by any downstream node", col.Name).
				WithHint("Consider removing this column to simplify the node"))
		}
	}
	return ds
}

// consumedColumns gathers the columns of node that any dependent's lineage
// reads. complete is false when a dependent has no plan to inspect.
func consumedColumns(ctx *Context, node string, dependents []string) (map[string]bool, bool) {
	consumed := make(map[string]bool)
	for _, dep := range dependents {
		plan, ok := ctx.Plans[dep]
		if !ok {
			return nil, false
		}
		for _, e := range plan.Lineage {
			if strings.EqualFold(e.Node, node) {
				consumed[strings.ToLower(e.Column)] = true
			}
		}
	}
	return consumed, true
}
