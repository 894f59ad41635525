package planner

import "sort"

// EdgeKind classifies how an output column uses a source column.
type EdgeKind string

// Lineage edge kinds.
const (
	// EdgeCopy passes the value through unchanged.
	EdgeCopy EdgeKind = "copy"
	// EdgeTransform computes the output from the source.
	EdgeTransform EdgeKind = "transform"
	// EdgeInspect reads the source in a filter, join, grouping or ordering
	// without producing an output column from it.
	EdgeInspect EdgeKind = "inspect"
)

// Edge is one column lineage edge. Output is empty for inspect edges.
type Edge struct {
	Output string   `json:"output,omitempty"`
	Node   string   `json:"source_node"`
	Column string   `json:"source_column"`
	Kind   EdgeKind `json:"kind"`
}

type edgeKey struct {
	output, node, column string
}

// buildLineage derives the lineage edges of a plan. Edges are unique on
// (output, node, column).
func buildLineage(root Op) []Edge {
	seen := map[edgeKey]bool{}
	var outputs, inspected []Edge

	add := func(list *[]Edge, output string, o Origin, kind EdgeKind) {
		k := edgeKey{output, o.Node, o.Column}
		if seen[k] {
			return
		}
		seen[k] = true
		*list = append(*list, Edge{Output: output, Node: o.Node, Column: o.Column, Kind: kind})
	}

	for _, c := range root.Schema() {
		kind := EdgeCopy
		if c.Derived {
			kind = EdgeTransform
		}
		for _, o := range c.Origins {
			add(&outputs, c.Name, o, kind)
		}
	}

	inspect := func(origins []Origin) {
		for _, o := range origins {
			add(&inspected, "", o, EdgeInspect)
		}
	}
	var visit func(op Op)
	visit = func(op Op) {
		Walk(op, func(op Op) bool {
			switch op := op.(type) {
			case *Filter:
				inspect(exprOrigins(op.Predicate))
			case *Join:
				if op.Condition != nil {
					inspect(exprOrigins(op.Condition))
				}
				for _, name := range op.Using {
					for _, side := range op.Inputs() {
						if i := visibleIndex(side.Schema(), name); i >= 0 {
							inspect(side.Schema()[i].Origins)
						}
					}
				}
			case *Aggregate:
				for _, g := range op.GroupBy {
					inspect(exprOrigins(g))
				}
			case *Sort:
				for _, k := range op.Keys {
					inspect(exprOrigins(k.Expr))
				}
			}
			for _, e := range Exprs(op) {
				WalkExpr(e, func(x Expr) bool {
					switch x := x.(type) {
					case *Call:
						if x.Window != nil {
							for _, p := range x.Window.Partition {
								inspect(exprOrigins(p))
							}
							for _, k := range x.Window.Order {
								inspect(exprOrigins(k.Expr))
							}
						}
					case *Subquery:
						for _, c := range x.Root.Schema() {
							inspect(c.Origins)
						}
						visit(x.Root)
					}
					return true
				})
			}
			return true
		})
	}
	visit(root)

	sort.SliceStable(inspected, func(i, j int) bool {
		if inspected[i].Node != inspected[j].Node {
			return inspected[i].Node < inspected[j].Node
		}
		return inspected[i].Column < inspected[j].Column
	})
	return append(outputs, inspected...)
}
