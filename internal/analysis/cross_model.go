package analysis

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// CrossModel compares same-named columns across catalog entries.
type CrossModel struct{}

func (CrossModel) Name() string { return PassCrossModel }

func (CrossModel) Description() string {
	return "Flags columns whose type or nullability differs between nodes that share the column name"
}

type occurrence struct {
	node string
	col  core.TypedColumn
}

// RunProject reports each inconsistent pair once, on the node whose name
// sorts last.
func (CrossModel) RunProject(ctx *Context) []Diagnostic {
	byColumn := make(map[string][]occurrence)
	nodes := make([]string, 0, len(ctx.Catalog))
	for name := range ctx.Catalog {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)
	for _, name := range nodes {
		for _, c := range ctx.Catalog[name] {
			key := strings.ToLower(c.Name)
			byColumn[key] = append(byColumn[key], occurrence{node: name, col: c})
		}
	}

	keys := make([]string, 0, len(byColumn))
	for k := range byColumn {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var ds []Diagnostic
	for _, k := range keys {
		occ := byColumn[k]
		for i := 0; i < len(occ); i++ {
			for j := i + 1; j < len(occ); j++ {
				a, b := occ[i], occ[j]
				if !a.col.Type.SameAs(b.col.Type) {
					ds = append(ds, Newf(CodeCrossModelType, b.node, b.col.Name,
						"Column '%s' is %s in %s but %s in %s", b.col.Name, b.col.Type, b.node, a.col.Type, a.node).
						WithHint("Align the types or rename one of the columns"))
				}
				if nullabilityConflict(a.col.Nullability, b.col.Nullability) {
					ds = append(ds, Newf(CodeCrossModelNullable, b.node, b.col.Name,
						"Column '%s' is %s in %s but %s in %s", b.col.Name, b.col.Nullability, b.node, a.col.Nullability, a.node))
				}
			}
		}
	}
	return ds
}

func nullabilityConflict(a, b core.Nullability) bool {
	return (a == core.NotNull && b == core.Nullable) || (a == core.Nullable && b == core.NotNull)
}
