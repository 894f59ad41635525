package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog [node]",
		Short: "Show published schemas",
		Long: `Display the schema every node publishes after propagation: column
names, types, nullability and descriptions. Sources and external relations
are included.`,
		Example: `  # All schemas
  leapcheck catalog

  # One node
  leapcheck catalog fct_revenue -o table`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var node string
			if len(args) == 1 {
				node = args[0]
			}
			return runCatalog(cmd, node)
		},
	}
	return cmd
}

func runCatalog(cmd *cobra.Command, node string) error {
	c := NewCommandContext(cmd)
	res, err := c.Compile(cmd.Context())
	if err != nil {
		return err
	}

	names := sortedNames(res.Catalog)
	if node != "" {
		key, ok := findKey(res.Catalog, node)
		if !ok {
			return fmt.Errorf("unknown node %q", node)
		}
		names = []string{key}
	}

	r := c.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if node != "" {
			return r.JSON(res.Catalog[names[0]])
		}
		return r.JSON(res.Catalog)
	case output.ModeTable:
		var rows [][]string
		for _, name := range names {
			for _, col := range res.Catalog[name] {
				rows = append(rows, []string{name, res.Origins[name], col.Name, col.Type.String(), col.Nullability.String(), col.Description})
			}
		}
		r.Table([]string{"Node", "Origin", "Column", "Type", "Nullability", "Description"}, rows)
	case output.ModeMarkdown:
		catalogMarkdown(r, res, names)
	default:
		catalogText(r, res, names)
	}
	return nil
}

func catalogText(r *output.Renderer, res *compile.Result, names []string) {
	styles := r.Styles()
	for _, name := range names {
		header := styles.Header2.Render(name)
		if origin := res.Origins[name]; origin != "" {
			header += " " + styles.Muted.Render(origin)
		}
		r.Println(header)
		for _, col := range res.Catalog[name] {
			line := fmt.Sprintf("  %-24s %-16s %s", col.Name, col.Type, nullLabel(col.Nullability))
			if col.Description != "" {
				line += "  " + styles.Muted.Render(col.Description)
			}
			r.Println(line)
		}
		r.Println("")
	}
}

func catalogMarkdown(r *output.Renderer, res *compile.Result, names []string) {
	r.Println(output.FormatHeader(1, "Catalog"))
	r.Println("")
	for _, name := range names {
		r.Println(output.FormatHeader(2, name))
		r.Println("")
		if origin := res.Origins[name]; origin != "" {
			r.Println("Origin: " + origin)
			r.Println("")
		}
		var rows [][]string
		for _, col := range res.Catalog[name] {
			rows = append(rows, []string{col.Name, col.Type.String(), nullLabel(col.Nullability), col.Description})
		}
		r.Table([]string{"Column", "Type", "Nullability", "Description"}, rows)
		r.Println("")
	}
}

func nullLabel(n core.Nullability) string {
	switch n {
	case core.NotNull:
		return "not null"
	case core.Nullable:
		return "nullable"
	}
	return "unknown"
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// findKey finds name among the keys of m ignoring case.
func findKey[V any](m map[string]V, name string) (string, bool) {
	if _, ok := m[name]; ok {
		return name, true
	}
	for k := range m {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}
