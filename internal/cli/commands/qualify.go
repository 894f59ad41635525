package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/cli/output"
)

// NewQualifyCommand creates the qualify command.
func NewQualifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "qualify <node>",
		Short: "Show the schema-qualified SQL of a node",
		Long: `Print the SQL of a node with every relation reference rewritten to its
fully qualified name, as it would be handed to a warehouse.`,
		Example: `  leapcheck qualify fct_revenue`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			res, err := c.Compile(cmd.Context())
			if err != nil {
				return err
			}
			node, ok := findKey(res.Qualified, args[0])
			if !ok {
				if _, known := findKey(res.Nodes, args[0]); known {
					return fmt.Errorf("node %q could not be qualified; run compile for details", args[0])
				}
				return fmt.Errorf("unknown node %q", args[0])
			}

			r := c.Renderer
			switch r.EffectiveMode() {
			case output.ModeJSON:
				return r.JSON(map[string]string{"node": node, "sql": res.Qualified[node]})
			case output.ModeMarkdown:
				r.Println(output.FormatHeader(1, node))
				r.Println("")
				r.Println("```sql")
				r.Println(res.Qualified[node])
				r.Println("```")
			default:
				r.Println(res.Qualified[node])
			}
			return nil
		},
	}
}
