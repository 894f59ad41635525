package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	"github.com/leapstack-labs/leapcheck/internal/planner"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Column     string
	Upstream   bool
	Downstream bool
}

// LineageOutput is the JSON form of the lineage command.
type LineageOutput struct {
	Node       string         `json:"node"`
	Edges      []planner.Edge `json:"edges"`
	Upstream   []string       `json:"upstream,omitempty"`
	Downstream []string       `json:"downstream,omitempty"`
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <node>",
		Short: "Show column lineage for a node",
		Long: `Display where each output column of a node comes from.

Every edge names a source column and how it reaches the output: copied
unchanged, transformed by an expression, or only inspected by a filter,
join or grouping.`,
		Example: `  # Column lineage of a node
  leapcheck lineage fct_revenue

  # Only one output column
  leapcheck lineage fct_revenue --column revenue

  # Also list upstream and downstream nodes
  leapcheck lineage fct_revenue --upstream --downstream

  # Output as JSON
  leapcheck lineage fct_revenue --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Column, "column", "", "Only show edges of this output column")
	cmd.Flags().BoolVar(&opts.Upstream, "upstream", false, "Include upstream nodes")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream nodes")

	return cmd
}

func runLineage(cmd *cobra.Command, name string, opts *LineageOptions) error {
	c := NewCommandContext(cmd)
	res, err := c.Compile(cmd.Context())
	if err != nil {
		return err
	}

	node, ok := findKey(res.Nodes, name)
	if !ok {
		return fmt.Errorf("unknown node %q", name)
	}

	out := LineageOutput{Node: node, Edges: []planner.Edge{}}
	for _, e := range res.Lineage[node] {
		if opts.Column == "" || strings.EqualFold(e.Output, opts.Column) {
			out.Edges = append(out.Edges, e)
		}
	}
	if res.Graph != nil {
		if opts.Upstream {
			out.Upstream = nonNil(res.Graph.GetUpstreamNodes(node))
		}
		if opts.Downstream {
			out.Downstream = nonNil(res.Graph.GetDownstreamNodes(node))
		}
	}

	r := c.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeTable, output.ModeMarkdown:
		rows := make([][]string, 0, len(out.Edges))
		for _, e := range out.Edges {
			rows = append(rows, []string{e.Output, e.Node + "." + e.Column, string(e.Kind)})
		}
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println(output.FormatHeader(1, "Lineage: "+node))
			r.Println("")
		}
		r.Table([]string{"Output", "Source", "Kind"}, rows)
		lineageNodes(r, out)
	default:
		lineageText(r, out)
	}
	return nil
}

func lineageText(r *output.Renderer, out LineageOutput) {
	styles := r.Styles()
	r.Header(1, "Lineage: "+out.Node)

	if len(out.Edges) == 0 {
		r.Println(styles.Muted.Render("no column lineage"))
	}
	var last string
	for _, e := range out.Edges {
		if e.Output != last {
			r.Println(styles.Bold.Render(e.Output))
			last = e.Output
		}
		r.Printf("  <- %s %s\n",
			styles.ModelPath.Render(e.Node+"."+e.Column),
			styles.Muted.Render("("+string(e.Kind)+")"))
	}
	lineageNodes(r, out)
}

func lineageNodes(r *output.Renderer, out LineageOutput) {
	if out.Upstream != nil {
		r.Println("")
		r.Printf("upstream: %s\n", joinOrNone(out.Upstream))
	}
	if out.Downstream != nil {
		if out.Upstream == nil {
			r.Println("")
		}
		r.Printf("downstream: %s\n", joinOrNone(out.Downstream))
	}
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "(none)"
	}
	return strings.Join(s, ", ")
}
