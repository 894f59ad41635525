package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	"github.com/leapstack-labs/leapcheck/internal/compile"
)

// GraphQuerier provides read-only access to DAG structure.
type GraphQuerier interface {
	Dependencies(string) []string
	Dependents(string) []string
	NodeCount() int
	EdgeCount() int
}

// DAGOutput is the JSON form of the dag command.
type DAGOutput struct {
	Order      []string   `json:"order"`
	Roots      []string   `json:"roots"`
	Levels     []DAGLevel `json:"levels"`
	TotalNodes int        `json:"total_nodes"`
	TotalEdges int        `json:"total_edges"`
	CycleNodes []string   `json:"cycle,omitempty"`
}

// DAGLevel is one execution level.
type DAGLevel struct {
	Level int       `json:"level"`
	Nodes []DAGNode `json:"nodes"`
}

// DAGNode is one node with its direct neighbours.
type DAGNode struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the dependency graph",
		Long: `Display the topological order and execution levels of the project.

Nodes on the same level have no dependency on each other and are
propagated in parallel.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the DAG
  leapcheck dag

  # Output as JSON
  leapcheck dag --output json

  # Output as a table
  leapcheck dag --output table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	return cmd
}

func runDAG(cmd *cobra.Command) error {
	c := NewCommandContext(cmd)
	res, err := c.Compile(cmd.Context())
	if err != nil {
		return err
	}
	if res.Graph == nil {
		return fmt.Errorf("no dependency graph was built")
	}

	r := c.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(buildDAGOutput(res))
	case output.ModeTable:
		dagTable(r, res.Graph, res.Levels)
		return nil
	case output.ModeMarkdown:
		dagMarkdown(r, res.Graph, res.Levels)
		return nil
	default:
		dagText(r, res.Graph, res.Levels)
		return nil
	}
}

func buildDAGOutput(res *compile.Result) DAGOutput {
	out := DAGOutput{
		Order:      nonNil(res.Order),
		Roots:      nonNil(res.Graph.GetRoots()),
		Levels:     make([]DAGLevel, 0, len(res.Levels)),
		TotalNodes: res.Graph.NodeCount(),
		TotalEdges: res.Graph.EdgeCount(),
	}
	if cyclic, cycle := res.Graph.HasCycle(); cyclic {
		out.CycleNodes = cycle
	}
	for i, level := range res.Levels {
		l := DAGLevel{Level: i, Nodes: make([]DAGNode, 0, len(level))}
		for _, n := range level {
			l.Nodes = append(l.Nodes, DAGNode{
				Name:      n,
				DependsOn: nonNil(res.Graph.Dependencies(n)),
				UsedBy:    nonNil(res.Graph.Dependents(n)),
			})
		}
		out.Levels = append(out.Levels, l)
	}
	return out
}

// dagText outputs DAG in styled text format.
func dagText(r *output.Renderer, graph GraphQuerier, levels [][]string) {
	styles := r.Styles()

	r.Header(1, "Dependency Graph")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, node := range level {
			r.Printf("  %s\n", styles.ModelPath.Render(node))
			if deps := graph.Dependencies(node); len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if children := graph.Dependents(node); len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d nodes, %d dependencies", graph.NodeCount(), graph.EdgeCount())))
}

// dagMarkdown outputs DAG in markdown format.
func dagMarkdown(r *output.Renderer, graph GraphQuerier, levels [][]string) {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")

	for i, level := range levels {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Level %d", i)))
		for _, node := range level {
			r.Printf("- %s\n", node)
			if deps := graph.Dependencies(node); len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if children := graph.Dependents(node); len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Nodes", fmt.Sprintf("%d", graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", graph.EdgeCount())))
}

func dagTable(r *output.Renderer, graph GraphQuerier, levels [][]string) {
	var rows [][]string
	for i, level := range levels {
		for _, node := range level {
			rows = append(rows, []string{
				fmt.Sprintf("%d", i),
				node,
				strings.Join(graph.Dependencies(node), ", "),
				strings.Join(graph.Dependents(node), ", "),
			})
		}
	}
	r.Table([]string{"Level", "Node", "Depends On", "Used By"}, rows)
}
