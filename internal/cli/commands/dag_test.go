package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	clitest "github.com/leapstack-labs/leapcheck/internal/cli/testutil"
	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/internal/dag"
)

type fakeGraph struct {
	parents  map[string][]string
	children map[string][]string
}

func (g fakeGraph) Dependencies(id string) []string { return g.parents[id] }
func (g fakeGraph) Dependents(id string) []string   { return g.children[id] }
func (g fakeGraph) NodeCount() int                  { return 3 }
func (g fakeGraph) EdgeCount() int                  { return 2 }

var shopGraph = fakeGraph{
	parents:  map[string][]string{"stg_orders": {"raw_orders"}, "fct_revenue": {"stg_orders"}},
	children: map[string][]string{"raw_orders": {"stg_orders"}, "stg_orders": {"fct_revenue"}},
}

var shopLevels = [][]string{{"raw_orders"}, {"stg_orders"}, {"fct_revenue"}}

func TestNewDAGCommand(t *testing.T) {
	cmd := NewDAGCommand()

	if cmd.Use != "dag" {
		t.Errorf("Use = %q, want %q", cmd.Use, "dag")
	}
	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}
	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}
	if cmd.Example == "" {
		t.Error("Example should not be empty")
	}
}

func TestDAGMarkdown(t *testing.T) {
	tr := clitest.NewTestRenderer(output.ModeAuto)
	dagMarkdown(tr.Renderer, shopGraph, shopLevels)

	out := tr.Output()
	clitest.AssertNoANSI(t, out)
	clitest.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Dependency Graph")
	assert.Contains(t, out, "## Level 1")
	assert.Contains(t, out, "- stg_orders\n  - depends on: raw_orders\n  - used by: fct_revenue")
	assert.Contains(t, out, "- **Total Dependencies:** 2")
}

func TestDAGText(t *testing.T) {
	tr := clitest.NewTestRenderer(output.ModeText)
	dagText(tr.Renderer, shopGraph, shopLevels)

	out := tr.Output()
	clitest.AssertNoANSI(t, out)
	assert.Contains(t, out, "Level 2:")
	assert.Contains(t, out, "    depends on: stg_orders")
	assert.Contains(t, out, "Total: 3 nodes, 2 dependencies")
}

func TestDAGTable(t *testing.T) {
	tr := clitest.NewTestRenderer(output.ModeTable)
	dagTable(tr.Renderer, shopGraph, shopLevels)

	out := tr.Output()
	assert.Contains(t, out, "fct_revenue")
	assert.Contains(t, out, "DEPENDS ON")
}

func TestDAGOutput_JSONShape(t *testing.T) {
	b, err := json.Marshal(DAGOutput{
		Order:  []string{"a"},
		Roots:  []string{"a"},
		Levels: []DAGLevel{{Level: 0, Nodes: []DAGNode{{Name: "a", DependsOn: []string{}, UsedBy: []string{}}}}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"order":["a"],"roots":["a"],"levels":[{"level":0,"nodes":[{"name":"a","depends_on":[],"used_by":[]}]}],"total_nodes":0,"total_edges":0}`, string(b))
}

func TestBuildDAGOutput(t *testing.T) {
	g := dag.NewGraph()
	for _, id := range []string{"raw_orders", "raw_users", "stg_orders"} {
		g.AddNode(id, nil)
	}
	require.NoError(t, g.AddEdge("raw_orders", "stg_orders"))

	out := buildDAGOutput(&compile.Result{
		Graph:  g,
		Order:  []string{"raw_orders", "raw_users", "stg_orders"},
		Levels: [][]string{{"raw_orders", "raw_users"}, {"stg_orders"}},
	})

	assert.Equal(t, []string{"raw_orders", "raw_users"}, out.Roots)
	assert.Equal(t, 3, out.TotalNodes)
	assert.Equal(t, 1, out.TotalEdges)
	assert.Empty(t, out.CycleNodes)
	require.Len(t, out.Levels, 2)
	assert.Equal(t, []string{"raw_orders"}, out.Levels[1].Nodes[0].DependsOn)
	assert.Equal(t, []string{}, out.Levels[0].Nodes[1].UsedBy)
}
