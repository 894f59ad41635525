package dag

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build creates a graph from "dependent: dependency" pairs.
func build(t *testing.T, ids []string, deps map[string][]string) *Graph {
	t.Helper()
	g := NewGraph()
	for _, id := range ids {
		g.AddNode(id, nil)
	}
	for child, parents := range deps {
		for _, p := range parents {
			require.NoError(t, g.AddEdge(p, child))
		}
	}
	return g
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, map[string][]string{
		"b": {"a"},
		"c": {"b", "a"},
	})

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, []string{"a", "b"}, g.Dependencies("c"))
	assert.Equal(t, []string{"b", "c"}, g.Dependents("a"))

	// Duplicate edges are ignored.
	require.NoError(t, g.AddEdge("a", "b"))
	assert.Equal(t, 3, g.EdgeCount())
}

func TestGraph_AddEdge_Errors(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	assert.ErrorContains(t, g.AddEdge("a", "missing"), `child node "missing" does not exist`)
	assert.ErrorContains(t, g.AddEdge("missing", "a"), `parent node "missing" does not exist`)
	assert.ErrorContains(t, g.AddEdge("a", "a"), "self-loop detected: a")
}

func TestGraph_AddNode_UpdatesData(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", 1)
	g.AddNode("a", 2)

	n, ok := g.GetNode("a")
	require.True(t, ok)
	assert.Equal(t, 2, n.Data)
	assert.Equal(t, 1, g.NodeCount())
}

func TestGraph_TopologicalSort(t *testing.T) {
	g := build(t, []string{"fct", "stg_b", "stg_a", "dim"}, map[string][]string{
		"fct":   {"stg_a", "stg_b", "dim"},
		"stg_b": {"stg_a"},
	})

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"dim", "stg_a", "stg_b", "fct"}, ids(order))
}

func TestGraph_TopologicalSort_Deterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		g := build(t, []string{"c", "b", "a", "d"}, map[string][]string{"d": {"c"}})
		order, err := g.TopologicalSort()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids(order))
	}
}

func TestGraph_Cycle(t *testing.T) {
	tests := []struct {
		name string
		deps map[string][]string
		want []string
	}{
		{
			name: "three node cycle",
			deps: map[string][]string{"A": {"B"}, "B": {"C"}, "C": {"A"}},
			want: []string{"A", "B", "C", "A"},
		},
		{
			name: "two node cycle",
			deps: map[string][]string{"x": {"y"}, "y": {"x"}},
			want: []string{"x", "y", "x"},
		},
		{
			name: "cycle below an acyclic prefix",
			deps: map[string][]string{"a": {"m"}, "m": {"n"}, "n": {"m"}},
			want: []string{"m", "n", "m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var nodes []string
			for id := range tt.deps {
				nodes = append(nodes, id)
			}
			g := build(t, nodes, tt.deps)

			order, err := g.TopologicalSort()
			assert.Nil(t, order)

			var cycle *CycleError
			require.ErrorAs(t, err, &cycle)
			assert.Equal(t, tt.want, cycle.Path)

			has, path := g.HasCycle()
			assert.True(t, has)
			assert.Equal(t, tt.want, path)

			_, err = g.GetExecutionLevels()
			assert.Error(t, err)
		})
	}
}

func TestCycleError_Message(t *testing.T) {
	err := &CycleError{Path: []string{"a", "b", "c", "a"}}
	assert.Equal(t, "circular dependency detected: a -> b -> c -> a", err.Error())
}

func TestGraph_HasCycle_NoCycle(t *testing.T) {
	g := build(t, []string{"a", "b"}, map[string][]string{"b": {"a"}})
	has, path := g.HasCycle()
	assert.False(t, has)
	assert.Nil(t, path)
}

func TestGraph_DeepChain(t *testing.T) {
	const depth = 50000
	g := NewGraph()
	for i := 0; i < depth; i++ {
		g.AddNode(fmt.Sprintf("n%06d", i), nil)
	}
	for i := 1; i < depth; i++ {
		require.NoError(t, g.AddEdge(fmt.Sprintf("n%06d", i), fmt.Sprintf("n%06d", i-1)))
	}

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, order, depth)
	assert.Equal(t, fmt.Sprintf("n%06d", depth-1), order[0].ID)
	assert.Equal(t, "n000000", order[depth-1].ID)
}

func TestGraph_GetExecutionLevels(t *testing.T) {
	g := build(t, []string{"a", "b", "c", "d", "e"}, map[string][]string{
		"c": {"a", "b"},
		"d": {"c"},
		"e": {"a"},
	})

	levels, err := g.GetExecutionLevels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "e"}, {"d"}}, levels)
}

func TestGraph_GetExecutionLevels_Empty(t *testing.T) {
	levels, err := NewGraph().GetExecutionLevels()
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestGraph_Reachability(t *testing.T) {
	g := build(t, []string{"a", "b", "c", "d", "x"}, map[string][]string{
		"b": {"a"},
		"c": {"b"},
		"d": {"a"},
	})

	assert.Equal(t, []string{"a", "b", "c", "d"}, g.GetAffectedNodes([]string{"a", "missing"}))
	assert.Equal(t, []string{"b", "c"}, g.GetAffectedNodes([]string{"b"}))
	assert.Equal(t, []string{"a", "b"}, g.GetUpstreamNodes("c"))
	assert.Equal(t, []string{"b", "c", "d"}, g.GetDownstreamNodes("a"))
	assert.Empty(t, g.GetUpstreamNodes("x"))
	assert.Equal(t, []string{"a", "x"}, g.GetRoots())
}

func TestGraph_NearestUpstream(t *testing.T) {
	g := build(t, []string{"src", "mid", "other", "leaf"}, map[string][]string{
		"mid":  {"src"},
		"leaf": {"mid", "other"},
	})
	failed := map[string]bool{"src": true, "other": true}

	got, ok := g.NearestUpstream("leaf", func(id string) bool { return failed[id] })
	require.True(t, ok)
	assert.Equal(t, "other", got)

	got, ok = g.NearestUpstream("mid", func(id string) bool { return failed[id] })
	require.True(t, ok)
	assert.Equal(t, "src", got)

	_, ok = g.NearestUpstream("src", func(string) bool { return true })
	assert.False(t, ok)
}

func TestGraph_Subgraph(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, map[string][]string{
		"b": {"a"},
		"c": {"b"},
	})

	sub := g.Subgraph([]string{"a", "b", "missing"})
	assert.Equal(t, 2, sub.NodeCount())
	assert.Equal(t, 1, sub.EdgeCount())
	assert.Equal(t, []string{"a"}, sub.Dependencies("b"))
}
