// Package dag builds the dependency graph of a project's nodes.
// It supports cycle detection, deterministic topological ordering,
// execution levels and upstream/downstream queries.
//
// Traversals are iterative so very deep pipelines cannot exhaust the stack.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Node represents a node in the DAG.
type Node struct {
	// ID is the node name.
	ID string
	// Data holds the caller's node value.
	Data any
}

// Graph is a directed graph where an edge parent -> child means the child
// depends on the parent. Adjacency lists are kept sorted.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// CycleError reports a dependency cycle. Path starts and ends with the same
// node and is rotated so it starts at the smallest name; each element
// depends on the next.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "circular dependency detected: " + strings.Join(e.Path, " -> ")
}

// AddNode adds a node to the graph, replacing the data of an existing one.
func (g *Graph) AddNode(id string, data any) {
	if n, exists := g.nodes[id]; exists {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
	g.edges[id] = nil
	g.parents[id] = nil
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	g.edges[parentID] = insertSorted(g.edges[parentID], childID)
	g.parents[childID] = insertSorted(g.parents[childID], parentID)
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Dependencies returns the direct dependencies of a node, sorted.
func (g *Graph) Dependencies(id string) []string {
	return slices.Clone(g.parents[id])
}

// Dependents returns the direct dependents of a node, sorted.
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.edges[id])
}

// IDs returns all node IDs, sorted.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle reports whether the graph contains a cycle, along with its path.
func (g *Graph) HasCycle() (bool, []string) {
	var cycle *CycleError
	if _, err := g.TopologicalSort(); errors.As(err, &cycle) {
		return true, cycle.Path
	}
	return false, nil
}

type mark uint8

const (
	unvisited mark = iota
	inProgress
	done
)

// TopologicalSort returns nodes with dependencies before dependents.
// Roots are visited in sorted order and dependencies in sorted order, so the
// result is deterministic. A back-edge to an in-progress node yields a
// *CycleError and no order.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	type frame struct {
		id   string
		next int
	}

	marks := make(map[string]mark, len(g.nodes))
	order := make([]*Node, 0, len(g.nodes))

	for _, root := range g.IDs() {
		if marks[root] != unvisited {
			continue
		}

		marks[root] = inProgress
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.parents[top.id]

			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++

				switch marks[dep] {
				case unvisited:
					marks[dep] = inProgress
					stack = append(stack, frame{id: dep})
				case inProgress:
					path := make([]string, 0, len(stack)+1)
					for i := len(stack) - 1; i >= 0; i-- {
						if stack[i].id == dep {
							for _, f := range stack[i:] {
								path = append(path, f.id)
							}
							break
						}
					}
					return nil, &CycleError{Path: rotate(path)}
				}
				continue
			}

			marks[top.id] = done
			order = append(order, g.nodes[top.id])
			stack = stack[:len(stack)-1]
		}
	}

	return order, nil
}

// rotate closes a cycle and starts it at its smallest member.
func rotate(cycle []string) []string {
	if len(cycle) == 0 {
		return nil
	}
	start := 0
	for i, id := range cycle {
		if id < cycle[start] {
			start = i
		}
	}
	out := make([]string, 0, len(cycle)+1)
	out = append(out, cycle[start:]...)
	out = append(out, cycle[:start]...)
	return append(out, out[0])
}

// GetExecutionLevels returns nodes grouped by execution level.
// Nodes at level N can be processed in parallel after level N-1 completes.
// Level 0 contains nodes with no dependencies.
func (g *Graph) GetExecutionLevels() ([][]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	level := make(map[string]int, len(order))
	var levels [][]string
	for _, n := range order {
		l := 0
		for _, dep := range g.parents[n.ID] {
			l = max(l, level[dep]+1)
		}
		level[n.ID] = l
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], n.ID)
	}

	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// GetAffectedNodes returns the given nodes plus all their transitive
// dependents, sorted. Unknown IDs are ignored.
func (g *Graph) GetAffectedNodes(changedIDs []string) []string {
	var start []string
	for _, id := range changedIDs {
		if _, exists := g.nodes[id]; exists {
			start = append(start, id)
		}
	}
	return g.reach(start, g.edges, true)
}

// GetUpstreamNodes returns every transitive dependency of a node, sorted.
func (g *Graph) GetUpstreamNodes(id string) []string {
	return g.reach([]string{id}, g.parents, false)
}

// GetDownstreamNodes returns every transitive dependent of a node, sorted.
func (g *Graph) GetDownstreamNodes(id string) []string {
	return g.reach([]string{id}, g.edges, false)
}

// NearestUpstream returns the closest transitive dependency of id for which
// match reports true. Ties at the same distance resolve to the smallest name.
func (g *Graph) NearestUpstream(id string, match func(string) bool) (string, bool) {
	seen := map[string]bool{id: true}
	frontier := []string{id}

	for len(frontier) > 0 {
		var next []string
		for _, cur := range frontier {
			for _, dep := range g.parents[cur] {
				if !seen[dep] {
					seen[dep] = true
					next = append(next, dep)
				}
			}
		}
		sort.Strings(next)
		for _, dep := range next {
			if match(dep) {
				return dep, true
			}
		}
		frontier = next
	}
	return "", false
}

// reach walks adj from start. includeStart keeps the start nodes in the result.
func (g *Graph) reach(start []string, adj map[string][]string, includeStart bool) []string {
	seen := make(map[string]bool)
	queue := make([]string, 0, len(start))
	for _, id := range start {
		if !seen[id] {
			seen[id] = true
			queue = append(queue, id)
		}
	}

	for i := 0; i < len(queue); i++ {
		for _, next := range adj[queue[i]] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	if !includeStart {
		for _, id := range start {
			delete(seen, id)
		}
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// GetRoots returns nodes with no dependencies.
func (g *Graph) GetRoots() []string {
	var roots []string
	for _, id := range g.IDs() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Subgraph returns a new graph containing only the specified nodes and the
// edges between them.
func (g *Graph) Subgraph(nodeIDs []string) *Graph {
	sub := NewGraph()
	for _, id := range nodeIDs {
		if node, exists := g.nodes[id]; exists {
			sub.AddNode(id, node.Data)
		}
	}
	for id := range sub.nodes {
		for _, childID := range g.edges[id] {
			if _, ok := sub.nodes[childID]; ok {
				_ = sub.AddEdge(id, childID)
			}
		}
	}
	return sub
}

func insertSorted(list []string, s string) []string {
	i, found := slices.BinarySearch(list, s)
	if found {
		return list
	}
	return slices.Insert(list, i, s)
}
