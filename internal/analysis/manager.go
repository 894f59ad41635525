package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/leapcheck/internal/dag"
	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Pass names.
const (
	PassTypeInference    = "type_inference"
	PassNullability      = "nullability"
	PassJoinKeys         = "join_keys"
	PassUnusedColumns    = "unused_columns"
	PassCrossModel       = "cross_model"
	PassDescriptionDrift = "description_drift"
	PassClassification   = "classification"
)

// Pass is the common part of every analysis pass.
type Pass interface {
	Name() string
	Description() string
}

// ModelPass inspects one planned node at a time.
type ModelPass interface {
	Pass
	RunModel(node string, plan *planner.Plan, ctx *Context) []Diagnostic
}

// ProjectPass inspects the whole project at once.
type ProjectPass interface {
	Pass
	RunProject(ctx *Context) []Diagnostic
}

// Context is everything a pass may read. Passes must treat it as read-only.
type Context struct {
	// Order lists the planned nodes in topological order.
	Order []string
	// Plans holds the plan of every node in Order.
	Plans map[string]*planner.Plan
	// Nodes holds every project node, including sources, keyed by name.
	Nodes map[string]*core.Model
	// Catalog is the final schema of every catalog entry.
	Catalog map[string][]core.TypedColumn
	// Graph is the dependency graph of the project's non-source nodes.
	Graph *dag.Graph

	folded map[string]*core.Model
}

// Node returns the project node called name, matched case-insensitively.
func (c *Context) Node(name string) (*core.Model, bool) {
	if n, ok := c.Nodes[name]; ok {
		return n, true
	}
	if c.folded == nil {
		c.folded = make(map[string]*core.Model, len(c.Nodes))
		for k, n := range c.Nodes {
			c.folded[strings.ToLower(k)] = n
		}
	}
	n, ok := c.folded[strings.ToLower(name)]
	return n, ok
}

// DeclaredColumn returns the declared column col of node.
func (c *Context) DeclaredColumn(node, col string) (core.TypedColumn, bool) {
	n, ok := c.Node(node)
	if !ok {
		return core.TypedColumn{}, false
	}
	return core.FindColumn(n.Columns, col)
}

// Dependents returns the direct dependents of node.
func (c *Context) Dependents(node string) []string {
	if c.Graph == nil {
		return nil
	}
	return c.Graph.Dependents(node)
}

// ---------- Registry ----------

// DefaultPasses returns a fresh instance of every built-in pass.
func DefaultPasses() []Pass {
	return []Pass{
		TypeInference{},
		Nullability{},
		JoinKeys{},
		UnusedColumns{},
		CrossModel{},
		DescriptionDrift{},
		Classification{},
	}
}

// PassNames returns the names of the built-in passes, sorted.
func PassNames() []string {
	var names []string
	for _, p := range DefaultPasses() {
		names = append(names, p.Name())
	}
	sort.Strings(names)
	return names
}

// ---------- Manager ----------

// Options configures a Manager.
type Options struct {
	// Passes restricts the run to the named passes. Empty runs all.
	Passes []string
	// Overrides replaces default severities.
	Overrides Overrides
	Logger    *slog.Logger
}

// Manager runs passes and applies severity overrides to their output.
type Manager struct {
	model     []ModelPass
	project   []ProjectPass
	overrides Overrides
	logger    *slog.Logger
}

// NewManager builds a manager over the built-in passes. An unknown pass
// name in opts.Passes is an error.
func NewManager(opts Options) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := opts.Overrides.Validate(); err != nil {
		return nil, err
	}

	enabled := make(map[string]bool, len(opts.Passes))
	for _, name := range opts.Passes {
		enabled[strings.ToLower(strings.TrimSpace(name))] = true
	}
	known := make(map[string]bool)

	m := &Manager{overrides: opts.Overrides, logger: logger}
	for _, p := range DefaultPasses() {
		known[p.Name()] = true
		if len(enabled) > 0 && !enabled[p.Name()] {
			continue
		}
		m.Register(p)
	}
	for name := range enabled {
		if !known[name] {
			return nil, fmt.Errorf("unknown analysis pass %q (valid passes: %s)", name, strings.Join(PassNames(), ", "))
		}
	}
	return m, nil
}

// Register adds a pass. A pass may be both a ModelPass and a ProjectPass.
func (m *Manager) Register(p Pass) {
	if mp, ok := p.(ModelPass); ok {
		m.model = append(m.model, mp)
	}
	if pp, ok := p.(ProjectPass); ok {
		m.project = append(m.project, pp)
	}
}

// Passes returns the names of the registered passes in run order.
func (m *Manager) Passes() []string {
	var names []string
	seen := make(map[string]bool)
	for _, p := range m.model {
		if !seen[p.Name()] {
			seen[p.Name()] = true
			names = append(names, p.Name())
		}
	}
	for _, p := range m.project {
		if !seen[p.Name()] {
			seen[p.Name()] = true
			names = append(names, p.Name())
		}
	}
	return names
}

// Run executes every model pass over each planned node in order, then every
// project pass. The result has overrides applied and is sorted.
func (m *Manager) Run(ctx context.Context, actx *Context) ([]Diagnostic, error) {
	var out []Diagnostic

	for _, node := range actx.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plan, ok := actx.Plans[node]
		if !ok || plan == nil {
			continue
		}
		for _, p := range m.model {
			out = append(out, stamp(p.RunModel(node, plan, actx), p.Name(), node)...)
		}
	}

	for _, p := range m.project {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		ds := p.RunProject(actx)
		m.logger.Debug("project pass finished",
			slog.String("pass", p.Name()),
			slog.Int("diagnostics", len(ds)),
			slog.Duration("duration", time.Since(start)))
		out = append(out, stamp(ds, p.Name(), "")...)
	}

	out = m.overrides.Apply(out)
	Sort(out)
	return out, nil
}

func stamp(ds []Diagnostic, pass, node string) []Diagnostic {
	for i := range ds {
		if ds[i].Pass == "" {
			ds[i].Pass = pass
		}
		if ds[i].Node == "" {
			ds[i].Node = node
		}
	}
	return ds
}
