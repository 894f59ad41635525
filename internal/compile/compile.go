// Package compile runs one compile pass over a loaded project: dependency
// extraction and categorization, graph construction, qualification, catalog
// seeding, schema propagation and the analysis passes.
package compile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/catalog"
	"github.com/leapstack-labs/leapcheck/internal/dag"
	"github.com/leapstack-labs/leapcheck/internal/extract"
	"github.com/leapstack-labs/leapcheck/internal/loader"
	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/internal/propagate"
	"github.com/leapstack-labs/leapcheck/internal/qualify"
	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/format"
)

// Seeder looks up the schemas of relations that live outside the project.
type Seeder interface {
	Seed(ctx context.Context, relations []string) (map[string][]core.TypedColumn, error)
}

// Options configures a compile pass.
type Options struct {
	DefaultDatabase string
	// ExternalTables are relations known to exist outside the project.
	// They are not reported as undeclared.
	ExternalTables []string
	Bans           *extract.Bans

	// Planner defaults to the built-in static planner.
	Planner planner.Planner
	// Seeder, when set, supplies schemas for external relations and for
	// sources without declared columns.
	Seeder Seeder

	Workers     int
	PlanTimeout time.Duration

	Overrides analysis.Overrides
	// Strict makes every reconciliation mismatch fatal.
	Strict bool
	Passes []string

	Logger *slog.Logger
}

// node is the per-pass view of one graph node.
type node struct {
	model     *core.Model
	stmt      *core.SelectStmt
	qualified string
	externals []string
	err       error
}

// Compile runs a full compile pass. Problems with the project become
// diagnostics; the returned error is reserved for configuration and I/O
// failures and for cancellation of ctx.
func Compile(ctx context.Context, project *loader.Project, opts Options) (*Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	overrides := opts.Overrides
	if opts.Strict {
		overrides = overrides.Strict()
	}
	if err := overrides.Validate(); err != nil {
		return nil, err
	}
	manager, err := analysis.NewManager(analysis.Options{Passes: opts.Passes, Overrides: overrides, Logger: logger})
	if err != nil {
		return nil, err
	}
	bans := extract.DefaultBans()
	if opts.Bans != nil {
		bans = *opts.Bans
	}
	p := opts.Planner
	if p == nil {
		p = planner.NewStatic()
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Nodes:     make(map[string]*core.Model, len(project.Nodes)),
		Qualified: make(map[string]string),
		States:    make(map[string]propagate.State),
		Plans:     make(map[string]*planner.Plan),
		Lineage:   make(map[string][]planner.Edge),
		Origins:   make(map[string]string),
	}
	logger = logger.With(slog.String("run_id", res.RunID))
	logger.Debug("compile started", slog.Int("nodes", len(project.Nodes)))

	var diags []analysis.Diagnostic
	for _, pr := range project.Problems {
		diags = append(diags, analysis.New(analysis.CodeParse, pr.Name(), "", pr.Error()))
	}
	for _, dup := range project.Duplicates {
		diags = append(diags, analysis.New(analysis.CodeDuplicateNode, dup.Name, "", dup.Error()).
			WithHint("Rename one of the files or set a distinct name in its frontmatter"))
	}

	// Model files that failed to load stay in the graph as failed nodes, so
	// their dependents are blocked rather than read as external relations.
	all := append([]*core.Model(nil), project.Nodes...)
	broken := make(map[string]error)
	for _, pr := range project.Problems {
		m, ok := pr.Placeholder()
		if !ok {
			continue
		}
		if _, exists := project.Node(m.Name); exists {
			continue
		}
		if _, seen := broken[m.Name]; seen {
			continue
		}
		broken[m.Name] = pr
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	// Extract and categorize
	idx := extract.NewIndex(all, opts.ExternalTables)
	graph := dag.NewGraph()
	nodes := make(map[string]*node)
	wantSeed := make(map[string]bool)

	for _, m := range all {
		res.Nodes[m.Name] = m
		if m.Kind == core.KindSource {
			if !m.HasDeclaredSchema() {
				wantSeed[m.QualifiedName()] = true
			}
			continue
		}
		graph.AddNode(m.Name, m)
		nodes[m.Name] = &node{model: m}
	}

	edges := make(map[string][]string)
	for _, m := range all {
		n, ok := nodes[m.Name]
		if !ok {
			continue
		}
		if err, ok := broken[m.Name]; ok {
			n.err = err
			continue
		}
		var deps []extract.Dependency
		if m.Kind.HasBody() {
			ex, err := extract.Extract(m.SQL, bans)
			if err != nil {
				n.err = err
				diags = append(diags, structural(m.Name, err))
				continue
			}
			n.stmt = ex.Stmt
			deps = idx.Categorize(m, ex.Relations)
			deps = append(deps, idx.CategorizeFunctions(m, append(ex.Functions, ex.TableFunctions...))...)
		} else {
			deps = idx.Categorize(m, m.DependsOn)
		}

		for _, d := range deps {
			switch d.Category {
			case extract.CategoryExternal:
				n.externals = append(n.externals, d.Name)
				if !d.Declared {
					diags = append(diags, analysis.Newf(analysis.CodeExternal, m.Name, "",
						"relation '%s' is not declared in the project", d.Name).
						WithHint("Declare it as a source, or list it under external_tables"))
				}
				wantSeed[d.Name] = true
			case extract.CategorySource:
				src, _ := idx.Lookup(d.Name)
				if !src.HasDeclaredSchema() {
					n.externals = append(n.externals, d.Name)
				}
			case extract.CategorySelf:
				logger.Debug("self reference dropped", slog.String("node", m.Name), slog.String("relation", d.Name))
			}
		}
		edges[m.Name] = extract.ModelTargets(deps)
	}
	for child, parents := range edges {
		for _, parent := range parents {
			if err := graph.AddEdge(parent, child); err != nil {
				return nil, fmt.Errorf("failed to add edge %s -> %s: %w", parent, child, err)
			}
		}
	}
	res.Graph = graph

	if _, err := graph.TopologicalSort(); err != nil {
		var cycle *dag.CycleError
		if !errors.As(err, &cycle) {
			return nil, err
		}
		res.Cycle = cycle.Path
		diags = append(diags, analysis.New(analysis.CodeCycle, "", "", cycle.Error()).
			WithHint("Break the cycle by removing one of the references"))
		res.Diagnostics = finish(overrides.Apply(diags))
		res.Duration = time.Since(start)
		logger.Debug("compile stopped on cycle", slog.String("cycle", strings.Join(cycle.Path, " -> ")))
		return res, nil
	}

	// Qualify
	targets := make(map[string]qualify.Target, len(all))
	for _, m := range all {
		targets[m.Name] = qualify.Target{Schema: m.Schema, Database: m.Database}
	}
	q := qualify.New(targets, opts.DefaultDatabase)
	for name, n := range nodes {
		if n.stmt == nil {
			continue
		}
		n.qualified = n.model.SQL
		if r := q.Qualify(n.stmt, name); r.Changed() {
			n.qualified = format.Format(n.stmt)
		}
		res.Qualified[name] = n.qualified
	}

	// Seed
	cat := catalog.New()
	seeds := make(map[string][]core.TypedColumn)
	for _, m := range project.Nodes {
		if m.Kind.HasBody() {
			if m.HasDeclaredSchema() {
				cat.Declare(m.Name, m.Columns)
			}
			continue
		}
		if m.Kind != core.KindSource || m.HasDeclaredSchema() {
			seeds[m.Name] = m.Columns
		}
	}
	if opts.Seeder != nil && len(wantSeed) > 0 {
		names := make([]string, 0, len(wantSeed))
		for name := range wantSeed {
			names = append(names, name)
		}
		sort.Strings(names)
		found, err := opts.Seeder.Seed(ctx, names)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect external relations: %w", err)
		}
		for name, cols := range found {
			if src, ok := idx.Lookup(name); ok && src.Kind == core.KindSource {
				name = src.Name
			}
			seeds[name] = cols
		}
		logger.Debug("seeded external relations", slog.Int("requested", len(names)), slog.Int("found", len(found)))
	}
	cat.Seed(seeds)
	for _, n := range nodes {
		n.externals = unseeded(cat, n.externals)
	}

	// Propagate
	pnodes := make(map[string]*propagate.Node, len(nodes))
	for name, n := range nodes {
		pnodes[name] = &propagate.Node{
			Name:      name,
			SQL:       n.qualified,
			Declared:  n.model.Columns,
			Externals: n.externals,
			Err:       n.err,
		}
	}
	engine := propagate.New(cat, p, propagate.Options{
		Workers:     opts.Workers,
		PlanTimeout: opts.PlanTimeout,
		Overrides:   overrides,
		Logger:      logger,
	})
	prop, err := engine.Run(ctx, graph, pnodes)
	if err != nil {
		return nil, err
	}

	res.Order = prop.Order
	res.Levels = prop.Levels
	for id, o := range prop.Outcomes {
		res.States[id] = o.State
	}
	res.Plans = prop.Plans()
	for id, plan := range res.Plans {
		res.Lineage[id] = plan.Lineage
	}
	res.Catalog = cat.Snapshot()
	for name := range res.Catalog {
		if o, ok := cat.Origin(name); ok {
			res.Origins[name] = o.String()
		}
	}
	diags = overrides.Apply(diags)
	diags = append(diags, prop.Diagnostics()...)

	// Analyze
	found, err := manager.Run(ctx, &analysis.Context{
		Order:   res.Order,
		Plans:   res.Plans,
		Nodes:   res.Nodes,
		Catalog: res.Catalog,
		Graph:   graph,
	})
	if err != nil {
		return nil, err
	}
	diags = append(diags, found...)

	res.Diagnostics = finish(diags)
	res.Duration = time.Since(start)
	logger.Debug("compile finished",
		slog.Int("diagnostics", len(res.Diagnostics)),
		slog.Bool("fatal", res.HasFatal()),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// structural converts an extraction error into its diagnostic.
func structural(name string, err error) analysis.Diagnostic {
	var ban *extract.BanError
	if errors.As(err, &ban) {
		hint := "Move the subquery into its own model and select from it"
		if ban.Construct == extract.ConstructCTE {
			hint = "Move each CTE into its own model and select from it"
		}
		return analysis.New(ban.Code(), name, "", ban.Error()).WithHint(hint)
	}
	return analysis.New(analysis.CodeParse, name, "", err.Error())
}

// unseeded drops relations the catalog now knows from the externals list,
// keeping order and removing duplicates.
func unseeded(cat *catalog.Catalog, names []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range names {
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := cat.Get(name); ok {
			continue
		}
		out = append(out, name)
	}
	return out
}

func finish(ds []analysis.Diagnostic) []analysis.Diagnostic {
	if ds == nil {
		ds = []analysis.Diagnostic{}
	}
	analysis.Sort(ds)
	return ds
}
