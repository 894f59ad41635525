// Package propagate walks the dependency graph in topological order, plans
// every node against the schemas its upstream nodes published, reconciles
// the inferred schema with the declared one and publishes it to the catalog.
//
// Each node moves through Pending, Planned, Reconciled and Published, or
// ends Failed (planning failed or a fatal mismatch) or Blocked (an upstream
// node failed). Only a node's own publish step writes its catalog entry.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/catalog"
	"github.com/leapstack-labs/leapcheck/internal/dag"
	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// State is the propagation state of one node.
type State int

// Node states.
const (
	StatePending State = iota
	StatePlanned
	StateReconciled
	StatePublished
	StateFailed
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StatePlanned:
		return "planned"
	case StateReconciled:
		return "reconciled"
	case StatePublished:
		return "published"
	case StateFailed:
		return "failed"
	case StateBlocked:
		return "blocked"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// PlanError reports a node the planner rejected.
type PlanError struct {
	Node string
	Err  error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("planning %s: %v", e.Node, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// Node is one graph node to propagate.
type Node struct {
	Name string
	// SQL is the qualified SQL body. Nodes without SQL only declare a
	// schema, which must already be seeded in the catalog.
	SQL      string
	Declared []core.TypedColumn
	// Externals lists relations the node reads from outside the project.
	Externals []string
	// Err marks a node that failed before propagation (a structural
	// error). It is reported Failed without planning and without a
	// diagnostic of its own.
	Err error
}

// Outcome is the result of propagating one node.
type Outcome struct {
	Node       string
	State      State
	Plan       *planner.Plan
	Inferred   []core.TypedColumn
	Mismatches []Mismatch
	// BlockedBy names the nearest failed upstream node of a Blocked node.
	BlockedBy string
	Err       error
	Duration  time.Duration
	// Diagnostics are the planning, reconciliation and blocking findings.
	Diagnostics []analysis.Diagnostic
}

// Options configures an Engine.
type Options struct {
	// Workers bounds the nodes planned concurrently within one level.
	// Values below 1 mean sequential.
	Workers int
	// PlanTimeout bounds each planner call. Zero means no limit.
	PlanTimeout time.Duration
	// Overrides decides which reconciliation codes are fatal.
	Overrides analysis.Overrides
	Logger    *slog.Logger
}

// Engine propagates schemas through a graph.
type Engine struct {
	catalog *catalog.Catalog
	planner planner.Planner
	opts    Options
	logger  *slog.Logger
}

// New creates an engine publishing to cat.
func New(cat *catalog.Catalog, p planner.Planner, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{catalog: cat, planner: p, opts: opts, logger: logger}
}

// Result is the outcome of a propagation pass.
type Result struct {
	// Order is the topological order the nodes were processed in.
	Order    []string
	Levels   [][]string
	Outcomes map[string]*Outcome
}

// Diagnostics returns the diagnostics of every node, sorted.
func (r *Result) Diagnostics() []analysis.Diagnostic {
	var out []analysis.Diagnostic
	for _, id := range r.Order {
		out = append(out, r.Outcomes[id].Diagnostics...)
	}
	analysis.Sort(out)
	return out
}

// Plans returns the plans of the nodes that were planned, failed
// reconciliation included.
func (r *Result) Plans() map[string]*planner.Plan {
	out := make(map[string]*planner.Plan)
	for id, o := range r.Outcomes {
		if o.Plan != nil {
			out[id] = o.Plan
		}
	}
	return out
}

// Run propagates every node of graph. nodes maps graph IDs to their
// definitions; a graph node without a definition is treated as declared-only.
// A cycle is returned as *dag.CycleError. Node failures are reported in the
// outcomes, never as an error; only cancellation of ctx aborts the pass.
func (e *Engine) Run(ctx context.Context, graph *dag.Graph, nodes map[string]*Node) (*Result, error) {
	levels, err := graph.GetExecutionLevels()
	if err != nil {
		return nil, err
	}

	res := &Result{Levels: levels, Outcomes: make(map[string]*Outcome, graph.NodeCount())}
	failed := func(id string) bool {
		o, ok := res.Outcomes[id]
		return ok && o.State == StateFailed
	}
	// blocked holds every node downstream of a failure, filled after each
	// level. Dependents always sit on a later level.
	blocked := make(map[string]bool)

	for depth, level := range levels {
		e.logger.Debug("propagating level",
			slog.Int("level", depth), slog.Int("nodes", len(level)), slog.Int("workers", e.opts.Workers))

		outcomes := make([]*Outcome, len(level))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Workers)

		for i, id := range level {
			res.Order = append(res.Order, id)

			if blocked[id] {
				root, _ := graph.NearestUpstream(id, failed)
				outcomes[i] = blockedOutcome(id, root)
				e.logger.Debug("node blocked", slog.String("node", id), slog.String("upstream", root))
				continue
			}

			node := nodes[id]
			g.Go(func() error {
				o, err := e.propagate(gctx, id, node)
				if err != nil {
					return err
				}
				outcomes[i] = o
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		var failures []string
		for i, id := range level {
			res.Outcomes[id] = outcomes[i]
			if outcomes[i].State == StateFailed {
				failures = append(failures, id)
			}
		}
		for _, id := range graph.GetAffectedNodes(failures) {
			if _, done := res.Outcomes[id]; !done {
				blocked[id] = true
			}
		}
	}
	return res, nil
}

func blockedOutcome(id, root string) *Outcome {
	d := analysis.Newf(analysis.CodeBlocked, id, "", "blocked by upstream failure of %s", root).
		WithHint("Fix " + root + " first")
	return &Outcome{Node: id, State: StateBlocked, BlockedBy: root, Diagnostics: []analysis.Diagnostic{d}}
}

// propagate runs one node through its state machine. The returned error is
// only set when ctx was canceled.
func (e *Engine) propagate(ctx context.Context, id string, node *Node) (*Outcome, error) {
	start := time.Now()
	o := &Outcome{Node: id, State: StatePending}
	defer func() { o.Duration = time.Since(start) }()

	if node != nil && node.Err != nil {
		o.State = StateFailed
		o.Err = node.Err
		return o, nil
	}

	if node == nil || node.SQL == "" {
		cols, ok := e.catalog.Get(id)
		if !ok && node != nil {
			cols = node.Declared
		}
		o.Inferred = cols
		o.State = StatePublished
		return o, nil
	}

	// Planned
	plan, err := e.plan(ctx, node)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.State = StateFailed
		o.Err = &PlanError{Node: id, Err: err}
		o.Diagnostics = append(o.Diagnostics, planDiagnostic(id, err, e.opts.PlanTimeout))
		e.logger.Debug("planning failed", slog.String("node", id), slog.String("error", err.Error()))
		return o, nil
	}
	o.Plan = plan
	o.Inferred = plan.Columns
	o.State = StatePlanned
	e.logger.Debug("node planned", slog.String("node", id), slog.Int("columns", len(plan.Columns)))

	// Reconciled
	if len(node.Declared) > 0 {
		o.Mismatches = Reconcile(node.Declared, plan.Columns)
		for _, m := range o.Mismatches {
			sev := e.opts.Overrides.Severity(m.Kind.Code())
			if sev == core.SeverityOff {
				continue
			}
			d := m.Diagnostic(id)
			d.Severity = sev
			o.Diagnostics = append(o.Diagnostics, d)
		}
	}
	fatal := Fatal(o.Mismatches, e.opts.Overrides) > 0
	o.State = StateReconciled

	// Published, even after a fatal mismatch: downstream analysis sees the
	// schema the SQL really produces.
	if err := e.catalog.Put(id, plan.Columns); err != nil {
		o.State = StateFailed
		o.Err = err
		o.Diagnostics = append(o.Diagnostics,
			analysis.Newf(analysis.CodePlanFailed, id, "", "cannot publish schema: %v", err))
		return o, nil
	}
	o.State = StatePublished
	if fatal {
		o.State = StateFailed
	}
	e.logger.Debug("node published",
		slog.String("node", id),
		slog.String("state", o.State.String()),
		slog.Int("mismatches", len(o.Mismatches)),
		slog.Duration("duration", time.Since(start)))
	return o, nil
}

func (e *Engine) plan(ctx context.Context, node *Node) (*planner.Plan, error) {
	if e.opts.PlanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.PlanTimeout)
		defer cancel()
	}
	return e.planner.Plan(ctx, planner.Request{
		Node:      node.Name,
		SQL:       node.SQL,
		Resolver:  e.catalog.Resolver(),
		Externals: node.Externals,
	})
}

func planDiagnostic(id string, err error, timeout time.Duration) analysis.Diagnostic {
	if errors.Is(err, context.DeadlineExceeded) {
		return analysis.Newf(analysis.CodePlanFailed, id, "", "planning timed out after %s", timeout)
	}
	d := analysis.Newf(analysis.CodePlanFailed, id, "", "SQL could not be planned: %v", err)
	switch {
	case errors.Is(err, planner.ErrUnknownTable):
		d.Hint = "Declare the relation as a source, a model or an external table"
	case errors.Is(err, planner.ErrUnknownColumn):
		d.Hint = "Check the column against the upstream node's schema"
	case errors.Is(err, planner.ErrAmbiguousColumn):
		d.Hint = "Qualify the column with its table alias"
	}
	return d
}
