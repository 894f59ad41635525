package compile

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/dag"
	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/internal/propagate"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Result is the outcome of one compile pass.
type Result struct {
	RunID string `json:"run_id"`
	// Order is the topological order nodes were propagated in. It is empty
	// when the graph has a cycle.
	Order  []string   `json:"order"`
	Levels [][]string `json:"levels"`
	// Cycle is the dependency cycle that stopped the pass, if any.
	Cycle []string `json:"cycle,omitempty"`
	// Catalog is the final schema of every catalog entry.
	Catalog map[string][]core.TypedColumn `json:"catalog"`
	// Origins says how each catalog entry was written: seeded, declared
	// or published.
	Origins     map[string]string          `json:"origins"`
	Lineage     map[string][]planner.Edge  `json:"lineage"`
	Diagnostics []analysis.Diagnostic      `json:"diagnostics"`
	States      map[string]propagate.State `json:"states"`
	// Qualified holds the schema-qualified SQL of every extracted node.
	Qualified map[string]string `json:"qualified_sql"`

	Plans    map[string]*planner.Plan `json:"-"`
	Nodes    map[string]*core.Model   `json:"-"`
	Graph    *dag.Graph               `json:"-"`
	Duration time.Duration            `json:"-"`
}

// HasFatal reports whether anything blocks execution. Failed and blocked
// nodes count as well as fatal diagnostics and the cycle.
func (r *Result) HasFatal() bool {
	if analysis.HasFatal(r.Diagnostics) || len(r.Cycle) > 0 {
		return true
	}
	for _, s := range r.States {
		if s == propagate.StateFailed || s == propagate.StateBlocked {
			return true
		}
	}
	return false
}

// BySeverity groups diagnostics by severity, keeping their order.
func (r *Result) BySeverity() map[core.Severity][]analysis.Diagnostic {
	out := make(map[core.Severity][]analysis.Diagnostic)
	for _, d := range r.Diagnostics {
		out[d.Severity] = append(out[d.Severity], d)
	}
	return out
}

// BlockedNodes returns the nodes skipped because of an upstream failure,
// sorted.
func (r *Result) BlockedNodes() []string { return r.inState(propagate.StateBlocked) }

// FailedNodes returns the nodes that failed, sorted.
func (r *Result) FailedNodes() []string { return r.inState(propagate.StateFailed) }

func (r *Result) inState(s propagate.State) []string {
	var out []string
	for id, st := range r.States {
		if st == s {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Selection returns node and everything upstream of it in the graph, in
// propagation order. ok is false for an unknown node.
func (r *Result) Selection(node string) ([]string, bool) {
	if r.Graph == nil {
		return nil, false
	}
	var id string
	for _, candidate := range r.Graph.IDs() {
		if strings.EqualFold(candidate, node) {
			id = candidate
			break
		}
	}
	if id == "" {
		return nil, false
	}
	sub := r.Graph.Subgraph(append(r.Graph.GetUpstreamNodes(id), id))
	levels, err := sub.GetExecutionLevels()
	if err != nil {
		// cycle: no order, fall back to sorted names
		return sub.IDs(), true
	}
	var out []string
	for _, level := range levels {
		out = append(out, level...)
	}
	return out, true
}

// DiagnosticsFor returns the project-wide diagnostics plus those attached to
// one of nodes.
func (r *Result) DiagnosticsFor(nodes []string) []analysis.Diagnostic {
	keep := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		keep[strings.ToLower(n)] = true
	}
	out := []analysis.Diagnostic{}
	for _, d := range r.Diagnostics {
		if d.Node == "" || keep[strings.ToLower(d.Node)] {
			out = append(out, d)
		}
	}
	return out
}

// Fingerprint is the run-independent part of a result: diagnostics and
// catalog encoded as JSON. Two compiles of the same project produce the
// same fingerprint.
func (r *Result) Fingerprint() ([]byte, error) {
	return json.Marshal(struct {
		Diagnostics []analysis.Diagnostic         `json:"diagnostics"`
		Catalog     map[string][]core.TypedColumn `json:"catalog"`
	}{r.Diagnostics, r.Catalog})
}

// Summary holds the counts reported after a compile.
type Summary struct {
	RunID    string        `json:"run_id"`
	Nodes    int           `json:"nodes"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Infos    int           `json:"infos"`
	Blocked  int           `json:"blocked"`
	Fatal    bool          `json:"fatal"`
	Duration time.Duration `json:"duration_ns"`
}

// Summary counts the nodes and diagnostics of the result.
func (r *Result) Summary() Summary {
	bySev := r.BySeverity()
	return Summary{
		RunID:    r.RunID,
		Nodes:    len(r.Nodes),
		Errors:   len(bySev[core.SeverityError]),
		Warnings: len(bySev[core.SeverityWarning]),
		Infos:    len(bySev[core.SeverityInfo]) + len(bySev[core.SeverityHint]),
		Blocked:  len(r.BlockedNodes()),
		Fatal:    r.HasFatal(),
		Duration: r.Duration,
	}
}
