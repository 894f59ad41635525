// Package analysis holds the diagnostic model shared by every stage of a
// compile pass and the battery of passes that inspect planned nodes.
//
// Passes only append diagnostics. They never touch the catalog or the
// plans they are handed.
package analysis

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Diagnostic is one finding about a node, a column or the whole project.
type Diagnostic struct {
	Code     string        `json:"code"`
	Severity core.Severity `json:"severity"`
	Message  string        `json:"message"`
	Node     string        `json:"node,omitempty"`
	Column   string        `json:"column,omitempty"`
	Hint     string        `json:"hint,omitempty"`
	Pass     string        `json:"pass,omitempty"`
}

func (d Diagnostic) String() string {
	loc := d.Node
	if d.Column != "" {
		loc += "." + d.Column
	}
	if loc == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s %s [%s]: %s", d.Severity, d.Code, loc, d.Message)
}

// New builds a diagnostic with the code's default severity.
func New(code, node, column, message string) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: DefaultSeverity(code),
		Message:  message,
		Node:     node,
		Column:   column,
	}
}

// Newf is New with a formatted message.
func Newf(code, node, column, format string, args ...any) Diagnostic {
	return New(code, node, column, fmt.Sprintf(format, args...))
}

// WithHint returns d with a remediation hint.
func (d Diagnostic) WithHint(hint string) Diagnostic {
	d.Hint = hint
	return d
}

// Sort orders diagnostics by node, code, column and message. Project-wide
// diagnostics (no node) come first.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Message < b.Message
	})
}

// HasFatal reports whether any diagnostic blocks execution.
func HasFatal(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity.IsFatal() {
			return true
		}
	}
	return false
}

// Count tallies diagnostics per severity.
func Count(ds []Diagnostic) map[core.Severity]int {
	out := make(map[core.Severity]int)
	for _, d := range ds {
		out[d.Severity]++
	}
	return out
}

// ForNode returns the diagnostics attached to node.
func ForNode(ds []Diagnostic, node string) []Diagnostic {
	var out []Diagnostic
	for _, d := range ds {
		if d.Node == node {
			out = append(out, d)
		}
	}
	return out
}
