// Package qualify rewrites bare relation names to their schema-qualified
// form. It works on the AST only; SQL text is regenerated by pkg/format.
package qualify

import (
	"sort"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/format"
	"github.com/leapstack-labs/leapcheck/pkg/parser"
	"golang.org/x/text/cases"
)

// Target is where a model lives.
type Target struct {
	Schema   string
	Database string
}

// Qualifier holds the name -> location map for one compile pass. It is
// read-only after New and safe for concurrent use.
type Qualifier struct {
	targets         map[string]Target
	defaultDatabase string
}

// New builds a Qualifier. The database part is only added for targets whose
// database differs from defaultDatabase.
func New(targets map[string]Target, defaultDatabase string) *Qualifier {
	q := &Qualifier{
		targets:         make(map[string]Target, len(targets)),
		defaultDatabase: defaultDatabase,
	}
	for name, t := range targets {
		q.targets[fold(name)] = t
	}
	return q
}

// Result describes what a qualification changed.
type Result struct {
	// Rewritten lists the bare names that were qualified, sorted, deduplicated.
	Rewritten []string
	// SelfReferences counts references to the owning node left as written.
	SelfReferences int
}

// Changed reports whether any reference was rewritten.
func (r *Result) Changed() bool { return len(r.Rewritten) > 0 }

// Qualify rewrites stmt in place. Only single-part table names matching a
// known model are touched; multi-part names, CTE names and references to
// self are left as they are.
func (q *Qualifier) Qualify(stmt *core.SelectStmt, self string) *Result {
	res := &Result{}
	if stmt == nil {
		return res
	}

	local := make(map[string]bool)
	core.Inspect(stmt, func(n core.Node) bool {
		if cte, ok := n.(*core.CTE); ok {
			local[fold(cte.Name.Value)] = true
		}
		return true
	})

	selfKey := fold(self)
	seen := make(map[string]bool)

	core.Inspect(stmt, func(n core.Node) bool {
		table, ok := n.(*core.TableName)
		if !ok || table.IsQualified() {
			return true
		}

		key := fold(table.Name())
		switch {
		case key == selfKey:
			res.SelfReferences++
			return true
		case local[key]:
			return true
		}

		target, ok := q.targets[key]
		if !ok || target.Schema == "" {
			return true
		}

		parts := make([]core.Ident, 0, 3)
		if target.Database != "" && fold(target.Database) != fold(q.defaultDatabase) {
			parts = append(parts, core.Ident{Value: target.Database})
		}
		parts = append(parts, core.Ident{Value: target.Schema})
		table.Parts = append(parts, table.Parts...)

		if !seen[table.Name()] {
			seen[table.Name()] = true
			res.Rewritten = append(res.Rewritten, table.Name())
		}
		return true
	})

	sort.Strings(res.Rewritten)
	return res
}

// QualifySQL parses sql, qualifies it and prints it back. When nothing is
// rewritten the input is returned unchanged.
func (q *Qualifier) QualifySQL(sql, self string) (string, *Result, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return "", nil, err
	}
	res := q.Qualify(stmt, self)
	if !res.Changed() {
		return sql, res, nil
	}
	return format.Format(stmt), res, nil
}

func fold(s string) string {
	return cases.Fold().String(s)
}
