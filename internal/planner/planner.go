// Package planner lowers parsed SELECT statements into a typed relational
// plan. The output schema of a node (column names, types and nullability)
// and its column lineage are read off the plan.
//
// Table resolution goes through a Resolver, normally the schema catalog,
// so a node is always planned against the published schemas of its
// upstream nodes.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/parser"
)

// Planning errors. Callers match them with errors.Is.
var (
	ErrUnknownTable    = errors.New("unknown table")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrAmbiguousColumn = errors.New("ambiguous column reference")
	ErrUnsupported     = errors.New("unsupported construct")
)

// Resolver answers table lookups. It returns the canonical node name and
// the node's columns.
type Resolver interface {
	LookupTable(name string) (string, []core.TypedColumn, bool)
}

// Request is one node to plan.
type Request struct {
	// Node is the name of the node being planned. A reference to itself
	// that the resolver cannot answer is planned as an external relation.
	Node string
	SQL  string

	Resolver Resolver

	// Externals lists relations known to exist outside the project.
	// They are planned with unknown columns when the resolver has no
	// schema for them.
	Externals []string
}

// Plan is the planned form of a node.
type Plan struct {
	Node string
	Root Op

	// Columns is the inferred output schema.
	Columns []core.TypedColumn

	// Lineage lists column-level lineage edges: outputs in column order,
	// then inspected columns sorted by node and column.
	Lineage []Edge

	// Relations lists the catalog nodes the plan reads, sorted.
	Relations []string
}

// Planner plans a node's SQL.
type Planner interface {
	Plan(ctx context.Context, req Request) (*Plan, error)
}

// Static plans with the built-in type rules. It never touches a database.
type Static struct{}

// NewStatic returns the built-in planner.
func NewStatic() *Static { return &Static{} }

// Plan parses and lowers req.SQL.
func (*Static) Plan(ctx context.Context, req Request) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stmt, err := parser.Parse(req.SQL)
	if err != nil {
		return nil, err
	}
	return Lower(stmt, req)
}

// Lower plans an already parsed statement.
func Lower(stmt *core.SelectStmt, req Request) (*Plan, error) {
	if req.Resolver == nil {
		return nil, fmt.Errorf("plan %s: no resolver", req.Node)
	}

	l := newLowerer(req)
	root, err := l.stmt(stmt, nil)
	if err != nil {
		return nil, err
	}

	relations := make([]string, 0, len(l.relations))
	for name := range l.relations {
		relations = append(relations, name)
	}
	sort.Strings(relations)

	return &Plan{
		Node:      req.Node,
		Root:      root,
		Columns:   typedColumns(root.Schema()),
		Lineage:   buildLineage(root),
		Relations: relations,
	}, nil
}
