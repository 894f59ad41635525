package planner

import (
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// ---------- Columns ----------

// Origin names a column of a catalog node that a value is read from.
type Origin struct {
	Node   string
	Column string
}

// Column is one column of an operator's output schema.
type Column struct {
	Name        string
	Type        core.SQLType
	Nullability core.Nullability

	// Table is the binding label used for qualified references: the alias,
	// else the relation name. Empty for computed columns.
	Table string

	// Origins lists the catalog columns the value is derived from.
	Origins []Origin
	// Derived is set once any expression other than a plain column
	// reference touched the value.
	Derived bool
	// OuterJoined is set when an outer join made the column nullable.
	OuterJoined bool

	// hidden columns are reachable only through a qualified reference
	// (the right-hand side of JOIN ... USING).
	hidden bool
}

// Typed converts the column to its catalog form.
func (c Column) Typed() core.TypedColumn {
	return core.TypedColumn{Name: c.Name, Type: c.Type, Nullability: c.Nullability}
}

func typedColumns(cols []Column) []core.TypedColumn {
	out := make([]core.TypedColumn, len(cols))
	for i, c := range cols {
		out[i] = c.Typed()
	}
	return out
}

// ---------- Relational operators ----------

// Op is a relational operator. The set of operators is closed; every
// consumer switches over the concrete types below.
type Op interface {
	// Schema returns the operator's output columns.
	Schema() []Column
	// Inputs returns the operator's direct children.
	Inputs() []Op
	opNode()
}

// Scan reads a catalog relation, a table function or a named subquery.
type Scan struct {
	// Node is the catalog name the relation resolved to; empty for
	// subquery scans.
	Node string
	// Ref is the relation name as written.
	Ref   string
	Label string
	// Open marks an external relation whose columns are unknown.
	Open bool
	// Args holds table function arguments.
	Args []Expr
	// Input is the lowered subquery for derived tables and CTE references.
	Input Op

	schema []Column
}

// Values is the single empty row a FROM-less SELECT reads.
type Values struct{}

// Join combines two inputs.
type Join struct {
	Left, Right Op
	Type        core.JoinType
	Natural     bool
	Condition   Expr
	Using       []string

	schema []Column
}

// Filter keeps rows matching a predicate (WHERE, or HAVING above an Aggregate).
type Filter struct {
	Input     Op
	Predicate Expr
	Having    bool
}

// Aggregate groups its input.
type Aggregate struct {
	Input      Op
	GroupBy    []Expr
	Aggregates []*Call

	schema []Column
}

// Item is one output column of a Project.
type Item struct {
	Name string
	Expr Expr
}

// Project computes the output columns.
type Project struct {
	Input    Op
	Items    []Item
	Distinct bool

	schema []Column
}

// SortKey is one ORDER BY key.
type SortKey struct {
	Expr Expr
	Desc bool
}

// Sort orders its input.
type Sort struct {
	Input Op
	Keys  []SortKey
}

// Limit truncates its input.
type Limit struct {
	Input  Op
	Count  Expr
	Offset Expr
}

// SetOp combines branches with UNION, INTERSECT or EXCEPT. Ops[i] joins
// Branches[i] and Branches[i+1]. The output takes its names from the
// first branch.
type SetOp struct {
	Branches []Op
	Ops      []core.SetOpType

	schema []Column
}

func (s *Scan) Schema() []Column      { return s.schema }
func (*Values) Schema() []Column      { return nil }
func (j *Join) Schema() []Column      { return j.schema }
func (f *Filter) Schema() []Column    { return f.Input.Schema() }
func (a *Aggregate) Schema() []Column { return a.schema }
func (p *Project) Schema() []Column   { return p.schema }
func (s *Sort) Schema() []Column      { return s.Input.Schema() }
func (l *Limit) Schema() []Column     { return l.Input.Schema() }
func (s *SetOp) Schema() []Column     { return s.schema }

func (s *Scan) Inputs() []Op {
	if s.Input == nil {
		return nil
	}
	return []Op{s.Input}
}
func (*Values) Inputs() []Op      { return nil }
func (j *Join) Inputs() []Op      { return []Op{j.Left, j.Right} }
func (f *Filter) Inputs() []Op    { return []Op{f.Input} }
func (a *Aggregate) Inputs() []Op { return []Op{a.Input} }
func (p *Project) Inputs() []Op   { return []Op{p.Input} }
func (s *Sort) Inputs() []Op      { return []Op{s.Input} }
func (l *Limit) Inputs() []Op     { return []Op{l.Input} }
func (s *SetOp) Inputs() []Op     { return s.Branches }

func (*Scan) opNode()      {}
func (*Values) opNode()    {}
func (*Join) opNode()      {}
func (*Filter) opNode()    {}
func (*Aggregate) opNode() {}
func (*Project) opNode()   {}
func (*Sort) opNode()      {}
func (*Limit) opNode()     {}
func (*SetOp) opNode()     {}

// Walk visits op and its inputs depth-first, parents before children.
// Returning false from fn skips the operator's inputs.
func Walk(op Op, fn func(Op) bool) {
	if op == nil || !fn(op) {
		return
	}
	for _, in := range op.Inputs() {
		Walk(in, fn)
	}
}

// WalkAll is Walk extended into the plans of subquery expressions.
func WalkAll(op Op, fn func(Op) bool) {
	Walk(op, func(o Op) bool {
		if !fn(o) {
			return false
		}
		for _, e := range Exprs(o) {
			WalkExpr(e, func(x Expr) bool {
				if sq, ok := x.(*Subquery); ok {
					WalkAll(sq.Root, fn)
				}
				return true
			})
		}
		return true
	})
}

// Exprs returns the expressions an operator evaluates directly.
func Exprs(op Op) []Expr {
	var out []Expr
	add := func(e Expr) {
		if e != nil {
			out = append(out, e)
		}
	}
	switch op := op.(type) {
	case *Scan:
		for _, a := range op.Args {
			add(a)
		}
	case *Join:
		add(op.Condition)
	case *Filter:
		add(op.Predicate)
	case *Aggregate:
		for _, g := range op.GroupBy {
			add(g)
		}
		for _, a := range op.Aggregates {
			add(a)
		}
	case *Project:
		for _, it := range op.Items {
			add(it.Expr)
		}
	case *Sort:
		for _, k := range op.Keys {
			add(k.Expr)
		}
	case *Limit:
		add(op.Count)
		add(op.Offset)
	case *Values, *SetOp:
	default:
		panic("planner: unhandled operator")
	}
	return out
}
