package planner

import (
	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/format"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// ---------- Typed expressions ----------

// Expr is a resolved, typed expression.
type Expr interface {
	Type() core.SQLType
	Nullability() core.Nullability
	// SQL renders the expression as it was written.
	SQL() string
	exprNode()
}

type typed struct {
	src  core.Expr
	typ  core.SQLType
	null core.Nullability
}

func (t *typed) Type() core.SQLType            { return t.typ }
func (t *typed) Nullability() core.Nullability { return t.null }

func (t *typed) SQL() string {
	if t.src == nil {
		return ""
	}
	return format.Expr(t.src)
}

// ColumnRef is a column reference bound to an input column.
type ColumnRef struct {
	typed
	Column Column
	// Correlated is set when the column was bound in an enclosing query.
	Correlated bool
}

// Literal is a constant.
type Literal struct {
	typed
	Value string
	Kind  core.LiteralType
}

// Binary is an arithmetic, comparison, logical or concatenation operator.
type Binary struct {
	typed
	Op          token.TokenType
	Left, Right Expr
}

// Unary is NOT or a sign.
type Unary struct {
	typed
	Op      token.TokenType
	Operand Expr
}

// Window is the OVER clause of a Call.
type Window struct {
	Partition []Expr
	Order     []SortKey
}

// Call is a function call. Name is lowercase.
type Call struct {
	typed
	Name      string
	Args      []Expr
	Star      bool
	Distinct  bool
	Aggregate bool
	Window    *Window
	// Builtin is false for functions typed through the resolver or not
	// known at all.
	Builtin bool
}

// Cast converts its operand to Target.
type Cast struct {
	typed
	Operand Expr
	Target  core.SQLType
}

// When is one WHEN branch of a Case.
type When struct {
	Cond, Result Expr
}

// Case is a CASE expression.
type Case struct {
	typed
	Operand Expr
	Whens   []When
	Else    Expr
}

// IsNull is IS [NOT] NULL.
type IsNull struct {
	typed
	Operand Expr
	Not     bool
}

// PredicateKind names a boolean predicate form.
type PredicateKind string

// Predicate kinds.
const (
	PredicateIn      PredicateKind = "IN"
	PredicateBetween PredicateKind = "BETWEEN"
	PredicateLike    PredicateKind = "LIKE"
	PredicateIsBool  PredicateKind = "IS"
)

// Predicate is IN (list), BETWEEN, [I]LIKE or IS [NOT] TRUE|FALSE.
type Predicate struct {
	typed
	Kind    PredicateKind
	Operand Expr
	Args    []Expr
	Not     bool
}

// SubqueryKind names how a subquery is used.
type SubqueryKind int

// Subquery kinds.
const (
	SubqueryScalar SubqueryKind = iota
	SubqueryExists
	SubqueryIn
)

// Subquery is a scalar, EXISTS or IN subquery. Root is planned in a child
// scope of the enclosing query.
type Subquery struct {
	typed
	Kind    SubqueryKind
	Operand Expr // IN only
	Not     bool
	Root    Op
}

func (*ColumnRef) exprNode() {}
func (*Literal) exprNode()   {}
func (*Binary) exprNode()    {}
func (*Unary) exprNode()     {}
func (*Call) exprNode()      {}
func (*Cast) exprNode()      {}
func (*Case) exprNode()      {}
func (*IsNull) exprNode()    {}
func (*Predicate) exprNode() {}
func (*Subquery) exprNode()  {}

// WalkExpr visits e and its operands depth-first. Returning false from fn
// skips the operands. Subquery plans are not entered.
func WalkExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch e := e.(type) {
	case *ColumnRef, *Literal:
	case *Binary:
		WalkExpr(e.Left, fn)
		WalkExpr(e.Right, fn)
	case *Unary:
		WalkExpr(e.Operand, fn)
	case *Call:
		for _, a := range e.Args {
			WalkExpr(a, fn)
		}
		if e.Window != nil {
			for _, p := range e.Window.Partition {
				WalkExpr(p, fn)
			}
			for _, k := range e.Window.Order {
				WalkExpr(k.Expr, fn)
			}
		}
	case *Cast:
		WalkExpr(e.Operand, fn)
	case *Case:
		WalkExpr(e.Operand, fn)
		for _, w := range e.Whens {
			WalkExpr(w.Cond, fn)
			WalkExpr(w.Result, fn)
		}
		WalkExpr(e.Else, fn)
	case *IsNull:
		WalkExpr(e.Operand, fn)
	case *Predicate:
		WalkExpr(e.Operand, fn)
		for _, a := range e.Args {
			WalkExpr(a, fn)
		}
	case *Subquery:
		WalkExpr(e.Operand, fn)
	default:
		panic("planner: unhandled expression")
	}
}

// ColumnRefs returns every column reference in e, in visit order.
func ColumnRefs(e Expr) []*ColumnRef {
	var refs []*ColumnRef
	WalkExpr(e, func(x Expr) bool {
		if ref, ok := x.(*ColumnRef); ok {
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}

// Conjuncts splits a predicate on AND.
func Conjuncts(e Expr) []Expr {
	if b, ok := e.(*Binary); ok && b.Op == token.AND {
		return append(Conjuncts(b.Left), Conjuncts(b.Right)...)
	}
	if e == nil {
		return nil
	}
	return []Expr{e}
}
