package core

import (
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	// Pos returns the position of the first character of the node.
	Pos() token.Position
	// End returns the position of the character immediately after the node.
	End() token.Position
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a marker interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// TableRef is a marker interface for FROM-clause items.
type TableRef interface {
	Node
	tableRefNode()
}

// NodeInfo carries the source span of a node. Embedded by every AST type.
type NodeInfo struct {
	Start token.Position
	Stop  token.Position
}

// Pos implements Node.
func (n NodeInfo) Pos() token.Position { return n.Start }

// End implements Node.
func (n NodeInfo) End() token.Position { return n.Stop }

// Ident is a single identifier part. Quoted identifiers keep their case and
// are printed back with double quotes.
type Ident struct {
	Value  string
	Quoted bool
}

// IsZero reports whether the identifier is absent.
func (i Ident) IsZero() bool { return i.Value == "" }

// SQL returns the identifier as it should appear in SQL text.
func (i Ident) SQL() string {
	if i.Quoted {
		return `"` + strings.ReplaceAll(i.Value, `"`, `""`) + `"`
	}
	return i.Value
}

// Idents builds unquoted identifier parts from plain strings.
func Idents(parts ...string) []Ident {
	out := make([]Ident, len(parts))
	for i, p := range parts {
		out[i] = Ident{Value: p}
	}
	return out
}

// JoinIdents joins identifier values with dots, ignoring quoting.
func JoinIdents(parts []Ident) string {
	vals := make([]string, len(parts))
	for i, p := range parts {
		vals[i] = p.Value
	}
	return strings.Join(vals, ".")
}
