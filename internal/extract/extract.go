// Package extract finds the relations a rendered SQL statement depends on
// and classifies them against the project's known names.
//
// Extraction is the structural gate of a compile pass: WITH clauses and
// derived tables are rejected here, before any planning happens, because
// inline relations have no schema contract of their own.
package extract

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/parser"
	"github.com/leapstack-labs/leapcheck/pkg/token"
	"golang.org/x/text/cases"
)

// Construct names a forbidden SQL construct.
type Construct string

// Forbidden constructs.
const (
	ConstructCTE          Construct = "WITH clause"
	ConstructDerivedTable Construct = "derived table"
)

// Structural diagnostic codes.
const (
	CodeCTE          = "S001"
	CodeDerivedTable = "S002"
	CodeParse        = "S003"
)

// Bans selects which constructs are rejected.
type Bans struct {
	CTE           bool
	DerivedTables bool
}

// DefaultBans rejects every construct extraction knows about.
func DefaultBans() Bans {
	return Bans{CTE: true, DerivedTables: true}
}

// BanError reports a forbidden construct.
type BanError struct {
	Construct Construct
	Name      string // CTE name or derived table alias, when present
	Pos       token.Position
}

func (e *BanError) Error() string {
	msg := fmt.Sprintf("%s is not allowed", e.Construct)
	if e.Name != "" {
		msg = fmt.Sprintf("%s %q is not allowed", e.Construct, e.Name)
	}
	switch e.Construct {
	case ConstructCTE:
		msg += "; move the query into its own model"
	case ConstructDerivedTable:
		msg += "; move the subquery into its own model or use a scalar subquery"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, msg)
	}
	return msg
}

// Code returns the structural diagnostic code for the construct.
func (e *BanError) Code() string {
	if e.Construct == ConstructCTE {
		return CodeCTE
	}
	return CodeDerivedTable
}

// Extraction is the result of extracting one statement.
type Extraction struct {
	Stmt *core.SelectStmt

	// Relations are the referenced relation names, deduplicated
	// case-insensitively, sorted, first spelling kept.
	Relations []string

	// Functions are called function names, deduplicated the same way.
	Functions []string

	// TableFunctions are table-valued functions used in FROM.
	TableFunctions []string
}

// Extract parses sql and extracts its dependencies.
func Extract(sql string, bans Bans) (*Extraction, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	return ExtractStmt(stmt, bans)
}

// ExtractStmt extracts dependencies from an already parsed statement.
// The first banned construct in source order fails extraction.
func ExtractStmt(stmt *core.SelectStmt, bans Bans) (*Extraction, error) {
	if stmt == nil || stmt.Body == nil {
		return nil, &parser.ParseError{Message: "empty statement"}
	}

	if err := checkBans(stmt, bans); err != nil {
		return nil, err
	}

	fold := cases.Fold()
	local := make(map[string]bool)
	core.Inspect(stmt, func(n core.Node) bool {
		if cte, ok := n.(*core.CTE); ok {
			local[fold.String(cte.Name.Value)] = true
		}
		return true
	})

	relations := newNameSet()
	functions := newNameSet()
	tableFuncs := newNameSet()

	core.Inspect(stmt, func(n core.Node) bool {
		switch n := n.(type) {
		case *core.TableName:
			if !n.IsQualified() && local[fold.String(n.Name())] {
				return true
			}
			relations.add(n.Qualified())
		case *core.TableFunc:
			tableFuncs.add(n.Qualified())
		case *core.FuncCall:
			functions.add(n.FuncName())
		}
		return true
	})

	return &Extraction{
		Stmt:           stmt,
		Relations:      relations.sorted(),
		Functions:      functions.sorted(),
		TableFunctions: tableFuncs.sorted(),
	}, nil
}

func checkBans(stmt *core.SelectStmt, bans Bans) error {
	var banErr *BanError
	core.Inspect(stmt, func(n core.Node) bool {
		if banErr != nil {
			return false
		}
		switch n := n.(type) {
		case *core.WithClause:
			if bans.CTE {
				banErr = &BanError{Construct: ConstructCTE, Pos: n.Pos()}
				if len(n.CTEs) > 0 {
					banErr.Name = n.CTEs[0].Name.Value
				}
				return false
			}
		case *core.DerivedTable:
			if bans.DerivedTables {
				banErr = &BanError{Construct: ConstructDerivedTable, Name: n.Alias.Value, Pos: n.Pos()}
				return false
			}
		}
		return true
	})
	if banErr != nil {
		return banErr
	}
	return nil
}

// nameSet deduplicates names case-insensitively, keeping the first spelling.
type nameSet struct {
	fold  cases.Caser
	names map[string]string
}

func newNameSet() *nameSet {
	return &nameSet{fold: cases.Fold(), names: make(map[string]string)}
}

func (s *nameSet) add(name string) {
	if name == "" {
		return
	}
	key := s.fold.String(name)
	if _, ok := s.names[key]; !ok {
		s.names[key] = name
	}
}

func (s *nameSet) sorted() []string {
	out := make([]string, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.fold.String(out[i]) < s.fold.String(out[j])
	})
	return out
}
