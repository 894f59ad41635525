package planner

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// openRelation is an external relation planned without a known schema.
type openRelation struct {
	label string
	node  string
}

// scope holds the columns visible at one query level. Lookups that fall
// through to parent are correlated references; fallback is searched at
// the same level (ORDER BY sees the select list first, then the input).
type scope struct {
	parent   *scope
	fallback *scope
	cols     []Column
	open     []openRelation
}

// resolve binds a possibly qualified column reference.
func (s *scope) resolve(parts []string) (Column, bool, error) {
	name := parts[len(parts)-1]
	qual := ""
	if len(parts) > 1 {
		qual = parts[len(parts)-2]
	}

	correlated := false
	for cur := s; cur != nil; cur = cur.parent {
		col, found, err := cur.lookup(qual, name)
		if err != nil {
			return Column{}, false, err
		}
		if found {
			return col, correlated, nil
		}
		correlated = true
	}
	return Column{}, false, fmt.Errorf("%w: %s", ErrUnknownColumn, strings.Join(parts, "."))
}

func (s *scope) lookup(qual, name string) (Column, bool, error) {
	var matches []Column
	for _, c := range s.cols {
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		if qual == "" && !c.hidden || qual != "" && strings.EqualFold(c.Table, qual) {
			matches = append(matches, c)
		}
	}

	switch {
	case len(matches) == 1, len(matches) > 1 && qual != "":
		return matches[0], true, nil
	case len(matches) > 1:
		return Column{}, false, fmt.Errorf("%w: %s (in %s and %s)",
			ErrAmbiguousColumn, name, matches[0].Table, matches[1].Table)
	}

	if s.fallback != nil {
		if col, found, err := s.fallback.lookup(qual, name); found || err != nil {
			return col, found, err
		}
	}

	for _, o := range s.open {
		if qual == "" || strings.EqualFold(o.label, qual) {
			return Column{
				Name:        name,
				Type:        core.Unknown("column of external relation " + o.node),
				Nullability: core.NullabilityUnknown,
				Table:       o.label,
				Origins:     []Origin{{Node: o.node, Column: name}},
			}, true, nil
		}
	}
	return Column{}, false, nil
}

// star expands * (qual empty) or qual.* in select-list order.
func (s *scope) star(qual string) ([]Column, error) {
	for _, o := range s.open {
		if qual == "" || strings.EqualFold(o.label, qual) {
			return nil, fmt.Errorf("%w: cannot expand * over external relation %s", ErrUnknownColumn, o.node)
		}
	}

	var out []Column
	for _, c := range s.cols {
		if qual == "" && !c.hidden || qual != "" && strings.EqualFold(c.Table, qual) {
			c.hidden = false
			out = append(out, c)
		}
	}
	if qual != "" && len(out) == 0 {
		return nil, fmt.Errorf("%w: %s.*", ErrUnknownTable, qual)
	}
	if qual == "" && len(s.cols) == 0 {
		return nil, fmt.Errorf("%w: SELECT * with no FROM clause", ErrUnsupported)
	}
	return out, nil
}

// relabel rebinds columns under a new label, as a derived table or CTE
// reference does. names renames the columns positionally when set.
func relabel(cols []Column, label string, names []string) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		c.Table = label
		c.hidden = false
		if i < len(names) {
			c.Name = names[i]
		}
		out[i] = c
	}
	return out
}

func markOuterJoined(cols []Column) {
	for i := range cols {
		cols[i].Nullability = core.Nullable
		cols[i].OuterJoined = true
	}
}
