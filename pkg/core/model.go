package core

import (
	"fmt"
	"strings"
)

// Kind is what a project node is. Only KindSQL nodes have a body the
// extractor and planner can inspect; every other kind contributes its
// declared schema and an explicit dependency list.
type Kind string

// Node kinds.
const (
	KindSQL            Kind = "sql"
	KindSeed           Kind = "seed"
	KindSource         Kind = "source"
	KindScalarFunction Kind = "function-scalar"
	KindTableFunction  Kind = "function-table"
	KindStub           Kind = "opaque-stub"
)

// ParseKind validates a kind string. Empty means sql.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindSQL, nil
	case KindSQL, KindSeed, KindSource, KindScalarFunction, KindTableFunction, KindStub:
		return k, nil
	}
	return "", fmt.Errorf("unknown node kind %q", s)
}

// HasBody reports whether nodes of this kind carry SQL that is analyzed.
func (k Kind) HasBody() bool { return k == KindSQL }

// Model is a named transformation node: identity is its name (from the file
// it was loaded from) and its schema namespace. Immutable for one compile pass.
type Model struct {
	Name        string
	Schema      string
	Database    string
	Kind        Kind
	Columns     []TypedColumn // declared output schema
	SQL         string        // rendered SQL body (KindSQL only)
	DependsOn   []string      // explicit dependencies for kinds without a body
	Description string
	Path        string // file the node was loaded from
}

// QualifiedName returns schema.name, or name when no schema is set.
func (m *Model) QualifiedName() string {
	if m.Schema == "" {
		return m.Name
	}
	return m.Schema + "." + m.Name
}

// HasDeclaredSchema reports whether the node declares any columns.
func (m *Model) HasDeclaredSchema() bool { return len(m.Columns) > 0 }

// Nullability is a three-valued nullability fact.
type Nullability int

// Nullability values.
const (
	NullabilityUnknown Nullability = iota
	NotNull
	Nullable
)

// Combine merges the nullability of two inputs: Nullable wins, then Unknown.
func (n Nullability) Combine(o Nullability) Nullability {
	switch {
	case n == Nullable || o == Nullable:
		return Nullable
	case n == NullabilityUnknown || o == NullabilityUnknown:
		return NullabilityUnknown
	}
	return NotNull
}

func (n Nullability) String() string {
	switch n {
	case NotNull:
		return "NOT NULL"
	case Nullable:
		return "NULL"
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (n Nullability) MarshalText() ([]byte, error) {
	switch n {
	case NotNull:
		return []byte("not_null"), nil
	case Nullable:
		return []byte("nullable"), nil
	}
	return []byte("unknown"), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Nullability) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "not_null", "not null", "notnull":
		*n = NotNull
	case "nullable", "null":
		*n = Nullable
	case "unknown", "":
		*n = NullabilityUnknown
	default:
		return fmt.Errorf("invalid nullability %q", string(b))
	}
	return nil
}

// Classification is a data governance tag on a column.
type Classification string

// Classification levels, most sensitive first.
const (
	ClassificationPII       Classification = "pii"
	ClassificationSensitive Classification = "sensitive"
	ClassificationInternal  Classification = "internal"
	ClassificationPublic    Classification = "public"
)

// Rank orders classifications by sensitivity (pii=4 ... public=1, none=0).
func (c Classification) Rank() int {
	switch c {
	case ClassificationPII:
		return 4
	case ClassificationSensitive:
		return 3
	case ClassificationInternal:
		return 2
	case ClassificationPublic:
		return 1
	}
	return 0
}

// ParseClassification validates a classification string. Empty is allowed.
func ParseClassification(s string) (Classification, error) {
	c := Classification(strings.ToLower(strings.TrimSpace(s)))
	if c == "" || c.Rank() > 0 {
		return c, nil
	}
	return "", fmt.Errorf("unknown classification %q (want pii, sensitive, internal or public)", s)
}

// Constraint is a declared column constraint.
type Constraint string

// Column constraints.
const (
	ConstraintNotNull    Constraint = "not_null"
	ConstraintPrimaryKey Constraint = "primary_key"
	ConstraintUnique     Constraint = "unique"
)

// TypedColumn is one column of a declared or inferred schema. The name is
// matched case-insensitively.
type TypedColumn struct {
	Name           string         `json:"name"`
	Type           SQLType        `json:"type"`
	Nullability    Nullability    `json:"nullability"`
	Description    string         `json:"description,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	Constraints    []Constraint   `json:"constraints,omitempty"`
}

func (c TypedColumn) String() string {
	if c.Nullability == NotNull {
		return fmt.Sprintf("%s %s NOT NULL", c.Name, c.Type)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// FindColumn returns the column with the given name (case-insensitive).
func FindColumn(cols []TypedColumn, name string) (TypedColumn, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return TypedColumn{}, false
}

// CloneColumns returns a deep copy of a column list.
func CloneColumns(cols []TypedColumn) []TypedColumn {
	if cols == nil {
		return nil
	}
	out := make([]TypedColumn, len(cols))
	for i, c := range cols {
		out[i] = c
		if c.Constraints != nil {
			out[i].Constraints = append([]Constraint(nil), c.Constraints...)
		}
	}
	return out
}
