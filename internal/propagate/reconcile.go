package propagate

import (
	"fmt"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// MismatchKind classifies a divergence between declared and inferred schemas.
type MismatchKind int

// Mismatch kinds.
const (
	MissingFromSQL MismatchKind = iota
	ExtraInSQL
	TypeMismatch
	NullabilityMismatch
)

func (k MismatchKind) String() string {
	switch k {
	case MissingFromSQL:
		return "missing_from_sql"
	case ExtraInSQL:
		return "extra_in_sql"
	case TypeMismatch:
		return "type_mismatch"
	case NullabilityMismatch:
		return "nullability_mismatch"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k MismatchKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Code returns the diagnostic code reporting the mismatch.
func (k MismatchKind) Code() string {
	if k == MissingFromSQL {
		return analysis.CodeMissingColumn
	}
	return analysis.CodeSchemaMismatch
}

// Mismatch is one reconciliation finding. Declared is zero for ExtraInSQL
// and Inferred is zero for MissingFromSQL.
type Mismatch struct {
	Kind     MismatchKind     `json:"kind"`
	Column   string           `json:"column"`
	Declared core.TypedColumn `json:"declared"`
	Inferred core.TypedColumn `json:"inferred"`
}

func (m Mismatch) String() string {
	switch m.Kind {
	case MissingFromSQL:
		return fmt.Sprintf("column '%s' is declared but missing from the SQL output", m.Column)
	case ExtraInSQL:
		return fmt.Sprintf("column '%s' (%s) is in the SQL output but not declared", m.Column, m.Inferred.Type)
	case TypeMismatch:
		return fmt.Sprintf("column '%s' is declared %s but the SQL produces %s", m.Column, m.Declared.Type, m.Inferred.Type)
	case NullabilityMismatch:
		return fmt.Sprintf("column '%s' is declared NOT NULL but the SQL may produce NULL", m.Column)
	}
	return m.Column
}

// Diagnostic converts the mismatch into a diagnostic for node.
func (m Mismatch) Diagnostic(node string) analysis.Diagnostic {
	d := analysis.New(m.Kind.Code(), node, m.Column, m.String())
	switch m.Kind {
	case MissingFromSQL:
		d.Hint = fmt.Sprintf("Add '%s' to the SELECT list or remove it from the declaration", m.Column)
	case ExtraInSQL:
		d.Hint = fmt.Sprintf("Declare '%s' or remove it from the SELECT list", m.Column)
	case TypeMismatch:
		d.Hint = fmt.Sprintf("Declare the type as %s or add an explicit CAST", m.Inferred.Type)
	case NullabilityMismatch:
		d.Hint = "Add COALESCE() or an IS NOT NULL filter, or relax the declaration"
	}
	return d
}

// Reconcile compares a declared schema against an inferred one. Names match
// case-insensitively. Declared columns are checked in declaration order,
// then extra inferred columns in output order.
//
// Unknown types and nullabilities never mismatch. Nullability is only
// reported when a NOT NULL declaration meets a nullable inferred column.
func Reconcile(declared, inferred []core.TypedColumn) []Mismatch {
	var out []Mismatch
	for _, d := range declared {
		inf, ok := core.FindColumn(inferred, d.Name)
		if !ok {
			out = append(out, Mismatch{Kind: MissingFromSQL, Column: d.Name, Declared: d})
			continue
		}
		if !d.Type.SameAs(inf.Type) {
			out = append(out, Mismatch{Kind: TypeMismatch, Column: d.Name, Declared: d, Inferred: inf})
		}
		if d.Nullability == core.NotNull && inf.Nullability == core.Nullable {
			out = append(out, Mismatch{Kind: NullabilityMismatch, Column: d.Name, Declared: d, Inferred: inf})
		}
	}
	for _, inf := range inferred {
		if _, ok := core.FindColumn(declared, inf.Name); !ok {
			out = append(out, Mismatch{Kind: ExtraInSQL, Column: inf.Name, Inferred: inf})
		}
	}
	return out
}

// Fatal counts the mismatches that block execution under the given
// severity table.
func Fatal(ms []Mismatch, overrides analysis.Overrides) int {
	n := 0
	for _, m := range ms {
		if overrides.Severity(m.Kind.Code()).IsFatal() {
			n++
		}
	}
	return n
}
