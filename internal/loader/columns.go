package loader

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// ColumnConfig is a declared column as written in YAML.
type ColumnConfig struct {
	Name           string   `yaml:"name"`
	Type           string   `yaml:"type"`
	Nullable       *bool    `yaml:"nullable"`
	NotNull        bool     `yaml:"not_null"`
	Description    string   `yaml:"description"`
	Classification string   `yaml:"classification"`
	Constraints    []string `yaml:"constraints"`
}

// TypedColumn converts the declaration. A column is NOT NULL when not_null
// is set or a not_null/primary_key constraint is listed, Nullable when
// nullable is true, and of unknown nullability otherwise.
func (c ColumnConfig) TypedColumn() (core.TypedColumn, error) {
	if strings.TrimSpace(c.Name) == "" {
		return core.TypedColumn{}, fmt.Errorf("column without a name")
	}

	col := core.TypedColumn{
		Name:        c.Name,
		Type:        core.Unknown("no declared type"),
		Description: strings.TrimSpace(c.Description),
	}
	if c.Type != "" {
		col.Type = core.ParseSQLType(c.Type)
	}

	notNull := c.NotNull
	for _, raw := range c.Constraints {
		k := core.Constraint(strings.ToLower(strings.TrimSpace(raw)))
		switch k {
		case core.ConstraintNotNull, core.ConstraintPrimaryKey:
			notNull = true
		case core.ConstraintUnique:
		default:
			return core.TypedColumn{}, fmt.Errorf("column %s: unknown constraint %q (want not_null, primary_key or unique)", c.Name, raw)
		}
		col.Constraints = append(col.Constraints, k)
	}

	switch {
	case notNull && c.Nullable != nil && *c.Nullable:
		return core.TypedColumn{}, fmt.Errorf("column %s: declared both nullable and not_null", c.Name)
	case notNull:
		col.Nullability = core.NotNull
	case c.Nullable != nil && *c.Nullable:
		col.Nullability = core.Nullable
	}

	if c.Classification != "" {
		cl, err := core.ParseClassification(c.Classification)
		if err != nil {
			return core.TypedColumn{}, fmt.Errorf("column %s: %w", c.Name, err)
		}
		col.Classification = cl
	}
	return col, nil
}

// typedColumns converts a column list, rejecting duplicate names.
func typedColumns(cfgs []ColumnConfig) ([]core.TypedColumn, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	out := make([]core.TypedColumn, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		col, err := c.TypedColumn()
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(col.Name)
		if seen[key] {
			return nil, fmt.Errorf("column %s is declared twice", col.Name)
		}
		seen[key] = true
		out = append(out, col)
	}
	return out, nil
}
