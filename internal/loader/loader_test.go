package loader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/loader"
	"github.com/leapstack-labs/leapcheck/internal/testutil"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

func TestLoad_ShopProject(t *testing.T) {
	dir := testutil.WriteProject(t, testutil.ShopProject())

	p, err := loader.Load(loader.Dirs{ProjectDir: dir, DefaultSchema: "main"})
	require.NoError(t, err)
	assert.Empty(t, p.Problems)
	assert.Empty(t, p.Duplicates)

	var names []string
	for _, n := range p.Nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"fct_revenue", "raw_orders", "stg_orders"}, names)

	raw, ok := p.Node("RAW_ORDERS")
	require.True(t, ok)
	assert.Equal(t, core.KindSource, raw.Kind)
	assert.Equal(t, "raw", raw.Schema)
	require.Len(t, raw.Columns, 3)
	assert.Equal(t, core.NotNull, raw.Columns[0].Nullability)
	assert.Equal(t, core.Nullable, raw.Columns[2].Nullability)

	stg, _ := p.Node("stg_orders")
	assert.Equal(t, core.KindSQL, stg.Kind)
	assert.Equal(t, "staging", stg.Schema, "directory becomes the schema")
	assert.Equal(t, "SELECT id, amt / 100.0 AS dollars FROM raw_orders", stg.SQL)
	assert.Equal(t, "Orders in dollars", stg.Description)
	require.Len(t, stg.Columns, 2)
	assert.Equal(t, "DECIMAL", stg.Columns[1].Type.String())

	fct, _ := p.Node("fct_revenue")
	assert.False(t, fct.HasDeclaredSchema())
	assert.Equal(t, "marts", fct.Schema)
}

func TestLoad_DefaultSchemaAndMissingDirs(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{"models/top.sql": "SELECT 1 AS x"})

	p, err := loader.Load(loader.Dirs{ProjectDir: dir, DefaultSchema: "main"})
	require.NoError(t, err)
	require.Len(t, p.Nodes, 1)
	assert.Equal(t, "main", p.Nodes[0].Schema)
}

func TestLoad_Duplicates(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{
		"models/a/orders.sql": "SELECT 1 AS x",
		"models/b/orders.sql": "SELECT 2 AS x",
	})

	p, err := loader.Load(loader.Dirs{ProjectDir: dir})
	require.NoError(t, err)
	require.Len(t, p.Nodes, 1)
	require.Len(t, p.Duplicates, 1)
	assert.Equal(t, "orders", p.Duplicates[0].Name)
	assert.Contains(t, p.Duplicates[0].Error(), "duplicate node \"orders\"")
}

func TestLoad_Problems(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{
		"models/bad_field.sql": "/*---\nmaterialized: table\n---*/\nSELECT 1 AS x",
		"models/bad_kind.sql":  "/*---\nkind: macro\n---*/\nSELECT 1 AS x",
		"models/bad_col.sql":   "/*---\ncolumns:\n  - {name: x, classification: secret}\n---*/\nSELECT 1 AS x",
		"models/stub.sql":      "/*---\nkind: opaque-stub\ncolumns:\n  - {name: x, type: INT}\n---*/\nSELECT 1",
		"sources/bad.yml":      "sources:\n  - name: s\n    owner: me\n",
		"models/fine.sql":      "SELECT 1 AS x",
	})

	p, err := loader.Load(loader.Dirs{ProjectDir: dir})
	require.NoError(t, err)
	require.Len(t, p.Nodes, 1)
	assert.Equal(t, "fine", p.Nodes[0].Name)

	names := make(map[string]string)
	for _, pr := range p.Problems {
		names[pr.Name()] = pr.Error()
	}
	require.Len(t, names, 5)
	assert.Contains(t, names["bad_field"], `unknown field "materialized"`)
	assert.Contains(t, names["bad_field"], "bad_field.sql:2")
	assert.Contains(t, names["bad_kind"], "unknown node kind")
	assert.Contains(t, names["bad_col"], "unknown classification")
	assert.Contains(t, names["stub"], "must not have a SQL body")
	assert.Contains(t, names["bad"], "invalid sources file")
}

func TestExtractFrontmatter(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSQL string
		hasYAML bool
		check   func(t *testing.T, c *loader.FrontmatterConfig)
	}{
		{
			name:    "no frontmatter",
			content: "  SELECT 1  ",
			wantSQL: "SELECT 1",
		},
		{
			name:    "full",
			content: "/*---\nname: custom\nkind: seed\ndepends_on: [a, b]\n---*/\n",
			hasYAML: true,
			check: func(t *testing.T, c *loader.FrontmatterConfig) {
				assert.Equal(t, "custom", c.Name)
				assert.Equal(t, "seed", c.Kind)
				assert.Equal(t, []string{"a", "b"}, c.DependsOn)
			},
		},
		{
			name:    "empty block",
			content: "/*---\n---*/\nSELECT 2",
			wantSQL: "SELECT 2",
			hasYAML: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := loader.ExtractFrontmatter(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, res.SQL)
			assert.Equal(t, tt.hasYAML, res.HasYAML)
			if tt.check != nil {
				tt.check(t, res.Config)
			}
		})
	}
}

func TestColumnConfig_TypedColumn(t *testing.T) {
	yes := true
	tests := []struct {
		name    string
		cfg     loader.ColumnConfig
		want    core.TypedColumn
		wantErr string
	}{
		{
			name: "untyped",
			cfg:  loader.ColumnConfig{Name: "x"},
			want: core.TypedColumn{Name: "x", Type: core.Unknown("no declared type")},
		},
		{
			name: "primary key implies not null",
			cfg:  loader.ColumnConfig{Name: "id", Type: "bigint", Constraints: []string{"primary_key"}},
			want: core.TypedColumn{Name: "id", Type: core.BigInt(), Nullability: core.NotNull, Constraints: []core.Constraint{core.ConstraintPrimaryKey}},
		},
		{
			name: "nullable",
			cfg:  loader.ColumnConfig{Name: "e", Type: "varchar", Nullable: &yes, Classification: "PII"},
			want: core.TypedColumn{Name: "e", Type: core.Varchar(0), Nullability: core.Nullable, Classification: core.ClassificationPII},
		},
		{
			name:    "contradiction",
			cfg:     loader.ColumnConfig{Name: "e", NotNull: true, Nullable: &yes},
			wantErr: "both nullable and not_null",
		},
		{
			name:    "bad constraint",
			cfg:     loader.ColumnConfig{Name: "e", Constraints: []string{"check"}},
			wantErr: "unknown constraint",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.TypedColumn()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
