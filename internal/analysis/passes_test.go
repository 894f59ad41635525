package analysis_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/dag"
	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

type tables map[string][]core.TypedColumn

func (t tables) LookupTable(name string) (string, []core.TypedColumn, bool) {
	key := strings.ToLower(name)
	cols, ok := t[key]
	return key, cols, ok
}

func col(name, typ string, null core.Nullability) core.TypedColumn {
	return core.TypedColumn{Name: name, Type: core.ParseSQLType(typ), Nullability: null}
}

var shop = tables{
	"orders": {
		col("id", "INT", core.NotNull),
		col("customer_id", "INT", core.NotNull),
		col("amount", "DECIMAL(10,2)", core.NotNull),
		col("status", "VARCHAR", core.Nullable),
		col("ordered_at", "TIMESTAMP", core.NotNull),
	},
	"customers": {
		col("id", "INT", core.NotNull),
		col("email", "VARCHAR", core.NotNull),
		col("code", "VARCHAR", core.NotNull),
		col("signup_date", "DATE", core.NotNull),
	},
	"big": {
		col("id", "BIGINT", core.NotNull),
		col("ratio", "DOUBLE", core.Nullable),
	},
}

func plan(t *testing.T, node, sql string) *planner.Plan {
	t.Helper()
	p, err := planner.NewStatic().Plan(context.Background(), planner.Request{Node: node, SQL: sql, Resolver: shop})
	require.NoError(t, err)
	return p
}

func codes(ds []analysis.Diagnostic) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.Code)
	}
	return out
}

func runModel(t *testing.T, pass analysis.ModelPass, sql string, declared ...core.TypedColumn) []analysis.Diagnostic {
	t.Helper()
	p := plan(t, "m", sql)
	ctx := &analysis.Context{
		Order: []string{"m"},
		Plans: map[string]*planner.Plan{"m": p},
		Nodes: map[string]*core.Model{"m": {Name: "m", Kind: core.KindSQL, Columns: declared}},
	}
	return pass.RunModel("m", p, ctx)
}

func TestTypeInference(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"compatible union", "SELECT id FROM orders UNION ALL SELECT id FROM big", nil},
		{"union type mismatch", "SELECT id FROM orders UNION SELECT email FROM customers", []string{analysis.CodeUnionTypeMismatch}},
		{"union column count", "SELECT id, amount FROM orders UNION SELECT id FROM customers", []string{analysis.CodeUnionColumnCount}},
		{"sum of numeric", "SELECT sum(amount) AS total FROM orders", nil},
		{"sum of string", "SELECT sum(status) AS total FROM orders", []string{analysis.CodeNonNumericAggregate}},
		{"avg of date", "SELECT avg(signup_date) AS d FROM customers", []string{analysis.CodeNonNumericAggregate}},
		{"widening cast", "SELECT CAST(id AS BIGINT) AS id FROM orders", nil},
		{"narrowing cast", "SELECT CAST(id AS INT) AS id FROM big", []string{analysis.CodeLossyCast}},
		{"string to int", "SELECT CAST(code AS INT) AS code FROM customers", []string{analysis.CodeLossyCast}},
		{"timestamp to date", "SELECT CAST(ordered_at AS DATE) AS d FROM orders", []string{analysis.CodeLossyCast}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(runModel(t, analysis.TypeInference{}, tt.sql)))
		})
	}
}

func TestTypeInference_Messages(t *testing.T) {
	ds := runModel(t, analysis.TypeInference{}, "SELECT sum(status) AS total FROM orders")
	require.Len(t, ds, 1)
	assert.Equal(t, "status", ds[0].Column)
	assert.Equal(t, "SUM() applied to non-numeric column 'orders.status'", ds[0].Message)
	assert.Equal(t, core.SeverityWarning, ds[0].Severity)
}

func TestJoinKeys(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"matching keys", "SELECT o.id FROM orders o JOIN customers c ON o.customer_id = c.id", nil},
		{"int and bigint", "SELECT o.id FROM orders o JOIN big b ON o.id = b.id", nil},
		{"date and timestamp", "SELECT o.id FROM orders o JOIN customers c ON o.ordered_at = c.signup_date", nil},
		{"int and varchar", "SELECT o.id FROM orders o JOIN customers c ON o.id = c.code", []string{analysis.CodeJoinKeyType}},
		{"cross join", "SELECT o.id FROM orders o CROSS JOIN customers c", []string{analysis.CodeJoinNoCondition}},
		{"comma join", "SELECT o.id FROM orders o, customers c", []string{analysis.CodeJoinNoCondition}},
		{"non equi", "SELECT o.id FROM orders o JOIN customers c ON o.customer_id = c.id AND o.ordered_at > c.signup_date", []string{analysis.CodeNonEquiJoin}},
		{"using", "SELECT id FROM orders JOIN customers USING (id)", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(runModel(t, analysis.JoinKeys{}, tt.sql)))
		})
	}
}

func TestNullability(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		declared []core.TypedColumn
		want     []string
	}{
		{
			name: "inner join is safe",
			sql:  "SELECT c.email FROM orders o JOIN customers c ON o.customer_id = c.id",
		},
		{
			name: "left join unguarded",
			sql:  "SELECT o.id, c.email FROM orders o LEFT JOIN customers c ON o.customer_id = c.id",
			want: []string{analysis.CodeUnguardedNullable},
		},
		{
			name: "coalesce guards",
			sql:  "SELECT o.id, coalesce(c.email, 'none') AS email FROM orders o LEFT JOIN customers c ON o.customer_id = c.id",
		},
		{
			name: "where filter guards",
			sql:  "SELECT o.id, c.email FROM orders o LEFT JOIN customers c ON o.customer_id = c.id WHERE c.email IS NOT NULL",
		},
		{
			name: "aggregates guard",
			sql:  "SELECT o.id, count(c.email) AS n FROM orders o LEFT JOIN customers c ON o.customer_id = c.id GROUP BY o.id",
		},
		{
			name:     "declared not null after join",
			sql:      "SELECT o.id, c.email FROM orders o LEFT JOIN customers c ON o.customer_id = c.id",
			declared: []core.TypedColumn{col("email", "VARCHAR", core.NotNull)},
			want:     []string{analysis.CodeUnguardedNullable, analysis.CodeNotNullAfterJoin},
		},
		{
			name: "redundant null check",
			sql:  "SELECT id FROM orders WHERE id IS NOT NULL",
			want: []string{analysis.CodeRedundantNullCheck},
		},
		{
			name: "nullable column check is fine",
			sql:  "SELECT id FROM orders WHERE status IS NULL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(runModel(t, analysis.Nullability{}, tt.sql, tt.declared...)))
		})
	}
}

// project builds a context over nodes planned in the given order, each
// reading from shop or from earlier nodes.
type projectNode struct {
	name     string
	sql      string
	declared []core.TypedColumn
	deps     []string
}

func project(t *testing.T, nodes ...projectNode) *analysis.Context {
	t.Helper()
	res := tables{}
	for k, v := range shop {
		res[k] = v
	}
	ctx := &analysis.Context{
		Plans:   make(map[string]*planner.Plan),
		Nodes:   make(map[string]*core.Model),
		Catalog: make(map[string][]core.TypedColumn),
		Graph:   dag.NewGraph(),
	}
	for _, n := range nodes {
		p, err := planner.NewStatic().Plan(context.Background(), planner.Request{Node: n.name, SQL: n.sql, Resolver: res})
		require.NoError(t, err, n.name)
		res[n.name] = p.Columns
		ctx.Order = append(ctx.Order, n.name)
		ctx.Plans[n.name] = p
		ctx.Catalog[n.name] = p.Columns
		ctx.Nodes[n.name] = &core.Model{Name: n.name, Kind: core.KindSQL, Columns: n.declared}
		ctx.Graph.AddNode(n.name, nil)
		for _, d := range n.deps {
			require.NoError(t, ctx.Graph.AddEdge(d, n.name))
		}
	}
	return ctx
}

func TestUnusedColumns(t *testing.T) {
	ctx := project(t,
		projectNode{name: "stg", sql: "SELECT id, customer_id, status FROM orders"},
		projectNode{name: "fct", sql: "SELECT id FROM stg WHERE status = 'paid'", deps: []string{"stg"}},
	)

	ds := analysis.UnusedColumns{}.RunProject(ctx)
	require.Len(t, ds, 1)
	assert.Equal(t, analysis.CodeUnusedColumn, ds[0].Code)
	assert.Equal(t, "stg", ds[0].Node)
	assert.Equal(t, "customer_id", ds[0].Column)
}

func TestUnusedColumns_SkipsUnplannedDependents(t *testing.T) {
	ctx := project(t,
		projectNode{name: "stg", sql: "SELECT id, customer_id FROM orders"},
		projectNode{name: "fct", sql: "SELECT id FROM stg", deps: []string{"stg"}},
	)
	delete(ctx.Plans, "fct")

	assert.Empty(t, analysis.UnusedColumns{}.RunProject(ctx))
}

func TestCrossModel(t *testing.T) {
	ctx := project(t,
		projectNode{name: "a", sql: "SELECT id, status FROM orders"},
		projectNode{name: "b", sql: "SELECT b.id, c.email AS status FROM big b, customers c"},
	)

	ds := analysis.CrossModel{}.RunProject(ctx)
	assert.ElementsMatch(t, []string{analysis.CodeCrossModelType, analysis.CodeCrossModelNullable}, codes(ds))
	for _, d := range ds {
		assert.Equal(t, "b", d.Node)
	}
}

func TestDescriptionDrift(t *testing.T) {
	ctx := project(t,
		projectNode{name: "stg", sql: "SELECT id, amount FROM orders", declared: []core.TypedColumn{
			{Name: "id", Type: core.Int(), Description: "Order id"},
			{Name: "amount", Type: core.Decimal(10, 2), Description: "Order amount"},
		}},
		projectNode{name: "fct", sql: "SELECT id, amount, amount * 2 AS doubled, amount + 1 AS bumped FROM stg", deps: []string{"stg"}, declared: []core.TypedColumn{
			{Name: "id", Type: core.Int()},
			{Name: "amount", Type: core.Decimal(10, 2), Description: "Amount in cents"},
			{Name: "doubled", Type: core.Decimal(0, 0)},
			{Name: "bumped", Type: core.Decimal(0, 0), Description: "Amount plus one"},
		}},
	)

	ds := analysis.DescriptionDrift{}.RunProject(ctx)
	require.Len(t, ds, 3, "%v", ds)
	byColumn := make(map[string]string)
	for _, d := range ds {
		assert.Equal(t, "fct", d.Node)
		byColumn[d.Column] = d.Code
	}
	assert.Equal(t, map[string]string{
		"id":      analysis.CodeDescriptionMissing,
		"amount":  analysis.CodeDescriptionDiffers,
		"doubled": analysis.CodeDescriptionUndocumented,
	}, byColumn)
}

func TestClassification(t *testing.T) {
	ctx := project(t,
		projectNode{name: "stg", sql: "SELECT id, email FROM customers", declared: []core.TypedColumn{
			{Name: "id", Type: core.Int(), Classification: core.ClassificationInternal},
			{Name: "email", Type: core.Varchar(0), Classification: core.ClassificationPII},
		}},
		projectNode{name: "fct", sql: "SELECT id, lower(email) AS email_lower FROM stg", deps: []string{"stg"}, declared: []core.TypedColumn{
			{Name: "id", Type: core.Int(), Classification: core.ClassificationSensitive},
			{Name: "email_lower", Type: core.Varchar(0), Classification: core.ClassificationPublic},
		}},
	)

	ds := analysis.Classification{}.RunProject(ctx)
	require.Len(t, ds, 1)
	assert.Equal(t, analysis.CodeClassificationDowngrade, ds[0].Code)
	assert.Equal(t, "email_lower", ds[0].Column)
	assert.Contains(t, ds[0].Message, "(pii) but is classified as public")
}
