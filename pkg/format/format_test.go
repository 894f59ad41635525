package format_test

import (
	"testing"

	"github.com/leapstack-labs/leapcheck/pkg/format"
	"github.com/leapstack-labs/leapcheck/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_BasicSelect(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:  "simple select",
			input: "SELECT a, b FROM t",
			expected: `SELECT
  a,
  b
FROM t
`,
		},
		{
			name:  "select with where",
			input: "SELECT a FROM t WHERE x = 1",
			expected: `SELECT
  a
FROM t
WHERE
  x = 1
`,
		},
		{
			name:  "select with alias",
			input: "SELECT a AS col1, b col2 FROM t",
			expected: `SELECT
  a AS col1,
  b AS col2
FROM t
`,
		},
		{
			name:  "select table star",
			input: "SELECT t.* FROM t",
			expected: `SELECT
  t.*
FROM t
`,
		},
		{
			name:  "left join",
			input: "SELECT a.id FROM a LEFT JOIN b ON a.id = b.id",
			expected: `SELECT
  a.id
FROM a
LEFT JOIN b
  ON a.id = b.id
`,
		},
		{
			name:  "group order limit",
			input: "select k, sum(v) from t group by k order by k desc nulls first limit 5",
			expected: `SELECT
  k,
  sum(v)
FROM t
GROUP BY
  k
ORDER BY
  k DESC NULLS FIRST
LIMIT 5
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := parser.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, format.Format(stmt))
		})
	}
}

func TestFormat_PreservesQuotingAndLiterals(t *testing.T) {
	stmt, err := parser.Parse(`SELECT "Order Id", 'it''s' AS s FROM "Orders"`)
	require.NoError(t, err)

	assert.Equal(t, `SELECT
  "Order Id",
  'it''s' AS s
FROM "Orders"
`, format.Format(stmt))
}

func TestFormat_Comments(t *testing.T) {
	stmt, err := parser.Parse("-- keep me\nSELECT 1 /* and me */")
	require.NoError(t, err)

	assert.Equal(t, "-- keep me\n/* and me */\nSELECT\n  1\n", format.Format(stmt))
}

func TestFormat_Expr(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a+b*c", "a + b * c"},
		{"x::int", "x::INT"},
		{"cast(x as decimal(10,2))", "CAST(x AS DECIMAL(10,2))"},
		{"date '2024-01-01'", "DATE '2024-01-01'"},
		{"a not between 1 and 2", "a NOT BETWEEN 1 AND 2"},
		{"name ilike 'a%'", "name ILIKE 'a%'"},
		{"coalesce(a, 0) is not null", "coalesce(a, 0) IS NOT NULL"},
		{"row_number() over (partition by a order by b rows unbounded preceding)",
			"row_number() OVER (PARTITION BY a ORDER BY b ROWS UNBOUNDED PRECEDING)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := parser.ParseExpr(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, format.Expr(expr))
		})
	}
}

// Formatting must be a fixed point: formatted output parses back to a
// statement that formats identically.
func TestFormat_Stable(t *testing.T) {
	inputs := []string{
		"SELECT a FROM x UNION ALL SELECT a FROM y EXCEPT SELECT a FROM z",
		"WITH c (id) AS (SELECT id FROM t) SELECT * FROM c",
		"SELECT * FROM a, b CROSS JOIN c NATURAL JOIN d JOIN e USING (id)",
		"SELECT CASE WHEN a > 0 THEN 'p' ELSE 'n' END AS sign FROM t",
		"SELECT id FROM t WHERE id IN (SELECT id FROM u) AND NOT EXISTS (SELECT 1 FROM v WHERE v.id = t.id)",
		"SELECT (SELECT max(x) FROM m) AS mx, -amount, NOT flag FROM s.t LIMIT 1 OFFSET 2",
		"SELECT * FROM LATERAL (SELECT 1) l, generate_series(1, 3) g",
		"SELECT a FROM t WHERE (a = 1 OR b = 2) AND c = 3 AND d = 4 AND e = 5",
	}

	for _, sql := range inputs {
		t.Run(sql, func(t *testing.T) {
			stmt, err := parser.Parse(sql)
			require.NoError(t, err)
			first := format.Format(stmt)

			again, err := parser.Parse(first)
			require.NoError(t, err, first)
			assert.Equal(t, first, format.Format(again))
		})
	}
}
