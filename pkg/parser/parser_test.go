package parser_test

import (
	"testing"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/parser"
	"github.com/leapstack-labs/leapcheck/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, sql string) *core.SelectStmt {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err, sql)
	require.NotNil(t, stmt.Body)
	return stmt
}

// ---------- Statement Tests ----------

func TestParse_SimpleSelect(t *testing.T) {
	stmt := mustParse(t, "SELECT id, amt / 100.0 AS dollars FROM raw")

	sel := stmt.Body.Left
	require.Len(t, sel.Columns, 2)
	assert.Equal(t, "id", sel.Columns[0].Expr.(*core.ColumnRef).Column())
	assert.Equal(t, "dollars", sel.Columns[1].Alias.Value)

	bin, ok := sel.Columns[1].Expr.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.SLASH, bin.Op)
	assert.True(t, bin.Right.(*core.Literal).IsDecimal())

	table, ok := sel.From.Source.(*core.TableName)
	require.True(t, ok)
	assert.Equal(t, "raw", table.Name())
	assert.False(t, table.IsQualified())
}

func TestParse_Clauses(t *testing.T) {
	stmt := mustParse(t, `
		SELECT DISTINCT customer_id, count(*) AS n
		FROM orders o
		WHERE o.status = 'paid'
		GROUP BY customer_id
		HAVING count(*) > 1
		ORDER BY n DESC NULLS LAST, customer_id
		LIMIT 10 OFFSET 5;`)

	sel := stmt.Body.Left
	assert.True(t, sel.Distinct)
	assert.NotNil(t, sel.Where)
	assert.Len(t, sel.GroupBy, 1)
	assert.NotNil(t, sel.Having)
	require.Len(t, sel.OrderBy, 2)
	assert.True(t, sel.OrderBy[0].Desc)
	require.NotNil(t, sel.OrderBy[0].NullsFirst)
	assert.False(t, *sel.OrderBy[0].NullsFirst)
	assert.Nil(t, sel.OrderBy[1].NullsFirst)
	assert.NotNil(t, sel.Limit)
	assert.NotNil(t, sel.Offset)

	count := sel.Columns[1].Expr.(*core.FuncCall)
	assert.True(t, count.Star)
	assert.Equal(t, "count", count.FuncName())

	assert.Equal(t, "o", sel.From.Source.(*core.TableName).EffectiveName())
}

func TestParse_SetOperations(t *testing.T) {
	tests := []struct {
		sql  string
		want []core.SetOpType
	}{
		{"SELECT a FROM x UNION SELECT a FROM y", []core.SetOpType{core.SetOpUnion}},
		{"SELECT a FROM x UNION ALL SELECT a FROM y", []core.SetOpType{core.SetOpUnionAll}},
		{"SELECT a FROM x INTERSECT SELECT a FROM y", []core.SetOpType{core.SetOpIntersect}},
		{"SELECT a FROM x EXCEPT SELECT a FROM y UNION ALL SELECT a FROM z", []core.SetOpType{core.SetOpExcept, core.SetOpUnionAll}},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			stmt := mustParse(t, tt.sql)
			var ops []core.SetOpType
			for b := stmt.Body; b != nil && b.Op != core.SetOpNone; b = b.Right {
				ops = append(ops, b.Op)
			}
			assert.Equal(t, tt.want, ops)
			assert.Len(t, stmt.Body.Branches(), len(tt.want)+1)
		})
	}
}

func TestParse_WithClause(t *testing.T) {
	stmt := mustParse(t, "WITH recent (id) AS (SELECT id FROM orders), x AS (SELECT 1) SELECT * FROM recent")

	require.NotNil(t, stmt.With)
	require.Len(t, stmt.With.CTEs, 2)
	assert.Equal(t, "recent", stmt.With.CTEs[0].Name.Value)
	assert.Equal(t, []core.Ident{{Value: "id"}}, stmt.With.CTEs[0].Columns)
	assert.True(t, stmt.Body.Left.Columns[0].Star)
}

func TestParse_SelectItems(t *testing.T) {
	stmt := mustParse(t, `SELECT *, o.*, s.orders.*, "Total Amount" total, amount AS "Amt" FROM s.orders o`)

	cols := stmt.Body.Left.Columns
	require.Len(t, cols, 5)
	assert.True(t, cols[0].Star)
	assert.Equal(t, core.Idents("o"), cols[1].TableStar)
	assert.Equal(t, core.Idents("s", "orders"), cols[2].TableStar)

	ref := cols[3].Expr.(*core.ColumnRef)
	assert.Equal(t, "Total Amount", ref.Column())
	assert.True(t, ref.Parts[0].Quoted)
	assert.Equal(t, "total", cols[3].Alias.Value)

	assert.Equal(t, core.Ident{Value: "Amt", Quoted: true}, cols[4].Alias)
}

func TestParse_Positions(t *testing.T) {
	stmt := mustParse(t, "SELECT a\nFROM t\nWHERE b = 1")

	where := stmt.Body.Left.Where
	assert.Equal(t, 3, where.Pos().Line)
	assert.Equal(t, 7, where.Pos().Column)
	assert.Equal(t, 3, where.End().Line)
	assert.Equal(t, 12, where.End().Column)
}

func TestParse_Comments(t *testing.T) {
	stmt := mustParse(t, "-- header\nSELECT a /* inline */ FROM t")

	require.Len(t, stmt.Comments, 2)
	assert.Equal(t, token.LineComment, stmt.Comments[0].Kind)
	assert.Equal(t, "-- header", stmt.Comments[0].Text)
	assert.Equal(t, "/* inline */", stmt.Comments[1].Text)
}

// ---------- FROM Tests ----------

func TestParse_Joins(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		want    core.JoinType
		natural bool
		on      bool
		using   int
	}{
		{"plain join", "SELECT * FROM a JOIN b ON a.id = b.id", core.JoinInner, false, true, 0},
		{"inner join", "SELECT * FROM a INNER JOIN b ON a.id = b.id", core.JoinInner, false, true, 0},
		{"left outer", "SELECT * FROM a LEFT OUTER JOIN b ON a.id = b.id", core.JoinLeft, false, true, 0},
		{"right", "SELECT * FROM a RIGHT JOIN b USING (id)", core.JoinRight, false, false, 1},
		{"full", "SELECT * FROM a FULL JOIN b USING (id, day)", core.JoinFull, false, false, 2},
		{"cross", "SELECT * FROM a CROSS JOIN b", core.JoinCross, false, false, 0},
		{"comma", "SELECT * FROM a, b", core.JoinComma, false, false, 0},
		{"natural left", "SELECT * FROM a NATURAL LEFT JOIN b", core.JoinLeft, true, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := mustParse(t, tt.sql)
			from := stmt.Body.Left.From
			require.Len(t, from.Joins, 1)

			join := from.Joins[0]
			assert.Equal(t, tt.want, join.Type)
			assert.Equal(t, tt.natural, join.Natural)
			assert.Equal(t, tt.on, join.Condition != nil)
			assert.Len(t, join.Using, tt.using)
		})
	}
}

func TestParse_JoinErrors(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM a NATURAL JOIN b ON a.id = b.id", "NATURAL JOIN cannot have ON"},
		{"SELECT * FROM a CROSS JOIN b ON a.id = b.id", "CROSS JOIN cannot have ON"},
		{"SELECT * FROM a NATURAL b", "expected JOIN"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			_, err := parser.Parse(tt.sql)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_TableRefs(t *testing.T) {
	stmt := mustParse(t, `SELECT * FROM warehouse.sales."Orders" AS o, calendar(2024) c, (SELECT 1 AS x) d`)

	from := stmt.Body.Left.From
	table := from.Source.(*core.TableName)
	assert.Equal(t, "warehouse.sales.Orders", table.Qualified())
	assert.True(t, table.Parts[2].Quoted)
	assert.Equal(t, "o", table.EffectiveName())

	fn := from.Joins[0].Right.(*core.TableFunc)
	assert.Equal(t, "calendar", fn.Qualified())
	assert.Len(t, fn.Args, 1)
	assert.Equal(t, "c", fn.EffectiveName())

	derived := from.Joins[1].Right.(*core.DerivedTable)
	assert.Equal(t, "d", derived.Alias.Value)
	assert.NotNil(t, derived.Select)
}

// ---------- Error Tests ----------

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"empty", "", "expected SELECT or WITH, got end of input"},
		{"dml", "INSERT INTO t VALUES (1)", "expected SELECT or WITH"},
		{"two statements", "SELECT 1; SELECT 2", "after end of statement"},
		{"unterminated string", "SELECT 'abc", "unterminated string literal"},
		{"unterminated comment", "SELECT 1 /* oops", "unterminated block comment"},
		{"dangling operator", "SELECT a + FROM t", "in expression"},
		{"missing paren", "SELECT count(a FROM t", "expected )"},
		{"bad is", "SELECT a IS 3 FROM t", "expected NULL, TRUE or FALSE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.sql)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var perr *parser.ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseError_Position(t *testing.T) {
	_, err := parser.Parse("SELECT a\nFROM t\nWHERE ?")
	require.Error(t, err)

	var perr *parser.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Pos.Line)
	assert.Equal(t, 7, perr.Pos.Column)
	assert.Contains(t, err.Error(), "parse error at line 3, column 7")
}
