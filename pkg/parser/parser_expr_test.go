package parser_test

import (
	"testing"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/parser"
	"github.com/leapstack-labs/leapcheck/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseExpr(t *testing.T, sql string) core.Expr {
	t.Helper()
	expr, err := parser.ParseExpr(sql)
	require.NoError(t, err, sql)
	return expr
}

func TestParseExpr_Precedence(t *testing.T) {
	// a + b * c  =>  a + (b * c)
	add := mustParseExpr(t, "a + b * c").(*core.BinaryExpr)
	assert.Equal(t, token.PLUS, add.Op)
	assert.Equal(t, token.STAR, add.Right.(*core.BinaryExpr).Op)

	// a - b - c  =>  (a - b) - c
	sub := mustParseExpr(t, "a - b - c").(*core.BinaryExpr)
	assert.Equal(t, "c", sub.Right.(*core.ColumnRef).Column())

	// a OR b AND c  =>  a OR (b AND c)
	or := mustParseExpr(t, "a OR b AND c").(*core.BinaryExpr)
	assert.Equal(t, token.OR, or.Op)
	assert.Equal(t, token.AND, or.Right.(*core.BinaryExpr).Op)

	// NOT a = b  =>  NOT (a = b)
	not := mustParseExpr(t, "NOT a = b").(*core.UnaryExpr)
	assert.Equal(t, token.NOT, not.Op)
	assert.Equal(t, token.EQ, not.Expr.(*core.BinaryExpr).Op)

	// -x::INT  =>  -(x::INT)
	neg := mustParseExpr(t, "-x::INT").(*core.UnaryExpr)
	assert.Equal(t, "INT", neg.Expr.(*core.CastExpr).TypeName)
}

func TestParseExpr_Predicates(t *testing.T) {
	tests := []struct {
		sql   string
		check func(t *testing.T, e core.Expr)
	}{
		{"a IS NULL", func(t *testing.T, e core.Expr) {
			assert.False(t, e.(*core.IsNullExpr).Not)
		}},
		{"a IS NOT NULL", func(t *testing.T, e core.Expr) {
			assert.True(t, e.(*core.IsNullExpr).Not)
		}},
		{"a IS NOT TRUE", func(t *testing.T, e core.Expr) {
			b := e.(*core.IsBoolExpr)
			assert.True(t, b.Not)
			assert.True(t, b.Value)
		}},
		{"a NOT IN (1, 2, 3)", func(t *testing.T, e core.Expr) {
			in := e.(*core.InExpr)
			assert.True(t, in.Not)
			assert.Len(t, in.Values, 3)
		}},
		{"a IN (SELECT id FROM t)", func(t *testing.T, e core.Expr) {
			assert.NotNil(t, e.(*core.InExpr).Query)
		}},
		{"a BETWEEN 1 AND 2 AND b", func(t *testing.T, e core.Expr) {
			and := e.(*core.BinaryExpr)
			assert.Equal(t, token.AND, and.Op)
			assert.IsType(t, &core.BetweenExpr{}, and.Left)
		}},
		{"name NOT ILIKE 'a%'", func(t *testing.T, e core.Expr) {
			like := e.(*core.LikeExpr)
			assert.True(t, like.Not)
			assert.Equal(t, token.ILIKE, like.Op)
		}},
		{"NOT EXISTS (SELECT 1 FROM t)", func(t *testing.T, e core.Expr) {
			assert.True(t, e.(*core.ExistsExpr).Not)
		}},
		{"(SELECT max(id) FROM t)", func(t *testing.T, e core.Expr) {
			assert.IsType(t, &core.SubqueryExpr{}, e)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			tt.check(t, mustParseExpr(t, tt.sql))
		})
	}
}

func TestParseExpr_Casts(t *testing.T) {
	tests := []struct {
		sql   string
		typ   string
		style core.CastStyle
	}{
		{"CAST(a AS DECIMAL(10, 2))", "DECIMAL(10,2)", core.CastFunction},
		{"CAST(a AS double precision)", "DOUBLE PRECISION", core.CastFunction},
		{"CAST(ts AS TIMESTAMP WITH TIME ZONE)", "TIMESTAMP WITH TIME ZONE", core.CastFunction},
		{"a::varchar", "VARCHAR", core.CastColons},
		{"DATE '2024-01-01'", "DATE", core.CastTypedLiteral},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			cast := mustParseExpr(t, tt.sql).(*core.CastExpr)
			assert.Equal(t, tt.typ, cast.TypeName)
			assert.Equal(t, tt.style, cast.Style)
		})
	}
}

func TestParseExpr_Case(t *testing.T) {
	c := mustParseExpr(t, "CASE WHEN a > 0 THEN 'pos' WHEN a < 0 THEN 'neg' ELSE 'zero' END").(*core.CaseExpr)
	assert.Nil(t, c.Operand)
	assert.Len(t, c.Whens, 2)
	assert.NotNil(t, c.Else)

	simple := mustParseExpr(t, "CASE status WHEN 'a' THEN 1 END").(*core.CaseExpr)
	assert.NotNil(t, simple.Operand)
	assert.Nil(t, simple.Else)
}

func TestParseExpr_Functions(t *testing.T) {
	fn := mustParseExpr(t, "count(DISTINCT customer_id)").(*core.FuncCall)
	assert.True(t, fn.Distinct)
	assert.Equal(t, "count", fn.FuncName())

	qualified := mustParseExpr(t, "util.clean_email(email)").(*core.FuncCall)
	assert.Equal(t, "util.clean_email", qualified.FuncName())

	left := mustParseExpr(t, "left(name, 3)").(*core.FuncCall)
	assert.Equal(t, "left", left.FuncName())
	assert.Len(t, left.Args, 2)

	empty := mustParseExpr(t, "now()").(*core.FuncCall)
	assert.Empty(t, empty.Args)
}

func TestParseExpr_Window(t *testing.T) {
	fn := mustParseExpr(t, `sum(amount) OVER (
		PARTITION BY customer_id
		ORDER BY created_at
		ROWS BETWEEN 2 PRECEDING AND CURRENT ROW)`).(*core.FuncCall)

	require.NotNil(t, fn.Window)
	assert.Len(t, fn.Window.PartitionBy, 1)
	assert.Len(t, fn.Window.OrderBy, 1)
	require.NotNil(t, fn.Window.Frame)
	assert.Equal(t, core.FrameRows, fn.Window.Frame.Type)
	assert.Equal(t, core.FrameExprPreceding, fn.Window.Frame.Start.Type)
	assert.Equal(t, core.FrameCurrentRow, fn.Window.Frame.End.Type)

	unbounded := mustParseExpr(t, "row_number() OVER (ORDER BY x RANGE UNBOUNDED PRECEDING)").(*core.FuncCall)
	assert.Equal(t, core.FrameUnboundedPreceding, unbounded.Window.Frame.Start.Type)
	assert.Nil(t, unbounded.Window.Frame.End)
}

func TestParseExpr_SoftKeywordsAsIdentifiers(t *testing.T) {
	for _, sql := range []string{"first", "t.last", "range + 1", "current"} {
		_, err := parser.ParseExpr(sql)
		assert.NoError(t, err, sql)
	}
}
