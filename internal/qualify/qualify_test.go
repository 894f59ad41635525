package qualify_test

import (
	"testing"

	"github.com/leapstack-labs/leapcheck/internal/qualify"
	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQualifier() *qualify.Qualifier {
	return qualify.New(map[string]qualify.Target{
		"stg":        {Schema: "main"},
		"fct":        {Schema: "main"},
		"dim_region": {Schema: "analytics", Database: "warehouse"},
		"local_db":   {Schema: "core", Database: "DEV"},
	}, "dev")
}

func TestQualifySQL_BareReference(t *testing.T) {
	out, res, err := newQualifier().QualifySQL("SELECT id FROM stg", "fct")
	require.NoError(t, err)

	assert.Equal(t, "SELECT\n  id\nFROM main.stg\n", out)
	assert.Equal(t, []string{"stg"}, res.Rewritten)
}

func TestQualifySQL_DottedLeftUntouched(t *testing.T) {
	sql := "select id from other.stg  where  id > 0"
	out, res, err := newQualifier().QualifySQL(sql, "fct")
	require.NoError(t, err)

	assert.Equal(t, sql, out)
	assert.False(t, res.Changed())
}

func TestQualifySQL_StringLiteralUntouched(t *testing.T) {
	out, _, err := newQualifier().QualifySQL("SELECT 'from stg' AS note, id FROM stg -- stg\n", "fct")
	require.NoError(t, err)

	assert.Contains(t, out, "'from stg' AS note")
	assert.Contains(t, out, "FROM main.stg")
	assert.Contains(t, out, "-- stg")
}

func TestQualifySQL_SubstringNotMatched(t *testing.T) {
	sql := "SELECT * FROM stg_orders JOIN fct_x ON stg_orders.id = fct_x.id"
	out, res, err := newQualifier().QualifySQL(sql, "other")
	require.NoError(t, err)

	assert.Equal(t, sql, out)
	assert.Empty(t, res.Rewritten)
}

func TestQualifySQL_SelfReference(t *testing.T) {
	sql := "SELECT id FROM fct WHERE id > 0"
	out, res, err := newQualifier().QualifySQL(sql, "fct")
	require.NoError(t, err)

	assert.Equal(t, sql, out)
	assert.Equal(t, 1, res.SelfReferences)

	out, res, err = newQualifier().QualifySQL("SELECT f.id FROM fct f JOIN stg s ON s.id = f.id", "fct")
	require.NoError(t, err)
	assert.Contains(t, out, "FROM fct AS f")
	assert.Contains(t, out, "JOIN main.stg AS s")
	assert.Equal(t, 1, res.SelfReferences)
}

func TestQualify_Databases(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM dim_region", "warehouse.analytics.dim_region"},
		// Same database as the project default, compared case-insensitively.
		{"SELECT * FROM local_db", "core.local_db"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			stmt, err := parser.Parse(tt.sql)
			require.NoError(t, err)

			res := newQualifier().Qualify(stmt, "")
			require.True(t, res.Changed())

			table := stmt.Body.Left.From.Source
			assert.Equal(t, tt.want, tableName(t, table))
		})
	}
}

func TestQualify_Subqueries(t *testing.T) {
	stmt, err := parser.Parse("SELECT id FROM stg WHERE id IN (SELECT id FROM fct) UNION SELECT id FROM dim_region")
	require.NoError(t, err)

	res := newQualifier().Qualify(stmt, "")
	assert.Equal(t, []string{"dim_region", "fct", "stg"}, res.Rewritten)
}

func TestQualify_CTENamesSkipped(t *testing.T) {
	stmt, err := parser.Parse("WITH stg AS (SELECT 1 AS id) SELECT id FROM stg")
	require.NoError(t, err)

	res := newQualifier().Qualify(stmt, "")
	assert.False(t, res.Changed())
}

func TestQualify_PreservesQuoting(t *testing.T) {
	out, _, err := newQualifier().QualifySQL(`SELECT * FROM "Stg"`, "")
	require.NoError(t, err)
	assert.Contains(t, out, `FROM main."Stg"`)
}

func tableName(t *testing.T, ref any) string {
	t.Helper()
	table, ok := ref.(*core.TableName)
	require.True(t, ok)
	return table.Qualified()
}
