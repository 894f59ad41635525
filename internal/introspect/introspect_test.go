package introspect_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/introspect"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

var columnHeader = []string{
	"column_name", "data_type", "is_nullable",
	"numeric_precision", "numeric_scale", "character_maximum_length",
}

func newMock(t *testing.T) (*introspect.Introspector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return introspect.New(db, "", nil), mock
}

func TestColumns_MapsPostgresTypes(t *testing.T) {
	in, mock := newMock(t)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("warehouse", "events").
		WillReturnRows(sqlmock.NewRows(columnHeader).
			AddRow("id", "bigint", "NO", 64, 0, nil).
			AddRow("amount", "numeric", "YES", 12, 2, nil).
			AddRow("kind", "character varying", "YES", nil, nil, 32).
			AddRow("at", "timestamp with time zone", "NO", nil, nil, nil).
			AddRow("tags", "ARRAY", "YES", nil, nil, nil))

	cols, ok, err := in.Columns(context.Background(), "warehouse.events")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cols, 5)

	tests := []struct {
		name string
		typ  string
		null core.Nullability
	}{
		{"id", "BIGINT", core.NotNull},
		{"amount", "DECIMAL(12,2)", core.Nullable},
		{"kind", "VARCHAR(32)", core.Nullable},
		{"at", "TIMESTAMP", core.NotNull},
		{"tags", "UNKNOWN", core.Nullable},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.name, cols[i].Name)
		assert.Equal(t, tt.typ, cols[i].Type.String(), tt.name)
		assert.Equal(t, tt.null, cols[i].Nullability, tt.name)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestColumns_DefaultSchemaAndThreePartNames(t *testing.T) {
	in, mock := newMock(t)

	mock.ExpectQuery("information_schema").WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows(columnHeader).AddRow("id", "integer", "NO", 32, 0, nil))
	mock.ExpectQuery("information_schema").WithArgs("analytics", "visits").
		WillReturnRows(sqlmock.NewRows(columnHeader))

	cols, ok, err := in.Columns(context.Background(), "users")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "INTEGER", cols[0].Type.String())

	_, ok, err = in.Columns(context.Background(), "prod.analytics.visits")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeed_SkipsMissingRelations(t *testing.T) {
	in, mock := newMock(t)

	// Seed queries in sorted order.
	mock.ExpectQuery("information_schema").WithArgs("public", "a").
		WillReturnRows(sqlmock.NewRows(columnHeader).AddRow("x", "text", "YES", nil, nil, nil))
	mock.ExpectQuery("information_schema").WithArgs("public", "b").
		WillReturnRows(sqlmock.NewRows(columnHeader))

	seeded, err := in.Seed(context.Background(), []string{"b", "a"})
	require.NoError(t, err)
	assert.Len(t, seeded, 1)
	assert.Equal(t, "VARCHAR", seeded["a"][0].Type.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeed_QueryError(t *testing.T) {
	in, mock := newMock(t)

	mock.ExpectQuery("information_schema").WillReturnError(errors.New("connection reset"))

	_, err := in.Seed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "introspect a")
	assert.Contains(t, err.Error(), "connection reset")
}
