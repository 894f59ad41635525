package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/internal/state"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

var runCols = []string{"id", "created_at", "duration_ms", "node_count", "error_count", "warning_count", "fingerprint"}

func mockStore(t *testing.T) (*state.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return state.New(db, nil), mock
}

func TestStore_SaveRun_Statements(t *testing.T) {
	s, mock := mockStore(t)
	res := &compile.Result{
		RunID: "r1",
		Diagnostics: []analysis.Diagnostic{
			analysis.New(analysis.CodeExternal, "a", "", "relation 'x' is not declared in the project"),
		},
		Catalog: map[string][]core.TypedColumn{
			"a": {{Name: "id", Type: core.Int(), Nullability: core.NotNull}},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").
		WithArgs("r1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO diagnostics").
		WithArgs("r1", sqlmock.AnyArg(), "W003", "warning", "a", "", sqlmock.AnyArg(), "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO catalog_columns").
		WithArgs("r1", "a", sqlmock.AnyArg(), "id", "INTEGER", "not_null", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	run, err := s.SaveRun(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Warnings)
	assert.Equal(t, 0, run.Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveRun_RollsBackOnFailure(t *testing.T) {
	s, mock := mockStore(t)
	res := &compile.Result{
		RunID:       "r1",
		Diagnostics: []analysis.Diagnostic{analysis.New(analysis.CodeCycle, "", "", "circular dependency detected: a -> a")},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO diagnostics").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := s.SaveRun(context.Background(), res)
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to insert diagnostic E003")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LatestRun_Scan(t *testing.T) {
	s, mock := mockStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM runs ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(runCols).AddRow("r9", created.UnixMilli(), int64(1500), 4, 1, 2, "abc"))

	run, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &state.Run{
		ID:          "r9",
		CreatedAt:   created,
		Duration:    1500 * time.Millisecond,
		Nodes:       4,
		Errors:      1,
		Warnings:    2,
		Fingerprint: "abc",
	}, run)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LatestRun_Empty(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM runs").WillReturnRows(sqlmock.NewRows(runCols))

	_, err := s.LatestRun(context.Background())
	require.ErrorIs(t, err, state.ErrNotFound)
}

func TestStore_RunDiagnostics_BadSeverity(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM diagnostics WHERE run_id").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"code", "severity", "node", "column_name", "message", "hint", "pass"}).
			AddRow("A020", "loud", "n", "c", "m", "", "nullability"))

	_, err := s.RunDiagnostics(context.Background(), "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid severity "loud"`)
}

func TestStore_NotOpened(t *testing.T) {
	s := state.New(nil, nil)
	ctx := context.Background()

	_, err := s.LatestRun(ctx)
	assert.EqualError(t, err, "database not opened")
	_, err = s.SaveRun(ctx, &compile.Result{RunID: "x"})
	assert.EqualError(t, err, "database not opened")
	assert.NoError(t, s.Close())
}
