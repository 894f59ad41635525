package state_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/internal/loader"
	"github.com/leapstack-labs/leapcheck/internal/state"
	"github.com/leapstack-labs/leapcheck/internal/testutil"
)

func openStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func compileShop(t *testing.T) *compile.Result {
	t.Helper()
	dir := testutil.WriteProject(t, testutil.ShopProject())
	p, err := loader.Load(loader.Dirs{ProjectDir: dir, DefaultSchema: "main"})
	require.NoError(t, err)
	res, err := compile.Compile(context.Background(), p, compile.Options{})
	require.NoError(t, err)
	return res
}

func TestStore_Migrate(t *testing.T) {
	s := openStore(t)

	v, err := s.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	require.NoError(t, s.Migrate(), "migrating twice is a no-op")
}

func TestStore_OpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	s, err := state.Open(path, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, path, s.Path())
	assert.FileExists(t, path)
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	res := compileShop(t)

	saved, err := s.SaveRun(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, saved.ID)
	assert.Equal(t, 3, saved.Nodes)
	assert.Equal(t, 0, saved.Errors)
	assert.Equal(t, 1, saved.Warnings)
	assert.Len(t, saved.Fingerprint, 64)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, latest)

	byID, err := s.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, saved, byID)

	diags, err := s.RunDiagnostics(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Diagnostics, diags)

	cat, err := s.RunCatalog(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, cat, len(res.Catalog))
	for node, cols := range res.Catalog {
		require.Len(t, cat[node], len(cols), node)
		for i, col := range cols {
			assert.Equal(t, col.Name, cat[node][i].Name)
			assert.Equal(t, col.Type.String(), cat[node][i].Type.String())
			assert.Equal(t, col.Nullability, cat[node][i].Nullability)
			assert.Equal(t, col.Description, cat[node][i].Description)
		}
	}

	edges, err := s.RunLineage(ctx, res.RunID, "fct_revenue")
	require.NoError(t, err)
	assert.Equal(t, res.Lineage["fct_revenue"], edges)
}

func TestStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first, err := s.SaveRun(ctx, compileShop(t))
	require.NoError(t, err)
	second, err := s.SaveRun(ctx, compileShop(t))
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint, "same project, same fingerprint")

	runs, err = s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.LatestRun(ctx)
	require.ErrorIs(t, err, state.ErrNotFound)

	_, err = s.GetRun(ctx, "missing")
	require.ErrorIs(t, err, state.ErrNotFound)
	assert.Contains(t, err.Error(), "missing")

	diags, err := s.RunDiagnostics(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, diags)
}
