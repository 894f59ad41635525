package analysis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

func TestNewManager_PassFilter(t *testing.T) {
	m, err := analysis.NewManager(analysis.Options{Passes: []string{"join_keys", " Unused_Columns "}})
	require.NoError(t, err)
	assert.Equal(t, []string{analysis.PassJoinKeys, analysis.PassUnusedColumns}, m.Passes())

	all, err := analysis.NewManager(analysis.Options{})
	require.NoError(t, err)
	assert.Len(t, all.Passes(), len(analysis.PassNames()))

	_, err = analysis.NewManager(analysis.Options{Passes: []string{"nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid passes")
}

func TestNewManager_RejectsUnknownOverride(t *testing.T) {
	_, err := analysis.NewManager(analysis.Options{Overrides: analysis.Overrides{"A999": core.SeverityError}})
	require.ErrorIs(t, err, analysis.ErrUnknownCode)
}

func TestManager_Run(t *testing.T) {
	ctx := project(t,
		projectNode{name: "stg", sql: "SELECT id, customer_id, status FROM orders"},
		projectNode{name: "fct", sql: "SELECT s.id, c.email FROM stg s LEFT JOIN customers c ON s.customer_id = c.id", deps: []string{"stg"}},
	)

	m, err := analysis.NewManager(analysis.Options{})
	require.NoError(t, err)
	ds, err := m.Run(context.Background(), ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{analysis.CodeUnguardedNullable, analysis.CodeUnusedColumn}, codes(ds))
	assert.Equal(t, "fct", ds[0].Node)
	assert.Equal(t, analysis.PassNullability, ds[0].Pass)
	assert.Equal(t, "stg", ds[1].Node)
	assert.Equal(t, "status", ds[1].Column)
	assert.Equal(t, analysis.PassUnusedColumns, ds[1].Pass)
}

func TestManager_RunAppliesOverrides(t *testing.T) {
	ctx := project(t,
		projectNode{name: "stg", sql: "SELECT id, customer_id, status FROM orders"},
		projectNode{name: "fct", sql: "SELECT s.id, c.email FROM stg s LEFT JOIN customers c ON s.customer_id = c.id", deps: []string{"stg"}},
	)

	m, err := analysis.NewManager(analysis.Options{Overrides: analysis.Overrides{
		analysis.CodeUnusedColumn:      core.SeverityOff,
		analysis.CodeUnguardedNullable: core.SeverityError,
	}})
	require.NoError(t, err)
	ds, err := m.Run(context.Background(), ctx)
	require.NoError(t, err)

	require.Len(t, ds, 1)
	assert.Equal(t, analysis.CodeUnguardedNullable, ds[0].Code)
	assert.Equal(t, core.SeverityError, ds[0].Severity)
	assert.True(t, analysis.HasFatal(ds))
}

func TestManager_RunCanceled(t *testing.T) {
	ctx := project(t, projectNode{name: "stg", sql: "SELECT id FROM orders"})
	m, err := analysis.NewManager(analysis.Options{})
	require.NoError(t, err)

	c, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(c, ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseOverrides(t *testing.T) {
	o, err := analysis.ParseOverrides(map[string]string{"a020": "off", " SA02 ": "error"})
	require.NoError(t, err)
	assert.Equal(t, core.SeverityOff, o.Severity(analysis.CodeUnusedColumn))
	assert.Equal(t, core.SeverityError, o.Severity(analysis.CodeSchemaMismatch))
	assert.Equal(t, core.SeverityWarning, o.Severity(analysis.CodeJoinKeyType), "defaults still apply")

	_, err = analysis.ParseOverrides(map[string]string{"X001": "error"})
	require.ErrorIs(t, err, analysis.ErrUnknownCode)

	_, err = analysis.ParseOverrides(map[string]string{"A020": "loud"})
	require.Error(t, err)
}

func TestOverrides_AlwaysFatalCodes(t *testing.T) {
	tests := []struct {
		code    string
		sev     core.Severity
		wantErr bool
	}{
		{analysis.CodeCycle, core.SeverityOff, true},
		{analysis.CodeCTE, core.SeverityInfo, true},
		{analysis.CodeParse, core.SeverityWarning, true},
		{analysis.CodeDuplicateNode, core.SeverityHint, true},
		{analysis.CodeBlocked, core.SeverityOff, true},
		{analysis.CodePlanFailed, core.SeverityWarning, true},
		{analysis.CodeCycle, core.SeverityError, false},
		{analysis.CodeMissingColumn, core.SeverityWarning, false},
		{analysis.CodeUnusedColumn, core.SeverityOff, false},
	}
	for _, tt := range tests {
		t.Run(tt.code+"="+tt.sev.String(), func(t *testing.T) {
			err := analysis.Overrides{tt.code: tt.sev}.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, analysis.ErrFatalOverride)
				assert.Contains(t, err.Error(), tt.code)
				return
			}
			require.NoError(t, err)
		})
	}

	_, err := analysis.ParseOverrides(map[string]string{"e003": "off"})
	require.ErrorIs(t, err, analysis.ErrFatalOverride)
	assert.True(t, analysis.IsAlwaysFatal(analysis.CodeCycle))
	assert.False(t, analysis.IsAlwaysFatal(analysis.CodeSchemaMismatch))
}

func TestOverrides_Strict(t *testing.T) {
	base := analysis.Overrides{analysis.CodeSchemaMismatch: core.SeverityInfo}
	assert.Equal(t, core.SeverityInfo, base.Strict().Severity(analysis.CodeSchemaMismatch), "explicit overrides win")
	assert.Equal(t, core.SeverityError, analysis.Overrides{}.Strict().Severity(analysis.CodeSchemaMismatch))
	assert.NotContains(t, base.Strict(), analysis.CodeMissingColumn)
}

func TestSortAndCount(t *testing.T) {
	ds := []analysis.Diagnostic{
		analysis.New(analysis.CodeUnusedColumn, "b", "x", "m"),
		analysis.New(analysis.CodeCycle, "", "", "cycle"),
		analysis.New(analysis.CodeJoinKeyType, "a", "", "m"),
		analysis.New(analysis.CodeUnusedColumn, "a", "y", "m"),
	}
	analysis.Sort(ds)

	assert.Equal(t, []string{analysis.CodeCycle, analysis.CodeUnusedColumn, analysis.CodeJoinKeyType, analysis.CodeUnusedColumn}, codes(ds))
	assert.Equal(t, "y", ds[1].Column)
	assert.Equal(t, "", ds[0].Node, "project-wide diagnostics first")
	assert.Equal(t, "a", ds[1].Node)
	assert.Len(t, analysis.ForNode(ds, "a"), 2)
	assert.True(t, analysis.HasFatal(ds))
}

func TestCodes(t *testing.T) {
	info, ok := analysis.Lookup("A030")
	require.True(t, ok)
	assert.Equal(t, "join_keys", info.Group)
	assert.Equal(t, core.SeverityWarning, analysis.DefaultSeverity(analysis.CodeJoinKeyType))

	valid := analysis.ValidCodes()
	assert.IsNonDecreasing(t, valid)
	assert.Contains(t, valid, analysis.CodeClassificationDowngrade)
}
