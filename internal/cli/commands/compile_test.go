package commands

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	clitest "github.com/leapstack-labs/leapcheck/internal/cli/testutil"
	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/internal/loader"
	"github.com/leapstack-labs/leapcheck/internal/testutil"
)

func compileFiles(t *testing.T, files map[string]string) *compile.Result {
	t.Helper()
	dir := testutil.WriteProject(t, files)
	p, err := loader.Load(loader.Dirs{ProjectDir: dir, DefaultSchema: "main"})
	require.NoError(t, err)
	res, err := compile.Compile(context.Background(), p, compile.Options{})
	require.NoError(t, err)
	return res
}

func TestRenderDiagnostics(t *testing.T) {
	res := compileFiles(t, testutil.ShopProject())

	tests := []struct {
		mode output.Mode
		want []string
	}{
		{output.ModeText, []string{"warning", "A052", "stg_orders.dollars: ", "3 nodes, 0 errors, 1 warning, 0 blocked"}},
		{output.ModeMarkdown, []string{"# Diagnostics", "- **A052** (warning) `stg_orders.dollars`:", "- **Warnings:** 1"}},
		{output.ModeTable, []string{"A052", "SEVERITY", "stg_orders"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			tr := clitest.NewTestRenderer(tt.mode)
			require.NoError(t, renderDiagnostics(tr.Renderer, res, res.Diagnostics))

			out := tr.Output()
			clitest.AssertNoANSI(t, out)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestRenderDiagnostics_JSON(t *testing.T) {
	res := compileFiles(t, map[string]string{
		"models/a.sql": "SELECT x FROM b",
		"models/b.sql": "SELECT x FROM a",
	})

	tr := clitest.NewTestRenderer(output.ModeJSON)
	require.NoError(t, renderDiagnostics(tr.Renderer, res, res.Diagnostics))

	var got diagnosticsOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	assert.True(t, got.Summary.Fatal)
	assert.Equal(t, 1, got.Summary.Errors)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, analysis.CodeCycle, got.Diagnostics[0].Code)
	assert.NotNil(t, got.Blocked)
	assert.NotNil(t, got.Failed)
}

func TestRenderDiagnostics_Empty(t *testing.T) {
	res := compileFiles(t, map[string]string{"models/a.sql": "SELECT 1 AS x"})

	tr := clitest.NewTestRenderer(output.ModeMarkdown)
	require.NoError(t, renderDiagnostics(tr.Renderer, res, nil))
	assert.Contains(t, tr.Output(), "No diagnostics.")
}

func TestSummaryLine(t *testing.T) {
	assert.Equal(t, "2 nodes, 1 error, 2 warnings, 1 blocked (0s)",
		summaryLine(compile.Summary{Nodes: 2, Errors: 1, Warnings: 2, Blocked: 1}))
}
