package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
)

func TestMarkdownWriter_Table(t *testing.T) {
	w := NewMarkdownWriter()
	w.Table([]string{"a", "b"}, [][]string{{"x|y", "z"}})
	assert.Equal(t, "| a | b |\n| --- | --- |\n| x\\|y | z |\n\n", string(w.Bytes()))
}

func TestDedent(t *testing.T) {
	in := `
    leapcheck compile
      --select orders
    leapcheck dag`
	assert.Equal(t, "leapcheck compile\n  --select orders\nleapcheck dag", dedent(in))
}

func TestGroupTitle(t *testing.T) {
	assert.Equal(t, "Type inference", groupTitle("type_inference"))
	assert.Equal(t, "Graph", groupTitle("graph"))
	assert.Equal(t, "", groupTitle(""))
}

func TestGenerateCodesDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCodesDocs(dir))

	data, err := os.ReadFile(filepath.Join(dir, "codes.md"))
	require.NoError(t, err)
	doc := string(data)
	for _, info := range analysis.Codes() {
		assert.Contains(t, doc, "`"+info.Code+"`")
	}
	assert.Less(t, strings.Index(doc, "## Structural"), strings.Index(doc, "## Nullability"))
}

func TestGenerateCLIDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(dir))

	for _, name := range []string{"index.md", "compile.md", "serve.md", "completion.md"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	index, err := os.ReadFile(filepath.Join(dir, "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "`LEAPCHECK_PROPAGATION__WORKERS`")
	assert.Contains(t, string(index), "[`compile`](/cli/compile)")
}

func TestGenerateConfigDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateConfigDocs(dir))

	data, err := os.ReadFile(filepath.Join(dir, "configuration.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "`analysis.severity_overrides`")
	assert.Contains(t, string(data), "`127.0.0.1:8787`")
}
