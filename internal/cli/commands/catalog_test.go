package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	clitest "github.com/leapstack-labs/leapcheck/internal/cli/testutil"
	"github.com/leapstack-labs/leapcheck/internal/testutil"
)

func TestCatalogOutput_Origins(t *testing.T) {
	res := compileFiles(t, testutil.ShopProject())
	names := sortedNames(res.Catalog)

	t.Run("markdown", func(t *testing.T) {
		tr := clitest.NewTestRenderer(output.ModeMarkdown)
		catalogMarkdown(tr.Renderer, res, names)

		out := tr.Output()
		clitest.AssertNoANSI(t, out)
		assert.Contains(t, out, "## raw_orders\n\nOrigin: seeded")
		assert.Contains(t, out, "## stg_orders\n\nOrigin: published")
	})

	t.Run("text", func(t *testing.T) {
		tr := clitest.NewTestRenderer(output.ModeText)
		catalogText(tr.Renderer, res, names)

		out := tr.Output()
		clitest.AssertNoANSI(t, out)
		assert.Contains(t, out, "fct_revenue published")
	})
}
