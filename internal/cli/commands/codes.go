package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// CodeOutput is one row of the codes command.
type CodeOutput struct {
	analysis.CodeInfo
	Effective core.Severity `json:"effective_severity"`
}

// NewCodesCommand creates the codes command.
func NewCodesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List diagnostic codes",
		Long: `List every diagnostic code with its default severity and the severity in
effect after the configured overrides and --strict are applied.`,
		Example: `  leapcheck codes
  leapcheck codes --strict -o table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)
			overrides := c.Cfg.Overrides()
			if c.Cfg.Analysis.Strict {
				overrides = overrides.Strict()
			}

			infos := analysis.Codes()
			rows := make([]CodeOutput, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, CodeOutput{CodeInfo: info, Effective: overrides.Severity(info.Code)})
			}

			r := c.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(rows)
			}
			if r.EffectiveMode() == output.ModeMarkdown {
				r.Println(output.FormatHeader(1, "Diagnostic Codes"))
				r.Println("")
			}
			table := make([][]string, 0, len(rows))
			styles := r.Styles()
			for _, row := range rows {
				effective := row.Effective.String()
				if r.EffectiveMode() == output.ModeText && row.Effective != row.Severity {
					effective = styles.Severity(row.Effective).Render(effective)
				}
				table = append(table, []string{row.Code, row.Group, row.Severity.String(), effective, row.Summary})
			}
			r.Table([]string{"Code", "Group", "Default", "Effective", "Summary"}, table)
			return nil
		},
	}
}
