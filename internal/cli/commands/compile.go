package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	"github.com/leapstack-labs/leapcheck/internal/compile"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	Select string
	Save   bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:     "compile",
		Aliases: []string{"check"},
		Short:   "Compile the project and report diagnostics",
		Long: `Compile every model of the project without touching a warehouse.

Models are ordered by dependency, each query is planned against the schemas
of its parents, and the published schemas are reconciled with the declared
column contracts. Any error diagnostic makes the command exit non-zero.`,
		Example: `  # Compile the whole project
  leapcheck compile

  # Only report on a model and everything upstream of it
  leapcheck compile --select fct_revenue

  # Treat every contract mismatch as an error and save the run
  leapcheck check --strict --save

  # Machine-readable output
  leapcheck compile -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Limit reporting to a node and its upstream")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save the run to the state database")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions) error {
	c := NewCommandContext(cmd)
	ctx := cmd.Context()

	res, err := c.Compile(ctx)
	if err != nil {
		return err
	}

	diags := res.Diagnostics
	if opts.Select != "" {
		nodes, ok := res.Selection(opts.Select)
		if !ok {
			return fmt.Errorf("unknown node %q", opts.Select)
		}
		diags = res.DiagnosticsFor(nodes)
	}

	if err := renderDiagnostics(c.Renderer, res, diags); err != nil {
		return err
	}

	if opts.Save {
		if err := c.Save(ctx, res); err != nil {
			return err
		}
	}

	if analysis.HasFatal(diags) {
		return ErrFatal
	}
	return nil
}

// diagnosticsOutput is the JSON form of a compile report.
type diagnosticsOutput struct {
	Summary     compile.Summary       `json:"summary"`
	Diagnostics []analysis.Diagnostic `json:"diagnostics"`
	Failed      []string              `json:"failed"`
	Blocked     []string              `json:"blocked"`
}

func renderDiagnostics(r *output.Renderer, res *compile.Result, diags []analysis.Diagnostic) error {
	summary := res.Summary()
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if diags == nil {
			diags = []analysis.Diagnostic{}
		}
		return r.JSON(diagnosticsOutput{
			Summary:     summary,
			Diagnostics: diags,
			Failed:      nonNil(res.FailedNodes()),
			Blocked:     nonNil(res.BlockedNodes()),
		})
	case output.ModeTable:
		rows := make([][]string, 0, len(diags))
		for _, d := range diags {
			rows = append(rows, []string{d.Code, d.Severity.String(), d.Node, d.Column, d.Message})
		}
		r.Table([]string{"Code", "Severity", "Node", "Column", "Message"}, rows)
		r.Println(summaryLine(summary))
	case output.ModeMarkdown:
		diagnosticsMarkdown(r, res, diags, summary)
	default:
		diagnosticsText(r, res, diags, summary)
	}
	return nil
}

func diagnosticsText(r *output.Renderer, res *compile.Result, diags []analysis.Diagnostic, summary compile.Summary) {
	styles := r.Styles()
	for _, d := range diags {
		r.Printf("%s %s %s%s\n",
			styles.Severity(d.Severity).Render(fmt.Sprintf("%-7s", d.Severity)),
			styles.Code.Render(d.Code),
			location(r, d),
			d.Message)
		if d.Hint != "" {
			r.Printf("        %s\n", styles.Muted.Render("hint: "+d.Hint))
		}
	}
	if len(diags) > 0 {
		r.Println("")
	}
	if blocked := res.BlockedNodes(); len(blocked) > 0 {
		r.Printf("%s %s\n", styles.Warning.Render("blocked:"), strings.Join(blocked, ", "))
	}

	line := summaryLine(summary)
	switch {
	case summary.Fatal:
		r.Println(styles.Error.Render(line))
	case summary.Warnings > 0:
		r.Println(styles.Warning.Render(line))
	default:
		r.Println(styles.Success.Render(line))
	}
}

func diagnosticsMarkdown(r *output.Renderer, res *compile.Result, diags []analysis.Diagnostic, summary compile.Summary) {
	r.Println(output.FormatHeader(1, "Diagnostics"))
	r.Println("")
	if len(diags) == 0 {
		r.Println("No diagnostics.")
	}
	for _, d := range diags {
		loc := d.Node
		if d.Column != "" {
			loc += "." + d.Column
		}
		if loc != "" {
			loc = " `" + loc + "`"
		}
		r.Printf("- **%s** (%s)%s: %s\n", d.Code, d.Severity, loc, d.Message)
		if d.Hint != "" {
			r.Printf("  - hint: %s\n", d.Hint)
		}
	}
	r.Println("")

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Run", summary.RunID))
	r.Println(output.FormatKeyValue("Nodes", fmt.Sprintf("%d", summary.Nodes)))
	r.Println(output.FormatKeyValue("Errors", fmt.Sprintf("%d", summary.Errors)))
	r.Println(output.FormatKeyValue("Warnings", fmt.Sprintf("%d", summary.Warnings)))
	if blocked := res.BlockedNodes(); len(blocked) > 0 {
		r.Println(output.FormatKeyValue("Blocked", strings.Join(blocked, ", ")))
	}
}

func location(r *output.Renderer, d analysis.Diagnostic) string {
	if d.Node == "" {
		return ""
	}
	loc := d.Node
	if d.Column != "" {
		loc += "." + d.Column
	}
	return r.Styles().ModelPath.Render(loc) + ": "
}

func summaryLine(s compile.Summary) string {
	return fmt.Sprintf("%d nodes, %s, %s, %d blocked (%s)",
		s.Nodes,
		plural(s.Errors, "error"),
		plural(s.Warnings, "warning"),
		s.Blocked,
		s.Duration.Round(time.Millisecond))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
