package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	"github.com/leapstack-labs/leapcheck/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List saved compile runs",
		Long: `List the compile runs saved with --save, newest first. With a run ID,
show the diagnostics recorded for that run.`,
		Example: `  leapcheck runs
  leapcheck runs --limit 5
  leapcheck runs 0b6f2c9e-7a51-4d7e-9d0f-3f0c1c2a9e11`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			store, err := c.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return showRun(cmd, c, store, args[0])
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			r := c.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(runs)
			}
			if len(runs) == 0 {
				r.Println("No saved runs.")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.CreatedAt.Local().Format(time.DateTime),
					fmt.Sprintf("%d", run.Nodes),
					fmt.Sprintf("%d", run.Errors),
					fmt.Sprintf("%d", run.Warnings),
					run.Fingerprint[:min(12, len(run.Fingerprint))],
				})
			}
			r.Table([]string{"Run", "Created", "Nodes", "Errors", "Warnings", "Fingerprint"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}

func showRun(cmd *cobra.Command, c *CommandContext, store *state.Store, id string) error {
	ctx := cmd.Context()
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	diags, err := store.RunDiagnostics(ctx, id)
	if err != nil {
		return err
	}

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			*state.Run
			Diagnostics any `json:"diagnostics"`
		}{run, diags})
	}

	r.Header(1, "Run "+run.ID)
	r.Println(output.FormatKeyValue("Created", run.CreatedAt.Local().Format(time.DateTime)))
	r.Println(output.FormatKeyValue("Duration", run.Duration.String()))
	r.Println(output.FormatKeyValue("Nodes", fmt.Sprintf("%d", run.Nodes)))
	r.Println(output.FormatKeyValue("Fingerprint", run.Fingerprint))
	r.Println("")

	rows := make([][]string, 0, len(diags))
	for _, d := range diags {
		rows = append(rows, []string{d.Code, d.Severity.String(), d.Node, d.Column, d.Message})
	}
	r.Table([]string{"Code", "Severity", "Node", "Column", "Message"}, rows)
	return nil
}
