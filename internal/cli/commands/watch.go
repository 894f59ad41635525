package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/watch"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile when project files change",
		Long: `Compile the project, then recompile and report again every time a model
or source file changes. Stop with Ctrl-C.`,
		Example: `  leapcheck watch
  leapcheck watch --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, save)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Save every run to the state database")
	return cmd
}

func runWatch(cmd *cobra.Command, save bool) error {
	c := NewCommandContext(cmd)
	ctx := cmd.Context()

	compileOnce := func(ctx context.Context) {
		res, err := c.Compile(ctx)
		if err != nil {
			c.Renderer.Error(err.Error())
			return
		}
		if err := renderDiagnostics(c.Renderer, res, res.Diagnostics); err != nil {
			c.Logger.Warn("failed to render diagnostics", slog.Any("error", err))
		}
		if save {
			if err := c.Save(ctx, res); err != nil {
				c.Renderer.Error(err.Error())
			}
		}
	}

	w, err := watch.New(watch.Options{
		Dirs:   []string{c.Cfg.ModelsDir, c.Cfg.SourcesDir},
		Logger: c.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	compileOnce(ctx)
	c.Renderer.Success("watching for changes (Ctrl-C to stop)")

	return w.Run(ctx, func(ctx context.Context, changed []string) {
		c.Renderer.Println("")
		c.Renderer.Println(c.Renderer.Styles().Muted.Render(
			time.Now().Format("15:04:05") + " " + plural(len(changed), "file") + " changed"))
		compileOnce(ctx)
	})
}
