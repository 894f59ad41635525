package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/cli/output"
	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/internal/config"
	"github.com/leapstack-labs/leapcheck/internal/introspect"
	"github.com/leapstack-labs/leapcheck/internal/loader"
	"github.com/leapstack-labs/leapcheck/internal/planner/duckdb"
	"github.com/leapstack-labs/leapcheck/internal/state"
)

// ErrFatal is returned by commands whose compile produced fatal
// diagnostics. The diagnostics have already been rendered.
var ErrFatal = errors.New("compile produced fatal diagnostics")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		cfg = config.Default()
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// Compile loads the project and runs one compile pass. The DuckDB planner
// and the Postgres seeder are opened for the pass when configured.
func (c *CommandContext) Compile(ctx context.Context) (*compile.Result, error) {
	project, err := loader.Load(c.Cfg.Dirs())
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	opts := compile.Options{
		DefaultDatabase: c.Cfg.DefaultDatabase,
		ExternalTables:  c.Cfg.ExternalTables,
		Workers:         c.Cfg.Propagation.Workers,
		PlanTimeout:     c.Cfg.Propagation.PlanTimeout,
		Overrides:       c.Cfg.Overrides(),
		Strict:          c.Cfg.Analysis.Strict,
		Passes:          c.Cfg.Analysis.Passes,
		Logger:          c.Logger,
	}

	if c.Cfg.Planner.Kind == "duckdb" {
		p, err := duckdb.Open(ctx, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open duckdb planner: %w", err)
		}
		defer func() { _ = p.Close() }()
		opts.Planner = p
	}

	if dsn := c.Cfg.Introspect.PostgresDSN; dsn != "" {
		in, err := introspect.Open(ctx, dsn, c.Cfg.Introspect.Schema, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect for introspection: %w", err)
		}
		defer func() { _ = in.Close() }()
		opts.Seeder = in
	}

	return compile.Compile(ctx, project, opts)
}

// OpenStore opens and migrates the state database.
func (c *CommandContext) OpenStore() (*state.Store, error) {
	store, err := state.Open(c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Save stores res in the state database and reports the run ID.
func (c *CommandContext) Save(ctx context.Context, res *compile.Result) error {
	store, err := c.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.SaveRun(ctx, res)
	if err != nil {
		return err
	}
	c.Logger.Info("run saved", slog.String("run_id", run.ID), slog.String("state", store.Path()))
	return nil
}
