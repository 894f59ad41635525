package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/server"
	"github.com/leapstack-labs/leapcheck/internal/state"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Watch bool
	Save  bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compile results over HTTP",
		Long: `Compile the project and serve the result as a JSON API.

Endpoints:
  GET  /healthz
  GET  /api/diagnostics?select=<node>&severity=<level>
  GET  /api/catalog
  GET  /api/catalog/{node}
  GET  /api/order
  GET  /api/lineage/{node}
  GET  /api/qualified/{node}
  GET  /api/runs
  GET  /api/events        (server-sent events, one per compile)
  POST /api/compile`,
		Example: `  # Serve on the default address
  leapcheck serve

  # Recompile on file changes and keep run history
  leapcheck serve --watch --save --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8787)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Recompile when project files change")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save every run to the state database")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	c := NewCommandContext(cmd)

	var store *state.Store
	if opts.Save {
		var err error
		store, err = c.OpenStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	cfg := server.Config{
		Addr:    c.Cfg.Serve.Addr,
		Compile: c.Compile,
		Store:   store,
		Logger:  c.Logger,
	}
	if opts.Watch {
		cfg.WatchDirs = []string{c.Cfg.ModelsDir, c.Cfg.SourcesDir}
	}

	c.Renderer.Success("serving on http://" + cfg.Addr)
	return server.New(cfg).Serve(cmd.Context())
}
