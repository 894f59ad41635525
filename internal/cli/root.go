// Package cli provides the command-line interface for leapcheck.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/cli/commands"
	"github.com/leapstack-labs/leapcheck/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leapcheck",
		Short: "leapcheck - compile-time schema validation for SQL pipelines",
		Long: `leapcheck compiles a project of SQL models without running them.

It orders models by dependency, infers the schema every query publishes,
checks it against declared column contracts and reports type, nullability
and reference problems before anything reaches a warehouse.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", slog.String("path", configFile))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}}\ncommit %s, built %s\n", GitCommit, BuildDate))

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./leapcheck.yaml)")
	pf.String("project-dir", "", "Project root directory")
	pf.String("models-dir", "", "Path to models directory")
	pf.String("sources-dir", "", "Path to sources directory")
	pf.String("state", "", "Path to state database")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json|table)")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.Int("workers", 0, "Nodes propagated in parallel per level")
	pf.Duration("plan-timeout", 0, "Time limit for planning one node (0 = none)")
	pf.String("planner", "", "Planner used to type nodes (static|duckdb)")
	pf.Bool("strict", false, "Make every contract mismatch an error")
	pf.StringSlice("external", nil, "Relations that exist outside the project")
	pf.StringSlice("pass", nil, "Only run these analysis passes")
	pf.String("postgres-dsn", "", "Postgres connection used to type external relations")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json", "table"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("planner", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"static", "duckdb"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("pass", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return analysis.PassNames(), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{Version: Version, Commit: GitCommit, BuildDate: BuildDate}))
	rootCmd.AddCommand(commands.NewCompileCommand())
	rootCmd.AddCommand(commands.NewDAGCommand())
	rootCmd.AddCommand(commands.NewCatalogCommand())
	rootCmd.AddCommand(commands.NewLineageCommand())
	rootCmd.AddCommand(commands.NewQualifyCommand())
	rootCmd.AddCommand(commands.NewCodesCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, commands.ErrFatal) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapcheck.

To load completions:

Bash:
  $ source <(leapcheck completion bash)

Zsh:
  $ leapcheck completion zsh > "${fpath[1]}/_leapcheck"

Fish:
  $ leapcheck completion fish | source

PowerShell:
  PS> leapcheck completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
