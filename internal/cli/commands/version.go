package commands

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo identifies a leapcheck build.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// NewVersionCommand creates the version command. It runs without loading
// the project configuration.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leapcheck version and build information.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if info.GoVersion == "" {
				info.GoVersion = runtime.Version()
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, _ = fmt.Fprintf(out, "leapcheck v%s\n", info.Version)
			_, _ = fmt.Fprintln(out, "Compile-time schema validation for SQL pipelines")
			if info.Commit != "" && info.Commit != "unknown" {
				_, _ = fmt.Fprintf(out, "commit %s, built %s\n", info.Commit, info.BuildDate)
			}
			_, _ = fmt.Fprintf(out, "%s %s/%s\n", info.GoVersion, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")
	return cmd
}
