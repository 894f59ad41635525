// Package config loads leapcheck configuration. Values are layered from
// defaults, the project config file, LEAPCHECK_* environment variables and
// explicitly set command-line flags, in increasing order of precedence.
package config

import (
	"time"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/loader"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Config holds all configuration options.
type Config struct {
	ProjectDir      string   `koanf:"project_dir"`
	ModelsDir       string   `koanf:"models_dir"`
	SourcesDir      string   `koanf:"sources_dir"`
	DefaultSchema   string   `koanf:"default_schema"`
	DefaultDatabase string   `koanf:"default_database"`
	ExternalTables  []string `koanf:"external_tables"`

	Analysis    AnalysisConfig    `koanf:"analysis"`
	Propagation PropagationConfig `koanf:"propagation"`
	Planner     PlannerConfig     `koanf:"planner"`
	Introspect  IntrospectConfig  `koanf:"introspect"`
	Serve       ServeConfig       `koanf:"serve"`

	StatePath    string `koanf:"state_path"`
	OutputFormat string `koanf:"output"`
	Verbose      bool   `koanf:"verbose"`
}

// AnalysisConfig controls the analysis passes and diagnostic severities.
type AnalysisConfig struct {
	// SeverityOverrides maps a diagnostic code to error, warning, info,
	// hint or off.
	SeverityOverrides map[string]core.Severity `koanf:"severity_overrides"`
	// Passes limits the analysis passes that run. Empty runs all of them.
	Passes []string `koanf:"passes"`
	Strict bool     `koanf:"strict"`
}

// PropagationConfig controls the propagation worker pool.
type PropagationConfig struct {
	Workers     int           `koanf:"workers"`
	PlanTimeout time.Duration `koanf:"plan_timeout"`
}

// PlannerConfig selects the planner used to type each node.
type PlannerConfig struct {
	Kind string `koanf:"kind"` // static, duckdb
}

// IntrospectConfig points at a live database used to seed the schemas of
// external relations.
type IntrospectConfig struct {
	PostgresDSN string `koanf:"postgres_dsn"`
	Schema      string `koanf:"schema"`
}

// ServeConfig holds configuration for the HTTP API.
type ServeConfig struct {
	Addr string `koanf:"addr"`
}

// Overrides returns the severity override table.
func (c *Config) Overrides() analysis.Overrides {
	return analysis.Overrides(c.Analysis.SeverityOverrides)
}

// Dirs returns the project layout the loader walks.
func (c *Config) Dirs() loader.Dirs {
	return loader.Dirs{
		ProjectDir:    c.ProjectDir,
		ModelsDir:     c.ModelsDir,
		SourcesDir:    c.SourcesDir,
		DefaultSchema: c.DefaultSchema,
	}
}
