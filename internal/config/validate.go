package config

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
)

// ErrUnknownCode is returned when a severity override names a diagnostic
// code that does not exist.
var ErrUnknownCode = analysis.ErrUnknownCode

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir is required")
	}
	switch c.Planner.Kind {
	case "static", "duckdb":
	default:
		return fmt.Errorf("unknown planner %q (want static or duckdb)", c.Planner.Kind)
	}
	switch c.OutputFormat {
	case "auto", "text", "markdown", "json", "table":
	default:
		return fmt.Errorf("unknown output format %q (want auto, text, markdown, json or table)", c.OutputFormat)
	}
	if c.Propagation.Workers < 0 {
		return fmt.Errorf("propagation.workers must not be negative, got %d", c.Propagation.Workers)
	}
	if c.Propagation.PlanTimeout < 0 {
		return fmt.Errorf("propagation.plan_timeout must not be negative, got %s", c.Propagation.PlanTimeout)
	}
	if err := c.Overrides().Validate(); err != nil {
		return fmt.Errorf("invalid analysis.severity_overrides: %w", err)
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ModelsDir); os.IsNotExist(err) {
		return fmt.Errorf("models directory does not exist: %s\nHint: Create the directory or use --models-dir to specify a different path", c.ModelsDir)
	}
	return nil
}
