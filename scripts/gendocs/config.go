package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/leapstack-labs/leapcheck/internal/config"
)

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Flag        string
	Description string
}

// getConfigSchema returns the configuration keys. It follows
// internal/config/types.go.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "project_dir", Type: "string", Flag: "--project-dir", Description: "Project root. Inferred from the config file location when unset"},
		{Name: "models_dir", Type: "string", Default: config.DefaultModelsDir, Flag: "--models-dir", Description: "Directory of SQL models"},
		{Name: "sources_dir", Type: "string", Default: config.DefaultSourcesDir, Flag: "--sources-dir", Description: "Directory of source YAML files"},
		{Name: "default_schema", Type: "string", Default: config.DefaultSchema, Description: "Schema of models that do not declare one"},
		{Name: "default_database", Type: "string", Description: "Database used when qualifying relations"},
		{Name: "external_tables", Type: "[]string", Flag: "--external", Description: "Relations that exist outside the project"},
		{Name: "analysis.severity_overrides", Type: "map[string]string", Description: "Severity per diagnostic code: error, warning, info, hint or off"},
		{Name: "analysis.passes", Type: "[]string", Flag: "--pass", Description: "Only run these analysis passes"},
		{Name: "analysis.strict", Type: "bool", Default: "false", Flag: "--strict", Description: "Make every contract mismatch an error"},
		{Name: "propagation.workers", Type: "int", Default: strconv.Itoa(config.DefaultWorkers), Flag: "--workers", Description: "Nodes propagated in parallel per level"},
		{Name: "propagation.plan_timeout", Type: "duration", Flag: "--plan-timeout", Description: "Time limit for planning one node"},
		{Name: "planner.kind", Type: "string", Default: config.DefaultPlanner, Flag: "--planner", Description: "static, or duckdb to cross-check types with DuckDB"},
		{Name: "introspect.postgres_dsn", Type: "string", Flag: "--postgres-dsn", Description: "Postgres connection used to type external relations. ${VAR} is expanded"},
		{Name: "introspect.schema", Type: "string", Default: config.DefaultIntrospectSch, Description: "Schema searched for unqualified external relations"},
		{Name: "serve.addr", Type: "string", Default: config.DefaultServeAddr, Flag: "--addr", Description: "Listen address of leapcheck serve"},
		{Name: "state_path", Type: "string", Default: config.DefaultStateFile, Flag: "--state", Description: "SQLite database of saved runs"},
		{Name: "output", Type: "string", Default: config.DefaultOutput, Flag: "--output", Description: "auto, text, markdown, json or table"},
		{Name: "verbose", Type: "bool", Default: "false", Flag: "--verbose", Description: "Debug logging on stderr"},
	}
}

// generateConfigDocs writes the configuration reference.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "leapcheck configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("leapcheck reads " + InlineCode(config.ConfigFileName) + " from the project root. Values are layered from defaults, the file, " +
		InlineCode(config.EnvPrefix+"*") + " environment variables and command-line flags, in increasing order of precedence.")

	var rows [][]string
	for _, f := range getConfigSchema() {
		def := f.Default
		if def != "" {
			def = InlineCode(def)
		}
		flag := f.Flag
		if flag != "" {
			flag = InlineCode(flag)
		}
		rows = append(rows, []string{InlineCode(f.Name), f.Type, def, flag, f.Description})
	}
	w.Table([]string{"Key", "Type", "Default", "Flag", "Description"}, rows)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `models_dir: models
sources_dir: sources
external_tables: [analytics.events]
analysis:
  strict: true
  severity_overrides:
    A052: off
propagation:
  workers: 4
  plan_timeout: 2s
introspect:
  postgres_dsn: ${WAREHOUSE_DSN}`)

	filename := filepath.Join(outDir, "configuration.md")
	if err := os.WriteFile(filename, w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated configuration.md")
	return nil
}
