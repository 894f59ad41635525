// Package loader discovers project nodes: SQL model files with optional YAML
// frontmatter, and source definition files.
package loader

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontmatterConfig represents parsed YAML frontmatter.
// Unknown fields cause parse errors.
type FrontmatterConfig struct {
	Name        string         `yaml:"name"`
	Schema      string         `yaml:"schema"`
	Database    string         `yaml:"database"`
	Kind        string         `yaml:"kind"` // sql, seed, function-scalar, function-table, opaque-stub
	Description string         `yaml:"description"`
	DependsOn   []string       `yaml:"depends_on"`
	Columns     []ColumnConfig `yaml:"columns"`
}

// FrontmatterResult holds the result of frontmatter extraction.
type FrontmatterResult struct {
	Config  *FrontmatterConfig
	SQL     string // SQL content after frontmatter
	HasYAML bool
	// Line is the line the YAML block starts on, for error positions.
	Line int
}

// frontmatterPattern matches /*--- ... ---*/ blocks at the top of a file.
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

var knownFields = map[string]bool{
	"name":        true,
	"schema":      true,
	"database":    true,
	"kind":        true,
	"description": true,
	"depends_on":  true,
	"columns":     true,
}

// ExtractFrontmatter extracts YAML frontmatter from SQL content.
// Returns the parsed config, remaining SQL, and any error.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{
		Config: &FrontmatterConfig{},
		SQL:    strings.TrimSpace(content),
	}

	loc := frontmatterPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return result, nil
	}

	result.HasYAML = true
	result.Line = strings.Count(content[:loc[2]], "\n") + 1
	result.SQL = strings.TrimSpace(content[loc[1]:])

	config, err := parseFrontmatterYAML(content[loc[2]:loc[3]])
	if err != nil {
		return nil, err
	}
	result.Config = config
	return result, nil
}

// parseFrontmatterYAML parses YAML content with strict field validation.
func parseFrontmatterYAML(yamlContent string) (*FrontmatterConfig, error) {
	// Decode into a node first to check for unknown fields
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(yamlContent), &doc); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if len(doc.Content) == 0 {
		return &FrontmatterConfig{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &FrontmatterParseError{Line: root.Line, Message: "frontmatter must be a mapping"}
	}
	for i := 0; i < len(root.Content); i += 2 {
		key := root.Content[i]
		if !knownFields[key.Value] {
			return nil, &UnknownFieldError{Field: key.Value, Line: key.Line}
		}
	}

	var config FrontmatterConfig
	if err := root.Decode(&config); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("failed to parse frontmatter: %v", err)}
	}
	return &config, nil
}

// ApplyDefaults fills the name from the file name and the schema from the
// directory the file lives in, falling back to defaultSchema.
func (c *FrontmatterConfig) ApplyDefaults(filename, dirPath, defaultSchema string) {
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filename, ".sql")
	}
	if c.Schema == "" {
		c.Schema = dirPath
	}
	if c.Schema == "" {
		c.Schema = defaultSchema
	}
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Line    int
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an error for unknown frontmatter fields.
type UnknownFieldError struct {
	File  string
	Line  int
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter (valid fields: name, schema, database, kind, description, depends_on, columns)", e.Field)
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
		}
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
