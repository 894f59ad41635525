package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// SourcesFile is the content of one sources/*.yml file.
type SourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig groups externally loaded tables under one schema.
type SourceConfig struct {
	Name     string        `yaml:"name"`
	Schema   string        `yaml:"schema"`
	Database string        `yaml:"database"`
	Tables   []TableConfig `yaml:"tables"`
}

// TableConfig is one source table.
type TableConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Columns     []ColumnConfig `yaml:"columns"`
}

// ParseSources decodes a sources file strictly and returns one source node
// per table. The table's schema is the source schema, or the source name
// when no schema is given.
func ParseSources(path string, content []byte) ([]*core.Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var file SourcesFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, &FrontmatterParseError{File: path, Message: fmt.Sprintf("invalid sources file: %v", err)}
	}

	var nodes []*core.Model
	for _, src := range file.Sources {
		schema := src.Schema
		if schema == "" {
			schema = src.Name
		}
		for _, tbl := range src.Tables {
			if tbl.Name == "" {
				return nil, &FrontmatterParseError{File: path, Message: fmt.Sprintf("source %s has a table without a name", src.Name)}
			}
			cols, err := typedColumns(tbl.Columns)
			if err != nil {
				return nil, &FrontmatterParseError{File: path, Message: fmt.Sprintf("%s.%s: %v", schema, tbl.Name, err)}
			}
			nodes = append(nodes, &core.Model{
				Name:        tbl.Name,
				Schema:      schema,
				Database:    src.Database,
				Kind:        core.KindSource,
				Columns:     cols,
				Description: tbl.Description,
				Path:        path,
			})
		}
	}
	return nodes, nil
}
