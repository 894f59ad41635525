package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Dirs locates a project on disk. Relative model and source directories are
// resolved against ProjectDir.
type Dirs struct {
	ProjectDir    string
	ModelsDir     string
	SourcesDir    string
	DefaultSchema string
}

// Project is every node of one project, sources included.
type Project struct {
	Dir string
	// Nodes are sorted by name. On duplicate names the first file in walk
	// order wins and the others are listed in Duplicates.
	Nodes      []*core.Model
	Duplicates []*DuplicateNodeError
	// Problems are files that could not be turned into a node.
	Problems []*FileError
}

// Node returns the node called name, matched case-insensitively.
func (p *Project) Node(name string) (*core.Model, bool) {
	for _, n := range p.Nodes {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return nil, false
}

// DuplicateNodeError reports two files defining the same node name.
type DuplicateNodeError struct {
	Name   string
	First  string
	Second string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node %q: defined in %s and %s", e.Name, e.First, e.Second)
}

// FileError wraps a problem with one project file.
type FileError struct {
	Path string
	Err  error

	// schema is set for model files: the schema the node would have had.
	schema string
	model  bool
}

func (e *FileError) Error() string { return e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// Name returns the node name the file would have defined.
func (e *FileError) Name() string {
	return strings.TrimSuffix(filepath.Base(e.Path), filepath.Ext(e.Path))
}

// Placeholder returns a body-less sql node standing in for a model file
// that failed to load, so references to it still resolve to a node. ok is
// false for source files.
func (e *FileError) Placeholder() (*core.Model, bool) {
	if !e.model {
		return nil, false
	}
	return &core.Model{Name: e.Name(), Schema: e.schema, Kind: core.KindSQL, Path: e.Path}, true
}

// Load walks the models and sources directories. Missing directories are
// treated as empty. Only I/O failures are returned as errors; malformed
// files end up in Project.Problems.
func Load(dirs Dirs) (*Project, error) {
	root, err := filepath.Abs(dirs.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project dir: %w", err)
	}
	p := &Project{Dir: root}
	byName := make(map[string]*core.Model)

	add := func(n *core.Model) {
		key := strings.ToLower(n.Name)
		if first, ok := byName[key]; ok {
			p.Duplicates = append(p.Duplicates, &DuplicateNodeError{Name: n.Name, First: first.Path, Second: n.Path})
			return
		}
		byName[key] = n
		p.Nodes = append(p.Nodes, n)
	}

	if err := walk(resolve(root, dirs.ModelsDir, "models"), ".sql", func(path, rel string, content []byte) {
		n, err := parseModel(path, rel, content, dirs.DefaultSchema)
		if err != nil {
			schema := strings.ReplaceAll(rel, "/", "_")
			if schema == "" {
				schema = dirs.DefaultSchema
			}
			p.Problems = append(p.Problems, &FileError{Path: path, Err: err, schema: schema, model: true})
			return
		}
		add(n)
	}); err != nil {
		return nil, fmt.Errorf("model discovery failed: %w", err)
	}

	if err := walk(resolve(root, dirs.SourcesDir, "sources"), ".yml", func(path, _ string, content []byte) {
		nodes, err := ParseSources(path, content)
		if err != nil {
			p.Problems = append(p.Problems, &FileError{Path: path, Err: err})
			return
		}
		for _, n := range nodes {
			add(n)
		}
	}); err != nil {
		return nil, fmt.Errorf("source discovery failed: %w", err)
	}

	sort.Slice(p.Nodes, func(i, j int) bool { return p.Nodes[i].Name < p.Nodes[j].Name })
	return p, nil
}

func resolve(root, dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// walk visits files with the given extension (.yml also matches .yaml) in
// lexical order.
func walk(dir, ext string, fn func(path, rel string, content []byte)) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || !matchExt(info.Name(), ext) {
			return nil
		}
		content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from filepath.Walk
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, _ := filepath.Rel(dir, filepath.Dir(path))
		if rel == "." {
			rel = ""
		}
		fn(path, filepath.ToSlash(rel), content)
		return nil
	})
}

func matchExt(name, ext string) bool {
	if ext == ".yml" {
		return strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
	}
	return strings.HasSuffix(name, ext)
}

// parseModel builds a node from one SQL file. A nested directory becomes
// the default schema (models/staging/stg.sql -> staging).
func parseModel(path, rel string, content []byte, defaultSchema string) (*core.Model, error) {
	fm, err := ExtractFrontmatter(string(content))
	if err != nil {
		switch e := err.(type) {
		case *FrontmatterParseError:
			e.File = path
			if e.Line > 0 {
				e.Line += yamlStartLine(content) - 1
			}
		case *UnknownFieldError:
			e.File = path
			e.Line += yamlStartLine(content) - 1
		}
		return nil, err
	}

	cfg := fm.Config
	dirSchema := ""
	if rel != "" {
		dirSchema = strings.ReplaceAll(rel, "/", "_")
	}
	cfg.ApplyDefaults(filepath.Base(path), dirSchema, defaultSchema)

	kind, err := core.ParseKind(cfg.Kind)
	if err != nil {
		return nil, &FrontmatterParseError{File: path, Message: err.Error()}
	}
	cols, err := typedColumns(cfg.Columns)
	if err != nil {
		return nil, &FrontmatterParseError{File: path, Message: err.Error()}
	}

	n := &core.Model{
		Name:        cfg.Name,
		Schema:      cfg.Schema,
		Database:    cfg.Database,
		Kind:        kind,
		Columns:     cols,
		DependsOn:   cfg.DependsOn,
		Description: cfg.Description,
		Path:        path,
	}
	if kind.HasBody() {
		n.SQL = fm.SQL
	} else if strings.TrimSpace(fm.SQL) != "" && kind != core.KindScalarFunction && kind != core.KindTableFunction {
		return nil, &FrontmatterParseError{File: path, Message: fmt.Sprintf("%s node must not have a SQL body", kind)}
	}
	return n, nil
}

// yamlStartLine is the line the frontmatter YAML starts on.
func yamlStartLine(content []byte) int {
	loc := frontmatterPattern.FindSubmatchIndex(content)
	if loc == nil {
		return 1
	}
	return strings.Count(string(content[:loc[2]]), "\n") + 1
}
