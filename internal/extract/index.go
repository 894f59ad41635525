package extract

import (
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"golang.org/x/text/cases"
)

// Category classifies a dependency.
type Category int

// Dependency categories.
const (
	CategoryModel Category = iota
	CategorySource
	CategoryExternal
	CategorySelf
)

func (c Category) String() string {
	switch c {
	case CategoryModel:
		return "model"
	case CategorySource:
		return "source"
	case CategoryExternal:
		return "external"
	case CategorySelf:
		return "self"
	}
	return "unknown"
}

// Dependency is one categorized relation reference.
type Dependency struct {
	Name     string   // raw name as written
	Category Category //
	Target   string   // node name for Model, Source and Self
	Declared bool     // External listed in external_tables
}

// Index resolves raw relation names against the project's nodes. It is
// built once per compile pass and is read-only afterwards, so it can be
// shared by concurrent extractions.
type Index struct {
	// byName maps folded names to nodes. Each node is registered under its
	// name, schema.name and database.schema.name.
	byName    map[string]*core.Model
	externals map[string]bool
}

// NewIndex builds an index over every project node plus the relations the
// project declares as externally managed.
func NewIndex(nodes []*core.Model, externals []string) *Index {
	idx := &Index{
		byName:    make(map[string]*core.Model, len(nodes)*2),
		externals: make(map[string]bool, len(externals)),
	}
	for _, n := range nodes {
		idx.register(n.Name, n)
		if n.Schema != "" {
			idx.register(n.QualifiedName(), n)
			if n.Database != "" {
				idx.register(n.Database+"."+n.QualifiedName(), n)
			}
		}
	}
	for _, name := range externals {
		idx.externals[fold(name)] = true
	}
	return idx
}

func (idx *Index) register(name string, n *core.Model) {
	key := fold(name)
	if _, exists := idx.byName[key]; !exists {
		idx.byName[key] = n
	}
}

// Lookup resolves a relation name to a node: first the full name, then the
// last dotted part.
func (idx *Index) Lookup(name string) (*core.Model, bool) {
	if n, ok := idx.byName[fold(name)]; ok {
		return n, true
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		if n, ok := idx.byName[fold(name[i+1:])]; ok {
			return n, true
		}
	}
	return nil, false
}

// IsDeclaredExternal reports whether name is listed as externally managed.
func (idx *Index) IsDeclaredExternal(name string) bool {
	return idx.externals[fold(name)]
}

// Categorize classifies the raw relation names referenced by owner.
// A reference that resolves to owner itself is Self. The result keeps the
// order of raw.
func (idx *Index) Categorize(owner *core.Model, raw []string) []Dependency {
	deps := make([]Dependency, 0, len(raw))
	for _, name := range raw {
		deps = append(deps, idx.categorize(owner, name))
	}
	return deps
}

func (idx *Index) categorize(owner *core.Model, name string) Dependency {
	dep := Dependency{Name: name, Category: CategoryExternal}

	if idx.IsDeclaredExternal(name) {
		dep.Declared = true
		return dep
	}

	n, ok := idx.Lookup(name)
	if !ok {
		return dep
	}

	dep.Target = n.Name
	switch {
	case owner != nil && n == owner:
		dep.Category = CategorySelf
	case n.Kind == core.KindSource:
		dep.Category = CategorySource
	default:
		dep.Category = CategoryModel
	}
	return dep
}

// CategorizeFunctions maps called function names to function nodes.
// Built-in functions that match no node are dropped.
func (idx *Index) CategorizeFunctions(owner *core.Model, names []string) []Dependency {
	var deps []Dependency
	for _, name := range names {
		n, ok := idx.byName[fold(name)]
		if !ok || (n.Kind != core.KindScalarFunction && n.Kind != core.KindTableFunction) {
			continue
		}
		dep := Dependency{Name: name, Category: CategoryModel, Target: n.Name}
		if n == owner {
			dep.Category = CategorySelf
		}
		deps = append(deps, dep)
	}
	return deps
}

// ModelTargets returns the distinct node names of Model dependencies.
// Self, Source and External dependencies never become graph edges.
func ModelTargets(deps []Dependency) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range deps {
		if d.Category != CategoryModel || seen[d.Target] {
			continue
		}
		seen[d.Target] = true
		out = append(out, d.Target)
	}
	return out
}

// Externals returns the undeclared External dependencies.
func Externals(deps []Dependency) []Dependency {
	var out []Dependency
	for _, d := range deps {
		if d.Category == CategoryExternal && !d.Declared {
			out = append(out, d)
		}
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(s)
}
