// Package catalog is the name -> schema registry used to resolve upstream
// relations during planning.
//
// Entries come from two places: Seed, for nodes whose schema is only ever
// declared (sources, stubs, seeds, functions), and Put, which publishes a
// node's inferred schema. Seeded entries are locked. Declare records a
// model's declared schema until its inferred schema is published.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"golang.org/x/text/cases"
)

// ErrSeeded is returned by Put for a name that was seeded.
var ErrSeeded = errors.New("catalog entry is seeded and cannot be overwritten")

// Origin records how an entry got into the catalog.
type Origin int

// Entry origins.
const (
	OriginSeeded Origin = iota
	OriginDeclared
	OriginPublished
)

func (o Origin) String() string {
	switch o {
	case OriginSeeded:
		return "seeded"
	case OriginDeclared:
		return "declared"
	case OriginPublished:
		return "published"
	}
	return "unknown"
}

type entry struct {
	name    string // spelling of the first write
	columns []core.TypedColumn
	origin  Origin
}

// Catalog is safe for concurrent use. Readers never observe a partially
// written entry: every write swaps in a fresh copy.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]*entry)}
}

// Seed installs locked entries. It is meant to be called once at
// construction; later seeds of the same name replace the earlier one.
func (c *Catalog) Seed(schemas map[string][]core.TypedColumn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, cols := range schemas {
		c.entries[key(name)] = &entry{name: name, columns: core.CloneColumns(cols), origin: OriginSeeded}
	}
}

// Declare records a declared schema for a node that has not been published.
// It never replaces a seeded or published entry.
func (c *Catalog) Declare(name string, cols []core.TypedColumn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key(name)]; exists {
		return
	}
	c.entries[key(name)] = &entry{name: name, columns: core.CloneColumns(cols), origin: OriginDeclared}
}

// Put publishes a node's inferred schema, replacing any previous entry.
func (c *Catalog) Put(name string, cols []core.TypedColumn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(name)
	if e, exists := c.entries[k]; exists {
		if e.origin == OriginSeeded {
			return fmt.Errorf("put %s: %w", name, ErrSeeded)
		}
		name = e.name
	}
	c.entries[k] = &entry{name: name, columns: core.CloneColumns(cols), origin: OriginPublished}
	return nil
}

// Get returns a copy of the columns stored for name.
func (c *Catalog) Get(name string) ([]core.TypedColumn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key(name)]
	if !ok {
		return nil, false
	}
	return core.CloneColumns(e.columns), true
}

// Origin returns how the entry for name was written.
func (c *Catalog) Origin(name string) (Origin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key(name)]
	if !ok {
		return 0, false
	}
	return e.origin, true
}

// Names returns the stored names in their original spelling, sorted
// case-insensitively.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = c.entries[k].name
	}
	return names
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a deep copy of every entry keyed by original spelling.
func (c *Catalog) Snapshot() map[string][]core.TypedColumn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]core.TypedColumn, len(c.entries))
	for _, e := range c.entries {
		out[e.name] = core.CloneColumns(e.columns)
	}
	return out
}

// Resolver answers table lookups for the planner from the current state.
type Resolver struct {
	cat *Catalog
}

// Resolver returns a Resolver over c.
func (c *Catalog) Resolver() *Resolver {
	return &Resolver{cat: c}
}

// LookupTable resolves name, then its last dotted part. The returned name is
// the catalog's spelling.
func (r *Resolver) LookupTable(name string) (string, []core.TypedColumn, bool) {
	for _, candidate := range candidates(name) {
		r.cat.mu.RLock()
		e, ok := r.cat.entries[key(candidate)]
		r.cat.mu.RUnlock()
		if ok {
			return e.name, core.CloneColumns(e.columns), true
		}
	}
	return "", nil, false
}

func candidates(name string) []string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return []string{name, name[i+1:]}
	}
	return []string{name}
}

func key(name string) string {
	return cases.Fold().String(name)
}
