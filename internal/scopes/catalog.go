// Package scopes holds the versioned scope catalog: the fixed enumeration of
// grantable capabilities and the partial order describing which scopes imply
// others. The catalog is loaded once at process start and is immutable at
// runtime.
package scopes

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"circle-core/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Scope is one catalog entry.
type Scope struct {
	Name    string   `yaml:"name"`
	Display string   `yaml:"display"`
	Implies []string `yaml:"implies"`
}

type document struct {
	Version string  `yaml:"version"`
	Scopes  []Scope `yaml:"scopes"`
}

// Catalog is the loaded, closure-precomputed scope catalog.
type Catalog struct {
	version string
	order   []string
	// closure[s] holds every scope granted by holding s, including s itself.
	closure map[string]map[string]struct{}
}

// Load parses and validates a catalog document: duplicate names, implication
// edges pointing outside the catalog, and implication cycles are all
// configuration errors. The transitive closure is precomputed so runtime
// checks are map lookups.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scope catalog: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("scope catalog: version is required")
	}
	if len(doc.Scopes) == 0 {
		return nil, fmt.Errorf("scope catalog: at least one scope is required")
	}

	direct := make(map[string][]string, len(doc.Scopes))
	order := make([]string, 0, len(doc.Scopes))
	for _, s := range doc.Scopes {
		if s.Name == "" {
			return nil, fmt.Errorf("scope catalog: scope with empty name")
		}
		if _, dup := direct[s.Name]; dup {
			return nil, fmt.Errorf("scope catalog: duplicate scope %q", s.Name)
		}
		direct[s.Name] = s.Implies
		order = append(order, s.Name)
	}
	for name, implied := range direct {
		for _, target := range implied {
			if _, ok := direct[target]; !ok {
				return nil, fmt.Errorf("scope catalog: %q implies unknown scope %q", name, target)
			}
		}
	}

	c := &Catalog{
		version: doc.Version,
		order:   order,
		closure: make(map[string]map[string]struct{}, len(order)),
	}
	for _, name := range order {
		set, err := expand(name, direct, map[string]bool{})
		if err != nil {
			return nil, err
		}
		c.closure[name] = set
	}
	return c, nil
}

// expand walks the implication graph from name, rejecting cycles.
func expand(name string, direct map[string][]string, path map[string]bool) (map[string]struct{}, error) {
	if path[name] {
		return nil, fmt.Errorf("scope catalog: implication cycle through %q", name)
	}
	path[name] = true
	defer delete(path, name)

	set := map[string]struct{}{name: {}}
	for _, target := range direct[name] {
		sub, err := expand(target, direct, path)
		if err != nil {
			return nil, err
		}
		for s := range sub {
			set[s] = struct{}{}
		}
	}
	return set, nil
}

// Default returns the embedded catalog. The embedded document is validated
// by tests; a parse failure here is a build defect.
func Default() *Catalog {
	c, err := Load(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded scope catalog invalid: %v", err))
	}
	return c
}

// Version returns the catalog document version.
func (c *Catalog) Version() string { return c.version }

// Scopes returns all scope names in catalog order.
func (c *Catalog) Scopes() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Has reports whether name is in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.closure[name]
	return ok
}

// Implies reports whether holding a grants b. The relation is reflexive and
// transitive. Unknown scopes on either side report false; callers validate
// names first.
func (c *Catalog) Implies(a, b string) bool {
	set, ok := c.closure[a]
	if !ok {
		return false
	}
	_, ok = set[b]
	return ok
}

// Expand returns the implication closure of a held scope set. Unknown names
// are skipped; callers validate before storing.
func (c *Catalog) Expand(held []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range held {
		for granted := range c.closure[s] {
			out[granted] = struct{}{}
		}
	}
	return out
}

// Satisfies reports whether the held set grants required, directly or via
// implication.
func (c *Catalog) Satisfies(held []string, required string) bool {
	for _, s := range held {
		if c.Implies(s, required) {
			return true
		}
	}
	return false
}

// Validate checks every name against the catalog, returning UnknownScopeError
// for the first violation. Catalog violations are configuration errors and
// are never retried.
func (c *Catalog) Validate(names []string) error {
	for _, n := range names {
		if !c.Has(n) {
			return &domain.UnknownScopeError{Scope: n}
		}
	}
	return nil
}
