package registry

import (
	"sort"
	"sync"

	"github.com/vk/weave/internal/ast"
)

// Module is the interface that built-in capability bundles implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

type key struct {
	pkg  string
	name string
}

// Registry holds the capabilities of one runtime. Lookups go through an
// explicit, ordered fallback chain; nothing is discovered by reflection.
type Registry struct {
	mu sync.RWMutex

	// formulas is the versioned table keyed by (package, name).
	formulas map[key]*Formula
	// legacyFormulas is the single-name table consulted last.
	legacyFormulas map[string]FormulaHandler

	actions       map[key]ActionHandler
	legacyActions map[string]ActionHandler

	packages map[string]*ast.Package
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		formulas:       make(map[key]*Formula),
		legacyFormulas: make(map[string]FormulaHandler),
		actions:        make(map[key]ActionHandler),
		legacyActions:  make(map[string]ActionHandler),
		packages:       make(map[string]*ast.Package),
	}
}

// Use registers every module.
func (r *Registry) Use(modules ...Module) *Registry {
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// ResolveFormula looks up a formula capability. The chain is: the versioned
// table under pkg, then the legacy single-name table.
func (r *Registry) ResolveFormula(name, pkg string) (*Formula, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.formulas[key{pkg: pkg, name: name}]; ok {
		return f, true
	}
	if h, ok := r.legacyFormulas[name]; ok {
		return &Formula{Name: name, Handler: h}, true
	}
	return nil, false
}

// ResolveAction looks up a custom action handler with the same chain as
// ResolveFormula.
func (r *Registry) ResolveAction(name, pkg string) (ActionHandler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.actions[key{pkg: pkg, name: name}]; ok {
		return h, true
	}
	h, ok := r.legacyActions[name]
	return h, ok
}

// AddPackage registers every formula definition of p under p.Name and keeps
// p for component lookups.
func (r *Registry) AddPackage(p *ast.Package) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[p.Name] = p
	for name, def := range p.Formulas {
		r.formulas[key{pkg: p.Name, name: name}] = &Formula{Name: name, Package: p.Name, Definition: def}
	}
}

// Component returns a component definition from a registered package.
func (r *Registry) Component(name, pkg string) (*ast.Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packages[pkg]
	if !ok {
		return nil, false
	}
	c, ok := p.Components[name]
	return c, ok
}

// Packages returns the registered packages sorted by name.
func (r *Registry) Packages() []*ast.Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ast.Package, 0, len(r.packages))
	for _, p := range r.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FormulaNames returns every resolvable formula name, package-qualified
// where applicable, sorted.
func (r *Registry) FormulaNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for k := range r.formulas {
		out = append(out, ast.QualifiedName(k.pkg, k.name))
	}
	for name := range r.legacyFormulas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
