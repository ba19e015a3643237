// Package refs collects the capability names a set of trees depends on.
package refs

import (
	"sort"
	"sync"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/walk"
)

// Container is a thread-safe helper that gathers formulas, actions and
// components and reports the Function and Custom action names they use.
// Extraction runs lazily on the first read after a change; adding and
// reading may happen concurrently.
type Container struct {
	mu sync.Mutex
	// analyzed is false until the current inputs have been extracted.
	analyzed bool

	formulas   []scoped[ast.Formula]
	actions    []scoped[[]ast.Action]
	components []*ast.Component

	functions     []string
	customActions []string
}

type scoped[T any] struct {
	node T
	pkg  string
}

// NewContainer creates a new, empty container.
func NewContainer() *Container {
	return &Container{}
}

// AddFormula adds formulas evaluated under pkg. Nil formulas are ignored.
func (c *Container) AddFormula(pkg string, formulas ...ast.Formula) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyzed = false
	for _, f := range formulas {
		if f != nil {
			c.formulas = append(c.formulas, scoped[ast.Formula]{node: f, pkg: pkg})
		}
	}
}

// AddActions adds an action list executed under pkg.
func (c *Container) AddActions(pkg string, actions ...ast.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyzed = false
	c.actions = append(c.actions, scoped[[]ast.Action]{node: actions, pkg: pkg})
}

// AddComponent adds every formula and action of the components.
func (c *Container) AddComponent(components ...*ast.Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyzed = false
	for _, comp := range components {
		if comp != nil {
			c.components = append(c.components, comp)
		}
	}
}

// AddPackage adds every component and formula definition of p.
func (c *Container) AddPackage(p *ast.Package) {
	for _, name := range sortedKeys(p.Components) {
		c.AddComponent(p.Components[name])
	}
	for _, name := range sortedKeys(p.Formulas) {
		if def := p.Formulas[name]; def != nil {
			c.AddFormula(p.Name, def.Formula)
		}
	}
}

// analyze must be called with c.mu held.
func (c *Container) analyze() {
	if c.analyzed {
		return
	}
	functions := make(map[string]struct{})
	custom := make(map[string]struct{})

	collectFormula := func(v walk.FormulaVisit) {
		if fn, ok := v.Formula.(*ast.Function); ok {
			functions[ast.QualifiedName(fn.Package, fn.Name)] = struct{}{}
		}
	}
	collectAction := func(v walk.ActionVisit) {
		if a, ok := v.Action.(*ast.Custom); ok {
			custom[ast.QualifiedName(a.Package, a.Name)] = struct{}{}
		}
	}

	for _, f := range c.formulas {
		for v := range walk.Formulas(f.node, f.pkg) {
			collectFormula(v)
		}
	}
	for _, list := range c.actions {
		for v := range walk.FormulasInActions(list.node, list.pkg) {
			collectFormula(v)
		}
		for v := range walk.Actions(list.node, list.pkg) {
			collectAction(v)
		}
	}
	for _, comp := range c.components {
		for v := range walk.FormulasInComponent(comp) {
			collectFormula(v)
		}
		for v := range walk.ActionsInComponent(comp) {
			collectAction(v)
		}
	}
	c.functions = sortedKeys(functions)
	c.customActions = sortedKeys(custom)
	c.analyzed = true
}

// Functions returns every Function name, package-qualified when the formula
// declares a package, sorted and unique.
func (c *Container) Functions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyze()
	return c.functions
}

// CustomActions returns every Custom action name, package-qualified when
// declared, sorted and unique.
func (c *Container) CustomActions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyze()
	return c.customActions
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
