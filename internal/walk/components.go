package walk

import (
	"iter"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/dag"
	"github.com/vk/weave/internal/limits"
)

// Lookup resolves a component reference.
type Lookup func(name, pkg string) (*ast.Component, bool)

// childRefs returns the component nodes of c as (name, package) pairs in
// node id order. A node without a package inherits c's.
func childRefs(c *ast.Component) [][2]string {
	var out [][2]string
	for _, id := range sortedKeys(c.Nodes) {
		n, ok := c.Nodes[id].(*ast.ComponentNode)
		if !ok {
			continue
		}
		pkg := n.Package
		if pkg == "" {
			pkg = c.Package
		}
		out = append(out, [2]string{n.Name, pkg})
	}
	return out
}

// Subcomponents yields every component reachable from c through component
// nodes, depth-first. Each (name, package) pair is yielded once and c itself
// is never yielded, so circular references terminate. References that do
// not resolve are skipped.
func Subcomponents(c *ast.Component, lookup Lookup) iter.Seq[*ast.Component] {
	return func(yield func(*ast.Component) bool) {
		if c == nil {
			return
		}
		visited := map[string]bool{c.QualifiedName(): true}
		var visit func(parent *ast.Component) bool
		visit = func(parent *ast.Component) bool {
			for _, ref := range childRefs(parent) {
				key := ast.QualifiedName(ref[1], ref[0])
				if visited[key] {
					continue
				}
				visited[key] = true
				child, ok := lookup(ref[0], ref[1])
				if !ok || child == nil {
					continue
				}
				if !yield(child) || !visit(child) {
					return false
				}
			}
			return true
		}
		visit(c)
	}
}

// CheckComponentCycles reports a *limits.CycleError when a component
// contains itself through its component nodes, and a
// *limits.LimitExceededError when nesting goes beyond component.maxDepth.
func CheckComponentCycles(c *ast.Component, lookup Lookup, table *limits.Table) error {
	if c == nil {
		return nil
	}
	detector := limits.NewDetector(limits.DomainComponent)
	done := make(map[string]bool)

	var visit func(cur *ast.Component) error
	visit = func(cur *ast.Component) error {
		key := cur.QualifiedName()
		if done[key] {
			return nil
		}
		if err := table.Check(limits.CategoryComponent, limits.MaxDepth, int64(detector.Depth()+1)); err != nil {
			return err
		}
		return detector.Guard(key, func() error {
			for _, ref := range childRefs(cur) {
				child, ok := lookup(ref[0], ref[1])
				if !ok || child == nil {
					continue
				}
				if err := visit(child); err != nil {
					return err
				}
			}
			done[key] = true
			return nil
		})
	}
	return visit(c)
}

// PackageGraph builds the dependency graph between packages. A package
// depends on every other package named by a Function formula, a Custom
// action, a TriggerWorkflow action or a component node anywhere in its
// components or formula definitions. Self references add no edge.
func PackageGraph(pkgs []*ast.Package) (*dag.Graph, error) {
	g := dag.New()
	deps := make(map[string]map[string]bool)

	for _, p := range pkgs {
		if p == nil {
			continue
		}
		g.AddNode(p.Name)
		uses := make(map[string]bool)
		deps[p.Name] = uses

		w := &walker{
			onFormula: func(v FormulaVisit) bool {
				if fn, ok := v.Formula.(*ast.Function); ok && fn.Package != "" {
					uses[fn.Package] = true
				}
				return true
			},
			onAction: func(v ActionVisit) bool {
				switch a := v.Action.(type) {
				case *ast.Custom:
					if a.Package != "" {
						uses[a.Package] = true
					}
				case *ast.TriggerWorkflow:
					if a.Package != "" {
						uses[a.Package] = true
					}
				}
				return true
			},
		}
		for _, name := range sortedKeys(p.Components) {
			c := p.Components[name]
			if c == nil {
				continue
			}
			w.component(c, Path{})
			for _, ref := range childRefs(c) {
				uses[ref[1]] = true
			}
		}
		for _, name := range sortedKeys(p.Formulas) {
			if def := p.Formulas[name]; def != nil {
				w.formula(def.Formula, Path{}, p.Name)
			}
		}
	}

	for _, from := range sortedKeys(deps) {
		for _, to := range sortedKeys(deps[from]) {
			if to == from || to == "" {
				continue
			}
			g.AddNode(to)
			// from depends on to.
			if err := g.AddEdge(to, from); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
