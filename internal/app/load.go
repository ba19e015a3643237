package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/refs"
	"github.com/vk/weave/internal/walk"
)

// LoadPackages loads every package file under path into the registry and
// checks the result: package dependencies must be acyclic, and every
// referenced function and custom action should resolve. Unresolved
// references and component cycles are warnings unless the app is strict.
func (a *App) LoadPackages(path string) error {
	a.logger.Debug("Loading packages...", "packages_path", path)
	if err := a.registry.LoadPackagesRecursively(a.ctx, path); err != nil {
		return err
	}

	order, err := a.PackageOrder()
	if err != nil {
		return err
	}
	a.logger.Debug("Package dependency order resolved.", "order", order)

	container := refs.NewContainer()
	for _, p := range a.registry.Packages() {
		container.AddPackage(p)
		for _, name := range sortedKeys(p.Components) {
			if err := walk.CheckComponentCycles(p.Components[name], a.registry.Component, a.limits); err != nil {
				if a.config.Strict {
					return err
				}
				a.logger.Warn("Component tree is not mountable.", "component", p.Components[name].QualifiedName(), "error", err)
			}
		}
	}

	if err := a.registry.Validate(a.ctx, container.Functions(), container.CustomActions()); err != nil {
		if a.config.Strict {
			return err
		}
		a.logger.Warn("Some references do not resolve and will evaluate to null.")
	}

	a.logger.Info("Packages loaded successfully.", "packages", len(a.registry.Packages()))
	return nil
}

// PackageOrder returns the loaded package names with every package after
// the packages it depends on.
func (a *App) PackageOrder() ([]string, error) {
	g, err := walk.PackageGraph(a.registry.Packages())
	if err != nil {
		return nil, fmt.Errorf("failed to build package graph: %w", err)
	}
	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("package dependencies: %w", err)
	}
	return g.TopologicalOrder()
}

// PackageDependencies returns the packages the named package depends on.
func (a *App) PackageDependencies(pkg string) ([]string, error) {
	g, err := walk.PackageGraph(a.registry.Packages())
	if err != nil {
		return nil, fmt.Errorf("failed to build package graph: %w", err)
	}
	return g.Dependencies(pkg)
}

// References collects the functions and custom actions a loaded package
// or component refers to. target is "package" or "package/Component"; an
// empty target covers every loaded package.
func (a *App) References(target string) (*refs.Container, error) {
	container := refs.NewContainer()
	if target == "" {
		for _, p := range a.registry.Packages() {
			container.AddPackage(p)
		}
		return container, nil
	}

	if pkg, name, ok := strings.Cut(target, "/"); ok {
		c, found := a.registry.Component(name, pkg)
		if !found {
			return nil, fmt.Errorf("component %q is not loaded", target)
		}
		container.AddComponent(c)
		return container, nil
	}
	for _, p := range a.registry.Packages() {
		if p.Name == target {
			container.AddPackage(p)
			return container, nil
		}
	}
	return nil, fmt.Errorf("package %q is not loaded", target)
}

func sortedKeys(m map[string]*ast.Component) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
