// Package core provides the built-in formula functions every runtime
// starts with.
package core

import "github.com/vk/weave/internal/registry"

// Module implements the registry.Module interface for this package.
type Module struct{}

var functions = map[string]registry.FormulaHandler{
	"equals":      Equals,
	"not":         Not,
	"concatenate": Concatenate,
	"add":         Add,
	"subtract":    Subtract,
	"length":      Length,
	"map":         Map,
	"filter":      Filter,
	"default":     Default,
	"join":        Join,
}

// Register registers the functions into the legacy single-name table so
// they resolve from any package.
func (m *Module) Register(r *registry.Registry) {
	for _, name := range sortedKeys(functions) {
		r.RegisterLegacyFormula(name, functions[name])
	}
}

// Names returns the names this module registers, sorted.
func Names() []string {
	return sortedKeys(functions)
}

// Handler returns one of the module's functions by name.
func Handler(name string) (registry.FormulaHandler, bool) {
	h, ok := functions[name]
	return h, ok
}
