package testutil

import (
	"context"

	"github.com/vk/weave/internal/registry"
)

// SimpleModule is a test helper for easily creating a module that registers
// a single formula handler or custom action.
type SimpleModule struct {
	Package string

	FormulaName string
	Formula     registry.FormulaHandler

	ActionName string
	Action     registry.ActionHandler
}

// Register implements the registry.Module interface. An empty Package
// registers into the legacy single-name tables.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.FormulaName != "" && m.Formula != nil {
		if m.Package == "" {
			r.RegisterLegacyFormula(m.FormulaName, m.Formula)
		} else {
			r.RegisterFormula(m.Package, m.FormulaName, m.Formula)
		}
	}
	if m.ActionName != "" && m.Action != nil {
		if m.Package == "" {
			r.RegisterLegacyAction(m.ActionName, m.Action)
		} else {
			r.RegisterAction(m.Package, m.ActionName, m.Action)
		}
	}
}

// NoOpModule registers a custom action named "noop" that does nothing.
type NoOpModule struct{}

// Register implements the registry.Module interface.
func (NoOpModule) Register(r *registry.Registry) {
	r.RegisterLegacyAction("noop", func(context.Context, map[string]any, registry.ActionContext, any) (any, error) {
		return nil, nil
	})
}
