package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/weave/internal/ast"
)

// Callable is a first-class function value handed to formula handlers for
// higher-order arguments.
type Callable interface {
	Invoke(args map[string]any) any
}

// FormulaHandler implements a formula function in Go. Arguments arrive by
// name; higher-order arguments are Callables.
type FormulaHandler func(ctx context.Context, args map[string]any) (any, error)

// Formula is a resolved formula capability: either a Go handler or a
// formula definition whose body is evaluated by the interpreter.
type Formula struct {
	Name       string
	Package    string
	Handler    FormulaHandler
	Definition *ast.FormulaDefinition
}

// ActionContext is what a custom action sees of its caller.
type ActionContext struct {
	// Root is a private copy of the owner's data root.
	Root map[string]any
	// TriggerActionEvent runs the nested action list the call site declared
	// for the named event.
	TriggerActionEvent func(name string, data any)
}

// ActionHandler implements a custom action. It may return a cleanup
// function (func()) either directly or through a channel (<-chan func()),
// which the executor runs when the owning instance is destroyed.
type ActionHandler func(ctx context.Context, args map[string]any, actx ActionContext, event any) (any, error)

// RegisterFormula registers a Go handler in the versioned table.
func (r *Registry) RegisterFormula(pkg, name string, h FormulaHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{pkg: pkg, name: name}
	if _, exists := r.formulas[k]; exists {
		panic(fmt.Sprintf("formula '%s' already registered", ast.QualifiedName(pkg, name)))
	}
	slog.Debug("Registering formula handler.", "package", pkg, "name", name)
	r.formulas[k] = &Formula{Name: name, Package: pkg, Handler: h}
}

// RegisterDefinition registers a formula definition in the versioned table.
func (r *Registry) RegisterDefinition(def *ast.FormulaDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{pkg: def.Package, name: def.Name}
	if _, exists := r.formulas[k]; exists {
		panic(fmt.Sprintf("formula '%s' already registered", ast.QualifiedName(def.Package, def.Name)))
	}
	slog.Debug("Registering formula definition.", "package", def.Package, "name", def.Name)
	r.formulas[k] = &Formula{Name: def.Name, Package: def.Package, Definition: def}
}

// RegisterLegacyFormula registers a Go handler in the single-name table.
func (r *Registry) RegisterLegacyFormula(name string, h FormulaHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.legacyFormulas[name]; exists {
		panic(fmt.Sprintf("legacy formula '%s' already registered", name))
	}
	slog.Debug("Registering legacy formula handler.", "name", name)
	r.legacyFormulas[name] = h
}

// RegisterAction registers a custom action in the versioned table.
func (r *Registry) RegisterAction(pkg, name string, h ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{pkg: pkg, name: name}
	if _, exists := r.actions[k]; exists {
		panic(fmt.Sprintf("action '%s' already registered", ast.QualifiedName(pkg, name)))
	}
	slog.Debug("Registering action handler.", "package", pkg, "name", name)
	r.actions[k] = h
}

// RegisterLegacyAction registers a custom action in the single-name table.
func (r *Registry) RegisterLegacyAction(name string, h ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.legacyActions[name]; exists {
		panic(fmt.Sprintf("legacy action '%s' already registered", name))
	}
	slog.Debug("Registering legacy action handler.", "name", name)
	r.legacyActions[name] = h
}
