package walk

import (
	"sort"

	"github.com/vk/weave/internal/ast"
)

// walker drives one traversal. Either callback may be nil. A callback
// returning false stops the walk; every method then returns false.
type walker struct {
	onFormula func(FormulaVisit) bool
	onAction  func(ActionVisit) bool
}

func (w *walker) formula(f ast.Formula, path Path, pkg string) bool {
	if f == nil {
		return true
	}
	if w.onFormula != nil && !w.onFormula(FormulaVisit{Path: path, Formula: f, Package: pkg}) {
		return false
	}

	switch v := f.(type) {
	case *ast.Value, *ast.Path:
		return true
	case *ast.Function:
		if v.Package != "" {
			pkg = v.Package
		}
		return w.arguments(v.Arguments, path.With("arguments"), pkg)
	case *ast.Apply:
		return w.arguments(v.Arguments, path.With("arguments"), pkg)
	case *ast.Object:
		field := "arguments"
		if v.Record {
			field = "entries"
		}
		return w.arguments(v.Arguments, path.With(field), pkg)
	case *ast.Array:
		return w.arguments(v.Arguments, path.With("arguments"), pkg)
	case *ast.Or:
		return w.arguments(v.Arguments, path.With("arguments"), pkg)
	case *ast.And:
		return w.arguments(v.Arguments, path.With("arguments"), pkg)
	case *ast.Switch:
		for i, c := range v.Cases {
			if !w.formula(c.Condition, path.With("cases", index(i), "condition"), pkg) {
				return false
			}
			if !w.formula(c.Formula, path.With("cases", index(i), "formula"), pkg) {
				return false
			}
		}
		return w.formula(v.Default, path.With("default"), pkg)
	default:
		return true
	}
}

func (w *walker) arguments(args []ast.Argument, path Path, pkg string) bool {
	for i, a := range args {
		if !w.formula(a.Formula, path.With(index(i), "formula"), pkg) {
			return false
		}
	}
	return true
}

// formulaMap walks name -> formula entries as path.name[.suffix].
func (w *walker) formulaMap(m map[string]ast.Formula, path Path, suffix string, pkg string) bool {
	for _, name := range sortedKeys(m) {
		p := path.With(name)
		if suffix != "" {
			p = p.With(suffix)
		}
		if !w.formula(m[name], p, pkg) {
			return false
		}
	}
	return true
}

func (w *walker) actions(list []ast.Action, path Path, pkg string) bool {
	for i, a := range list {
		if !w.action(a, path.With(index(i)), pkg) {
			return false
		}
	}
	return true
}

// actionBodies walks name -> action list entries as path.name.actions.i.
func (w *walker) actionBodies(m map[string][]ast.Action, path Path, pkg string) bool {
	for _, name := range sortedKeys(m) {
		if !w.actions(m[name], path.With(name, "actions"), pkg) {
			return false
		}
	}
	return true
}

func (w *walker) action(a ast.Action, path Path, pkg string) bool {
	if a == nil {
		return true
	}
	if w.onAction != nil && !w.onAction(ActionVisit{Path: path, Action: a, Package: pkg}) {
		return false
	}

	switch v := a.(type) {
	case *ast.SetVariable:
		return w.formula(v.Data, path.With("data"), pkg)
	case *ast.TriggerEvent:
		return w.formula(v.Data, path.With("data"), pkg)
	case *ast.SwitchAction:
		for i, c := range v.Cases {
			if !w.formula(c.Condition, path.With("cases", index(i), "condition"), pkg) {
				return false
			}
			if !w.actions(c.Actions, path.With("cases", index(i), "actions"), pkg) {
				return false
			}
		}
		return w.actions(v.Default, path.With("default", "actions"), pkg)
	case *ast.Fetch:
		return w.formulaMap(v.Inputs, path.With("inputs"), "formula", pkg) &&
			w.actions(v.OnSuccess, path.With("onSuccess", "actions"), pkg) &&
			w.actions(v.OnError, path.With("onError", "actions"), pkg) &&
			w.actions(v.OnMessage, path.With("onMessage", "actions"), pkg)
	case *ast.AbortFetch:
		return true
	case *ast.Custom:
		return w.arguments(v.Arguments, path.With("arguments"), pkg) &&
			w.actionBodies(v.Events, path.With("events"), pkg)
	case *ast.SetURLParameter:
		return w.formula(v.Data, path.With("data"), pkg)
	case *ast.SetURLParameters:
		return w.formulaMap(v.Parameters, path.With("parameters"), "", pkg)
	case *ast.TriggerWorkflow:
		return w.formulaMap(v.Parameters, path.With("parameters"), "formula", pkg) &&
			w.actionBodies(v.Callbacks, path.With("callbacks"), pkg)
	case *ast.TriggerWorkflowCallback:
		return w.formula(v.Data, path.With("data"), pkg)
	default:
		return true
	}
}

func (w *walker) api(api *ast.API, path Path, pkg string) bool {
	if api == nil {
		return true
	}
	return w.formulaMap(api.Inputs, path.With("inputs"), "formula", pkg) &&
		w.formula(api.URL, path.With("url"), pkg) &&
		w.formula(api.Body, path.With("body"), pkg) &&
		w.formula(api.AutoFetch, path.With("autoFetch"), pkg) &&
		w.formulaMap(api.Headers, path.With("headers"), "formula", pkg) &&
		w.actions(api.OnCompleted, path.With("client", "onCompleted", "actions"), pkg) &&
		w.actions(api.OnFailed, path.With("client", "onFailed", "actions"), pkg)
}

func (w *walker) events(events map[string]*ast.EventHandler, path Path, pkg string) bool {
	for _, name := range sortedKeys(events) {
		if e := events[name]; e != nil {
			if !w.actions(e.Actions, path.With(name, "actions"), pkg) {
				return false
			}
		}
	}
	return true
}

func (w *walker) node(n ast.Node, path Path, pkg string) bool {
	switch v := n.(type) {
	case *ast.Element:
		return w.formula(v.Condition, path.With("condition"), pkg) &&
			w.formula(v.Repeat, path.With("repeat"), pkg) &&
			w.formula(v.RepeatKey, path.With("repeatKey"), pkg) &&
			w.formulaMap(v.Attrs, path.With("attrs"), "", pkg) &&
			w.formulaMap(v.Classes, path.With("classes"), "formula", pkg) &&
			w.events(v.Events, path.With("events"), pkg)
	case *ast.Text:
		return w.formula(v.Condition, path.With("condition"), pkg) &&
			w.formula(v.Repeat, path.With("repeat"), pkg) &&
			w.formula(v.RepeatKey, path.With("repeatKey"), pkg) &&
			w.formula(v.Value, path.With("value"), pkg)
	case *ast.ComponentNode:
		if v.Package != "" {
			pkg = v.Package
		}
		return w.formula(v.Condition, path.With("condition"), pkg) &&
			w.formula(v.Repeat, path.With("repeat"), pkg) &&
			w.formula(v.RepeatKey, path.With("repeatKey"), pkg) &&
			w.formulaMap(v.Attrs, path.With("attrs"), "", pkg) &&
			w.events(v.Events, path.With("events"), pkg)
	case *ast.Slot:
		return w.formula(v.Condition, path.With("condition"), pkg)
	default:
		return true
	}
}

func (w *walker) component(c *ast.Component, path Path) bool {
	if c == nil {
		return true
	}
	pkg := c.Package

	for _, name := range sortedKeys(c.Formulas) {
		if f := c.Formulas[name]; f != nil {
			if !w.formula(f.Formula, path.With("formulas", name, "formula"), pkg) {
				return false
			}
		}
	}
	for _, name := range sortedKeys(c.Variables) {
		if v := c.Variables[name]; v != nil {
			if !w.formula(v.InitialValue, path.With("variables", name, "initialValue"), pkg) {
				return false
			}
		}
	}
	for _, name := range sortedKeys(c.Workflows) {
		if wf := c.Workflows[name]; wf != nil {
			if !w.actions(wf.Actions, path.With("workflows", name, "actions"), pkg) {
				return false
			}
		}
	}
	for _, name := range sortedKeys(c.APIs) {
		if !w.api(c.APIs[name], path.With("apis", name), pkg) {
			return false
		}
	}
	for _, id := range sortedKeys(c.Nodes) {
		if !w.node(c.Nodes[id], path.With("nodes", id), pkg) {
			return false
		}
	}
	return w.actions(c.OnLoad, path.With("onLoad", "actions"), pkg) &&
		w.actions(c.OnAttributeChange, path.With("onAttributeChange", "actions"), pkg)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
