package walk

import (
	"iter"

	"github.com/vk/weave/internal/ast"
)

// Formulas yields f and every formula beneath it, parents before children.
// The root visit has an empty path and pkg as its package.
func Formulas(f ast.Formula, pkg string) iter.Seq[FormulaVisit] {
	return func(yield func(FormulaVisit) bool) {
		w := &walker{onFormula: yield}
		w.formula(f, Path{}, pkg)
	}
}

// FormulasInActions yields every formula reachable from the action list,
// including formulas inside nested action lists. Paths start at the list
// index.
func FormulasInActions(actions []ast.Action, pkg string) iter.Seq[FormulaVisit] {
	return func(yield func(FormulaVisit) bool) {
		w := &walker{onFormula: yield}
		w.actions(actions, Path{}, pkg)
	}
}

// Actions yields every action in the list and in its nested lists, parents
// before children.
func Actions(actions []ast.Action, pkg string) iter.Seq[ActionVisit] {
	return func(yield func(ActionVisit) bool) {
		w := &walker{onAction: yield}
		w.actions(actions, Path{}, pkg)
	}
}

// FormulasInComponent yields every formula of c: component formulas,
// variable initial values, workflows, APIs, nodes, then lifecycle actions.
func FormulasInComponent(c *ast.Component) iter.Seq[FormulaVisit] {
	return func(yield func(FormulaVisit) bool) {
		w := &walker{onFormula: yield}
		w.component(c, Path{})
	}
}

// ActionsInComponent yields every action of c in the same order as
// FormulasInComponent.
func ActionsInComponent(c *ast.Component) iter.Seq[ActionVisit] {
	return func(yield func(ActionVisit) bool) {
		w := &walker{onAction: yield}
		w.component(c, Path{})
	}
}

// FormulasInAPI yields every formula of one API definition.
func FormulasInAPI(api *ast.API, pkg string) iter.Seq[FormulaVisit] {
	return func(yield func(FormulaVisit) bool) {
		w := &walker{onFormula: yield}
		w.api(api, Path{}, pkg)
	}
}

// FormulasInNode yields every formula of one component tree node.
func FormulasInNode(n ast.Node, pkg string) iter.Seq[FormulaVisit] {
	return func(yield func(FormulaVisit) bool) {
		w := &walker{onFormula: yield}
		w.node(n, Path{}, pkg)
	}
}
