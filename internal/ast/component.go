package ast

// Parameter names an input of a formula, workflow or callback.
type Parameter struct {
	Name string
}

// Variable is a component variable with its initial value formula.
type Variable struct {
	InitialValue Formula
}

// ComponentFormula is a formula defined on a component and reachable
// through Apply.
type ComponentFormula struct {
	Name            string
	Arguments       []Parameter
	Memoize         bool
	ExposeInContext bool
	Formula         Formula
}

// Workflow is a named, reusable action list.
type Workflow struct {
	Name            string
	Parameters      []Parameter
	Callbacks       []Parameter
	Actions         []Action
	ExposeInContext bool
}

// API describes a named API of a component. Only the formula- and
// action-bearing parts are modelled; transport lives outside the core.
type API struct {
	Name        string
	Method      string
	Inputs      map[string]Formula
	URL         Formula
	Body        Formula
	AutoFetch   Formula
	Headers     map[string]Formula
	OnCompleted []Action
	OnFailed    []Action
}

// Component is a component definition.
type Component struct {
	Name              string
	Package           string
	Variables         map[string]*Variable
	Formulas          map[string]*ComponentFormula
	Workflows         map[string]*Workflow
	APIs              map[string]*API
	Nodes             map[string]Node
	OnLoad            []Action
	OnAttributeChange []Action
}

// Formula returns the component formula with the given name.
func (c *Component) Formula(name string) (*ComponentFormula, bool) {
	if c == nil {
		return nil, false
	}
	f, ok := c.Formulas[name]
	return f, ok && f != nil
}

// Workflow returns the workflow with the given name.
func (c *Component) Workflow(name string) (*Workflow, bool) {
	if c == nil {
		return nil, false
	}
	w, ok := c.Workflows[name]
	return w, ok && w != nil
}

// QualifiedName returns the package-qualified component name.
func (c *Component) QualifiedName() string {
	return QualifiedName(c.Package, c.Name)
}

// FormulaDefinition is a formula published by a package and resolved by
// name like any other capability.
type FormulaDefinition struct {
	Name      string
	Package   string
	Arguments []Parameter
	Formula   Formula
}

// Package groups components and formula definitions under one namespace.
type Package struct {
	Name       string
	Components map[string]*Component
	Formulas   map[string]*FormulaDefinition
}
