// Package ast defines the Formula, Action and component tree variants
// interpreted by the runtime, and lenient decoders for their JSON and YAML
// interchange shapes.
package ast

// Formula is an expression node. The set of variants is closed: only types
// in this package implement it.
type Formula interface {
	Kind() string
	isFormula()
}

// Formula kinds as they appear in the "type" field.
const (
	KindValue    = "value"
	KindPath     = "path"
	KindFunction = "function"
	KindApply    = "apply"
	KindObject   = "object"
	KindRecord   = "record"
	KindArray    = "array"
	KindOr       = "or"
	KindAnd      = "and"
	KindSwitch   = "switch"
)

// Argument is a named operand. Operands of positional variants (Array, Or,
// And) leave Name empty.
type Argument struct {
	Name    string
	Formula Formula
	// IsFunction marks a higher-order argument that is passed to the callee
	// as a closure instead of being evaluated up front.
	IsFunction bool
}

// Value is a literal.
type Value struct {
	Value any
}

// Path reads a value from the data root.
type Path struct {
	Path []string
}

// Function calls a named capability.
type Function struct {
	Name      string
	Package   string
	Arguments []Argument
}

// Apply calls a formula defined on the enclosing component.
type Apply struct {
	Name      string
	Arguments []Argument
}

// Object builds a mapping from named arguments. Record is the deprecated
// alias whose operands live under "entries".
type Object struct {
	Arguments []Argument
	Record    bool
}

// Array builds a sequence.
type Array struct {
	Arguments []Argument
}

// Or is true when any operand is truthy. Operands after the first truthy
// one are not evaluated.
type Or struct {
	Arguments []Argument
}

// And is false at the first falsy operand and true otherwise.
type And struct {
	Arguments []Argument
}

// SwitchCase pairs a condition with the formula returned when it holds.
type SwitchCase struct {
	Condition Formula
	Formula   Formula
}

// Switch returns the result of the first case whose condition is truthy, or
// Default.
type Switch struct {
	Cases   []SwitchCase
	Default Formula
}

func (*Value) Kind() string    { return KindValue }
func (*Path) Kind() string     { return KindPath }
func (*Function) Kind() string { return KindFunction }
func (*Apply) Kind() string    { return KindApply }
func (*Array) Kind() string    { return KindArray }
func (*Or) Kind() string       { return KindOr }
func (*And) Kind() string      { return KindAnd }
func (*Switch) Kind() string   { return KindSwitch }

func (o *Object) Kind() string {
	if o.Record {
		return KindRecord
	}
	return KindObject
}

func (*Value) isFormula()    {}
func (*Path) isFormula()     {}
func (*Function) isFormula() {}
func (*Apply) isFormula()    {}
func (*Object) isFormula()   {}
func (*Array) isFormula()    {}
func (*Or) isFormula()       {}
func (*And) isFormula()      {}
func (*Switch) isFormula()   {}

// QualifiedName joins a package and a name as "package/name". An empty
// package yields the bare name.
func QualifiedName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "/" + name
}
