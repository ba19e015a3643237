package ast

// Node is a component tree node. The set of variants is closed.
type Node interface {
	NodeKind() string
	isNode()
}

// Node kinds as they appear in the "type" field.
const (
	NodeElement   = "element"
	NodeText      = "text"
	NodeComponent = "component"
	NodeSlot      = "slot"
)

// EventHandler is the action list bound to a node event.
type EventHandler struct {
	Trigger string
	Actions []Action
}

// Element is a plain element node.
type Element struct {
	Tag       string
	Attrs     map[string]Formula
	Classes   map[string]Formula
	Events    map[string]*EventHandler
	Children  []string
	Condition Formula
	Repeat    Formula
	RepeatKey Formula
}

// Text is a text node.
type Text struct {
	Value     Formula
	Condition Formula
	Repeat    Formula
	RepeatKey Formula
}

// ComponentNode instantiates another component.
type ComponentNode struct {
	Name      string
	Package   string
	Attrs     map[string]Formula
	Events    map[string]*EventHandler
	Children  []string
	Condition Formula
	Repeat    Formula
	RepeatKey Formula
}

// Slot is a placeholder for children passed in by the parent component.
type Slot struct {
	Name      string
	Children  []string
	Condition Formula
}

func (*Element) NodeKind() string       { return NodeElement }
func (*Text) NodeKind() string          { return NodeText }
func (*ComponentNode) NodeKind() string { return NodeComponent }
func (*Slot) NodeKind() string          { return NodeSlot }

func (*Element) isNode()       {}
func (*Text) isNode()          {}
func (*ComponentNode) isNode() {}
func (*Slot) isNode()          {}
