package ast

// Action is an effect node. The set of variants is closed.
type Action interface {
	ActionKind() string
	isAction()
}

// Action kinds as they appear in the "type" field.
const (
	ActionSetVariable             = "SetVariable"
	ActionTriggerEvent            = "TriggerEvent"
	ActionSwitch                  = "Switch"
	ActionFetch                   = "Fetch"
	ActionAbortFetch              = "AbortFetch"
	ActionCustom                  = "Custom"
	ActionSetURLParameter         = "SetURLParameter"
	ActionSetURLParameters        = "SetURLParameters"
	ActionTriggerWorkflow         = "TriggerWorkflow"
	ActionTriggerWorkflowCallback = "TriggerWorkflowCallback"
)

// SetVariable writes the result of Data into the owner's Variables slot.
type SetVariable struct {
	Variable string
	Data     Formula
}

// TriggerEvent emits a component event.
type TriggerEvent struct {
	Event string
	Data  Formula
}

// ActionCase pairs a condition with a nested action list.
type ActionCase struct {
	Condition Formula
	Actions   []Action
}

// SwitchAction runs the first case whose condition is truthy, or Default.
// A nil Default is a legal no-op.
type SwitchAction struct {
	Cases   []ActionCase
	Default []Action
}

// Fetch starts the named API and routes its continuations into the
// matching nested lists.
type Fetch struct {
	API       string
	Inputs    map[string]Formula
	OnSuccess []Action
	OnError   []Action
	OnMessage []Action
}

// AbortFetch cancels the named API if it supports cancellation.
type AbortFetch struct {
	API string
}

// Custom invokes a package-namespaced user action. Events holds the nested
// lists the action may trigger through triggerActionEvent.
type Custom struct {
	Name      string
	Package   string
	Arguments []Argument
	Events    map[string][]Action
}

// SetURLParameter sets one URL parameter.
type SetURLParameter struct {
	Parameter   string
	Data        Formula
	HistoryMode string
}

// SetURLParameters sets several URL parameters at once.
type SetURLParameters struct {
	Parameters  map[string]Formula
	HistoryMode string
}

// TriggerWorkflow runs a workflow owned by this component or, when
// ContextProvider is set, by a provider component.
type TriggerWorkflow struct {
	Workflow        string
	ContextProvider string
	Package         string
	Parameters      map[string]Formula
	Callbacks       map[string][]Action
}

// TriggerWorkflowCallback routes data back to the caller of the running
// workflow.
type TriggerWorkflowCallback struct {
	Event string
	Data  Formula
}

func (*SetVariable) ActionKind() string             { return ActionSetVariable }
func (*TriggerEvent) ActionKind() string            { return ActionTriggerEvent }
func (*SwitchAction) ActionKind() string            { return ActionSwitch }
func (*Fetch) ActionKind() string                   { return ActionFetch }
func (*AbortFetch) ActionKind() string              { return ActionAbortFetch }
func (*Custom) ActionKind() string                  { return ActionCustom }
func (*SetURLParameter) ActionKind() string         { return ActionSetURLParameter }
func (*SetURLParameters) ActionKind() string        { return ActionSetURLParameters }
func (*TriggerWorkflow) ActionKind() string         { return ActionTriggerWorkflow }
func (*TriggerWorkflowCallback) ActionKind() string { return ActionTriggerWorkflowCallback }

func (*SetVariable) isAction()             {}
func (*TriggerEvent) isAction()            {}
func (*SwitchAction) isAction()            {}
func (*Fetch) isAction()                   {}
func (*AbortFetch) isAction()              {}
func (*Custom) isAction()                  {}
func (*SetURLParameter) isAction()         {}
func (*SetURLParameters) isAction()        {}
func (*TriggerWorkflow) isAction()         {}
func (*TriggerWorkflowCallback) isAction() {}
