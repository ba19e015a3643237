package action

import (
	"maps"

	"github.com/vk/weave/internal/limits"
)

// Scope is the execution context of one action list: the owning instance
// plus the values that exist only for this run.
type Scope struct {
	Instance *Instance
	// Event is the triggering event, visible to formulas as Event.
	Event any
	// Parameters are the workflow parameters, visible as Parameters.
	Parameters map[string]any
	// Slots are extra data root entries, for example ListItem.
	Slots map[string]any
	// Dispatch routes TriggerWorkflowCallback to the workflow's caller.
	Dispatch CallbackDispatch

	depth     int
	workflows *limits.Detector
}

// NewScope creates a scope on inst with the given triggering event.
func NewScope(inst *Instance, event any) *Scope {
	return &Scope{Instance: inst, Event: event}
}

// withEvent derives a scope for a nested list triggered by event.
func (s *Scope) withEvent(event any) *Scope {
	cc := *s
	cc.Event = event
	return &cc
}

// detached derives a scope for work that may run later or on another
// goroutine: it gets its own workflow cycle detector.
func (s *Scope) detached(event any) *Scope {
	cc := s.withEvent(event)
	cc.workflows = limits.NewDetector(limits.DomainWorkflow)
	return cc
}

// data builds the data root formulas see: the instance's current value
// plus Event, Parameters and extra slots.
func (s *Scope) data() map[string]any {
	root := s.Instance.Data.Get()
	out := make(map[string]any, len(root)+len(s.Slots)+2)
	maps.Copy(out, root)
	maps.Copy(out, s.Slots)
	if s.Event != nil {
		out["Event"] = s.Event
	}
	if s.Parameters != nil {
		out["Parameters"] = s.Parameters
	}
	return out
}
