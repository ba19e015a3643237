package action

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by *Error.
var (
	ErrUnknownAPI      = errors.New("unknown api")
	ErrUnknownAction   = errors.New("unknown custom action")
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrUnknownProvider = errors.New("unknown context provider")
	ErrNotExposed      = errors.New("workflow is not exposed in context")
	ErrNoDispatch      = errors.New("no workflow callback dispatch in scope")
	ErrNoCapability    = errors.New("capability not provided")
	ErrNoInstance      = errors.New("scope has no instance")
	ErrPanic           = errors.New("action panicked")
)

// Error is a soft execution failure as reported to the sink.
type Error struct {
	Kind string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("action %s %q: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("action %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
