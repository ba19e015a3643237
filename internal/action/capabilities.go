package action

import "context"

// Callbacks are the continuations of one Fetch. Each may be invoked any
// number of times, from any goroutine, after Fetch has returned.
type Callbacks struct {
	OnSuccess func(payload any)
	OnError   func(payload any)
	OnMessage func(payload any)
}

// API is the capability behind one named component API. Fetch must not
// block; results are delivered through the callbacks.
type API interface {
	Fetch(ctx context.Context, inputs map[string]any, cb Callbacks)
}

// Canceler is implemented by APIs that support AbortFetch.
type Canceler interface {
	Cancel()
}

// Emitter receives component events raised by TriggerEvent.
type Emitter interface {
	Emit(ctx context.Context, event string, data any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, event string, data any)

func (f EmitterFunc) Emit(ctx context.Context, event string, data any) { f(ctx, event, data) }

// URLParameters applies URL parameter changes. How they reach the browser
// history is not the executor's concern.
type URLParameters interface {
	SetParameter(ctx context.Context, name string, value any, historyMode string)
	SetParameters(ctx context.Context, values map[string]any, historyMode string)
}

// CallbackDispatch routes a TriggerWorkflowCallback back to the caller of
// the running workflow. from is the scope the callback action ran in.
type CallbackDispatch func(ctx context.Context, from *Scope, name string, data any)
