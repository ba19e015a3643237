package testutil

import (
	"context"
	"sync"

	"github.com/vk/weave/internal/action"
)

// FetchCall is one recorded call to a FakeAPI.
type FetchCall struct {
	Inputs    map[string]any
	Callbacks action.Callbacks
}

// FakeAPI records Fetch calls without resolving them. Tests complete a call
// later through its recorded callbacks, which mirrors a real transport
// answering after Fetch has returned.
type FakeAPI struct {
	mu      sync.Mutex
	calls   []FetchCall
	cancels int
}

// Fetch implements action.API.
func (a *FakeAPI) Fetch(_ context.Context, inputs map[string]any, cb action.Callbacks) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, FetchCall{Inputs: inputs, Callbacks: cb})
}

// Cancel implements action.Canceler.
func (a *FakeAPI) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancels++
}

// Calls returns the recorded calls in order.
func (a *FakeAPI) Calls() []FetchCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]FetchCall(nil), a.calls...)
}

// Last returns the most recent call. It panics when there is none.
func (a *FakeAPI) Last() FetchCall {
	calls := a.Calls()
	return calls[len(calls)-1]
}

// Cancels returns how many times Cancel was called.
func (a *FakeAPI) Cancels() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancels
}

// Event is one recorded emission.
type Event struct {
	Name string
	Data any
}

// EventRecorder is an action.Emitter that keeps every event.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements action.Emitter.
func (r *EventRecorder) Emit(_ context.Context, name string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, Data: data})
}

// Events returns the recorded events in order.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// URLRecorder is an action.URLParameters that merges every change into
// one mapping and remembers the last history mode.
type URLRecorder struct {
	mu          sync.Mutex
	params      map[string]any
	historyMode string
}

// SetParameter implements action.URLParameters.
func (r *URLRecorder) SetParameter(_ context.Context, name string, value any, mode string) {
	r.SetParameters(context.Background(), map[string]any{name: value}, mode)
}

// SetParameters implements action.URLParameters.
func (r *URLRecorder) SetParameters(_ context.Context, values map[string]any, mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.params == nil {
		r.params = make(map[string]any)
	}
	for k, v := range values {
		r.params[k] = v
	}
	r.historyMode = mode
}

// Params returns a copy of the current parameters.
func (r *URLRecorder) Params() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

// HistoryMode returns the mode of the last change.
func (r *URLRecorder) HistoryMode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.historyMode
}
