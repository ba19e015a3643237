package action_test

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/weave/internal/action"
	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/diag"
	"github.com/vk/weave/internal/limits"
	"github.com/vk/weave/internal/registry"
	"github.com/vk/weave/internal/testutil"
)

type fixture struct {
	ctx    context.Context
	reg    *registry.Registry
	table  *limits.Table
	sink   *diag.Collector
	exec   *action.Executor
	events *testutil.EventRecorder
	url    *testutil.URLRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, _ := testutil.LoggedContext(t)
	f := &fixture{
		ctx:    ctx,
		reg:    registry.New(),
		table:  limits.New(),
		sink:   diag.NewCollector(),
		events: &testutil.EventRecorder{},
		url:    &testutil.URLRecorder{},
	}
	f.exec = action.NewExecutor(f.reg, f.table, f.sink)
	return f
}

func (f *fixture) instance(c *ast.Component, opts ...action.Option) *action.Instance {
	opts = append([]action.Option{action.WithEmitter(f.events), action.WithURLParameters(f.url)}, opts...)
	return f.exec.NewInstance(f.ctx, c, opts...)
}

func (f *fixture) run(inst *action.Instance, actions ...ast.Action) {
	f.exec.Execute(f.ctx, action.NewScope(inst, nil), actions...)
}

func errorIs(t *testing.T, errs []error, target error) {
	t.Helper()
	for _, err := range errs {
		if errors.Is(err, target) {
			return
		}
	}
	t.Fatalf("no error matching %v among %v", target, errs)
}

const counter = `
	name: Counter
	package: app
	variables:
	  count:
	    initialValue: {type: value, value: 0}
	  label:
	    initialValue: {type: value, value: ""}
`

func TestNewInstance_InitialVariables(t *testing.T) {
	f := newFixture(t)
	c := testutil.ComponentYAML(t, `
		name: Badge
		package: app
		variables:
		  label:
		    initialValue:
		      type: path
		      path: [Attributes, title]
		  hidden:
		    initialValue: {type: value, value: false}
	`)
	inst := f.instance(c, action.WithAttributes(map[string]any{"title": "Clicks"}))

	assert.NotEmpty(t, inst.ID)
	assert.Equal(t, "app", inst.Package)
	assert.Equal(t, map[string]any{"label": "Clicks", "hidden": false}, inst.Variables())
	assert.Zero(t, f.sink.Len())
}

func TestSetVariable_SingleNotification(t *testing.T) {
	f := newFixture(t)
	inst := f.instance(testutil.ComponentYAML(t, counter))

	notifications := 0
	inst.Data.Subscribe(func(map[string]any) { notifications++ }, nil)
	require.Equal(t, 1, notifications)

	f.run(inst, &ast.SetVariable{Variable: "count", Data: &ast.Value{Value: 10.0}})
	assert.Equal(t, 10.0, inst.Variables()["count"])
	assert.Equal(t, 2, notifications)

	f.run(inst, &ast.SetVariable{Variable: "count", Data: &ast.Value{Value: 10.0}})
	assert.Equal(t, 2, notifications, "an equal value must not notify")
}

func TestSetVariable_ReadsEvent(t *testing.T) {
	f := newFixture(t)
	inst := f.instance(testutil.ComponentYAML(t, counter))

	actions := testutil.ActionsYAML(t, `
		- type: SetVariable
		  variable: count
		  data: {type: path, path: [Event, detail]}
	`)
	f.exec.Execute(f.ctx, action.NewScope(inst, map[string]any{"detail": 7.0}), actions...)
	assert.Equal(t, 7.0, inst.Variables()["count"])
}

func TestSwitch_RunsOnlyFirstTruthyCase(t *testing.T) {
	f := newFixture(t)
	inst := f.instance(testutil.ComponentYAML(t, counter))

	actions := testutil.ActionsYAML(t, `
		- type: Switch
		  cases:
		    - condition: {type: value, value: false}
		      actions:
		        - {type: TriggerEvent, event: A}
		    - condition: {type: value, value: true}
		      actions:
		        - {type: TriggerEvent, event: B}
		  default:
		    actions:
		      - {type: TriggerEvent, event: C}
	`)
	f.run(inst, actions...)

	require.Len(t, f.events.Events(), 1)
	assert.Equal(t, "B", f.events.Events()[0].Name)
}

func TestSwitch_AbsentDefaultIsNoOp(t *testing.T) {
	f := newFixture(t)
	inst := f.instance(testutil.ComponentYAML(t, counter))
	f.run(inst, &ast.SwitchAction{Cases: []ast.ActionCase{{Condition: &ast.Value{Value: 0.0}}}})
	assert.Empty(t, f.events.Events())
	assert.Zero(t, f.sink.Len())
}

func TestTriggerEventAndURLParameters(t *testing.T) {
	f := newFixture(t)
	inst := f.instance(testutil.ComponentYAML(t, counter))

	actions := testutil.ActionsYAML(t, `
		- type: TriggerEvent
		  event: changed
		  data: {type: path, path: [Variables, count]}
		- type: SetURLParameter
		  parameter: page
		  data: {type: value, value: 2}
		  historyMode: push
		- type: SetURLParameters
		  parameters:
		    q: {type: value, value: shoes}
		  historyMode: replace
	`)
	f.run(inst, actions...)

	assert.Equal(t, []testutil.Event{{Name: "changed", Data: 0.0}}, f.events.Events())
	assert.Equal(t, map[string]any{"page": 2.0, "q": "shoes"}, f.url.Params())
	assert.Equal(t, "replace", f.url.HistoryMode())
}

func TestMissingCapabilitiesAreSkipped(t *testing.T) {
	f := newFixture(t)
	inst := f.exec.NewInstance(f.ctx, testutil.ComponentYAML(t, counter))

	f.run(inst,
		&ast.TriggerEvent{Event: "x"},
		&ast.SetURLParameter{Parameter: "p"},
		&ast.SetVariable{Variable: "count", Data: &ast.Value{Value: 1.0}},
	)
	errorIs(t, f.sink.Errors(), action.ErrNoCapability)
	assert.Equal(t, 1.0, inst.Variables()["count"])
}

const workflows = `
	name: Store
	package: app
	variables:
	  count:
	    initialValue: {type: value, value: 0}
	  result:
	    initialValue: {type: value, value: null}
	workflows:
	  increment:
	    exposeInContext: true
	    parameters: [{name: by}]
	    callbacks: [{name: done}]
	    actions:
	      - type: SetVariable
	        variable: count
	        data: {type: path, path: [Parameters, by]}
	      - type: TriggerWorkflowCallback
	        event: done
	        data: {type: path, path: [Variables, count]}
	  private:
	    actions:
	      - type: SetVariable
	        variable: count
	        data: {type: value, value: -1}
	  loop:
	    actions:
	      - type: TriggerWorkflow
	        workflow: loop
	  ping:
	    actions:
	      - type: TriggerWorkflowCallback
	        event: again
	  load:
	    actions:
	      - type: Fetch
	        api: items
	        onSuccess:
	          actions:
	            - type: TriggerWorkflowCallback
	              event: loaded
	              data: {type: path, path: [Event]}
`

func TestTriggerWorkflow_LocalWithCallback(t *testing.T) {
	f := newFixture(t)
	inst := f.instance(testutil.ComponentYAML(t, workflows))

	actions := testutil.ActionsYAML(t, `
		- type: TriggerWorkflow
		  workflow: increment
		  parameters:
		    by:
		      formula: {type: value, value: 5}
		  callbacks:
		    done:
		      actions:
		        - type: SetVariable
		          variable: result
		          data: {type: path, path: [Event]}
	`)
	f.run(inst, actions...)

	assert.Equal(t, 5.0, inst.Variables()["count"])
	assert.Equal(t, 5.0, inst.Variables()["result"])
}

func TestTriggerWorkflow_MutatesProviderNotCaller(t *testing.T) {
	f := newFixture(t)
	providers := action.NewProviders()
	store := f.instance(testutil.ComponentYAML(t, workflows), action.WithProviders(providers), action.AsProvider())
	caller := f.instance(testutil.ComponentYAML(t, counter), action.WithProviders(providers))

	actions := testutil.ActionsYAML(t, `
		- type: TriggerWorkflow
		  contextProvider: Store
		  workflow: increment
		  parameters:
		    by:
		      formula: {type: path, path: [Variables, count]}
		  callbacks:
		    done:
		      actions:
		        - type: SetVariable
		          variable: label
		          data: {type: path, path: [Event]}
	`)
	f.run(caller, &ast.SetVariable{Variable: "count", Data: &ast.Value{Value: 3.0}})
	f.run(caller, actions...)

	assert.Equal(t, 3.0, store.Variables()["count"], "parameters come from the caller, the write lands on the owner")
	assert.Equal(t, 3.0, caller.Variables()["count"])
	assert.Equal(t, 3.0, caller.Variables()["label"], "the callback runs in the caller's scope")
}

func TestTriggerWorkflow_ProviderRules(t *testing.T) {
	f := newFixture(t)
	providers := action.NewProviders()
	store := f.instance(testutil.ComponentYAML(t, workflows), action.WithProviders(providers), action.AsProvider())
	caller := f.instance(testutil.ComponentYAML(t, counter), action.WithProviders(providers))

	f.run(caller, &ast.TriggerWorkflow{ContextProvider: "Store", Workflow: "private"})
	errorIs(t, f.sink.Errors(), action.ErrNotExposed)
	assert.Equal(t, 0.0, store.Variables()["count"])

	f.run(caller, &ast.TriggerWorkflow{ContextProvider: "Missing", Workflow: "increment"})
	errorIs(t, f.sink.Errors(), action.ErrUnknownProvider)

	f.run(caller, &ast.TriggerWorkflow{Workflow: "nope"})
	errorIs(t, f.sink.Errors(), action.ErrUnknownWorkflow)

	store.Destroy()
	_, ok := providers.Lookup("app/Store")
	assert.False(t, ok, "destroying a provider unregisters it")
}

func TestTriggerWorkflow_SelfRecursionIsACycle(t *testing.T) {
	f := newFixture(t)
	inst := f.instance(testutil.ComponentYAML(t, workflows))

	f.run(inst, &ast.TriggerWorkflow{Workflow: "loop"})
	var cycle *limits.CycleError
	require.True(t, errors.As(f.sink.Errors()[0], &cycle))
	assert.Equal(t, limits.DomainWorkflow, cycle.Domain)
}

func TestTriggerWorkflow_CallbackLoopIsACycle(t *testing.T) {
	f := newFixture(t)
	inst := f.instance(testutil.ComponentYAML(t, workflows))

	actions := testutil.ActionsYAML(t, `
		- type: TriggerWorkflow
		  workflow: ping
		  callbacks:
		    again:
		      actions:
		        - type: TriggerWorkflow
		          workflow: ping
	`)
	f.run(inst, actions...)

	require.Equal(t, 1, f.sink.Len())
	var cycle *limits.CycleError
	require.True(t, errors.As(f.sink.Errors()[0], &cycle))
	assert.Equal(t, limits.DomainWorkflow, cycle.Domain)
}

func TestTriggerWorkflow_CallbackFromContinuation(t *testing.T) {
	f := newFixture(t)
	api := &testutil.FakeAPI{}
	inst := f.instance(testutil.ComponentYAML(t, workflows), action.WithAPI("items", api))

	actions := testutil.ActionsYAML(t, `
		- type: TriggerWorkflow
		  workflow: load
		  callbacks:
		    loaded:
		      actions:
		        - type: SetVariable
		          variable: result
		          data: {type: path, path: [Event]}
	`)
	f.run(inst, actions...)
	require.Len(t, api.Calls(), 1)
	assert.Nil(t, inst.Variables()["result"])

	api.Last().Callbacks.OnSuccess(42.0)
	assert.Equal(t, 42.0, inst.Variables()["result"])
	assert.Zero(t, f.sink.Len())
}

func TestTriggerWorkflowCallback_WithoutDispatch(t *testing.T) {
	f := newFixture(t)
	inst := f.instance(testutil.ComponentYAML(t, counter))

	f.run(inst,
		&ast.TriggerWorkflowCallback{Event: "done"},
		&ast.TriggerEvent{Event: "after"},
	)
	errorIs(t, f.sink.Errors(), action.ErrNoDispatch)
	assert.Len(t, f.events.Events(), 1)
}

const fetching = `
	name: List
	package: app
	variables:
	  items:
	    initialValue: {type: array, arguments: []}
	  error:
	    initialValue: {type: value, value: null}
`

func TestFetch_ContinuationsRouteToNestedLists(t *testing.T) {
	f := newFixture(t)
	api := &testutil.FakeAPI{}
	inst := f.instance(testutil.ComponentYAML(t, fetching), action.WithAPI("items", api))

	actions := testutil.ActionsYAML(t, `
		- type: Fetch
		  api: items
		  inputs:
		    page:
		      formula: {type: value, value: 1}
		  onSuccess:
		    actions:
		      - type: SetVariable
		        variable: items
		        data: {type: path, path: [Event, body]}
		  onError:
		    actions:
		      - type: SetVariable
		        variable: error
		        data: {type: path, path: [Event]}
		  onMessage:
		    actions:
		      - {type: TriggerEvent, event: message}
		- {type: TriggerEvent, event: started}
	`)
	f.run(inst, actions...)

	require.Len(t, api.Calls(), 1)
	assert.Equal(t, map[string]any{"page": 1.0}, api.Last().Inputs)
	assert.Equal(t, []testutil.Event{{Name: "started"}}, f.events.Events(), "Fetch returns before any continuation")

	cb := api.Last().Callbacks
	cb.OnMessage("chunk")
	cb.OnSuccess(map[string]any{"body": []any{"a"}})
	assert.Equal(t, []any{"a"}, inst.Variables()["items"])

	cb.OnError("offline")
	assert.Equal(t, "offline", inst.Variables()["error"])
	assert.Len(t, f.events.Events(), 2)
}

func TestFetch_ContinuationOnOtherGoroutine(t *testing.T) {
	f := newFixture(t)
	api := &testutil.FakeAPI{}
	inst := f.instance(testutil.ComponentYAML(t, fetching), action.WithAPI("items", api))

	f.run(inst, &ast.Fetch{API: "items", OnSuccess: []ast.Action{
		&ast.SetVariable{Variable: "items", Data: &ast.Path{Path: []string{"Event"}}},
	}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		api.Last().Callbacks.OnSuccess([]any{1.0})
	}()
	<-done
	assert.Equal(t, []any{1.0}, inst.Variables()["items"])
}

func TestFetch_ConcurrentContinuationsKeepEveryWrite(t *testing.T) {
	f := newFixture(t)
	api := &testutil.FakeAPI{}
	inst := f.instance(testutil.ComponentYAML(t, fetching), action.WithAPI("items", api))
	inst.Data.Subscribe(func(map[string]any) {}, nil)

	const n = 200
	for i := range n {
		f.run(inst, &ast.Fetch{API: "items", OnSuccess: []ast.Action{
			&ast.SetVariable{Variable: "v" + strconv.Itoa(i), Data: &ast.Path{Path: []string{"Event"}}},
		}})
	}
	calls := api.Calls()
	require.Len(t, calls, n)

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			call.Callbacks.OnSuccess(float64(i))
		}()
	}
	wg.Wait()

	vars := inst.Variables()
	for i := range n {
		assert.Equal(t, float64(i), vars["v"+strconv.Itoa(i)], "write %d lost", i)
	}
}

func TestFetch_UnknownAPIAndAbort(t *testing.T) {
	f := newFixture(t)
	api := &testutil.FakeAPI{}
	inst := f.instance(testutil.ComponentYAML(t, fetching), action.WithAPI("items", api))

	f.run(inst,
		&ast.Fetch{API: "missing"},
		&ast.AbortFetch{API: "items"},
		&ast.AbortFetch{API: "missing"},
	)
	errorIs(t, f.sink.Errors(), action.ErrUnknownAPI)
	assert.Equal(t, 1, f.sink.Len(), "aborting an unknown API is silent")
	assert.Equal(t, 1, api.Cancels())
}

func TestFetch_ContinuationAfterDestroyIsIgnored(t *testing.T) {
	f := newFixture(t)
	api := &testutil.FakeAPI{}
	inst := f.instance(testutil.ComponentYAML(t, fetching), action.WithAPI("items", api))

	f.run(inst, &ast.Fetch{API: "items", OnSuccess: []ast.Action{&ast.TriggerEvent{Event: "late"}}})
	inst.Destroy()
	api.Last().Callbacks.OnSuccess(nil)
	assert.Empty(t, f.events.Events())
}

func TestCustom_ArgumentsRootEventsAndCleanup(t *testing.T) {
	f := newFixture(t)
	var cleanups atomic.Int32
	var gotArgs map[string]any
	var gotEvent any

	f.reg.RegisterAction("app", "track", func(_ context.Context, args map[string]any, actx registry.ActionContext, event any) (any, error) {
		gotArgs = args
		gotEvent = event
		vars := actx.Root["Variables"].(map[string]any)
		vars["count"] = 999.0 // private copy
		actx.TriggerActionEvent("tracked", "ok")
		return func() { cleanups.Add(1) }, nil
	})
	inst := f.instance(testutil.ComponentYAML(t, counter))

	actions := testutil.ActionsYAML(t, `
		- name: track
		  arguments:
		    - name: label
		      formula: {type: value, value: signup}
		  events:
		    tracked:
		      actions:
		        - type: SetVariable
		          variable: label
		          data: {type: path, path: [Event]}
	`)
	f.exec.Execute(f.ctx, action.NewScope(inst, "click"), actions...)

	assert.Equal(t, map[string]any{"label": "signup"}, gotArgs)
	assert.Equal(t, "click", gotEvent)
	assert.Equal(t, 0.0, inst.Variables()["count"], "the handler's root is a copy")
	assert.Equal(t, "ok", inst.Variables()["label"])

	inst.Destroy()
	inst.Destroy()
	assert.Equal(t, int32(1), cleanups.Load())
}

func TestCustom_DeferredCleanup(t *testing.T) {
	f := newFixture(t)
	var cleaned atomic.Bool
	f.reg.RegisterLegacyAction("subscribe", func(context.Context, map[string]any, registry.ActionContext, any) (any, error) {
		ch := make(chan func(), 1)
		ch <- func() { cleaned.Store(true) }
		return (<-chan func())(ch), nil
	})
	inst := f.instance(testutil.ComponentYAML(t, counter))

	f.run(inst, &ast.Custom{Name: "subscribe"})
	inst.Destroy()
	require.Eventually(t, cleaned.Load, time.Second, 5*time.Millisecond)
}

func TestCustom_UnfedCleanupChannelReleasedOnDestroy(t *testing.T) {
	f := newFixture(t)
	never := make(chan func())
	f.reg.RegisterLegacyAction("hang", func(context.Context, map[string]any, registry.ActionContext, any) (any, error) {
		return (<-chan func())(never), nil
	})
	inst := f.instance(testutil.ComponentYAML(t, counter))

	before := runtime.NumGoroutine()
	f.run(inst, &ast.Custom{Name: "hang"})
	inst.Destroy()

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 5*time.Millisecond, "the cleanup waiter must exit once the instance is destroyed")
}

func TestCustom_FailuresDoNotStopSiblings(t *testing.T) {
	f := newFixture(t)
	f.reg.RegisterLegacyAction("explode", func(context.Context, map[string]any, registry.ActionContext, any) (any, error) {
		panic("boom")
	})
	f.reg.RegisterLegacyAction("fail", func(context.Context, map[string]any, registry.ActionContext, any) (any, error) {
		return nil, errors.New("refused")
	})
	inst := f.instance(testutil.ComponentYAML(t, counter))

	f.run(inst,
		&ast.Custom{Name: "explode"},
		&ast.Custom{Name: "fail"},
		&ast.Custom{Name: "unknown"},
		&ast.SetVariable{Variable: "count", Data: &ast.Value{Value: 4.0}},
	)

	errorIs(t, f.sink.Errors(), action.ErrPanic)
	errorIs(t, f.sink.Errors(), action.ErrUnknownAction)
	assert.Len(t, f.sink.Errors(), 3)
	assert.Equal(t, 4.0, inst.Variables()["count"])
}

func TestDepthGuard(t *testing.T) {
	f := newFixture(t)
	f.table.Override(limits.CategoryAction, map[string]int64{limits.MaxDepth: 3})
	inst := f.instance(testutil.ComponentYAML(t, counter))

	var nested ast.Action = &ast.SetVariable{Variable: "count", Data: &ast.Value{Value: 1.0}}
	for range 4 {
		nested = &ast.SwitchAction{Default: []ast.Action{nested}}
	}
	f.run(inst, nested, &ast.TriggerEvent{Event: "sibling"})

	assert.Equal(t, 0.0, inst.Variables()["count"])
	var exceeded *limits.LimitExceededError
	require.True(t, errors.As(f.sink.Errors()[0], &exceeded))
	assert.Equal(t, int64(4), exceeded.Value)
	assert.Len(t, f.events.Events(), 1)
}

func TestLoadAndAttributesChanged(t *testing.T) {
	f := newFixture(t)
	c := testutil.ComponentYAML(t, `
		name: Title
		package: app
		variables:
		  seen:
		    initialValue: {type: value, value: 0}
		onLoad:
		  actions:
		    - {type: TriggerEvent, event: loaded}
		onAttributeChange:
		  actions:
		    - type: SetVariable
		      variable: seen
		      data: {type: path, path: [Attributes, text]}
	`)
	inst := f.instance(c, action.WithAttributes(map[string]any{"text": "a"}))

	f.exec.Load(f.ctx, inst)
	assert.Equal(t, "loaded", f.events.Events()[0].Name)

	f.exec.AttributesChanged(f.ctx, inst, map[string]any{"text": "b"})
	assert.Equal(t, "b", inst.Variables()["seen"])
}

func TestExecute_NilScope(t *testing.T) {
	f := newFixture(t)
	f.exec.Execute(f.ctx, nil, &ast.TriggerEvent{})
	errorIs(t, f.sink.Errors(), action.ErrNoInstance)
}

func TestMemoCacheIsPerInstance(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.reg.RegisterLegacyFormula("expensive", func(context.Context, map[string]any) (any, error) {
		calls++
		return 1.0, nil
	})
	c := testutil.ComponentYAML(t, `
		name: Memo
		formulas:
		  cached:
		    memoize: true
		    formula: {type: function, name: expensive}
	`)
	a := f.instance(c)
	b := f.instance(c)
	apply := &ast.Apply{Name: "cached"}

	f.exec.Evaluate(f.ctx, action.NewScope(a, nil), apply)
	f.exec.Evaluate(f.ctx, action.NewScope(a, nil), apply)
	f.exec.Evaluate(f.ctx, action.NewScope(b, nil), apply)
	assert.Equal(t, 2, calls)

	a.Destroy()
	assert.Zero(t, a.Cache.Len())
}
