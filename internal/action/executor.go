package action

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"

	"github.com/tiendc/go-deepcopy"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/ctxlog"
	"github.com/vk/weave/internal/diag"
	"github.com/vk/weave/internal/formula"
	"github.com/vk/weave/internal/limits"
	"github.com/vk/weave/internal/registry"
)

// Executor runs action lists. It holds no per-instance state and may be
// shared by every instance of a runtime.
type Executor struct {
	registry *registry.Registry
	limits   *limits.Table
	sink     diag.Sink
}

// NewExecutor creates an executor. A nil sink logs soft failures at warn.
func NewExecutor(reg *registry.Registry, table *limits.Table, sink diag.Sink) *Executor {
	if sink == nil {
		sink = diag.LogSink{Level: slog.LevelWarn}
	}
	return &Executor{registry: reg, limits: table, sink: sink}
}

// NewInstance creates an instance of c and fills its Variables slot from
// the variables' initial value formulas, in name order.
func (e *Executor) NewInstance(ctx context.Context, c *ast.Component, opts ...Option) *Instance {
	cfg := &instanceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	inst := newInstance(ctx, c, cfg)

	vars := make(map[string]any, len(c.Variables))
	fctx := e.formulaContext(ctx, NewScope(inst, nil))
	for _, name := range sortedKeys(c.Variables) {
		if v := c.Variables[name]; v != nil {
			vars[name] = formula.Evaluate(v.InitialValue, fctx)
		}
	}
	inst.Data.Update(func(root map[string]any) map[string]any {
		next := maps.Clone(root)
		next[formula.SlotVariables] = vars
		return next
	})

	ctxlog.FromContext(ctx).Debug("Instance created.", "instance", inst.ID, "component", c.QualifiedName(), "variables", len(vars))
	return inst
}

// Load runs the component's onLoad actions.
func (e *Executor) Load(ctx context.Context, inst *Instance) {
	e.Execute(ctx, NewScope(inst, nil), inst.Component.OnLoad...)
}

// AttributesChanged replaces the Attributes slot and runs the component's
// onAttributeChange actions with the new attributes as the event.
func (e *Executor) AttributesChanged(ctx context.Context, inst *Instance, attrs map[string]any) {
	inst.Data.Update(func(root map[string]any) map[string]any {
		next := maps.Clone(root)
		next[formula.SlotAttributes] = maps.Clone(attrs)
		return next
	})
	e.Execute(ctx, NewScope(inst, attrs), inst.Component.OnAttributeChange...)
}

// Evaluate evaluates a formula in the scope of s.
func (e *Executor) Evaluate(ctx context.Context, s *Scope, f ast.Formula) any {
	return formula.Evaluate(f, e.formulaContext(ctx, s))
}

// Execute runs actions in order under s. It returns once every action has
// finished its synchronous part.
func (e *Executor) Execute(ctx context.Context, s *Scope, actions ...ast.Action) {
	if s == nil || s.Instance == nil {
		e.sink.Report(ctx, &Error{Kind: "list", Err: ErrNoInstance})
		return
	}
	if s.workflows == nil {
		cc := *s
		cc.workflows = limits.NewDetector(limits.DomainWorkflow)
		s = &cc
	}
	e.run(ctx, s, actions, s.depth)
}

// run is the recursive entry for a list. depth is the caller's depth.
func (e *Executor) run(ctx context.Context, s *Scope, list []ast.Action, depth int) {
	if len(list) == 0 {
		return
	}
	depth++
	if err := e.limits.Check(limits.CategoryAction, limits.MaxDepth, int64(depth)); err != nil {
		e.sink.Report(ctx, &Error{Kind: "list", Err: err})
		return
	}
	if err := e.limits.Check(limits.CategoryAction, limits.MaxListLength, int64(len(list))); err != nil {
		e.sink.Report(ctx, &Error{Kind: "list", Err: err})
		return
	}
	for _, a := range list {
		if err := ctx.Err(); err != nil {
			e.sink.Report(ctx, &Error{Kind: "list", Err: err})
			return
		}
		e.step(ctx, s, a, depth)
	}
}

func (e *Executor) fail(ctx context.Context, a ast.Action, name string, err error) {
	kind := "unknown"
	if a != nil {
		kind = a.ActionKind()
	}
	e.sink.Report(ctx, &Error{Kind: kind, Name: name, Err: err})
}

func (e *Executor) formulaContext(ctx context.Context, s *Scope) *formula.Context {
	return &formula.Context{
		Ctx:       ctx,
		Data:      s.data(),
		Component: s.Instance.Component,
		Package:   s.Instance.Package,
		Registry:  e.registry,
		Cache:     s.Instance.Cache,
		Limits:    e.limits,
		Sink:      e.sink,
	}
}

// evaluateMap evaluates every entry of a name -> formula mapping.
func (e *Executor) evaluateMap(fctx *formula.Context, m map[string]ast.Formula) map[string]any {
	out := make(map[string]any, len(m))
	for _, name := range sortedKeys(m) {
		out[name] = formula.Evaluate(m[name], fctx)
	}
	return out
}

// step runs one action behind a recover boundary so a failing action never
// stops its siblings.
func (e *Executor) step(ctx context.Context, s *Scope, a ast.Action, depth int) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(ctx, a, "", fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	switch v := a.(type) {
	case *ast.SetVariable:
		e.setVariable(ctx, s, v)
	case *ast.TriggerEvent:
		if s.Instance.emitter == nil {
			e.fail(ctx, v, v.Event, ErrNoCapability)
			return
		}
		data := e.Evaluate(ctx, s, v.Data)
		s.Instance.emitter.Emit(ctx, v.Event, data)
	case *ast.SwitchAction:
		fctx := e.formulaContext(ctx, s)
		for _, c := range v.Cases {
			if formula.Truthy(formula.Evaluate(c.Condition, fctx)) {
				e.run(ctx, s, c.Actions, depth)
				return
			}
		}
		e.run(ctx, s, v.Default, depth)
	case *ast.Fetch:
		e.fetch(ctx, s, v, depth)
	case *ast.AbortFetch:
		api, ok := s.Instance.API(v.API)
		if !ok {
			ctxlog.FromContext(ctx).Debug("Nothing to abort.", "api", v.API)
			return
		}
		if c, ok := api.(Canceler); ok {
			c.Cancel()
		}
	case *ast.Custom:
		e.custom(ctx, s, v, depth)
	case *ast.SetURLParameter:
		if s.Instance.url == nil {
			e.fail(ctx, v, v.Parameter, ErrNoCapability)
			return
		}
		s.Instance.url.SetParameter(ctx, v.Parameter, e.Evaluate(ctx, s, v.Data), v.HistoryMode)
	case *ast.SetURLParameters:
		if s.Instance.url == nil {
			e.fail(ctx, v, "", ErrNoCapability)
			return
		}
		s.Instance.url.SetParameters(ctx, e.evaluateMap(e.formulaContext(ctx, s), v.Parameters), v.HistoryMode)
	case *ast.TriggerWorkflow:
		e.triggerWorkflow(ctx, s, v, depth)
	case *ast.TriggerWorkflowCallback:
		if s.Dispatch == nil {
			ctxlog.FromContext(ctx).Debug("Workflow callback outside of a workflow call.", "event", v.Event)
			e.fail(ctx, v, v.Event, ErrNoDispatch)
			return
		}
		s.Dispatch(ctx, s, v.Event, e.Evaluate(ctx, s, v.Data))
	default:
		e.fail(ctx, a, "", fmt.Errorf("unknown action variant %T", a))
	}
}

// setVariable replaces one key of the Variables slot. Nested paths are not
// targets: the whole value under the key is replaced.
func (e *Executor) setVariable(ctx context.Context, s *Scope, v *ast.SetVariable) {
	value := e.Evaluate(ctx, s, v.Data)
	s.Instance.Data.Update(func(root map[string]any) map[string]any {
		next := maps.Clone(root)
		if next == nil {
			next = make(map[string]any)
		}
		vars, _ := root[formula.SlotVariables].(map[string]any)
		vars = maps.Clone(vars)
		if vars == nil {
			vars = make(map[string]any)
		}
		vars[v.Variable] = value
		next[formula.SlotVariables] = vars
		return next
	})
}

func (e *Executor) fetch(ctx context.Context, s *Scope, v *ast.Fetch, depth int) {
	api, ok := s.Instance.API(v.API)
	if !ok {
		ctxlog.FromContext(ctx).Warn("Fetch of unknown API skipped.", "api", v.API)
		e.fail(ctx, v, v.API, ErrUnknownAPI)
		return
	}
	inputs := e.evaluateMap(e.formulaContext(ctx, s), v.Inputs)

	// Continuations outlive the call: they keep the logger and values of
	// ctx but not its cancellation.
	later := context.WithoutCancel(ctx)
	route := func(list []ast.Action, which string) func(any) {
		return func(payload any) {
			if s.Instance.Destroyed() {
				ctxlog.FromContext(later).Debug("Fetch continuation after destroy ignored.", "api", v.API, "callback", which)
				return
			}
			e.run(later, s.detached(payload), list, depth)
		}
	}

	ctxlog.FromContext(ctx).Debug("Starting fetch.", "api", v.API, "instance", s.Instance.ID)
	api.Fetch(ctx, inputs, Callbacks{
		OnSuccess: route(v.OnSuccess, "onSuccess"),
		OnError:   route(v.OnError, "onError"),
		OnMessage: route(v.OnMessage, "onMessage"),
	})
}

func (e *Executor) custom(ctx context.Context, s *Scope, v *ast.Custom, depth int) {
	pkg := v.Package
	if pkg == "" {
		pkg = s.Instance.Package
	}
	name := ast.QualifiedName(pkg, v.Name)
	handler, ok := e.registry.ResolveAction(v.Name, pkg)
	if !ok {
		e.fail(ctx, v, name, ErrUnknownAction)
		return
	}

	fctx := e.formulaContext(ctx, s)
	args := make(map[string]any, len(v.Arguments))
	for i, a := range v.Arguments {
		key := a.Name
		if key == "" {
			key = strconv.Itoa(i)
		}
		args[key] = formula.Evaluate(a.Formula, fctx)
	}

	var root map[string]any
	if err := deepcopy.Copy(&root, s.Instance.Data.Get()); err != nil {
		e.fail(ctx, v, name, fmt.Errorf("failed to copy data root: %w", err))
		return
	}

	later := context.WithoutCancel(ctx)
	actx := registry.ActionContext{
		Root: root,
		TriggerActionEvent: func(event string, data any) {
			list, ok := v.Events[event]
			if !ok {
				ctxlog.FromContext(later).Debug("Custom action event has no handler.", "action", name, "event", event)
				return
			}
			e.run(later, s.detached(data), list, depth)
		},
	}

	result, err := handler(ctx, args, actx, s.Event)
	if err != nil {
		e.fail(ctx, v, name, err)
	}
	switch r := result.(type) {
	case func():
		s.Instance.AddCleanup(r)
	case <-chan func():
		// Waiting stops once the instance is destroyed. A cleanup that is
		// already queued by then still runs.
		done := make(chan struct{})
		s.Instance.AddCleanup(func() { close(done) })
		go func() {
			select {
			case fn, ok := <-r:
				if ok {
					s.Instance.AddCleanup(fn)
				}
			case <-done:
				select {
				case fn, ok := <-r:
					if ok && fn != nil {
						fn()
					}
				default:
				}
			}
		}()
	}
}

func (e *Executor) triggerWorkflow(ctx context.Context, s *Scope, v *ast.TriggerWorkflow, depth int) {
	owner := s.Instance
	name := v.Workflow
	if v.ContextProvider != "" {
		pkg := v.Package
		if pkg == "" {
			pkg = s.Instance.Package
		}
		providerName := ast.QualifiedName(pkg, v.ContextProvider)
		name = providerName + "." + v.Workflow
		provider, ok := s.Instance.providers.Lookup(providerName)
		if !ok {
			e.fail(ctx, v, name, ErrUnknownProvider)
			return
		}
		owner = provider
	}

	wf, ok := owner.Component.Workflow(v.Workflow)
	if !ok {
		e.fail(ctx, v, name, ErrUnknownWorkflow)
		return
	}
	if owner != s.Instance && !wf.ExposeInContext {
		e.fail(ctx, v, name, ErrNotExposed)
		return
	}

	// Parameters are computed in the caller's scope.
	params := e.evaluateMap(e.formulaContext(ctx, s), v.Parameters)

	if err := e.limits.Check(limits.CategoryWorkflow, limits.MaxDepth, int64(s.workflows.Depth()+1)); err != nil {
		e.fail(ctx, v, name, err)
		return
	}
	key := owner.ID + "/" + v.Workflow
	if fp, ok := formula.Fingerprint(params); ok {
		key += "#" + strconv.FormatUint(fp, 16)
	}
	if err := s.workflows.Enter(key); err != nil {
		e.fail(ctx, v, name, err)
		return
	}
	defer s.workflows.Exit(key)

	caller := s
	dispatch := func(cbctx context.Context, from *Scope, callback string, data any) {
		list, ok := v.Callbacks[callback]
		if !ok {
			ctxlog.FromContext(cbctx).Debug("Workflow callback not declared by caller.", "workflow", name, "callback", callback)
			return
		}
		// A callback fired from the workflow body itself is still part of
		// this call chain and keeps its cycle detector. One fired from a
		// Fetch continuation or custom action event runs detached.
		next := caller.detached(data)
		if from != nil && from.workflows == caller.workflows {
			next = caller.withEvent(data)
		}
		e.run(cbctx, next, list, depth)
	}

	ctxlog.FromContext(ctx).Debug("Triggering workflow.", "workflow", name, "owner", owner.ID)
	body := &Scope{
		Instance:   owner,
		Event:      s.Event,
		Parameters: params,
		Dispatch:   dispatch,
		depth:      depth,
		workflows:  s.workflows,
	}
	e.run(ctx, body, wf.Actions, depth)
}
