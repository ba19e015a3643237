package app

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/vk/weave/internal/action"
	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/ctxlog"
	"github.com/vk/weave/internal/formula"
	"github.com/vk/weave/internal/limits"
	"github.com/vk/weave/internal/walk"
)

// RunRequest describes one headless run of a component.
type RunRequest struct {
	// Component is "package/Name" or a bare name in the empty package.
	Component  string
	Attributes map[string]any
	// Workflow, when set, is triggered after onLoad.
	Workflow   string
	Parameters map[string]any
}

// RunResult is the observable outcome of a run.
type RunResult struct {
	InstanceID string
	Variables  map[string]any
	Events     []EmittedEvent
	URL        map[string]any
}

// EmittedEvent is one component event captured during a run.
type EmittedEvent struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// Run mounts a component, optionally triggers one of its workflows and
// tears it down again, returning its final variables and the events and
// URL changes it produced. Soft failures are available through Errors.
func (a *App) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	ctx, cancel := a.budget(ctxlog.WithLogger(ctx, a.logger), limits.ActionBudgetMs)
	defer cancel()
	a.logger.Debug("App.Run method started.", "component", req.Component)

	out := &capture{url: map[string]any{}}
	inst, err := a.Mount(ctx, req.Component, req.Attributes, action.WithEmitter(out), action.WithURLParameters(out))
	if err != nil {
		return nil, err
	}
	defer inst.Destroy()

	if req.Workflow != "" {
		a.Trigger(ctx, inst, req.Workflow, req.Parameters)
	}

	a.logger.Debug("App.Run method finished.", "instance", inst.ID)
	out.mu.Lock()
	defer out.mu.Unlock()
	return &RunResult{
		InstanceID: inst.ID,
		Variables:  inst.Variables(),
		Events:     out.events,
		URL:        maps.Clone(out.url),
	}, nil
}

// Mount creates an instance of a loaded component, registers it as a
// context provider and runs its onLoad actions. Components whose subtree
// contains a cycle are refused.
func (a *App) Mount(ctx context.Context, qualified string, attrs map[string]any, opts ...action.Option) (*action.Instance, error) {
	pkg, name := splitQualified(qualified)
	c, ok := a.registry.Component(name, pkg)
	if !ok {
		return nil, fmt.Errorf("component %q is not loaded", qualified)
	}
	if err := walk.CheckComponentCycles(c, a.registry.Component, a.limits); err != nil {
		return nil, fmt.Errorf("cannot mount %q: %w", qualified, err)
	}

	opts = append([]action.Option{
		action.WithAttributes(attrs),
		action.WithEmitter(logEmitter{}),
		action.WithURLParameters(logURL{}),
		action.WithProviders(a.providers),
		action.AsProvider(),
	}, opts...)
	inst := a.executor.NewInstance(ctx, c, opts...)
	a.executor.Load(ctx, inst)
	return inst, nil
}

// Trigger runs a workflow of inst with literal parameters.
func (a *App) Trigger(ctx context.Context, inst *action.Instance, workflow string, params map[string]any) {
	tw := &ast.TriggerWorkflow{Workflow: workflow, Parameters: make(map[string]ast.Formula, len(params))}
	for k, v := range params {
		tw.Parameters[k] = &ast.Value{Value: v}
	}
	a.executor.Execute(ctx, action.NewScope(inst, nil), tw)
}

// Evaluate evaluates a standalone formula against data with the app's
// registry and limits.
func (a *App) Evaluate(ctx context.Context, f ast.Formula, data map[string]any) any {
	ctx, cancel := a.budget(ctxlog.WithLogger(ctx, a.logger), limits.FormulaBudgetMs)
	defer cancel()
	return formula.Evaluate(f, &formula.Context{
		Ctx:      ctx,
		Data:     data,
		Registry: a.registry,
		Limits:   a.limits,
		Sink:     a.sink,
	})
}

// budget bounds ctx by the named time ceiling. Work past the deadline
// stops at its next recursive entry and is reported as a soft failure.
func (a *App) budget(ctx context.Context, name string) (context.Context, context.CancelFunc) {
	ms, ok := a.limits.Get(limits.CategoryTime, name)
	if !ok || ms <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}

func splitQualified(qualified string) (pkg, name string) {
	if i := strings.LastIndex(qualified, "/"); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return "", qualified
}

// logEmitter and logURL are the capabilities of a mount with no host.
type logEmitter struct{}

func (logEmitter) Emit(ctx context.Context, event string, data any) {
	ctxlog.FromContext(ctx).Info("Component event.", "event", event, "data", data)
}

type logURL struct{}

func (logURL) SetParameter(ctx context.Context, name string, value any, historyMode string) {
	ctxlog.FromContext(ctx).Info("URL parameter set.", "name", name, "value", value, "history_mode", historyMode)
}

func (logURL) SetParameters(ctx context.Context, values map[string]any, historyMode string) {
	ctxlog.FromContext(ctx).Info("URL parameters set.", "values", values, "history_mode", historyMode)
}

// capture records what a run emits.
type capture struct {
	mu     sync.Mutex
	events []EmittedEvent
	url    map[string]any
}

func (c *capture) Emit(ctx context.Context, event string, data any) {
	logEmitter{}.Emit(ctx, event, data)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, EmittedEvent{Name: event, Data: data})
}

func (c *capture) SetParameter(ctx context.Context, name string, value any, historyMode string) {
	c.SetParameters(ctx, map[string]any{name: value}, historyMode)
}

func (c *capture) SetParameters(ctx context.Context, values map[string]any, historyMode string) {
	logURL{}.SetParameters(ctx, values, historyMode)
	c.mu.Lock()
	defer c.mu.Unlock()
	maps.Copy(c.url, values)
}
