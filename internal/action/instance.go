package action

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/ctxlog"
	"github.com/vk/weave/internal/formula"
	"github.com/vk/weave/internal/signal"
)

// Instance is one live component: its data container, its memoization
// cache and the capabilities its actions use. The container is owned by
// the instance; every mutation goes through Set or Update.
type Instance struct {
	ID        string
	Component *ast.Component
	Package   string
	Data      *signal.Signal[map[string]any]
	Cache     *formula.Cache

	emitter   Emitter
	url       URLParameters
	providers *Providers

	mu   sync.RWMutex
	apis map[string]API
}

// Option configures an Instance.
type Option func(*instanceConfig)

type instanceConfig struct {
	attributes map[string]any
	slots      map[string]any
	apis       map[string]API
	emitter    Emitter
	url        URLParameters
	providers  *Providers
	provide    bool
}

// WithAttributes sets the initial Attributes slot.
func WithAttributes(attrs map[string]any) Option {
	return func(c *instanceConfig) { c.attributes = attrs }
}

// WithSlot sets an additional data root slot such as ListItem.
func WithSlot(name string, value any) Option {
	return func(c *instanceConfig) {
		if c.slots == nil {
			c.slots = make(map[string]any)
		}
		c.slots[name] = value
	}
}

// WithAPI binds the capability for a named API.
func WithAPI(name string, api API) Option {
	return func(c *instanceConfig) {
		if c.apis == nil {
			c.apis = make(map[string]API)
		}
		c.apis[name] = api
	}
}

// WithEmitter sets the receiver of TriggerEvent.
func WithEmitter(e Emitter) Option {
	return func(c *instanceConfig) { c.emitter = e }
}

// WithURLParameters sets the receiver of SetURLParameter(s).
func WithURLParameters(u URLParameters) Option {
	return func(c *instanceConfig) { c.url = u }
}

// WithProviders sets the provider registry used for cross-component
// workflows.
func WithProviders(p *Providers) Option {
	return func(c *instanceConfig) { c.providers = p }
}

// AsProvider registers the instance in its provider registry under the
// component's qualified name until it is destroyed.
func AsProvider() Option {
	return func(c *instanceConfig) { c.provide = true }
}

// API returns the capability bound to a named API.
func (i *Instance) API(name string) (API, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	api, ok := i.apis[name]
	return api, ok && api != nil
}

// BindAPI binds or replaces the capability for a named API.
func (i *Instance) BindAPI(name string, api API) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.apis[name] = api
}

// APINames returns the names of the bound APIs, sorted.
func (i *Instance) APINames() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := make([]string, 0, len(i.apis))
	for name := range i.apis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variables returns the current Variables slot.
func (i *Instance) Variables() map[string]any {
	vars, _ := i.Data.Get()[formula.SlotVariables].(map[string]any)
	return vars
}

// AddCleanup registers fn to run when the instance is destroyed. On a
// destroyed instance fn runs immediately.
func (i *Instance) AddCleanup(fn func()) {
	if fn == nil {
		return
	}
	i.Data.OnDestroy(fn)
}

// Destroy tears the instance down: its container, derived containers,
// registered cleanups and memoization cache. It is idempotent.
func (i *Instance) Destroy() {
	i.Data.Destroy()
}

// Destroyed reports whether Destroy has run.
func (i *Instance) Destroyed() bool {
	return i.Data.Destroyed()
}

// newInstance builds the instance shell. Variables are filled in by the
// executor.
func newInstance(ctx context.Context, c *ast.Component, cfg *instanceConfig) *Instance {
	root := map[string]any{
		formula.SlotAttributes: maps.Clone(cfg.attributes),
		formula.SlotVariables:  map[string]any{},
		formula.SlotApis:       map[string]any{},
	}
	if root[formula.SlotAttributes] == nil {
		root[formula.SlotAttributes] = map[string]any{}
	}
	maps.Copy(root, cfg.slots)

	inst := &Instance{
		ID:        uuid.NewString(),
		Component: c,
		Package:   c.Package,
		Cache:     formula.NewCache(),
		emitter:   cfg.emitter,
		url:       cfg.url,
		providers: cfg.providers,
		apis:      make(map[string]API),
	}
	maps.Copy(inst.apis, cfg.apis)

	logger := ctxlog.FromContext(ctx).With("instance", inst.ID, "component", c.QualifiedName())
	inst.Data = signal.New(root, signal.WithLogger(logger), signal.WithOnDestroy(func() {
		inst.Cache.Reset()
		logger.Debug("Instance destroyed.")
	}))

	if cfg.provide && cfg.providers != nil {
		inst.AddCleanup(cfg.providers.Register(c.QualifiedName(), inst))
	}
	return inst
}
