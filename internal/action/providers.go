package action

import (
	"log/slog"
	"sync"
)

// Providers maps package-qualified component names to the instances that
// serve as context providers for them.
type Providers struct {
	mu     sync.RWMutex
	byName map[string]*Instance
}

// NewProviders creates an empty provider registry.
func NewProviders() *Providers {
	return &Providers{byName: make(map[string]*Instance)}
}

// Register makes inst the provider for name, replacing any previous one.
// The returned function removes the registration if it is still inst's.
func (p *Providers) Register(name string, inst *Instance) (unregister func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slog.Debug("Registering context provider.", "name", name, "instance", inst.ID)
	p.byName[name] = inst
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.byName[name] == inst {
			delete(p.byName, name)
		}
	}
}

// Lookup returns the provider registered for name.
func (p *Providers) Lookup(name string) (*Instance, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	inst, ok := p.byName[name]
	return inst, ok
}
