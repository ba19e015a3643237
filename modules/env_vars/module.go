// Package env_vars exposes the process environment to formulas.
package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/vk/weave/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Environ replaces os.Environ, mainly for tests.
	Environ func() []string
}

// Register registers the "env" formula function.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterLegacyFormula("env", m.Env)
}

// Env returns the variable given by the Name argument, or nil when it is
// unset. Without a Name it returns every variable as a mapping.
func (m *Module) Env(ctx context.Context, args map[string]any) (any, error) {
	envMap := m.all()

	name, _ := args["Name"].(string)
	if name == "" {
		name, _ = args["0"].(string)
	}
	if name == "" {
		return envMap, nil
	}
	if v, ok := envMap[name]; ok {
		return v, nil
	}
	return nil, nil
}

func (m *Module) all() map[string]any {
	environ := m.Environ
	if environ == nil {
		environ = os.Environ
	}
	envMap := make(map[string]any)
	for _, e := range environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = pair[1]
		}
	}
	return envMap
}
