// Package print provides the "print" custom action, which writes its
// arguments to an output stream.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/vk/weave/internal/ctxlog"
	"github.com/vk/weave/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out defaults to os.Stdout.
	Out io.Writer

	mu sync.Mutex
}

// Register registers the handler as a legacy action.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterLegacyAction("print", m.Print)
}

// Print writes one line per argument, sorted by name, with the value
// encoded as JSON.
func (m *Module) Print(ctx context.Context, args map[string]any, _ registry.ActionContext, _ any) (any, error) {
	ctxlog.FromContext(ctx).Info("Printing arguments.", "count", len(args))

	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(args) == 0 {
		_, err := fmt.Fprintln(out, "      (null)")
		return nil, err
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		encoded, err := json.Marshal(args[k])
		if err != nil {
			return nil, fmt.Errorf("print: argument %q: %w", k, err)
		}
		if _, err := fmt.Fprintf(out, "      %s = %s\n", k, encoded); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
