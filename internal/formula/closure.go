package formula

import (
	"maps"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/registry"
)

var _ registry.Callable = (*Closure)(nil)

// Closure is a higher-order argument: a formula captured with the scope it
// was written in. Handlers call Invoke with the inner Args bundle.
//
// Invoke runs on the caller's goroutine and shares the capturing
// evaluation's cycle detector, so it must not be called concurrently.
type Closure struct {
	formula ast.Formula
	scope   *Context
	depth   int
}

// Invoke evaluates the captured formula with Args set to args. The Args of
// the capturing scope stay reachable as Args.@parent.
func (cl *Closure) Invoke(args map[string]any) any {
	inner := make(map[string]any, len(args)+1)
	maps.Copy(inner, args)
	if prev, ok := cl.scope.Data[SlotArgs]; ok {
		if _, set := inner[parentArgs]; !set {
			inner[parentArgs] = prev
		}
	}
	return cl.scope.withArgs(inner).eval(cl.formula, cl.depth)
}

// containsCallable reports whether v holds a Callable anywhere.
func containsCallable(v any) bool {
	switch t := v.(type) {
	case registry.Callable:
		return true
	case map[string]any:
		for _, e := range t {
			if containsCallable(e) {
				return true
			}
		}
	case []any:
		for _, e := range t {
			if containsCallable(e) {
				return true
			}
		}
	}
	return false
}
