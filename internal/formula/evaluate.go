package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/ctxlog"
	"github.com/vk/weave/internal/limits"
	"github.com/vk/weave/internal/registry"
)

// Evaluate computes the value of f under c. It never panics: failures are
// reported to c.Sink and yield nil. A nil c evaluates against an empty
// context.
func Evaluate(f ast.Formula, c *Context) (result any) {
	if f == nil {
		return nil
	}
	if c == nil {
		c = &Context{}
	}
	cc := c.prepare()

	defer func() {
		if r := recover(); r != nil {
			cc.fail(f, "", fmt.Errorf("%w: %v", ErrPanic, r))
			result = nil
		}
	}()

	ctxlog.FromContext(cc.Ctx).Debug("Evaluating formula.", "kind", f.Kind(), "package", cc.Package)
	return cc.eval(f, cc.depth)
}

// eval is the recursive entry. depth is the depth of the caller; the
// ceiling is checked before any work is done for f.
func (c *Context) eval(f ast.Formula, depth int) any {
	if f == nil {
		return nil
	}
	depth++
	if err := c.Limits.Check(limits.CategoryFormula, limits.MaxDepth, int64(depth)); err != nil {
		c.fail(f, "", err)
		return nil
	}
	if err := c.Ctx.Err(); err != nil {
		c.fail(f, "", err)
		return nil
	}

	switch v := f.(type) {
	case *ast.Value:
		return v.Value
	case *ast.Path:
		return c.path(v)
	case *ast.Function:
		return c.function(v, depth)
	case *ast.Apply:
		return c.apply(v, depth)
	case *ast.Object:
		out := make(map[string]any, len(v.Arguments))
		for _, a := range v.Arguments {
			if a.Name == "" {
				continue
			}
			out[a.Name] = c.eval(a.Formula, depth)
		}
		return out
	case *ast.Array:
		out := make([]any, 0, len(v.Arguments))
		for _, a := range v.Arguments {
			out = append(out, c.eval(a.Formula, depth))
		}
		return out
	case *ast.Or:
		for _, a := range v.Arguments {
			if Truthy(c.eval(a.Formula, depth)) {
				return true
			}
		}
		return false
	case *ast.And:
		for _, a := range v.Arguments {
			if !Truthy(c.eval(a.Formula, depth)) {
				return false
			}
		}
		return true
	case *ast.Switch:
		for _, cs := range v.Cases {
			if Truthy(c.eval(cs.Condition, depth)) {
				return c.eval(cs.Formula, depth)
			}
		}
		return c.eval(v.Default, depth)
	default:
		c.fail(f, "", fmt.Errorf("%w: %T", ErrUnknownVariant, f))
		return nil
	}
}

func (c *Context) path(v *ast.Path) any {
	value, res := lookup(c.Data, v.Path)
	switch res {
	case found:
		return value
	case missing:
		c.fail(v, strings.Join(v.Path, "."), ErrPathNotFound)
	}
	return nil
}

// arguments assembles the named argument mapping. Positional arguments are
// keyed by index. Higher-order arguments become closures over c.
func (c *Context) arguments(args []ast.Argument, depth int) map[string]any {
	out := make(map[string]any, len(args))
	for i, a := range args {
		name := a.Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		if a.IsFunction {
			out[name] = &Closure{formula: a.Formula, scope: c, depth: depth}
			continue
		}
		out[name] = c.eval(a.Formula, depth)
	}
	return out
}

func (c *Context) function(v *ast.Function, depth int) any {
	pkg := v.Package
	if pkg == "" {
		pkg = c.Package
	}
	name := ast.QualifiedName(pkg, v.Name)

	if err := c.Limits.Check(limits.CategoryFormula, limits.MaxArguments, int64(len(v.Arguments))); err != nil {
		c.fail(v, name, err)
		return nil
	}
	fn, ok := c.Registry.ResolveFormula(v.Name, pkg)
	if !ok {
		c.fail(v, name, ErrUnresolved)
		return nil
	}

	args := c.arguments(v.Arguments, depth)
	if def := fn.Definition; def != nil {
		inner := c.withArgs(args)
		inner.Package = def.Package
		inner.Component = nil
		inner.Cache = nil
		key := callKey("def:"+ast.QualifiedName(def.Package, def.Name), args)
		return c.guarded(v, name, key, func() any {
			return inner.eval(def.Formula, depth)
		})
	}
	return c.invoke(v, name, fn, args)
}

// invoke calls a Go handler behind a recover boundary.
func (c *Context) invoke(f ast.Formula, name string, fn *registry.Formula, args map[string]any) (result any) {
	if fn.Handler == nil {
		c.fail(f, name, ErrUnresolved)
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			c.fail(f, name, fmt.Errorf("%w: %v", ErrPanic, r))
			result = nil
		}
	}()

	res, err := fn.Handler(c.Ctx, args)
	if err != nil {
		c.fail(f, name, err)
		return nil
	}
	return res
}

func (c *Context) apply(v *ast.Apply, depth int) any {
	if err := c.Limits.Check(limits.CategoryFormula, limits.MaxArguments, int64(len(v.Arguments))); err != nil {
		c.fail(v, v.Name, err)
		return nil
	}
	cf, ok := c.Component.Formula(v.Name)
	if !ok {
		c.fail(v, v.Name, ErrUnresolved)
		return nil
	}

	args := c.arguments(v.Arguments, depth)
	inner := c.withArgs(args)
	key := callKey("apply:"+c.Component.QualifiedName()+"/"+v.Name, args)
	run := func() any {
		return c.guarded(v, v.Name, key, func() any {
			return inner.eval(cf.Formula, depth)
		})
	}

	if !cf.Memoize || c.Cache == nil {
		return run()
	}
	fp, ok := c.Cache.fingerprint(c, cf, args)
	if !ok {
		return run()
	}
	if res, hit := c.Cache.get(v.Name, fp); hit {
		return res
	}
	res := run()
	c.Cache.put(v.Name, fp, res)
	return res
}

// guarded runs fn with key active in the cycle detector. Re-entering the
// same call with the same arguments while it is still running can only
// recurse forever, so it fails immediately. An empty key skips the check.
func (c *Context) guarded(f ast.Formula, name, key string, fn func() any) any {
	if key == "" {
		return fn()
	}
	if err := c.cycles.Enter(key); err != nil {
		c.fail(f, name, err)
		return nil
	}
	defer c.cycles.Exit(key)
	return fn()
}
