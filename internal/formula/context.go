package formula

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/diag"
	"github.com/vk/weave/internal/limits"
	"github.com/vk/weave/internal/registry"
)

// Data root slots the evaluator itself reads or writes.
const (
	SlotArgs       = "Args"
	SlotAttributes = "Attributes"
	SlotVariables  = "Variables"
	SlotApis       = "Apis"
	SlotListItem   = "ListItem"
	SlotEvent      = "Event"
	SlotParameters = "Parameters"

	// parentArgs holds the enclosing Args inside a closure invocation.
	parentArgs = "@parent"
)

// Sentinel causes carried by *Error.
var (
	ErrUnresolved     = errors.New("unresolved name")
	ErrPathNotFound   = errors.New("path not found")
	ErrUnknownVariant = errors.New("unknown formula variant")
	ErrPanic          = errors.New("capability panicked")
)

// Error is a soft evaluation failure as reported to the sink.
type Error struct {
	Kind string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("formula %s %q: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("formula %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Context is everything one evaluation needs. It is threaded explicitly
// through recursion; there is no ambient runtime. A Context is treated as
// immutable once evaluation starts: derived scopes are copies.
type Context struct {
	// Ctx carries the logger and the evaluation deadline.
	Ctx context.Context
	// Data is the data root: Attributes, Variables, Apis, Args, ListItem,
	// Event, Parameters and whatever else the owner provides.
	Data map[string]any
	// Component is the enclosing component; Apply resolves against it.
	Component *ast.Component
	// Package is the namespace used for Function formulas that do not name
	// their own package.
	Package  string
	Registry *registry.Registry
	// Cache is the memoization cache of the owning instance. Nil disables
	// memoization.
	Cache  *Cache
	Limits *limits.Table
	Sink   diag.Sink

	cycles *limits.Detector
	depth  int
}

// prepare returns a copy ready to evaluate: defaults filled in and a fresh
// cycle detector when the caller did not carry one.
func (c *Context) prepare() *Context {
	cc := *c
	if cc.Ctx == nil {
		cc.Ctx = context.Background()
	}
	if cc.Sink == nil {
		cc.Sink = diag.LogSink{Level: slog.LevelDebug}
	}
	if cc.cycles == nil {
		cc.cycles = limits.NewDetector(limits.DomainFormula)
	}
	return &cc
}

// withArgs derives a scope whose data root has Args replaced.
func (c *Context) withArgs(args map[string]any) *Context {
	cc := *c
	cc.Data = make(map[string]any, len(c.Data)+1)
	maps.Copy(cc.Data, c.Data)
	cc.Data[SlotArgs] = args
	return &cc
}

func (c *Context) fail(f ast.Formula, name string, err error) {
	kind := "unknown"
	if f != nil {
		kind = f.Kind()
	}
	c.Sink.Report(c.Ctx, &Error{Kind: kind, Name: name, Err: err})
}
