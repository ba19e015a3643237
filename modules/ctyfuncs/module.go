// Package ctyfuncs exposes the go-cty standard function library as formula
// functions. They are registered under their own package so they never
// shadow the built-in functions of the same name.
package ctyfuncs

import (
	"sort"

	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/vk/weave/internal/registry"
)

// DefaultPackage is the package the functions are registered under.
const DefaultPackage = "cty"

// Module implements the registry.Module interface for this package.
type Module struct {
	// Package overrides DefaultPackage.
	Package string
}

var functions = map[string]function.Function{
	// strings
	"upper":         stdlib.UpperFunc,
	"lower":         stdlib.LowerFunc,
	"title":         stdlib.TitleFunc,
	"reverse":       stdlib.ReverseFunc,
	"strlen":        stdlib.StrlenFunc,
	"substr":        stdlib.SubstrFunc,
	"trim":          stdlib.TrimFunc,
	"trimspace":     stdlib.TrimSpaceFunc,
	"trimprefix":    stdlib.TrimPrefixFunc,
	"trimsuffix":    stdlib.TrimSuffixFunc,
	"chomp":         stdlib.ChompFunc,
	"indent":        stdlib.IndentFunc,
	"split":         stdlib.SplitFunc,
	"join":          stdlib.JoinFunc,
	"replace":       stdlib.ReplaceFunc,
	"regex_replace": stdlib.RegexReplaceFunc,
	"format":        stdlib.FormatFunc,

	// numbers
	"abs":      stdlib.AbsoluteFunc,
	"min":      stdlib.MinFunc,
	"max":      stdlib.MaxFunc,
	"ceil":     stdlib.CeilFunc,
	"floor":    stdlib.FloorFunc,
	"pow":      stdlib.PowFunc,
	"signum":   stdlib.SignumFunc,
	"parseint": stdlib.ParseIntFunc,
	"modulo":   stdlib.ModuloFunc,

	// collections
	"keys":     stdlib.KeysFunc,
	"values":   stdlib.ValuesFunc,
	"distinct": stdlib.DistinctFunc,
	"flatten":  stdlib.FlattenFunc,
	"merge":    stdlib.MergeFunc,
	"coalesce": stdlib.CoalesceFunc,
	"concat":   stdlib.ConcatFunc,
	"contains": stdlib.ContainsFunc,
	"sort":     stdlib.SortFunc,
	"range":    stdlib.RangeFunc,
}

// Register registers every function as a formula handler.
func (m *Module) Register(r *registry.Registry) {
	pkg := m.Package
	if pkg == "" {
		pkg = DefaultPackage
	}
	for _, name := range Names() {
		r.RegisterFormula(pkg, name, Handler(name, functions[name]))
	}
}

// Names returns the names this module registers, sorted.
func Names() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
