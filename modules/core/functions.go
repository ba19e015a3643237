package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/vk/weave/internal/formula"
	"github.com/vk/weave/internal/registry"
)

// Equals reports whether its two operands are structurally equal. Numbers
// compare by value regardless of their Go type.
func Equals(_ context.Context, args map[string]any) (any, error) {
	a, b := arg(args, "First", 0), arg(args, "Second", 1)
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y, nil
		}
	}
	return cmp.Equal(a, b), nil
}

// Not negates the truthiness of its operand.
func Not(_ context.Context, args map[string]any) (any, error) {
	return !formula.Truthy(arg(args, "Value", 0)), nil
}

// Concatenate joins lists into one list, merges mappings left to right, or
// joins anything else as text. The kind of the first operand decides.
func Concatenate(_ context.Context, args map[string]any) (any, error) {
	ops := operands(args)
	if len(ops) == 0 {
		return "", nil
	}
	switch ops[0].(type) {
	case []any:
		var out []any
		for i, op := range ops {
			l, ok := op.([]any)
			if !ok {
				return nil, fmt.Errorf("concatenate: operand %d is %T, not a list", i, op)
			}
			out = append(out, l...)
		}
		return out, nil
	case map[string]any:
		out := map[string]any{}
		for i, op := range ops {
			m, ok := op.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("concatenate: operand %d is %T, not a mapping", i, op)
			}
			for k, v := range m {
				out[k] = v
			}
		}
		return out, nil
	default:
		var b strings.Builder
		for _, op := range ops {
			b.WriteString(text(op))
		}
		return b.String(), nil
	}
}

// Add sums its numeric operands.
func Add(_ context.Context, args map[string]any) (any, error) {
	sum := 0.0
	for i, op := range operands(args) {
		n, ok := number(op)
		if !ok {
			return nil, fmt.Errorf("add: operand %d is %T, not a number", i, op)
		}
		sum += n
	}
	return sum, nil
}

// Subtract returns the first operand minus the second.
func Subtract(_ context.Context, args map[string]any) (any, error) {
	a, ok := number(arg(args, "First", 0))
	if !ok {
		return nil, fmt.Errorf("subtract: first operand is not a number")
	}
	b, ok := number(arg(args, "Second", 1))
	if !ok {
		return nil, fmt.Errorf("subtract: second operand is not a number")
	}
	return a - b, nil
}

// Length returns the number of characters of a string or the number of
// elements of a list or mapping. Other values have no length.
func Length(_ context.Context, args map[string]any) (any, error) {
	switch v := arg(args, "Value", 0).(type) {
	case string:
		return float64(utf8.RuneCountInString(v)), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(v)), nil
	default:
		return nil, nil
	}
}

// Map calls Formula for every element of List with Item and Index as its
// arguments and collects the results.
func Map(_ context.Context, args map[string]any) (any, error) {
	list, fn, err := listAndCallable("map", args)
	if err != nil || list == nil {
		return nil, err
	}
	out := make([]any, len(list))
	for i, item := range list {
		out[i] = fn.Invoke(map[string]any{"Item": item, "Index": float64(i)})
	}
	return out, nil
}

// Filter keeps the elements of List for which Formula is truthy.
func Filter(_ context.Context, args map[string]any) (any, error) {
	list, fn, err := listAndCallable("filter", args)
	if err != nil || list == nil {
		return nil, err
	}
	out := []any{}
	for i, item := range list {
		if formula.Truthy(fn.Invoke(map[string]any{"Item": item, "Index": float64(i)})) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Default returns the first operand that is neither nil nor the empty
// string.
func Default(_ context.Context, args map[string]any) (any, error) {
	for _, op := range operands(args) {
		if op != nil && op != "" {
			return op, nil
		}
	}
	return nil, nil
}

// Join joins the elements of List as text with Separator between them.
func Join(_ context.Context, args map[string]any) (any, error) {
	list, ok := arg(args, "List", 0).([]any)
	if !ok {
		return nil, fmt.Errorf("join: List is not a list")
	}
	sep, _ := arg(args, "Separator", 1).(string)
	parts := make([]string, len(list))
	for i, item := range list {
		parts[i] = text(item)
	}
	return strings.Join(parts, sep), nil
}

func listAndCallable(fn string, args map[string]any) ([]any, registry.Callable, error) {
	raw := arg(args, "List", 0)
	if raw == nil {
		return nil, nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("%s: List is %T, not a list", fn, raw)
	}
	callable, ok := arg(args, "Formula", 1).(registry.Callable)
	if !ok {
		return nil, nil, fmt.Errorf("%s: Formula must be a function argument", fn)
	}
	return list, callable, nil
}

// arg returns the named argument, falling back to the operand at index
// when the caller passed arguments positionally.
func arg(args map[string]any, name string, index int) any {
	if v, ok := args[name]; ok {
		return v
	}
	if v, ok := args[strconv.Itoa(index)]; ok {
		return v
	}
	return nil
}

// operands returns the argument values in order: positional indexes
// numerically, then named arguments by name.
func operands(args map[string]any) []any {
	keys := make([]string, 0, len(args))
	for k := range args {
		if strings.HasPrefix(k, "@") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aErr := strconv.Atoi(keys[i])
		b, bErr := strconv.Atoi(keys[j])
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = args[k]
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
