package ctyfuncs

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/weave/internal/ctxlog"
	"github.com/vk/weave/internal/registry"
)

// Handler adapts a cty function to a formula handler. Parameters are
// matched by name first, then by position; operands left over after the
// fixed parameters feed the variadic parameter.
func Handler(name string, fn function.Function) registry.FormulaHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		values, err := callArguments(fn, args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		ctxlog.FromContext(ctx).Debug("Calling cty function.", "name", name, "arguments", len(values))
		result, err := fn.Call(values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fromCty(result)
	}
}

func callArguments(fn function.Function, args map[string]any) ([]cty.Value, error) {
	params := fn.Params()
	used := make(map[string]bool, len(args))
	values := make([]cty.Value, 0, len(args))

	for i, p := range params {
		key := p.Name
		if _, ok := args[key]; !ok {
			key = strconv.Itoa(i)
		}
		raw, ok := args[key]
		if !ok {
			return nil, fmt.Errorf("missing argument %q", p.Name)
		}
		used[key] = true
		v, err := argument(raw, p)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", p.Name, err)
		}
		values = append(values, v)
	}

	vp := fn.VarParam()
	rest := remaining(args, used)
	if vp == nil {
		if len(rest) > 0 {
			return nil, fmt.Errorf("too many arguments: expected %d", len(params))
		}
		return values, nil
	}
	for _, key := range rest {
		v, err := argument(args[key], *vp)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", key, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func argument(raw any, p function.Parameter) (cty.Value, error) {
	v, err := toCty(raw)
	if err != nil {
		return cty.NilVal, err
	}
	if v.IsNull() {
		return cty.NullVal(p.Type), nil
	}
	return convert.Convert(v, p.Type)
}

// remaining returns the unused argument keys, positional indexes
// numerically first, then names.
func remaining(args map[string]any, used map[string]bool) []string {
	var keys []string
	for k := range args {
		if !used[k] && k != "@parent" {
			keys = append(keys, k)
		}
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
	return keys
}

// toCty converts a JSON-shaped Go value to the cty value of its implied
// type. Sequences become tuples and mappings become objects; cty's
// conversion rules turn them into lists, sets or maps where a parameter
// asks for one.
func toCty(v any) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(t), nil
	case bool:
		return cty.BoolVal(t), nil
	case float64:
		return cty.NumberFloatVal(t), nil
	case int:
		return cty.NumberIntVal(int64(t)), nil
	case int64:
		return cty.NumberIntVal(t), nil
	case []any:
		if len(t) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(t))
		for i, e := range t {
			ev, err := toCty(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = ev
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(t) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(t))
		for k, e := range t {
			ev, err := toCty(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("attribute %q: %w", k, err)
			}
			attrs[k] = ev
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value of type %T", v)
	}
}

// fromCty converts a cty value back to its JSON-shaped Go counterpart.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number to float64: %w", err)
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			native, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			key, ev := it.Element()
			native, err := fromCty(ev)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}
