package ast

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Decoding is deliberately lenient: missing optional fields become empty
// values and nested absent formulas become nil. Only shapes that cannot be
// interpreted at all (unknown "type", wrong container kinds) are errors.

// ParseJSON decodes raw JSON into generic values suitable for the Decode*
// functions.
func ParseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return v, nil
}

// ParseYAML decodes raw YAML into the same generic shape as ParseJSON.
func ParseYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return Normalize(v), nil
}

// Normalize converts values produced by YAML or Go callers into the JSON
// value shape: integers become float64 and map[any]any becomes
// map[string]any.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

// DecodeFormula builds a Formula from its generic representation. A nil
// input yields a nil formula.
func DecodeFormula(v any) (Formula, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("formula must be an object, got %T", v)
	}

	kind := str(m, "type")
	switch kind {
	case KindValue:
		return &Value{Value: m["value"]}, nil
	case KindPath:
		segs, err := stringList(m["path"])
		if err != nil {
			return nil, fmt.Errorf("path formula: %w", err)
		}
		return &Path{Path: segs}, nil
	case KindFunction:
		args, err := decodeArguments(m["arguments"])
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", str(m, "name"), err)
		}
		return &Function{Name: str(m, "name"), Package: str(m, "package"), Arguments: args}, nil
	case KindApply:
		args, err := decodeArguments(m["arguments"])
		if err != nil {
			return nil, fmt.Errorf("apply %q: %w", str(m, "name"), err)
		}
		return &Apply{Name: str(m, "name"), Arguments: args}, nil
	case KindObject:
		args, err := decodeArguments(m["arguments"])
		if err != nil {
			return nil, fmt.Errorf("object formula: %w", err)
		}
		return &Object{Arguments: args}, nil
	case KindRecord:
		args, err := decodeArguments(m["entries"])
		if err != nil {
			return nil, fmt.Errorf("record formula: %w", err)
		}
		return &Object{Arguments: args, Record: true}, nil
	case KindArray, KindOr, KindAnd:
		args, err := decodeArguments(m["arguments"])
		if err != nil {
			return nil, fmt.Errorf("%s formula: %w", kind, err)
		}
		switch kind {
		case KindArray:
			return &Array{Arguments: args}, nil
		case KindOr:
			return &Or{Arguments: args}, nil
		default:
			return &And{Arguments: args}, nil
		}
	case KindSwitch:
		return decodeSwitchFormula(m)
	default:
		return nil, fmt.Errorf("unknown formula type %q", kind)
	}
}

func decodeSwitchFormula(m map[string]any) (Formula, error) {
	items, err := list(m["cases"])
	if err != nil {
		return nil, fmt.Errorf("switch formula: %w", err)
	}
	sw := &Switch{}
	for i, item := range items {
		c, err := object(item)
		if err != nil {
			return nil, fmt.Errorf("switch case %d: %w", i, err)
		}
		cond, err := DecodeFormula(c["condition"])
		if err != nil {
			return nil, fmt.Errorf("switch case %d condition: %w", i, err)
		}
		res, err := DecodeFormula(c["formula"])
		if err != nil {
			return nil, fmt.Errorf("switch case %d formula: %w", i, err)
		}
		sw.Cases = append(sw.Cases, SwitchCase{Condition: cond, Formula: res})
	}
	if sw.Default, err = DecodeFormula(m["default"]); err != nil {
		return nil, fmt.Errorf("switch default: %w", err)
	}
	return sw, nil
}

func decodeArguments(v any) ([]Argument, error) {
	items, err := list(v)
	if err != nil {
		return nil, err
	}
	args := make([]Argument, 0, len(items))
	for i, item := range items {
		a, err := object(item)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		f, err := DecodeFormula(a["formula"])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		isFn, _ := a["isFunction"].(bool)
		args = append(args, Argument{Name: str(a, "name"), Formula: f, IsFunction: isFn})
	}
	return args, nil
}

// DecodeActions builds an action list. A nil input yields an empty list.
func DecodeActions(v any) ([]Action, error) {
	items, err := list(v)
	if err != nil {
		return nil, fmt.Errorf("action list: %w", err)
	}
	actions := make([]Action, 0, len(items))
	for i, item := range items {
		a, err := DecodeAction(item)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// DecodeAction builds a single Action.
func DecodeAction(v any) (Action, error) {
	m, err := object(v)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("action must not be null")
	}

	kind := str(m, "type")
	switch kind {
	case ActionSetVariable:
		data, err := DecodeFormula(m["data"])
		if err != nil {
			return nil, fmt.Errorf("SetVariable data: %w", err)
		}
		return &SetVariable{Variable: str(m, "variable"), Data: data}, nil
	case ActionTriggerEvent:
		data, err := DecodeFormula(m["data"])
		if err != nil {
			return nil, fmt.Errorf("TriggerEvent data: %w", err)
		}
		return &TriggerEvent{Event: str(m, "event"), Data: data}, nil
	case ActionSwitch:
		return decodeSwitchAction(m)
	case ActionFetch:
		return decodeFetch(m)
	case ActionAbortFetch:
		return &AbortFetch{API: str(m, "api")}, nil
	case ActionSetURLParameter:
		data, err := DecodeFormula(m["data"])
		if err != nil {
			return nil, fmt.Errorf("SetURLParameter data: %w", err)
		}
		return &SetURLParameter{Parameter: str(m, "parameter"), Data: data, HistoryMode: str(m, "historyMode")}, nil
	case ActionSetURLParameters:
		params, err := decodeFormulaMap(m["parameters"], false)
		if err != nil {
			return nil, fmt.Errorf("SetURLParameters: %w", err)
		}
		return &SetURLParameters{Parameters: params, HistoryMode: str(m, "historyMode")}, nil
	case ActionTriggerWorkflow:
		return decodeTriggerWorkflow(m)
	case ActionTriggerWorkflowCallback:
		data, err := DecodeFormula(m["data"])
		if err != nil {
			return nil, fmt.Errorf("TriggerWorkflowCallback data: %w", err)
		}
		return &TriggerWorkflowCallback{Event: str(m, "event"), Data: data}, nil
	case ActionCustom, "":
		return decodeCustom(m)
	default:
		return nil, fmt.Errorf("unknown action type %q", kind)
	}
}

func decodeSwitchAction(m map[string]any) (Action, error) {
	items, err := list(m["cases"])
	if err != nil {
		return nil, fmt.Errorf("Switch: %w", err)
	}
	sw := &SwitchAction{}
	for i, item := range items {
		c, err := object(item)
		if err != nil {
			return nil, fmt.Errorf("Switch case %d: %w", i, err)
		}
		cond, err := DecodeFormula(c["condition"])
		if err != nil {
			return nil, fmt.Errorf("Switch case %d condition: %w", i, err)
		}
		actions, err := DecodeActions(c["actions"])
		if err != nil {
			return nil, fmt.Errorf("Switch case %d: %w", i, err)
		}
		sw.Cases = append(sw.Cases, ActionCase{Condition: cond, Actions: actions})
	}
	if def, ok := m["default"].(map[string]any); ok {
		if sw.Default, err = DecodeActions(def["actions"]); err != nil {
			return nil, fmt.Errorf("Switch default: %w", err)
		}
	}
	return sw, nil
}

func decodeFetch(m map[string]any) (Action, error) {
	inputs, err := decodeFormulaMap(m["inputs"], true)
	if err != nil {
		return nil, fmt.Errorf("Fetch inputs: %w", err)
	}
	f := &Fetch{API: str(m, "api"), Inputs: inputs}
	for key, target := range map[string]*[]Action{
		"onSuccess": &f.OnSuccess,
		"onError":   &f.OnError,
		"onMessage": &f.OnMessage,
	} {
		if *target, err = decodeActionBody(m[key]); err != nil {
			return nil, fmt.Errorf("Fetch %s: %w", key, err)
		}
	}
	return f, nil
}

func decodeTriggerWorkflow(m map[string]any) (Action, error) {
	params, err := decodeFormulaMap(m["parameters"], true)
	if err != nil {
		return nil, fmt.Errorf("TriggerWorkflow parameters: %w", err)
	}
	callbacks, err := decodeActionBodies(m["callbacks"])
	if err != nil {
		return nil, fmt.Errorf("TriggerWorkflow callbacks: %w", err)
	}
	return &TriggerWorkflow{
		Workflow:        str(m, "workflow"),
		ContextProvider: str(m, "contextProvider"),
		Package:         str(m, "package"),
		Parameters:      params,
		Callbacks:       callbacks,
	}, nil
}

func decodeCustom(m map[string]any) (Action, error) {
	args, err := decodeArguments(m["arguments"])
	if err != nil {
		return nil, fmt.Errorf("custom action %q: %w", str(m, "name"), err)
	}
	events, err := decodeActionBodies(m["events"])
	if err != nil {
		return nil, fmt.Errorf("custom action %q events: %w", str(m, "name"), err)
	}
	return &Custom{Name: str(m, "name"), Package: str(m, "package"), Arguments: args, Events: events}, nil
}

// decodeActionBody reads {"actions": [...]}.
func decodeActionBody(v any) ([]Action, error) {
	body, err := object(v)
	if err != nil || body == nil {
		return nil, err
	}
	return DecodeActions(body["actions"])
}

// decodeActionBodies reads {"name": {"actions": [...]}, ...}.
func decodeActionBodies(v any) (map[string][]Action, error) {
	m, err := object(v)
	if err != nil || m == nil {
		return nil, err
	}
	out := make(map[string][]Action, len(m))
	for _, name := range sortedKeys(m) {
		actions, err := decodeActionBody(m[name])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		out[name] = actions
	}
	return out, nil
}

// decodeFormulaMap reads {"name": formula} or, when wrapped is set,
// {"name": {"formula": formula}}.
func decodeFormulaMap(v any, wrapped bool) (map[string]Formula, error) {
	m, err := object(v)
	if err != nil || m == nil {
		return nil, err
	}
	out := make(map[string]Formula, len(m))
	for _, name := range sortedKeys(m) {
		raw := m[name]
		if wrapped {
			inner, err := object(raw)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", name, err)
			}
			raw = inner["formula"]
		}
		f, err := DecodeFormula(raw)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		out[name] = f
	}
	return out, nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func object(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	return m, nil
}

func list(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	return l, nil
}

func stringList(v any) ([]string, error) {
	items, err := list(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch s := item.(type) {
		case string:
			out = append(out, s)
		case float64, int, int64:
			out = append(out, fmt.Sprint(s))
		default:
			return nil, fmt.Errorf("path segment must be a string, got %T", item)
		}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
