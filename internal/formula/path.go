package formula

import (
	"reflect"
	"strconv"
)

// reserved segments never resolve, whatever the data holds.
var reserved = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

type lookupResult int

const (
	found lookupResult = iota
	missing
	rejected
)

// Lookup resolves path against root. A digit-only segment indexes a
// sequence; any segment keys a mapping. The second result is false when
// the path does not resolve. A resolved nil terminal is found.
func Lookup(root any, path []string) (any, bool) {
	v, res := lookup(root, path)
	return v, res == found
}

func lookup(root any, path []string) (any, lookupResult) {
	cur := root
	for _, seg := range path {
		if reserved[seg] {
			return nil, rejected
		}
		next, ok := step(cur, seg)
		if !ok {
			return nil, missing
		}
		cur = next
	}
	return cur, found
}

func step(cur any, seg string) (any, bool) {
	switch v := cur.(type) {
	case nil:
		return nil, false
	case map[string]any:
		next, ok := v[seg]
		return next, ok
	case []any:
		i, ok := sequenceIndex(seg, len(v))
		if !ok {
			return nil, false
		}
		return v[i], true
	}

	rv := reflect.ValueOf(cur)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := sequenceIndex(seg, rv.Len())
		if !ok {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Map:
		kt := rv.Type().Key()
		if kt.Kind() != reflect.String {
			return nil, false
		}
		e := rv.MapIndex(reflect.ValueOf(seg).Convert(kt))
		if !e.IsValid() {
			return nil, false
		}
		return e.Interface(), true
	}
	return nil, false
}

// sequenceIndex accepts only digit-only segments within [0, n).
func sequenceIndex(seg string, n int) (int, bool) {
	if seg == "" {
		return 0, false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(seg)
	if err != nil || i >= n {
		return 0, false
	}
	return i, true
}
