package limits

import (
	"fmt"
	"sort"
	"sync"
)

// Categories of ceilings.
const (
	CategoryFormula   = "formula"
	CategoryAction    = "action"
	CategoryWorkflow  = "workflow"
	CategoryComponent = "component"
	CategoryTime      = "time"
)

// Names of ceilings within their category.
const (
	MaxDepth        = "maxDepth"
	MaxArguments    = "maxArguments"
	MaxListLength   = "maxListLength"
	FormulaBudgetMs = "formulaBudgetMs"
	ActionBudgetMs  = "actionBudgetMs"
)

// Defaults returns a fresh copy of the built-in ceilings.
func Defaults() map[string]map[string]int64 {
	return map[string]map[string]int64{
		CategoryFormula: {
			MaxDepth:     256,
			MaxArguments: 128,
		},
		CategoryAction: {
			MaxDepth:      64,
			MaxListLength: 1000,
		},
		CategoryWorkflow: {
			MaxDepth: 32,
		},
		CategoryComponent: {
			MaxDepth: 64,
		},
		CategoryTime: {
			FormulaBudgetMs: 1000,
			ActionBudgetMs:  5000,
		},
	}
}

// LimitExceededError reports that a value went over its configured ceiling.
// Callers decide whether that aborts or degrades.
type LimitExceededError struct {
	Category string
	Name     string
	Value    int64
	Limit    int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit exceeded: %s.%s is %d, ceiling is %d", e.Category, e.Name, e.Value, e.Limit)
}

// Table is an overridable set of numeric ceilings grouped by category.
// Each runtime owns its own Table; there is no process-wide instance.
type Table struct {
	mu        sync.RWMutex
	values    map[string]map[string]int64
	overrides map[string]map[string]int64
}

// New creates a table seeded with Defaults.
func New() *Table {
	return &Table{
		values:    Defaults(),
		overrides: make(map[string]map[string]int64),
	}
}

// Get returns the effective ceiling for category/name.
func (t *Table) Get(category, name string) (int64, bool) {
	if t == nil {
		v, ok := Defaults()[category][name]
		return v, ok
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v, ok := t.overrides[category][name]; ok {
		return v, true
	}
	v, ok := t.values[category][name]
	return v, ok
}

// MustGet is Get for ceilings known to exist; unknown ceilings read as zero.
func (t *Table) MustGet(category, name string) int64 {
	v, _ := t.Get(category, name)
	return v
}

// Override sets ceilings on top of the defaults. A non-positive value is ignored.
func (t *Table) Override(category string, values map[string]int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, v := range values {
		if v <= 0 {
			continue
		}
		if t.overrides[category] == nil {
			t.overrides[category] = make(map[string]int64)
		}
		t.overrides[category][name] = v
	}
}

// Reset drops every override.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides = make(map[string]map[string]int64)
}

// Check compares value to the ceiling for category/name. Unknown ceilings
// never fail.
func (t *Table) Check(category, name string, value int64) error {
	limit, ok := t.Get(category, name)
	if !ok || value <= limit {
		return nil
	}
	return &LimitExceededError{Category: category, Name: name, Value: value, Limit: limit}
}

// Snapshot returns the effective ceilings as "category.name" keys, sorted.
func (t *Table) Snapshot() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for category, names := range t.values {
		for name := range names {
			v := names[name]
			if o, ok := t.overrides[category][name]; ok {
				v = o
			}
			out = append(out, fmt.Sprintf("%s.%s=%d", category, name, v))
		}
	}
	sort.Strings(out)
	return out
}
