package formula

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/vk/weave/internal/ast"
	"github.com/vk/weave/internal/walk"
)

// Cache is the memoization cache of one component instance. It keeps, per
// Apply formula name, the fingerprint and result of the last evaluation.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	// reads caches the non-Args paths a formula body depends on.
	reads map[string][][]string
}

type cacheEntry struct {
	fingerprint uint64
	result      any
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		reads:   make(map[string][][]string),
	}
}

// Len returns the number of cached formulas.
func (m *Cache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Reset drops every entry.
func (m *Cache) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]cacheEntry)
	m.reads = make(map[string][][]string)
}

func (m *Cache) get(name string, fp uint64) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok || e.fingerprint != fp {
		return nil, false
	}
	return e.result, true
}

func (m *Cache) put(name string, fp uint64, result any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = cacheEntry{fingerprint: fp, result: result}
}

// fingerprint hashes the argument mapping together with the current value
// of every data path outside Args that the body can read. Arguments holding
// closures cannot be fingerprinted.
func (m *Cache) fingerprint(c *Context, cf *ast.ComponentFormula, args map[string]any) (uint64, bool) {
	if containsCallable(args) {
		return 0, false
	}

	m.mu.Lock()
	paths, ok := m.reads[cf.Name]
	m.mu.Unlock()
	if !ok {
		paths = readPaths(c, cf.Formula)
		m.mu.Lock()
		m.reads[cf.Name] = paths
		m.mu.Unlock()
	}

	reads := make(map[string]any, len(paths))
	for _, p := range paths {
		v, _ := lookup(c.Data, p)
		reads[strings.Join(p, "\x1f")] = v
	}
	return Fingerprint(map[string]any{"args": args, "reads": reads})
}

// callKey identifies a call for runtime cycle detection. It is empty when
// the arguments cannot be fingerprinted.
func callKey(target string, args map[string]any) string {
	if containsCallable(args) {
		return ""
	}
	h, ok := Fingerprint(args)
	if !ok {
		return ""
	}
	return target + "#" + strconv.FormatUint(h, 16)
}

// Fingerprint serialises v with sorted mapping keys and hashes the result.
// Values that cannot be serialised have no fingerprint.
func Fingerprint(v any) (uint64, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, false
	}
	return xxhash.Sum64(data), true
}

// readPaths collects the paths outside Args read by body, following Apply
// into sibling component formulas and Function into formula definitions.
func readPaths(c *Context, body ast.Formula) [][]string {
	seen := make(map[string][]string)
	visited := make(map[string]bool)

	var collect func(f ast.Formula, pkg string)
	collect = func(f ast.Formula, pkg string) {
		for v := range walk.Formulas(f, pkg) {
			switch n := v.Formula.(type) {
			case *ast.Path:
				if len(n.Path) > 0 && n.Path[0] != SlotArgs {
					seen[strings.Join(n.Path, "\x1f")] = n.Path
				}
			case *ast.Apply:
				if visited["apply:"+n.Name] {
					continue
				}
				visited["apply:"+n.Name] = true
				if cf, ok := c.Component.Formula(n.Name); ok {
					collect(cf.Formula, pkg)
				}
			case *ast.Function:
				p := n.Package
				if p == "" {
					p = v.Package
				}
				key := "def:" + ast.QualifiedName(p, n.Name)
				if visited[key] {
					continue
				}
				visited[key] = true
				if fn, ok := c.Registry.ResolveFormula(n.Name, p); ok && fn.Definition != nil {
					collect(fn.Definition.Formula, fn.Definition.Package)
				}
			}
		}
	}
	collect(body, c.Package)

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]string, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out
}
