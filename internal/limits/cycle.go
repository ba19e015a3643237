package limits

import (
	"fmt"
	"strings"
)

// Cycle detection domains.
const (
	DomainFormula   = "formula"
	DomainWorkflow  = "workflow"
	DomainComponent = "component"
	DomainPackage   = "package"
)

// CycleError reports that a key was entered while already active.
type CycleError struct {
	Domain string
	// Path is the active stack at the time of detection, ending with Key.
	Path []string
	Key  string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s cycle detected at %q: %s", e.Domain, e.Key, strings.Join(e.Path, " -> "))
}

// Detector is a stack of active identity keys for one domain.
// It is not safe for concurrent use; each call chain owns its own.
type Detector struct {
	domain string
	stack  []string
	active map[string]int
}

// NewDetector creates an empty detector for the given domain.
func NewDetector(domain string) *Detector {
	return &Detector{domain: domain, active: make(map[string]int)}
}

// Domain returns the detector's domain.
func (d *Detector) Domain() string { return d.domain }

// Enter pushes key or fails with a CycleError if key is already active.
func (d *Detector) Enter(key string) error {
	if d.active[key] > 0 {
		path := make([]string, 0, len(d.stack)+1)
		path = append(path, d.stack...)
		path = append(path, key)
		return &CycleError{Domain: d.domain, Path: path, Key: key}
	}
	d.active[key]++
	d.stack = append(d.stack, key)
	return nil
}

// Exit pops key. Exiting a key that is not on top unwinds down to it.
func (d *Detector) Exit(key string) {
	for i := len(d.stack) - 1; i >= 0; i-- {
		if d.stack[i] != key {
			continue
		}
		for _, k := range d.stack[i:] {
			if d.active[k]--; d.active[k] <= 0 {
				delete(d.active, k)
			}
		}
		d.stack = d.stack[:i]
		return
	}
}

// Guard runs fn with key active and always releases it afterwards.
func (d *Detector) Guard(key string, fn func() error) error {
	if err := d.Enter(key); err != nil {
		return err
	}
	defer d.Exit(key)
	return fn()
}

// Active returns a copy of the current stack, outermost first.
func (d *Detector) Active() []string {
	out := make([]string, len(d.stack))
	copy(out, d.stack)
	return out
}

// Depth returns the number of active keys.
func (d *Detector) Depth() int { return len(d.stack) }

// Detectors bundles one detector per domain.
type Detectors struct {
	Formula   *Detector
	Workflow  *Detector
	Component *Detector
	Package   *Detector
}

// NewDetectors creates a fresh set of detectors.
func NewDetectors() *Detectors {
	return &Detectors{
		Formula:   NewDetector(DomainFormula),
		Workflow:  NewDetector(DomainWorkflow),
		Component: NewDetector(DomainComponent),
		Package:   NewDetector(DomainPackage),
	}
}
