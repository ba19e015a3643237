// Package diag defines the error sink that the formula evaluator and action
// executor report soft failures to. Nothing reported here ever aborts
// evaluation; the sink is the only place diagnostic detail survives.
package diag

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vk/weave/internal/ctxlog"
)

// Sink receives soft failures.
type Sink interface {
	Report(ctx context.Context, err error)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, err error)

func (f SinkFunc) Report(ctx context.Context, err error) { f(ctx, err) }

// Discard drops every report.
var Discard Sink = SinkFunc(func(context.Context, error) {})

// Collector is a thread-safe Sink that keeps every reported error in order.
type Collector struct {
	mu   sync.Mutex
	errs []error
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report appends err to the collector.
func (c *Collector) Report(_ context.Context, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

// Errors returns a copy of the collected errors.
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Len returns the number of collected errors.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// Reset drops all collected errors.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = nil
}

// LogSink logs each report at the given level using the logger found in
// the context.
type LogSink struct {
	Level slog.Level
}

func (s LogSink) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	ctxlog.FromContext(ctx).Log(ctx, s.Level, "Soft failure recorded.", "error", err)
}

// Tee fans a report out to several sinks.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, err error) {
		for _, s := range sinks {
			if s != nil {
				s.Report(ctx, err)
			}
		}
	})
}
