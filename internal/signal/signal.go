// Package signal implements the single-value reactive container that holds
// component state. Writers replace the value, subscribers are pushed every
// distinct value, and destruction cascades from a container to everything
// derived from it.
package signal

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/go-cmp/cmp"
)

type subscriber[T any] struct {
	notify   func(T)
	teardown func()
}

// Signal holds one current value and a list of subscribers.
//
// The internal lock is never held while subscriber code runs, so a
// subscriber may write back into the signal it observes; the equality check
// in Set stops such feedback once the value settles. A Signal is safe for
// concurrent use.
type Signal[T any] struct {
	mu          sync.Mutex
	value       T
	subscribers []*subscriber[T]
	destroyed   bool
	destroying  bool
	detach      func()
	onDestroy   []func()
	logger      *slog.Logger

	// version counts stored values; delivered is the version last pushed
	// to subscribers.
	version    uint64
	delivered  uint64
	delivering bool
}

// Option configures a Signal.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	onDestroy func()
}

// WithLogger sets the logger used to report subscriber panics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOnDestroy registers an owner-level teardown that runs after every
// subscriber teardown.
func WithOnDestroy(fn func()) Option {
	return func(o *options) { o.onDestroy = fn }
}

// New creates a signal holding initial.
func New[T any](initial T, opts ...Option) *Signal[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Signal[T]{value: initial, logger: o.logger}
	if o.onDestroy != nil {
		s.onDestroy = append(s.onDestroy, o.onDestroy)
	}
	return s
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value. Without subscribers the value is stored as-is;
// otherwise a deeply equal value is ignored and a different one is pushed to
// every subscriber.
//
// Deliveries are serialized. A write made while another delivery is in
// progress, from a subscriber or from another goroutine, is picked up by
// the goroutine already delivering once its current round ends. Values
// overwritten before their round starts are never pushed; the last value
// every subscriber sees is always the value Get returns.
func (s *Signal[T]) Set(v T) {
	s.mu.Lock()
	s.store(v)
}

// Update sets the result of fn applied to the current value. fn runs under
// the signal's lock, so concurrent updates never lose each other's writes;
// it must not call back into the signal.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	if s.destroyed || s.destroying {
		s.mu.Unlock()
		return
	}
	s.store(fn(s.value))
}

// store is called with s.mu held and releases it.
func (s *Signal[T]) store(v T) {
	if s.destroyed || s.destroying {
		s.mu.Unlock()
		return
	}
	if len(s.subscribers) > 0 && equal(s.value, v) {
		s.mu.Unlock()
		return
	}
	s.value = v
	s.version++
	if len(s.subscribers) == 0 {
		s.delivered = s.version
	}
	s.deliver()
}

// deliver is called with s.mu held and releases it. Only one goroutine
// delivers at a time; it loops until the latest version has been pushed.
func (s *Signal[T]) deliver() {
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for s.delivered != s.version && !s.destroyed && !s.destroying {
		v := s.value
		s.delivered = s.version
		subs := make([]*subscriber[T], len(s.subscribers))
		copy(subs, s.subscribers)
		s.mu.Unlock()

		for _, sub := range subs {
			s.safely("notify", func() { sub.notify(v) })
		}

		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}

// Subscribe registers notify and an optional teardown, immediately replays
// the current value to notify and returns a function that removes only this
// subscription.
func (s *Signal[T]) Subscribe(notify func(T), teardown func()) (unsubscribe func()) {
	if notify == nil {
		notify = func(T) {}
	}
	sub := &subscriber[T]{notify: notify, teardown: teardown}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return func() {}
	}
	s.subscribers = append(s.subscribers, sub)
	current := s.value
	s.mu.Unlock()

	s.safely("notify", func() { notify(current) })

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, candidate := range s.subscribers {
			if candidate == sub {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Destroy runs every subscriber teardown in subscription order, clears the
// subscribers and runs owner-level teardowns. Calling it again is a no-op.
func (s *Signal[T]) Destroy() {
	s.mu.Lock()
	if s.destroyed || s.destroying {
		s.mu.Unlock()
		return
	}
	s.destroying = true
	detach := s.detach
	s.detach = nil
	subs := s.subscribers
	s.subscribers = nil
	ownerTeardowns := s.onDestroy
	s.onDestroy = nil
	s.mu.Unlock()

	if detach != nil {
		s.safely("detach", detach)
	}
	for _, sub := range subs {
		if sub.teardown != nil {
			s.safely("teardown", sub.teardown)
		}
	}
	for _, fn := range ownerTeardowns {
		s.safely("owner teardown", fn)
	}

	s.mu.Lock()
	s.destroyed = true
	s.destroying = false
	s.mu.Unlock()
}

// Destroyed reports whether Destroy has run.
func (s *Signal[T]) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed || s.destroying
}

// OnDestroy adds an owner-level teardown. If the signal is already destroyed
// fn runs immediately.
func (s *Signal[T]) OnDestroy(fn func()) {
	s.mu.Lock()
	if s.destroyed || s.destroying {
		s.mu.Unlock()
		s.safely("owner teardown", fn)
		return
	}
	s.onDestroy = append(s.onDestroy, fn)
	s.mu.Unlock()
}

// Map builds a derived signal seeded with fn(parent's current value) and kept
// up to date through a subscription on parent. Destroying parent destroys the
// derived signal; destroying the derived signal only removes its subscription.
func Map[T, U any](parent *Signal[T], fn func(T) U, opts ...Option) *Signal[U] {
	derived := New(fn(parent.Get()), append([]Option{WithLogger(parent.logger)}, opts...)...)

	unsubscribe := parent.Subscribe(
		func(v T) { derived.Set(fn(v)) },
		derived.Destroy,
	)

	// The parent link is cut before any of the derived teardowns run.
	derived.mu.Lock()
	derived.detach = unsubscribe
	derived.mu.Unlock()

	return derived
}

func (s *Signal[T]) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Signal subscriber panicked.", "callback", what, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// equal reports deep structural equality. Values cmp cannot compare (for
// example structs with unexported fields) are treated as different.
func equal[T any](a, b T) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return cmp.Equal(a, b)
}
