package eventargs

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Adapter is prepared when a Scope opens and torn down when it closes.
// Adapters typically install a set of substitutions that belong together.
type Adapter interface {
	Prepare(s *Scope)
	Teardown(s *Scope)
}

// AdapterFunc adapts a plain prepare function into an Adapter with no
// teardown.
type AdapterFunc func(s *Scope)

// Prepare calls f.
func (f AdapterFunc) Prepare(s *Scope) { f(s) }

// Teardown does nothing.
func (AdapterFunc) Teardown(*Scope) {}

var (
	// gate serializes scopes process-wide.
	gate sync.Mutex

	// active is the currently open scope, nil when none.
	active atomic.Pointer[Scope]
)

// Scope is an exclusive configuration window. Create it with Open and
// release it with Close.
type Scope struct {
	adapters []Adapter

	mu        sync.RWMutex
	overrides map[any]any
	values    []reflect.Value
	closed    bool
}

// Open acquires the process-wide scope, blocking until any prior scope is
// closed, then prepares each adapter in order.
func Open(adapters ...Adapter) *Scope {
	gate.Lock()
	s := &Scope{
		adapters:  adapters,
		overrides: make(map[any]any),
	}
	active.Store(s)
	defer func() {
		if r := recover(); r != nil {
			s.Close()
			panic(r)
		}
	}()
	for _, a := range adapters {
		a.Prepare(s)
	}
	return s
}

// Close tears the adapters down in reverse order and releases exclusivity.
// Close is idempotent; calling it on an already closed scope does nothing.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	defer gate.Unlock()
	defer active.CompareAndSwap(s, nil)
	for i := len(s.adapters) - 1; i >= 0; i-- {
		s.adapters[i].Teardown(s)
	}
	s.mu.Lock()
	s.overrides = make(map[any]any)
	s.values = nil
	s.mu.Unlock()
}

// Current returns the open scope, or nil.
func Current() *Scope {
	return active.Load()
}

// Do runs fn inside a freshly opened scope and closes it on every path,
// including panics.
func Do(fn func(s *Scope) error, adapters ...Adapter) error {
	s := Open(adapters...)
	defer s.Close()
	return fn(s)
}

// Provide offers value as an ad hoc handler parameter for the lifetime of
// the scope. Values are matched by assignability in the order provided.
func Provide(s *Scope, value any) {
	if s == nil || value == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, reflect.ValueOf(value))
}

// Lookup returns the first provided value assignable to t.
func (s *Scope) Lookup(t reflect.Type) (reflect.Value, bool) {
	if s == nil {
		return reflect.Value{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.values {
		if v.Type().AssignableTo(t) {
			return v, true
		}
	}
	return reflect.Value{}, false
}

func (s *Scope) override(key any) (any, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.overrides[key]
	return fn, ok
}

func (s *Scope) setOverride(key, fn any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.overrides[key] = fn
}

func (s *Scope) clearOverride(key any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, key)
}
