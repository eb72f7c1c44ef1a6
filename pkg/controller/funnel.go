package controller

import "sync"

// UnhandledError is published for every error a handler produced.
// Subscribers set Handled to stop the error from reaching the code that
// raised the event.
type UnhandledError struct {
	// Err is the handler error. Panics arrive as *HandlerError and
	// unresolvable parameters as *ResolutionError.
	Err error

	// Controller is the controller instance.
	Controller any

	// Element is the handler's target element name.
	Element string

	// Event is the event name.
	Event string

	// Handled marks the error as dealt with.
	Handled bool
}

// Error returns the message of the wrapped error.
func (e *UnhandledError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *UnhandledError) Unwrap() error {
	return e.Err
}

// funnel delivers handler errors to subscribers in subscription order.
type funnel struct {
	mu   sync.RWMutex
	next uint64
	subs []funnelSub
}

type funnelSub struct {
	id uint64
	fn func(*UnhandledError)
}

func (f *funnel) subscribe(fn func(*UnhandledError)) func() {
	f.mu.Lock()
	f.next++
	id := f.next
	f.subs = append(f.subs, funnelSub{id: id, fn: fn})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, s := range f.subs {
				if s.id == id {
					f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// publish reports whether any subscriber marked e handled.
func (f *funnel) publish(e *UnhandledError) bool {
	f.mu.RLock()
	subs := make([]funnelSub, len(f.subs))
	copy(subs, f.subs)
	f.mu.RUnlock()

	for _, s := range subs {
		s.fn(e)
	}
	return e.Handled
}
