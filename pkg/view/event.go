package view

import (
	"errors"
	"sync"
)

// Event is the EventSource implementation used by Node.
type Event struct {
	name   string
	routed bool

	mu   sync.Mutex
	subs []*subscription
}

type subscription struct {
	fn               HandlerFunc
	handledEventsToo bool
}

// NewEvent creates a plain event.
func NewEvent(name string) *Event {
	return &Event{name: name}
}

// NewRoutedEvent creates an event that bubbles.
func NewRoutedEvent(name string) *Event {
	return &Event{name: name, routed: true}
}

// Name returns the event name.
func (e *Event) Name() string {
	return e.name
}

// IsRouted reports whether the event bubbles.
func (e *Event) IsRouted() bool {
	return e.routed
}

// Subscribe implements EventSource.
func (e *Event) Subscribe(fn HandlerFunc) func() {
	return e.SubscribeRouted(fn, false)
}

// SubscribeRouted implements RoutedEventSource.
func (e *Event) SubscribeRouted(fn HandlerFunc, handledEventsToo bool) func() {
	sub := &subscription{fn: fn, handledEventsToo: handledEventsToo}

	e.mu.Lock()
	e.subs = append(e.subs, sub)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(sub) })
	}
}

func (e *Event) remove(sub *subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s == sub {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (e *Event) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// invoke calls the subscribers registered when the call starts. Subscribers
// added during the call are not invoked until the next raise.
func (e *Event) invoke(sender any, args EventArgs) error {
	e.mu.Lock()
	subs := make([]*subscription, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	var routing *RoutedArgs
	if r, ok := args.(Routed); ok {
		routing = r.Routing()
	}

	var errs []error
	for _, s := range subs {
		if routing != nil && routing.Handled && !s.handledEventsToo {
			continue
		}
		if err := s.fn(sender, args); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
