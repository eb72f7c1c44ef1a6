package view

// Standard event names.
const (
	EventLoading            = "Loading"
	EventLoaded             = "Loaded"
	EventUnloaded           = "Unloaded"
	EventDataContextChanged = "DataContextChanged"
	EventClick              = "Click"
	EventKeyDown            = "KeyDown"
	EventKeyUp              = "KeyUp"
	EventTextChanged        = "TextChanged"
	EventGotFocus           = "GotFocus"
	EventLostFocus          = "LostFocus"
)

// Element is a node of the host UI toolkit's element tree.
type Element interface {
	// Name returns the element name used for lookups. It may be empty.
	Name() string

	// Parent returns the parent element, or nil for a root.
	Parent() Element

	// Slot returns the attached object stored under key, or nil.
	Slot(key any) any

	// SetSlot stores an attached object under key. A nil value removes it.
	SetSlot(key, value any)

	// FindName returns the element itself or the first descendant with the
	// given name, or nil.
	FindName(name string) Element

	// DataContext returns the bound model, inherited from ancestors when
	// the element has none of its own.
	DataContext() any

	// IsLoaded reports whether the element is currently loaded.
	IsLoaded() bool

	// Event returns the native event source with the given name, or nil.
	Event(name string) EventSource
}

// HandlerFunc receives a native event. A non-nil error propagates to the
// code that raised the event.
type HandlerFunc func(sender any, args EventArgs) error

// EventSource is a native event that accepts subscribers.
type EventSource interface {
	// Subscribe registers fn and returns a function that removes it.
	// The returned function may be called more than once.
	Subscribe(fn HandlerFunc) (unsubscribe func())
}

// RoutedEventSource is an event that bubbles from the originating element
// to its ancestors.
type RoutedEventSource interface {
	EventSource

	// SubscribeRouted registers fn. When handledEventsToo is true fn is
	// invoked even after an earlier handler marked the event handled.
	SubscribeRouted(fn HandlerFunc, handledEventsToo bool) (unsubscribe func())
}

// Root returns the top-most ancestor of el.
func Root(el Element) Element {
	if el == nil {
		return nil
	}
	for {
		p := el.Parent()
		if p == nil {
			return el
		}
		el = p
	}
}
