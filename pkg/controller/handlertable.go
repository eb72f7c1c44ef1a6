package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// HandlerTable is the handler state of one controller instance.
type HandlerTable struct {
	engine *Engine
	ctrl   any
	desc   *Descriptor

	mu          sync.Mutex
	element     view.Element
	dataContext any
	handlers    []*Handler
	registered  bool
}

func newHandlerTable(e *Engine, ctrl any, desc *Descriptor) *HandlerTable {
	t := &HandlerTable{engine: e, ctrl: ctrl, desc: desc}
	for _, s := range desc.Handlers {
		t.handlers = append(t.handlers, &Handler{table: t, slot: s})
	}
	return t
}

// Controller returns the controller instance.
func (t *HandlerTable) Controller() any {
	return t.ctrl
}

// Descriptor returns the controller's descriptor.
func (t *HandlerTable) Descriptor() *Descriptor {
	return t.desc
}

// Registered reports whether the handlers are subscribed on their
// elements.
func (t *HandlerTable) Registered() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registered
}

// Handlers returns every handler of the controller.
func (t *HandlerTable) Handlers() HandlerGroup {
	return HandlerGroup(t.handlers)
}

// GetBy returns the handlers targeting the named element. The name is
// compared ignoring the case of its first letter. An empty name selects
// the handlers of the attached element.
func (t *HandlerTable) GetBy(element string) HandlerGroup {
	var g HandlerGroup
	for _, h := range t.handlers {
		if sameElementName(h.slot.Element, element) {
			g = append(g, h)
		}
	}
	return g
}

// SetDataContext sets the data context seen by handlers of a controller
// without a data-context slot.
func (t *HandlerTable) SetDataContext(dc any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dataContext = dc
}

func (t *HandlerTable) currentDataContext() any {
	if s := t.desc.DataContext; s != nil {
		if dc := s.Get(t.ctrl); dc != nil {
			return dc
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dataContext != nil {
		return t.dataContext
	}
	if t.element != nil {
		return t.element.DataContext()
	}
	return nil
}

func (t *HandlerTable) attachedElements(h *Handler) (el, target view.Element) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.element, h.target
}

// attach subscribes every handler on its target element. It is a no-op
// when the handlers are already registered. Handlers of the ready event
// whose target is already loaded are invoked once immediately.
func (t *HandlerTable) attach(el view.Element) error {
	t.mu.Lock()
	if t.registered {
		t.mu.Unlock()
		return nil
	}
	t.element = el

	log := t.engine.logger
	var ready []*Handler
	for _, h := range t.handlers {
		target := findElement(el, h.slot.Element)
		if target == nil {
			log.Warn("handler skipped", slog.Any("error", &ElementNotFoundError{
				Controller: t.desc.Name(),
				Element:    h.slot.Element,
			}))
			continue
		}
		src := target.Event(h.slot.Event)
		if src == nil {
			log.Warn("handler skipped", slog.Any("error", &EventNotFoundError{
				Controller: t.desc.Name(),
				Element:    h.slot.Element,
				Event:      h.slot.Event,
			}))
			continue
		}
		h.target = target
		if rs, ok := src.(view.RoutedEventSource); ok {
			h.unsubscribe = rs.SubscribeRouted(h.native, h.slot.HandledEventsToo)
		} else {
			h.unsubscribe = src.Subscribe(h.native)
		}
		if h.slot.Event == t.engine.readyEvent && target.IsLoaded() {
			ready = append(ready, h)
		}
	}
	t.registered = true
	t.mu.Unlock()

	var errs []error
	for _, h := range ready {
		if err := h.raise(context.Background(), h.target, view.NewArgs(h.slot.Event)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// detach unsubscribes every handler and forgets the element.
func (t *HandlerTable) detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, h := range t.handlers {
		if h.unsubscribe != nil {
			h.unsubscribe()
			h.unsubscribe = nil
		}
		h.target = nil
	}
	t.registered = false
	t.element = nil
	t.dataContext = nil
}

func sameElementName(a, b string) bool {
	return a == b || lowerFirst(a) == lowerFirst(b)
}

// HandlerExtension binds controller handlers to native element events.
// It is always the first extension of an engine.
type HandlerExtension struct {
	engine *Engine

	mu     sync.Mutex
	tables map[any]*HandlerTable
}

func newHandlerExtension(e *Engine) *HandlerExtension {
	return &HandlerExtension{engine: e, tables: make(map[any]*HandlerTable)}
}

// Attach registers the handlers of ctrl on el. Attaching an already
// attached controller does nothing.
func (x *HandlerExtension) Attach(ctrl any, el view.Element) error {
	t, err := x.table(ctrl)
	if err != nil {
		return err
	}
	return t.attach(el)
}

// Detach unregisters the handlers of ctrl and drops its table.
func (x *HandlerExtension) Detach(ctrl any, _ view.Element) error {
	x.drop(ctrl)
	return nil
}

func (x *HandlerExtension) drop(ctrl any) {
	if !isComparable(ctrl) {
		return
	}
	x.mu.Lock()
	t := x.tables[ctrl]
	delete(x.tables, ctrl)
	x.mu.Unlock()
	if t != nil {
		t.detach()
	}
}

func (x *HandlerExtension) tableCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.tables)
}

// Retrieve returns the *HandlerTable of ctrl, creating it on first use.
// It returns nil for values that cannot be controllers.
func (x *HandlerExtension) Retrieve(ctrl any) any {
	t, err := x.table(ctrl)
	if err != nil {
		return nil
	}
	return t
}

// Table is Retrieve with a concrete result type.
func (x *HandlerExtension) Table(ctrl any) (*HandlerTable, error) {
	return x.table(ctrl)
}

func (x *HandlerExtension) table(ctrl any) (*HandlerTable, error) {
	if ctrl == nil {
		return nil, ErrNilController
	}
	if !isComparable(ctrl) {
		return nil, fmt.Errorf("%w: %T", ErrNotDescribable, ctrl)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if t, ok := x.tables[ctrl]; ok {
		return t, nil
	}
	desc, err := x.engine.Describe(reflect.TypeOf(ctrl))
	if err != nil {
		return nil, err
	}
	t := newHandlerTable(x.engine, ctrl, desc)
	x.tables[ctrl] = t
	return t, nil
}

func isComparable(v any) bool {
	return v != nil && reflect.TypeOf(v).Comparable()
}
