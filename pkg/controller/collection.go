package controller

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// Collection holds the controllers attached to one element and follows
// the element's lifecycle.
//
// Controllers are resolved when the element is enabled and has a data
// context, or when it has an explicit key. Loading injects the element,
// Loaded attaches the extensions, and Unloaded detaches them and drops the
// instances. A later load resolves again. Controllers added with
// Engine.Add survive unloads and are attached again on the next load.
type Collection struct {
	engine  *Engine
	element view.Element

	mu         sync.Mutex
	instances  []*Instance
	manual     []any
	subs       []func()
	subscribed bool
	resolved   bool
	pending    bool
}

// Element returns the element the collection belongs to.
func (c *Collection) Element() view.Element {
	return c.element
}

// Instances returns the current instances.
func (c *Collection) Instances() []*Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Instance, len(c.instances))
	copy(out, c.instances)
	return out
}

// Controllers returns the current controller values.
func (c *Collection) Controllers() []any {
	insts := c.Instances()
	out := make([]any, len(insts))
	for i, inst := range insts {
		out[i] = inst.ctrl
	}
	return out
}

// Pending reports whether resolution waits for a data context.
func (c *Collection) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// RaiseAsync raises event on the handlers of every controller in the
// collection targeting element, and waits for all of them.
func (c *Collection) RaiseAsync(ctx context.Context, element, event string, sender any, args view.EventArgs) error {
	var errs []error
	for _, inst := range c.Instances() {
		t, err := c.engine.handlers.Table(inst.ctrl)
		if err != nil {
			continue
		}
		if err := t.GetBy(element).RaiseAsync(ctx, event, sender, args); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Collection) subscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribed {
		return
	}
	c.subscribed = true
	hooks := []struct {
		event string
		fn    view.HandlerFunc
	}{
		{view.EventLoading, c.onLoading},
		{view.EventLoaded, c.onLoaded},
		{view.EventUnloaded, c.onUnloaded},
		{view.EventDataContextChanged, c.onDataContextChanged},
	}
	for _, h := range hooks {
		src := c.element.Event(h.event)
		if src == nil {
			c.engine.logger.Debug("element has no lifecycle event",
				slog.String("element", c.element.Name()),
				slog.String("event", h.event))
			continue
		}
		c.subs = append(c.subs, src.Subscribe(h.fn))
	}
}

func (c *Collection) unsubscribe() {
	c.mu.Lock()
	subs := c.subs
	c.subs, c.subscribed = nil, false
	c.mu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
}

// populate creates the instances the element is eligible for. It must be
// called with c.mu held.
func (c *Collection) populate() []error {
	e := c.engine
	dc := c.element.DataContext()

	var errs []error
	if !c.resolved {
		types, ok := c.types(dc)
		if ok {
			c.resolved, c.pending = true, false
			for _, t := range types {
				ctrl, err := e.factory.Create(t)
				if err != nil {
					errs = append(errs, &CreateError{Type: t, Err: err})
					continue
				}
				inst, err := e.newInstance(ctrl, false)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				inst.setDataContext(dc)
				c.instances = append(c.instances, inst)
			}
		}
	}
	for _, ctrl := range c.manual {
		if c.has(ctrl) {
			continue
		}
		inst, err := e.newInstance(ctrl, true)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		inst.setDataContext(dc)
		c.instances = append(c.instances, inst)
	}
	return errs
}

// types returns the controller types for the element, or false while the
// element is not eligible for resolution.
func (c *Collection) types(dc any) ([]reflect.Type, bool) {
	e := c.engine
	if key, ok := e.Key(c.element); ok {
		return e.TypesForKey(key), true
	}
	if !e.IsEnabled(c.element) {
		return nil, false
	}
	if dc == nil {
		c.pending = true
		return nil, false
	}
	return e.ResolveTypes(c.element, dc), true
}

func (c *Collection) has(ctrl any) bool {
	for _, inst := range c.instances {
		if inst.ctrl == ctrl {
			return true
		}
	}
	return false
}

// refresh populates the collection and, when the element is loaded,
// injects the element and attaches every instance.
func (c *Collection) refresh() error {
	c.mu.Lock()
	errs := c.populate()
	insts := append([]*Instance(nil), c.instances...)
	c.mu.Unlock()

	if c.element.IsLoaded() {
		errs = append(errs, c.bringUp(insts))
	}
	return errors.Join(errs...)
}

func (c *Collection) bringUp(insts []*Instance) error {
	var errs []error
	for _, inst := range insts {
		if inst.Element() == nil {
			inst.setElement(c.element)
		}
		if err := inst.attach(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// teardown detaches and drops every instance.
func (c *Collection) teardown() error {
	c.mu.Lock()
	insts := c.instances
	c.instances = nil
	c.resolved, c.pending = false, false
	c.mu.Unlock()

	var errs []error
	for _, inst := range insts {
		if err := inst.detach(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Collection) onLoading(any, view.EventArgs) error {
	c.mu.Lock()
	errs := c.populate()
	insts := append([]*Instance(nil), c.instances...)
	c.mu.Unlock()

	for _, inst := range insts {
		inst.setElement(c.element)
	}
	return errors.Join(errs...)
}

func (c *Collection) onLoaded(any, view.EventArgs) error {
	return c.refresh()
}

func (c *Collection) onUnloaded(any, view.EventArgs) error {
	return c.teardown()
}

func (c *Collection) onDataContextChanged(any, view.EventArgs) error {
	dc := c.element.DataContext()

	c.mu.Lock()
	existing := append([]*Instance(nil), c.instances...)
	errs := c.populate()
	insts := append([]*Instance(nil), c.instances...)
	c.mu.Unlock()

	for _, inst := range existing {
		inst.setDataContext(dc)
	}
	if c.element.IsLoaded() {
		errs = append(errs, c.bringUp(insts))
	}
	return errors.Join(errs...)
}
