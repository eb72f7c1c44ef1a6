package controller

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// Instance is one controller attached to an element.
type Instance struct {
	engine *Engine
	ctrl   any
	desc   *Descriptor
	manual bool

	mu          sync.Mutex
	element     view.Element
	dataContext any
	attached    bool
}

// Controller returns the controller value.
func (i *Instance) Controller() any {
	return i.ctrl
}

// Descriptor returns the controller's descriptor.
func (i *Instance) Descriptor() *Descriptor {
	return i.desc
}

// Manual reports whether the controller was added explicitly.
func (i *Instance) Manual() bool {
	return i.manual
}

// Element returns the injected element, nil while not loaded.
func (i *Instance) Element() view.Element {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.element
}

// DataContext returns the injected data context.
func (i *Instance) DataContext() any {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dataContext
}

// Attached reports whether the extensions are attached.
func (i *Instance) Attached() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attached
}

func (i *Instance) setDataContext(dc any) {
	i.mu.Lock()
	i.dataContext = dc
	i.mu.Unlock()
	i.engine.injectDataContext(i.ctrl, i.desc, dc)
}

func (i *Instance) setElement(el view.Element) {
	i.mu.Lock()
	i.element = el
	i.mu.Unlock()
	i.engine.injectElements(i.ctrl, i.desc, el)
}

// attach runs every extension's Attach once per load.
func (i *Instance) attach() error {
	i.mu.Lock()
	if i.attached || i.element == nil {
		i.mu.Unlock()
		return nil
	}
	i.attached = true
	el := i.element
	i.mu.Unlock()

	var errs []error
	for _, x := range i.engine.extensions {
		if err := x.Attach(i.ctrl, el); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// detach runs every extension's Detach and clears the injected
// references.
func (i *Instance) detach() error {
	i.mu.Lock()
	attached, el := i.attached, i.element
	i.attached = false
	i.mu.Unlock()

	var errs []error
	if attached {
		for _, x := range i.engine.extensions {
			if err := x.Detach(i.ctrl, el); err != nil {
				errs = append(errs, err)
			}
		}
	} else {
		// A table may exist without an attach, created by Table or
		// RaiseAsync.
		i.engine.handlers.drop(i.ctrl)
	}
	i.setDataContext(nil)
	i.setElement(nil)
	return errors.Join(errs...)
}

// injectDataContext stores dc in the data-context slot of ctrl. A value
// the slot cannot hold stores the zero value.
func (e *Engine) injectDataContext(ctrl any, d *Descriptor, dc any) {
	s := d.DataContext
	if s == nil {
		return
	}
	if !s.Accepts(dc) {
		e.logger.Warn("data context not assignable",
			slog.String("controller", d.Name()),
			slog.String("slot", s.Member),
			slog.String("type", typeName(s.Type)))
		dc = nil
	}
	if err := s.Set(ctrl, dc); err != nil {
		e.logger.Warn("data context injection failed", slog.Any("error", err))
	}
}

// injectElements looks every element slot of ctrl up from root. A nil
// root clears the slots.
func (e *Engine) injectElements(ctrl any, d *Descriptor, root view.Element) {
	for _, s := range d.Elements {
		var v any
		if root != nil {
			if found := findElement(root, s.Name); found != nil {
				v = found
			} else {
				e.logger.Debug("element slot not found", slog.Any("error", &ElementNotFoundError{
					Controller: d.Name(),
					Element:    s.Name,
				}))
			}
		}
		if !s.Accepts(v) {
			e.logger.Warn("element not assignable",
				slog.String("controller", d.Name()),
				slog.String("slot", s.Member))
			v = nil
		}
		if err := s.Set(ctrl, v); err != nil {
			e.logger.Warn("element injection failed", slog.Any("error", err))
		}
	}
}
