package controller

import (
	"log/slog"
	"reflect"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// TypeContainer supplies controller types that take part in model
// matching ahead of the registry.
type TypeContainer interface {
	ControllerTypes() []reflect.Type
}

// TypeList is a fixed TypeContainer.
type TypeList []reflect.Type

// ControllerTypes returns l.
func (l TypeList) ControllerTypes() []reflect.Type { return l }

// ResolveTypes returns the controller types whose binding key matches the
// type of model. Candidates come from the configured type container, then
// from the engine's registrations outside the model's package, then from
// registrations in the model's package. Controllers without a key never
// match.
func (e *Engine) ResolveTypes(el view.Element, model any) []reflect.Type {
	if model == nil {
		return nil
	}
	mt := reflect.TypeOf(model)
	names := make(map[string]bool)
	for _, n := range TypeNames(mt, e.interfaces()) {
		names[n] = true
	}

	var out []reflect.Type
	for _, t := range e.candidates(deref(mt).PkgPath()) {
		d, err := e.Describe(t)
		if err != nil || !d.HasKey || !names[d.Key] {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		name := ""
		if el != nil {
			name = el.Name()
		}
		e.logger.Debug("no controller for model",
			slog.String("model", mt.String()),
			slog.String("element", name))
	}
	return out
}

// TypesForKey returns the controller types whose binding key equals key.
func (e *Engine) TypesForKey(key string) []reflect.Type {
	if key == "" {
		return nil
	}
	var out []reflect.Type
	for _, t := range e.candidates("") {
		d, err := e.Describe(t)
		if err != nil || !d.HasKey || d.Key != key {
			continue
		}
		out = append(out, t)
	}
	return out
}

// candidates lists the searchable controller types without duplicates.
// Registrations from pkg come after the rest of the registry.
func (e *Engine) candidates(pkg string) []reflect.Type {
	seen := make(map[reflect.Type]bool)
	var out []reflect.Type
	add := func(t reflect.Type) {
		if t == nil {
			return
		}
		if t.Kind() == reflect.Struct {
			t = reflect.PointerTo(t)
		}
		if seen[t] || (e.exclude != nil && e.exclude(t)) {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	if e.types != nil {
		for _, t := range e.types.ControllerTypes() {
			add(t)
		}
	}
	regs := e.registry.All()
	for _, r := range regs {
		if pkg == "" || deref(r.Type).PkgPath() != pkg {
			add(r.Type)
		}
	}
	if pkg != "" {
		for _, r := range regs {
			if deref(r.Type).PkgPath() == pkg {
				add(r.Type)
			}
		}
	}
	return out
}

func (e *Engine) interfaces() []reflect.Type {
	return append(e.registry.Interfaces(), e.extraInterfaces...)
}
