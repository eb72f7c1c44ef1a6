package controller

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/vango-dev/ctrlbind/pkg/eventargs"
	"github.com/vango-dev/ctrlbind/pkg/view"
)

// ParamRequest describes one handler parameter awaiting a value.
type ParamRequest struct {
	// Type is the declared parameter type.
	Type reflect.Type

	// Role is the declared parameter source.
	Role Role

	// Index is the parameter position.
	Index int

	// Controller is the controller owning the handler.
	Controller any

	// Element is the element the controller is attached to, or nil.
	Element view.Element

	// Target is the handler's target element, or nil.
	Target view.Element

	// DataContext is the controller's current data context.
	DataContext any

	// Context is the dispatch context.
	Context context.Context

	// err is the last failure reported by a resolver for this parameter.
	err error
}

// Resolver supplies handler parameter values.
type Resolver interface {
	// Claims reports whether the resolver handles parameters of kind.
	Claims(kind RoleKind) bool

	// Resolve returns the value for req, or false to let the next
	// resolver try.
	Resolve(req *ParamRequest) (reflect.Value, bool)
}

// ResolverFunc adapts a function claiming every role into a Resolver.
type ResolverFunc func(req *ParamRequest) (reflect.Value, bool)

// Claims returns true.
func (ResolverFunc) Claims(RoleKind) bool { return true }

// Resolve calls f.
func (f ResolverFunc) Resolve(req *ParamRequest) (reflect.Value, bool) { return f(req) }

// Dependencies is the external dependency container consulted for
// dependency parameters.
type Dependencies interface {
	Resolve(t reflect.Type) (any, error)
}

// DependencyFunc adapts a function into Dependencies.
type DependencyFunc func(t reflect.Type) (any, error)

// Resolve calls f.
func (f DependencyFunc) Resolve(t reflect.Type) (any, error) { return f(t) }

// Services is a minimal Dependencies implementation holding values
// matched by assignability in the order provided.
type Services struct {
	mu     sync.RWMutex
	values []reflect.Value
}

// NewServices returns a container holding values.
func NewServices(values ...any) *Services {
	s := &Services{}
	for _, v := range values {
		s.Provide(v)
	}
	return s
}

// Provide adds value to the container.
func (s *Services) Provide(value any) {
	if value == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, reflect.ValueOf(value))
}

// Resolve returns the first value assignable to t.
func (s *Services) Resolve(t reflect.Type) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.values {
		if v.Type().AssignableTo(t) {
			return v.Interface(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDependencyNotFound, t)
}

// scopeResolver serves values provided to the open eventargs scope.
type scopeResolver struct{}

func (scopeResolver) Claims(RoleKind) bool { return true }

func (scopeResolver) Resolve(req *ParamRequest) (reflect.Value, bool) {
	return eventargs.Current().Lookup(req.Type)
}

// dataContextResolver serves the bound model.
type dataContextResolver struct{}

func (dataContextResolver) Claims(k RoleKind) bool {
	return k == RoleAuto || k == RoleDataContext
}

func (dataContextResolver) Resolve(req *ParamRequest) (reflect.Value, bool) {
	dc := req.DataContext
	switch {
	case req.Role.Name != "":
		el := findElement(req.Element, req.Role.Name)
		if el == nil {
			return reflect.Value{}, false
		}
		dc = el.DataContext()
	case dc == nil && req.Target != nil:
		dc = req.Target.DataContext()
	case dc == nil && req.Element != nil:
		dc = req.Element.DataContext()
	}
	if dc == nil {
		if req.Role.Kind == RoleDataContext {
			return reflect.Zero(req.Type), true
		}
		return reflect.Value{}, false
	}
	return assignable(dc, req.Type)
}

// elementResolver serves elements of the tree the controller is attached to.
type elementResolver struct{}

func (elementResolver) Claims(k RoleKind) bool {
	return k == RoleAuto || k == RoleElement
}

func (elementResolver) Resolve(req *ParamRequest) (reflect.Value, bool) {
	var el view.Element
	if req.Role.Name != "" {
		el = findElement(req.Element, req.Role.Name)
	} else {
		el = req.Target
		if el == nil {
			el = req.Element
		}
	}
	if el == nil {
		return reflect.Value{}, false
	}
	if req.Role.Kind == RoleAuto && !elementParam(req.Type) {
		return reflect.Value{}, false
	}
	return assignable(el, req.Type)
}

// elementParam reports whether an undeclared parameter of type t asks for
// an element. Other interfaces the element happens to satisfy are left to
// the dependency container.
func elementParam(t reflect.Type) bool {
	if t == elementType {
		return true
	}
	return t.Kind() != reflect.Interface && t.Implements(elementType)
}

// dependencyResolver consults the configured dependency container.
type dependencyResolver struct {
	deps Dependencies
}

func (dependencyResolver) Claims(k RoleKind) bool {
	return k == RoleAuto || k == RoleDependency
}

func (r dependencyResolver) Resolve(req *ParamRequest) (reflect.Value, bool) {
	if r.deps == nil {
		req.err = ErrNoDependencies
		return reflect.Value{}, false
	}
	v, err := r.deps.Resolve(req.Type)
	if err != nil {
		req.err = err
		return reflect.Value{}, false
	}
	if v == nil {
		return reflect.Value{}, false
	}
	return assignable(v, req.Type)
}

func assignable(v any, t reflect.Type) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, false
	}
	return rv, true
}

// findElement looks name up from the root of el's tree, trying the name
// as given and with its first letter in the other case.
func findElement(el view.Element, name string) view.Element {
	if el == nil {
		return nil
	}
	if name == "" {
		return el
	}
	for _, n := range []string{name, upperFirst(name), lowerFirst(name)} {
		if found := el.FindName(n); found != nil {
			return found
		}
		if root := view.Root(el); root != el {
			if found := root.FindName(n); found != nil {
				return found
			}
		}
	}
	return nil
}

// chain resolves req with the first claiming resolver that succeeds.
func chain(resolvers []Resolver, req *ParamRequest) (reflect.Value, bool) {
	for _, r := range resolvers {
		if !r.Claims(req.Role.Kind) {
			continue
		}
		if v, ok := r.Resolve(req); ok {
			return v, true
		}
	}
	return reflect.Value{}, false
}
