package controller

import (
	"reflect"
	"sync"
)

// RoleKind says where a handler parameter value comes from.
type RoleKind uint8

const (
	// RoleAuto lets the resolution chain decide.
	RoleAuto RoleKind = iota
	// RoleDataContext takes the bound model.
	RoleDataContext
	// RoleElement takes a named element.
	RoleElement
	// RoleDependency asks the dependency container.
	RoleDependency
)

// String returns a human-readable name for the role kind.
func (k RoleKind) String() string {
	switch k {
	case RoleAuto:
		return "auto"
	case RoleDataContext:
		return "datacontext"
	case RoleElement:
		return "element"
	case RoleDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Role is the declared source of one handler parameter.
type Role struct {
	Kind RoleKind
	// Name qualifies the lookup: the element whose data context or which
	// element to use. Empty means the handler's own element.
	Name string
}

// Auto leaves a parameter to the default resolution order.
var Auto = Role{}

// FromDataContext resolves a parameter from the data context, optionally
// the data context of the named element.
func FromDataContext(name string) Role {
	return Role{Kind: RoleDataContext, Name: name}
}

// FromElement resolves a parameter to the named element, or to the
// handler's target element when name is empty.
func FromElement(name string) Role {
	return Role{Kind: RoleElement, Name: name}
}

// FromDependency resolves a parameter from the dependency container.
func FromDependency() Role {
	return Role{Kind: RoleDependency}
}

// handlerDecl is an explicit handler registration.
type handlerDecl struct {
	element          string
	event            string
	method           string
	handledEventsToo bool
	roles            []Role
}

// accessorDecl names a setter/getter method pair.
type accessorDecl struct {
	name   string
	setter string
	getter string
}

// Registration is the declarative description of one controller type.
type Registration struct {
	// Type is the controller type, always a pointer to a struct.
	Type reflect.Type

	// Key is the binding key matched against model types and element keys.
	Key string

	// HasKey is false for controllers that are only attached explicitly.
	HasKey bool

	handlers    []handlerDecl
	elements    []accessorDecl
	dataContext *accessorDecl
}

// Option configures a Registration.
type Option func(*Registration)

// Key sets the binding key.
func Key(key string) Option {
	return func(r *Registration) {
		r.Key = key
		r.HasKey = true
	}
}

// Handle binds method to event on the named element. An empty element
// name targets the element the controller is attached to. roles are
// matched to the method's parameters by position; missing entries are Auto.
func Handle(element, event, method string, roles ...Role) Option {
	return func(r *Registration) {
		r.handlers = append(r.handlers, handlerDecl{
			element: element,
			event:   event,
			method:  method,
			roles:   roles,
		})
	}
}

// HandleRouted is Handle for routed events that should still be delivered
// after an earlier handler marked them handled.
func HandleRouted(element, event, method string, handledEventsToo bool, roles ...Role) Option {
	return func(r *Registration) {
		r.handlers = append(r.handlers, handlerDecl{
			element:          element,
			event:            event,
			method:           method,
			handledEventsToo: handledEventsToo,
			roles:            roles,
		})
	}
}

// ElementMethods declares an element slot exposed as a setter/getter
// method pair. getter may be empty.
func ElementMethods(name, setter, getter string) Option {
	return func(r *Registration) {
		r.elements = append(r.elements, accessorDecl{name: name, setter: setter, getter: getter})
	}
}

// DataContextMethods declares the data-context slot as a setter/getter
// method pair. getter may be empty.
func DataContextMethods(setter, getter string) Option {
	return func(r *Registration) {
		r.dataContext = &accessorDecl{setter: setter, getter: getter}
	}
}

// Registry holds controller registrations and the interfaces used for
// binding key matching.
type Registry struct {
	mu         sync.RWMutex
	entries    []*Registration
	byType     map[reflect.Type]*Registration
	interfaces []reflect.Type
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[reflect.Type]*Registration)}
}

// Add registers t. Struct types are registered by pointer. Registering the
// same type again replaces its options.
func (r *Registry) Add(t reflect.Type, opts ...Option) *Registration {
	if t.Kind() == reflect.Struct {
		t = reflect.PointerTo(t)
	}
	reg := &Registration{Type: t}
	for _, opt := range opts {
		opt(reg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byType[t]; ok {
		for i, e := range r.entries {
			if e.Type == t {
				r.entries[i] = reg
			}
		}
	} else {
		r.entries = append(r.entries, reg)
	}
	r.byType[t] = reg
	return reg
}

// Lookup returns the registration for t.
func (r *Registry) Lookup(t reflect.Type) (*Registration, bool) {
	if t.Kind() == reflect.Struct {
		t = reflect.PointerTo(t)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byType[t]
	return reg, ok
}

// All returns every registration in registration order.
func (r *Registry) All() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Registration, len(r.entries))
	copy(out, r.entries)
	return out
}

// AddInterface makes an interface type available to binding key matching.
func (r *Registry) AddInterface(t reflect.Type) {
	if t.Kind() != reflect.Interface {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.interfaces {
		if it == t {
			return
		}
	}
	r.interfaces = append(r.interfaces, t)
}

// Interfaces returns the registered interface types.
func (r *Registry) Interfaces() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, len(r.interfaces))
	copy(out, r.interfaces)
	return out
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by engines that
// do not set Config.Registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds T to the default registry. T is usually a pointer to a
// controller struct:
//
//	func init() {
//	    controller.Register[*TodoController](controller.Key("TodoList"))
//	}
func Register[T any](opts ...Option) *Registration {
	return defaultRegistry.Add(reflect.TypeFor[T](), opts...)
}

// RegisterInterface makes interface I available to binding key matching in
// the default registry.
func RegisterInterface[I any]() {
	defaultRegistry.AddInterface(reflect.TypeFor[I]())
}
