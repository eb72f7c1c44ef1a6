package controller

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

var (
	anyType       = reflect.TypeFor[any]()
	errorType     = reflect.TypeFor[error]()
	contextType   = reflect.TypeFor[context.Context]()
	elementType   = reflect.TypeFor[view.Element]()
	eventArgsType = reflect.TypeFor[view.EventArgs]()
	keyerType     = reflect.TypeFor[Keyer]()
)

// Keyer can be implemented by a controller to declare its binding key
// without a registration. BindingKey is called on a zero value.
type Keyer interface {
	BindingKey() string
}

type paramKind uint8

const (
	paramResolve paramKind = iota
	paramSender
	paramArgs
	paramContext
)

type param struct {
	kind paramKind
	typ  reflect.Type
	role Role
}

type resultKind uint8

const (
	resultNone resultKind = iota
	resultError
	resultChan
)

// HandlerSlot describes one handler member of a controller type.
type HandlerSlot struct {
	// Element is the target element name. Empty means the element the
	// controller is attached to.
	Element string

	// Event is the native event name.
	Event string

	// Member is the method or func field name.
	Member string

	// Async is true for handlers whose completion is observed through a
	// channel, and for methods carrying an Async suffix. Suffixed methods
	// run on the raising goroutine; work that must outlive the call is
	// returned as a <-chan error.
	Async bool

	// HandledEventsToo asks routed events to be delivered after they were
	// marked handled.
	HandledEventsToo bool

	params []param
	result resultKind
	method int
	index  []int
}

// NumParams returns the number of handler parameters.
func (h *HandlerSlot) NumParams() int { return len(h.params) }

// fn returns the callable for ctrl, or false when a func field is nil.
func (h *HandlerSlot) fn(ctrl reflect.Value) (reflect.Value, bool) {
	if h.method >= 0 {
		return ctrl.Method(h.method), true
	}
	f, ok := field(ctrl, h.index)
	if !ok || f.IsNil() {
		return reflect.Value{}, false
	}
	return f, true
}

// Descriptor is the per-type metadata extracted from a controller type.
type Descriptor struct {
	// Type is the controller type, a pointer to a struct.
	Type reflect.Type

	// Key is the binding key. HasKey is false for controllers that can
	// only be attached explicitly.
	Key    string
	HasKey bool

	// DataContext is the data-context slot, or nil.
	DataContext *Slot

	// Elements are the element slots.
	Elements []*Slot

	// Handlers are the handler slots, explicit registrations first.
	Handlers []*HandlerSlot

	// Problems lists members that were skipped.
	Problems []error
}

// Name returns the display name of the controller type.
func (d *Descriptor) Name() string {
	return typeName(d.Type)
}

// Describe extracts the descriptor of t. reg may be nil.
//
// Handler members are found two ways. Methods named in a Handle option
// are bound explicitly. Every other exported method whose name has the
// form Element_Event or Element_EventAsync is bound by convention, the
// element name stored with its first letter lowercased. Func fields
// tagged `ctrl:"handler:element.Event"` are handlers too.
func Describe(t reflect.Type, reg *Registration) (*Descriptor, error) {
	if t == nil {
		return nil, ErrNotDescribable
	}
	if t.Kind() == reflect.Struct {
		t = reflect.PointerTo(t)
	}
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotDescribable, t)
	}

	d := &Descriptor{Type: t}
	if reg != nil && reg.HasKey {
		d.Key, d.HasKey = reg.Key, true
	} else if t.Implements(keyerType) {
		d.Key = reflect.New(t.Elem()).Interface().(Keyer).BindingKey()
		d.HasKey = d.Key != ""
	}

	used := make(map[string]bool)
	d.describeFields(t.Elem())
	d.describeAccessors(t, reg, used)
	d.describeHandlers(t, reg, used)
	return d, nil
}

func (d *Descriptor) describeFields(st reflect.Type) {
	for _, f := range reflect.VisibleFields(st) {
		if !f.IsExported() {
			continue
		}
		tag, ok := f.Tag.Lookup("ctrl")
		if !ok || tag == "-" {
			continue
		}
		kind, arg, _ := strings.Cut(tag, ":")
		switch kind {
		case "datacontext":
			if d.DataContext != nil {
				d.problem("%s: duplicate data context slot", f.Name)
				continue
			}
			d.DataContext = fieldSlot("", f)
		case "element":
			name := arg
			if name == "" {
				name = lowerFirst(f.Name)
			}
			d.Elements = append(d.Elements, fieldSlot(name, f))
		case "handler":
			if f.Type.Kind() != reflect.Func {
				d.problem("%s: handler field is not a func", f.Name)
				continue
			}
			target, opts, _ := strings.Cut(arg, ",")
			element, event := splitTarget(target)
			h, err := newHandlerSlot(f.Name, f.Type, 0, nil, false)
			if err != nil {
				d.Problems = append(d.Problems, err)
				continue
			}
			h.Element, h.Event = element, event
			h.HandledEventsToo = opts == "handledToo"
			h.method, h.index = -1, f.Index
			d.Handlers = append(d.Handlers, h)
		default:
			d.problem("%s: unknown tag %q", f.Name, tag)
		}
	}
}

func (d *Descriptor) describeAccessors(t reflect.Type, reg *Registration, used map[string]bool) {
	accessor := func(a accessorDecl) (*Slot, bool) {
		m, ok := t.MethodByName(a.setter)
		if !ok || m.Type.NumIn() != 2 {
			d.problem("%s: setter must take exactly one argument", a.setter)
			return nil, false
		}
		used[a.setter] = true
		if a.getter != "" {
			used[a.getter] = true
		}
		return methodSlot(a.name, a.setter, a.getter, m.Type.In(1)), true
	}

	if reg != nil {
		for _, a := range reg.elements {
			if s, ok := accessor(a); ok {
				d.Elements = append(d.Elements, s)
			}
		}
	}
	if d.DataContext != nil {
		return
	}
	switch {
	case reg != nil && reg.dataContext != nil:
		if s, ok := accessor(*reg.dataContext); ok {
			d.DataContext = s
		}
	default:
		m, ok := t.MethodByName("SetDataContext")
		if !ok || m.Type.NumIn() != 2 {
			return
		}
		getter := ""
		if g, ok := t.MethodByName("DataContext"); ok && g.Type.NumIn() == 1 && g.Type.NumOut() == 1 {
			getter = g.Name
		}
		d.DataContext, _ = accessor(accessorDecl{setter: m.Name, getter: getter})
	}
}

func (d *Descriptor) describeHandlers(t reflect.Type, reg *Registration, used map[string]bool) {
	if reg != nil {
		for _, decl := range reg.handlers {
			m, ok := t.MethodByName(decl.method)
			if !ok {
				d.problem("%s: no such method", decl.method)
				continue
			}
			used[m.Name] = true
			async := strings.HasSuffix(m.Name, "Async")
			h, err := newHandlerSlot(m.Name, m.Type, 1, decl.roles, async)
			if err != nil {
				d.Problems = append(d.Problems, err)
				continue
			}
			h.Element, h.Event = decl.element, decl.event
			h.HandledEventsToo = decl.handledEventsToo
			h.method = m.Index
			d.Handlers = append(d.Handlers, h)
		}
	}

	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if used[m.Name] {
			continue
		}
		element, event, ok := strings.Cut(m.Name, "_")
		if !ok || element == "" || event == "" {
			continue
		}
		async := false
		if trimmed, cut := strings.CutSuffix(event, "Async"); cut && trimmed != "" {
			event, async = trimmed, true
		}
		h, err := newHandlerSlot(m.Name, m.Type, 1, nil, async)
		if err != nil {
			d.Problems = append(d.Problems, err)
			continue
		}
		h.Element, h.Event = lowerFirst(element), event
		h.method = m.Index
		d.Handlers = append(d.Handlers, h)
	}
}

func (d *Descriptor) problem(format string, args ...any) {
	d.Problems = append(d.Problems, fmt.Errorf("controller: %s: "+format, append([]any{d.Name()}, args...)...))
}

// splitTarget splits "element.Event" at the last dot. A target without a
// dot names an event on the attached element.
func splitTarget(s string) (element, event string) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return "", s
	}
	return s[:i], s[i+1:]
}

// newHandlerSlot builds the parameter plan of a handler. skip is 1 for
// method expressions, whose first input is the receiver.
func newHandlerSlot(member string, ft reflect.Type, skip int, roles []Role, async bool) (*HandlerSlot, error) {
	if ft.IsVariadic() {
		return nil, fmt.Errorf("controller: %s: variadic handlers are not supported", member)
	}
	h := &HandlerSlot{Member: member, method: -1}

	n := ft.NumIn() - skip
	h.params = make([]param, n)
	var unmarked []int
	for i := 0; i < n; i++ {
		p := param{typ: ft.In(i + skip)}
		if i < len(roles) {
			p.role = roles[i]
		}
		h.params[i] = p
		if p.role.Kind != RoleAuto {
			continue
		}
		if p.typ == contextType {
			h.params[i].kind = paramContext
			continue
		}
		unmarked = append(unmarked, i)
	}
	for j, i := range unmarked {
		t := h.params[i].typ
		if j+1 < len(unmarked) && isSenderType(t) && isArgsType(h.params[unmarked[j+1]].typ) {
			h.params[i].kind = paramSender
			h.params[unmarked[j+1]].kind = paramArgs
			break
		}
		if isArgsType(t) {
			h.params[i].kind = paramArgs
			break
		}
	}

	switch {
	case ft.NumOut() == 0:
		h.result = resultNone
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
		h.result = resultError
	case ft.NumOut() == 1 && isErrorChan(ft.Out(0)):
		h.result = resultChan
	default:
		return nil, fmt.Errorf("controller: %s: handlers return nothing, error or <-chan error", member)
	}

	h.Async = async || h.result == resultChan
	return h, nil
}

func isSenderType(t reflect.Type) bool {
	return t == anyType || t == elementType || t.Implements(elementType)
}

func isArgsType(t reflect.Type) bool {
	return t == anyType || t == eventArgsType || t.Implements(eventArgsType)
}

func isErrorChan(t reflect.Type) bool {
	return t.Kind() == reflect.Chan && t.Elem() == errorType && t.ChanDir()&reflect.RecvDir != 0
}
