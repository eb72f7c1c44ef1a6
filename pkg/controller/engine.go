package controller

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// Factory creates controller instances.
type Factory interface {
	Create(t reflect.Type) (any, error)
}

// FactoryFunc adapts a function into a Factory.
type FactoryFunc func(t reflect.Type) (any, error)

// Create calls f.
func (f FactoryFunc) Create(t reflect.Type) (any, error) { return f(t) }

// ZeroFactory creates a pointer to a zero value of the controller struct.
var ZeroFactory Factory = FactoryFunc(func(t reflect.Type) (any, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotDescribable, t)
	}
	return reflect.New(t).Interface(), nil
})

// Config configures an Engine. The zero value is usable.
type Config struct {
	// Registry holds the registrations searched for controllers.
	// Default: DefaultRegistry().
	Registry *Registry

	// Types is searched before the registry when matching models.
	Types TypeContainer

	// Factory creates controllers. Default: ZeroFactory.
	Factory Factory

	// Dependencies resolves dependency parameters.
	Dependencies Dependencies

	// Resolvers run after values provided to an eventargs scope and
	// before the built-in data context, element and dependency resolvers.
	Resolvers []Resolver

	// Extensions are attached after the built-in handler extension.
	Extensions []Extension

	// Observers are notified around every handler invocation.
	Observers []Observer

	// Interfaces are interface types considered for binding key matching
	// in addition to those registered in the registry.
	Interfaces []reflect.Type

	// Exclude removes controller types from model matching.
	Exclude func(t reflect.Type) bool

	// ReadyEvent is the event replayed for handlers registered on an
	// element that is already loaded. Default: view.EventLoaded.
	ReadyEvent string

	// Logger receives diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Engine resolves, creates and attaches controllers.
type Engine struct {
	registry        *Registry
	types           TypeContainer
	factory         Factory
	exclude         func(reflect.Type) bool
	extraInterfaces []reflect.Type
	resolvers       []Resolver
	observers       []Observer
	handlers        *HandlerExtension
	extensions      []Extension
	readyEvent      string
	logger          *slog.Logger
	funnel          funnel

	descMu sync.RWMutex
	descs  map[reflect.Type]*cachedDescriptor
}

type cachedDescriptor struct {
	reg  *Registration
	desc *Descriptor
}

// New creates an Engine.
func New(cfg Config) *Engine {
	e := &Engine{
		registry:        cfg.Registry,
		types:           cfg.Types,
		factory:         cfg.Factory,
		exclude:         cfg.Exclude,
		extraInterfaces: cfg.Interfaces,
		observers:       cfg.Observers,
		readyEvent:      cfg.ReadyEvent,
		logger:          cfg.Logger,
		descs:           make(map[reflect.Type]*cachedDescriptor),
	}
	if e.registry == nil {
		e.registry = defaultRegistry
	}
	if e.factory == nil {
		e.factory = ZeroFactory
	}
	if e.readyEvent == "" {
		e.readyEvent = view.EventLoaded
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	e.resolvers = append(e.resolvers, scopeResolver{})
	e.resolvers = append(e.resolvers, cfg.Resolvers...)
	e.resolvers = append(e.resolvers,
		dataContextResolver{},
		elementResolver{},
		dependencyResolver{deps: cfg.Dependencies},
	)

	e.handlers = newHandlerExtension(e)
	e.extensions = append([]Extension{e.handlers}, cfg.Extensions...)
	return e
}

// Registry returns the registry searched by the engine.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Handlers returns the built-in handler extension.
func (e *Engine) Handlers() *HandlerExtension {
	return e.handlers
}

// Extensions returns the extensions in attach order.
func (e *Engine) Extensions() []Extension {
	out := make([]Extension, len(e.extensions))
	copy(out, e.extensions)
	return out
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// OnUnhandledError subscribes fn to every handler error. fn may set
// Handled to keep the error from the code that raised the event.
func (e *Engine) OnUnhandledError(fn func(*UnhandledError)) (cancel func()) {
	return e.funnel.subscribe(fn)
}

// Describe returns the cached descriptor of t.
func (e *Engine) Describe(t reflect.Type) (*Descriptor, error) {
	if t == nil {
		return nil, ErrNotDescribable
	}
	if t.Kind() == reflect.Struct {
		t = reflect.PointerTo(t)
	}
	reg, _ := e.registry.Lookup(t)

	e.descMu.RLock()
	c, ok := e.descs[t]
	e.descMu.RUnlock()
	if ok && c.reg == reg {
		return c.desc, nil
	}

	d, err := Describe(t, reg)
	if err != nil {
		return nil, err
	}
	for _, p := range d.Problems {
		e.logger.Warn("controller member skipped", slog.Any("error", p))
	}
	e.descMu.Lock()
	e.descs[t] = &cachedDescriptor{reg: reg, desc: d}
	e.descMu.Unlock()
	return d, nil
}

func (e *Engine) newInstance(ctrl any, manual bool) (*Instance, error) {
	if ctrl == nil {
		return nil, ErrNilController
	}
	d, err := e.Describe(reflect.TypeOf(ctrl))
	if err != nil {
		return nil, err
	}
	return &Instance{engine: e, ctrl: ctrl, desc: d, manual: manual}, nil
}

type slotKind uint8

const (
	slotCollection slotKind = iota
	slotEnabled
	slotBindingKey
)

// slotKey is the opaque key under which an engine stores its state on
// elements.
type slotKey struct {
	engine *Engine
	kind   slotKind
}

func (e *Engine) slot(kind slotKind) slotKey {
	return slotKey{engine: e, kind: kind}
}

// Collection returns the collection of el, or nil.
func (e *Engine) Collection(el view.Element) *Collection {
	c, _ := el.Slot(e.slot(slotCollection)).(*Collection)
	return c
}

func (e *Engine) collection(el view.Element) *Collection {
	if c := e.Collection(el); c != nil {
		return c
	}
	c := &Collection{engine: e, element: el}
	el.SetSlot(e.slot(slotCollection), c)
	return c
}

// Controllers returns the controllers attached to el.
func (e *Engine) Controllers(el view.Element) []any {
	c := e.Collection(el)
	if c == nil {
		return nil
	}
	return c.Controllers()
}

// IsEnabled reports whether model matching is enabled on el.
func (e *Engine) IsEnabled(el view.Element) bool {
	v, _ := el.Slot(e.slot(slotEnabled)).(bool)
	return v
}

// Key returns the explicit key of el.
func (e *Engine) Key(el view.Element) (string, bool) {
	k, ok := el.Slot(e.slot(slotBindingKey)).(string)
	return k, ok && k != ""
}

// Enable attaches to el the controllers matching its data context. While
// el has no data context resolution is deferred until it gets one.
func (e *Engine) Enable(el view.Element) error {
	el.SetSlot(e.slot(slotEnabled), true)
	c := e.collection(el)
	c.subscribe()
	return c.refresh()
}

// SetKey attaches to el the controllers whose binding key equals key.
// No data context is required.
func (e *Engine) SetKey(el view.Element, key string) error {
	if key == "" {
		el.SetSlot(e.slot(slotBindingKey), nil)
		return nil
	}
	el.SetSlot(e.slot(slotBindingKey), key)
	c := e.collection(el)
	c.subscribe()
	return c.refresh()
}

// Add attaches ctrl to el regardless of keys. It stays attached across
// unloads until el is disabled.
func (e *Engine) Add(el view.Element, ctrl any) error {
	if ctrl == nil {
		return ErrNilController
	}
	if _, err := e.Describe(reflect.TypeOf(ctrl)); err != nil {
		return err
	}
	c := e.collection(el)
	c.subscribe()
	c.mu.Lock()
	if !containsValue(c.manual, ctrl) {
		c.manual = append(c.manual, ctrl)
	}
	c.mu.Unlock()
	return c.refresh()
}

// Disable detaches every controller of el and stops following its
// lifecycle.
func (e *Engine) Disable(el view.Element) error {
	el.SetSlot(e.slot(slotEnabled), nil)
	el.SetSlot(e.slot(slotBindingKey), nil)
	c := e.Collection(el)
	if c == nil {
		return nil
	}
	c.unsubscribe()
	c.mu.Lock()
	c.manual = nil
	c.mu.Unlock()
	return c.teardown()
}

// SetDataContext injects dc into ctrl. Controllers without a data-context
// slot expose dc to their handlers only.
func (e *Engine) SetDataContext(ctrl any, dc any) error {
	t, err := e.handlers.Table(ctrl)
	if err != nil {
		return err
	}
	if t.desc.DataContext == nil {
		t.SetDataContext(dc)
		return nil
	}
	if !t.desc.DataContext.Accepts(dc) {
		return fmt.Errorf("controller: %s: data context %T not assignable to %s",
			t.desc.Name(), dc, t.desc.DataContext.Type)
	}
	return t.desc.DataContext.Set(ctrl, dc)
}

// SetElement injects the element slots of ctrl from el's tree. A nil el
// clears them.
func (e *Engine) SetElement(ctrl any, el view.Element) error {
	if ctrl == nil {
		return ErrNilController
	}
	d, err := e.Describe(reflect.TypeOf(ctrl))
	if err != nil {
		return err
	}
	e.injectElements(ctrl, d, el)
	return nil
}

func containsValue(list []any, v any) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

var defaultEngine atomic.Pointer[Engine]

// Default returns the process-wide engine, creating it with a zero Config
// on first use.
func Default() *Engine {
	if e := defaultEngine.Load(); e != nil {
		return e
	}
	defaultEngine.CompareAndSwap(nil, New(Config{}))
	return defaultEngine.Load()
}

// SetDefault replaces the process-wide engine.
func SetDefault(e *Engine) {
	defaultEngine.Store(e)
}

// ResetDefault drops the process-wide engine so that the next Default
// call creates a fresh one.
func ResetDefault() {
	defaultEngine.Store(nil)
}
