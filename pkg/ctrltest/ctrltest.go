package ctrltest

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/ctrlbind/pkg/controller"
	"github.com/vango-dev/ctrlbind/pkg/view"
)

// TreeBuilder builds view trees for tests.
type TreeBuilder struct {
	root *view.Node
	dc   any
}

// NewTree starts a tree whose root is named name.
func NewTree(name string) *TreeBuilder {
	return &TreeBuilder{root: view.NewNode(name)}
}

// Child adds children named names under the root.
func (b *TreeBuilder) Child(names ...string) *TreeBuilder {
	for _, name := range names {
		_ = b.root.Add(view.NewNode(name))
	}
	return b
}

// Under adds children named names under the node named parent.
func (b *TreeBuilder) Under(parent string, names ...string) *TreeBuilder {
	p := b.root.FindNode(parent)
	if p == nil {
		panic("ctrltest: no node " + parent)
	}
	for _, name := range names {
		_ = p.Add(view.NewNode(name))
	}
	return b
}

// WithDataContext sets the root's data context when the tree is built.
func (b *TreeBuilder) WithDataContext(dc any) *TreeBuilder {
	b.dc = dc
	return b
}

// Build returns the root.
func (b *TreeBuilder) Build() *view.Node {
	if b.dc != nil {
		_ = b.root.SetDataContext(b.dc)
	}
	return b.root
}

// Engine returns an engine with a private registry holding the given
// controller types, each keyed by the paired binding key.
//
//	e := ctrltest.Engine(t, controller.Config{}, map[string]any{
//	    "TodoList": (*TodoController)(nil),
//	})
func Engine(t testing.TB, cfg controller.Config, controllers map[string]any) *controller.Engine {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = controller.NewRegistry()
	}
	for key, ctrl := range controllers {
		cfg.Registry.Add(reflect.TypeOf(ctrl), controller.Key(key))
	}
	return controller.New(cfg)
}

// Bind enables e on root and loads it.
func Bind(t testing.TB, e *controller.Engine, root *view.Node) {
	t.Helper()
	if err := e.Enable(root); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := root.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

// ExpectController returns the single controller of type T attached to el.
func ExpectController[T any](t testing.TB, e *controller.Engine, el view.Element) T {
	t.Helper()
	var found []T
	for _, c := range e.Controllers(el) {
		if v, ok := c.(T); ok {
			found = append(found, v)
		}
	}
	if len(found) != 1 {
		var zero T
		t.Fatalf("found %d controllers of type %T on %q, want 1", len(found), zero, el.Name())
		return zero
	}
	return found[0]
}

// ErrorRecorder collects the unhandled errors of an engine.
type ErrorRecorder struct {
	mu      sync.Mutex
	errs    []*controller.UnhandledError
	handle  bool
	cancel  func()
	changed chan struct{}
}

// RecordErrors subscribes to e's unhandled errors until the test ends.
// When handle is true the errors are marked handled.
func RecordErrors(t testing.TB, e *controller.Engine, handle bool) *ErrorRecorder {
	r := &ErrorRecorder{handle: handle, changed: make(chan struct{}, 1)}
	r.cancel = e.OnUnhandledError(r.record)
	t.Cleanup(r.cancel)
	return r
}

func (r *ErrorRecorder) record(ue *controller.UnhandledError) {
	r.mu.Lock()
	r.errs = append(r.errs, ue)
	if r.handle {
		ue.Handled = true
	}
	r.mu.Unlock()
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Errors returns the errors recorded so far.
func (r *ErrorRecorder) Errors() []*controller.UnhandledError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*controller.UnhandledError(nil), r.errs...)
}

// Len returns the number of recorded errors.
func (r *ErrorRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

// Wait blocks until at least n errors were recorded or the timeout
// elapses, and returns the recorded errors.
func (r *ErrorRecorder) Wait(t testing.TB, n int, timeout time.Duration) []*controller.UnhandledError {
	t.Helper()
	deadline := time.After(timeout)
	for r.Len() < n {
		select {
		case <-r.changed:
		case <-deadline:
			t.Fatalf("recorded %d errors, want %d", r.Len(), n)
		}
	}
	return r.Errors()
}

// Eventually polls cond until it returns true or the timeout elapses.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
