package controller

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/ctrlbind/pkg/eventargs"
	"github.com/vango-dev/ctrlbind/pkg/view"
)

var errBoom = errors.New("boom")

func paramFixture(t *testing.T, ctrl any) (*Engine, *view.Node, *paramModel, *service) {
	t.Helper()
	svc := &service{name: "svc"}
	e, _ := newTestEngine(t, Config{Dependencies: NewServices(svc)})
	root := newTree("button")
	model := &paramModel{Title: "m"}
	_ = root.SetDataContext(model)
	if err := e.Add(root, ctrl); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := root.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return e, root, model, svc
}

func TestDispatch_ResolvesParametersInPriorityOrder(t *testing.T) {
	ctrl := &paramController{}
	_, root, model, svc := paramFixture(t, ctrl)
	button := root.FindNode("button")

	args := view.NewRoutedArgs(view.EventClick)
	if err := button.Raise(view.EventClick, args); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if ctrl.calls != 1 {
		t.Fatalf("calls = %d, want 1", ctrl.calls)
	}
	got := ctrl.got
	if got.sender != any(button) {
		t.Errorf("sender = %v, want button", got.sender)
	}
	if got.args != view.EventArgs(args) {
		t.Errorf("args = %v, want raised args", got.args)
	}
	if got.model != model {
		t.Errorf("model = %v, want data context", got.model)
	}
	if got.button != button {
		t.Errorf("button = %v, want target element", got.button)
	}
	if got.svc != Service(svc) {
		t.Errorf("svc = %v, want dependency", got.svc)
	}
}

func TestDispatch_ScopeValuesTakePriority(t *testing.T) {
	ctrl := &paramController{}
	e, _, _, _ := paramFixture(t, ctrl)
	table, err := e.Handlers().Table(ctrl)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}

	override := &paramModel{Title: "override"}
	other := &service{name: "scoped"}
	err = eventargs.Do(func(s *eventargs.Scope) error {
		eventargs.Provide(s, override)
		eventargs.Provide(s, other)
		return table.GetBy("button").Raise(view.EventClick, nil, nil)
	})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if ctrl.got.model != override {
		t.Errorf("model = %v, want scope value", ctrl.got.model)
	}
	if ctrl.got.svc != Service(other) {
		t.Errorf("svc = %v, want scope value", ctrl.got.svc)
	}
	if ctrl.got.button == nil {
		t.Error("button should still resolve from the element tree")
	}
}

func TestDispatchAsync_ResolvesParametersInPriorityOrder(t *testing.T) {
	ctrl := &asyncParamController{}
	e, root, model, svc := paramFixture(t, ctrl)
	table, _ := e.Handlers().Table(ctrl)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	args := view.NewRoutedArgs(view.EventClick)
	if err := table.GetBy("button").RaiseAsync(ctx, view.EventClick, nil, args); err != nil {
		t.Fatalf("RaiseAsync: %v", err)
	}

	got := ctrl.received()
	if got.args != view.EventArgs(args) {
		t.Errorf("args = %v, want raised args", got.args)
	}
	if got.model != model {
		t.Errorf("model = %v, want data context", got.model)
	}
	if got.button != root.FindNode("button") {
		t.Errorf("button = %v, want target element", got.button)
	}
	if got.svc != Service(svc) {
		t.Errorf("svc = %v, want dependency", got.svc)
	}
	if got.ctx == nil || got.ctx.Value(ctxKey{}) != "v" {
		t.Error("dispatch context not passed through")
	}
}

type namer interface {
	Name() string
}

type namerController struct {
	got  namer
	el   view.Element
	node *view.Node
}

func (c *namerController) Button_Click(n namer, el view.Element, node *view.Node) {
	c.got, c.el, c.node = n, el, node
}

func TestDispatch_ElementDoesNotClaimDependencyInterfaces(t *testing.T) {
	dep := &service{name: "dep"}
	e, _ := newTestEngine(t, Config{Dependencies: NewServices(dep)})
	root := newTree("button")
	ctrl := &namerController{}
	_ = e.Add(root, ctrl)
	_ = root.Load()
	button := root.FindNode("button")

	// *view.Node has a Name method, so it satisfies namer too.
	if err := button.Raise(view.EventClick, nil); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if ctrl.got != namer(dep) {
		t.Errorf("namer = %v, want the dependency", ctrl.got)
	}
	if ctrl.el != view.Element(button) {
		t.Errorf("element = %v, want button", ctrl.el)
	}
	if ctrl.node != button {
		t.Errorf("node = %v, want button", ctrl.node)
	}
}

type explicitController struct {
	picked struct {
		model any
		el    view.Element
		svc   Service
	}
}

func (c *explicitController) Pick(model any, el view.Element, svc Service) {
	c.picked.model, c.picked.el, c.picked.svc = model, el, svc
}

func TestDispatch_ExplicitRoles(t *testing.T) {
	e, reg := newTestEngine(t, Config{Dependencies: NewServices(&service{name: "dep"})})
	reg.Add(typeOf[*explicitController](),
		Handle("", view.EventClick, "Pick",
			FromDataContext("detail"),
			FromElement("detail"),
			FromDependency()))

	root := newTree("detail")
	detailModel := &paramModel{Title: "detail"}
	_ = root.SetDataContext(&paramModel{Title: "root"})
	_ = root.FindNode("detail").SetDataContext(detailModel)

	ctrl := &explicitController{}
	_ = e.Add(root, ctrl)
	_ = root.Load()

	if err := root.Raise(view.EventClick, nil); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if ctrl.picked.model != any(detailModel) {
		t.Errorf("model = %v, want detail data context", ctrl.picked.model)
	}
	if ctrl.picked.el != view.Element(root.FindNode("detail")) {
		t.Errorf("el = %v, want detail element", ctrl.picked.el)
	}
	if ctrl.picked.svc == nil || ctrl.picked.svc.Name() != "dep" {
		t.Errorf("svc = %v, want dep", ctrl.picked.svc)
	}
}

type needyController struct{}

func (*needyController) Button_Click(svc Service) {}

func TestDispatch_ResolutionErrorAtInvocation(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("button")
	ctrl := &needyController{}
	if err := e.Add(root, ctrl); err != nil {
		t.Fatalf("Add should not fail on unresolvable parameters: %v", err)
	}
	_ = root.Load()

	var seen []error
	e.OnUnhandledError(func(ue *UnhandledError) { seen = append(seen, ue.Err) })

	err := root.FindNode("button").Raise(view.EventClick, nil)
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("Raise error = %v, want *ResolutionError", err)
	}
	if re.Type != reflect.TypeFor[Service]() || re.Index != 0 {
		t.Errorf("ResolutionError = %+v", re)
	}
	if !errors.Is(err, ErrNoDependencies) {
		t.Errorf("Raise error = %v, want ErrNoDependencies cause", err)
	}
	if len(seen) != 1 {
		t.Errorf("funnel saw %d errors, want 1", len(seen))
	}
}

func TestDispatch_ResolutionErrorCarriesContainerCause(t *testing.T) {
	e, _ := newTestEngine(t, Config{Dependencies: NewServices()})
	root := newTree("button")
	_ = e.Add(root, &needyController{})
	_ = root.Load()

	err := root.FindNode("button").Raise(view.EventClick, nil)
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("Raise error = %v, want *ResolutionError", err)
	}
	if !errors.Is(err, ErrDependencyNotFound) {
		t.Errorf("Raise error = %v, want ErrDependencyNotFound cause", err)
	}
	if errors.Is(err, ErrNoDependencies) {
		t.Errorf("Raise error = %v, should not report a missing container", err)
	}
}

type keyController struct {
	entered int
	other   int
}

func (c *keyController) Input_KeyDown(e *view.KeyArgs) {
	if view.KeyOf.Get(e) == view.KeyEnter {
		c.entered++
		return
	}
	c.other++
}

func TestScope_SubstitutedEnterKey(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("input")
	ctrl := &keyController{}
	_ = e.Add(root, ctrl)
	_ = root.Load()
	group := e.Handlers().Retrieve(ctrl).(*HandlerTable).GetBy("input")

	err := eventargs.Do(func(s *eventargs.Scope) error {
		eventargs.SubstituteValue(s, view.KeyOf, view.KeyEnter)
		return group.Raise(view.EventKeyDown, nil, nil)
	})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if ctrl.entered != 1 || ctrl.other != 0 {
		t.Errorf("entered = %d, other = %d, want 1, 0", ctrl.entered, ctrl.other)
	}

	// Without a scope the real accessor applies.
	if err := group.Raise(view.EventKeyDown, nil, nil); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if ctrl.other != 1 {
		t.Errorf("other = %d, want 1", ctrl.other)
	}

	// A native key press still works.
	_ = root.FindNode("input").Raise(view.EventKeyDown, view.NewKeyArgs(view.EventKeyDown, view.KeyEnter))
	if ctrl.entered != 2 {
		t.Errorf("entered = %d, want 2", ctrl.entered)
	}
}

func TestScope_NativeKeyRaiseWithoutArgs(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("input")
	ctrl := &keyController{}
	_ = e.Add(root, ctrl)
	_ = root.Load()
	input := root.FindNode("input")

	err := eventargs.Do(func(s *eventargs.Scope) error {
		eventargs.SubstituteValue(s, view.KeyOf, view.KeyEnter)
		return input.Raise(view.EventKeyDown, nil)
	})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if ctrl.entered != 1 || ctrl.other != 0 {
		t.Errorf("entered = %d, other = %d, want 1, 0", ctrl.entered, ctrl.other)
	}

	if err := input.Raise(view.EventKeyDown, nil); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if ctrl.other != 1 {
		t.Errorf("other = %d, want 1", ctrl.other)
	}
}

type asyncFailController struct {
	err error
}

func (c *asyncFailController) Save_ClickAsync() error {
	time.Sleep(time.Millisecond)
	return c.err
}

type chanFailController struct {
	err error
}

func (c *chanFailController) Save_Click() <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- c.err
		close(ch)
	}()
	return ch
}

func TestRaiseAsync_FunnelDecidesPropagation(t *testing.T) {
	ctrls := []struct {
		name string
		new  func() any
	}{
		{"async suffix", func() any { return &asyncFailController{err: errBoom} }},
		{"channel result", func() any { return &chanFailController{err: errBoom} }},
	}
	for _, c := range ctrls {
		for _, handled := range []bool{false, true} {
			name := c.name + "/unhandled"
			if handled {
				name = c.name + "/handled"
			}
			t.Run(name, func(t *testing.T) {
				e, _ := newTestEngine(t, Config{})
				root := newTree("save")
				ctrl := c.new()
				_ = e.Add(root, ctrl)
				_ = root.Load()

				var seen []*UnhandledError
				e.OnUnhandledError(func(ue *UnhandledError) {
					seen = append(seen, ue)
					ue.Handled = handled
				})

				table, _ := e.Handlers().Table(ctrl)
				err := table.GetBy("save").RaiseAsync(context.Background(), view.EventClick, nil, nil)
				if handled && err != nil {
					t.Errorf("RaiseAsync = %v, want nil", err)
				}
				if !handled && !errors.Is(err, errBoom) {
					t.Errorf("RaiseAsync = %v, want errBoom", err)
				}
				if len(seen) != 1 {
					t.Fatalf("funnel saw %d errors, want 1", len(seen))
				}
				if seen[0].Controller != ctrl || seen[0].Event != view.EventClick || seen[0].Element != "save" {
					t.Errorf("UnhandledError = %+v", seen[0])
				}
			})
		}
	}
}

func TestNativeAsync_DoesNotBlockAndReachesFunnel(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("save")
	ctrl := &asyncFailController{err: errBoom}
	_ = e.Add(root, ctrl)
	_ = root.Load()

	got := make(chan error, 1)
	e.OnUnhandledError(func(ue *UnhandledError) { got <- ue.Err })

	if err := root.FindNode("save").Raise(view.EventClick, nil); err != nil {
		t.Fatalf("native Raise = %v, want nil", err)
	}
	select {
	case err := <-got:
		if !errors.Is(err, errBoom) {
			t.Errorf("funnel error = %v, want errBoom", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async error never reached the funnel")
	}
}

type slotAsyncController struct {
	Status *view.Node `ctrl:"element:status"`
	seen   string
}

func (c *slotAsyncController) Save_ClickAsync() error {
	c.seen = c.Status.Name()
	return errBoom
}

func TestNativeAsync_BodyRunsBeforeRaiseReturns(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("save", "status")
	ctrl := &slotAsyncController{}
	_ = e.Add(root, ctrl)
	_ = root.Load()

	got := make(chan error, 1)
	e.OnUnhandledError(func(ue *UnhandledError) { got <- ue.Err })

	if err := root.FindNode("save").Raise(view.EventClick, nil); err != nil {
		t.Fatalf("native Raise = %v, want nil", err)
	}
	if ctrl.seen != "status" {
		t.Fatalf("seen = %q, want status", ctrl.seen)
	}

	// Unloading right away must not race with the handler body.
	if err := root.Unload(); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if ctrl.Status != nil {
		t.Error("Status not cleared on unload")
	}
	select {
	case err := <-got:
		if !errors.Is(err, errBoom) {
			t.Errorf("funnel error = %v, want errBoom", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async error never reached the funnel")
	}
}

type asyncPanicController struct{}

func (*asyncPanicController) Save_ClickAsync() error { panic("async kaboom") }

func TestNativeAsync_PanicReachesFunnelOnly(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("save")
	_ = e.Add(root, &asyncPanicController{})
	_ = root.Load()

	got := make(chan error, 1)
	e.OnUnhandledError(func(ue *UnhandledError) { got <- ue.Err })

	if err := root.FindNode("save").Raise(view.EventClick, nil); err != nil {
		t.Fatalf("native Raise = %v, want nil", err)
	}
	select {
	case err := <-got:
		var he *HandlerError
		if !errors.As(err, &he) || he.Panic != "async kaboom" {
			t.Errorf("funnel error = %v, want *HandlerError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("panic never reached the funnel")
	}
}

type panicController struct{}

func (*panicController) Button_Click() { panic("kaboom") }

func TestDispatch_PanicBecomesHandlerError(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("button")
	_ = e.Add(root, &panicController{})
	_ = root.Load()

	err := root.FindNode("button").Raise(view.EventClick, nil)
	var he *HandlerError
	if !errors.As(err, &he) {
		t.Fatalf("Raise = %v, want *HandlerError", err)
	}
	if he.Panic != "kaboom" || he.Member != "Button_Click" || len(he.Stack) == 0 {
		t.Errorf("HandlerError = %+v", he)
	}

	cancel := e.OnUnhandledError(func(ue *UnhandledError) { ue.Handled = true })
	if err := root.FindNode("button").Raise(view.EventClick, nil); err != nil {
		t.Errorf("handled Raise = %v, want nil", err)
	}
	cancel()
	cancel()
	if err := root.FindNode("button").Raise(view.EventClick, nil); err == nil {
		t.Error("cancelled subscriber still marks errors handled")
	}
}

type clickCounter struct{ clicks int }

func (c *clickCounter) Button_Click() { c.clicks++ }

func TestHandlerExtension_AttachIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("button")
	_ = root.Load()
	ctrl := &clickCounter{}

	x := e.Handlers()
	for i := 0; i < 3; i++ {
		if err := x.Attach(ctrl, root); err != nil {
			t.Fatalf("Attach: %v", err)
		}
	}
	button := root.FindNode("button")
	_ = button.Raise(view.EventClick, nil)
	if ctrl.clicks != 1 {
		t.Errorf("clicks = %d, want 1", ctrl.clicks)
	}

	for i := 0; i < 2; i++ {
		if err := x.Detach(ctrl, root); err != nil {
			t.Fatalf("Detach: %v", err)
		}
	}
	_ = button.Raise(view.EventClick, nil)
	if ctrl.clicks != 1 {
		t.Errorf("clicks after detach = %d, want 1", ctrl.clicks)
	}
}

type routedController struct {
	seen []string
}

func (c *routedController) Inner_Click(e *view.RoutedArgs) {
	c.seen = append(c.seen, "inner")
	e.Handled = true
}

func (c *routedController) Outer(e *view.RoutedArgs) {
	c.seen = append(c.seen, "outer")
}

func (c *routedController) OuterAlways(e *view.RoutedArgs) {
	c.seen = append(c.seen, "always")
}

func TestRoutedEvents_HandledEventsToo(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*routedController](),
		Handle("", view.EventClick, "Outer"),
		HandleRouted("", view.EventClick, "OuterAlways", true))

	inner := view.NewNode("inner")
	root := view.NewNode("root", inner)
	ctrl := &routedController{}
	_ = e.Add(root, ctrl)
	_ = root.Load()

	_ = inner.Raise(view.EventClick, nil)
	want := []string{"inner", "always"}
	if !reflect.DeepEqual(ctrl.seen, want) {
		t.Errorf("seen = %v, want %v", ctrl.seen, want)
	}
}

type delegateController struct {
	OnSave func(e view.EventArgs) error `ctrl:"handler:save.Click"`
	Nil    func()                       `ctrl:"handler:save.Click"`
}

func TestFuncFieldHandlers(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("save")
	calls := 0
	ctrl := &delegateController{OnSave: func(view.EventArgs) error {
		calls++
		return nil
	}}
	_ = e.Add(root, ctrl)
	_ = root.Load()

	if err := root.FindNode("save").Raise(view.EventClick, nil); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestMissingElementsAndEventsAreSkipped(t *testing.T) {
	type ctrl struct{ clickCounter }
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*ctrl](), Handle("button", "Hover", "Button_Click"))

	root := newTree("label")
	c := &ctrl{}
	if err := e.Add(root, c); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := root.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	table, _ := e.Handlers().Table(c)
	for _, h := range table.Handlers() {
		if h.Target() != nil {
			t.Errorf("%s bound to %v", h.Slot().Member, h.Target())
		}
	}
}

func TestObservers_WrapSyncAndAsyncDispatch(t *testing.T) {
	var (
		mu     sync.Mutex
		begins []string
		ends   []string
	)
	obs := ObserverFuncs{
		Begin: func(ctx context.Context, d *Dispatch) context.Context {
			mu.Lock()
			begins = append(begins, d.Member)
			mu.Unlock()
			return ctx
		},
		End: func(_ context.Context, d *Dispatch, err error) {
			mu.Lock()
			ends = append(ends, d.Member)
			mu.Unlock()
		},
	}
	e, _ := newTestEngine(t, Config{Observers: []Observer{obs}})
	root := newTree("save", "button")
	asyncCtrl := &asyncFailController{}
	syncCtrl := &clickCounter{}
	_ = e.Add(root, asyncCtrl)
	_ = e.Add(root, syncCtrl)
	_ = root.Load()

	c := e.Collection(root)
	if err := c.RaiseAsync(context.Background(), "save", view.EventClick, nil, nil); err != nil {
		t.Fatalf("RaiseAsync save: %v", err)
	}
	if err := c.RaiseAsync(context.Background(), "button", view.EventClick, nil, nil); err != nil {
		t.Fatalf("RaiseAsync button: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"Save_ClickAsync", "Button_Click"}
	if !reflect.DeepEqual(begins, want) || !reflect.DeepEqual(ends, want) {
		t.Errorf("begins = %v, ends = %v, want %v", begins, ends, want)
	}
}
