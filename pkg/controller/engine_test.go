package controller

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

func TestEnable_AttachesControllerWithDataContext(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	model := &AttachingTestDataContext{}
	if err := root.SetDataContext(model); err != nil {
		t.Fatalf("SetDataContext: %v", err)
	}
	if err := e.Enable(root); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	ctrls := e.Controllers(root)
	if len(ctrls) != 1 {
		t.Fatalf("len(Controllers) = %d, want 1", len(ctrls))
	}
	c, ok := ctrls[0].(*attachingController)
	if !ok {
		t.Fatalf("controller type = %T, want *attachingController", ctrls[0])
	}
	if c.Model != model {
		t.Error("data context not injected")
	}
	if c.Child != nil {
		t.Error("element slot should stay empty until the element loads")
	}
}

func TestLoad_ChildLoadedFiresOncePerLoad(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	model := &AttachingTestDataContext{}
	_ = root.SetDataContext(model)
	if err := e.Enable(root); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := root.Load(); err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
		if got := model.loaded(); got != i {
			t.Fatalf("after load #%d Loaded = %d, want %d", i, got, i)
		}
		if err := root.Unload(); err != nil {
			t.Fatalf("Unload #%d: %v", i, err)
		}
	}
}

func TestEnable_AlreadyLoadedReplaysReady(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	model := &AttachingTestDataContext{}
	_ = root.SetDataContext(model)
	if err := root.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Enable(root); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if got := model.loaded(); got != 1 {
		t.Errorf("Loaded = %d, want 1", got)
	}

	c := e.Controllers(root)[0].(*attachingController)
	if c.Child == nil || c.Child.Name() != "childElement" {
		t.Errorf("Child = %v, want childElement", c.Child)
	}
}

type readyController struct {
	ready int
}

func (c *readyController) Ready() { c.ready++ }

func TestReadyReplay_RootHandlerFiresOnce(t *testing.T) {
	tests := []struct {
		name       string
		loadFirst  bool
		wantFires  int
		reloadWant int
	}{
		{"enable then load", false, 1, 2},
		{"load then enable", true, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, reg := newTestEngine(t, Config{})
			reg.Add(typeOf[*readyController](), Handle("", view.EventLoaded, "Ready"))

			root := newTree()
			ctrl := &readyController{}
			if tt.loadFirst {
				_ = root.Load()
			}
			if err := e.Add(root, ctrl); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if !tt.loadFirst {
				_ = root.Load()
			}
			if ctrl.ready != tt.wantFires {
				t.Errorf("ready = %d, want %d", ctrl.ready, tt.wantFires)
			}

			_ = root.Unload()
			_ = root.Load()
			if ctrl.ready != tt.reloadWant {
				t.Errorf("after reload ready = %d, want %d", ctrl.ready, tt.reloadWant)
			}
		})
	}
}

func TestUnload_ClearsReferencesOnEveryController(t *testing.T) {
	type second struct {
		attachingController
	}
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))
	reg.Add(typeOf[*second](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	_ = root.SetDataContext(&AttachingTestDataContext{})
	_ = e.Enable(root)
	_ = root.Load()

	ctrls := e.Controllers(root)
	if len(ctrls) != 2 {
		t.Fatalf("len(Controllers) = %d, want 2", len(ctrls))
	}
	slots := func(c any) (*AttachingTestDataContext, *view.Node) {
		switch c := c.(type) {
		case *attachingController:
			return c.Model, c.Child
		case *second:
			return c.Model, c.Child
		}
		t.Fatalf("unexpected controller %T", c)
		return nil, nil
	}
	for _, c := range ctrls {
		if m, el := slots(c); m == nil || el == nil {
			t.Fatalf("%T not injected before unload", c)
		}
	}

	if err := root.Unload(); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	for _, c := range ctrls {
		if m, el := slots(c); m != nil || el != nil {
			t.Errorf("%T still holds references after unload", c)
		}
		if e.Handlers().Retrieve(c).(*HandlerTable).Registered() {
			t.Errorf("%T handlers still registered", c)
		}
	}
	if n := len(e.Controllers(root)); n != 0 {
		t.Errorf("len(Controllers) after unload = %d, want 0", n)
	}
}

func TestUnload_ChildEventsNoLongerReachController(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	model := &AttachingTestDataContext{}
	_ = root.SetDataContext(model)
	_ = e.Enable(root)
	_ = root.Load()

	child := root.FindNode("childElement")
	other := 0
	child.Event(view.EventClick).Subscribe(func(any, view.EventArgs) error {
		other++
		return nil
	})

	_ = child.Raise(view.EventClick, nil)
	if model.Clicks != 1 {
		t.Fatalf("Clicks = %d, want 1", model.Clicks)
	}

	_ = root.Unload()
	_ = child.Raise(view.EventClick, nil)
	if model.Clicks != 1 {
		t.Errorf("Clicks after unload = %d, want 1", model.Clicks)
	}
	if other != 2 {
		t.Errorf("other subscriber calls = %d, want 2", other)
	}
}

func TestDisableReenableWithoutLoad_NoStaleRegistrations(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	model := &AttachingTestDataContext{}
	_ = root.SetDataContext(model)

	for i := 0; i < 3; i++ {
		if err := e.Enable(root); err != nil {
			t.Fatalf("Enable: %v", err)
		}
		if err := e.Disable(root); err != nil {
			t.Fatalf("Disable: %v", err)
		}
	}
	_ = e.Enable(root)
	_ = e.Enable(root)
	_ = root.Load()

	if n := len(e.Controllers(root)); n != 1 {
		t.Fatalf("len(Controllers) = %d, want 1", n)
	}
	_ = root.FindNode("childElement").Raise(view.EventClick, nil)
	if model.Clicks != 1 {
		t.Errorf("Clicks = %d, want 1", model.Clicks)
	}
	if model.loaded() != 1 {
		t.Errorf("Loaded = %d, want 1", model.loaded())
	}
}

func TestDisable_DropsTablesOfUnattachedControllers(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	_ = root.SetDataContext(&AttachingTestDataContext{})

	for i := 0; i < 3; i++ {
		if err := e.Enable(root); err != nil {
			t.Fatalf("Enable: %v", err)
		}
		manual := &paramController{}
		if err := e.Add(root, manual); err != nil {
			t.Fatalf("Add: %v", err)
		}
		// Never loaded, so nothing is attached; both calls create tables.
		if err := e.Collection(root).RaiseAsync(context.Background(), "childElement", view.EventClick, nil, nil); err != nil {
			t.Fatalf("RaiseAsync: %v", err)
		}
		if _, err := e.Handlers().Table(manual); err != nil {
			t.Fatalf("Table: %v", err)
		}
		if err := e.Disable(root); err != nil {
			t.Fatalf("Disable: %v", err)
		}
		if n := e.Handlers().tableCount(); n != 0 {
			t.Fatalf("round %d: %d handler tables left after Disable, want 0", i, n)
		}
	}
}

func TestBindingKey_IsPerEngineAndClearedOnDisable(t *testing.T) {
	a, _ := newTestEngine(t, Config{})
	b, _ := newTestEngine(t, Config{})
	root := newTree()

	if err := a.SetKey(root, "Dashboard"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if k, ok := b.Key(root); ok {
		t.Errorf("other engine sees key %q", k)
	}
	if err := a.Disable(root); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if k, ok := a.Key(root); ok {
		t.Errorf("key %q survived Disable", k)
	}
}

func TestDisable_DetachesAndStopsFollowingLifecycle(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	model := &AttachingTestDataContext{}
	_ = root.SetDataContext(model)
	_ = e.Enable(root)
	_ = root.Load()
	c := e.Controllers(root)[0].(*attachingController)

	if err := e.Disable(root); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if c.Model != nil || c.Child != nil {
		t.Error("references not cleared by Disable")
	}
	if e.IsEnabled(root) {
		t.Error("IsEnabled after Disable")
	}

	_ = root.Unload()
	_ = root.Load()
	if n := len(e.Controllers(root)); n != 0 {
		t.Errorf("len(Controllers) after reload = %d, want 0", n)
	}
	if model.loaded() != 1 {
		t.Errorf("Loaded = %d, want 1", model.loaded())
	}
}

func TestEnable_DefersUntilDataContext(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	_ = root.Load()
	if err := e.Enable(root); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if c := e.Collection(root); c == nil || !c.Pending() {
		t.Fatal("collection should be pending")
	}
	if n := len(e.Controllers(root)); n != 0 {
		t.Fatalf("len(Controllers) = %d, want 0", n)
	}

	model := &AttachingTestDataContext{}
	if err := root.SetDataContext(model); err != nil {
		t.Fatalf("SetDataContext: %v", err)
	}
	ctrls := e.Controllers(root)
	if len(ctrls) != 1 {
		t.Fatalf("len(Controllers) = %d, want 1", len(ctrls))
	}
	if ctrls[0].(*attachingController).Model != model {
		t.Error("data context not injected")
	}
	if model.loaded() != 1 {
		t.Errorf("Loaded = %d, want 1 (ready replay)", model.loaded())
	}
}

func TestDataContextChange_ReinjectsWithoutReresolving(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	_ = root.SetDataContext(&AttachingTestDataContext{})
	_ = e.Enable(root)
	_ = root.Load()
	before := e.Controllers(root)[0].(*attachingController)

	next := &AttachingTestDataContext{}
	_ = root.SetDataContext(next)
	after := e.Controllers(root)
	if len(after) != 1 || after[0] != any(before) {
		t.Fatal("controller set changed on data context change")
	}
	if before.Model != next {
		t.Error("new data context not injected")
	}

	// A model nobody matches is still injected when assignable.
	_ = root.SetDataContext("unrelated")
	if before.Model != nil {
		t.Error("unassignable data context should clear the slot")
	}
	if len(e.Controllers(root)) != 1 {
		t.Error("controller detached on unmatched data context")
	}
}

type dashboardController struct {
	Root   *view.Node `ctrl:"element:root"`
	loaded int
}

func (*dashboardController) BindingKey() string { return "Dashboard" }

func (c *dashboardController) Root_Loaded() { c.loaded++ }

func TestSetKey_AttachesWithoutDataContext(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	reg.Add(typeOf[*dashboardController]())

	root := newTree()
	if err := e.SetKey(root, "Dashboard"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if k, ok := e.Key(root); !ok || k != "Dashboard" {
		t.Errorf("Key = %q, %v", k, ok)
	}
	_ = root.Load()

	ctrls := e.Controllers(root)
	if len(ctrls) != 1 {
		t.Fatalf("len(Controllers) = %d, want 1", len(ctrls))
	}
	c := ctrls[0].(*dashboardController)
	if c.Root != root {
		t.Error("root element slot not injected")
	}
	if c.loaded != 1 {
		t.Errorf("loaded = %d, want 1", c.loaded)
	}
}

func TestAdd_ManualControllerSurvivesUnload(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree("childElement")
	model := &AttachingTestDataContext{}
	_ = root.SetDataContext(model)

	ctrl := &attachingController{}
	if err := e.Add(root, ctrl); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := e.Add(root, ctrl); err != nil {
		t.Fatalf("second Add: %v", err)
	}
	_ = root.Load()
	if model.loaded() != 1 {
		t.Fatalf("Loaded = %d, want 1", model.loaded())
	}

	_ = root.Unload()
	if ctrl.Model != nil {
		t.Error("Model not cleared on unload")
	}
	_ = root.Load()
	if model.loaded() != 2 {
		t.Errorf("Loaded = %d, want 2", model.loaded())
	}
	if ctrls := e.Controllers(root); len(ctrls) != 1 || ctrls[0] != any(ctrl) {
		t.Errorf("Controllers = %v, want [ctrl]", ctrls)
	}
}

func TestAdd_RejectsNonControllers(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	root := newTree()
	if err := e.Add(root, nil); err != ErrNilController {
		t.Errorf("Add(nil) = %v, want ErrNilController", err)
	}
	if err := e.Add(root, 42); err == nil {
		t.Error("Add(42) should fail")
	}
}

func TestEngines_DoNotShareElementState(t *testing.T) {
	e1, reg := newTestEngine(t, Config{})
	e2 := New(Config{Registry: reg})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	_ = root.SetDataContext(&AttachingTestDataContext{})
	_ = e1.Enable(root)

	if e2.IsEnabled(root) {
		t.Error("enable leaked to second engine")
	}
	if e2.Collection(root) != nil {
		t.Error("collection leaked to second engine")
	}
}

func TestDefaultEngine(t *testing.T) {
	t.Cleanup(ResetDefault)

	d := Default()
	if d == nil || Default() != d {
		t.Fatal("Default should be stable")
	}
	custom := New(Config{})
	SetDefault(custom)
	if Default() != custom {
		t.Error("SetDefault not applied")
	}
	ResetDefault()
	if Default() == custom {
		t.Error("ResetDefault not applied")
	}
}

type failingFactory struct{}

func (failingFactory) Create(t reflect.Type) (any, error) {
	return nil, errBoom
}

func TestEnable_FactoryErrorReported(t *testing.T) {
	e, reg := newTestEngine(t, Config{Factory: failingFactory{}})
	reg.Add(typeOf[*attachingController](), Key("AttachingTestDataContext"))

	root := newTree("childElement")
	_ = root.SetDataContext(&AttachingTestDataContext{})
	err := e.Enable(root)
	var ce *CreateError
	if !errors.As(err, &ce) {
		t.Fatalf("Enable error = %v, want *CreateError", err)
	}
	if !errors.Is(err, errBoom) {
		t.Error("CreateError should wrap the factory error")
	}
}
