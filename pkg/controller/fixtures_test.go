package controller

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// newTestEngine returns an engine backed by a private registry.
func newTestEngine(t *testing.T, cfg Config) (*Engine, *Registry) {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	return New(cfg), cfg.Registry
}

// newTree returns a root with the named children.
func newTree(children ...string) *view.Node {
	nodes := make([]*view.Node, len(children))
	for i, name := range children {
		nodes[i] = view.NewNode(name)
	}
	return view.NewNode("root", nodes...)
}

type AttachingTestDataContext struct {
	mu     sync.Mutex
	Loaded int
	Clicks int
}

func (m *AttachingTestDataContext) loaded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Loaded
}

type attachingController struct {
	Model *AttachingTestDataContext `ctrl:"datacontext"`
	Child *view.Node                `ctrl:"element:childElement"`
}

func (c *attachingController) ChildElement_Loaded() {
	c.Model.mu.Lock()
	c.Model.Loaded++
	c.Model.mu.Unlock()
}

func (c *attachingController) ChildElement_Click() {
	c.Model.Clicks++
}

type Service interface {
	Name() string
}

type service struct{ name string }

func (s *service) Name() string { return s.name }

type paramModel struct{ Title string }

type received struct {
	sender any
	args   view.EventArgs
	model  *paramModel
	button *view.Node
	svc    Service
	ctx    context.Context
}

type paramController struct {
	Model *paramModel `ctrl:"datacontext"`
	got   received
	calls int
}

func (c *paramController) Button_Click(sender any, e *view.RoutedArgs, model *paramModel, button *view.Node, svc Service) {
	c.calls++
	c.got = received{sender: sender, args: e, model: model, button: button, svc: svc}
}

type asyncParamController struct {
	Model *paramModel `ctrl:"datacontext"`

	mu  sync.Mutex
	got received
}

func (c *asyncParamController) Button_ClickAsync(ctx context.Context, e *view.RoutedArgs, model *paramModel, button *view.Node, svc Service) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = received{args: e, model: model, button: button, svc: svc, ctx: ctx}
	return nil
}

func (c *asyncParamController) received() received {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.got
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}
