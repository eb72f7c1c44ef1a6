package middleware

import (
	"context"
	"reflect"
	"testing"

	"github.com/vango-dev/ctrlbind/pkg/controller"
	"github.com/vango-dev/ctrlbind/pkg/view"
)

type counterModel struct{ Count int }

type counterController struct {
	Model  *counterModel `ctrl:"datacontext"`
	fail   error
	gotCtx context.Context
}

func (c *counterController) Button_Click(ctx context.Context) error {
	c.gotCtx = ctx
	if c.fail != nil {
		return c.fail
	}
	c.Model.Count++
	return nil
}

// bind enables cfg's engine on a loaded tree with a single button and
// returns the tree and the attached controller.
func bind(t *testing.T, cfg controller.Config) (*view.Node, *counterController) {
	t.Helper()
	cfg.Registry = controller.NewRegistry()
	cfg.Registry.Add(reflect.TypeOf(&counterController{}), controller.Key("counterModel"))
	e := controller.New(cfg)

	root := view.NewNode("root", view.NewNode("button"))
	if err := root.SetDataContext(&counterModel{}); err != nil {
		t.Fatalf("SetDataContext: %v", err)
	}
	if err := e.Enable(root); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := root.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctrls := e.Controllers(root)
	if len(ctrls) != 1 {
		t.Fatalf("len(Controllers) = %d, want 1", len(ctrls))
	}
	return root, ctrls[0].(*counterController)
}

func click(t *testing.T, root *view.Node) error {
	t.Helper()
	return root.FindNode("button").Raise(view.EventClick, nil)
}
