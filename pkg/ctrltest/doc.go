// Package ctrltest provides testing helpers for controllers.
//
// # Quick Start
//
//	func TestTodo_EnterAddsItem(t *testing.T) {
//	    model := &TodoList{}
//	    root := ctrltest.NewTree("root").Child("input").WithDataContext(model).Build()
//	    e := ctrltest.Engine(t, controller.Config{}, map[string]any{
//	        "TodoList": (*TodoController)(nil),
//	    })
//	    ctrltest.Bind(t, e, root)
//
//	    root.FindNode("input").SetText("milk")
//	    _ = root.FindNode("input").Raise(view.EventKeyDown, view.NewKeyArgs(view.EventKeyDown, view.KeyEnter))
//	}
//
// # Asynchronous Handlers
//
// RecordErrors subscribes to the engine's unhandled errors; Wait blocks
// until asynchronous handlers report:
//
//	rec := ctrltest.RecordErrors(t, e, true)
//	_ = root.FindNode("save").Raise(view.EventClick, nil)
//	errs := rec.Wait(t, 1, time.Second)
package ctrltest
