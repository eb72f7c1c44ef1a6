// Package controller binds controller objects to view elements.
//
// A controller is a plain struct that reacts to the events of an element
// tree. The engine picks controllers for an element by matching their
// binding key against the type of the element's data context, or against
// a key set on the element explicitly:
//
//	type TodoController struct {
//	    Todo  *Todo       `ctrl:"datacontext"`
//	    Input *view.Node  `ctrl:"element"`
//	}
//
//	func (c *TodoController) Input_KeyDown(e *view.KeyArgs, store Store) error {
//	    if view.KeyOf.Get(e) != view.KeyEnter {
//	        return nil
//	    }
//	    return store.Add(c.Todo, c.Input.Text())
//	}
//
//	controller.Register[*TodoController](controller.Key("Todo"))
//
//	engine := controller.New(controller.Config{Dependencies: services})
//	err := engine.Enable(root)
//
// Handlers are discovered from methods named Element_Event, from Handle
// registration options and from func fields tagged
// `ctrl:"handler:element.Event"`. Their parameters are filled in from the
// event sender and event data, from values provided to an open eventargs
// scope, then from the data context, the element tree and the dependency
// container.
//
// Controllers are attached when their element loads and detached when it
// unloads; detaching unsubscribes every handler and clears the injected
// data context and elements. Handler errors are published to
// OnUnhandledError subscribers before they reach the code that raised
// the event.
package controller
