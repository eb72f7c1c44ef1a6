// Package view defines the contract a host UI toolkit's element must meet
// for controllers to be bound to it, and ships Node, a headless reference
// element tree that satisfies it.
//
// # Element contract
//
// An Element exposes attached-object slots keyed by opaque tokens, named
// descendant lookup, an inherited data context with a change notification,
// the Loading/Loaded/Unloaded lifecycle, and named native event sources.
// Event sources are either plain (Subscribe) or routed (SubscribeRouted),
// where routed events bubble to ancestors and carry a Handled flag.
//
// # Node
//
// Node is used by tests, by the remote host, and by hosts without a real
// toolkit:
//
//	root := view.NewNode("todoView",
//	    view.NewNode("input"),
//	    view.NewNode("addButton"),
//	)
//	root.SetDataContext(&TodoList{})
//	_ = root.Load()
//	_ = root.FindNode("addButton").Raise(view.EventClick, view.NewRoutedArgs(view.EventClick))
package view
