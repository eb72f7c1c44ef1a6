package controller

import "github.com/vango-dev/ctrlbind/pkg/view"

// Extension adds behavior to every controller attached by an engine.
// Attach runs when the controller's element is loaded and Detach when it
// is unloaded. Retrieve exposes the extension's per-controller state.
type Extension interface {
	Attach(ctrl any, el view.Element) error
	Detach(ctrl any, el view.Element) error
	Retrieve(ctrl any) any
}

// ExtensionFuncs adapts functions into an Extension. Nil fields do
// nothing.
type ExtensionFuncs struct {
	OnAttach   func(ctrl any, el view.Element) error
	OnDetach   func(ctrl any, el view.Element) error
	OnRetrieve func(ctrl any) any
}

// Attach calls OnAttach.
func (x ExtensionFuncs) Attach(ctrl any, el view.Element) error {
	if x.OnAttach == nil {
		return nil
	}
	return x.OnAttach(ctrl, el)
}

// Detach calls OnDetach.
func (x ExtensionFuncs) Detach(ctrl any, el view.Element) error {
	if x.OnDetach == nil {
		return nil
	}
	return x.OnDetach(ctrl, el)
}

// Retrieve calls OnRetrieve.
func (x ExtensionFuncs) Retrieve(ctrl any) any {
	if x.OnRetrieve == nil {
		return nil
	}
	return x.OnRetrieve(ctrl)
}
