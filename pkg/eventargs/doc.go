// Package eventargs lets callers override values derived from native event
// arguments for the duration of one dispatch.
//
// Event-argument types expose their derived values through a Property.
// Outside a Scope, Property.Get calls the real accessor. Inside a Scope,
// a substitution registered with Substitute takes its place:
//
//	scope := eventargs.Open()
//	defer scope.Close()
//	eventargs.Substitute(scope, view.KeyOf, func(*view.KeyArgs) view.Key { return view.KeyEnter })
//	node.Raise("KeyDown", &view.KeyArgs{})
//
// Only one Scope may be open at a time across the process. Open blocks until
// the previous holder calls Close, with no timeout. Always pair Open with a
// deferred Close; a scope that is never closed blocks every later Open.
//
// A Scope can also carry ad hoc values for handler parameters (Provide).
// The controller package consults Current when it resolves parameters, so a
// provided value wins over every built-in resolver for that dispatch.
package eventargs
