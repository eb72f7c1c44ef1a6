// Package errors provides structured, actionable error messages for ctrlbind.
//
// Runtime dispatch failures inside the engine are reported with the typed
// errors of package controller. This package covers the outer surfaces:
// configuration loading, the command line and anything else a human reads
// in a terminal.
//
// # Error Categories
//
//   - runtime: binding and dispatch problems surfaced to a person
//   - config: ctrlbind.json / ctrlbind.yaml problems
//   - cli: command line usage problems
//
// # Error Codes
//
// Each error has a unique code (e.g., "C101") that maps to a short message,
// a longer explanation and a documentation URL.
//
// # Usage
//
//	err := errors.New("C102").
//	    WithLocation("ctrlbind.yaml", 4, 3).
//	    WithSuggestion("metrics.namespace must be a Prometheus identifier")
//
//	fmt.Println(err.Format())
package errors
