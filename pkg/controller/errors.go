package controller

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors.
var (
	// ErrNotDescribable is returned for types that cannot be controllers.
	ErrNotDescribable = errors.New("controller: type is not a pointer to a struct")

	// ErrNoDependencies is returned when a dependency parameter is resolved
	// and no dependency container is configured.
	ErrNoDependencies = errors.New("controller: no dependency container configured")

	// ErrDependencyNotFound is returned by Services when no value matches.
	ErrDependencyNotFound = errors.New("controller: dependency not found")

	// ErrNilController is returned when a nil controller is attached.
	ErrNilController = errors.New("controller: nil controller")
)

// ResolutionError reports a handler parameter that no resolver could
// satisfy. It is raised when the handler is invoked, never when it is
// registered.
type ResolutionError struct {
	Controller string
	Member     string
	Index      int
	Type       reflect.Type
	Role       Role
	Err        error
}

// Error returns the error message.
func (e *ResolutionError) Error() string {
	role := e.Role.Kind.String()
	if e.Role.Name != "" {
		role += " " + e.Role.Name
	}
	msg := fmt.Sprintf("controller: %s.%s: cannot resolve parameter %d (%s, %s)",
		e.Controller, e.Member, e.Index, e.Type, role)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Code returns the diagnostic code.
func (e *ResolutionError) Code() string { return "C001" }

// EventNotFoundError reports a handler whose target element has no event
// of the declared name. The handler is skipped.
type EventNotFoundError struct {
	Controller string
	Element    string
	Event      string
}

// Error returns the error message.
func (e *EventNotFoundError) Error() string {
	return fmt.Sprintf("controller: %s: element %q has no event %q", e.Controller, e.Element, e.Event)
}

// Code returns the diagnostic code.
func (e *EventNotFoundError) Code() string { return "C002" }

// ElementNotFoundError reports a handler or element slot whose element is
// not in the tree.
type ElementNotFoundError struct {
	Controller string
	Element    string
}

// Error returns the error message.
func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("controller: %s: element %q not found", e.Controller, e.Element)
}

// Code returns the diagnostic code.
func (e *ElementNotFoundError) Code() string { return "C003" }

// CreateError reports a controller the factory could not create.
type CreateError struct {
	Type reflect.Type
	Err  error
}

// Error returns the error message.
func (e *CreateError) Error() string {
	return fmt.Sprintf("controller: create %s: %v", typeName(e.Type), e.Err)
}

// Unwrap returns the underlying error.
func (e *CreateError) Unwrap() error {
	return e.Err
}

// Code returns the diagnostic code.
func (e *CreateError) Code() string { return "C004" }

// HandlerError wraps a panic that occurred in a handler.
type HandlerError struct {
	Controller string
	Member     string
	Event      string
	Panic      any
	Stack      []byte
}

// Error returns the error message.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("controller: handler panic in %s.%s, event %s: %v",
		e.Controller, e.Member, e.Event, e.Panic)
}

// Unwrap returns the panic value when it is an error.
func (e *HandlerError) Unwrap() error {
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}

// Code returns the diagnostic code.
func (e *HandlerError) Code() string { return "C005" }
