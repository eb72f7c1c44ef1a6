package controller

import (
	"context"
	"time"
)

// Dispatch describes one handler invocation.
type Dispatch struct {
	// Controller is the controller instance.
	Controller any

	// ControllerType is the display name of the controller type.
	ControllerType string

	// Element is the handler's target element name.
	Element string

	// Event is the event name.
	Event string

	// Member is the handler method or field name.
	Member string

	// Async is true when the handler completes through a channel.
	Async bool

	// Start is when the dispatch began.
	Start time.Time
}

// Observer is notified around every handler invocation. EndDispatch runs
// after an asynchronous handler completes, possibly on another goroutine.
type Observer interface {
	BeginDispatch(ctx context.Context, d *Dispatch) context.Context
	EndDispatch(ctx context.Context, d *Dispatch, err error)
}

// ObserverFuncs adapts a pair of functions into an Observer. Either may
// be nil.
type ObserverFuncs struct {
	Begin func(ctx context.Context, d *Dispatch) context.Context
	End   func(ctx context.Context, d *Dispatch, err error)
}

// BeginDispatch calls Begin.
func (o ObserverFuncs) BeginDispatch(ctx context.Context, d *Dispatch) context.Context {
	if o.Begin == nil {
		return ctx
	}
	return o.Begin(ctx, d)
}

// EndDispatch calls End.
func (o ObserverFuncs) EndDispatch(ctx context.Context, d *Dispatch, err error) {
	if o.End != nil {
		o.End(ctx, d, err)
	}
}
