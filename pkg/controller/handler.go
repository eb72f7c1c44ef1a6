package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// Handler is one handler slot bound to a controller instance.
type Handler struct {
	table       *HandlerTable
	slot        *HandlerSlot
	target      view.Element
	unsubscribe func()
}

// Slot returns the handler's descriptor entry.
func (h *Handler) Slot() *HandlerSlot {
	return h.slot
}

// Target returns the element the handler is subscribed on, or nil while
// it is not registered.
func (h *Handler) Target() view.Element {
	h.table.mu.Lock()
	defer h.table.mu.Unlock()
	return h.target
}

// native is the function subscribed on the target element's event.
func (h *Handler) native(sender any, args view.EventArgs) error {
	return h.raise(context.Background(), sender, args)
}

// raise invokes the handler from a synchronous caller. Asynchronous
// handlers are left running; their outcome only reaches the error funnel
// and the log.
func (h *Handler) raise(ctx context.Context, sender any, args view.EventArgs) error {
	c := h.begin(ctx, sender, args)
	if c.done == nil {
		return c.finish(c.err)
	}
	go c.detached()
	return nil
}

// raiseAsync invokes the handler and waits for it to complete.
func (h *Handler) raiseAsync(ctx context.Context, sender any, args view.EventArgs) error {
	return h.begin(ctx, sender, args).wait()
}

// call is one handler invocation in flight.
type call struct {
	h    *Handler
	ctx  context.Context
	d    *Dispatch
	err  error
	done <-chan error
}

// begin resolves the parameters and starts the handler. Parameter
// resolution and the handler body run on the calling goroutine; only a
// returned channel is waited on later.
func (h *Handler) begin(ctx context.Context, sender any, args view.EventArgs) *call {
	t := h.table
	e := t.engine
	d := &Dispatch{
		Controller:     t.ctrl,
		ControllerType: t.desc.Name(),
		Element:        h.slot.Element,
		Event:          h.slot.Event,
		Member:         h.slot.Member,
		Async:          h.slot.Async,
		Start:          time.Now(),
	}
	for _, o := range e.observers {
		ctx = o.BeginDispatch(ctx, d)
	}
	c := &call{h: h, ctx: ctx, d: d}

	in, err := h.arguments(ctx, sender, args)
	if err != nil {
		c.err = err
		return c
	}
	fn, ok := h.slot.fn(reflect.ValueOf(t.ctrl))
	if !ok {
		return c
	}

	out, err := h.invoke(fn, in)
	switch {
	case err != nil:
		c.err = err
	case h.slot.result == resultError:
		c.err, _ = out[0].Interface().(error)
	case h.slot.result == resultChan && !out[0].IsNil():
		c.done = errorChan(out[0])
	}
	if h.slot.Async && c.done == nil {
		c.done = settled(c.err)
		c.err = nil
	}
	return c
}

// settled returns a closed channel carrying err.
func settled(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

// wait blocks until the handler completes or the context is done.
func (c *call) wait() error {
	if c.done == nil {
		return c.finish(c.err)
	}
	select {
	case err := <-c.done:
		return c.finish(err)
	case <-c.ctx.Done():
		go c.detached()
		return c.ctx.Err()
	}
}

// detached waits for an asynchronous handler nobody awaits.
func (c *call) detached() {
	if err := c.finish(<-c.done); err != nil {
		c.h.table.engine.logger.Error("unhandled controller error",
			slog.String("controller", c.d.ControllerType),
			slog.String("element", c.d.Element),
			slog.String("event", c.d.Event),
			slog.String("member", c.d.Member),
			slog.Any("error", err))
	}
}

// finish notifies the observers and routes err through the error funnel.
// It returns err unless a funnel subscriber marked it handled.
func (c *call) finish(err error) error {
	e := c.h.table.engine
	for i := len(e.observers) - 1; i >= 0; i-- {
		e.observers[i].EndDispatch(c.ctx, c.d, err)
	}
	if err == nil {
		return nil
	}
	ue := &UnhandledError{
		Err:        err,
		Controller: c.d.Controller,
		Element:    c.d.Element,
		Event:      c.d.Event,
	}
	if e.funnel.publish(ue) {
		return nil
	}
	return err
}

// invoke calls fn, converting a panic into a *HandlerError.
func (h *Handler) invoke(fn reflect.Value, in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{
				Controller: h.table.desc.Name(),
				Member:     h.slot.Member,
				Event:      h.slot.Event,
				Panic:      r,
				Stack:      debug.Stack(),
			}
		}
	}()
	return fn.Call(in), nil
}

// arguments builds the argument list from the parameter plan.
func (h *Handler) arguments(ctx context.Context, sender any, args view.EventArgs) ([]reflect.Value, error) {
	t := h.table
	el, target := t.attachedElements(h)
	if sender == nil && target != nil {
		sender = target
	}

	in := make([]reflect.Value, len(h.slot.params))
	var req *ParamRequest
	for i, p := range h.slot.params {
		var (
			v     reflect.Value
			ok    bool
			cause error
		)
		switch p.kind {
		case paramContext:
			v, ok = reflect.ValueOf(&ctx).Elem(), true
		case paramSender:
			v, ok = positional(sender, p.typ)
		case paramArgs:
			if args == nil {
				v, ok = reflect.Zero(p.typ), true
			} else {
				v, ok = positional(args, p.typ)
			}
		default:
			if req == nil {
				req = &ParamRequest{
					Controller:  t.ctrl,
					Element:     el,
					Target:      target,
					DataContext: t.currentDataContext(),
					Context:     ctx,
				}
			}
			req.Type, req.Role, req.Index, req.err = p.typ, p.role, i, nil
			v, ok = chain(t.engine.resolvers, req)
			cause = req.err
		}
		if !ok {
			return nil, &ResolutionError{
				Controller: t.desc.Name(),
				Member:     h.slot.Member,
				Index:      i,
				Type:       p.typ,
				Role:       p.role,
				Err:        cause,
			}
		}
		in[i] = v
	}
	return in, nil
}

func positional(v any, t reflect.Type) (reflect.Value, bool) {
	if v == nil {
		return reflect.Zero(t), true
	}
	return assignable(v, t)
}

// errorChan converts a returned channel value to a receive-only channel.
func errorChan(v reflect.Value) <-chan error {
	switch ch := v.Interface().(type) {
	case chan error:
		return ch
	case <-chan error:
		return ch
	}
	out := make(chan error, 1)
	go func() {
		defer close(out)
		x, ok := v.Recv()
		if ok && !x.IsNil() {
			out <- x.Interface().(error)
		}
	}()
	return out
}

// HandlerGroup is the set of handlers targeting one element.
type HandlerGroup []*Handler

// Raise invokes every handler in the group bound to event, in order.
// A nil sender is replaced by the handler's target element. Asynchronous
// handlers are started and not awaited.
func (g HandlerGroup) Raise(event string, sender any, args view.EventArgs) error {
	var errs []error
	for _, h := range g {
		if h.slot.Event != event {
			continue
		}
		if err := h.raise(context.Background(), sender, args); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RaiseAsync invokes every handler in the group bound to event and waits
// until all of them completed. Handlers are started in order on the
// calling goroutine.
func (g HandlerGroup) RaiseAsync(ctx context.Context, event string, sender any, args view.EventArgs) error {
	var (
		calls []*call
		errs  []error
	)
	for _, h := range g {
		if h.slot.Event != event {
			continue
		}
		c := h.begin(ctx, sender, args)
		if c.done == nil {
			if err := c.finish(c.err); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		calls = append(calls, c)
	}
	for _, c := range calls {
		if err := c.wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of handlers in the group.
func (g HandlerGroup) Len() int {
	return len(g)
}

// String lists the handler members, for diagnostics.
func (g HandlerGroup) String() string {
	s := "["
	for i, h := range g {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s:%s", h.slot.Member, h.slot.Event)
	}
	return s + "]"
}
