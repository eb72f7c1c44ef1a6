package middleware

import (
	"context"

	"github.com/vango-dev/ctrlbind/pkg/controller"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for ctrlbind engines.
const defaultTracerName = "ctrlbind"

// OTelConfig configures the OpenTelemetry observer.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "ctrlbind").
	TracerName string

	// IncludeElement includes the target element name in traces.
	// Enabled by default.
	IncludeElement bool

	// Filter determines which dispatches to trace.
	// Return true to trace the dispatch, false to skip.
	// If nil, all dispatches are traced.
	Filter func(d *controller.Dispatch) bool

	// AttributeExtractor extracts custom attributes from the dispatch.
	// Called for each traced dispatch.
	AttributeExtractor func(d *controller.Dispatch) []attribute.KeyValue

	// TracerProvider supplies the tracer. If nil, the global provider is
	// used.
	TracerProvider trace.TracerProvider

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry observer.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the provider the tracer is taken from.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeElement enables/disables including the element in traces.
func WithIncludeElement(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeElement = include
	}
}

// WithEventFilter sets a filter function for dispatches.
func WithEventFilter(filter func(d *controller.Dispatch) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(d *controller.Dispatch) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// Tracer is a controller.Observer that wraps each handler invocation in
// an OpenTelemetry span.
type Tracer struct {
	config OTelConfig
}

// OpenTelemetry returns an observer that traces every handler invocation.
//
// Each span is named "ctrlbind.<Event>" and includes:
//   - ctrlbind.controller: controller type
//   - ctrlbind.member: handler method or field
//   - ctrlbind.event: event name
//   - ctrlbind.element: target element (if enabled)
//   - ctrlbind.async: whether the handler completes asynchronously
//
// The span is stored in the context passed to handlers that take a
// context.Context, so downstream calls inherit the trace.
//
// Example:
//
//	engine := controller.New(controller.Config{
//	    Observers: []controller.Observer{
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	    },
//	})
func OpenTelemetry(opts ...OTelOption) *Tracer {
	config := OTelConfig{
		TracerName:     defaultTracerName,
		IncludeElement: true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	config.tracer = config.TracerProvider.Tracer(config.TracerName)
	return &Tracer{config: config}
}

// BeginDispatch implements controller.Observer.
func (t *Tracer) BeginDispatch(ctx context.Context, d *controller.Dispatch) context.Context {
	if t.config.Filter != nil && !t.config.Filter(d) {
		return ctx
	}

	attrs := []attribute.KeyValue{
		attribute.String("ctrlbind.controller", d.ControllerType),
		attribute.String("ctrlbind.member", d.Member),
		attribute.String("ctrlbind.event", d.Event),
		attribute.Bool("ctrlbind.async", d.Async),
	}
	if t.config.IncludeElement && d.Element != "" {
		attrs = append(attrs, attribute.String("ctrlbind.element", d.Element))
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(d)...)
	}

	ctx, span := t.config.tracer.Start(ctx, "ctrlbind."+d.Event,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return context.WithValue(ctx, spanContextKey{}, &tracedDispatch{d: d, span: span})
}

// EndDispatch implements controller.Observer.
func (t *Tracer) EndDispatch(ctx context.Context, d *controller.Dispatch, err error) {
	td, ok := ctx.Value(spanContextKey{}).(*tracedDispatch)
	if !ok || td.d != d {
		return
	}
	if err != nil {
		td.span.RecordError(err)
		td.span.SetStatus(codes.Error, err.Error())
		td.span.SetAttributes(attribute.String("ctrlbind.error_type", categorizeError(err)))
	} else {
		td.span.SetStatus(codes.Ok, "")
	}
	td.span.End()
}

// spanContextKey is the context key for storing the span.
type spanContextKey struct{}

type tracedDispatch struct {
	d    *controller.Dispatch
	span trace.Span
}

// SpanFromContext returns the span of the handler invocation running with
// ctx. It returns a no-op span when the invocation is not traced.
func SpanFromContext(ctx context.Context) trace.Span {
	if td, ok := ctx.Value(spanContextKey{}).(*tracedDispatch); ok {
		return td.span
	}
	return trace.SpanFromContext(ctx)
}
