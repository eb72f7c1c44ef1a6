// Package middleware provides observability for controller engines.
//
// This package includes:
//   - an OpenTelemetry observer that traces handler invocations
//   - a Prometheus observer and extension that records dispatch and
//     attachment metrics
//
// # OpenTelemetry
//
// The tracer wraps every handler invocation in a span. Asynchronous
// handlers end their span when they complete, not when they return.
//
//	engine := controller.New(controller.Config{
//	    Observers: []controller.Observer{
//	        middleware.OpenTelemetry(
//	            middleware.WithTracerName("my-app"),
//	            middleware.WithEventFilter(func(d *controller.Dispatch) bool {
//	                return d.Event != "MouseMove"
//	            }),
//	        ),
//	    },
//	})
//
// Handlers that take a context.Context receive the span's context:
//
//	func (c *SaveController) SaveButton_Click(ctx context.Context) error {
//	    middleware.SpanFromContext(ctx).AddEvent("saving")
//	    return c.store.Save(ctx, c.Model)
//	}
//
// # Prometheus Metrics
//
// Metrics are registered once per process. Register the same value as an
// observer and an extension:
//
//	m := middleware.Prometheus()
//	engine := controller.New(controller.Config{
//	    Observers:  []controller.Observer{m},
//	    Extensions: []controller.Extension{m},
//	})
//
//	http.Handle("/metrics", promhttp.Handler())
package middleware
