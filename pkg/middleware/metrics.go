package middleware

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/ctrlbind/pkg/controller"
	"github.com/vango-dev/ctrlbind/pkg/view"
)

// MetricsConfig configures the Prometheus metrics observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "ctrlbind").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "ctrlbind",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for controller dispatch.
type metrics struct {
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchErrors   *prometheus.CounterVec
	attached         *prometheus.GaugeVec
	attachTotal      prometheus.Counter
	detachTotal      prometheus.Counter
	remoteSessions   prometheus.Gauge
	frameErrors      *prometheus.CounterVec
}

// globalMetrics is created on the first call to Prometheus.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_total",
			Help:        "Total number of controller handler invocations",
			ConstLabels: config.ConstLabels,
		}, []string{"controller", "event", "status"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Handler invocation duration in seconds, including asynchronous completion",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"controller", "event"}),

		dispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_errors_total",
			Help:        "Total number of handler errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"controller", "error_type"}),

		attached: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "attached_controllers",
			Help:        "Number of controllers currently attached to loaded elements",
			ConstLabels: config.ConstLabels,
		}, []string{"controller"}),

		attachTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "attach_total",
			Help:        "Total number of controller attachments",
			ConstLabels: config.ConstLabels,
		}),

		detachTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "detach_total",
			Help:        "Total number of controller detachments",
			ConstLabels: config.ConstLabels,
		}),

		remoteSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "remote_sessions",
			Help:        "Number of open remote view sessions",
			ConstLabels: config.ConstLabels,
		}),

		frameErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frame_errors_total",
			Help:        "Total remote frame errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// Metrics is a controller.Observer and controller.Extension that records
// Prometheus metrics. Add it to both Config.Observers and
// Config.Extensions to get dispatch and attachment metrics.
type Metrics struct {
	m *metrics
}

// Prometheus returns the metrics observer.
//
// Metrics collected:
//   - ctrlbind_dispatch_total: handler invocations by controller, event and status
//   - ctrlbind_dispatch_duration_seconds: invocation duration
//   - ctrlbind_dispatch_errors_total: handler errors by controller and error type
//   - ctrlbind_attached_controllers: controllers attached to loaded elements
//   - ctrlbind_attach_total, ctrlbind_detach_total: lifecycle transitions
//   - ctrlbind_remote_sessions: open remote sessions (RecordSessionOpen/Close)
//   - ctrlbind_frame_errors_total: remote frame errors (RecordFrameError)
//
// Example:
//
//	m := middleware.Prometheus(middleware.WithNamespace("myapp"))
//	engine := controller.New(controller.Config{
//	    Observers:  []controller.Observer{m},
//	    Extensions: []controller.Extension{m},
//	})
//
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return &Metrics{m: m}
}

// BeginDispatch implements controller.Observer.
func (x *Metrics) BeginDispatch(ctx context.Context, _ *controller.Dispatch) context.Context {
	return ctx
}

// EndDispatch implements controller.Observer.
func (x *Metrics) EndDispatch(_ context.Context, d *controller.Dispatch, err error) {
	x.m.dispatchDuration.WithLabelValues(d.ControllerType, d.Event).Observe(time.Since(d.Start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
		x.m.dispatchErrors.WithLabelValues(d.ControllerType, categorizeError(err)).Inc()
	}
	x.m.dispatchTotal.WithLabelValues(d.ControllerType, d.Event, status).Inc()
}

// Attach implements controller.Extension.
func (x *Metrics) Attach(ctrl any, _ view.Element) error {
	x.m.attached.WithLabelValues(controllerName(ctrl)).Inc()
	x.m.attachTotal.Inc()
	return nil
}

// Detach implements controller.Extension.
func (x *Metrics) Detach(ctrl any, _ view.Element) error {
	x.m.attached.WithLabelValues(controllerName(ctrl)).Dec()
	x.m.detachTotal.Inc()
	return nil
}

// Retrieve implements controller.Extension. Metrics keep no
// per-controller state.
func (x *Metrics) Retrieve(any) any {
	return nil
}

// categorizeError returns a category for the error type.
// This prevents high-cardinality labels from error messages.
func categorizeError(err error) string {
	var (
		re *controller.ResolutionError
		he *controller.HandlerError
	)
	switch {
	case errors.As(err, &re):
		return "resolution"
	case errors.As(err, &he):
		return "panic"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "unauthorized"):
		return "unauthorized"
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid"):
		return "validation"
	default:
		return "internal"
	}
}

// =============================================================================
// Metrics Recording Functions
// =============================================================================

// RecordSessionOpen records a new remote session.
func RecordSessionOpen() {
	if m := current(); m != nil {
		m.remoteSessions.Inc()
	}
}

// RecordSessionClose records a closed remote session.
func RecordSessionClose() {
	if m := current(); m != nil {
		m.remoteSessions.Dec()
	}
}

// RecordFrameError records a remote frame that could not be applied.
func RecordFrameError(errorType string) {
	if m := current(); m != nil {
		m.frameErrors.WithLabelValues(errorType).Inc()
	}
}

func current() *metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}

func controllerName(ctrl any) string {
	return controller.DisplayName(ctrl)
}

// =============================================================================
// Metrics Collector
// =============================================================================

// Collector exposes the metrics for use in custom registrations and tests.
type Collector struct {
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchErrors   *prometheus.CounterVec
	attached         *prometheus.GaugeVec
	remoteSessions   prometheus.Gauge
	frameErrors      *prometheus.CounterVec
}

// GetMetrics returns the global metrics collector.
// Returns nil if Prometheus has not been called.
func GetMetrics() *Collector {
	m := current()
	if m == nil {
		return nil
	}
	return &Collector{
		dispatchTotal:    m.dispatchTotal,
		dispatchDuration: m.dispatchDuration,
		dispatchErrors:   m.dispatchErrors,
		attached:         m.attached,
		remoteSessions:   m.remoteSessions,
		frameErrors:      m.frameErrors,
	}
}
