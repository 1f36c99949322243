package storage

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for storage spans.
const defaultTracerName = "memval/storage"

// InstrumentConfig configures Instrument.
type InstrumentConfig struct {
	// Backend labels spans and metrics (default: "store").
	Backend string

	// TracerName is the name of the tracer (default: "memval/storage").
	TracerName string

	// IncludeKeys adds the slot key to span attributes.
	// Keys may contain sensitive information - disabled by default.
	IncludeKeys bool

	// Namespace is the metrics namespace (default: "memval").
	Namespace string

	// Buckets are the histogram buckets for operation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use. Nil disables metrics.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	tracer trace.Tracer
}

// InstrumentOption configures Instrument.
type InstrumentOption func(*InstrumentConfig)

// WithBackendName sets the backend label.
func WithBackendName(name string) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.Backend = name
	}
}

// WithTracerName sets the tracer name.
func WithTracerName(name string) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.TracerName = name
	}
}

// WithIncludeKeys enables slot keys in span attributes.
func WithIncludeKeys(include bool) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.IncludeKeys = include
	}
}

// WithMetricsRegistry sets the Prometheus registry. Nil disables metrics.
func WithMetricsRegistry(registry prometheus.Registerer) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.Registry = registry
	}
}

// WithMetricsNamespace sets the metrics namespace.
func WithMetricsNamespace(namespace string) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.Namespace = namespace
	}
}

func defaultInstrumentConfig() InstrumentConfig {
	return InstrumentConfig{
		Backend:    "store",
		TracerName: defaultTracerName,
		Namespace:  "memval",
		Buckets:    prometheus.DefBuckets,
		Registry:   prometheus.DefaultRegisterer,
	}
}

var _ Store = (*InstrumentedStore)(nil)

// InstrumentedStore traces and times every operation of an inner Store.
type InstrumentedStore struct {
	inner    Store
	config   InstrumentConfig
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// Instrument wraps store with OpenTelemetry spans and Prometheus metrics.
//
// Metrics collected:
//   - memval_storage_operation_duration_seconds{backend,op}
//   - memval_storage_operation_errors_total{backend,op}
//
// Spans use the global tracer provider; configure it with
// otel.SetTracerProvider before opening stores.
func Instrument(store Store, opts ...InstrumentOption) *InstrumentedStore {
	config := defaultInstrumentConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	s := &InstrumentedStore{inner: store, config: config}
	if config.Registry != nil {
		s.duration = registerCollector(config.Registry, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Storage operation duration in seconds",
			Buckets:   config.Buckets,
		}, []string{"backend", "op"}))
		s.failures = registerCollector(config.Registry, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "storage",
			Name:      "operation_errors_total",
			Help:      "Total number of failed storage operations",
		}, []string{"backend", "op"}))
	}
	return s
}

// InstrumentSecure is Instrument for a SecureStore; the result is still a SecureStore.
func InstrumentSecure(store SecureStore, opts ...InstrumentOption) SecureStore {
	return &instrumentedSecureStore{InstrumentedStore: Instrument(store, opts...), sealed: store}
}

type instrumentedSecureStore struct {
	*InstrumentedStore
	sealed SecureStore
}

func (s *instrumentedSecureStore) Sealed() bool {
	return s.sealed.Sealed()
}

// registerCollector registers c, reusing an identical collector that is
// already registered (several instrumented stores share one registry).
func registerCollector[C prometheus.Collector](registry prometheus.Registerer, c C) C {
	if err := registry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Unwrap returns the inner store.
func (s *InstrumentedStore) Unwrap() Store {
	return s.inner
}

// Get implements Store.
func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span, done := s.start(ctx, "get", key)
	data, err := s.inner.Get(ctx, key)
	span.SetAttributes(
		attribute.Bool("memval.storage.found", data != nil),
		attribute.Int("memval.storage.bytes", len(data)),
	)
	done(err)
	return data, err
}

// Set implements Store.
func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	ctx, span, done := s.start(ctx, "set", key)
	span.SetAttributes(attribute.Int("memval.storage.bytes", len(value)))
	err := s.inner.Set(ctx, key, value)
	done(err)
	return err
}

// Delete implements Store.
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	ctx, _, done := s.start(ctx, "delete", key)
	err := s.inner.Delete(ctx, key)
	done(err)
	return err
}

// Close closes the inner store.
func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

func (s *InstrumentedStore) start(ctx context.Context, op, key string) (context.Context, trace.Span, func(error)) {
	attrs := []attribute.KeyValue{
		attribute.String("memval.storage.backend", s.config.Backend),
	}
	if s.config.IncludeKeys {
		attrs = append(attrs, attribute.String("memval.storage.key", key))
	}

	ctx, span := s.config.tracer.Start(ctx, "memval.storage."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	start := time.Now()

	return ctx, span, func(err error) {
		if s.duration != nil {
			s.duration.WithLabelValues(s.config.Backend, op).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			if s.failures != nil {
				s.failures.WithLabelValues(s.config.Backend, op).Inc()
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
