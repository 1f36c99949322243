package memval

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures container metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "memval").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures container metrics.
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

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "memval",
		Registry:  prometheus.DefaultRegisterer,
	}
}

type metrics struct {
	emissions        prometheus.Counter
	deduplicated     prometheus.Counter
	listenerFailures prometheus.Counter
	hydrations       *prometheus.CounterVec
	writebacks       *prometheus.CounterVec
}

var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		emissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "emissions_total",
			Help:        "Total number of accepted emissions across all containers",
			ConstLabels: config.ConstLabels,
		}),

		deduplicated: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "emissions_deduplicated_total",
			Help:        "Total number of emissions dropped because the value did not change",
			ConstLabels: config.ConstLabels,
		}),

		listenerFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "listener_failures_total",
			Help:        "Total number of listener invocations that returned an error or panicked",
			ConstLabels: config.ConstLabels,
		}),

		hydrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hydrations_total",
			Help:        "Total number of settled hydrations by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		writebacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writebacks_total",
			Help:        "Total number of storage write-backs by operation and status",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "status"}),
	}
}

// EnableMetrics registers container metrics. Only the first call registers
// collectors; later calls are no-ops.
//
// Metrics collected:
//   - memval_emissions_total
//   - memval_emissions_deduplicated_total
//   - memval_listener_failures_total
//   - memval_hydrations_total{result="stored|initial|empty|error"}
//   - memval_writebacks_total{op="set|delete",status="ok|error"}
func EnableMetrics(opts ...MetricsOption) {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
}

func currentMetrics() *metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}

func recordEmission() {
	if m := currentMetrics(); m != nil {
		m.emissions.Inc()
	}
}

func recordDeduplicated() {
	if m := currentMetrics(); m != nil {
		m.deduplicated.Inc()
	}
}

func recordListenerFailure() {
	if m := currentMetrics(); m != nil {
		m.listenerFailures.Inc()
	}
}

func recordHydration(result string) {
	if m := currentMetrics(); m != nil {
		m.hydrations.WithLabelValues(result).Inc()
	}
}

func recordWriteback(op string, err error) {
	if m := currentMetrics(); m != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.writebacks.WithLabelValues(op, status).Inc()
	}
}
