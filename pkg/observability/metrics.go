package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pkgerrors "gentree/pkg/errors"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Tree metrics
	Mutations      *prometheus.CounterVec
	TreePersons    prometheus.Gauge
	TreePositioned prometheus.Gauge
	Commands       *prometheus.CounterVec
	CommandLatency *prometheus.HistogramVec

	// Persistence metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	Saves           *prometheus.CounterVec
	SaveDuration    *prometheus.HistogramVec
	SavesCoalesced  *prometheus.CounterVec
	SavesDropped    *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry. Every collector
// is independent, so tests can create as many as they need.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tree_mutations_total",
				Help:      "Tree mutations by operation and whether the state changed",
			},
			[]string{"operation", "changed"},
		),
		TreePersons: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tree_persons",
				Help:      "Number of persons in the tree",
			},
		),
		TreePositioned: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tree_positioned_nodes",
				Help:      "Number of persons with a stored canvas position",
			},
		),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Commands dispatched through the bus",
			},
			[]string{"command", "status"},
		),
		CommandLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Command handling duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"command"},
		),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Key-value store operations",
			},
			[]string{"backend", "operation", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Key-value store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
		Saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saves_total",
				Help:      "Background save attempts by key and outcome",
			},
			[]string{"key", "status"},
		),
		SaveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "save_duration_seconds",
				Help:      "Background save duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"key"},
		),
		SavesCoalesced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saves_coalesced_total",
				Help:      "Saves replaced by a newer value before being written",
			},
			[]string{"key"},
		),
		SavesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saves_dropped_total",
				Help:      "Saves abandoned after exhausting retries",
			},
			[]string{"key"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Mutations,
		c.TreePersons,
		c.TreePositioned,
		c.Commands,
		c.CommandLatency,
		c.StoreOperations,
		c.StoreDuration,
		c.Saves,
		c.SaveDuration,
		c.SavesCoalesced,
		c.SavesDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the Prometheus registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordHTTP records one served request
func (c *Collector) RecordHTTP(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMutation counts a tree mutation
func (c *Collector) RecordMutation(operation string, changed bool) {
	c.Mutations.WithLabelValues(operation, strconv.FormatBool(changed)).Inc()
}

// SetTreeSize updates the tree size gauges
func (c *Collector) SetTreeSize(persons, positioned int) {
	c.TreePersons.Set(float64(persons))
	c.TreePositioned.Set(float64(positioned))
}

// RecordCommand counts a dispatched command
func (c *Collector) RecordCommand(commandType string, duration time.Duration, err error) {
	c.Commands.WithLabelValues(commandType, status(err)).Inc()
	c.CommandLatency.WithLabelValues(commandType).Observe(duration.Seconds())
}

// RecordStoreOperation counts a store call
func (c *Collector) RecordStoreOperation(backend, operation string, duration time.Duration, err error) {
	c.StoreOperations.WithLabelValues(backend, operation, status(err)).Inc()
	c.StoreDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordSave counts a background save attempt
func (c *Collector) RecordSave(key string, duration time.Duration, err error) {
	c.Saves.WithLabelValues(key, status(err)).Inc()
	c.SaveDuration.WithLabelValues(key).Observe(duration.Seconds())
}

// RecordSaveCoalesced counts a superseded save
func (c *Collector) RecordSaveCoalesced(key string) {
	c.SavesCoalesced.WithLabelValues(key).Inc()
}

// RecordSaveDropped counts an abandoned save
func (c *Collector) RecordSaveDropped(key string) {
	c.SavesDropped.WithLabelValues(key).Inc()
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case pkgerrors.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
