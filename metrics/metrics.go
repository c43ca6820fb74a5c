// Package metrics exports YMODEM receiver activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drunlade/go-ymodem/ymodem"
)

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "ymodem").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: a fresh registry.
	Registry *prometheus.Registry
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Collector counts packets, rejects and transfers.
type Collector struct {
	registry *prometheus.Registry

	packets   *prometheus.CounterVec
	rejects   *prometheus.CounterVec
	bytes     prometheus.Counter
	transfers *prometheus.CounterVec
	duration  prometheus.Histogram
}

// New registers the collector's metrics.
func New(opts ...Option) *Collector {
	config := Config{Namespace: "ymodem"}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		registry: config.Registry,

		packets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "packets_total",
			Help:        "Packets processed by the receiver",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		rejects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "rejects_total",
			Help:        "Packets answered with NAK, by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "payload_bytes_total",
			Help:        "Payload bytes accepted, padding included",
			ConstLabels: config.ConstLabels,
		}),

		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "transfers_total",
			Help:        "Finished transfers by terminal status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "transfer_duration_seconds",
			Help:        "Duration of completed transfers",
			ConstLabels: config.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// Observe records one receiver event. Use it as Callbacks.OnEvent.
func (c *Collector) Observe(ev ymodem.Event) {
	switch ev.Type {
	case ymodem.EventFileStart:
		c.packets.WithLabelValues("header").Inc()
	case ymodem.EventPacketAccepted:
		c.packets.WithLabelValues("accepted").Inc()
		c.bytes.Add(float64(ev.Size))
	case ymodem.EventPacketRejected:
		c.packets.WithLabelValues("rejected").Inc()
		c.rejects.WithLabelValues(ev.Reason.String()).Inc()
	}
	if ev.Status.Terminal() {
		c.transfers.WithLabelValues(ev.Status.String()).Inc()
	}
}

// ObserveDuration records the duration of a completed transfer.
func (c *Collector) ObserveDuration(d time.Duration) {
	c.duration.Observe(d.Seconds())
}

// Callbacks returns callbacks feeding the collector.
func (c *Collector) Callbacks() *ymodem.Callbacks {
	return &ymodem.Callbacks{
		OnEvent: c.Observe,
		OnFileComplete: func(_ string, _ int64, d time.Duration) {
			c.ObserveDuration(d)
		},
	}
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
