// Package metrics exposes Prometheus counters for the webhook and the
// outbound dispatcher.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all metrics of the service. Each collector owns its
// registry, so tests can create as many as they like. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	EventsReceived *prometheus.CounterVec
	EventsSkipped  *prometheus.CounterVec

	Deliveries       *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	QueueDepth       prometheus.Gauge
}

// NewCollector creates and registers the metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
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
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Inbound messaging events by kind",
			},
			[]string{"kind"},
		),
		EventsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_skipped_total",
				Help:      "Inbound messaging events not answered, by reason",
			},
			[]string{"reason"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Outbound platform calls by task type and outcome",
			},
			[]string{"task", "status"},
		),
		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delivery_duration_seconds",
				Help:      "Outbound platform call duration including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dispatch_queue_depth",
				Help:      "Tasks waiting for a dispatch worker",
			},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.EventsReceived,
		c.EventsSkipped,
		c.Deliveries,
		c.DeliveryDuration,
		c.QueueDepth,
	)
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) EventReceived(kind string) {
	if c == nil {
		return
	}
	c.EventsReceived.WithLabelValues(kind).Inc()
}

func (c *Collector) EventSkipped(reason string) {
	if c == nil {
		return
	}
	c.EventsSkipped.WithLabelValues(reason).Inc()
}

func (c *Collector) DeliveryFinished(task, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.Deliveries.WithLabelValues(task, status).Inc()
	c.DeliveryDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.QueueDepth.Set(float64(n))
}
