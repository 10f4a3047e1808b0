// Package metrics exports operation and forwarding counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

const namespace = "auctioneer"

// Metrics implements service.Recorder and forward.Observer on its own
// registry.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	opLatency  *prometheus.HistogramVec
	forwards   *prometheus.CounterVec
	fwdLatency *prometheus.HistogramVec
	events     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Auctioneer operations by outcome.",
		}, []string{"op", "result"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_seconds",
			Help:      "Auctioneer operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwards_total",
			Help:      "Instructions submitted to the base engine by outcome.",
		}, []string{"op", "result"}),
		fwdLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forward_seconds",
			Help:      "Base engine round trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Published auction events.",
		}, []string{"type"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations, m.opLatency, m.forwards, m.fwdLatency, m.events,
	)
	return m
}

func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(op, Result(err)).Inc()
	m.opLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveForward(op string, err error, elapsed time.Duration) {
	m.forwards.WithLabelValues(op, Result(err)).Inc()
	m.fwdLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveEvent counts one published event.
func (m *Metrics) ObserveEvent(t domain.EventType) {
	m.events.WithLabelValues(string(t)).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Result collapses err into a bounded label value.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if e, ok := domain.AsError(err); ok {
		return e.Name
	}
	if _, ok := domain.AsEngineError(err); ok {
		return "engine_rejected"
	}
	return "error"
}
