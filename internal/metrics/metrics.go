// Package metrics exposes request and connection counters for the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samiralibabic/stepd/internal/protocol"
)

const namespace = "stepd"

// Method label values besides the protocol's own method names.
const (
	MethodInvalid = "invalid"
	MethodUnknown = "unknown"
)

type Metrics struct {
	requests    *prometheus.CounterVec
	connections prometheus.Gauge
	duration    *prometheus.HistogramVec
	gatherer    prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Answered requests by method and response code (0 for success).",
		}, []string{"method", "code"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Connections currently being served.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent dispatching a command.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"method"}),
		gatherer: reg,
	}
	reg.MustRegister(m.requests, m.connections, m.duration)
	return m
}

// ObserveRequest counts one answered request. Pass MethodInvalid for
// messages that did not parse.
func (m *Metrics) ObserveRequest(method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	method = methodLabel(method)
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// methodLabel keeps client-chosen method names out of the label set.
func methodLabel(method string) string {
	switch method {
	case protocol.MethodInitialize, protocol.MethodPause, protocol.MethodContinue,
		protocol.MethodNext, protocol.MethodDisconnect, MethodInvalid:
		return method
	case "":
		return MethodInvalid
	default:
		return MethodUnknown
	}
}
