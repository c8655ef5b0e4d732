// Package metrics exposes Prometheus collectors for the ppctl harness.
// The codec package itself is metrics-free; the serve relays and the
// health-check emitter increment these around their Parse/Serialize calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus collectors ppctl registers.
type Metrics struct {
	parseTotal     *prometheus.CounterVec
	parseBytes     prometheus.Histogram
	serializeTotal *prometheus.CounterVec
	relayConns     *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry, so tests and
// repeated constructions never collide on the global default registry.
func New() *Metrics {
	m := &Metrics{
		parseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pp_parse_total",
				Help: "Total number of PROXY protocol parse attempts",
			},
			[]string{"version", "result"},
		),
		parseBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pp_parse_bytes",
				Help:    "Size in bytes of successfully parsed PROXY protocol headers",
				Buckets: []float64{16, 32, 64, 128, 256, 512, 1024},
			},
		),
		serializeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pp_serialize_total",
				Help: "Total number of PROXY protocol headers serialized",
			},
			[]string{"version", "result"},
		),
		relayConns: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pp_relay_active_connections",
				Help: "Currently active relayed connections",
			},
			[]string{"listen"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.parseTotal, m.parseBytes, m.serializeTotal, m.relayConns)
	return m
}

// ObserveParse records one parse attempt. version is "1", "2", or "none"
// when a malformed header left the version undetermined; result is "ok"
// or "error".
func (m *Metrics) ObserveParse(version, result string, bytes int) {
	m.parseTotal.WithLabelValues(version, result).Inc()
	if result == "ok" && bytes > 0 {
		m.parseBytes.Observe(float64(bytes))
	}
}

// ObserveSerialize records one serialize attempt.
func (m *Metrics) ObserveSerialize(version, result string) {
	m.serializeTotal.WithLabelValues(version, result).Inc()
}

// RelayConnOpened / RelayConnClosed track the active-connection gauge for
// one relay listener.
func (m *Metrics) RelayConnOpened(listen string) {
	m.relayConns.WithLabelValues(listen).Inc()
}

func (m *Metrics) RelayConnClosed(listen string) {
	m.relayConns.WithLabelValues(listen).Dec()
}

// Handler returns the HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
