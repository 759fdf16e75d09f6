package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "live_recorder"

// Metrics holds Prometheus counters and gauges for the recorder. All methods
// are safe to call on a nil *Metrics so tests and one-shot CLI runs can skip
// metric recording entirely.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         *prometheus.CounterVec
	activeSessions        prometheus.Gauge
	recordingsTotal       *prometheus.CounterVec
	bytesWrittenTotal     prometheus.Counter
	livenessProbesTotal   *prometheus.CounterVec
	postprocessErrorTotal *prometheus.CounterVec
}

// New creates and registers Prometheus metrics for the recorder.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of status API requests by status class",
		}, []string{"class"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of accounts currently held in the active set",
		}),
		recordingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "Recording attempts by outcome",
		}, []string{"outcome"}),
		bytesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Media bytes accepted into recording files",
		}),
		livenessProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_probes_total",
			Help:      "Fleet liveness probes by result",
		}, []string{"result"}),
		postprocessErrorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postprocess_errors_total",
			Help:      "Failed finalization steps by stage",
		}, []string{"stage"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.activeSessions,
		m.recordingsTotal,
		m.bytesWrittenTotal,
		m.livenessProbesTotal,
		m.postprocessErrorTotal,
	)

	return m
}

// IncRequests counts one status API request with the given status code.
func (m *Metrics) IncRequests(status int) {
	if m == nil {
		return
	}
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	m.requestsTotal.WithLabelValues(class).Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// IncRecordings counts one finished recording attempt.
func (m *Metrics) IncRecordings(outcome string) {
	if m == nil {
		return
	}
	m.recordingsTotal.WithLabelValues(outcome).Inc()
}

// AddBytesWritten adds n bytes to the persisted bytes counter.
func (m *Metrics) AddBytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWrittenTotal.Add(float64(n))
}

// IncLivenessProbes counts one fleet liveness probe.
func (m *Metrics) IncLivenessProbes(result string) {
	if m == nil {
		return
	}
	m.livenessProbesTotal.WithLabelValues(result).Inc()
}

// IncPostprocessErrors counts a failed transcode or upload.
func (m *Metrics) IncPostprocessErrors(stage string) {
	if m == nil {
		return
	}
	m.postprocessErrorTotal.WithLabelValues(stage).Inc()
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
