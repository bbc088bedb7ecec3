package corebus

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of Prometheus collectors a Server updates as it
// runs. It only registers and increments them against the registry it
// is given — exposing them over HTTP is the embedding daemon's job,
// mirroring the teacher's stats package (it instruments transport
// internals, it does not own the exporter).
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	RequestsTotal     prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	FrameBytes        prometheus.Histogram
}

// NewMetrics creates and registers the corebus collector set against
// reg, or against the default Prometheus registry when reg is nil. Passing prometheus.NewRegistry() isolates a test server's
// metrics from the process-wide default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corebus_connections_active",
			Help: "Number of currently open core-bus connections.",
		}),
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corebus_requests_total",
			Help: "Total number of request frames dispatched.",
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corebus_errors_total",
			Help: "Total number of error responses, by kind.",
		}, []string{"kind"}),
		FrameBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "corebus_frame_bytes",
			Help:    "Size in bytes of decoded core-bus frames.",
			Buckets: prometheus.ExponentialBuckets(32, 2, 10),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.ConnectionsActive, m.RequestsTotal, m.ErrorsTotal, m.FrameBytes)
	return m
}

func (m *Metrics) observeFrame(n int) {
	if m != nil {
		m.FrameBytes.Observe(float64(n))
	}
}

func (m *Metrics) incRequests() {
	if m != nil {
		m.RequestsTotal.Inc()
	}
}

func (m *Metrics) incError(kind ErrKind) {
	if m != nil {
		m.ErrorsTotal.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.ConnectionsActive.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.ConnectionsActive.Dec()
	}
}
