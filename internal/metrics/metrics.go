package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the domain collectors of the import workflow.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
	pushes      *prometheus.CounterVec
	reaped      *prometheus.CounterVec
	audits      *prometheus.CounterVec
	connections prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_import_transitions_total",
				Help: "Conditional status updates by edge and outcome.",
			},
			[]string{"from", "to", "result"},
		),
		pushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_pushes_total",
				Help: "Messages pushed to realtime connections.",
			},
			[]string{"kind", "delivered"},
		),
		reaped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_import_reaped_total",
				Help: "Expired transactions removed by the reaper, by last status.",
			},
			[]string{"status"},
		),
		audits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_total",
				Help: "Audit events published, by error detail and outcome.",
			},
			[]string{"error_detail", "result"},
		),
		connections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "realtime_connections",
				Help: "Currently registered realtime connections.",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.transitions, m.pushes, m.reaped, m.audits, m.connections} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Transition(from, to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, result).Inc()
}

func (m *Metrics) Push(kind string, delivered bool) {
	if m == nil {
		return
	}
	d := "false"
	if delivered {
		d = "true"
	}
	m.pushes.WithLabelValues(kind, d).Inc()
}

func (m *Metrics) Reaped(status string) {
	if m == nil {
		return
	}
	m.reaped.WithLabelValues(status).Inc()
}

func (m *Metrics) Audit(errorDetail, result string) {
	if m == nil {
		return
	}
	m.audits.WithLabelValues(errorDetail, result).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}
