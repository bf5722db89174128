package mgmtbus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors exposed at /metrics: the
// backpressure and error counters named in §5/§7 (queue depth, CCA-fail,
// replay-drop, DAO aggregation size).
type Metrics struct {
	QueueDepth      prometheus.Gauge
	TUNDropped      prometheus.Counter
	CCAFail         prometheus.Counter
	NoAck           prometheus.Counter
	ReplayDropped   prometheus.Counter
	DAOAggregateSize prometheus.Gauge
	ReassemblyPending prometheus.Gauge
	SupplicantsActive prometheus.Gauge
}

// NewMetrics creates and registers the collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wisun", Subsystem: "mac", Name: "queue_depth",
			Help: "Current depth of the outbound MCPS priority queue.",
		}),
		TUNDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wisun", Subsystem: "tun", Name: "dropped_total",
			Help: "IPv6 packets dropped on the TUN-to-mesh path due to admission backpressure.",
		}),
		CCAFail: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wisun", Subsystem: "mac", Name: "cca_fail_total",
			Help: "MCPS-DATA.confirm CCA failures.",
		}),
		NoAck: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wisun", Subsystem: "mac", Name: "no_ack_total",
			Help: "MCPS-DATA.confirm no-ack failures.",
		}),
		ReplayDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wisun", Subsystem: "mac", Name: "replay_dropped_total",
			Help: "Inbound frames dropped for a non-increasing security frame counter.",
		}),
		DAOAggregateSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wisun", Subsystem: "rpl", Name: "dao_aggregate_size",
			Help: "Number of descendants currently retained in the non-storing DAO map.",
		}),
		ReassemblyPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wisun", Subsystem: "lowpan", Name: "reassembly_pending",
			Help: "In-progress 6LoWPAN fragment reassembly buffers.",
		}),
		SupplicantsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wisun", Subsystem: "auth", Name: "supplicants_active",
			Help: "Supplicants currently mid-negotiation (not yet authenticated or idle).",
		}),
	}
	reg.MustRegister(m.QueueDepth, m.TUNDropped, m.CCAFail, m.NoAck, m.ReplayDropped,
		m.DAOAggregateSize, m.ReassemblyPending, m.SupplicantsActive)
	return m
}
