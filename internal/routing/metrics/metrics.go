package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics represents the metrics for the forwarding engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Decisions      *prometheus.CounterVec
	Lookups        *prometheus.CounterVec
	RouteChanges   *prometheus.CounterVec
	Routes         prometheus.Gauge
	CircuitEntries prometheus.Gauge
	GateActive     prometheus.Gauge
	Reconfigures   prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	auto := promauto.With(reg)
	return &Metrics{
		Decisions: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forwarding_decisions_total",
				Help:      "Forwarding decisions by direction and outcome.",
			},
			[]string{"direction", "outcome"},
		),
		Lookups: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_lookups_total",
				Help:      "Longest-prefix-match lookups by result.",
			},
			[]string{"result"},
		),
		RouteChanges: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_changes_total",
				Help:      "Route table insertions and removals.",
			},
			[]string{"action"},
		),
		Routes: auto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "routes",
				Help:      "Number of entries in the route table.",
			},
		),
		CircuitEntries: auto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_cross_connects",
				Help:      "Number of installed cross-connects.",
			},
		),
		GateActive: auto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconfiguration_gate_active",
				Help:      "1 while the circuit fabric is being reconfigured.",
			},
		),
		Reconfigures: auto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconfigurations_total",
				Help:      "Completed circuit reconfiguration cycles.",
			},
		),
	}
}

// RecordDecision counts one forwarding decision
func (m *Metrics) RecordDecision(direction, outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(direction, outcome).Inc()
}

// RecordLookup counts one table lookup
func (m *Metrics) RecordLookup(found bool) {
	if m == nil {
		return
	}
	result := "miss"
	if found {
		result = "hit"
	}
	m.Lookups.WithLabelValues(result).Inc()
}

// RecordRouteChange counts n insertions or removals and updates the table size
func (m *Metrics) RecordRouteChange(action string, n, size int) {
	if m == nil {
		return
	}
	if n > 0 {
		m.RouteChanges.WithLabelValues(action).Add(float64(n))
	}
	m.Routes.Set(float64(size))
}

// RecordCircuit updates the cross-connect count
func (m *Metrics) RecordCircuit(size int) {
	if m == nil {
		return
	}
	m.CircuitEntries.Set(float64(size))
}

// RecordGate updates the gate state
func (m *Metrics) RecordGate(active bool) {
	if m == nil {
		return
	}
	if active {
		m.GateActive.Set(1)
		return
	}
	m.GateActive.Set(0)
}

// RecordReconfigure counts one completed reconfiguration
func (m *Metrics) RecordReconfigure() {
	if m == nil {
		return
	}
	m.Reconfigures.Inc()
}
