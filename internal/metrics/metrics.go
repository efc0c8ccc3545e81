// Package metrics exposes the supervisor's Prometheus counters and gauges,
// served over HTTP by cmd/supervisor at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftmorisk_orders_placed_total",
			Help: "Orders submitted to the broker, by symbol and side.",
		},
		[]string{"symbol", "side"},
	)

	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftmorisk_orders_rejected_total",
			Help: "Orders rejected by the broker, by symbol.",
		},
		[]string{"symbol"},
	)

	RuleViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftmorisk_rule_violations_total",
			Help: "Rule violations detected by the governor, by violation code.",
		},
		[]string{"code"},
	)

	GovernorState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ftmorisk_governor_state",
			Help: "1 for the governor's current state, 0 for every other labeled state.",
		},
		[]string{"state"},
	)

	SafeModeActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ftmorisk_safe_mode_active",
			Help: "1 if the safe-mode latch is tripped, 0 otherwise.",
		},
	)

	DriftEscalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftmorisk_drift_escalations_total",
			Help: "Reconcile drift entries that aged past the unresolved threshold, by kind.",
		},
		[]string{"kind"},
	)

	EquityUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ftmorisk_equity_usd",
			Help: "Most recently observed account equity.",
		},
	)
)

func init() {
	prometheus.MustRegister(OrdersPlaced, OrdersRejected, RuleViolations, GovernorState, SafeModeActive, DriftEscalations, EquityUSD)
}

// SetGovernorState flips the labeled gauge for state to 1 and every other
// known state to 0, so a dashboard can chart the latch as a single series
// per state without stale values lingering from a prior tick.
func SetGovernorState(states []string, current string) {
	for _, s := range states {
		if s == current {
			GovernorState.WithLabelValues(s).Set(1)
		} else {
			GovernorState.WithLabelValues(s).Set(0)
		}
	}
}
