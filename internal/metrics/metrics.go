// Package metrics exposes the pipeline's Prometheus instrumentation.
// Grounded on the teacher's internal/escrow/metrics.go: a single struct of
// promauto-registered vectors built once at startup and threaded into
// collaborators as a plain field, no global registry lookups scattered
// through business logic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/attackdetector"
	"github.com/angu-team/ethernity-deeptrace/internal/circuitbreaker"
	"github.com/angu-team/ethernity-deeptrace/internal/impact"
)

// Metrics holds every Prometheus metric DeepTrace registers. Fields are
// grouped by the collaborator that records them.
type Metrics struct {
	GroupsFinalizedTotal prometheus.Counter
	GroupSize            prometheus.Histogram

	AttacksDetectedTotal *prometheus.CounterVec
	AttackConfidence     *prometheus.HistogramVec

	ImpactOpportunityScore *prometheus.HistogramVec
	ImpactCertainty        *prometheus.HistogramVec

	RPCCacheRequestsTotal *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec

	SimulationPoolInUse    prometheus.Gauge
	SimulationPoolCapacity prometheus.Gauge
}

// New creates and registers every DeepTrace metric via promauto, the same
// way NewMetrics does in the teacher's Economic Barrier.
func New() *Metrics {
	return &Metrics{
		GroupsFinalizedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deeptrace_groups_finalized_total",
			Help: "Total number of transaction groups the aggregator finalized.",
		}),
		GroupSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "deeptrace_group_size_transactions",
			Help:    "Number of transactions in a finalized group.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		}),

		AttacksDetectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deeptrace_attacks_detected_total",
			Help: "Total number of attack reports, by attack type.",
		}, []string{"attack_type"}),
		AttackConfidence: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deeptrace_attack_confidence",
			Help:    "Confidence score attached to a detected attack, by attack type.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"attack_type"}),

		ImpactOpportunityScore: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deeptrace_impact_opportunity_score",
			Help:    "Estimated adversarial opportunity score for an evaluated group.",
			Buckets: prometheus.DefBuckets,
		}, []string{"reorg_risk"}),
		ImpactCertainty: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deeptrace_impact_certainty",
			Help:    "Certainty attached to an impact evaluation.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"reorg_risk"}),

		RPCCacheRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deeptrace_rpc_cache_requests_total",
			Help: "RPC cache lookups, by method and outcome (hit/miss).",
		}, []string{"method", "outcome"}),

		CircuitBreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deeptrace_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half_open), by collaborator.",
		}, []string{"collaborator"}),

		SimulationPoolInUse: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "deeptrace_simulation_pool_in_use",
			Help: "Number of Anvil simulation sessions currently checked out.",
		}),
		SimulationPoolCapacity: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "deeptrace_simulation_pool_capacity",
			Help: "Configured maximum capacity of the Anvil simulation session pool.",
		}),
	}
}

// BroadcastGroupFinalized implements pipeline.Broadcaster, so *Metrics can
// be registered the same way internal/live.Hub and internal/events.EventBus
// are.
func (m *Metrics) BroadcastGroupFinalized(blockNumber uint64, group aggregator.TxGroup) {
	m.GroupsFinalizedTotal.Inc()
	m.GroupSize.Observe(float64(len(group.Txs)))
}

func (m *Metrics) BroadcastAttackDetected(report attackdetector.AttackReport) {
	for _, t := range report.AttackTypes {
		label := string(t)
		m.AttacksDetectedTotal.WithLabelValues(label).Inc()
		m.AttackConfidence.WithLabelValues(label).Observe(report.AttackConfidence)
	}
}

func (m *Metrics) BroadcastImpactEvaluated(g impact.GroupImpact) {
	m.ImpactOpportunityScore.WithLabelValues(g.ReorgRiskLevel).Observe(g.OpportunityScore)
	m.ImpactCertainty.WithLabelValues(g.ReorgRiskLevel).Observe(g.ImpactCertainty)
}

// RecordRPCCacheHit and RecordRPCCacheMiss are called by internal/fabric's
// RedisCache around each cacheable method.
func (m *Metrics) RecordRPCCacheHit(method string) {
	m.RPCCacheRequestsTotal.WithLabelValues(method, "hit").Inc()
}

func (m *Metrics) RecordRPCCacheMiss(method string) {
	m.RPCCacheRequestsTotal.WithLabelValues(method, "miss").Inc()
}

// CircuitBreakerStateFunc returns an OnStateChange callback suitable for
// circuitbreaker.Config, recording the new state as a gauge value.
func (m *Metrics) CircuitBreakerStateFunc() func(name string, from, to circuitbreaker.State) {
	return func(name string, _, to circuitbreaker.State) {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	}
}

// RecordSimulationPoolUsage records the simulation pool's current
// occupancy and configured capacity as supplied by the caller (for
// example from SessionPool.Stats); SessionPool itself does not call it.
func (m *Metrics) RecordSimulationPoolUsage(inUse, capacity int) {
	m.SimulationPoolInUse.Set(float64(inUse))
	m.SimulationPoolCapacity.Set(float64(capacity))
}
