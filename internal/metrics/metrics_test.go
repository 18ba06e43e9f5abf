package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/attackdetector"
	"github.com/angu-team/ethernity-deeptrace/internal/circuitbreaker"
	"github.com/angu-team/ethernity-deeptrace/internal/impact"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// New registers on the default Prometheus registry, and a second
// registration of the same metric names panics, so every test shares one
// instance; each test touches different metrics or label values.
var testMetrics = New()

func TestBroadcastGroupFinalizedIncrementsCounterAndHistogram(t *testing.T) {
	m := testMetrics
	group := aggregator.TxGroup{GroupKey: primitives.Hash{0x01}, Txs: []aggregator.AnnotatedTx{{}, {}, {}}}

	m.BroadcastGroupFinalized(100, group)

	require.Equal(t, float64(1), testutil.ToFloat64(m.GroupsFinalizedTotal))
}

func TestBroadcastAttackDetectedLabelsByAttackType(t *testing.T) {
	m := testMetrics
	report := attackdetector.AttackReport{
		GroupKey:         primitives.Hash{0x02},
		AttackTypes:      []attackdetector.AttackType{attackdetector.AttackSandwich},
		AttackConfidence: 0.91,
	}

	m.BroadcastAttackDetected(report)

	require.Equal(t, float64(1), testutil.ToFloat64(m.AttacksDetectedTotal.WithLabelValues("sandwich")))
}

func TestBroadcastImpactEvaluatedRecordsByReorgRiskLevel(t *testing.T) {
	m := testMetrics
	g := impact.GroupImpact{
		GroupID:          primitives.Hash{0x03},
		OpportunityScore: 1.5,
		ImpactCertainty:  0.8,
		ReorgRiskLevel:   "high",
	}

	m.BroadcastImpactEvaluated(g)

	require.Equal(t, 1, testutil.CollectAndCount(m.ImpactOpportunityScore))
}

func TestRecordRPCCacheHitAndMissAreLabeledSeparately(t *testing.T) {
	m := testMetrics

	m.RecordRPCCacheHit("trace")
	m.RecordRPCCacheMiss("trace")
	m.RecordRPCCacheMiss("trace")

	require.Equal(t, float64(1), testutil.ToFloat64(m.RPCCacheRequestsTotal.WithLabelValues("trace", "hit")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.RPCCacheRequestsTotal.WithLabelValues("trace", "miss")))
}

func TestCircuitBreakerStateFuncSetsGaugeToNewState(t *testing.T) {
	m := testMetrics
	fn := m.CircuitBreakerStateFunc()

	fn("rpc", circuitbreaker.StateClosed, circuitbreaker.StateOpen)

	require.Equal(t, float64(circuitbreaker.StateOpen), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("rpc")))
}

func TestRecordSimulationPoolUsageSetsBothGauges(t *testing.T) {
	m := testMetrics

	m.RecordSimulationPoolUsage(3, 4)

	require.Equal(t, float64(3), testutil.ToFloat64(m.SimulationPoolInUse))
	require.Equal(t, float64(4), testutil.ToFloat64(m.SimulationPoolCapacity))
}
