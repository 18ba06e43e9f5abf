package impact

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/snapshot"
	"github.com/angu-team/ethernity-deeptrace/internal/tagger"
)

func sampleState() *snapshot.State {
	return &snapshot.State{
		Basic: snapshot.BasicState{
			ReserveIn:  big.NewInt(1_000_000),
			ReserveOut: big.NewInt(2_000_000),
		},
	}
}

func TestConstantProductExpectedOut(t *testing.T) {
	curve := NewConstantProductCurve()
	state := sampleState()
	out := curve.ExpectedOut(big.NewInt(1000), state)
	require.Greater(t, out, 0.0)
	require.Less(t, out, 2000.0) // less than naive 1:2 ratio due to slippage + fee
}

func TestConstantProductZeroReservesCollapseToZero(t *testing.T) {
	curve := NewConstantProductCurve()
	state := &snapshot.State{}
	out := curve.ExpectedOut(big.NewInt(1000), state)
	require.Equal(t, 0.0, out)
}

func TestApplyTradeMutatesReserves(t *testing.T) {
	curve := NewConstantProductCurve()
	state := sampleState()
	before := new(big.Int).Set(state.Basic.ReserveIn)
	curve.ApplyTrade(big.NewInt(1000), state)
	require.Equal(t, 1, state.Basic.ReserveIn.Cmp(before))
}

func TestUniswapV3ExpectedOutWithoutDataIsZero(t *testing.T) {
	curve := UniswapV3Curve{}
	state := &snapshot.State{}
	require.Equal(t, 0.0, curve.ExpectedOut(big.NewInt(1000), state))
}

func TestEvaluateVictimsConvexityHalvesOnBigJump(t *testing.T) {
	state := sampleState()
	eval := NewEvaluator(NewConstantProductCurve(), 20, false)

	victims := []VictimInput{
		{AmountIn: big.NewInt(1000), AmountOutMin: big.NewInt(1900)},
		{AmountIn: big.NewInt(1000), AmountOutMin: big.NewInt(1)}, // huge slippage jump
	}
	impacts := eval.EvaluateVictims(victims, state)
	require.Len(t, impacts, 2)
	require.Equal(t, 1.0, impacts[0].ConvexityIntegrityScore)
	require.InDelta(t, 0.4, impacts[1].ConvexityIntegrityScore, 1e-9)
}

func TestEvaluateVictimsLightweightSimulationAccumulatesState(t *testing.T) {
	state := sampleState()
	eval := NewEvaluator(NewConstantProductCurve(), 20, true)

	victims := []VictimInput{
		{AmountIn: big.NewInt(100000), AmountOutMin: big.NewInt(0)},
		{AmountIn: big.NewInt(100000), AmountOutMin: big.NewInt(0)},
	}
	impacts := eval.EvaluateVictims(victims, state)
	require.Less(t, impacts[1].Expected, impacts[0].Expected, "second victim sees depleted reserve_out")
}

func TestComputeAggregateBaseline(t *testing.T) {
	agg := ComputeAggregate(1, ReorgNone, false, nil, nil)
	require.Equal(t, 1.0, agg.StateConfidence)
	require.Equal(t, 0.9, agg.ImpactCertainty)
	require.InDelta(t, 0.95, agg.OpportunityScore, 1e-9)
}

func TestComputeAggregatePenalizesLagReorgVolatility(t *testing.T) {
	agg := ComputeAggregate(3, ReorgHigh, true, nil, nil)
	require.InDelta(t, 0.4, agg.StateConfidence, 1e-9)
}

func TestComputeAggregateTokenBehaviorUnknownLowersImpactCertainty(t *testing.T) {
	agg := ComputeAggregate(1, ReorgNone, false, nil, []VictimInput{{TokenBehaviorUnknown: true}})
	require.InDelta(t, 0.61, agg.ImpactCertainty, 1e-9)
}

func TestComputeAggregateHalvesOnLowConvexity(t *testing.T) {
	agg := ComputeAggregate(1, ReorgNone, false, []VictimImpact{{ConvexityIntegrityScore: 0.4}}, nil)
	require.InDelta(t, 0.475, agg.OpportunityScore, 1e-9)
}

func TestResolvePoolTypePrefersV2OverV3(t *testing.T) {
	group := aggregator.TxGroup{Txs: []aggregator.AnnotatedTx{
		{Tags: []tagger.Tag{tagger.TagSwapV3}},
		{Tags: []tagger.Tag{tagger.TagSwapV2}},
	}}
	require.Equal(t, PoolV2, ResolvePoolType(group))
}

func TestResolvePoolTypeUnknownWithNoRecognizedTag(t *testing.T) {
	group := aggregator.TxGroup{Txs: []aggregator.AnnotatedTx{{Tags: []tagger.Tag{tagger.TagUnknownCall}}}}
	require.Equal(t, PoolUnknown, ResolvePoolType(group))
}

func TestEvaluateGroupAssemblesGroupImpact(t *testing.T) {
	state := sampleState()
	group := aggregator.TxGroup{
		GroupKey:   primitives.Keccak256([]byte("g")),
		TokenPaths: []primitives.Address{},
		Txs:        []aggregator.AnnotatedTx{{Tags: []tagger.Tag{tagger.TagSwapV2}, FirstSeen: time.Now()}},
	}
	victims := []VictimInput{{AmountIn: big.NewInt(1000), AmountOutMin: big.NewInt(1900)}}

	gi := EvaluateGroup(group, victims, state, 1, ReorgMedium, false, 20, false)
	require.Equal(t, group.GroupKey, gi.GroupID)
	require.Len(t, gi.Victims, 1)
	require.Equal(t, "ideal", gi.ExecutionAssumption)
	require.Equal(t, "medium", gi.ReorgRiskLevel)
	require.InDelta(t, 0.9, gi.StateConfidence, 1e-9) // lag=1 no penalty, reorg medium -0.1
}
