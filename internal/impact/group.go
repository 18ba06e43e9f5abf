package impact

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/snapshot"
	"github.com/angu-team/ethernity-deeptrace/internal/tagger"
)

// PoolType classifies which curve a group's pool trades under, resolved
// from the group's tag vocabulary per spec §4.8.
type PoolType int

const (
	PoolUnknown PoolType = iota
	PoolV2
	PoolV3
	PoolLending
)

// ResolvePoolType inspects every tx's tags in the group and picks the
// first matching pool family in swap-v2, swap-v3, lending priority order.
func ResolvePoolType(group aggregator.TxGroup) PoolType {
	var hasV3, hasLending bool
	for _, tx := range group.Txs {
		for _, t := range tx.Tags {
			switch t {
			case tagger.TagSwapV2:
				return PoolV2
			case tagger.TagSwapV3:
				hasV3 = true
			case tagger.TagLending:
				hasLending = true
			}
		}
	}
	if hasV3 {
		return PoolV3
	}
	if hasLending {
		return PoolLending
	}
	return PoolUnknown
}

// CurveFor returns the Curve matching a resolved PoolType; lending and
// unknown pools fall back to the constant-product curve, as lending
// venues expose the same reserve-pair shape for evaluation purposes.
func CurveFor(pt PoolType) Curve {
	if pt == PoolV3 {
		return UniswapV3Curve{}
	}
	return NewConstantProductCurve()
}

// GroupImpact is StateImpactEvaluator's group-level output, per spec §3.
type GroupImpact struct {
	GroupID                primitives.Hash
	Tokens                  []primitives.Address
	Victims                 []VictimImpact
	OpportunityScore        float64
	ExpectedProfitBackrun   float64
	StateConfidence         float64
	ImpactCertainty         float64
	ExecutionAssumption     string
	ReorgRiskLevel          string
}

func reorgRiskLevel(r ReorgRisk) string {
	switch r {
	case ReorgHigh:
		return "high"
	case ReorgMedium:
		return "medium"
	default:
		return "none"
	}
}

// EvaluateGroup resolves the group's pool type, evaluates every victim
// against state with the matching curve, and rolls the result up into a
// GroupImpact, per spec §4.8. state is mutated in place when
// lightweightSim is set.
func EvaluateGroup(group aggregator.TxGroup, victims []VictimInput, state *snapshot.State, lagBlocks int, reorgRisk ReorgRisk, volatilityFlag bool, historyWindow int, lightweightSim bool) GroupImpact {
	curve := CurveFor(ResolvePoolType(group))
	eval := NewEvaluator(curve, historyWindow, lightweightSim)
	impacts := eval.EvaluateVictims(victims, state)
	agg := ComputeAggregate(lagBlocks, reorgRisk, volatilityFlag, impacts, victims)

	profit := new(big.Float)
	for i, im := range impacts {
		profit.Add(profit, big.NewFloat(im.Expected))
		profit.Sub(profit, big.NewFloat(toFloat(victims[i].AmountOutMin)))
	}
	expectedProfit, _ := profit.Float64()

	return GroupImpact{
		GroupID:              group.GroupKey,
		Tokens:               group.TokenPaths,
		Victims:              impacts,
		OpportunityScore:     agg.OpportunityScore,
		ExpectedProfitBackrun: expectedProfit,
		StateConfidence:      agg.StateConfidence,
		ImpactCertainty:      agg.ImpactCertainty,
		ExecutionAssumption:  "ideal",
		ReorgRiskLevel:       reorgRiskLevel(reorgRisk),
	}
}
