// Package impact implements the State Impact Evaluator (spec §4.8):
// curve-parameterized expected-output and slippage math over a captured
// StateSnapshot, rolled up into an opportunity score.
package impact

import (
	"math"
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/snapshot"
)

const constantProductFeeRate = 0.003

// Curve computes the expected output of a trade against a pool snapshot
// and can mutate the snapshot to reflect the trade having happened, so a
// sequence of victims can be replayed through accumulated state (spec
// §4.8's lightweight_simulation mode).
type Curve interface {
	ExpectedOut(amountIn *big.Int, state *snapshot.State) float64
	ApplyTrade(amountIn *big.Int, state *snapshot.State)
}

// ConstantProductCurve is the Uniswap V2-style x*y=k curve with a fixed
// fee rate, per spec §4.8.
type ConstantProductCurve struct {
	FeeRate float64
}

// NewConstantProductCurve builds a ConstantProductCurve at the spec's
// default 0.3% fee.
func NewConstantProductCurve() ConstantProductCurve {
	return ConstantProductCurve{FeeRate: constantProductFeeRate}
}

func (c ConstantProductCurve) ExpectedOut(amountIn *big.Int, state *snapshot.State) float64 {
	reserveIn := toFloat(state.Basic.ReserveIn)
	reserveOut := toFloat(state.Basic.ReserveOut)
	in := toFloat(amountIn)

	amountInAfterFee := in * (1 - c.FeeRate)
	denom := reserveIn + amountInAfterFee
	if denom == 0 {
		return 0
	}
	out := (amountInAfterFee * reserveOut) / denom
	return collapseNonFinite(out)
}

func (c ConstantProductCurve) ApplyTrade(amountIn *big.Int, state *snapshot.State) {
	out := c.ExpectedOut(amountIn, state)
	reserveIn := toFloat(state.Basic.ReserveIn) + toFloat(amountIn)
	reserveOut := toFloat(state.Basic.ReserveOut) - out
	state.Basic.ReserveIn = fromFloat(reserveIn)
	state.Basic.ReserveOut = fromFloat(reserveOut)
}

// UniswapV3Curve derives expected output from a sqrtPriceX96 slot0 value
// rather than a reserve pair, per spec §4.8.
type UniswapV3Curve struct{}

func (UniswapV3Curve) ExpectedOut(amountIn *big.Int, state *snapshot.State) float64 {
	if !state.Extended.HasData || state.Extended.SqrtPriceX96 == nil {
		return 0
	}
	sqrtPriceX96 := toFloat(state.Extended.SqrtPriceX96)
	in := toFloat(amountIn)

	// price = (sqrtPriceX96^2) / 2^192
	ratio := sqrtPriceX96 / math.Pow(2, 96)
	price := ratio * ratio
	out := in * price
	return collapseNonFinite(out)
}

func (c UniswapV3Curve) ApplyTrade(amountIn *big.Int, state *snapshot.State) {
	// V3 reserves aren't a simple pair; a single trade's price impact on
	// sqrtPriceX96 requires the tick-liquidity curve this package doesn't
	// model, so lightweight_simulation leaves slot0 untouched for V3 and
	// only accumulates state for the constant-product curve.
	_ = amountIn
	_ = state
}

func collapseNonFinite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func toFloat(w *big.Int) float64 {
	if w == nil {
		return 0
	}
	f := new(big.Float).SetInt(w)
	out, _ := f.Float64()
	return out
}

func fromFloat(f float64) *big.Int {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return big.NewInt(0)
	}
	bf := big.NewFloat(f)
	out, _ := bf.Int(nil)
	return out
}
