package victim

import (
	"context"
	"math"
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/impact"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
	"github.com/angu-team/ethernity-deeptrace/internal/snapshot"
	"github.com/angu-team/ethernity-deeptrace/internal/xerrors"
)

const reserveShareDivisor = 100
const frontrunShareDivisor = 10

// UniswapV2Detector implements the Victim Analyzer's full pipeline (spec
// §4.10 steps 4-6) for routers that expose factory().
type UniswapV2Detector struct{}

func (UniswapV2Detector) Name() string { return "UniswapV2Detector" }

func (UniswapV2Detector) Supports(info RouterInfo, _ TxInput) bool { return info.HasFactory }

func (UniswapV2Detector) Analyze(ctx context.Context, provider rpc.Provider, tx TxInput, info RouterInfo) (*AnalysisResult, error) {
	call, ok := decodeSwapCall(tx.Input)
	if !ok {
		return nil, xerrors.Validationf(nil, "victim: unrecognized V2 selector")
	}
	if len(call.TokenPath) < 2 {
		return nil, xerrors.Validationf(nil, "victim: swap path too short")
	}
	tokenIn, tokenOut := call.TokenPath[0], call.TokenPath[len(call.TokenPath)-1]

	amountIn := call.AmountIn
	if amountIn == nil {
		amountIn = tx.Value // ETH-in variants draw amount_in from tx.value
	}
	if amountIn == nil {
		amountIn = big.NewInt(0)
	}

	amounts, err := quoteAmountsOut(ctx, provider, info.Address, amountIn, call.TokenPath)
	if err != nil || len(amounts) == 0 {
		return nil, xerrors.RPCf(err, "victim: quote amounts out")
	}
	expectedOut := amounts[len(amounts)-1]

	actualOut := amountReceivedBy(tx.Logs, tokenOut, call.To)
	actualIn := amountSentBy(tx.Logs, tokenIn, tx.From)

	slippage := 0.0
	if expectedOut.Sign() > 0 {
		diff := new(big.Int).Sub(expectedOut, actualOut)
		diff.Abs(diff)
		slippage = ratioToFloat(diff, expectedOut)
	}

	meetsOutMin := call.HasAmountOutMin && expectedOut.Cmp(call.AmountOutMin) >= 0
	meetsInMax := call.HasAmountInMax && actualIn.Cmp(call.AmountInMax) <= 0
	potentialVictim := slippage > 0 && (meetsOutMin || meetsInMax)

	pair, pairErr := resolvePairReserves(ctx, provider, info, tokenIn, tokenOut)
	metrics := SwapMetrics{
		SwapFunction:  call.Function,
		TokenRoute:    call.TokenPath,
		Slippage:      slippage,
		RouterAddress: info.Address,
		RouterName:    info.Name,
		HasRouterName: info.HasName,
	}

	potentialProfit := big.NewInt(0)
	if pairErr == nil {
		metrics.MinTokensToAffect = new(big.Int).Div(pair.ReserveIn, big.NewInt(reserveShareDivisor))
		potentialProfit = simulateSandwichProfit(pair, amountIn)
	}
	metrics.PotentialProfit = potentialProfit

	return &AnalysisResult{
		PotentialVictim:    potentialVictim,
		EconomicallyViable: potentialProfit.Sign() > 0,
		Metrics:            metrics,
	}, nil
}

// simulateSandwichProfit replays a 3-step constant-product sandwich
// (front-run = amount_in/10, the victim's own swap, back-run recovering
// the front-run's tokens) against a copy of the pool's reserves, per spec
// §4.10 step 5.
func simulateSandwichProfit(pair PairState, victimAmountIn *big.Int) *big.Int {
	state := &snapshot.State{Basic: snapshot.BasicState{
		ReserveIn:  new(big.Int).Set(pair.ReserveIn),
		ReserveOut: new(big.Int).Set(pair.ReserveOut),
	}}
	curve := impact.NewConstantProductCurve()

	frontIn := new(big.Int).Div(victimAmountIn, big.NewInt(frontrunShareDivisor))
	frontOut := curve.ExpectedOut(frontIn, state)
	curve.ApplyTrade(frontIn, state)
	curve.ApplyTrade(victimAmountIn, state)

	// The back-run sells what the front-run bought, trading in the
	// opposite direction — same curve, reserves swapped.
	reversed := &snapshot.State{Basic: snapshot.BasicState{
		ReserveIn:  new(big.Int).Set(state.Basic.ReserveOut),
		ReserveOut: new(big.Int).Set(state.Basic.ReserveIn),
	}}
	backFetched := curve.ExpectedOut(fromFloatWord(frontOut), reversed)

	profit := backFetched - toFloatWord(frontIn)
	if profit <= 0 || math.IsNaN(profit) || math.IsInf(profit, 0) {
		return big.NewInt(0)
	}
	return fromFloatWord(profit)
}

func ratioToFloat(numerator, denominator *big.Int) float64 {
	if denominator.Sign() == 0 {
		return 0
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(numerator), new(big.Float).SetInt(denominator))
	out, _ := f.Float64()
	return out
}

func toFloatWord(w *big.Int) float64 {
	f := new(big.Float).SetInt(w)
	out, _ := f.Float64()
	return out
}

func fromFloatWord(f float64) *big.Int {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return big.NewInt(0)
	}
	out, _ := big.NewFloat(f).Int(nil)
	return out
}
