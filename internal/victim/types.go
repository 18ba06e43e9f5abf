// Package victim implements the Victim Analyzer & Detector Registry (spec
// §4.10): router identification, per-router-family calldata decoding, and
// the simulate-then-measure slippage/profit pipeline that produces a
// per-transaction AnalysisResult.
package victim

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

// RouterInfo identifies a DEX router contract, probed once from its
// on-chain interface and cached thereafter (spec §4.10 step 2).
type RouterInfo struct {
	Address        primitives.Address
	Name           string
	HasName        bool
	HasFactory     bool
	FactoryAddress primitives.Address
}

// SwapCall is the decoded shape of one swap-bearing transaction, common to
// every router family's calldata dialect once a family-specific Detector
// has parsed its own selector table.
type SwapCall struct {
	Function        string
	TokenPath        []primitives.Address
	AmountIn        *big.Int
	HasAmountIn     bool // false when amount_in comes from tx.value (ETH-in variants)
	AmountOutMin    *big.Int
	HasAmountOutMin bool
	AmountInMax     *big.Int
	HasAmountInMax  bool
	To              primitives.Address
}

// SwapMetrics is the AnalysisResult payload's metrics block, per spec §6.
type SwapMetrics struct {
	SwapFunction      string
	TokenRoute        []primitives.Address
	Slippage          float64
	MinTokensToAffect *big.Int
	PotentialProfit   *big.Int
	RouterAddress     primitives.Address
	RouterName        string
	HasRouterName     bool
}

// AnalysisResult is the Victim Analyzer's per-transaction verdict, per spec
// §6's AnalysisResult event output.
type AnalysisResult struct {
	PotentialVictim    bool
	EconomicallyViable bool
	Metrics            SwapMetrics
}

// TxInput is the transaction the Victim Analyzer evaluates, plus the logs
// observed from simulating it against a fork at the target block (spec
// §4.10 step 1 — simulation itself is the caller's responsibility; this
// package only consumes its result).
type TxInput struct {
	TxHash primitives.Hash
	From   primitives.Address
	To     primitives.Address
	HasTo  bool
	Value  *big.Int
	Input  []byte
	Logs   []rpc.Log
}

// PairState is the reserve/ordering context a V2-family detector needs to
// compute expected output, read from the pair via token0() (spec §4.10
// step 5).
type PairState struct {
	Token0     primitives.Address
	ReserveIn  *big.Int
	ReserveOut *big.Int
}
