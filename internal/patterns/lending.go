package patterns

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// LendingDetector flags a borrow/repay pair: two consecutive transfers
// of the same token with reversed from/to and a 1.1x-100x repayment
// ratio, per the original's lending.rs.
type LendingDetector struct{}

func (LendingDetector) PatternType() PatternType { return PatternLiquidity }
func (LendingDetector) MinConfidence() float64   { return baseMinConfidence }

func (LendingDetector) Detect(in Input) []DetectedPattern {
	var out []DetectedPattern
	transfers := in.TokenTransfers
	for i := 0; i+1 < len(transfers); i++ {
		t1, t2 := transfers[i], transfers[i+1]
		if t1.TokenAddress != t2.TokenAddress || t1.From != t2.To || t1.To != t2.From {
			continue
		}
		if t2.Amount == nil || t2.Amount.Sign() == 0 {
			continue
		}
		ratio := new(big.Float).Quo(new(big.Float).SetInt(t1.Amount), new(big.Float).SetInt(t2.Amount))
		r, _ := ratio.Float64()
		if r <= 1.1 || r >= 100.0 {
			continue
		}
		out = append(out, DetectedPattern{
			Type:       PatternLiquidity,
			Confidence: 0.75,
			Addresses:  []primitives.Address{t1.TokenAddress, t1.From, t1.To},
			Data: map[string]any{
				"token":          t1.TokenAddress.Hex(),
				"principal":      t1.Amount.String(),
				"repayment":      t2.Amount.String(),
				"interest_ratio": r - 1.0,
			},
			Description: "Lending/liquidity pattern detected",
		})
	}
	return out
}
