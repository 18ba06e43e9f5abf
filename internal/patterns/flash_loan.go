package patterns

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// FlashLoanDetector flags a borrow-then-repay round trip bracketing a
// transfer sequence, with a fee ratio in [0.0005, 0.01], per the
// original's flash_loan.rs.
type FlashLoanDetector struct{}

func (FlashLoanDetector) PatternType() PatternType { return PatternFlashLoan }
func (FlashLoanDetector) MinConfidence() float64   { return baseMinConfidence }

func (FlashLoanDetector) Detect(in Input) []DetectedPattern {
	transfers := in.TokenTransfers
	if len(transfers) < 3 {
		return nil
	}
	first := transfers[0]
	last := transfers[len(transfers)-1]

	if first.TokenAddress != last.TokenAddress {
		return nil
	}
	if first.To != last.From || first.From != last.To {
		return nil
	}
	if first.Amount == nil || last.Amount == nil || last.Amount.Cmp(first.Amount) < 0 {
		return nil
	}
	if first.Amount.Sign() == 0 {
		return nil
	}

	fee := new(big.Int).Sub(last.Amount, first.Amount)
	feeRatio := new(big.Float).Quo(new(big.Float).SetInt(fee), new(big.Float).SetInt(first.Amount))
	ratio, _ := feeRatio.Float64()
	if ratio < 0.0005 || ratio > 0.01 {
		return nil
	}

	return []DetectedPattern{{
		Type:       PatternFlashLoan,
		Confidence: 0.85,
		Addresses:  []primitives.Address{first.TokenAddress, first.From, first.To},
		Data: map[string]any{
			"token":                   first.TokenAddress.Hex(),
			"amount":                  first.Amount.String(),
			"fee_ratio":               ratio,
			"intermediate_operations": len(transfers) - 2,
		},
		Description: "Flash loan detected",
	}}
}
