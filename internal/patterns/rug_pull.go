package patterns

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

var rugPullThreshold = big.NewInt(1_000_000)

// RugPullDetector flags an ERC20 creator who received outsized token
// volume back from their own contract, per the original's rug_pull.rs.
type RugPullDetector struct{}

func (RugPullDetector) PatternType() PatternType { return PatternRugPull }
func (RugPullDetector) MinConfidence() float64   { return baseMinConfidence }

func (RugPullDetector) Detect(in Input) []DetectedPattern {
	var out []DetectedPattern
	for _, creation := range in.ContractCreations {
		if creation.ContractType != facts.ERC20Token {
			continue
		}
		var suspicious []facts.TokenTransfer
		total := big.NewInt(0)
		for _, t := range in.TokenTransfers {
			if t.TokenAddress != creation.ContractAddress || t.To != creation.Creator {
				continue
			}
			suspicious = append(suspicious, t)
			if t.Amount != nil {
				total.Add(total, t.Amount)
			}
		}
		if len(suspicious) == 0 || total.Cmp(rugPullThreshold) <= 0 {
			continue
		}

		confidence := 0.7
		if len(suspicious) > 3 {
			confidence = 0.9
		}
		out = append(out, DetectedPattern{
			Type:       PatternRugPull,
			Confidence: confidence,
			Addresses:  []primitives.Address{creation.ContractAddress, creation.Creator},
			Data: map[string]any{
				"token":             creation.ContractAddress.Hex(),
				"creator":           creation.Creator.Hex(),
				"suspicious_amount": total.String(),
				"transfer_count":    len(suspicious),
			},
			Description: "Possible rug pull detected",
		})
	}
	return out
}
