package patterns

import (
	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// Erc20Detector flags every ERC20-classified contract creation, per
// spec §4.2's ClassifyBytecode output and the original's erc20.rs.
type Erc20Detector struct{}

func (Erc20Detector) PatternType() PatternType { return PatternErc20Creation }
func (Erc20Detector) MinConfidence() float64   { return baseMinConfidence }

func (Erc20Detector) Detect(in Input) []DetectedPattern {
	var out []DetectedPattern
	for _, creation := range in.ContractCreations {
		if creation.ContractType != facts.ERC20Token {
			continue
		}
		out = append(out, DetectedPattern{
			Type:       PatternErc20Creation,
			Confidence: 0.9,
			Addresses:  []primitives.Address{creation.ContractAddress, creation.Creator},
			Data: map[string]any{
				"contract_address": creation.ContractAddress.Hex(),
				"creator":          creation.Creator.Hex(),
			},
			Description: "ERC20 token creation detected",
		})
	}
	return out
}
