package patterns

import (
	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// Erc721Detector flags every ERC721-classified contract creation, per
// the original's erc721.rs.
type Erc721Detector struct{}

func (Erc721Detector) PatternType() PatternType { return PatternErc721Creation }
func (Erc721Detector) MinConfidence() float64   { return baseMinConfidence }

func (Erc721Detector) Detect(in Input) []DetectedPattern {
	var out []DetectedPattern
	for _, creation := range in.ContractCreations {
		if creation.ContractType != facts.ERC721Token {
			continue
		}
		out = append(out, DetectedPattern{
			Type:       PatternErc721Creation,
			Confidence: 0.9,
			Addresses:  []primitives.Address{creation.ContractAddress, creation.Creator},
			Data: map[string]any{
				"contract_address": creation.ContractAddress.Hex(),
				"creator":          creation.Creator.Hex(),
			},
			Description: "ERC721 (NFT) token creation detected",
		})
	}
	return out
}
