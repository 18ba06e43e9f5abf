package specialized

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

var priceManipulationThreshold = big.NewInt(1_000_000)

// PriceManipulationDetector flags a large transfer with at least two
// related same-token transfers touching either of its endpoints, per the
// original's price_manipulation.rs.
type PriceManipulationDetector struct{}

func (PriceManipulationDetector) Name() string { return "PriceManipulationDetector" }

func (PriceManipulationDetector) DetectEvents(in Input) []DetectedEvent {
	var out []DetectedEvent
	for i, transfer := range in.TokenTransfers {
		if transfer.Amount == nil || transfer.Amount.Cmp(priceManipulationThreshold) <= 0 {
			continue
		}

		var related []facts.TokenTransfer
		for j, other := range in.TokenTransfers {
			if j == i || other.TokenAddress != transfer.TokenAddress {
				continue
			}
			if other.From == transfer.To || other.To == transfer.From {
				related = append(related, other)
			}
		}
		if len(related) < 2 {
			continue
		}

		out = append(out, DetectedEvent{
			EventType:  "price_manipulation",
			Confidence: 0.7,
			Addresses:  []primitives.Address{transfer.TokenAddress, transfer.From, transfer.To},
			Data: map[string]any{
				"token":          transfer.TokenAddress.Hex(),
				"amount":         transfer.Amount.String(),
				"relatedTrades": len(related),
			},
			Description: "Possible price manipulation detected",
			Severity:    High,
		})
	}
	return out
}
