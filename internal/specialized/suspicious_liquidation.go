package specialized

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

var suspiciousLiquidationThreshold = big.NewInt(100_000)

// SuspiciousLiquidationDetector flags a large transfer followed by a
// different sender routing funds back to the original sender within the
// next two transfers, per the original's suspicious_liquidation.rs.
type SuspiciousLiquidationDetector struct{}

func (SuspiciousLiquidationDetector) Name() string { return "SuspiciousLiquidationDetector" }

func (SuspiciousLiquidationDetector) DetectEvents(in Input) []DetectedEvent {
	transfers := in.TokenTransfers
	var out []DetectedEvent
	for i := 0; i+2 < len(transfers); i++ {
		t1, t2, t3 := transfers[i], transfers[i+1], transfers[i+2]
		if t1.Amount == nil || t1.Amount.Cmp(suspiciousLiquidationThreshold) <= 0 {
			continue
		}
		if t2.From == t1.From {
			continue
		}
		if t3.To != t1.From {
			continue
		}

		out = append(out, DetectedEvent{
			EventType:  "suspicious_liquidation",
			Confidence: 0.75,
			Addresses:  []primitives.Address{t1.From, t2.From, t3.To},
			Data: map[string]any{
				"originalSender": t1.From.Hex(),
				"amount":          t1.Amount.String(),
			},
			Description: "Possible suspicious liquidation detected",
			Severity:    High,
		})
	}
	return out
}
