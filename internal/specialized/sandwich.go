package specialized

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// SandwichAttackDetector flags a same-token transfer triple where the
// outer pair reverses (attacker front/back-run) around a differently
// addressed middle (victim) transfer with positive attacker profit, per
// the original's sandwich_attack.rs.
type SandwichAttackDetector struct{}

func (SandwichAttackDetector) Name() string { return "SandwichAttackDetector" }

func (SandwichAttackDetector) DetectEvents(in Input) []DetectedEvent {
	if len(in.TokenTransfers) < 3 {
		return nil
	}

	byToken := make(map[primitives.Address][]facts.TokenTransfer)
	var order []primitives.Address
	for _, t := range in.TokenTransfers {
		if _, ok := byToken[t.TokenAddress]; !ok {
			order = append(order, t.TokenAddress)
		}
		byToken[t.TokenAddress] = append(byToken[t.TokenAddress], t)
	}

	var out []DetectedEvent
	for _, token := range order {
		transfers := byToken[token]
		if len(transfers) < 3 {
			continue
		}
		for i := 0; i+2 < len(transfers); i++ {
			t1, t2, t3 := transfers[i], transfers[i+1], transfers[i+2]
			if t1.To != t3.From || t1.From != t3.To {
				continue
			}
			if t2.From == t1.From || t2.To == t1.To {
				continue
			}
			if t1.Amount == nil || t3.Amount == nil {
				continue
			}
			if t3.Amount.Cmp(t1.Amount) <= 0 {
				continue
			}
			profit := new(big.Int).Sub(t3.Amount, t1.Amount)

			out = append(out, DetectedEvent{
				EventType:  "sandwich_attack",
				Confidence: 0.85,
				Addresses:  []primitives.Address{token, t1.From, t2.From},
				Data: map[string]any{
					"token":    token.Hex(),
					"attacker": t1.From.Hex(),
					"victim":   t2.From.Hex(),
					"profit":   profit.String(),
				},
				Description: "Possible sandwich attack detected",
				Severity:    High,
			})
		}
	}
	return out
}
