package patterns

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// MevDetector flags an address with positive net token flow above a
// fixed threshold across a 4+-transfer sequence, per the original's
// mev.rs arbitrage heuristic.
type MevDetector struct{}

func (MevDetector) PatternType() PatternType { return PatternArbitrage }
func (MevDetector) MinConfidence() float64   { return baseMinConfidence }

func (MevDetector) Detect(in Input) []DetectedPattern {
	if len(in.TokenTransfers) < 4 {
		return nil
	}

	byToken := make(map[primitives.Address][]facts.TokenTransfer)
	var tokenOrder []primitives.Address
	for _, t := range in.TokenTransfers {
		if _, ok := byToken[t.TokenAddress]; !ok {
			tokenOrder = append(tokenOrder, t.TokenAddress)
		}
		byToken[t.TokenAddress] = append(byToken[t.TokenAddress], t)
	}

	var out []DetectedPattern
	for _, token := range tokenOrder {
		flows := byToken[token]
		if len(flows) < 2 {
			continue
		}
		net := make(map[primitives.Address]*big.Int)
		var addrOrder []primitives.Address
		adjust := func(addr primitives.Address, delta *big.Int) {
			v, ok := net[addr]
			if !ok {
				v = big.NewInt(0)
				net[addr] = v
				addrOrder = append(addrOrder, addr)
			}
			v.Add(v, delta)
		}
		for _, f := range flows {
			if f.Amount == nil {
				continue
			}
			adjust(f.From, new(big.Int).Neg(f.Amount))
			adjust(f.To, new(big.Int).Set(f.Amount))
		}

		threshold := big.NewInt(1000)
		for _, addr := range addrOrder {
			n := net[addr]
			if n.Sign() > 0 && n.Cmp(threshold) > 0 {
				out = append(out, DetectedPattern{
					Type:       PatternArbitrage,
					Confidence: 0.8,
					Addresses:  []primitives.Address{token, addr},
					Data: map[string]any{
						"token":       token.Hex(),
						"arbitrageur": addr.Hex(),
						"profit":      n.String(),
					},
					Description: "MEV arbitrage pattern detected",
				})
			}
		}
	}
	return out
}
