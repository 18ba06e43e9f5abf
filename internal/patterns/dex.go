package patterns

import (
	"strconv"

	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// DexDetector flags a multi-token transfer set as a swap, per the
// original's dex.rs: confidence starts at 0.6 across >=2 distinct
// tokens, +0.2 if any token appears in more than one transfer (the
// direction of those transfers is not checked). Without that bonus the
// score stays below MinConfidence and nothing is reported.
type DexDetector struct{}

func (DexDetector) PatternType() PatternType { return PatternTokenSwap }
func (d DexDetector) MinConfidence() float64 { return baseMinConfidence }

func (d DexDetector) Detect(in Input) []DetectedPattern {
	if len(in.TokenTransfers) < 2 {
		return nil
	}

	groups := make(map[primitives.Address][]facts.TokenTransfer)
	var order []primitives.Address
	for _, t := range in.TokenTransfers {
		if _, seen := groups[t.TokenAddress]; !seen {
			order = append(order, t.TokenAddress)
		}
		groups[t.TokenAddress] = append(groups[t.TokenAddress], t)
	}
	if len(groups) < 2 {
		return nil
	}

	confidence := 0.6
	addresses := make([]primitives.Address, 0, len(order))
	data := make(map[string]any, len(order))
	for i, token := range order {
		addresses = append(addresses, token)
		data[mapKey("token", i)] = token.Hex()
	}

	var bidirectional bool
	for _, transfers := range groups {
		if len(transfers) > 1 {
			bidirectional = true
			break
		}
	}
	if bidirectional {
		confidence += 0.2
	}

	if confidence < d.MinConfidence() {
		return nil
	}
	return []DetectedPattern{{
		Type:        PatternTokenSwap,
		Confidence:  confidence,
		Addresses:   addresses,
		Data:        data,
		Description: "Token swap pattern detected",
	}}
}

func mapKey(prefix string, i int) string {
	return prefix + "_" + strconv.Itoa(i)
}
