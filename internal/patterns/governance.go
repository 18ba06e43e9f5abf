package patterns

import (
	"bytes"
	"encoding/hex"

	"github.com/angu-team/ethernity-deeptrace/internal/calltree"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// governanceSelectors are the four canonical OpenZeppelin Governor
// selectors (castVote, queue, execute, propose-family) the original
// detector scans calldata for.
var governanceSelectors = [][4]byte{
	{0xda, 0x35, 0xc6, 0x64},
	{0x15, 0x37, 0x3e, 0x3d},
	{0xfe, 0x0d, 0x94, 0xc1},
	{0x40, 0xe5, 0x8e, 0xe5},
}

// GovernanceDetector flags calls whose selector matches a known
// governance function, per the original's governance.rs.
type GovernanceDetector struct{}

func (GovernanceDetector) PatternType() PatternType { return PatternGovernance }
func (GovernanceDetector) MinConfidence() float64   { return baseMinConfidence }

func (GovernanceDetector) Detect(in Input) []DetectedPattern {
	if in.Tree == nil {
		return nil
	}
	var out []DetectedPattern
	in.Tree.Preorder(func(n *calltree.CallNode) {
		if len(n.Input) < 4 {
			return
		}
		sig := n.Input[0:4]
		for _, gov := range governanceSelectors {
			if bytes.Equal(sig, gov[:]) {
				to := primitives.Address{}
				if n.HasTo {
					to = n.To
				}
				out = append(out, DetectedPattern{
					Type:       PatternGovernance,
					Confidence: 0.85,
					Addresses:  []primitives.Address{n.From, to},
					Data: map[string]any{
						"contract":           to.Hex(),
						"caller":             n.From.Hex(),
						"function_signature": hex.EncodeToString(sig),
					},
					Description: "Governance activity detected",
				})
				break
			}
		}
	})
	return out
}
