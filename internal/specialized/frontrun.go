package specialized

import (
	"bytes"
	"encoding/hex"

	"github.com/angu-team/ethernity-deeptrace/internal/calltree"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// FrontrunningDetector flags two preorder-consecutive calls to the same
// target with the same selector but different callers, per the
// original's frontrunning.rs.
type FrontrunningDetector struct{}

func (FrontrunningDetector) Name() string { return "FrontrunningDetector" }

func (FrontrunningDetector) DetectEvents(in Input) []DetectedEvent {
	if in.Tree == nil {
		return nil
	}
	var nodes []*calltree.CallNode
	in.Tree.Preorder(func(n *calltree.CallNode) { nodes = append(nodes, n) })

	var out []DetectedEvent
	for i := 0; i+1 < len(nodes); i++ {
		call1, call2 := nodes[i], nodes[i+1]
		if !call1.HasTo || call1.To != call2.To {
			continue
		}
		if len(call1.Input) < 4 || len(call2.Input) < 4 {
			continue
		}
		if !bytes.Equal(call1.Input[0:4], call2.Input[0:4]) {
			continue
		}
		if call1.From == call2.From {
			continue
		}

		out = append(out, DetectedEvent{
			EventType:  "frontrunning",
			Confidence: 0.75,
			Addresses:  []primitives.Address{call1.To, call1.From, call2.From},
			Data: map[string]any{
				"contract": call1.To.Hex(),
				"frontrunner": call1.From.Hex(),
				"victim":      call2.From.Hex(),
				"function":    hex.EncodeToString(call1.Input[0:4]),
			},
			Description: "Possible frontrunning detected",
			Severity:    Medium,
		})
	}
	return out
}
