package specialized

import (
	"bytes"

	"github.com/angu-team/ethernity-deeptrace/internal/calltree"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

type addressPair struct {
	low  primitives.Address
	high primitives.Address
}

func unorderedPair(a, b primitives.Address) addressPair {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return addressPair{low: a, high: b}
	}
	return addressPair{low: b, high: a}
}

// ReentrancyDetector flags two addresses that call each other more than
// once in a trace where a deeper call routes back to the original caller,
// per the original's reentrancy.rs. Pairing is unordered: A calling B and
// B calling A both count toward the same reentrant loop.
type ReentrancyDetector struct{}

func (ReentrancyDetector) Name() string { return "ReentrancyDetector" }

func (ReentrancyDetector) DetectEvents(in Input) []DetectedEvent {
	if in.Tree == nil {
		return nil
	}

	var nodes []*calltree.CallNode
	in.Tree.Preorder(func(n *calltree.CallNode) { nodes = append(nodes, n) })

	counts := make(map[addressPair]int)
	for _, n := range nodes {
		if !n.HasTo {
			continue
		}
		counts[unorderedPair(n.From, n.To)]++
	}

	seen := make(map[addressPair]bool)
	var out []DetectedEvent
	for _, n := range nodes {
		if !n.HasTo {
			continue
		}
		pair := unorderedPair(n.From, n.To)
		if counts[pair] <= 1 || seen[pair] {
			continue
		}

		for _, other := range nodes {
			if other.Depth > n.Depth && other.HasTo && other.To == n.From {
				seen[pair] = true
				out = append(out, DetectedEvent{
					EventType:  "reentrancy",
					Confidence: 0.8,
					Addresses:  []primitives.Address{n.From, n.To},
					Data: map[string]any{
						"caller":    n.From.Hex(),
						"callee":    n.To.Hex(),
						"callCount": counts[pair],
					},
					Description: "Possible reentrancy detected",
					Severity:    Critical,
				})
				break
			}
		}
	}
	return out
}
