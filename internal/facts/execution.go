package facts

import (
	"github.com/angu-team/ethernity-deeptrace/internal/calltree"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// ExecutionStep is one flattened pre-order step of a call tree, per spec
// §4.2's execution path extraction.
type ExecutionStep struct {
	CallIndex int
	Depth     int
	From      primitives.Address
	To        primitives.Address
	HasTo     bool
	CallType  string
	Failed    bool
}

// BuildExecutionPath flattens tree into pre-order steps, stopping once
// maxDepth is exceeded (a non-positive maxDepth means unbounded), per spec
// §4.2: deep traces are truncated rather than fully materialized.
func BuildExecutionPath(tree *calltree.CallTree, maxDepth int) []ExecutionStep {
	var out []ExecutionStep
	tree.Preorder(func(n *calltree.CallNode) {
		if maxDepth > 0 && n.Depth > maxDepth {
			return
		}
		out = append(out, ExecutionStep{
			CallIndex: n.Index,
			Depth:     n.Depth,
			From:      n.From,
			To:        n.To,
			HasTo:     n.HasTo,
			CallType:  n.CallType.String(),
			Failed:    n.Failed(),
		})
	})
	return out
}
