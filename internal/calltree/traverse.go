package calltree

import "github.com/angu-team/ethernity-deeptrace/internal/primitives"

// Preorder visits every node in pre-order (index order), invoking f once per
// node. Every node is visited exactly once (spec §8).
func (t *CallTree) Preorder(f func(*CallNode)) {
	var walk func(*CallNode)
	walk = func(n *CallNode) {
		f(n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
}

// Postorder visits every node in post-order, children before parent.
func (t *CallTree) Postorder(f func(*CallNode)) {
	var walk func(*CallNode)
	walk = func(n *CallNode) {
		for _, c := range n.Children {
			walk(c)
		}
		f(n)
	}
	if t.Root != nil {
		walk(t.Root)
	}
}

// FindByIndex returns the node with the given pre-order index, or nil.
func (t *CallTree) FindByIndex(index int) *CallNode {
	return t.byIndex[index]
}

// PathToNode returns the chain of indices from the root to the node at
// index, inclusive of both ends, or nil if index is absent. The returned
// path always starts with the root's index and ends with index (spec §4.1).
func (t *CallTree) PathToNode(index int) []int {
	target := t.byIndex[index]
	if target == nil {
		return nil
	}
	// Walk down from the root re-discovering the chain to target, since we
	// keep no parent pointers (spec §9).
	var path []int
	var find func(n *CallNode) bool
	find = func(n *CallNode) bool {
		path = append(path, n.Index)
		if n.Index == index {
			return true
		}
		for _, c := range n.Children {
			if find(c) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	if t.Root != nil {
		find(t.Root)
	}
	return path
}

// MaxDepth returns the greatest depth of any node in the tree (root is 0).
func (t *CallTree) MaxDepth() int { return t.maxDepth }

// TotalCalls returns the number of nodes in the tree.
func (t *CallTree) TotalCalls() int { return len(t.byIndex) }

// Filter returns every node for which predicate returns true, in pre-order.
func (t *CallTree) Filter(predicate func(*CallNode) bool) []*CallNode {
	var out []*CallNode
	t.Preorder(func(n *CallNode) {
		if predicate(n) {
			out = append(out, n)
		}
	})
	return out
}

// NodesAtDepth returns every node at the given depth, in pre-order.
func (t *CallTree) NodesAtDepth(depth int) []*CallNode {
	return t.Filter(func(n *CallNode) bool { return n.Depth == depth })
}

// FailedCalls returns every node whose Error is non-empty.
func (t *CallTree) FailedCalls() []*CallNode {
	return t.Filter(func(n *CallNode) bool { return n.Failed() })
}

// CallsToAddress returns every node whose To equals addr.
func (t *CallTree) CallsToAddress(addr primitives.Address) []*CallNode {
	return t.Filter(func(n *CallNode) bool { return n.HasTo && n.To == addr })
}

// CallsFromAddress returns every node whose From equals addr.
func (t *CallTree) CallsFromAddress(addr primitives.Address) []*CallNode {
	return t.Filter(func(n *CallNode) bool { return n.From == addr })
}

// VisitedAddresses returns the union of every from and non-empty to address
// in the tree (spec §3 invariant d).
func (t *CallTree) VisitedAddresses() map[primitives.Address]struct{} {
	out := make(map[primitives.Address]struct{})
	t.Preorder(func(n *CallNode) {
		out[n.From] = struct{}{}
		if n.HasTo {
			out[n.To] = struct{}{}
		}
	})
	return out
}
