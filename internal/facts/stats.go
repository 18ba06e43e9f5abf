package facts

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/calltree"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// Stats is the simple aggregate view over a tree plus its derived facts,
// per SPEC_FULL §9.1 — carried over from the original's stats.rs so callers
// get cheap summary counters without re-walking the tree themselves.
type Stats struct {
	TotalCalls      int
	MaxDepth        int
	FailedCalls     int
	CallsByType     map[string]int
	TransfersByType map[string]int
	TransferVolume  map[primitives.Address]*big.Int // token address -> sum of Amount
	ContractsByType map[string]int
	UniqueAddresses int
}

// BuildStats aggregates counters over tree, transfers and creations.
func BuildStats(tree *calltree.CallTree, transfers []TokenTransfer, creations []ContractCreation) Stats {
	s := Stats{
		TotalCalls:      tree.TotalCalls(),
		MaxDepth:        tree.MaxDepth(),
		FailedCalls:     len(tree.FailedCalls()),
		CallsByType:     make(map[string]int),
		TransfersByType: make(map[string]int),
		TransferVolume:  make(map[primitives.Address]*big.Int),
		ContractsByType: make(map[string]int),
		UniqueAddresses: len(tree.VisitedAddresses()),
	}

	tree.Preorder(func(n *calltree.CallNode) {
		s.CallsByType[n.CallType.String()]++
	})

	for _, t := range transfers {
		s.TransfersByType[t.TokenType.String()]++
		if t.Amount == nil {
			continue
		}
		sum, ok := s.TransferVolume[t.TokenAddress]
		if !ok {
			sum = big.NewInt(0)
			s.TransferVolume[t.TokenAddress] = sum
		}
		sum.Add(sum, t.Amount)
	}

	for _, c := range creations {
		s.ContractsByType[c.ContractType.String()]++
	}

	return s
}
