// Package patterns implements the Pattern Detectors (spec §2): stateless
// passes over a trace's derived facts that recognize ERC20/721 creation,
// token swaps, lending, flash loans, MEV arbitrage, rug pulls, and
// governance activity.
package patterns

import (
	"github.com/angu-team/ethernity-deeptrace/internal/calltree"
	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// PatternType enumerates the pattern families a Detector can emit.
type PatternType string

const (
	PatternErc20Creation  PatternType = "erc20_creation"
	PatternErc721Creation PatternType = "erc721_creation"
	PatternTokenSwap      PatternType = "token_swap"
	PatternLiquidity      PatternType = "liquidity"
	PatternFlashLoan      PatternType = "flash_loan"
	PatternArbitrage      PatternType = "arbitrage"
	PatternRugPull        PatternType = "rug_pull"
	PatternGovernance     PatternType = "governance"
)

// DetectedPattern is one Detector's finding, per spec §3.
type DetectedPattern struct {
	Type        PatternType
	Confidence  float64
	Addresses   []primitives.Address
	Data        map[string]any
	Description string
}

// Input bundles the derived facts every pattern Detector reads; all are
// read-only views produced upstream by calltree/facts.
type Input struct {
	Tree              *calltree.CallTree
	TokenTransfers    []facts.TokenTransfer
	ContractCreations []facts.ContractCreation
}

// Detector is one stateless pattern-matching pass over Input.
type Detector interface {
	PatternType() PatternType
	Detect(in Input) []DetectedPattern
	MinConfidence() float64
}

// baseMinConfidence is the default detector-acceptance threshold
// (mirrors the teacher pattern's 0.7 default).
const baseMinConfidence = 0.7

// Detectors returns every pattern Detector in the package, matching the
// original pattern registry's fixed membership.
func Detectors() []Detector {
	return []Detector{
		Erc20Detector{},
		Erc721Detector{},
		DexDetector{},
		LendingDetector{},
		FlashLoanDetector{},
		MevDetector{},
		RugPullDetector{},
		GovernanceDetector{},
	}
}

// DetectAll runs every registered Detector over in and concatenates the
// results, in registration order.
func DetectAll(in Input) []DetectedPattern {
	var out []DetectedPattern
	for _, d := range Detectors() {
		out = append(out, d.Detect(in)...)
	}
	return out
}
