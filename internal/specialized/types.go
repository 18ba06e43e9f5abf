// Package specialized implements the Specialized Detectors (spec §2):
// cross-fact heuristics over a trace's derived facts producing severity-
// ranked DetectedEvent verdicts (sandwich, frontrun, reentrancy, price
// manipulation, suspicious liquidation).
package specialized

import (
	"github.com/angu-team/ethernity-deeptrace/internal/calltree"
	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// EventSeverity ranks a DetectedEvent's impact, per spec §3.
type EventSeverity int

const (
	Low EventSeverity = iota
	Medium
	High
	Critical
)

// DetectedEvent is one specialized Detector's finding, per spec §3.
type DetectedEvent struct {
	EventType   string
	Confidence  float64
	Addresses   []primitives.Address
	Data        map[string]any
	Description string
	Severity    EventSeverity
}

// Input bundles the derived facts every specialized Detector reads.
type Input struct {
	Tree           *calltree.CallTree
	TokenTransfers []facts.TokenTransfer
}

// Detector is one cross-fact heuristic pass over Input.
type Detector interface {
	Name() string
	DetectEvents(in Input) []DetectedEvent
}

// Detectors returns every specialized Detector, matching the original
// DetectorManager's fixed membership.
func Detectors() []Detector {
	return []Detector{
		SandwichAttackDetector{},
		FrontrunningDetector{},
		ReentrancyDetector{},
		PriceManipulationDetector{},
		SuspiciousLiquidationDetector{},
	}
}

// DetectAll runs every registered Detector over in and concatenates the
// results, in registration order.
func DetectAll(in Input) []DetectedEvent {
	var out []DetectedEvent
	for _, d := range Detectors() {
		out = append(out, d.DetectEvents(in)...)
	}
	return out
}
