// Package aggregator implements the TxAggregator (spec §4.5): it filters
// annotated transactions, groups them by a token-path/target/tag
// fingerprint, and tracks per-group ordering/contamination/direction
// invariants.
package aggregator

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/tagger"
)

// allowedTags is the membership vocabulary subset from spec §3's TxGroup
// invariant: at least one tag from this set must be present.
var allowedTags = map[tagger.Tag]struct{}{
	tagger.TagSwapV2:     {},
	tagger.TagSwapV3:     {},
	tagger.TagTokenMove:  {},
	tagger.TagRouterCall: {},
}

// AnnotatedTx is TxNatureTagger's output enriched with the timing/fee
// fields TxAggregator needs, per spec §3.
type AnnotatedTx struct {
	TxHash                primitives.Hash
	TokenPaths            []primitives.Address
	Targets               []primitives.Address
	Tags                  []tagger.Tag
	FirstSeen             time.Time
	GasPrice              uint64
	MaxPriorityFeePerGas  uint64
	HasMaxPriorityFee     bool
	Confidence            float64
}

// TxGroup is one token-path/target/tag-fingerprint group of annotated
// transactions, per spec §3.
type TxGroup struct {
	GroupKey              primitives.Hash
	TokenPaths            []primitives.Address
	Targets               []primitives.Address
	Txs                   []AnnotatedTx
	BlockNumber           uint64
	HasBlockNumber        bool
	DirectionSignature    string
	OrderingCertaintyScore float64
	Reorderable           bool
	Contaminated          bool
	WindowStart           time.Time
}

// EventKind distinguishes a PartialGroup from a FinalizedGroup emission.
type EventKind int

const (
	PartialGroup EventKind = iota
	FinalizedGroup
)

// AggregationEvent is emitted from AddTx and FinalizeEvents.
type AggregationEvent struct {
	Kind        EventKind
	GroupKey    primitives.Hash
	Txs         []AnnotatedTx
	WindowStart time.Time
	Complete    bool
}

// passesFilter implements spec §4.5's filter: reject unless at least two
// token paths, at least one target, and at least one allowed tag.
func passesFilter(tx AnnotatedTx) bool {
	if len(tx.TokenPaths) < 2 || len(tx.Targets) == 0 {
		return false
	}
	for _, t := range tx.Tags {
		if _, ok := allowedTags[t]; ok {
			return true
		}
	}
	return false
}

// groupKey computes keccak(token_paths‖targets‖sorted_tags.join(":")),
// per spec §4.5.
func groupKey(tx AnnotatedTx) primitives.Hash {
	var buf []byte
	for _, a := range tx.TokenPaths {
		buf = append(buf, a.Bytes()...)
	}
	for _, a := range tx.Targets {
		buf = append(buf, a.Bytes()...)
	}
	sorted := make([]string, len(tx.Tags))
	for i, t := range tx.Tags {
		sorted[i] = string(t)
	}
	sort.Strings(sorted)
	buf = append(buf, []byte(strings.Join(sorted, ":"))...)
	return primitives.Keccak256(buf)
}

func directionSignature(paths []primitives.Address) string {
	parts := make([]string, len(paths))
	for i, a := range paths {
		parts[i] = a.Hex()
	}
	return strings.Join(parts, "→")
}

// recomputeInvariants recomputes every derived field of g from g.Txs,
// per spec §4.5, after first sorting Txs by (first_seen, gas_price).
func recomputeInvariants(g *TxGroup) {
	sort.SliceStable(g.Txs, func(i, j int) bool {
		if !g.Txs[i].FirstSeen.Equal(g.Txs[j].FirstSeen) {
			return g.Txs[i].FirstSeen.Before(g.Txs[j].FirstSeen)
		}
		return g.Txs[i].GasPrice < g.Txs[j].GasPrice
	})

	if len(g.Txs) == 0 {
		return
	}

	span := g.Txs[len(g.Txs)-1].FirstSeen.Sub(g.Txs[0].FirstSeen)
	if span <= 30*time.Second {
		g.OrderingCertaintyScore = 1.0
	} else {
		g.OrderingCertaintyScore = 0.7
	}
	g.Reorderable = g.OrderingCertaintyScore < 0.6

	g.Contaminated = stddevConfidence(g.Txs) > 0.2
	g.DirectionSignature = directionSignature(g.TokenPaths)
}

func stddevConfidence(txs []AnnotatedTx) float64 {
	if len(txs) == 0 {
		return 0
	}
	var mean float64
	for _, tx := range txs {
		mean += tx.Confidence
	}
	mean /= float64(len(txs))

	var variance float64
	for _, tx := range txs {
		d := tx.Confidence - mean
		variance += d * d
	}
	variance /= float64(len(txs))
	return math.Sqrt(variance)
}
