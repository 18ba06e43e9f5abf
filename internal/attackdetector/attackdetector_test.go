package attackdetector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/tagger"
)

func hashByte(b byte) primitives.Hash {
	var h primitives.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func baseTx(hash byte, firstSeenSec int64, gasPrice, maxPriorityFee uint64) aggregator.AnnotatedTx {
	return aggregator.AnnotatedTx{
		TxHash:               hashByte(hash),
		TokenPaths:           []primitives.Address{{0x01}, {0x02}},
		Targets:              []primitives.Address{{0xaa}},
		Tags:                 []tagger.Tag{tagger.TagSwapV2},
		FirstSeen:            time.Unix(firstSeenSec, 0),
		GasPrice:             gasPrice,
		MaxPriorityFeePerGas: maxPriorityFee,
		HasMaxPriorityFee:    true,
		Confidence:           0.9,
	}
}

func TestAnalyzeGroupSandwichScenarioS1(t *testing.T) {
	group := aggregator.TxGroup{
		GroupKey: hashByte(0x01),
		Txs: []aggregator.AnnotatedTx{
			baseTx(1, 1, 20, 2),
			baseTx(2, 2, 10, 1),
			baseTx(3, 3, 19, 2),
		},
	}
	d := New(0, 10)
	report, ok := d.AnalyzeGroup(group)
	require.True(t, ok)
	require.Contains(t, report.AttackTypes, AttackSandwich)
	require.InDelta(t, 0.91, report.AttackConfidence, 1e-9)
	require.True(t, report.HasDominanceScore)
	require.Greater(t, report.DominanceScore, 0.6)
}

func TestAnalyzeGroupFrontrunScenarioS2(t *testing.T) {
	group := aggregator.TxGroup{
		GroupKey: hashByte(0x02),
		Txs: []aggregator.AnnotatedTx{
			baseTx(1, 1, 20, 2),
			baseTx(2, 2, 10, 1),
		},
	}
	d := New(0, 10)
	report, ok := d.AnalyzeGroup(group)
	require.True(t, ok)
	require.Contains(t, report.AttackTypes, AttackFrontrun)
	require.InDelta(t, 0.667, report.AttackConfidence, 1e-3)
	require.InDelta(t, 0.667, report.DominanceScore, 1e-3)
}

func TestAnalyzeGroupRequiresAtLeastTwoTxsWithoutExtensions(t *testing.T) {
	group := aggregator.TxGroup{GroupKey: hashByte(0x03), Txs: []aggregator.AnnotatedTx{baseTx(1, 1, 20, 2)}}
	d := New(0, 10)
	_, ok := d.AnalyzeGroup(group)
	require.False(t, ok)
}

func TestAnalyzeGroupSpoofLowConfidenceReason(t *testing.T) {
	tx1 := baseTx(1, 1, 10, 1)
	tx2 := baseTx(2, 2, 10, 1)
	tx2.Tags = []tagger.Tag{tagger.TagSwapV2, "this-is-a-very-long-tag-value"}
	group := aggregator.TxGroup{GroupKey: hashByte(0x04), Txs: []aggregator.AnnotatedTx{tx1, tx2}}

	d := New(0, 10)
	report, ok := d.AnalyzeGroup(group)
	require.True(t, ok)
	require.Contains(t, report.AttackTypes, AttackSpoof)
	require.False(t, report.AttackDetected)
	require.Equal(t, reasonLowConfidence, report.Reason)
}

func TestAnalyzeGroupSpoofHighConfidenceDetected(t *testing.T) {
	// Equal effective priority across all three avoids sandwich/frontrun
	// matching first; tx3's gas_price is the outlier driving high_gas.
	tx1 := baseTx(1, 1, 10, 1)
	tx2 := baseTx(2, 2, 10, 1)
	tx3 := baseTx(3, 3, 100, 1)
	tx3.Tags = []tagger.Tag{tagger.TagSwapV2, "this-is-a-very-long-tag-value"}
	group := aggregator.TxGroup{GroupKey: hashByte(0x05), Txs: []aggregator.AnnotatedTx{tx1, tx2, tx3}}

	d := New(0, 10)
	report, ok := d.AnalyzeGroup(group)
	require.True(t, ok)
	require.Contains(t, report.AttackTypes, AttackSpoof)
	require.True(t, report.AttackDetected)
	require.GreaterOrEqual(t, report.AttackConfidence, 0.8)
}

func TestAnalyzeGroupBackrunRequiresMoreThanTwoTxs(t *testing.T) {
	group := aggregator.TxGroup{
		GroupKey: hashByte(0x06),
		Txs: []aggregator.AnnotatedTx{
			baseTx(1, 1, 15, 1),
			baseTx(2, 2, 15, 1),
			baseTx(3, 3, 40, 4),
		},
	}
	d := New(0, 10)
	report, ok := d.AnalyzeGroup(group)
	require.True(t, ok)
	require.Contains(t, report.AttackTypes, AttackBackrun)
	require.True(t, report.AttackDetected)
	require.InDelta(t, 0.7, report.AttackConfidence, 1e-9)
}

func TestAnalyzeGroupExtensionsAreAdditive(t *testing.T) {
	tx1 := baseTx(1, 1, 20, 2)
	tx2 := baseTx(2, 2, 20, 2)
	tx1.Tags = []tagger.Tag{tagger.TagRouterCall, tagger.TagCrossChain}
	tx2.Tags = []tagger.Tag{tagger.TagRouterCall, tagger.TagCrossChain}
	group := aggregator.TxGroup{GroupKey: hashByte(0x07), Txs: []aggregator.AnnotatedTx{tx1, tx2}}

	d := New(1, 10)
	report, ok := d.AnalyzeGroup(group)
	require.True(t, ok)
	require.Contains(t, report.AttackTypes, AttackCrossChain)
	require.True(t, report.AttackDetected)
}

func TestAnalyzeGroupMultiTokenExtensionOnFourTokens(t *testing.T) {
	tx1 := baseTx(1, 1, 20, 2)
	tx2 := baseTx(2, 2, 20, 2)
	tx1.TokenPaths = []primitives.Address{{0x01}, {0x02}, {0x03}, {0x04}}
	tx2.TokenPaths = tx1.TokenPaths
	group := aggregator.TxGroup{
		GroupKey:   hashByte(0x08),
		TokenPaths: tx1.TokenPaths,
		Txs:        []aggregator.AnnotatedTx{tx1, tx2},
	}
	d := New(1, 10)
	report, ok := d.AnalyzeGroup(group)
	require.True(t, ok)
	require.Contains(t, report.AttackTypes, AttackMultiToken)
}

func TestAnalyzeGroupSandwichPrecedesFrontrunInDispatchOrder(t *testing.T) {
	group := aggregator.TxGroup{
		GroupKey: hashByte(0x09),
		Txs: []aggregator.AnnotatedTx{
			baseTx(1, 1, 30, 3),
			baseTx(2, 2, 10, 1),
			baseTx(3, 3, 20, 4),
			baseTx(4, 4, 40, 4),
		},
	}
	d := New(0, 10)
	report, ok := d.AnalyzeGroup(group)
	require.True(t, ok)
	require.Equal(t, AttackSandwich, report.AttackTypes[0])
}
