package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/tagger"
)

func addr(s string) primitives.Address {
	a, _ := primitives.ParseAddress(s)
	return a
}

func sampleTx(confidence float64, gasPrice uint64, seen time.Time) AnnotatedTx {
	return AnnotatedTx{
		TxHash:     primitives.ParseHash("0x01"),
		TokenPaths: []primitives.Address{addr("0x0000000000000000000000000000000000aaaa"), addr("0x0000000000000000000000000000000000bbbb")},
		Targets:    []primitives.Address{addr("0x0000000000000000000000000000000000cccc")},
		Tags:       []tagger.Tag{tagger.TagSwapV2},
		FirstSeen:  seen,
		GasPrice:   gasPrice,
		Confidence: confidence,
	}
}

func TestFilterRejectsInsufficientPaths(t *testing.T) {
	tx := sampleTx(0.9, 100, time.Now())
	tx.TokenPaths = tx.TokenPaths[:1]
	a := New(10)
	_, ok := a.AddTx(tx)
	require.False(t, ok)
}

func TestLowConfidenceDroppedWithoutTwoHighConfidenceMembers(t *testing.T) {
	a := New(10)
	now := time.Now()
	_, ok := a.AddTx(sampleTx(0.3, 100, now))
	require.False(t, ok, "low confidence tx cannot start a group")

	_, ok = a.AddTx(sampleTx(0.9, 100, now))
	require.True(t, ok)
	_, ok = a.AddTx(sampleTx(0.3, 100, now))
	require.False(t, ok, "group has only 1 high-confidence member so far")

	_, ok = a.AddTx(sampleTx(0.9, 100, now))
	require.True(t, ok)
	ev, ok := a.AddTx(sampleTx(0.3, 100, now))
	require.True(t, ok, "group now has 2 high-confidence members")
	require.Len(t, ev.Txs, 3)
}

func TestOrderingCertaintyDropsBelowThresholdPastSpan(t *testing.T) {
	a := New(10)
	base := time.Now()
	ev, _ := a.AddTx(sampleTx(0.9, 100, base))
	a.AddTx(sampleTx(0.9, 50, base.Add(40*time.Second)))

	group, ok := a.Group(ev.GroupKey)
	require.True(t, ok)
	require.InDelta(t, 0.7, group.OrderingCertaintyScore, 1e-9)
	require.False(t, group.Reorderable, "0.7 is not below the 0.6 reorderable cutoff")
	require.Len(t, group.Txs, 2)
	// sorted by (first_seen, gas_price) ascending: base (gas 100) before base+40s (gas 50)
	require.Equal(t, uint64(100), group.Txs[0].GasPrice)
}

func TestContaminationFlaggedOnHighConfidenceVariance(t *testing.T) {
	a := New(10)
	base := time.Now()
	a.AddTx(sampleTx(0.9, 1, base))
	a.AddTx(sampleTx(0.9, 1, base))
	ev, _ := a.AddTx(sampleTx(0.1, 1, base))

	group, ok := a.Group(ev.GroupKey)
	require.True(t, ok)
	require.True(t, group.Contaminated)
}

func TestGroupKeyStableAcrossTagOrder(t *testing.T) {
	tx1 := sampleTx(0.9, 1, time.Now())
	tx1.Tags = []tagger.Tag{tagger.TagSwapV2, tagger.TagRouterCall}
	tx2 := tx1
	tx2.Tags = []tagger.Tag{tagger.TagRouterCall, tagger.TagSwapV2}
	require.Equal(t, groupKey(tx1), groupKey(tx2))
}

func TestMaxGroupsEvictsOldest(t *testing.T) {
	a := New(1)
	t1 := sampleTx(0.9, 1, time.Now())
	t1.Targets = []primitives.Address{addr("0x0000000000000000000000000000000000d001")}
	_, ok := a.AddTx(t1)
	require.True(t, ok)

	t2 := sampleTx(0.9, 1, time.Now())
	t2.Targets = []primitives.Address{addr("0x0000000000000000000000000000000000d002")}
	_, ok = a.AddTx(t2)
	require.True(t, ok)

	events := a.FinalizeEvents(true)
	require.Len(t, events, 1)
}

func TestFinalizeEventsClearsRegistry(t *testing.T) {
	a := New(10)
	a.AddTx(sampleTx(0.9, 1, time.Now()))
	events := a.FinalizeEvents(true)
	require.Len(t, events, 1)
	require.True(t, events[0].Complete)

	events = a.FinalizeEvents(true)
	require.Empty(t, events)
}
