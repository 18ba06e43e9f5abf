package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/attackdetector"
	"github.com/angu-team/ethernity-deeptrace/internal/impact"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

func TestEventBusDeliversToTypedSubscriber(t *testing.T) {
	bus := NewEventBus("deeptrace-test")
	ch := bus.Subscribe(TypeAttackDetected)
	defer bus.Unsubscribe(ch)

	bus.Emit(TypeAttackDetected, "0xabc", map[string]interface{}{"reason": "sandwich"})

	select {
	case ev := <-ch:
		require.Equal(t, TypeAttackDetected, ev.Type)
		require.Equal(t, "deeptrace-test", ev.Source)
		require.NotEmpty(t, ev.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBusAllSubscriberReceivesEveryType(t *testing.T) {
	bus := NewEventBus("deeptrace-test")
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	bus.Emit(TypeGroupFinalized, "0x1", nil)
	bus.Emit(TypeImpactEvaluated, "0x2", nil)

	require.Equal(t, TypeGroupFinalized, (<-ch).Type)
	require.Equal(t, TypeImpactEvaluated, (<-ch).Type)
}

func TestEventBusSubscriberCountTracksSubscribeUnsubscribe(t *testing.T) {
	bus := NewEventBus("deeptrace-test")
	require.Equal(t, 0, bus.SubscriberCount())

	ch := bus.Subscribe(TypeGroupFinalized)
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(ch)
	require.Equal(t, 0, bus.SubscriberCount())
}

func TestEventBusBroadcastMethodsSatisfyPipelineBroadcaster(t *testing.T) {
	bus := NewEventBus("deeptrace-test")
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	group := aggregator.TxGroup{GroupKey: primitives.Hash{0x01}}
	bus.BroadcastGroupFinalized(42, group)
	ev := <-ch
	require.Equal(t, TypeGroupFinalized, ev.Type)
	require.Equal(t, uint64(42), ev.Data["block_number"])

	report := attackdetector.AttackReport{GroupKey: primitives.Hash{0x02}, Reason: "dominance"}
	bus.BroadcastAttackDetected(report)
	ev = <-ch
	require.Equal(t, TypeAttackDetected, ev.Type)
	require.Equal(t, "dominance", ev.Data["reason"])

	gi := impact.GroupImpact{GroupID: primitives.Hash{0x03}, OpportunityScore: 0.5}
	bus.BroadcastImpactEvaluated(gi)
	ev = <-ch
	require.Equal(t, TypeImpactEvaluated, ev.Type)
	require.Equal(t, 0.5, ev.Data["opportunity_score"])
}
