// Package events publishes pipeline results as CloudEvents-shaped envelopes
// for consumers that want a durable/loggable record rather than a live
// websocket push (internal/live covers the latter). Grounded directly on the
// teacher's internal/events/bus.go in-process pub/sub bus; CloudEvent's
// TenantID field (meaningless for a single-chain analytical pipeline) is
// dropped and ID generation switched from a timestamp string to
// google/uuid, matching the original's event-ID convention.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/attackdetector"
	"github.com/angu-team/ethernity-deeptrace/internal/impact"
)

const (
	TypeGroupFinalized  = "io.deeptrace.group.finalized"
	TypeAttackDetected  = "io.deeptrace.attack.detected"
	TypeImpactEvaluated = "io.deeptrace.impact.evaluated"
)

// CloudEvent is a CloudEvents 1.0 envelope around a pipeline result.
type CloudEvent struct {
	SpecVersion string                 `json:"specversion"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source"`
	ID          string                 `json:"id"`
	Time        time.Time              `json:"time"`
	Subject     string                 `json:"subject,omitempty"`
	Data        map[string]interface{} `json:"data"`
}

// NewCloudEvent creates a CloudEvents 1.0 compliant event with a uuid ID.
func NewCloudEvent(eventType, source, subject string, data map[string]interface{}) *CloudEvent {
	return &CloudEvent{
		SpecVersion: "1.0",
		Type:        eventType,
		Source:      source,
		ID:          uuid.NewString(),
		Time:        time.Now(),
		Subject:     subject,
		Data:        data,
	}
}

// JSON serializes the event.
func (ce *CloudEvent) JSON() ([]byte, error) {
	return json.Marshal(ce)
}

// SSEFormat returns the event formatted as a Server-Sent Events frame.
func (ce *CloudEvent) SSEFormat() ([]byte, error) {
	data, err := json.Marshal(ce)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\nid: %s\n\n", ce.Type, data, ce.ID)), nil
}

// EventBus is an in-process pub/sub bus for CloudEvent envelopes.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *CloudEvent
	allSubs     []chan *CloudEvent
	logger      *log.Logger
	bufferSize  int
	source      string
}

// NewEventBus creates a bus that stamps source on every emitted event.
func NewEventBus(source string) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan *CloudEvent),
		allSubs:     make([]chan *CloudEvent, 0),
		logger:      log.New(log.Writer(), "[events] ", log.LstdFlags),
		bufferSize:  100,
		source:      source,
	}
}

// Subscribe creates a channel receiving events of the given types. Pass no
// eventTypes to receive everything.
func (eb *EventBus) Subscribe(eventTypes ...string) chan *CloudEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan *CloudEvent, eb.bufferSize)
	if len(eventTypes) == 0 {
		eb.allSubs = append(eb.allSubs, ch)
	} else {
		for _, et := range eventTypes {
			eb.subscribers[et] = append(eb.subscribers[et], ch)
		}
	}
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (eb *EventBus) Unsubscribe(ch chan *CloudEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for et, subs := range eb.subscribers {
		filtered := make([]chan *CloudEvent, 0, len(subs))
		for _, s := range subs {
			if s != ch {
				filtered = append(filtered, s)
			}
		}
		eb.subscribers[et] = filtered
	}

	filtered := make([]chan *CloudEvent, 0, len(eb.allSubs))
	for _, s := range eb.allSubs {
		if s != ch {
			filtered = append(filtered, s)
		}
	}
	eb.allSubs = filtered

	close(ch)
}

// Publish sends event to every matching subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking the pipeline.
func (eb *EventBus) Publish(event *CloudEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
		}
	}
	for _, ch := range eb.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Emit builds and publishes a CloudEvent in one call.
func (eb *EventBus) Emit(eventType, subject string, data map[string]interface{}) {
	eb.Publish(NewCloudEvent(eventType, eb.source, subject, data))
}

// SubscriberCount returns the number of active subscription channels.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	count := len(eb.allSubs)
	for _, subs := range eb.subscribers {
		count += len(subs)
	}
	return count
}

// BroadcastGroupFinalized satisfies pipeline.Broadcaster, emitting a
// TypeGroupFinalized CloudEvent alongside whatever live websocket push the
// pipeline is also wired to.
func (eb *EventBus) BroadcastGroupFinalized(blockNumber uint64, group aggregator.TxGroup) {
	key := group.GroupKey.Hex()
	eb.Emit(TypeGroupFinalized, key, map[string]interface{}{
		"block_number": blockNumber,
		"group_key":    key,
		"tx_count":     len(group.Txs),
	})
}

// BroadcastAttackDetected satisfies pipeline.Broadcaster.
func (eb *EventBus) BroadcastAttackDetected(report attackdetector.AttackReport) {
	key := report.GroupKey.Hex()
	eb.Emit(TypeAttackDetected, key, map[string]interface{}{
		"group_key":         key,
		"attack_types":      report.AttackTypes,
		"attack_confidence": report.AttackConfidence,
		"reason":            report.Reason,
	})
}

// BroadcastImpactEvaluated satisfies pipeline.Broadcaster.
func (eb *EventBus) BroadcastImpactEvaluated(g impact.GroupImpact) {
	key := g.GroupID.Hex()
	eb.Emit(TypeImpactEvaluated, key, map[string]interface{}{
		"group_id":          key,
		"opportunity_score": g.OpportunityScore,
		"impact_certainty":  g.ImpactCertainty,
	})
}
