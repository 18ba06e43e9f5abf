package aggregator

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// DefaultMaxGroups bounds memory under 10^5 unique groups (spec §4.5).
const DefaultMaxGroups = 100_000

const lowConfidenceThreshold = 0.5
const minHighConfidenceMembers = 2

type groupEntry struct {
	key     primitives.Hash
	group   *TxGroup
	element *list.Element
}

// Aggregator holds every live TxGroup and the insertion-order list used
// for MAX_GROUPS eviction. All operations are safe for concurrent use from
// multiple producers (spec §4.5).
type Aggregator struct {
	mu        sync.Mutex
	maxGroups int
	groups    map[primitives.Hash]*groupEntry
	order     *list.List // front = most recently inserted, back = oldest
}

// New builds an Aggregator bounded to maxGroups concurrent groups. A
// non-positive maxGroups defaults to DefaultMaxGroups.
func New(maxGroups int) *Aggregator {
	if maxGroups <= 0 {
		maxGroups = DefaultMaxGroups
	}
	return &Aggregator{
		maxGroups: maxGroups,
		groups:    make(map[primitives.Hash]*groupEntry),
		order:     list.New(),
	}
}

// AddTx implements spec §4.5: filters tx, applies the low-confidence
// acceptance policy, inserts tx into its group (creating the group if
// needed, evicting the oldest group on overflow), and returns the
// resulting PartialGroup event. A filtered-out or dropped tx yields a
// zero-value event with ok=false.
func (a *Aggregator) AddTx(tx AnnotatedTx) (AggregationEvent, bool) {
	if !passesFilter(tx) {
		return AggregationEvent{}, false
	}
	key := groupKey(tx)

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, exists := a.groups[key]
	if !exists {
		if tx.Confidence < lowConfidenceThreshold {
			// A brand-new group cannot already contain 2 high-confidence
			// members, so a low-confidence tx starting a group is dropped.
			return AggregationEvent{}, false
		}
		group := &TxGroup{
			GroupKey:    key,
			TokenPaths:  tx.TokenPaths,
			Targets:     tx.Targets,
			WindowStart: time.Now(),
		}
		el := a.order.PushFront(key)
		entry = &groupEntry{key: key, group: group, element: el}
		a.groups[key] = entry
		a.evictIfOverflowingLocked()
	} else {
		if tx.Confidence < lowConfidenceThreshold && countHighConfidence(entry.group.Txs) < minHighConfidenceMembers {
			return AggregationEvent{}, false
		}
		a.order.MoveToFront(entry.element)
	}

	entry.group.Txs = append(entry.group.Txs, tx)
	recomputeInvariants(entry.group)

	return AggregationEvent{
		Kind:        PartialGroup,
		GroupKey:    key,
		Txs:         append([]AnnotatedTx(nil), entry.group.Txs...),
		WindowStart: entry.group.WindowStart,
	}, true
}

func countHighConfidence(txs []AnnotatedTx) int {
	n := 0
	for _, tx := range txs {
		if tx.Confidence >= lowConfidenceThreshold {
			n++
		}
	}
	return n
}

// Len returns the number of live groups, for the supervisor's step-6
// overflow-finalization check (spec §4.6).
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// Group returns a copy of the current state of the group keyed by key, or
// ok=false if no such group is live.
func (a *Aggregator) Group(key primitives.Hash) (TxGroup, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.groups[key]
	if !ok {
		return TxGroup{}, false
	}
	g := *entry.group
	g.Txs = append([]AnnotatedTx(nil), entry.group.Txs...)
	return g, true
}

// evictIfOverflowingLocked drops the least-recently-inserted group when
// the registry exceeds maxGroups. Must be called with a.mu held.
func (a *Aggregator) evictIfOverflowingLocked() {
	for len(a.groups) > a.maxGroups {
		oldest := a.order.Back()
		if oldest == nil {
			return
		}
		key := oldest.Value.(primitives.Hash)
		a.order.Remove(oldest)
		delete(a.groups, key)
	}
}

// FinalizeEvents emits one FinalizedGroup event per live group, marked
// complete per the complete argument, per spec §4.5. All groups are
// removed from the registry after finalization.
func (a *Aggregator) FinalizeEvents(complete bool) []AggregationEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	events := make([]AggregationEvent, 0, len(a.groups))
	for key, entry := range a.groups {
		events = append(events, AggregationEvent{
			Kind:     FinalizedGroup,
			GroupKey: key,
			Txs:      append([]AnnotatedTx(nil), entry.group.Txs...),
			Complete: complete,
		})
	}
	a.groups = make(map[primitives.Hash]*groupEntry)
	a.order.Init()
	return events
}

// ProcessStreamEvents consumes rx, emitting a PartialGroup per accepted
// ingestion, and finalizes every live group onto tx once rx closes.
func (a *Aggregator) ProcessStreamEvents(ctx context.Context, rx <-chan AnnotatedTx, tx chan<- AggregationEvent) {
	for {
		select {
		case t, ok := <-rx:
			if !ok {
				for _, ev := range a.FinalizeEvents(true) {
					select {
					case tx <- ev:
					case <-ctx.Done():
						return
					}
				}
				return
			}
			if ev, ok := a.AddTx(t); ok {
				select {
				case tx <- ev:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
