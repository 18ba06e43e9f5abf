// Package live broadcasts pipeline results over a websocket hub for
// operator dashboards (spec §4.13), directly repurposing
// internal/websocket/dag_streamer.go's register/unregister/broadcast
// channel triad: the teacher streams DAG visualization node/edge events,
// this streams group-finalized/attack-detected/impact-evaluated events
// over the same hub shape.
package live

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/attackdetector"
	"github.com/angu-team/ethernity-deeptrace/internal/impact"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// Event is one message broadcast to every connected client.
type Event struct {
	Type      string                 `json:"type"` // "group_finalized", "attack_detected", "impact_evaluated"
	GroupKey  string                 `json:"group_key"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Hub manages websocket connections for live pipeline output, mirroring
// DAGStreamer's register/unregister/broadcast loop.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewHub builds a Hub. Run must be started in its own goroutine before
// any client connects.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run drives the hub's register/unregister/broadcast loop forever; it
// takes no context and has no shutdown signal, matching DAGStreamer.Run.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("live: client connected", "total", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()
			slog.Info("live: client disconnected", "total", len(h.clients))

		case event := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if err := client.WriteJSON(event); err != nil {
					slog.Warn("live: write failed, dropping client", "error", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleWebSocket upgrades r to a websocket connection and registers it
// with the hub, keeping it open until the client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("live: upgrade failed", "error", err)
		return
	}
	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastEvent stamps event.Timestamp and queues it for every
// connected client.
func (h *Hub) BroadcastEvent(event Event) {
	event.Timestamp = time.Now()
	h.broadcast <- event
}

// BroadcastGroupFinalized announces a newly finalized TxGroup.
func (h *Hub) BroadcastGroupFinalized(blockNumber uint64, group aggregator.TxGroup) {
	h.BroadcastEvent(Event{
		Type:     "group_finalized",
		GroupKey: group.GroupKey.Hex(),
		Data: map[string]interface{}{
			"block_number":   blockNumber,
			"tx_count":       len(group.Txs),
			"contaminated":   group.Contaminated,
			"reorderable":    group.Reorderable,
			"direction":      group.DirectionSignature,
			"window_start":   group.WindowStart,
			"ordering_score": group.OrderingCertaintyScore,
		},
	})
}

// BroadcastAttackDetected announces an AttackDetector verdict.
func (h *Hub) BroadcastAttackDetected(report attackdetector.AttackReport) {
	h.BroadcastEvent(Event{
		Type:     "attack_detected",
		GroupKey: report.GroupKey.Hex(),
		Data: map[string]interface{}{
			"attack_types":      report.AttackTypes,
			"attack_confidence": report.AttackConfidence,
			"dominance_score":   report.DominanceScore,
			"participants":      hexHashes(report.Participants),
			"reason":            report.Reason,
		},
	})
}

// BroadcastImpactEvaluated announces a StateImpactEvaluator group-level
// result.
func (h *Hub) BroadcastImpactEvaluated(g impact.GroupImpact) {
	h.BroadcastEvent(Event{
		Type:     "impact_evaluated",
		GroupKey: g.GroupID.Hex(),
		Data: map[string]interface{}{
			"opportunity_score":       g.OpportunityScore,
			"expected_profit_backrun": g.ExpectedProfitBackrun,
			"state_confidence":        g.StateConfidence,
			"impact_certainty":        g.ImpactCertainty,
			"reorg_risk_level":        g.ReorgRiskLevel,
			"victim_count":            len(g.Victims),
		},
	})
}

func hexHashes(hashes []primitives.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out
}
