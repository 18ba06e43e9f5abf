package memory

import (
	"sync"
	"time"
)

// NamedStats is one registry member's stats, tagged by the name it was
// registered under and whether it's a cache or a buffer pool.
type NamedStats struct {
	Name       string
	IsCache    bool
	Cache      CacheStats
	BufferPool BufferPoolStats
}

// Snapshot is one point-in-time capture of every registered member's
// stats, taken by the registry's periodic snapshot task.
type Snapshot struct {
	TakenAt time.Time
	Members []NamedStats
}

type statsProvider interface {
	snapshot(name string) NamedStats
}

type cacheHandle[V any] struct{ c *Cache[V] }

func (h cacheHandle[V]) snapshot(name string) NamedStats {
	return NamedStats{Name: name, IsCache: true, Cache: h.c.Stats()}
}

type bufferPoolHandle struct{ p *BufferPool }

func (h bufferPoolHandle) snapshot(name string) NamedStats {
	return NamedStats{Name: name, IsCache: false, BufferPool: h.p.Stats()}
}

// Registry is keyed-by-name storage of caches and buffer pools (spec
// §4.3). It is type-erased: callers register concrete *Cache[V] and
// *BufferPool instances under a name and the registry tracks only their
// stats-producing interface from then on.
type Registry struct {
	mu      sync.RWMutex
	members map[string]statsProvider

	snapMu     sync.Mutex
	history    []Snapshot
	maxHistory int
	stopOnce   sync.Once
	done       chan struct{}
}

// NewRegistry builds an empty registry whose snapshot history is bounded
// to maxHistory entries.
func NewRegistry(maxHistory int) *Registry {
	if maxHistory < 1 {
		maxHistory = 1
	}
	return &Registry{
		members:    make(map[string]statsProvider),
		maxHistory: maxHistory,
		done:       make(chan struct{}),
	}
}

// RegisterCache attaches c to the registry under name.
func RegisterCache[V any](r *Registry, name string, c *Cache[V]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[name] = cacheHandle[V]{c: c}
}

// RegisterBufferPool attaches p to the registry under name.
func (r *Registry) RegisterBufferPool(name string, p *BufferPool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[name] = bufferPoolHandle{p: p}
}

// AggregateStats returns the current stats of every registered member.
func (r *Registry) AggregateStats() []NamedStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NamedStats, 0, len(r.members))
	for name, m := range r.members {
		out = append(out, m.snapshot(name))
	}
	return out
}

// History returns the bounded snapshot history taken so far, oldest first.
func (r *Registry) History() []Snapshot {
	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	out := make([]Snapshot, len(r.history))
	copy(out, r.history)
	return out
}

// RunSnapshotter starts a background ticker that captures a Snapshot every
// interval until Stop is called, matching the teacher's
// ticker-plus-done-channel idiom (internal/fabric/websocket.go's ping
// loop).
func (r *Registry) RunSnapshotter(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.takeSnapshot()
			case <-r.done:
				return
			}
		}
	}()
}

// Stop halts the background snapshotter, if running.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Registry) takeSnapshot() {
	snap := Snapshot{TakenAt: time.Now(), Members: r.AggregateStats()}

	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	r.history = append(r.history, snap)
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
}
