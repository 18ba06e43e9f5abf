package memory

import "sync"

// BufferPoolStats are the counters spec §4.3 requires a buffer pool to
// expose alongside the cache's.
type BufferPoolStats struct {
	Allocations uint64 // fresh slices handed out because the pool was empty
	Hits        uint64 // reused slices handed out from the pool
	Returns     uint64 // buffers accepted back into the pool
	Drops       uint64 // buffers discarded because the pool was full
}

// BufferPool is a fixed-capacity pool of reusable byte buffers with a
// preferred allocation size hint. sync.Pool is deliberately not used: its
// contents can be dropped by the GC at any time, which would make the
// pool's own hit/allocation/drop counters meaningless, and spec §4.3 requires a
// hard "fixed max count" rather than GC-driven sizing.
type BufferPool struct {
	mu          sync.Mutex
	maxCount    int
	preferredCap int
	free        [][]byte
	stats       BufferPoolStats
}

// NewBufferPool builds a pool holding at most maxCount buffers, each newly
// allocated with preferredCap capacity.
func NewBufferPool(maxCount, preferredCap int) *BufferPool {
	if maxCount < 0 {
		maxCount = 0
	}
	if preferredCap < 1 {
		preferredCap = 1
	}
	return &BufferPool{maxCount: maxCount, preferredCap: preferredCap}
}

// GetBuffer returns a cleared buffer from the pool if one is available, or
// a fresh allocation otherwise (counted as an allocation).
func (p *BufferPool) GetBuffer() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		p.stats.Allocations++
		return make([]byte, 0, p.preferredCap)
	}
	b := p.free[n-1]
	p.free = p.free[:n-1]
	p.stats.Hits++
	return b[:0]
}

// ReturnBuffer stores b cleared for reuse, or drops it if the pool is full.
func (p *BufferPool) ReturnBuffer(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) >= p.maxCount {
		p.stats.Drops++
		return
	}
	p.free = append(p.free, b[:0])
	p.stats.Returns++
}

// Stats returns a snapshot copy of the pool's counters.
func (p *BufferPool) Stats() BufferPoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
