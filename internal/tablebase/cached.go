package tablebase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/loldot/lolbot/internal/board"
	"github.com/loldot/lolbot/internal/storage"
)

// CachedProber memoizes verdicts of another prober in memory. Entries are
// keyed by the position's material key, so castling rights, en passant and
// clocks do not split the cache. Errors are never cached.
//
// When the cache is full, half of it is dropped before inserting.
type CachedProber struct {
	inner    Prober
	capacity int

	mu      sync.RWMutex
	entries map[uint64]ProbeResult

	hits, misses, writes atomic.Uint64
}

// NewCachedProber wraps inner with room for capacity verdicts.
func NewCachedProber(inner Prober, capacity int) *CachedProber {
	capacity = max(capacity, 2)
	return &CachedProber{
		inner:    inner,
		capacity: capacity,
		entries:  make(map[uint64]ProbeResult, capacity),
	}
}

func (cp *CachedProber) lookup(key uint64) (ProbeResult, bool) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	res, ok := cp.entries[key]
	return res, ok
}

func (cp *CachedProber) store(key uint64, res ProbeResult) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if _, ok := cp.entries[key]; !ok && len(cp.entries) >= cp.capacity {
		drop := len(cp.entries) / 2
		for k := range cp.entries {
			if drop == 0 {
				break
			}
			delete(cp.entries, k)
			drop--
		}
	}
	cp.entries[key] = res
	cp.writes.Add(1)
}

func (cp *CachedProber) Probe(ctx context.Context, pos *board.Position) (ProbeResult, error) {
	key := pos.MaterialKey()
	if res, ok := cp.lookup(key); ok {
		cp.hits.Add(1)
		return res, nil
	}
	cp.misses.Add(1)

	res, err := cp.inner.Probe(ctx, pos)
	if err != nil {
		return res, err
	}
	cp.store(key, res)
	return res, nil
}

func (cp *CachedProber) MaxPieces() int {
	return cp.inner.MaxPieces()
}

// Stats returns the counters since creation or the last Clear.
func (cp *CachedProber) Stats() storage.CacheStats {
	return storage.CacheStats{
		Hits:   cp.hits.Load(),
		Misses: cp.misses.Load(),
		Writes: cp.writes.Load(),
	}
}

// HitRate returns the hit rate as a percentage.
func (cp *CachedProber) HitRate() float64 {
	return cp.Stats().HitRate()
}

// CacheSize returns the number of cached verdicts.
func (cp *CachedProber) CacheSize() int {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return len(cp.entries)
}

// Clear empties the cache and resets the counters.
func (cp *CachedProber) Clear() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	clear(cp.entries)
	cp.hits.Store(0)
	cp.misses.Store(0)
	cp.writes.Store(0)
}
