package tablebase

import (
	"context"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/loldot/lolbot/internal/board"
	"github.com/loldot/lolbot/internal/storage"
)

// PersistentProber keeps verdicts from inner in a badger-backed store so
// later runs do not have to ask the oracle again.
type PersistentProber struct {
	inner Prober
	store *storage.ProbeStore

	hits   atomic.Uint64
	misses atomic.Uint64
	writes atomic.Uint64
}

// NewPersistentProber wraps inner with store. The store stays owned by the
// caller.
func NewPersistentProber(inner Prober, store *storage.ProbeStore) *PersistentProber {
	return &PersistentProber{inner: inner, store: store}
}

func (pp *PersistentProber) Probe(ctx context.Context, pos *board.Position) (ProbeResult, error) {
	key := ProbeKey(pos)

	entry, found, err := pp.store.Get(key)
	if err != nil {
		klog.Warningf("[TBCache] read %q: %v", key, err)
	} else if found {
		pp.hits.Add(1)
		return ProbeResult{WDL: WDL(entry.WDL), DTZ: entry.DTZ, Category: entry.Category}, nil
	}
	pp.misses.Add(1)

	res, err := pp.inner.Probe(ctx, pos)
	if err != nil {
		return res, err
	}

	if err := pp.store.Put(key, storage.ProbeEntry{WDL: int(res.WDL), DTZ: res.DTZ, Category: res.Category}); err != nil {
		klog.Warningf("[TBCache] write %q: %v", key, err)
	} else {
		pp.writes.Add(1)
	}
	return res, nil
}

func (pp *PersistentProber) MaxPieces() int {
	return pp.inner.MaxPieces()
}

// Stats returns the counters of this session.
func (pp *PersistentProber) Stats() storage.CacheStats {
	return storage.CacheStats{
		Hits:   pp.hits.Load(),
		Misses: pp.misses.Load(),
		Writes: pp.writes.Load(),
	}
}

// Flush adds this session's counters to the store's running totals.
func (pp *PersistentProber) Flush() error {
	delta := storage.CacheStats{
		Hits:   pp.hits.Swap(0),
		Misses: pp.misses.Swap(0),
		Writes: pp.writes.Swap(0),
	}
	return pp.store.AddStats(delta)
}
