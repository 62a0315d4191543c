package storage

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Key prefixes
const (
	prefixProbe = "probe/"
	keyStats    = "stats"
)

// ProbeEntry is a stored tablebase verdict. WDL is from the side to move's
// point of view, in the -2..2 range.
type ProbeEntry struct {
	WDL      int       `json:"wdl"`
	DTZ      int       `json:"dtz"`
	Category string    `json:"category,omitempty"`
	StoredAt time.Time `json:"stored_at"`
}

// CacheStats accumulates probe cache usage across runs.
type CacheStats struct {
	Hits     uint64    `json:"hits"`
	Misses   uint64    `json:"misses"`
	Writes   uint64    `json:"writes"`
	LastUsed time.Time `json:"last_used"`
}

// HitRate returns the hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// ProbeStore wraps BadgerDB for the persistent probe cache.
type ProbeStore struct {
	db *badger.DB
}

// OpenProbeStore opens (or creates) a store in dir. An empty dir selects
// the default cache directory.
func OpenProbeStore(dir string) (*ProbeStore, error) {
	if dir == "" {
		var err error
		if dir, err = GetCacheDir(); err != nil {
			return nil, err
		}
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open probe store %s", dir)
	}
	return &ProbeStore{db: db}, nil
}

// OpenInMemoryProbeStore opens a store that lives only in memory.
func OpenInMemoryProbeStore() (*ProbeStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open in-memory probe store")
	}
	return &ProbeStore{db: db}, nil
}

// Close closes the database
func (s *ProbeStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get looks up a verdict. found is false when the key is absent.
func (s *ProbeStore) Get(key string) (entry ProbeEntry, found bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixProbe + key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	return entry, found, err
}

// Put stores a verdict, stamping StoredAt when unset.
func (s *ProbeStore) Put(key string, entry ProbeEntry) error {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixProbe+key), data)
	})
}

// Count returns the number of stored verdicts.
func (s *ProbeStore) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixProbe)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// SaveStats saves cache statistics
func (s *ProbeStore) SaveStats(stats *CacheStats) error {
	stats.LastUsed = time.Now()

	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyStats), data)
	})
}

// LoadStats loads cache statistics, returns zero stats if not found
func (s *ProbeStore) LoadStats() (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyStats))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, stats)
		})
	})

	return stats, err
}

// AddStats merges delta into the stored statistics.
func (s *ProbeStore) AddStats(delta CacheStats) error {
	stats, err := s.LoadStats()
	if err != nil {
		return err
	}
	stats.Hits += delta.Hits
	stats.Misses += delta.Misses
	stats.Writes += delta.Writes
	return s.SaveStats(stats)
}
