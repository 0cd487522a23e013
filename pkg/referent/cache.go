package referent

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Cache stores definite oracle answers. Unknown answers are never cached.
type Cache interface {
	Get(iri string) (Existence, bool)
	Set(iri string, existence Existence)
}

type cacheEntry struct {
	existence Existence
	expiresAt time.Time
}

// MemoryCache is a thread-safe, in-memory TTL cache. Entries are lazily
// expired on access.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	defaultTTL time.Duration
}

// NewMemoryCache creates a cache with the given TTL.
func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]cacheEntry),
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached answer for iri if present and not expired.
func (memoryCache *MemoryCache) Get(iri string) (Existence, bool) {
	memoryCache.mu.RLock()
	entry, exists := memoryCache.entries[iri]
	memoryCache.mu.RUnlock()

	if !exists {
		return "", false
	}

	if time.Now().After(entry.expiresAt) {
		memoryCache.mu.Lock()
		// Re-check in case another goroutine already replaced it.
		if current, stillExists := memoryCache.entries[iri]; stillExists && time.Now().After(current.expiresAt) {
			delete(memoryCache.entries, iri)
		}
		memoryCache.mu.Unlock()
		return "", false
	}

	return entry.existence, true
}

// Set stores a definite answer with the default TTL.
func (memoryCache *MemoryCache) Set(iri string, existence Existence) {
	if existence == ExistsUnknown {
		return
	}
	memoryCache.mu.Lock()
	memoryCache.entries[iri] = cacheEntry{
		existence: existence,
		expiresAt: time.Now().Add(memoryCache.defaultTTL),
	}
	memoryCache.mu.Unlock()
}

var existenceBucket = []byte("existence")

type boltRecord struct {
	Existence Existence `json:"existence"`
	CheckedAt time.Time `json:"checked_at"`
}

// BoltCache persists answers across runs in a bbolt file.
type BoltCache struct {
	db         *bolt.DB
	defaultTTL time.Duration
}

// OpenBoltCache opens or creates the cache file at path.
func OpenBoltCache(path string, defaultTTL time.Duration) (*BoltCache, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(existenceBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare cache %s: %w", path, err)
	}

	return &BoltCache{db: db, defaultTTL: defaultTTL}, nil
}

// Get returns the stored answer for iri if present and younger than the TTL.
func (boltCache *BoltCache) Get(iri string) (Existence, bool) {
	var record boltRecord
	found := false

	err := boltCache.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(existenceBucket).Get([]byte(iri))
		if value == nil {
			return nil
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return "", false
	}

	if time.Since(record.CheckedAt) > boltCache.defaultTTL {
		return "", false
	}
	return record.Existence, true
}

// Set stores a definite answer. Write failures are ignored; the cache only
// saves queries.
func (boltCache *BoltCache) Set(iri string, existence Existence) {
	if existence == ExistsUnknown {
		return
	}
	value, err := json.Marshal(boltRecord{Existence: existence, CheckedAt: time.Now()})
	if err != nil {
		return
	}
	_ = boltCache.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(existenceBucket).Put([]byte(iri), value)
	})
}

// Close releases the cache file.
func (boltCache *BoltCache) Close() error {
	return boltCache.db.Close()
}

// TieredCache consults its layers in order and back-fills earlier layers on
// a hit in a later one.
type TieredCache []Cache

// Get implements Cache.
func (tieredCache TieredCache) Get(iri string) (Existence, bool) {
	for index, layer := range tieredCache {
		if existence, found := layer.Get(iri); found {
			for _, earlier := range tieredCache[:index] {
				earlier.Set(iri, existence)
			}
			return existence, true
		}
	}
	return "", false
}

// Set implements Cache.
func (tieredCache TieredCache) Set(iri string, existence Existence) {
	for _, layer := range tieredCache {
		layer.Set(iri, existence)
	}
}
