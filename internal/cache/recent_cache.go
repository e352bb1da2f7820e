package cache

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto"
	"github.com/logsift/logsift/internal/logs/model"
)

// RecentCache keeps a bounded window of the most recently stored entries for
// the live feed, plus a fingerprint set used to short-circuit duplicate
// batches before they reach the store. The fingerprint set is best effort:
// the store's idempotent ids remain the real duplicate guard.
type RecentCache interface {
	Seen(fingerprint string) bool
	MarkSeen(fingerprint string)
	Add(entry model.LogEntry)
	Recent(limit int) []model.LogEntry
}

type RecentCacheImpl struct {
	fingerprints *ristretto.Cache

	mu       sync.RWMutex
	ring     []model.LogEntry
	head     int
	size     int
	capacity int
}

func NewRecentCacheImpl(capacity int) (*RecentCacheImpl, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("recent cache capacity must be positive, got %d", capacity)
	}
	fingerprints, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,    // number of keys to track frequency of
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprint cache: %w", err)
	}
	return &RecentCacheImpl{
		fingerprints: fingerprints,
		ring:         make([]model.LogEntry, capacity),
		capacity:     capacity,
	}, nil
}

func (c *RecentCacheImpl) Seen(fingerprint string) bool {
	_, found := c.fingerprints.Get(fingerprint)
	return found
}

func (c *RecentCacheImpl) MarkSeen(fingerprint string) {
	c.fingerprints.Set(fingerprint, struct{}{}, 1)
}

// Wait blocks until pending fingerprint writes are applied.
func (c *RecentCacheImpl) Wait() {
	c.fingerprints.Wait()
}

func (c *RecentCacheImpl) Add(entry model.LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.head] = entry
	c.head = (c.head + 1) % c.capacity
	if c.size < c.capacity {
		c.size++
	}
}

// Recent returns up to limit entries in insertion order, oldest first. The
// order is stable between polls so clients can deduplicate by id.
func (c *RecentCacheImpl) Recent(limit int) []model.LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || limit > c.size {
		limit = c.size
	}
	out := make([]model.LogEntry, 0, limit)
	start := (c.head - limit + c.capacity) % c.capacity
	for i := 0; i < limit; i++ {
		out = append(out, c.ring[(start+i)%c.capacity])
	}
	return out
}
