package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// entry pairs a cached result with bookkeeping for FIFO eviction.
type entry struct {
	result   *core.ClassificationResult
	lastSeen time.Time
}

// MemoryCache is a bounded in-memory implementation of the ResultCache
// port. Eviction is FIFO by insertion order: re-reading an entry refreshes
// its last-seen timestamp but does not move it in the eviction queue. This
// mirrors the reference behavior and is intentionally not LRU.
type MemoryCache struct {
	entries  map[string]*entry
	order    []string
	capacity int
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewMemoryCache creates a new in-memory cache. Capacity values below one
// fall back to the default of 1000 entries.
func NewMemoryCache(capacity int, logger *zap.Logger) *MemoryCache {
	if capacity < 1 {
		capacity = 1000
	}
	return &MemoryCache{
		entries:  make(map[string]*entry),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Get retrieves a cached result by fingerprint.
func (c *MemoryCache) Get(ctx context.Context, fingerprint string) (*core.ClassificationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, core.ErrCacheMiss
	}

	// Hit refreshes the timestamp only; the stored value and the eviction
	// order stay untouched.
	e.lastSeen = time.Now()

	out := *e.result
	out.FromCache = true
	return &out, nil
}

// Set stores a result, evicting the single oldest-inserted entry when the
// cache is over capacity.
func (c *MemoryCache) Set(ctx context.Context, fingerprint string, result *core.ClassificationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[fingerprint]; ok {
		// Overwrite in place, insertion position unchanged.
		c.entries[fingerprint].result = result
		c.entries[fingerprint].lastSeen = time.Now()
		return nil
	}

	c.entries[fingerprint] = &entry{result: result, lastSeen: time.Now()}
	c.order = append(c.order, fingerprint)

	if len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.logger.Debug("Evicted oldest cache entry",
			zap.String("fingerprint", oldest),
			zap.Int("capacity", c.capacity))
	}

	return nil
}

// Len reports the number of live entries.
func (c *MemoryCache) Len(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// Stop is a no-op for the in-memory cache.
func (c *MemoryCache) Stop() {}
