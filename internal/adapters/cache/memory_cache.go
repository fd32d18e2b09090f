package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/core"
)

// MemoryCache is an in-memory implementation of core.Store
type MemoryCache struct {
	entries     map[string]core.CacheEntry
	safe        map[string]time.Time
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryCache creates a new in-memory cache. A zero cleanupFreq disables
// the background sweep; expired entries are still hidden from Get.
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]core.CacheEntry),
		safe:        make(map[string]time.Time),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go runCleanup(cache, cleanupFreq, cache.stopCh, logger)
	}
	return cache
}

// Get retrieves a live cached entry for a message
func (c *MemoryCache) Get(_ context.Context, messageID string) (*core.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[messageID]
	if !ok || entry.Expired(c.now()) {
		return nil, core.ErrNotFound
	}
	return cloneEntry(entry), nil
}

// Set stores a cache entry
func (c *MemoryCache) Set(_ context.Context, entry *core.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.MessageID] = *cloneEntry(*entry)
	return nil
}

// cloneEntry detaches stored entries from slices and pointers held by callers
func cloneEntry(e core.CacheEntry) *core.CacheEntry {
	e.Details = slices.Clone(e.Details)
	e.SuspiciousElements = slices.Clone(e.SuspiciousElements)
	if e.RemoteScore != nil {
		remote := *e.RemoteScore
		e.RemoteScore = &remote
	}
	return &e
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(_ context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, messageID)
	return nil
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredCount := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// IsSafe reports whether a message was marked safe
func (c *MemoryCache) IsSafe(_ context.Context, messageID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.safe[messageID]
	return ok, nil
}

// MarkSafe adds a message to the safe list
func (c *MemoryCache) MarkSafe(_ context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.safe[messageID] = c.now()
	return nil
}

// UnmarkSafe removes a message from the safe list
func (c *MemoryCache) UnmarkSafe(_ context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.safe, messageID)
	return nil
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
