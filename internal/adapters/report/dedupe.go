package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Deduper remembers recently reported message ids
type Deduper interface {
	// Seen reports whether messageID was reported within the window and
	// records it when it was not
	Seen(ctx context.Context, messageID string) (bool, error)
}

// MemoryDeduper keeps report times in process memory
type MemoryDeduper struct {
	window time.Duration
	mu     sync.Mutex
	seen   map[string]time.Time
	now    func() time.Time
}

// NewMemoryDeduper creates an in-memory deduper
func NewMemoryDeduper(window time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Seen implements Deduper
func (d *MemoryDeduper) Seen(_ context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, id)
		}
	}

	if _, ok := d.seen[messageID]; ok {
		return true, nil
	}
	d.seen[messageID] = now
	return false, nil
}

// RedisDeduper shares report times across instances through Redis keys that
// expire after the window
type RedisDeduper struct {
	rdb    *redis.Client
	prefix string
	window time.Duration
}

// NewRedisDeduper creates a Redis backed deduper
func NewRedisDeduper(rdb *redis.Client, prefix string, window time.Duration) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, prefix: prefix, window: window}
}

// Seen implements Deduper
func (d *RedisDeduper) Seen(ctx context.Context, messageID string) (bool, error) {
	created, err := d.rdb.SetNX(ctx, d.prefix+"report:"+messageID, time.Now().Unix(), d.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record report: %w", err)
	}
	return !created, nil
}
