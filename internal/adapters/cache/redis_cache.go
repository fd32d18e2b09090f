package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/core"
)

type redisEntry struct {
	IsPhishing         bool      `json:"is_phishing"`
	Score              int       `json:"score"`
	HeuristicScore     int       `json:"heuristic_score"`
	RemoteScore        *float64  `json:"remote_score,omitempty"`
	Confidence         float64   `json:"confidence"`
	Explanation        string    `json:"explanation"`
	Details            []string  `json:"details"`
	SuspiciousElements []string  `json:"suspicious_elements"`
	ModelUsed          string    `json:"model_used"`
	LastSeen           time.Time `json:"last_seen"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// RedisCache is a Redis implementation of core.Store. Expiry is delegated to
// key TTLs, so Cleanup has nothing to do.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, opts *redis.Options, prefix string, logger *zap.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return &RedisCache{rdb: rdb, prefix: prefix, logger: logger, now: time.Now}, nil
}

func (c *RedisCache) cacheKey(messageID string) string {
	return c.prefix + "cache:" + messageID
}

func (c *RedisCache) safeKey(messageID string) string {
	return c.prefix + "safe:" + messageID
}

// Get retrieves a live cached entry for a message
func (c *RedisCache) Get(ctx context.Context, messageID string) (*core.CacheEntry, error) {
	data, err := c.rdb.Get(ctx, c.cacheKey(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var stored redisEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	entry := &core.CacheEntry{
		MessageID:          messageID,
		IsPhishing:         stored.IsPhishing,
		Score:              stored.Score,
		HeuristicScore:     stored.HeuristicScore,
		RemoteScore:        stored.RemoteScore,
		Confidence:         stored.Confidence,
		Explanation:        stored.Explanation,
		Details:            stored.Details,
		SuspiciousElements: stored.SuspiciousElements,
		ModelUsed:          stored.ModelUsed,
		LastSeen:           stored.LastSeen,
		ExpiresAt:          stored.ExpiresAt,
	}
	if entry.Expired(c.now()) {
		return nil, core.ErrNotFound
	}
	return entry, nil
}

// Set stores a cache entry with a TTL matching its expiry
func (c *RedisCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	ttl := entry.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(redisEntry{
		IsPhishing:         entry.IsPhishing,
		Score:              entry.Score,
		HeuristicScore:     entry.HeuristicScore,
		RemoteScore:        entry.RemoteScore,
		Confidence:         entry.Confidence,
		Explanation:        entry.Explanation,
		Details:            entry.Details,
		SuspiciousElements: entry.SuspiciousElements,
		ModelUsed:          entry.ModelUsed,
		LastSeen:           entry.LastSeen,
		ExpiresAt:          entry.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, c.cacheKey(entry.MessageID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, messageID string) error {
	if err := c.rdb.Del(ctx, c.cacheKey(messageID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup is a no-op; Redis expires keys itself
func (c *RedisCache) Cleanup(context.Context) error {
	return nil
}

// IsSafe reports whether a message was marked safe
func (c *RedisCache) IsSafe(ctx context.Context, messageID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.safeKey(messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query safe list: %w", err)
	}
	return n > 0, nil
}

// MarkSafe adds a message to the safe list
func (c *RedisCache) MarkSafe(ctx context.Context, messageID string) error {
	if err := c.rdb.Set(ctx, c.safeKey(messageID), c.now().Unix(), 0).Err(); err != nil {
		return fmt.Errorf("failed to mark message safe: %w", err)
	}
	return nil
}

// UnmarkSafe removes a message from the safe list
func (c *RedisCache) UnmarkSafe(ctx context.Context, messageID string) error {
	if err := c.rdb.Del(ctx, c.safeKey(messageID)).Err(); err != nil {
		return fmt.Errorf("failed to unmark message: %w", err)
	}
	return nil
}

// Client exposes the underlying connection for components sharing it
func (c *RedisCache) Client() *redis.Client {
	return c.rdb
}

// Stop closes the Redis connection
func (c *RedisCache) Stop() {
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("Failed to close Redis client", zap.Error(err))
	}
}
