package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/core"
)

// SQLCache is a database/sql implementation of core.Store shared by the
// SQLite and MySQL backends. Timestamps are stored as Unix milliseconds and
// string lists as JSON arrays.
type SQLCache struct {
	db       *sql.DB
	driver   string
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func newSQLCache(db *sql.DB, driver string, schema []string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", driver, err)
		}
	}

	cache := &SQLCache{
		db:     db,
		driver: driver,
		logger: logger,
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
	if cleanupFreq > 0 {
		go runCleanup(cache, cleanupFreq, cache.stopCh, logger)
	}
	return cache, nil
}

// Get retrieves a live cached entry for a message
func (c *SQLCache) Get(ctx context.Context, messageID string) (*core.CacheEntry, error) {
	var (
		lastSeen, expiresAt int64
		details, elements   string
		remote              sql.NullFloat64
	)
	entry := core.CacheEntry{MessageID: messageID}

	err := c.db.QueryRowContext(ctx, `
		SELECT is_phishing, score, heuristic_score, remote_score, confidence, explanation,
			details, suspicious_elements, model_used, last_seen, expires_at
		FROM phish_cache
		WHERE message_id = ? AND expires_at > ?
	`, messageID, c.now().UnixMilli()).Scan(
		&entry.IsPhishing, &entry.Score, &entry.HeuristicScore, &remote, &entry.Confidence, &entry.Explanation,
		&details, &elements, &entry.ModelUsed, &lastSeen, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	if remote.Valid {
		entry.RemoteScore = &remote.Float64
	}
	if entry.Details, err = decodeList(details); err != nil {
		return nil, fmt.Errorf("failed to decode cached details: %w", err)
	}
	if entry.SuspiciousElements, err = decodeList(elements); err != nil {
		return nil, fmt.Errorf("failed to decode cached suspicious elements: %w", err)
	}
	entry.LastSeen = time.UnixMilli(lastSeen)
	entry.ExpiresAt = time.UnixMilli(expiresAt)
	return &entry, nil
}

// Set stores a cache entry
func (c *SQLCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	details, err := encodeList(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode details: %w", err)
	}
	elements, err := encodeList(entry.SuspiciousElements)
	if err != nil {
		return fmt.Errorf("failed to encode suspicious elements: %w", err)
	}
	var remote sql.NullFloat64
	if entry.RemoteScore != nil {
		remote = sql.NullFloat64{Float64: *entry.RemoteScore, Valid: true}
	}

	_, err = c.db.ExecContext(ctx, `
		REPLACE INTO phish_cache (message_id, is_phishing, score, heuristic_score, remote_score, confidence,
			explanation, details, suspicious_elements, model_used, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.MessageID, entry.IsPhishing, entry.Score, entry.HeuristicScore, remote, entry.Confidence,
		entry.Explanation, details, elements, entry.ModelUsed,
		entry.LastSeen.UnixMilli(), entry.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(data string) ([]string, error) {
	items := []string{}
	if data == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a cache entry
func (c *SQLCache) Delete(ctx context.Context, messageID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM phish_cache WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *SQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM phish_cache WHERE expires_at <= ?`, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries",
			zap.String("driver", c.driver),
			zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// IsSafe reports whether a message was marked safe
func (c *SQLCache) IsSafe(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM phish_safe_list WHERE message_id = ?`, messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query safe list: %w", err)
	}
	return true, nil
}

// MarkSafe adds a message to the safe list
func (c *SQLCache) MarkSafe(ctx context.Context, messageID string) error {
	_, err := c.db.ExecContext(ctx, `REPLACE INTO phish_safe_list (message_id, marked_at) VALUES (?, ?)`,
		messageID, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to mark message safe: %w", err)
	}
	return nil
}

// UnmarkSafe removes a message from the safe list
func (c *SQLCache) UnmarkSafe(ctx context.Context, messageID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM phish_safe_list WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("failed to unmark message: %w", err)
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (c *SQLCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.String("driver", c.driver), zap.Error(err))
		}
	})
}
