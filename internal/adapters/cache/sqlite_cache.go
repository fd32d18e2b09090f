package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS phish_cache (
		message_id TEXT PRIMARY KEY,
		is_phishing BOOLEAN NOT NULL,
		score INTEGER NOT NULL,
		heuristic_score INTEGER NOT NULL,
		remote_score REAL,
		confidence REAL NOT NULL DEFAULT 0,
		explanation TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '[]',
		suspicious_elements TEXT NOT NULL DEFAULT '[]',
		model_used TEXT NOT NULL DEFAULT '',
		last_seen INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_phish_cache_expires_at ON phish_cache(expires_at)`,
	`CREATE TABLE IF NOT EXISTS phish_safe_list (
		message_id TEXT PRIMARY KEY,
		marked_at INTEGER NOT NULL
	)`,
}

// NewSQLiteCache opens a SQLite backed store at dbPath
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// sqlite3 serialises writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	cache, err := newSQLCache(db, "sqlite3", sqliteSchema, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return cache, nil
}
