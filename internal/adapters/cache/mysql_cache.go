package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS phish_cache (
		message_id VARCHAR(255) PRIMARY KEY,
		is_phishing BOOLEAN NOT NULL,
		score INT NOT NULL,
		heuristic_score INT NOT NULL,
		remote_score DOUBLE NULL,
		confidence DOUBLE NOT NULL DEFAULT 0,
		explanation TEXT NOT NULL,
		details TEXT NOT NULL,
		suspicious_elements TEXT NOT NULL,
		model_used VARCHAR(128) NOT NULL DEFAULT '',
		last_seen BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		INDEX idx_phish_cache_expires_at (expires_at)
	)`,
	`CREATE TABLE IF NOT EXISTS phish_safe_list (
		message_id VARCHAR(255) PRIMARY KEY,
		marked_at BIGINT NOT NULL
	)`,
}

// NewMySQLCache connects to MySQL and prepares the store tables
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	return newMySQLCache(db, logger, cleanupFreq)
}

func newMySQLCache(db *sql.DB, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	cache, err := newSQLCache(db, "mysql", mysqlSchema, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return cache, nil
}
