package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/cache"
	"github.com/mikey/llm-phish-filter/internal/config"
	"github.com/mikey/llm-phish-filter/internal/core"
)

// CacheFactory creates the verdict cache and safe list store
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates a store based on cache.type
func (f *CacheFactory) CreateStore() (core.Store, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}

	switch cacheCfg.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger, cacheCfg.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return cache.NewSQLiteCache(cacheCfg.SQLitePath, f.logger, cacheCfg.CleanupFrequency)
	case "mysql":
		return cache.NewMySQLCache(cacheCfg.MySQLDSN, f.logger, cacheCfg.CleanupFrequency)
	case "redis":
		return cache.NewRedisCache(context.Background(), redisOptions(cacheCfg), cacheCfg.RedisPrefix, f.logger)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}

// ServiceOptions derives the cache related service options
func (f *CacheFactory) ServiceOptions() (core.ServiceOptions, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return core.ServiceOptions{}, err
	}
	llmCfg, err := f.cfg.GetLLM()
	if err != nil {
		return core.ServiceOptions{}, err
	}
	scoringCfg, err := f.cfg.GetScoring()
	if err != nil {
		return core.ServiceOptions{}, err
	}
	return core.ServiceOptions{
		CacheEnabled:  cacheCfg.Enabled,
		CacheTTL:      cacheCfg.TTL,
		RemoteTimeout: llmCfg.Timeout,
		Threshold:     scoringCfg.Threshold,
	}, nil
}

func redisOptions(c config.CacheConfig) *redis.Options {
	return &redis.Options{
		Addr:     c.RedisAddress,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
