package factory

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/report"
	"github.com/mikey/llm-phish-filter/internal/config"
)

// ReportFactory creates the phishing report pipeline
type ReportFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewReportFactory creates a new report factory
func NewReportFactory(cfg *config.Config, logger *zap.Logger) *ReportFactory {
	return &ReportFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReporter wires the SMTP mailer and the configured dedupe store
func (f *ReportFactory) CreateReporter() (*report.Reporter, error) {
	reportCfg, err := f.cfg.GetReport()
	if err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	deduper, err := f.createDeduper(reportCfg)
	if err != nil {
		return nil, err
	}

	return report.NewReporter(report.NewSMTPMailer(reportCfg, f.logger), deduper, reportCfg, f.logger), nil
}

func (f *ReportFactory) createDeduper(reportCfg config.ReportConfig) (report.Deduper, error) {
	switch reportCfg.DedupeStore {
	case "", "memory":
		return report.NewMemoryDeduper(reportCfg.DedupeWindow), nil
	case "redis":
		cacheCfg, err := f.cfg.GetCache()
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(redisOptions(cacheCfg))
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis for report dedupe: %w", err)
		}
		return report.NewRedisDeduper(rdb, cacheCfg.RedisPrefix, reportCfg.DedupeWindow), nil
	default:
		return nil, fmt.Errorf("unsupported report dedupe store: %s", reportCfg.DedupeStore)
	}
}
