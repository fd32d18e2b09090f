package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/report"
	"github.com/mikey/llm-phish-filter/internal/api"
	"github.com/mikey/llm-phish-filter/internal/api/routes"
	"github.com/mikey/llm-phish-filter/internal/config"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/factory"
	"github.com/mikey/llm-phish-filter/internal/logging"
	"github.com/mikey/llm-phish-filter/internal/utils"
	"github.com/mikey/llm-phish-filter/internal/whitelist"
)

// BuildContainer creates and configures the daemon's dependency injection
// container. An empty configPath searches the default locations.
func BuildContainer(configPath string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewWithFile(configPath)
	}); err != nil {
		return nil, err
	}

	// Register logger and its runtime level
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register the verdict store
	if err := container.Provide(func(f *factory.CacheFactory) (core.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register the phishing filter service
	if err := container.Provide(func(
		llmClient core.LLMClient,
		store core.Store,
		trusted core.DomainChecker,
		logger *zap.Logger,
		opts core.ServiceOptions,
	) *core.PhishingFilterService {
		return core.NewPhishingFilterService(llmClient, store, store, trusted, logger, opts)
	}); err != nil {
		return nil, err
	}

	// Register mail front end
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) (core.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	// Register report pipeline
	if err := container.Provide(factory.NewReportFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ReportFactory) (*report.Reporter, error) {
		return f.CreateReporter()
	}); err != nil {
		return nil, err
	}

	// Register HTTP API
	if err := container.Provide(func(
		cfg *config.Config,
		service *core.PhishingFilterService,
		reporter *report.Reporter,
		textProcessor *utils.TextProcessor,
		level zap.AtomicLevel,
		logger *zap.Logger,
	) (*api.Server, error) {
		return api.NewServer(cfg.GetAPI(), routes.Dependencies{
			Analyzer:      service,
			Reporter:      reporter,
			TextProcessor: textProcessor,
			Level:         level,
			Logger:        logger.Named("api"),
		})
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCommon registers what both the daemon and the CLI need once a config
// and logger are available
func provideCommon(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register LLM client, nil when no provider is configured
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return err
	}

	// Register service options
	if err := container.Provide(func(f *factory.CacheFactory) (core.ServiceOptions, error) {
		return f.ServiceOptions()
	}); err != nil {
		return err
	}

	// Register trusted sender domains
	return container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.DomainChecker, error) {
		scoringCfg, err := cfg.GetScoring()
		if err != nil {
			return nil, err
		}
		if len(scoringCfg.TrustedDomains) > 0 {
			logger.Info("Loaded trusted domains", zap.Strings("domains", scoringCfg.TrustedDomains))
		}
		return whitelist.NewChecker(scoringCfg.TrustedDomains, logger), nil
	})
}
