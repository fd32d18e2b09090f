package di

import (
	"io"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/filter"
	"github.com/mikey/llm-phish-filter/internal/config"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/logging"
)

// CLIOptions holds the command line settings for one-off analysis
type CLIOptions struct {
	ConfigFile     string
	Provider       string
	Threshold      int
	TrustedDomains []string
	Verbose        bool
	JSONLog        bool
	Out            io.Writer
}

// BuildCLIContainer creates a container for analysing single messages.
// The CLI never uses the verdict cache or the safe list.
func BuildCLIContainer(opts CLIOptions) (*dig.Container, error) {
	container := dig.New()

	// Register logger
	if err := container.Provide(func() (*zap.Logger, error) {
		return logging.InitConsoleLogger(opts.Verbose, opts.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(logger *zap.Logger) (*config.Config, error) {
		return cliConfig(opts, logger)
	}); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register phishing filter service with no cache
	if err := container.Provide(func(
		llmClient core.LLMClient,
		trusted core.DomainChecker,
		logger *zap.Logger,
		serviceOpts core.ServiceOptions,
	) *core.PhishingFilterService {
		serviceOpts.CacheEnabled = false
		return core.NewPhishingFilterService(llmClient, nil, nil, trusted, logger, serviceOpts)
	}); err != nil {
		return nil, err
	}

	// Register CLI filter
	if err := container.Provide(func(service *core.PhishingFilterService, logger *zap.Logger) *filter.CliFilter {
		return filter.NewCliFilter(service, logger, opts.Out, opts.Verbose)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// cliConfig loads the optional config file, then applies explicit flags on top
func cliConfig(opts CLIOptions, logger *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if opts.ConfigFile != "" {
		loaded, err := config.NewWithFile(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded configuration from file", zap.String("file", loaded.ConfigFileUsed()))
		cfg = loaded
	} else {
		cfg = config.NewFromViper(config.NewEmptyViper())
	}

	if opts.Provider != "" {
		cfg.Set("llm.provider", strings.ToLower(opts.Provider))
	}
	if opts.Threshold > 0 {
		cfg.Set("scoring.threshold", opts.Threshold)
	}
	if len(opts.TrustedDomains) > 0 {
		cfg.Set("scoring.trusted_domains", opts.TrustedDomains)
	}
	return cfg, nil
}
