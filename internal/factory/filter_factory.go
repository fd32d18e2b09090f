package factory

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/filter"
	"github.com/mikey/llm-phish-filter/internal/config"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

// analysisGrace is added to the remote timeout to bound a whole analysis
const analysisGrace = 5 * time.Second

// FilterFactory creates mail front ends based on configuration
type FilterFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	service       *core.PhishingFilterService
	textProcessor *utils.TextProcessor
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.PhishingFilterService,
	textProcessor *utils.TextProcessor,
) *FilterFactory {
	return &FilterFactory{
		cfg:           cfg,
		logger:        logger,
		service:       service,
		textProcessor: textProcessor,
	}
}

// CreateEmailFilter creates the front end named by server.filter_type
func (f *FilterFactory) CreateEmailFilter() (core.EmailFilter, error) {
	llmCfg, err := f.cfg.GetLLM()
	if err != nil {
		return nil, err
	}
	serverCfg := f.cfg.GetServer()
	opts := filter.OptionsFromConfig(serverCfg, llmCfg.Timeout+analysisGrace)

	switch serverCfg.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(f.service, f.textProcessor, f.logger, opts, serverCfg.PostfixAddress), nil
	case "milter":
		return filter.NewMilterFilter(f.service, f.textProcessor, f.logger, opts), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}
