package factory

import (
	"fmt"

	"github.com/encryptgate/threat-engine/internal/adapters/bedrock"
	"github.com/encryptgate/threat-engine/internal/adapters/gemini"
	"github.com/encryptgate/threat-engine/internal/adapters/openai"
	"github.com/encryptgate/threat-engine/internal/config"
	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/utils"
	"go.uber.org/zap"
)

// ExplainerFactory creates explanation backends
type ExplainerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewExplainerFactory creates a new explainer factory
func NewExplainerFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ExplainerFactory {
	return &ExplainerFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateExplainer creates the configured explanation backend
func (f *ExplainerFactory) CreateExplainer() (core.Explainer, error) {
	provider := f.cfg.GetExplainer().Provider

	switch provider {
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateExplainer()
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateExplainer()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateExplainer()
	default:
		return nil, fmt.Errorf("unsupported explanation provider: %s", provider)
	}
}
