package openai

import (
	"github.com/encryptgate/threat-engine/internal/config"
	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Factory creates OpenAI explainers
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new factory for OpenAI explainers
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateExplainer creates a new OpenAI explainer. A missing API key yields
// an explainer that always returns the unavailable fallback.
func (f *Factory) CreateExplainer() (core.Explainer, error) {
	openaiCfg := f.cfg.GetOpenAI()
	explainerCfg := f.cfg.GetExplainer()

	var client *openai.Client
	if openaiCfg.APIKey != "" {
		client = openai.NewClient(openaiCfg.APIKey)
	}

	return NewExplainer(
		client,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		openaiCfg.MaxBodySize,
		explainerCfg.Timeout,
		f.logger,
		f.textProcessor,
	), nil
}
