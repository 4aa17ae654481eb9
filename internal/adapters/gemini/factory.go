package gemini

import (
	"fmt"

	"github.com/encryptgate/threat-engine/internal/config"
	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/utils"
	"go.uber.org/zap"
)

// Factory creates Gemini explainers
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new Gemini factory
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateExplainer creates a new Gemini explainer
func (f *Factory) CreateExplainer() (core.Explainer, error) {
	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}
	explainerCfg := f.cfg.GetExplainer()

	return NewExplainer(
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		geminiCfg.MaxBodySize,
		explainerCfg.Timeout,
		f.logger,
		f.textProcessor,
	)
}
