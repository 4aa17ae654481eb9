package bedrock

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/encryptgate/threat-engine/internal/config"
	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/utils"
	"go.uber.org/zap"
)

// Factory creates Bedrock explainers
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new Bedrock factory
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateExplainer creates a new Bedrock explainer
func (f *Factory) CreateExplainer() (core.Explainer, error) {
	bedrockCfg := f.cfg.GetBedrock()
	explainerCfg := f.cfg.GetExplainer()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(bedrockCfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)

	return NewExplainer(
		client,
		bedrockCfg.ModelID,
		bedrockCfg.MaxTokens,
		bedrockCfg.Temperature,
		bedrockCfg.TopP,
		bedrockCfg.MaxBodySize,
		explainerCfg.Timeout,
		f.logger,
		f.textProcessor,
	), nil
}
