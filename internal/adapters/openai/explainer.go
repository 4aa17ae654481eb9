package openai

import (
	"context"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Explainer produces post-fusion rationales using the OpenAI chat API.
// It implements core.Explainer; failures become the unavailable fallback.
type Explainer struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	timeout       time.Duration
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewExplainer creates a new OpenAI explainer
func NewExplainer(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	timeout time.Duration,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Explainer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Explainer{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		timeout:       timeout,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Explain asks the model for a rationale over the fused assessment
func (e *Explainer) Explain(ctx context.Context, email *core.Email, assessment *core.FusedAssessment) *core.ExplanationResult {
	if e.client == nil {
		return e.unavailable("OpenAI API key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	input := e.textProcessor.ProcessText(utils.BuildExplanationInput(email, assessment), e.maxBodySize)

	req := openai.ChatCompletionRequest{
		Model: e.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: utils.ExplainSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: input,
			},
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		TopP:        e.topP,
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return e.unavailable(err.Error())
	}
	if len(resp.Choices) == 0 {
		return e.unavailable("empty response from OpenAI")
	}

	text := resp.Choices[0].Message.Content
	return &core.ExplanationResult{
		Explanation:        text,
		RecommendedActions: utils.ExtractRecommendedActions(text),
		Confidence:         80,
	}
}

func (e *Explainer) unavailable(reason string) *core.ExplanationResult {
	e.logger.Warn("Explanation unavailable", zap.String("reason", reason))
	return utils.UnavailableExplanation(reason)
}
