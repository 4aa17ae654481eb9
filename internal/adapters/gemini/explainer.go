package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/utils"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Explainer produces post-fusion rationales using Google Gemini.
// It implements core.Explainer; failures become the unavailable fallback.
type Explainer struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	timeout       time.Duration
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewExplainer creates a new Gemini explainer
func NewExplainer(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	timeout time.Duration,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Explainer, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(utils.ExplainSystemPrompt)},
	}

	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Explainer{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		timeout:       timeout,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Explain asks the model for a rationale over the fused assessment
func (e *Explainer) Explain(ctx context.Context, email *core.Email, assessment *core.FusedAssessment) *core.ExplanationResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	input := e.textProcessor.ProcessText(utils.BuildExplanationInput(email, assessment), e.maxBodySize)

	resp, err := e.model.GenerateContent(ctx, genai.Text(input))
	if err != nil {
		return e.unavailable(err.Error())
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return e.unavailable("empty response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return e.unavailable("no text content in Gemini response")
	}

	return &core.ExplanationResult{
		Explanation:        text,
		RecommendedActions: utils.ExtractRecommendedActions(text),
		Confidence:         80,
	}
}

// Close releases the underlying client
func (e *Explainer) Close() error {
	return e.client.Close()
}

func (e *Explainer) unavailable(reason string) *core.ExplanationResult {
	e.logger.Warn("Explanation unavailable", zap.String("reason", reason))
	return utils.UnavailableExplanation(reason)
}
