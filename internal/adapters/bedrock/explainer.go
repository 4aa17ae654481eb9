package bedrock

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/utils"
	"go.uber.org/zap"
)

// Explainer produces post-fusion rationales using Amazon Bedrock.
// It implements core.Explainer; failures become the unavailable fallback.
type Explainer struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	timeout       time.Duration
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewExplainer creates a new Bedrock explainer
func NewExplainer(
	client *bedrockruntime.Client,
	modelID string,
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
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		timeout:       timeout,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

func (e *Explainer) isAnthropicModel() bool {
	return strings.HasPrefix(e.modelID, "anthropic.")
}

// Explain asks the model for a rationale over the fused assessment
func (e *Explainer) Explain(ctx context.Context, email *core.Email, assessment *core.FusedAssessment) *core.ExplanationResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	input := e.textProcessor.ProcessText(utils.BuildExplanationInput(email, assessment), e.maxBodySize)
	prompt := utils.ExplainSystemPrompt + "\n\n" + input

	var payload []byte
	var err error
	if e.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               "\n\nHuman: " + prompt + "\n\nAssistant:",
			"max_tokens_to_sample": e.maxTokens,
			"temperature":          e.temperature,
			"top_p":                e.topP,
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  e.maxTokens,
			"temperature": e.temperature,
			"top_p":       e.topP,
		})
	}
	if err != nil {
		return e.unavailable(err.Error())
	}

	resp, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return e.unavailable(err.Error())
	}

	text, err := extractCompletion(resp.Body)
	if err != nil {
		return e.unavailable(err.Error())
	}

	return &core.ExplanationResult{
		Explanation:        text,
		RecommendedActions: utils.ExtractRecommendedActions(text),
		Confidence:         80,
	}
}

// extractCompletion handles the response shapes of the supported model
// families
func extractCompletion(body []byte) (string, error) {
	var decoded struct {
		Completion string `json:"completion"`
		Results    []struct {
			OutputText string `json:"outputText"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", err
	}
	if decoded.Completion != "" {
		return strings.TrimSpace(decoded.Completion), nil
	}
	if len(decoded.Results) > 0 {
		return strings.TrimSpace(decoded.Results[0].OutputText), nil
	}
	return "", errEmptyCompletion
}

var errEmptyCompletion = &emptyCompletionError{}

type emptyCompletionError struct{}

func (*emptyCompletionError) Error() string { return "empty completion from Bedrock" }

func (e *Explainer) unavailable(reason string) *core.ExplanationResult {
	e.logger.Warn("Explanation unavailable", zap.String("reason", reason))
	return utils.UnavailableExplanation(reason)
}
