package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/utils"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAssessment() (*core.Email, *core.FusedAssessment) {
	email := &core.Email{
		From:    "stranger@evil.example",
		To:      []string{"victim@corp.example"},
		Subject: "Urgent: verify your account",
	}
	assessment := &core.FusedAssessment{
		FinalScore:  74,
		ThreatLevel: core.ThreatHigh,
		IsPhishing:  true,
	}
	return email, assessment
}

func newExplainerAgainst(baseURL string) *Explainer {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	client := openai.NewClientWithConfig(cfg)
	return NewExplainer(client, "gpt-4o-mini", 512, 0.2, 1, 4096, 5*time.Second,
		zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))
}

func TestExplain(t *testing.T) {
	completion := "Credential phishing impersonating IT.\n\n- Quarantine the message\n- Reset the recipient's password"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "score 74/100")

		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: completion}},
			},
		})
	}))
	defer server.Close()

	email, assessment := testAssessment()
	result := newExplainerAgainst(server.URL + "/v1").Explain(context.Background(), email, assessment)

	assert.Equal(t, completion, result.Explanation)
	assert.Equal(t, []string{"Quarantine the message", "Reset the recipient's password"}, result.RecommendedActions)
	assert.Equal(t, 80, result.Confidence)
}

func TestExplain_NilClient(t *testing.T) {
	e := NewExplainer(nil, "gpt-4o-mini", 512, 0.2, 1, 4096, 5*time.Second,
		zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))

	email, assessment := testAssessment()
	result := e.Explain(context.Background(), email, assessment)

	assert.Contains(t, result.Explanation, "Explanation unavailable")
	assert.Empty(t, result.RecommendedActions)
	assert.Equal(t, 0, result.Confidence)
}

func TestExplain_APIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	email, assessment := testAssessment()
	result := newExplainerAgainst(server.URL + "/v1").Explain(context.Background(), email, assessment)

	assert.Contains(t, result.Explanation, "Explanation unavailable")
	assert.Equal(t, 0, result.Confidence)
}

func TestExplain_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{})
	}))
	defer server.Close()

	email, assessment := testAssessment()
	result := newExplainerAgainst(server.URL + "/v1").Explain(context.Background(), email, assessment)

	assert.Contains(t, result.Explanation, "empty response")
	assert.Equal(t, 0, result.Confidence)
}
