package mlservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Urgent: verify your account", req.Subject)
		assert.Equal(t, []string{"https://evil.example/login"}, req.URLs)

		json.NewEncoder(w).Encode(classifyResponse{
			ModelVersion: "distilbert-v3",
			Labels: []label{
				{Label: "phishing", Score: 0.92},
				{Label: "legitimate", Score: 0.08},
			},
			PhishScore:   0.92,
			ProcessingMS: 41,
			DeviceUsed:   "cuda:0",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 4, zap.NewNop())
	result := c.Classify(context.Background(), "Urgent: verify your account", "Click now", []string{"https://evil.example/login"})

	assert.Equal(t, "distilbert-v3", result.ModelVersion)
	assert.Equal(t, 0.92, result.PhishScore)
	assert.Empty(t, result.Error)
	require.Len(t, result.Labels, 2)
	assert.Equal(t, "phishing", result.Labels[0].Label)
	assert.Equal(t, 41*time.Millisecond, result.ProcessingTime)
}

func TestClassify_ClampsScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(classifyResponse{ModelVersion: "distilbert-v3", PhishScore: 1.7})
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 4, zap.NewNop())
	result := c.Classify(context.Background(), "s", "b", nil)
	assert.Equal(t, 1.0, result.PhishScore)
}

func TestClassify_Fallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "Service error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "Malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "In-band error field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(classifyResponse{Error: "model not loaded"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewClient(server.URL, 5*time.Second, 4, zap.NewNop())
			result := c.Classify(context.Background(), "s", "b", nil)

			assert.Equal(t, fallbackPhishScore, result.PhishScore)
			assert.Equal(t, "unknown", result.ModelVersion)
			assert.NotEmpty(t, result.Error)
			require.Len(t, result.Labels, 1)
			assert.Equal(t, "error", result.Labels[0].Label)
		})
	}
}

func TestClassify_NoEndpoint(t *testing.T) {
	c := NewClient("", 5*time.Second, 4, zap.NewNop())
	result := c.Classify(context.Background(), "s", "b", nil)

	assert.Equal(t, fallbackPhishScore, result.PhishScore)
	assert.Contains(t, result.Error, "not configured")
}

func TestClassify_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	c := NewClient(server.URL, time.Second, 4, zap.NewNop())
	result := c.Classify(context.Background(), "s", "b", nil)

	assert.Equal(t, fallbackPhishScore, result.PhishScore)
	assert.Contains(t, result.Error, "unreachable")
}
