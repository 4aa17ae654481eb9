package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Client calls the external phishing-classification service. It implements
// core.Classifier: every failure mode (missing endpoint, timeout, non-2xx,
// malformed body) degrades to the uncertainty fallback instead of an error.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	sem        *semaphore.Weighted
	logger     *zap.Logger
}

// fallbackPhishScore is the uncertainty penalty substituted when the
// classification service cannot produce a real score
const fallbackPhishScore = 0.5

type classifyRequest struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	URLs    []string `json:"urls"`
}

type classifyResponse struct {
	ModelVersion string  `json:"model_version"`
	Labels       []label `json:"labels"`
	PhishScore   float64 `json:"phish_score"`
	ProcessingMS int64   `json:"processing_time_ms"`
	DeviceUsed   string  `json:"device_used,omitempty"`
	Error        string  `json:"error,omitempty"`
}

type label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NewClient creates a new classification-service client
func NewClient(endpoint string, timeout time.Duration, maxConcurrency int, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		sem:        semaphore.NewWeighted(int64(maxConcurrency)),
		logger:     logger,
	}
}

// Classify sends the email text to the classification service and returns
// its labeled score, or the fallback result on any failure
func (c *Client) Classify(ctx context.Context, subject, body string, urls []string) *core.ClassifierResult {
	if c.endpoint == "" {
		return c.fallback("classifier endpoint not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return c.fallback(fmt.Sprintf("classifier saturated: %v", err))
	}
	defer c.sem.Release(1)

	payload, err := json.Marshal(classifyRequest{Subject: subject, Body: body, URLs: urls})
	if err != nil {
		return c.fallback(fmt.Sprintf("failed to encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return c.fallback(fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fallback(fmt.Sprintf("classification service unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fallback(fmt.Sprintf("classification service returned status %d", resp.StatusCode))
	}

	var decoded classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return c.fallback(fmt.Sprintf("malformed classification response: %v", err))
	}
	if decoded.Error != "" {
		return c.fallback(fmt.Sprintf("classification service error: %s", decoded.Error))
	}

	labels := make([]core.LabelScore, 0, len(decoded.Labels))
	for _, l := range decoded.Labels {
		labels = append(labels, core.LabelScore{Label: l.Label, Score: l.Score})
	}

	processing := time.Duration(decoded.ProcessingMS) * time.Millisecond
	if processing == 0 {
		processing = time.Since(start)
	}

	return &core.ClassifierResult{
		ModelVersion:   decoded.ModelVersion,
		Labels:         labels,
		PhishScore:     clamp01(decoded.PhishScore),
		ProcessingTime: processing,
	}
}

func (c *Client) fallback(reason string) *core.ClassifierResult {
	c.logger.Warn("Classifier degraded to fallback", zap.String("reason", reason))
	return &core.ClassifierResult{
		ModelVersion: "unknown",
		Labels:       []core.LabelScore{{Label: "error", Score: fallbackPhishScore}},
		PhishScore:   fallbackPhishScore,
		Error:        reason,
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
