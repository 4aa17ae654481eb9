package graphstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Client talks to the relationship graph store. It implements both
// core.ContextProvider (read side) and core.Enricher (write-through side).
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	sem        *semaphore.Weighted
	logger     *zap.Logger
}

// fallbackContextScore is the uncertainty penalty when relationship history
// cannot be retrieved
const fallbackContextScore = 0.2

type lookupRequest struct {
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	MessageID  string   `json:"message_id,omitempty"`
}

type lookupResponse struct {
	SenderEmailCount         int     `json:"sender_email_count"`
	SenderIncidentCount      int     `json:"sender_incident_count"`
	IsFirstTimeSender        bool    `json:"is_first_time_sender"`
	IsFirstTimeCommunication bool    `json:"is_first_time_communication"`
	DomainRiskScore          float64 `json:"domain_risk_score"`
}

// NewClient creates a new relationship store client
func NewClient(endpoint string, timeout time.Duration, maxConcurrency int, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		sem:        semaphore.NewWeighted(int64(maxConcurrency)),
		logger:     logger,
	}
}

// Lookup queries sender/recipient history and synthesizes the context score
// and findings. Any failure degrades to the fallback score with a finding
// noting the retrieval failure.
func (c *Client) Lookup(ctx context.Context, sender string, recipients []string, messageID string) *core.ContextResult {
	if c.endpoint == "" {
		return c.fallback("relationship store not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return c.fallback(fmt.Sprintf("relationship lookup not started: %v", err))
	}
	defer c.sem.Release(1)

	payload, err := json.Marshal(lookupRequest{
		Sender:     sender,
		Recipients: recipients,
		MessageID:  messageID,
	})
	if err != nil {
		return c.fallback(fmt.Sprintf("failed to encode lookup: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/context/query", bytes.NewReader(payload))
	if err != nil {
		return c.fallback(fmt.Sprintf("failed to build lookup: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fallback(fmt.Sprintf("relationship store unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fallback(fmt.Sprintf("relationship store returned status %d", resp.StatusCode))
	}

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return c.fallback(fmt.Sprintf("malformed relationship response: %v", err))
	}

	return synthesize(decoded)
}

// synthesize turns raw relationship signals into a [0,1] context score and
// a findings list
func synthesize(data lookupResponse) *core.ContextResult {
	score := 0.0
	var findings []string

	if data.IsFirstTimeSender {
		score += 0.3
		findings = append(findings, "first email ever observed from this sender")
	}
	if data.IsFirstTimeCommunication {
		score += 0.2
		findings = append(findings, "sender has never communicated with these recipients")
	}
	if data.SenderIncidentCount > 0 {
		incident := 0.1 * float64(data.SenderIncidentCount)
		if incident > 0.3 {
			incident = 0.3
		}
		score += incident
		findings = append(findings, fmt.Sprintf("sender involved in %d prior incident(s)", data.SenderIncidentCount))
	}
	if data.DomainRiskScore > 0 {
		score += 0.2 * clamp01(data.DomainRiskScore)
		findings = append(findings, fmt.Sprintf("sender domain risk score %.2f", data.DomainRiskScore))
	}

	return &core.ContextResult{
		ContextScore:             clamp01(score),
		IsFirstTimeSender:        data.IsFirstTimeSender,
		IsFirstTimeCommunication: data.IsFirstTimeCommunication,
		SenderEmailCount:         data.SenderEmailCount,
		SenderIncidentCount:      data.SenderIncidentCount,
		DomainRiskScore:          data.DomainRiskScore,
		Findings:                 findings,
	}
}

// Enrich writes one evaluated record through to the graph store for
// historical relationship construction
func (c *Client) Enrich(ctx context.Context, record *core.EnrichmentRecord) error {
	if c.endpoint == "" {
		return fmt.Errorf("relationship store not configured")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode enrichment record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/context/enrich", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build enrichment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relationship store unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relationship store returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) fallback(reason string) *core.ContextResult {
	c.logger.Warn("Context agent degraded to fallback", zap.String("reason", reason))
	return &core.ContextResult{
		ContextScore: fallbackContextScore,
		Findings:     []string{fmt.Sprintf("relationship context unavailable: %s", reason)},
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
