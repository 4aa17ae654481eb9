package graphstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(endpoint string) *Client {
	return NewClient(endpoint, 5*time.Second, 4, zap.NewNop())
}

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/context/query", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req lookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "stranger@evil.example", req.Sender)
		assert.Equal(t, []string{"victim@corp.example"}, req.Recipients)

		json.NewEncoder(w).Encode(lookupResponse{
			SenderEmailCount:         0,
			SenderIncidentCount:      2,
			IsFirstTimeSender:        true,
			IsFirstTimeCommunication: true,
			DomainRiskScore:          0.5,
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	result := c.Lookup(context.Background(), "stranger@evil.example", []string{"victim@corp.example"}, "<m@example.com>")

	// 0.3 (first sender) + 0.2 (first communication) + 0.2 (2 incidents)
	// + 0.1 (0.2 * 0.5 domain risk)
	assert.InDelta(t, 0.8, result.ContextScore, 1e-9)
	assert.True(t, result.IsFirstTimeSender)
	assert.True(t, result.IsFirstTimeCommunication)
	assert.Equal(t, 2, result.SenderIncidentCount)
	assert.Len(t, result.Findings, 4)
}

func TestLookup_KnownSenderScoresZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(lookupResponse{SenderEmailCount: 57})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	result := c.Lookup(context.Background(), "colleague@corp.example", []string{"me@corp.example"}, "")

	assert.Equal(t, 0.0, result.ContextScore)
	assert.Equal(t, 57, result.SenderEmailCount)
	assert.Empty(t, result.Findings)
}

func TestLookup_Fallback(t *testing.T) {
	tests := []struct {
		name   string
		client *Client
	}{
		{name: "Not configured", client: newTestClient("")},
		{
			name: "Service error",
			client: func() *Client {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusServiceUnavailable)
				}))
				t.Cleanup(server.Close)
				return newTestClient(server.URL)
			}(),
		},
		{
			name: "Malformed response",
			client: func() *Client {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.Write([]byte("not json"))
				}))
				t.Cleanup(server.Close)
				return newTestClient(server.URL)
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.client.Lookup(context.Background(), "a@b.example", []string{"c@d.example"}, "")

			assert.Equal(t, fallbackContextScore, result.ContextScore)
			require.Len(t, result.Findings, 1)
			assert.Contains(t, result.Findings[0], "relationship context unavailable")
		})
	}
}

func TestSynthesize_IncidentCap(t *testing.T) {
	// Incident contribution caps at 0.3 no matter how many priors exist
	result := synthesize(lookupResponse{SenderIncidentCount: 50})
	assert.InDelta(t, 0.3, result.ContextScore, 1e-9)
}

func TestSynthesize_ClampsAtOne(t *testing.T) {
	result := synthesize(lookupResponse{
		IsFirstTimeSender:        true,
		IsFirstTimeCommunication: true,
		SenderIncidentCount:      10,
		DomainRiskScore:          1.0,
	})
	assert.Equal(t, 1.0, result.ContextScore)
}

func TestEnrich(t *testing.T) {
	var received core.EnrichmentRecord
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/context/enrich", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.Enrich(context.Background(), &core.EnrichmentRecord{
		MessageID:   "<m@example.com>",
		Sender:      "a@b.example",
		Recipients:  []string{"c@d.example"},
		FinalScore:  53,
		ThreatLevel: core.ThreatMedium,
	})
	require.NoError(t, err)
	assert.Equal(t, "<m@example.com>", received.MessageID)
	assert.Equal(t, 53, received.FinalScore)
}

func TestEnrich_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.Enrich(context.Background(), &core.EnrichmentRecord{MessageID: "<m@example.com>"})
	assert.ErrorContains(t, err, "status 500")

	err = newTestClient("").Enrich(context.Background(), &core.EnrichmentRecord{})
	assert.ErrorContains(t, err, "not configured")
}
