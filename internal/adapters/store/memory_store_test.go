package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDetection(id string, ts time.Time) *core.Detection {
	return &core.Detection{
		ID:         id,
		UniqueID:   "DET-20250601-" + id,
		TenantID:   "tenant-a",
		Severity:   core.ThreatHigh,
		Status:     core.StatusNew,
		SentBy:     "sender@example.com",
		Timestamp:  ts,
		Indicators: []string{"phish_score=0.90"},
	}
}

func TestMemoryStore_DetectionRoundTrip(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	det := testDetection("d1", time.Now())
	require.NoError(t, s.Create(ctx, det))

	got, err := s.Get(ctx, "tenant-a", "d1")
	require.NoError(t, err)
	assert.Equal(t, det.UniqueID, got.UniqueID)
	assert.Equal(t, det.Indicators, got.Indicators)

	// Stored record is isolated from caller mutation
	got.Indicators[0] = "mutated"
	again, err := s.Get(ctx, "tenant-a", "d1")
	require.NoError(t, err)
	assert.Equal(t, "phish_score=0.90", again.Indicators[0])
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())

	_, err := s.Get(context.Background(), "tenant-a", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.Get(context.Background(), "unknown-tenant", "d1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryStore_Update(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	det := testDetection("d1", time.Now())
	require.NoError(t, s.Create(ctx, det))

	det.Status = core.StatusInProgress
	det.AssignedTo = []string{"alice@corp.example"}
	require.NoError(t, s.Update(ctx, det))

	got, err := s.Get(ctx, "tenant-a", "d1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusInProgress, got.Status)
	assert.Equal(t, []string{"alice@corp.example"}, got.AssignedTo)

	assert.ErrorIs(t, s.Update(ctx, testDetection("missing", time.Now())), core.ErrNotFound)
}

func TestMemoryStore_ListOrderingAndLimit(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Create(ctx, testDetection(fmt.Sprintf("d%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := s.List(ctx, "tenant-a", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	// Newest first
	assert.Equal(t, "d4", all[0].ID)
	assert.Equal(t, "d0", all[4].ID)

	limited, err := s.List(ctx, "tenant-a", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "d4", limited[0].ID)
	assert.Equal(t, "d3", limited[1].ID)
}

func TestMemoryStore_ListActiveExcludesPushed(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	active := testDetection("d1", time.Now())
	require.NoError(t, s.Create(ctx, active))

	pushed := testDetection("d2", time.Now())
	pushed.PushedBy = "soc-automation"
	require.NoError(t, s.Create(ctx, pushed))

	got, err := s.ListActive(ctx, "tenant-a", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)

	all, err := s.List(ctx, "tenant-a", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStore_TenantIsolation(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	det := testDetection("d1", time.Now())
	require.NoError(t, s.Create(ctx, det))

	other := testDetection("d2", time.Now())
	other.TenantID = "tenant-b"
	require.NoError(t, s.Create(ctx, other))

	_, err := s.Get(ctx, "tenant-b", "d1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	listed, err := s.List(ctx, "tenant-b", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "d2", listed[0].ID)
}

func TestMemoryStore_Assessments(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Put(ctx, "tenant-a", &core.FusedAssessment{
			EvaluationID: fmt.Sprintf("eval-%d", i),
			MessageID:    "<m1@example.com>",
			FinalScore:   53,
			ThreatLevel:  core.ThreatMedium,
			IsPhishing:   true,
		}))
	}
	require.NoError(t, s.Put(ctx, "tenant-a", &core.FusedAssessment{
		EvaluationID: "eval-other",
		MessageID:    "<m2@example.com>",
	}))

	got, err := s.ListByMessage(ctx, "tenant-a", "<m1@example.com>")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "eval-0", got[0].EvaluationID)
	assert.Equal(t, "eval-1", got[1].EvaluationID)

	none, err := s.ListByMessage(ctx, "tenant-b", "<m1@example.com>")
	require.NoError(t, err)
	assert.Empty(t, none)
}
