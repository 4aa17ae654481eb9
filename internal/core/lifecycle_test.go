package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDetectionStore struct {
	detections map[string]*Detection
}

func newFakeDetectionStore() *fakeDetectionStore {
	return &fakeDetectionStore{detections: make(map[string]*Detection)}
}

func (s *fakeDetectionStore) key(tenantID, id string) string { return tenantID + "/" + id }

func (s *fakeDetectionStore) Create(_ context.Context, det *Detection) error {
	cp := *det
	s.detections[s.key(det.TenantID, det.ID)] = &cp
	return nil
}

func (s *fakeDetectionStore) Get(_ context.Context, tenantID, id string) (*Detection, error) {
	det, ok := s.detections[s.key(tenantID, id)]
	if !ok {
		return nil, fmt.Errorf("detection %s: %w", id, ErrNotFound)
	}
	cp := *det
	cp.AssignedTo = append([]string(nil), det.AssignedTo...)
	return &cp, nil
}

func (s *fakeDetectionStore) Update(_ context.Context, det *Detection) error {
	if _, ok := s.detections[s.key(det.TenantID, det.ID)]; !ok {
		return ErrNotFound
	}
	cp := *det
	s.detections[s.key(det.TenantID, det.ID)] = &cp
	return nil
}

func (s *fakeDetectionStore) List(_ context.Context, tenantID string, _ int) ([]*Detection, error) {
	var out []*Detection
	for _, det := range s.detections {
		if det.TenantID == tenantID {
			out = append(out, det)
		}
	}
	return out, nil
}

func (s *fakeDetectionStore) ListActive(_ context.Context, tenantID string, _ int) ([]*Detection, error) {
	var out []*Detection
	for _, det := range s.detections {
		if det.TenantID == tenantID && det.PushedBy == "" {
			out = append(out, det)
		}
	}
	return out, nil
}

func phishingAssessment() *FusedAssessment {
	return &FusedAssessment{
		EvaluationID: "eval-1",
		MessageID:    "<msg-1@example.com>",
		PhishScore:   0.9,
		VTScore:      0.6,
		ContextScore: 0.3,
		FinalScore:   74,
		ThreatLevel:  ThreatHigh,
		IsPhishing:   true,
		Reputation: &ReputationResult{
			Artifacts: []ArtifactVerdict{
				{Artifact: "evil.example", Kind: "domain", Verdict: VerdictMalicious},
				{Artifact: "good.example", Kind: "domain", Verdict: VerdictClean},
			},
			Aggregate: VerdictMalicious,
			Score:     0.6,
		},
		Context: &ContextResult{
			ContextScore: 0.3,
			Findings:     []string{"first contact from this sender"},
		},
		Explanation: &ExplanationResult{
			Explanation:        "Credential harvesting attempt",
			RecommendedActions: []string{"Quarantine the message", "Reset the recipient's password"},
			Confidence:         85,
		},
	}
}

func newTestLifecycle(store DetectionStore) *LifecycleManager {
	return NewLifecycleManager(store, zap.NewNop(), fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)})
}

func TestLifecycle_RecordAssessment(t *testing.T) {
	store := newFakeDetectionStore()
	m := newTestLifecycle(store)

	det, err := m.RecordAssessment(context.Background(), "tenant-a", validTestEmail(), phishingAssessment())
	require.NoError(t, err)
	require.NotNil(t, det)

	assert.NotEmpty(t, det.ID)
	assert.Regexp(t, `^DET-20250601-[0-9A-F]{8}$`, det.UniqueID)
	assert.Equal(t, "tenant-a", det.TenantID)
	assert.Equal(t, ThreatHigh, det.Severity)
	assert.Equal(t, StatusNew, det.Status)
	assert.Equal(t, "sender@example.com", det.SentBy)
	assert.Empty(t, det.AssignedTo)
	assert.Empty(t, det.PushedBy)

	// Indicators carry the component scores, flagged artifacts and context
	// findings; clean artifacts stay out
	assert.Contains(t, det.Indicators, "phish_score=0.90")
	assert.Contains(t, det.Indicators, "reputation_score=0.60")
	assert.Contains(t, det.Indicators, "context_score=0.30")
	assert.Contains(t, det.Indicators, "domain:evil.example=MALICIOUS")
	assert.NotContains(t, det.Indicators, "domain:good.example=CLEAN")
	assert.Contains(t, det.Indicators, "first contact from this sender")

	assert.Equal(t, []string{"Quarantine the message", "Reset the recipient's password"}, det.Recommendations)

	stored, err := m.Get(context.Background(), "tenant-a", det.ID)
	require.NoError(t, err)
	assert.Equal(t, det.UniqueID, stored.UniqueID)
}

func TestLifecycle_RecordAssessment_NonPhishing(t *testing.T) {
	m := newTestLifecycle(newFakeDetectionStore())

	assessment := phishingAssessment()
	assessment.IsPhishing = false
	assessment.FinalScore = 28

	det, err := m.RecordAssessment(context.Background(), "tenant-a", validTestEmail(), assessment)
	assert.NoError(t, err)
	assert.Nil(t, det)
}

func TestLifecycle_RecordAssessment_NoDeduplication(t *testing.T) {
	store := newFakeDetectionStore()
	m := newTestLifecycle(store)

	first, err := m.RecordAssessment(context.Background(), "tenant-a", validTestEmail(), phishingAssessment())
	require.NoError(t, err)
	second, err := m.RecordAssessment(context.Background(), "tenant-a", validTestEmail(), phishingAssessment())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.UniqueID, second.UniqueID)
	assert.Len(t, store.detections, 2)
}

func TestLifecycle_FlagManually(t *testing.T) {
	m := newTestLifecycle(newFakeDetectionStore())

	assessment := phishingAssessment()
	assessment.IsPhishing = false
	assessment.FinalScore = 12
	assessment.ThreatLevel = ThreatNone

	det, err := m.FlagManually(context.Background(), "tenant-a", validTestEmail(), assessment, "analyst@corp.example")
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Contains(t, det.Description, "Manually flagged by analyst@corp.example")
}

func TestLifecycle_AssignAndUnassign(t *testing.T) {
	m := newTestLifecycle(newFakeDetectionStore())
	ctx := context.Background()

	det, err := m.RecordAssessment(ctx, "tenant-a", validTestEmail(), phishingAssessment())
	require.NoError(t, err)

	// Assigning moves new -> in_progress and keeps the set deduplicated and
	// sorted
	det, err = m.Assign(ctx, "tenant-a", det.ID, "bob@corp.example", "alice@corp.example", "bob@corp.example", "  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@corp.example", "bob@corp.example"}, det.AssignedTo)
	assert.Equal(t, StatusInProgress, det.Status)

	// Reassignment adds to the set
	det, err = m.Assign(ctx, "tenant-a", det.ID, "carol@corp.example")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@corp.example", "bob@corp.example", "carol@corp.example"}, det.AssignedTo)
	assert.Equal(t, StatusInProgress, det.Status)

	// Unassigning clears the set and resets to new
	det, err = m.Unassign(ctx, "tenant-a", det.ID)
	require.NoError(t, err)
	assert.Empty(t, det.AssignedTo)
	assert.Equal(t, StatusNew, det.Status)
}

func TestLifecycle_Transition(t *testing.T) {
	tests := []struct {
		name    string
		path    []DetectionStatus
		wantErr bool
	}{
		{name: "New to in_progress", path: []DetectionStatus{StatusInProgress}},
		{name: "New straight to resolved", path: []DetectionStatus{StatusResolved}},
		{name: "New straight to closed", path: []DetectionStatus{StatusClosed}},
		{name: "Full triage path", path: []DetectionStatus{StatusInProgress, StatusResolved, StatusClosed}},
		{name: "In_progress back to new", path: []DetectionStatus{StatusInProgress, StatusNew}},
		{name: "Resolved cannot reopen", path: []DetectionStatus{StatusResolved, StatusInProgress}, wantErr: true},
		{name: "Resolved cannot go back to new", path: []DetectionStatus{StatusResolved, StatusNew}, wantErr: true},
		{name: "Closed is terminal", path: []DetectionStatus{StatusClosed, StatusInProgress}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestLifecycle(newFakeDetectionStore())
			ctx := context.Background()

			det, err := m.RecordAssessment(ctx, "tenant-a", validTestEmail(), phishingAssessment())
			require.NoError(t, err)

			for i, to := range tt.path {
				det, err = m.Transition(ctx, "tenant-a", det.ID, to)
				if tt.wantErr && i == len(tt.path)-1 {
					assert.ErrorIs(t, err, ErrInvalidTransition)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, to, det.Status)
			}
		})
	}
}

func TestLifecycle_ForceStatusBypassesGuard(t *testing.T) {
	m := newTestLifecycle(newFakeDetectionStore())
	ctx := context.Background()

	det, err := m.RecordAssessment(ctx, "tenant-a", validTestEmail(), phishingAssessment())
	require.NoError(t, err)

	det, err = m.Transition(ctx, "tenant-a", det.ID, StatusClosed)
	require.NoError(t, err)

	// The guard rejects reopening, ForceStatus does not
	_, err = m.Transition(ctx, "tenant-a", det.ID, StatusInProgress)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	det, err = m.ForceStatus(ctx, "tenant-a", det.ID, StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, det.Status)
}

func TestLifecycle_PushIsOneWay(t *testing.T) {
	store := newFakeDetectionStore()
	m := newTestLifecycle(store)
	ctx := context.Background()

	det, err := m.RecordAssessment(ctx, "tenant-a", validTestEmail(), phishingAssessment())
	require.NoError(t, err)

	pushed, err := m.Push(ctx, "tenant-a", det.ID, "soc-automation")
	require.NoError(t, err)
	assert.Equal(t, "soc-automation", pushed.PushedBy)

	// Every further mutation is rejected
	_, err = m.Push(ctx, "tenant-a", det.ID, "someone-else")
	assert.ErrorIs(t, err, ErrAlreadyPushed)
	_, err = m.Assign(ctx, "tenant-a", det.ID, "alice@corp.example")
	assert.ErrorIs(t, err, ErrAlreadyPushed)
	_, err = m.Transition(ctx, "tenant-a", det.ID, StatusClosed)
	assert.ErrorIs(t, err, ErrAlreadyPushed)
	_, err = m.ForceStatus(ctx, "tenant-a", det.ID, StatusClosed)
	assert.ErrorIs(t, err, ErrAlreadyPushed)

	// Pushed detections leave the active queue but stay readable
	active, err := m.Active(ctx, "tenant-a", 10)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := m.Get(ctx, "tenant-a", det.ID)
	require.NoError(t, err)
	assert.Equal(t, "soc-automation", got.PushedBy)
}

func TestLifecycle_GetUnknownDetection(t *testing.T) {
	m := newTestLifecycle(newFakeDetectionStore())
	_, err := m.Get(context.Background(), "tenant-a", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
