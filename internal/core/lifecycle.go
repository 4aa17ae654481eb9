package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LifecycleManager governs detection records: creation from phishing-positive
// assessments or manual flags, assignment, status transitions and
// push-to-workflow.
type LifecycleManager struct {
	store  DetectionStore
	logger *zap.Logger
	clock  Clock
}

// NewLifecycleManager creates a new detection lifecycle manager
func NewLifecycleManager(store DetectionStore, logger *zap.Logger, clock Clock) *LifecycleManager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &LifecycleManager{store: store, logger: logger, clock: clock}
}

// allowedTransitions is the explicit status guard. The upstream product let
// any caller set any status; that gap is closed here. ForceStatus remains
// for admin tooling that must bypass the guard.
var allowedTransitions = map[DetectionStatus][]DetectionStatus{
	StatusNew:        {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusInProgress, StatusNew, StatusResolved, StatusClosed},
	StatusResolved:   {StatusClosed},
	StatusClosed:     {},
}

func transitionAllowed(from, to DetectionStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RecordAssessment creates a detection when the assessment crossed the
// phishing threshold. Returns nil without error for non-phishing
// assessments. No deduplication: re-evaluating the same email produces a
// new detection record.
func (m *LifecycleManager) RecordAssessment(ctx context.Context, tenantID string, email *Email, assessment *FusedAssessment) (*Detection, error) {
	if !assessment.IsPhishing {
		return nil, nil
	}
	return m.create(ctx, tenantID, email, assessment, "")
}

// FlagManually creates a detection for an email an analyst flagged
// regardless of its fused score
func (m *LifecycleManager) FlagManually(ctx context.Context, tenantID string, email *Email, assessment *FusedAssessment, analyst string) (*Detection, error) {
	return m.create(ctx, tenantID, email, assessment, analyst)
}

func (m *LifecycleManager) create(ctx context.Context, tenantID string, email *Email, assessment *FusedAssessment, flaggedBy string) (*Detection, error) {
	description := fmt.Sprintf("Phishing assessment scored %d (%s) for message from %s",
		assessment.FinalScore, assessment.ThreatLevel, email.From)
	if flaggedBy != "" {
		description = fmt.Sprintf("Manually flagged by %s: %s", flaggedBy, description)
	}

	det := &Detection{
		ID:              uuid.NewString(),
		UniqueID:        newUniqueID(m.clock),
		TenantID:        tenantID,
		Severity:        assessment.ThreatLevel,
		Status:          StatusNew,
		SentBy:          email.From,
		Timestamp:       m.clock.Now(),
		Description:     description,
		Indicators:      collectIndicators(assessment),
		Recommendations: collectRecommendations(assessment),
	}

	if err := m.store.Create(ctx, det); err != nil {
		return nil, fmt.Errorf("failed to persist detection: %w", err)
	}

	m.logger.Info("Detection created",
		zap.String("detection_id", det.ID),
		zap.String("unique_id", det.UniqueID),
		zap.String("tenant_id", tenantID),
		zap.String("severity", string(det.Severity)),
		zap.Bool("manual", flaggedBy != ""))

	return det, nil
}

// Assign adds identities to the detection's assignee set and moves a new
// detection to in_progress. Reassignment of an in-progress detection is a
// valid in_progress → in_progress move.
func (m *LifecycleManager) Assign(ctx context.Context, tenantID, id string, identities ...string) (*Detection, error) {
	det, err := m.mutable(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(det.AssignedTo)+len(identities))
	for _, a := range det.AssignedTo {
		set[a] = struct{}{}
	}
	for _, a := range identities {
		a = strings.TrimSpace(a)
		if a != "" {
			set[a] = struct{}{}
		}
	}
	det.AssignedTo = det.AssignedTo[:0]
	for a := range set {
		det.AssignedTo = append(det.AssignedTo, a)
	}
	sort.Strings(det.AssignedTo)

	if det.Status == StatusNew && len(det.AssignedTo) > 0 {
		det.Status = StatusInProgress
	}

	if err := m.store.Update(ctx, det); err != nil {
		return nil, fmt.Errorf("failed to update detection: %w", err)
	}
	return det, nil
}

// Unassign clears the assignee set and resets the detection to new
func (m *LifecycleManager) Unassign(ctx context.Context, tenantID, id string) (*Detection, error) {
	det, err := m.mutable(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	det.AssignedTo = []string{}
	if det.Status == StatusInProgress {
		det.Status = StatusNew
	}

	if err := m.store.Update(ctx, det); err != nil {
		return nil, fmt.Errorf("failed to update detection: %w", err)
	}
	return det, nil
}

// Transition moves a detection to a new status, enforcing the transition
// table
func (m *LifecycleManager) Transition(ctx context.Context, tenantID, id string, to DetectionStatus) (*Detection, error) {
	det, err := m.mutable(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(det.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, det.Status, to)
	}

	det.Status = to
	if err := m.store.Update(ctx, det); err != nil {
		return nil, fmt.Errorf("failed to update detection: %w", err)
	}

	m.logger.Info("Detection status changed",
		zap.String("detection_id", det.ID),
		zap.String("status", string(to)))
	return det, nil
}

// ForceStatus bypasses the transition guard. Admin tooling only.
func (m *LifecycleManager) ForceStatus(ctx context.Context, tenantID, id string, to DetectionStatus) (*Detection, error) {
	det, err := m.mutable(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	det.Status = to
	if err := m.store.Update(ctx, det); err != nil {
		return nil, fmt.Errorf("failed to update detection: %w", err)
	}
	return det, nil
}

// Push stamps the detection with the pushing identity and removes it from
// the active queue. One-way; a pushed detection rejects further mutation.
func (m *LifecycleManager) Push(ctx context.Context, tenantID, id, actor string) (*Detection, error) {
	det, err := m.mutable(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	det.PushedBy = actor
	if err := m.store.Update(ctx, det); err != nil {
		return nil, fmt.Errorf("failed to update detection: %w", err)
	}

	m.logger.Info("Detection pushed to workflow",
		zap.String("detection_id", det.ID),
		zap.String("pushed_by", actor))
	return det, nil
}

// Get retrieves one detection
func (m *LifecycleManager) Get(ctx context.Context, tenantID, id string) (*Detection, error) {
	return m.store.Get(ctx, tenantID, id)
}

// Active lists detections still in the analyst queue
func (m *LifecycleManager) Active(ctx context.Context, tenantID string, limit int) ([]*Detection, error) {
	return m.store.ListActive(ctx, tenantID, limit)
}

func (m *LifecycleManager) mutable(ctx context.Context, tenantID, id string) (*Detection, error) {
	det, err := m.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if det.PushedBy != "" {
		return nil, ErrAlreadyPushed
	}
	return det, nil
}

// newUniqueID builds the immutable human-facing detection identifier
func newUniqueID(clock Clock) string {
	return fmt.Sprintf("DET-%s-%s",
		clock.Now().UTC().Format("20060102"),
		strings.ToUpper(uuid.NewString()[:8]))
}

func collectIndicators(assessment *FusedAssessment) []string {
	indicators := []string{
		fmt.Sprintf("phish_score=%.2f", assessment.PhishScore),
		fmt.Sprintf("reputation_score=%.2f", assessment.VTScore),
		fmt.Sprintf("context_score=%.2f", assessment.ContextScore),
	}
	if assessment.Reputation != nil {
		for _, a := range assessment.Reputation.Artifacts {
			if a.Verdict == VerdictMalicious || a.Verdict == VerdictSuspicious {
				indicators = append(indicators, fmt.Sprintf("%s:%s=%s", a.Kind, a.Artifact, a.Verdict))
			}
		}
	}
	if assessment.Context != nil {
		indicators = append(indicators, assessment.Context.Findings...)
	}
	return indicators
}

func collectRecommendations(assessment *FusedAssessment) []string {
	if assessment.Explanation == nil {
		return nil
	}
	return append([]string(nil), assessment.Explanation.RecommendedActions...)
}
