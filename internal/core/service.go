package core

import (
	"context"

	"go.uber.org/zap"
)

// TriageService ties the orchestrator to persistence: evaluate the email,
// store the fused assessment, and open a detection when warranted. Storage
// failures are logged and do not void the assessment; classification must
// survive a store outage.
type TriageService struct {
	orchestrator *Orchestrator
	lifecycle    *LifecycleManager
	assessments  AssessmentStore
	tenantID     string
	logger       *zap.Logger
}

// NewTriageService creates a new triage service
func NewTriageService(
	orchestrator *Orchestrator,
	lifecycle *LifecycleManager,
	assessments AssessmentStore,
	tenantID string,
	logger *zap.Logger,
) *TriageService {
	return &TriageService{
		orchestrator: orchestrator,
		lifecycle:    lifecycle,
		assessments:  assessments,
		tenantID:     tenantID,
		logger:       logger,
	}
}

// ProcessEmail runs the full triage pipeline for one email. The returned
// detection is nil when the assessment stayed below the phishing threshold.
func (s *TriageService) ProcessEmail(ctx context.Context, email *Email) (*FusedAssessment, *Detection, error) {
	assessment, err := s.orchestrator.Evaluate(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	if s.assessments != nil {
		if err := s.assessments.Put(ctx, s.tenantID, assessment); err != nil {
			s.logger.Error("Failed to persist assessment",
				zap.String("evaluation_id", assessment.EvaluationID),
				zap.Error(err))
		}
	}

	var detection *Detection
	if s.lifecycle != nil {
		detection, err = s.lifecycle.RecordAssessment(ctx, s.tenantID, email, assessment)
		if err != nil {
			s.logger.Error("Failed to open detection",
				zap.String("evaluation_id", assessment.EvaluationID),
				zap.Error(err))
			detection = nil
		}
	}

	return assessment, detection, nil
}

// FlagEmail evaluates an email and opens a detection regardless of its
// score, on an analyst's request
func (s *TriageService) FlagEmail(ctx context.Context, email *Email, analyst string) (*FusedAssessment, *Detection, error) {
	assessment, err := s.orchestrator.Evaluate(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	if s.assessments != nil {
		if err := s.assessments.Put(ctx, s.tenantID, assessment); err != nil {
			s.logger.Error("Failed to persist assessment",
				zap.String("evaluation_id", assessment.EvaluationID),
				zap.Error(err))
		}
	}

	detection, err := s.lifecycle.FlagManually(ctx, s.tenantID, email, assessment, analyst)
	if err != nil {
		return assessment, nil, err
	}
	return assessment, detection, nil
}

// TenantID returns the tenant this service evaluates for
func (s *TriageService) TenantID() string {
	return s.tenantID
}
