package core

import (
	"context"
	"time"
)

// Classifier calls the external phishing-classification service.
// Implementations must convert every failure into the fallback
// ClassifierResult rather than returning an error.
type Classifier interface {
	Classify(ctx context.Context, subject, body string, urls []string) *ClassifierResult
}

// ReputationScanner runs all reputation sub-checks for one email and
// aggregates them into a single verdict and score. Same fallback contract
// as Classifier: failures degrade, they never propagate.
type ReputationScanner interface {
	Scan(ctx context.Context, attachments []Attachment, sender string, urls []string, senderIP string) *ReputationResult
}

// ContextProvider queries the relationship store for sender/recipient history
type ContextProvider interface {
	Lookup(ctx context.Context, sender string, recipients []string, messageID string) *ContextResult
}

// Explainer produces the advisory rationale for an already-fused assessment
type Explainer interface {
	Explain(ctx context.Context, email *Email, assessment *FusedAssessment) *ExplanationResult
}

// Enricher writes one evaluated record back to the relationship store
type Enricher interface {
	Enrich(ctx context.Context, record *EnrichmentRecord) error
}

// DetectionStore persists detection records, keyed by tenant with a
// time-ordered sort key
type DetectionStore interface {
	// Create persists a new detection record
	Create(ctx context.Context, det *Detection) error

	// Get retrieves a detection by tenant and id
	Get(ctx context.Context, tenantID, id string) (*Detection, error)

	// Update overwrites a mutable detection record
	Update(ctx context.Context, det *Detection) error

	// List returns detections for a tenant, newest first
	List(ctx context.Context, tenantID string, limit int) ([]*Detection, error)

	// ListActive returns detections that have not been pushed to an
	// external workflow
	ListActive(ctx context.Context, tenantID string, limit int) ([]*Detection, error)
}

// AssessmentStore persists fused assessments, one append-only row per evaluation
type AssessmentStore interface {
	Put(ctx context.Context, tenantID string, assessment *FusedAssessment) error
	ListByMessage(ctx context.Context, tenantID, messageID string) ([]*FusedAssessment, error)
}

// SenderListStore holds a blocked or allowed sender list
type SenderListStore interface {
	Add(ctx context.Context, entry *SenderListEntry) error
	Remove(ctx context.Context, email string) error
	Contains(ctx context.Context, email string) (bool, error)
	Entries(ctx context.Context) ([]*SenderListEntry, error)
}

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
