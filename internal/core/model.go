package core

import (
	"time"
)

// Email represents an inbound or outbound email under evaluation
type Email struct {
	MessageID   string
	From        string
	FromIP      string
	To          []string
	Subject     string
	Body        string
	URLs        []string
	Attachments []Attachment
	Headers     map[string][]string
	ReceivedAt  time.Time
}

// Attachment is a single email attachment with its raw content
type Attachment struct {
	Filename string
	Content  []byte
}

// ThreatLevel is the tiered verdict derived from the final score
type ThreatLevel string

const (
	ThreatNone     ThreatLevel = "none"
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Verdict is a categorical reputation judgment for one scanned artifact
type Verdict string

const (
	VerdictClean      Verdict = "CLEAN"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictMalicious  Verdict = "MALICIOUS"
	VerdictError      Verdict = "ERROR"
)

// LabelScore is one ranked label returned by the classification model
type LabelScore struct {
	Label string
	Score float64
}

// ClassifierResult is the outcome of one classification-service invocation.
// On failure the agent substitutes the uncertainty fallback (PhishScore 0.5)
// and records the reason in Error instead of returning an error.
type ClassifierResult struct {
	ModelVersion   string
	Labels         []LabelScore
	PhishScore     float64
	ProcessingTime time.Duration
	Error          string
}

// ArtifactVerdict is the verdict for a single scanned artifact (file, domain or IP)
type ArtifactVerdict struct {
	Artifact string
	Kind     string
	Verdict  Verdict
	Detail   string
}

// ReputationResult aggregates all per-artifact scan verdicts for one email
type ReputationResult struct {
	Artifacts []ArtifactVerdict
	Aggregate Verdict
	Score     float64
}

// ContextResult carries sender/recipient relationship signals from the graph store
type ContextResult struct {
	ContextScore             float64
	IsFirstTimeSender        bool
	IsFirstTimeCommunication bool
	SenderEmailCount         int
	SenderIncidentCount      int
	DomainRiskScore          float64
	Findings                 []string
}

// ExplanationResult is the advisory rationale produced after fusion.
// It never influences the final score or threat level.
type ExplanationResult struct {
	Explanation        string
	RecommendedActions []string
	Confidence         int
}

// FusedAssessment is the complete outcome of one email evaluation
type FusedAssessment struct {
	EvaluationID string
	MessageID    string

	PhishScore   float64
	VTScore      float64
	ContextScore float64

	FinalScore  int
	ThreatLevel ThreatLevel
	IsPhishing  bool

	Classifier  *ClassifierResult
	Reputation  *ReputationResult
	Context     *ContextResult
	Explanation *ExplanationResult

	ModelVersion string
	EvaluatedAt  time.Time
}

// DetectionStatus is the lifecycle state of a detection record
type DetectionStatus string

const (
	StatusNew        DetectionStatus = "new"
	StatusInProgress DetectionStatus = "in_progress"
	StatusResolved   DetectionStatus = "resolved"
	StatusClosed     DetectionStatus = "closed"
)

// Detection is the long-lived record an analyst works on.
// UniqueID is immutable once assigned.
type Detection struct {
	ID              string
	UniqueID        string
	TenantID        string
	Severity        ThreatLevel
	Status          DetectionStatus
	AssignedTo      []string
	SentBy          string
	Timestamp       time.Time
	Description     string
	Indicators      []string
	Recommendations []string
	PushedBy        string
}

// SenderListEntry is one allow- or deny-list record
type SenderListEntry struct {
	ID        string
	Email     string
	Reason    string
	Actor     string
	Timestamp time.Time
}

// EnrichmentRecord is the write-through payload pushed to the relationship
// store after an evaluation completes
type EnrichmentRecord struct {
	MessageID    string
	Sender       string
	Recipients   []string
	Subject      string
	PhishScore   float64
	VTScore      float64
	ContextScore float64
	FinalScore   int
	ThreatLevel  ThreatLevel
	Attachments  []string
	EvaluatedAt  time.Time
}
