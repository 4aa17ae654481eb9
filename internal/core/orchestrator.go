package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator runs the full assessment pipeline for one email: fan out the
// three detection agents, fuse their scores, request an explanation, and
// dispatch relationship-store enrichment in the background.
type Orchestrator struct {
	classifier Classifier
	reputation ReputationScanner
	contextSvc ContextProvider
	explainer  Explainer
	enrichment *EnrichmentQueue
	blocked    SenderListStore
	allowed    SenderListStore
	logger     *zap.Logger
	clock      Clock
}

// NewOrchestrator creates a new assessment orchestrator
func NewOrchestrator(
	classifier Classifier,
	reputation ReputationScanner,
	contextSvc ContextProvider,
	explainer Explainer,
	enrichment *EnrichmentQueue,
	blocked SenderListStore,
	allowed SenderListStore,
	logger *zap.Logger,
	clock Clock,
) *Orchestrator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Orchestrator{
		classifier: classifier,
		reputation: reputation,
		contextSvc: contextSvc,
		explainer:  explainer,
		enrichment: enrichment,
		blocked:    blocked,
		allowed:    allowed,
		logger:     logger,
		clock:      clock,
	}
}

// Evaluate runs the pipeline and returns the fused assessment. The only
// failure mode is invalid caller input; every downstream outage degrades to
// an agent fallback instead of aborting.
func (o *Orchestrator) Evaluate(ctx context.Context, email *Email) (*FusedAssessment, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if assessment, ok := o.checkSenderLists(ctx, email); ok {
		return assessment, nil
	}

	// Fan out the three agents. Each receives its own slice of the input
	// and settles independently; a failing agent returns its fallback
	// result, so the barrier below always completes with three results.
	var (
		wg         sync.WaitGroup
		clsResult  *ClassifierResult
		repResult  *ReputationResult
		ctxResult  *ContextResult
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		clsResult = o.classifier.Classify(ctx, email.Subject, email.Body, email.URLs)
	}()
	go func() {
		defer wg.Done()
		repResult = o.reputation.Scan(ctx, email.Attachments, email.From, email.URLs, email.FromIP)
	}()
	go func() {
		defer wg.Done()
		ctxResult = o.contextSvc.Lookup(ctx, email.From, email.To, email.MessageID)
	}()
	wg.Wait()

	final, level := Fuse(clsResult.PhishScore, repResult.Score, ctxResult.ContextScore)

	assessment := &FusedAssessment{
		EvaluationID: uuid.NewString(),
		MessageID:    email.MessageID,
		PhishScore:   clsResult.PhishScore,
		VTScore:      repResult.Score,
		ContextScore: ctxResult.ContextScore,
		FinalScore:   final,
		ThreatLevel:  level,
		IsPhishing:   final >= PhishingThreshold,
		Classifier:   clsResult,
		Reputation:   repResult,
		Context:      ctxResult,
		ModelVersion: clsResult.ModelVersion,
		EvaluatedAt:  o.clock.Now(),
	}

	// Explanation is advisory and strictly sequential after fusion
	if o.explainer != nil {
		assessment.Explanation = o.explainer.Explain(ctx, email, assessment)
	}

	o.logger.Info("Email evaluated",
		zap.String("evaluation_id", assessment.EvaluationID),
		zap.String("message_id", email.MessageID),
		zap.String("sender", email.From),
		zap.Int("final_score", assessment.FinalScore),
		zap.String("threat_level", string(assessment.ThreatLevel)),
		zap.Bool("is_phishing", assessment.IsPhishing))

	o.dispatchEnrichment(email, assessment)

	return assessment, nil
}

// checkSenderLists short-circuits evaluation for listed senders. An allowed
// sender yields a clean assessment without calling any agent; a blocked
// sender pins the assessment to critical.
func (o *Orchestrator) checkSenderLists(ctx context.Context, email *Email) (*FusedAssessment, bool) {
	if o.allowed != nil {
		if ok, err := o.allowed.Contains(ctx, email.From); err == nil && ok {
			o.logger.Info("Skipping evaluation for allowed sender", zap.String("sender", email.From))
			return o.pinnedAssessment(email, 0, "sender is on the allowed list"), true
		}
	}
	if o.blocked != nil {
		if ok, err := o.blocked.Contains(ctx, email.From); err == nil && ok {
			o.logger.Warn("Blocked sender detected", zap.String("sender", email.From))
			return o.pinnedAssessment(email, 100, "sender is on the blocked list"), true
		}
	}
	return nil, false
}

func (o *Orchestrator) pinnedAssessment(email *Email, score int, reason string) *FusedAssessment {
	normalized := float64(score) / 100
	return &FusedAssessment{
		EvaluationID: uuid.NewString(),
		MessageID:    email.MessageID,
		PhishScore:   normalized,
		VTScore:      normalized,
		ContextScore: normalized,
		FinalScore:   score,
		ThreatLevel:  TierFor(score),
		IsPhishing:   score >= PhishingThreshold,
		Explanation: &ExplanationResult{
			Explanation:        reason,
			RecommendedActions: nil,
			Confidence:         100,
		},
		ModelVersion: "senderlist",
		EvaluatedAt:  o.clock.Now(),
	}
}

// dispatchEnrichment submits the write-through record to the background
// queue. A full queue or a failed write is logged and dropped; the request
// path never waits on it.
func (o *Orchestrator) dispatchEnrichment(email *Email, assessment *FusedAssessment) {
	if o.enrichment == nil {
		return
	}

	names := make([]string, 0, len(email.Attachments))
	for _, a := range email.Attachments {
		names = append(names, a.Filename)
	}

	record := &EnrichmentRecord{
		MessageID:    email.MessageID,
		Sender:       email.From,
		Recipients:   append([]string(nil), email.To...),
		Subject:      email.Subject,
		PhishScore:   assessment.PhishScore,
		VTScore:      assessment.VTScore,
		ContextScore: assessment.ContextScore,
		FinalScore:   assessment.FinalScore,
		ThreatLevel:  assessment.ThreatLevel,
		Attachments:  names,
		EvaluatedAt:  assessment.EvaluatedAt,
	}

	if !o.enrichment.Submit(record) {
		o.logger.Warn("Enrichment queue full, dropping record",
			zap.String("message_id", email.MessageID))
	}
}

func validateEmail(email *Email) error {
	if email == nil {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(email.From) == "" || !strings.Contains(email.From, "@") {
		return ErrInvalidEmail
	}
	if len(email.To) == 0 {
		return ErrInvalidEmail
	}
	return nil
}

// EnrichmentQueue is a bounded background worker pool for relationship-store
// write-through. Errors are logged and discarded; there is no retry queue.
type EnrichmentQueue struct {
	enricher Enricher
	logger   *zap.Logger
	jobs     chan *EnrichmentRecord
	timeout  time.Duration
	wg       sync.WaitGroup
	errs     chan error
}

// NewEnrichmentQueue starts workers draining the enrichment queue
func NewEnrichmentQueue(enricher Enricher, logger *zap.Logger, workers, depth int, timeout time.Duration) *EnrichmentQueue {
	if workers <= 0 {
		workers = 1
	}
	if depth <= 0 {
		depth = 64
	}
	q := &EnrichmentQueue{
		enricher: enricher,
		logger:   logger,
		jobs:     make(chan *EnrichmentRecord, depth),
		timeout:  timeout,
		errs:     make(chan error, depth),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues a record without blocking. Returns false when the queue
// is full.
func (q *EnrichmentQueue) Submit(record *EnrichmentRecord) bool {
	select {
	case q.jobs <- record:
		return true
	default:
		return false
	}
}

// Errors exposes the terminal error channel so the logged-and-dropped
// policy can be observed in tests
func (q *EnrichmentQueue) Errors() <-chan error {
	return q.errs
}

// Stop drains outstanding jobs and stops the workers
func (q *EnrichmentQueue) Stop() {
	close(q.jobs)
	q.wg.Wait()
	close(q.errs)
}

func (q *EnrichmentQueue) worker() {
	defer q.wg.Done()
	for record := range q.jobs {
		ctx := context.Background()
		cancel := func() {}
		if q.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, q.timeout)
		}
		err := q.enricher.Enrich(ctx, record)
		cancel()
		if err != nil {
			q.logger.Error("Relationship enrichment failed",
				zap.String("message_id", record.MessageID),
				zap.Error(err))
			select {
			case q.errs <- err:
			default:
			}
		}
	}
}
