package store

import (
	"context"
	"sort"
	"sync"

	"github.com/encryptgate/threat-engine/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of core.DetectionStore and
// core.AssessmentStore, used for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	detections  map[string]map[string]*core.Detection
	assessments map[string][]*core.FusedAssessment
	logger      *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		detections:  make(map[string]map[string]*core.Detection),
		assessments: make(map[string][]*core.FusedAssessment),
		logger:      logger,
	}
}

// Create persists a new detection record
func (s *MemoryStore) Create(_ context.Context, det *core.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.detections[det.TenantID]
	if !ok {
		tenant = make(map[string]*core.Detection)
		s.detections[det.TenantID] = tenant
	}
	copied := cloneDetection(det)
	tenant[det.ID] = copied
	return nil
}

// Get retrieves a detection by tenant and id
func (s *MemoryStore) Get(_ context.Context, tenantID, id string) (*core.Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	det, ok := s.detections[tenantID][id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneDetection(det), nil
}

// Update overwrites a detection record
func (s *MemoryStore) Update(_ context.Context, det *core.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.detections[det.TenantID]
	if !ok {
		return core.ErrNotFound
	}
	if _, ok := tenant[det.ID]; !ok {
		return core.ErrNotFound
	}
	tenant[det.ID] = cloneDetection(det)
	return nil
}

// List returns detections for a tenant, newest first
func (s *MemoryStore) List(_ context.Context, tenantID string, limit int) ([]*core.Detection, error) {
	return s.list(tenantID, limit, false)
}

// ListActive returns unpushed detections for a tenant, newest first
func (s *MemoryStore) ListActive(_ context.Context, tenantID string, limit int) ([]*core.Detection, error) {
	return s.list(tenantID, limit, true)
}

func (s *MemoryStore) list(tenantID string, limit int, activeOnly bool) ([]*core.Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Detection
	for _, det := range s.detections[tenantID] {
		if activeOnly && det.PushedBy != "" {
			continue
		}
		out = append(out, cloneDetection(det))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put appends a fused assessment for a tenant
func (s *MemoryStore) Put(_ context.Context, tenantID string, assessment *core.FusedAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *assessment
	s.assessments[tenantID] = append(s.assessments[tenantID], &copied)
	return nil
}

// ListByMessage returns every stored assessment for one message id
func (s *MemoryStore) ListByMessage(_ context.Context, tenantID, messageID string) ([]*core.FusedAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.FusedAssessment
	for _, a := range s.assessments[tenantID] {
		if a.MessageID == messageID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func cloneDetection(det *core.Detection) *core.Detection {
	copied := *det
	copied.AssignedTo = append([]string(nil), det.AssignedTo...)
	copied.Indicators = append([]string(nil), det.Indicators...)
	copied.Recommendations = append([]string(nil), det.Recommendations...)
	return &copied
}
