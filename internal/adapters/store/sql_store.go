package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"go.uber.org/zap"
)

// sqlStore implements core.DetectionStore and core.AssessmentStore over
// database/sql. SQLite and MySQL share the CRUD statements; only the
// schema DDL differs per driver.
type sqlStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Close closes the underlying database
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Create persists a new detection record
func (s *sqlStore) Create(ctx context.Context, det *core.Detection) error {
	assigned, indicators, recommendations, err := marshalDetectionLists(det)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO detections
			(tenant_id, id, unique_id, severity, status, assigned_to, sent_by, ts, description, indicators, recommendations, pushed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, det.TenantID, det.ID, det.UniqueID, string(det.Severity), string(det.Status),
		assigned, det.SentBy, det.Timestamp.UTC().Format(time.RFC3339Nano),
		det.Description, indicators, recommendations, det.PushedBy)
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}
	return nil
}

// Get retrieves a detection by tenant and id
func (s *sqlStore) Get(ctx context.Context, tenantID, id string) (*core.Detection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, id, unique_id, severity, status, assigned_to, sent_by, ts, description, indicators, recommendations, pushed_by
		FROM detections
		WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	det, err := scanDetection(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	return det, err
}

// Update overwrites a mutable detection record. UniqueID is immutable and
// deliberately absent from the SET list.
func (s *sqlStore) Update(ctx context.Context, det *core.Detection) error {
	assigned, indicators, recommendations, err := marshalDetectionLists(det)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE detections
		SET severity = ?, status = ?, assigned_to = ?, description = ?, indicators = ?, recommendations = ?, pushed_by = ?
		WHERE tenant_id = ? AND id = ?
	`, string(det.Severity), string(det.Status), assigned, det.Description,
		indicators, recommendations, det.PushedBy, det.TenantID, det.ID)
	if err != nil {
		return fmt.Errorf("failed to update detection: %w", err)
	}
	// The not-found check requires affected rows to mean matched rows.
	// SQLite counts matched rows; MySQL only does with clientFoundRows,
	// which NewMySQLStore forces on. Without it a value-identical update
	// would report zero rows for a row that exists.
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// List returns detections for a tenant, newest first
func (s *sqlStore) List(ctx context.Context, tenantID string, limit int) ([]*core.Detection, error) {
	return s.query(ctx, `
		SELECT tenant_id, id, unique_id, severity, status, assigned_to, sent_by, ts, description, indicators, recommendations, pushed_by
		FROM detections
		WHERE tenant_id = ?
		ORDER BY ts DESC
		LIMIT ?
	`, tenantID, normalizeLimit(limit))
}

// ListActive returns unpushed detections for a tenant, newest first
func (s *sqlStore) ListActive(ctx context.Context, tenantID string, limit int) ([]*core.Detection, error) {
	return s.query(ctx, `
		SELECT tenant_id, id, unique_id, severity, status, assigned_to, sent_by, ts, description, indicators, recommendations, pushed_by
		FROM detections
		WHERE tenant_id = ? AND pushed_by = ''
		ORDER BY ts DESC
		LIMIT ?
	`, tenantID, normalizeLimit(limit))
}

func (s *sqlStore) query(ctx context.Context, q string, args ...interface{}) ([]*core.Detection, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var out []*core.Detection
	for rows.Next() {
		det, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, det)
	}
	return out, rows.Err()
}

// Put appends one fused assessment row
func (s *sqlStore) Put(ctx context.Context, tenantID string, assessment *core.FusedAssessment) error {
	payload, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments
			(tenant_id, evaluation_id, message_id, final_score, threat_level, is_phishing, payload, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tenantID, assessment.EvaluationID, assessment.MessageID, assessment.FinalScore,
		string(assessment.ThreatLevel), assessment.IsPhishing, payload,
		assessment.EvaluatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}
	return nil
}

// ListByMessage returns every stored assessment for one message id
func (s *sqlStore) ListByMessage(ctx context.Context, tenantID, messageID string) ([]*core.FusedAssessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM assessments
		WHERE tenant_id = ? AND message_id = ?
		ORDER BY evaluated_at ASC
	`, tenantID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var out []*core.FusedAssessment
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var assessment core.FusedAssessment
		if err := json.Unmarshal(payload, &assessment); err != nil {
			return nil, fmt.Errorf("failed to decode assessment: %w", err)
		}
		out = append(out, &assessment)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDetection(row rowScanner) (*core.Detection, error) {
	var det core.Detection
	var severity, status, assigned, indicators, recommendations, ts string

	err := row.Scan(&det.TenantID, &det.ID, &det.UniqueID, &severity, &status,
		&assigned, &det.SentBy, &ts, &det.Description, &indicators, &recommendations, &det.PushedBy)
	if err != nil {
		return nil, err
	}

	det.Severity = core.ThreatLevel(severity)
	det.Status = core.DetectionStatus(status)
	if det.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("failed to parse detection timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(assigned), &det.AssignedTo); err != nil {
		return nil, fmt.Errorf("failed to decode assignees: %w", err)
	}
	if err := json.Unmarshal([]byte(indicators), &det.Indicators); err != nil {
		return nil, fmt.Errorf("failed to decode indicators: %w", err)
	}
	if err := json.Unmarshal([]byte(recommendations), &det.Recommendations); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}
	return &det, nil
}

func marshalDetectionLists(det *core.Detection) (assigned, indicators, recommendations string, err error) {
	b, err := json.Marshal(emptyIfNil(det.AssignedTo))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode assignees: %w", err)
	}
	assigned = string(b)

	b, err = json.Marshal(emptyIfNil(det.Indicators))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode indicators: %w", err)
	}
	indicators = string(b)

	b, err = json.Marshal(emptyIfNil(det.Recommendations))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode recommendations: %w", err)
	}
	recommendations = string(b)
	return assigned, indicators, recommendations, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
