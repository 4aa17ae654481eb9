package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore is the SQLite-backed detection and assessment store
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens or creates a SQLite store at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS detections (
			tenant_id TEXT NOT NULL,
			id TEXT NOT NULL,
			unique_id TEXT NOT NULL,
			severity TEXT,
			status TEXT,
			assigned_to TEXT,
			sent_by TEXT,
			ts TEXT,
			description TEXT,
			indicators TEXT,
			recommendations TEXT,
			pushed_by TEXT,
			PRIMARY KEY (tenant_id, id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create detections table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_detections_tenant_ts ON detections(tenant_id, ts)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create detections index: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS assessments (
			tenant_id TEXT NOT NULL,
			evaluation_id TEXT NOT NULL,
			message_id TEXT,
			final_score INTEGER,
			threat_level TEXT,
			is_phishing BOOLEAN,
			payload TEXT,
			evaluated_at TEXT,
			PRIMARY KEY (tenant_id, evaluation_id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create assessments table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_assessments_message ON assessments(tenant_id, message_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create assessments index: %w", err)
	}

	return &SQLiteStore{sqlStore{db: db, logger: logger}}, nil
}
