package store

import (
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore is the MySQL-backed detection and assessment store
type MySQLStore struct {
	sqlStore
}

// mysqlConfig parses the DSN and forces clientFoundRows so affected rows
// report matched rows. Without it MySQL counts changed rows and a
// value-identical update is indistinguishable from a missing record in
// sqlStore.Update.
func mysqlConfig(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ClientFoundRows = true
	return cfg, nil
}

// NewMySQLStore connects to MySQL and ensures the schema exists
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	cfg, err := mysqlConfig(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS detections (
			tenant_id VARCHAR(128) NOT NULL,
			id VARCHAR(64) NOT NULL,
			unique_id VARCHAR(64) NOT NULL,
			severity VARCHAR(16),
			status VARCHAR(16),
			assigned_to TEXT,
			sent_by VARCHAR(320),
			ts VARCHAR(40),
			description TEXT,
			indicators TEXT,
			recommendations TEXT,
			pushed_by VARCHAR(320),
			PRIMARY KEY (tenant_id, id),
			INDEX idx_detections_tenant_ts (tenant_id, ts)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create detections table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS assessments (
			tenant_id VARCHAR(128) NOT NULL,
			evaluation_id VARCHAR(64) NOT NULL,
			message_id VARCHAR(256),
			final_score INT,
			threat_level VARCHAR(16),
			is_phishing BOOLEAN,
			payload MEDIUMTEXT,
			evaluated_at VARCHAR(40),
			PRIMARY KEY (tenant_id, evaluation_id),
			INDEX idx_assessments_message (tenant_id, message_id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create assessments table: %w", err)
	}

	return &MySQLStore{sqlStore{db: db, logger: logger}}, nil
}
