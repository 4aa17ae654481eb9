package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/encryptgate/threat-engine/internal/adapters/store"
	"github.com/encryptgate/threat-engine/internal/config"
	"github.com/encryptgate/threat-engine/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates the detection/assessment persistence backend
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{cfg: cfg, logger: logger}
}

// Stores bundles both store interfaces, which every backend implements
// over the same database
type Stores struct {
	Detections  core.DetectionStore
	Assessments core.AssessmentStore
}

// CreateStores creates the persistence backend based on configuration
func (f *StoreFactory) CreateStores() (*Stores, error) {
	switch storeType := f.cfg.GetString("store.type"); storeType {
	case "memory":
		mem := store.NewMemoryStore(f.logger)
		return &Stores{Detections: mem, Assessments: mem}, nil
	case "sqlite":
		dbPath := f.cfg.GetString("store.sqlite_path")
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		s, err := store.NewSQLiteStore(dbPath, f.logger)
		if err != nil {
			return nil, err
		}
		return &Stores{Detections: s, Assessments: s}, nil
	case "mysql":
		s, err := store.NewMySQLStore(f.cfg.GetString("store.mysql_dsn"), f.logger)
		if err != nil {
			return nil, err
		}
		return &Stores{Detections: s, Assessments: s}, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}

// TenantID returns the tenant this process evaluates for
func (f *StoreFactory) TenantID() string {
	return f.cfg.GetString("store.tenant_id")
}
