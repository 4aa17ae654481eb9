package factory

import (
	"fmt"

	"github.com/encryptgate/threat-engine/internal/adapters/filter"
	"github.com/encryptgate/threat-engine/internal/config"
	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates the ingestion front end
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.TriageService
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.TriageService) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateEmailFilter creates the configured ingestion filter
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	switch filterType := f.cfg.GetString("server.filter_type"); filterType {
	case "smtp":
		return filter.NewSMTPFilter(
			f.service,
			f.logger,
			f.cfg.GetString("server.listen_address"),
			f.cfg.GetBool("server.block_critical"),
			f.cfg.GetString("server.headers.level"),
			f.cfg.GetString("server.headers.score"),
			f.cfg.GetString("server.headers.reason"),
			f.cfg.GetString("server.relay_address"),
			f.cfg.GetInt("server.relay_port"),
			f.cfg.GetBool("server.relay_enabled"),
		), nil
	case "cli":
		return filter.NewCliFilter(f.service, f.logger, f.cfg.GetBool("logging.verbose"))
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", filterType)
	}
}
