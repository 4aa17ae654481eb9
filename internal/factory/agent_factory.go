package factory

import (
	"github.com/encryptgate/threat-engine/internal/adapters/graphstore"
	"github.com/encryptgate/threat-engine/internal/adapters/mlservice"
	"github.com/encryptgate/threat-engine/internal/adapters/reputation"
	"github.com/encryptgate/threat-engine/internal/config"
	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/senderlist"
	"go.uber.org/zap"
)

// AgentFactory creates the three detection agents and their supporting
// infrastructure from configuration
type AgentFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewAgentFactory creates a new agent factory
func NewAgentFactory(cfg *config.Config, logger *zap.Logger) *AgentFactory {
	return &AgentFactory{cfg: cfg, logger: logger}
}

// CreateClassifier creates the classification-service client
func (f *AgentFactory) CreateClassifier() core.Classifier {
	c := f.cfg.GetClassifier()
	return mlservice.NewClient(c.Endpoint, c.Timeout, c.MaxConcurrency, f.logger)
}

// CreateReputationScanner creates the reputation scanner
func (f *AgentFactory) CreateReputationScanner() core.ReputationScanner {
	c := f.cfg.GetReputation()
	return reputation.NewScanner(c.BaseURL, c.APIKey, c.ScanTimeout, c.MaxConcurrency, f.logger)
}

// CreateGraphClient creates the relationship store client, which serves as
// both the context provider and the enrichment writer
func (f *AgentFactory) CreateGraphClient() *graphstore.Client {
	c := f.cfg.GetGraph()
	return graphstore.NewClient(c.Endpoint, c.Timeout, c.MaxConcurrency, f.logger)
}

// CreateEnrichmentQueue creates the background enrichment worker pool
func (f *AgentFactory) CreateEnrichmentQueue(enricher core.Enricher) *core.EnrichmentQueue {
	timeout, err := f.cfg.GetDuration("enrichment.timeout")
	if err != nil {
		timeout = 0
	}
	return core.NewEnrichmentQueue(
		enricher,
		f.logger,
		f.cfg.GetInt("enrichment.workers"),
		f.cfg.GetInt("enrichment.queue_depth"),
		timeout,
	)
}

// CreateSenderLists creates the allowed and blocked sender lists seeded
// from configuration
func (f *AgentFactory) CreateSenderLists() (allowed, blocked core.SenderListStore) {
	allowed = senderlist.NewSeeded(f.cfg.GetStringSlice("senders.allowed"), "configured allow entry", f.logger)
	blocked = senderlist.NewSeeded(f.cfg.GetStringSlice("senders.blocked"), "configured block entry", f.logger)
	return allowed, blocked
}
