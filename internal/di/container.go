package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/encryptgate/threat-engine/internal/adapters/graphstore"
	"github.com/encryptgate/threat-engine/internal/config"
	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/factory"
	"github.com/encryptgate/threat-engine/internal/logging"
	"github.com/encryptgate/threat-engine/internal/ports"
	"github.com/encryptgate/threat-engine/internal/utils"
)

// SenderLists carries the two configured sender lists through the container
type SenderLists struct {
	Allowed core.SenderListStore
	Blocked core.SenderListStore
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Configuration and logging
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewExplainerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewAgentFactory); err != nil {
		return nil, err
	}

	// Text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Explanation backend
	if err := container.Provide(func(f *factory.ExplainerFactory) (core.Explainer, error) {
		return f.CreateExplainer()
	}); err != nil {
		return nil, err
	}

	// Persistence
	if err := container.Provide(func(f *factory.StoreFactory) (*factory.Stores, error) {
		return f.CreateStores()
	}); err != nil {
		return nil, err
	}

	// Detection agents and relationship store
	if err := container.Provide(func(f *factory.AgentFactory) core.Classifier {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.AgentFactory) core.ReputationScanner {
		return f.CreateReputationScanner()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.AgentFactory) *graphstore.Client {
		return f.CreateGraphClient()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(c *graphstore.Client) core.ContextProvider {
		return c
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.AgentFactory, c *graphstore.Client) *core.EnrichmentQueue {
		return f.CreateEnrichmentQueue(c)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.AgentFactory) SenderLists {
		allowed, blocked := f.CreateSenderLists()
		return SenderLists{Allowed: allowed, Blocked: blocked}
	}); err != nil {
		return nil, err
	}

	// Orchestrator
	if err := container.Provide(func(
		classifier core.Classifier,
		reputation core.ReputationScanner,
		contextSvc core.ContextProvider,
		explainer core.Explainer,
		queue *core.EnrichmentQueue,
		lists SenderLists,
		logger *zap.Logger,
	) *core.Orchestrator {
		return core.NewOrchestrator(classifier, reputation, contextSvc, explainer, queue,
			lists.Blocked, lists.Allowed, logger, nil)
	}); err != nil {
		return nil, err
	}

	// Detection lifecycle manager
	if err := container.Provide(func(stores *factory.Stores, logger *zap.Logger) *core.LifecycleManager {
		return core.NewLifecycleManager(stores.Detections, logger, nil)
	}); err != nil {
		return nil, err
	}

	// Triage service
	if err := container.Provide(func(
		orchestrator *core.Orchestrator,
		lifecycle *core.LifecycleManager,
		stores *factory.Stores,
		storeFactory *factory.StoreFactory,
		logger *zap.Logger,
	) *core.TriageService {
		return core.NewTriageService(orchestrator, lifecycle, stores.Assessments,
			storeFactory.TenantID(), logger)
	}); err != nil {
		return nil, err
	}

	// Ingestion filter
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
