package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/encryptgate/threat-engine/internal/adapters/filter"
	"github.com/encryptgate/threat-engine/internal/adapters/store"
	"github.com/encryptgate/threat-engine/internal/config"
	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/factory"
	"github.com/encryptgate/threat-engine/internal/logging"
	"go.uber.org/zap"
)

var (
	// Agent endpoint flags
	classifierEndpoint = flag.String("classifier-endpoint", "", "Classification service endpoint")
	reputationKey      = flag.String("reputation-api-key", "", "API key for the reputation scanning service")
	reputationBaseURL  = flag.String("reputation-base-url", "https://www.virustotal.com/api/v3", "Base URL for the reputation scanning service")
	graphEndpoint      = flag.String("graph-endpoint", "", "Relationship graph store endpoint")

	// Explanation provider flags
	provider        = flag.String("explainer", "openai", "Explanation provider (openai, bedrock, gemini)")
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")
	bedrockRegion   = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID  = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	tenantID   = flag.String("tenant", "default", "Tenant the evaluation belongs to")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.NewFromFile(*configFile)
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	email, err := readEmail()
	if err != nil {
		logger.Fatal("Failed to read email", zap.Error(err))
	}

	service, cleanup, err := buildService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build triage pipeline", zap.Error(err))
	}
	defer cleanup()

	cliFilter, err := filter.NewCliFilter(service, logger, *verbose)
	if err != nil {
		logger.Fatal("Failed to create CLI filter", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	assessment, err := cliFilter.ProcessEmail(ctx, email)
	if err != nil {
		logger.Fatal("Evaluation failed", zap.Error(err))
	}

	if assessment.IsPhishing {
		os.Exit(1)
	}
}

// buildService assembles the pipeline without the DI container, which the
// one-shot CLI does not need
func buildService(cfg *config.Config, logger *zap.Logger) (*core.TriageService, func(), error) {
	textProcessor := factory.NewTextProcessorFactory(logger).CreateTextProcessor()

	explainer, err := factory.NewExplainerFactory(cfg, logger, textProcessor).CreateExplainer()
	if err != nil {
		return nil, nil, err
	}

	agents := factory.NewAgentFactory(cfg, logger)
	graph := agents.CreateGraphClient()
	queue := agents.CreateEnrichmentQueue(graph)
	allowed, blocked := agents.CreateSenderLists()

	orchestrator := core.NewOrchestrator(
		agents.CreateClassifier(),
		agents.CreateReputationScanner(),
		graph,
		explainer,
		queue,
		blocked,
		allowed,
		logger,
		nil,
	)

	mem := store.NewMemoryStore(logger)
	lifecycle := core.NewLifecycleManager(mem, logger, nil)
	service := core.NewTriageService(orchestrator, lifecycle, mem, *tenantID, logger)

	cleanup := func() {
		queue.Stop()
		if closer, ok := explainer.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
	return service, cleanup, nil
}

func readEmail() (*core.Email, error) {
	var raw []byte
	var err error
	if *inputFile != "" {
		raw, err = os.ReadFile(*inputFile)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, err
	}
	return filter.ParseMessage(raw, "", nil)
}

// createConfigFromFlags builds a configuration from the command line
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("classifier.endpoint", *classifierEndpoint)
	v.Set("reputation.base_url", *reputationBaseURL)
	v.Set("reputation.api_key", *reputationKey)
	v.Set("graph.endpoint", *graphEndpoint)

	v.Set("explainer.provider", *provider)
	v.Set("openai.api_key", *openaiAPIKey)
	v.Set("openai.model_name", *openaiModelName)
	v.Set("bedrock.region", *bedrockRegion)
	v.Set("bedrock.model_id", *bedrockModelID)
	v.Set("gemini.api_key", *geminiAPIKey)
	v.Set("gemini.model_name", *geminiModelName)

	v.Set("store.tenant_id", *tenantID)

	return config.NewFromViper(v)
}
