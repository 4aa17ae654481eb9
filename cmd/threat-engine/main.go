package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/encryptgate/threat-engine/internal/di"
	"github.com/encryptgate/threat-engine/internal/ports"
	"go.uber.org/zap"
)

func main() {
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	explainer core.Explainer,
	enrichment *core.EnrichmentQueue,
) error {
	defer logger.Sync()

	if err := emailFilter.Start(); err != nil {
		logger.Fatal("Failed to start filter", zap.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	// Drain outstanding enrichment writes before exiting
	enrichment.Stop()

	if closer, ok := explainer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close explainer", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
