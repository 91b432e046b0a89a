package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spamguard/spamguard/internal/adapters/httpapi"
	"github.com/spamguard/spamguard/internal/config"
	"github.com/spamguard/spamguard/internal/core"
	"github.com/spamguard/spamguard/internal/di"
	"github.com/spamguard/spamguard/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Pick up provider keys from a local .env if there is one
	_ = godotenv.Load()

	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	httpServer *httpapi.Server,
	emailFilter ports.EmailFilter,
	generator core.TextGenerator,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	serverCfg := cfg.GetServer()
	if !serverCfg.HTTP.Enabled && !serverCfg.SMTP.Enabled {
		return errors.New("nothing to serve: enable server.http or server.smtp")
	}

	if serverCfg.HTTP.Enabled {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP API", zap.Error(err))
			return err
		}
	}

	if serverCfg.SMTP.Enabled {
		if err := emailFilter.Start(); err != nil {
			logger.Error("Failed to start email filter", zap.Error(err))
			return err
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if serverCfg.SMTP.Enabled {
		if err := emailFilter.Stop(); err != nil {
			logger.Error("Failed to stop email filter", zap.Error(err))
		}
	}
	if serverCfg.HTTP.Enabled {
		if err := httpServer.Stop(); err != nil {
			logger.Error("Failed to stop HTTP API", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := generator.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close text generator", zap.Error(err))
		}
	}

	// Stop the cache if needed
	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
