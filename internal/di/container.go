package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/spamguard/spamguard/internal/adapters/httpapi"
	"github.com/spamguard/spamguard/internal/config"
	"github.com/spamguard/spamguard/internal/core"
	"github.com/spamguard/spamguard/internal/factory"
	"github.com/spamguard/spamguard/internal/logging"
	"github.com/spamguard/spamguard/internal/ports"
	"github.com/spamguard/spamguard/internal/utils"
)

// BuildContainer creates and configures the dependency injection container
// for the daemon. Scalar settings are resolved inside the providers that
// need them so the container holds only constructed components.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewGeneratorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register text generator
	if err := container.Provide(func(f *factory.GeneratorFactory) (core.TextGenerator, error) {
		return f.CreateTextGenerator()
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register provider throttle
	if err := container.Provide(func(cfg *config.Config) *core.Throttle {
		return core.NewThrottle(cfg.GetRefiner().MinInterval)
	}); err != nil {
		return nil, err
	}

	// Register refiner
	if err := container.Provide(func(
		generator core.TextGenerator,
		throttle *core.Throttle,
		logger *zap.Logger,
		cfg *config.Config,
	) *core.Refiner {
		refinerCfg := cfg.GetRefiner()
		return core.NewRefiner(generator, throttle, logger, core.RefinerOptions{
			MaxRetries:         refinerCfg.MaxRetries,
			BreakerMaxFailures: refinerCfg.BreakerMaxFailures,
			BreakerTimeout:     refinerCfg.BreakerTimeout,
		})
	}); err != nil {
		return nil, err
	}

	// Register spam guard service
	if err := container.Provide(func(
		classifier core.Classifier,
		refiner *core.Refiner,
		cacheRepo core.CacheRepository,
		textProcessor *utils.TextProcessor,
		logger *zap.Logger,
		cfg *config.Config,
	) *core.SpamGuardService {
		cacheCfg := cfg.GetCache()
		spamCfg := cfg.GetSpam()
		return core.NewSpamGuardService(
			classifier,
			refiner,
			cacheRepo,
			textProcessor,
			logger,
			cacheCfg.Enabled,
			cacheCfg.TTL,
			spamCfg.RefineThreshold,
			spamCfg.MaxAttempts,
			spamCfg.MaxTextBytes,
		)
	}); err != nil {
		return nil, err
	}

	// Register HTTP API server
	if err := container.Provide(func(
		service *core.SpamGuardService,
		logger *zap.Logger,
		cfg *config.Config,
	) *httpapi.Server {
		return httpapi.NewServer(service, logger, cfg.GetServer().HTTP.ListenAddress)
	}); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
