package di

import (
	"flag"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/spamguard/spamguard/internal/batch"
	"github.com/spamguard/spamguard/internal/config"
	"github.com/spamguard/spamguard/internal/core"
	"github.com/spamguard/spamguard/internal/factory"
	"github.com/spamguard/spamguard/internal/logging"
	"github.com/spamguard/spamguard/internal/ports"
	"github.com/spamguard/spamguard/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Classifier flags
	ModelPath string

	// Refinement flags
	Provider    string
	Refine      bool
	Threshold   float64
	MaxAttempts int
	MaxTokens   int
	Temperature float64
	TopP        float64

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Input flags
	InputFile  string
	BatchFile  string
	RateLimit  float64
	ExitCode   bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Classifier flags
	flag.StringVar(&flags.ModelPath, "model", "configs/model.json", "Path to the classifier model artifact")

	// Refinement flags
	flag.StringVar(&flags.Provider, "provider", "gemini", "Refinement provider (gemini, openai, bedrock)")
	flag.BoolVar(&flags.Refine, "refine", true, "Refine emails that score above the threshold")
	flag.Float64Var(&flags.Threshold, "threshold", 0.6, "Spam probability above which refinement starts")
	flag.IntVar(&flags.MaxAttempts, "max-attempts", 5, "Maximum refinement attempts per email")
	flag.IntVar(&flags.MaxTokens, "max-tokens", 1024, "Maximum tokens for generated responses")
	flag.Float64Var(&flags.Temperature, "temperature", 0.4, "Temperature for text generation")
	flag.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for text generation")

	// Gemini flags
	flag.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	flag.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-1.5-flash", "Gemini model name")

	// OpenAI flags
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	flag.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4o-mini", "OpenAI model name")

	// Bedrock flags
	flag.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	flag.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	flag.StringVar(&flags.BatchFile, "batch", "", "JSON file holding an array of emails to analyze")
	flag.Float64Var(&flags.RateLimit, "rate-limit", 1.0, "Batch pacing in emails per second (0 disables)")
	flag.BoolVar(&flags.ExitCode, "exit-code", false, "Exit with status 1 when the email is spam")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides provider flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container
// for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file",
				zap.String("file", cfg.GetViper().ConfigFileUsed()))
			// The front end is always the CLI regardless of what the
			// file configures for the daemon.
			v := cfg.GetViper()
			v.Set("server.filter_type", "cli")
			v.Set("cli.verbose", flags.Verbose)
			v.Set("cli.refine", flags.Refine)
			return cfg, nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
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

	// Register spam guard service with no cache
	if err := container.Provide(func(
		classifier core.Classifier,
		refiner *core.Refiner,
		textProcessor *utils.TextProcessor,
		logger *zap.Logger,
		cfg *config.Config,
	) *core.SpamGuardService {
		spamCfg := cfg.GetSpam()
		return core.NewSpamGuardService(
			classifier,
			refiner,
			nil,   // No cache for CLI
			textProcessor,
			logger,
			false, // Cache disabled
			time.Duration(0),
			spamCfg.RefineThreshold,
			spamCfg.MaxAttempts,
			spamCfg.MaxTextBytes,
		)
	}); err != nil {
		return nil, err
	}

	// Register batch processor
	if err := container.Provide(func(
		service *core.SpamGuardService,
		logger *zap.Logger,
		cfg *config.Config,
	) *batch.Processor {
		return batch.NewProcessor(service, logger, cfg.GetBatch().RateLimit)
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

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// CLI specific settings
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)
	v.Set("cli.refine", flags.Refine)
	v.Set("cache.enabled", false)

	// Classifier
	v.Set("classifier.model_path", flags.ModelPath)

	// Pipeline
	v.Set("spam.refine_threshold", flags.Threshold)
	v.Set("spam.max_attempts", flags.MaxAttempts)
	v.Set("batch.rate_limit", flags.RateLimit)

	// Refinement provider
	v.Set("refiner.provider", flags.Provider)
	switch flags.Provider {
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
	}

	return config.NewFromViper(v)
}
