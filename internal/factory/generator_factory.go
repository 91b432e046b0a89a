package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/spamguard/spamguard/internal/adapters/bedrock"
	"github.com/spamguard/spamguard/internal/adapters/gemini"
	"github.com/spamguard/spamguard/internal/adapters/openai"
	"github.com/spamguard/spamguard/internal/config"
	"github.com/spamguard/spamguard/internal/core"
	"go.uber.org/zap"
)

// GeneratorFactory creates text generation clients for the refiner
type GeneratorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewGeneratorFactory creates a new generator factory
func NewGeneratorFactory(cfg *config.Config, logger *zap.Logger) *GeneratorFactory {
	return &GeneratorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextGenerator creates a text generator based on the configured
// refiner provider
func (f *GeneratorFactory) CreateTextGenerator() (core.TextGenerator, error) {
	refinerCfg := f.cfg.GetRefiner()

	switch refinerCfg.Provider {
	case "gemini":
		geminiCfg := f.cfg.GetGemini()
		return gemini.NewClient(
			geminiCfg.APIKey,
			geminiCfg.ModelName,
			geminiCfg.MaxTokens,
			geminiCfg.Temperature,
			geminiCfg.TopP,
			f.logger,
		)
	case "openai":
		openaiCfg := f.cfg.GetOpenAI()
		return openai.NewClient(
			openaiCfg.APIKey,
			openaiCfg.ModelName,
			openaiCfg.MaxTokens,
			openaiCfg.Temperature,
			openaiCfg.TopP,
			f.logger,
		)
	case "bedrock":
		bedrockCfg := f.cfg.GetBedrock()
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(bedrockCfg.Region),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		return bedrock.NewClient(
			bedrockruntime.NewFromConfig(awsCfg),
			bedrockCfg.ModelID,
			bedrockCfg.MaxTokens,
			bedrockCfg.Temperature,
			bedrockCfg.TopP,
			f.logger,
		), nil
	default:
		return nil, &core.ConfigurationError{
			Err: fmt.Errorf("unsupported refiner provider: %s", refinerCfg.Provider),
		}
	}
}
