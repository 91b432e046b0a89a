package factory

import (
	"github.com/spamguard/spamguard/internal/adapters/tfidf"
	"github.com/spamguard/spamguard/internal/config"
	"github.com/spamguard/spamguard/internal/core"
	"github.com/spamguard/spamguard/internal/utils"
	"go.uber.org/zap"
)

// ClassifierFactory creates spam classifiers
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier loads the local TF-IDF classifier from the configured
// model artifact
func (f *ClassifierFactory) CreateClassifier() (core.Classifier, error) {
	classifierCfg := f.cfg.GetClassifier()
	return tfidf.New(classifierCfg.ModelPath, f.textProcessor, f.logger)
}
