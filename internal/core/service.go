package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spamguard/spamguard/internal/utils"
	"go.uber.org/zap"
)

// SpamBoundary is the fixed decision boundary for the spam verdict. It is
// independent of the refinement threshold: the threshold decides whether to
// refine, the boundary decides the label.
const SpamBoundary float32 = 0.5

// improvementRatioFloor gates early acceptance: a refinement that cut the
// original probability by at least this share is taken even when it did not
// cross the threshold, provided the new probability is under
// acceptableProbability.
const improvementRatioFloor float32 = 0.3

const acceptableProbability float32 = 0.8

// defaultMaxAttemptCount bounds the refinement loop when no budget is given.
const defaultMaxAttemptCount = 5

// SpamGuardService drives the classify-then-refine pipeline: it scores the
// original text, and when the score reaches the refinement threshold it
// iterates over the strategy catalog, regenerating and rescoring the text
// until a stopping condition is met.
type SpamGuardService struct {
	classifier    Classifier
	refiner       *Refiner
	cache         CacheRepository
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	cacheEnabled  bool
	cacheTTL      time.Duration
	threshold     float32
	maxAttempts   int
	maxTextBytes  int
}

// NewSpamGuardService creates a new service. threshold and maxAttempts are
// the defaults applied when a caller does not supply its own; maxTextBytes
// caps the text embedded into generation prompts (0 disables the cap).
func NewSpamGuardService(
	classifier Classifier,
	refiner *Refiner,
	cache CacheRepository,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	threshold float32,
	maxAttempts int,
	maxTextBytes int,
) *SpamGuardService {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttemptCount
	}
	return &SpamGuardService{
		classifier:    classifier,
		refiner:       refiner,
		cache:         cache,
		textProcessor: textProcessor,
		logger:        logger,
		cacheEnabled:  cacheEnabled,
		cacheTTL:      cacheTTL,
		threshold:     threshold,
		maxAttempts:   maxAttempts,
		maxTextBytes:  maxTextBytes,
	}
}

// RefineThreshold returns the configured default refinement threshold.
func (s *SpamGuardService) RefineThreshold() float32 {
	return s.threshold
}

// MaxAttempts returns the configured default attempt budget.
func (s *SpamGuardService) MaxAttempts() int {
	return s.maxAttempts
}

// ModelName reports the classifier model identifier.
func (s *SpamGuardService) ModelName() string {
	return s.classifier.ModelName()
}

// Classify scores text, serving and updating the cache when enabled. The
// verdict is probability > SpamBoundary.
func (s *SpamGuardService) Classify(ctx context.Context, text string) (bool, float32, error) {
	key := hashText(s.textProcessor.Normalize(text))

	if s.cacheEnabled && s.cache != nil {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("Cache hit", zap.String("text_hash", shortHash(key)))
			return entry.IsSpam, entry.Score, nil
		}
	}

	isSpam, probability, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return false, 0, err
	}

	if s.cacheEnabled && s.cache != nil {
		now := time.Now()
		entry := &CacheEntry{
			TextHash:  key,
			IsSpam:    isSpam,
			Score:     probability,
			ModelUsed: s.classifier.ModelName(),
			LastSeen:  now,
			ExpiresAt: now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return isSpam, probability, nil
}

// ProcessEmail runs the full pipeline for one email. Generation failures end
// the loop and are folded into the result; classifier failures populate the
// result's error message and also propagate so callers can tell a broken
// pipeline from an unhelpful refinement. maxAttempts <= 0 selects the
// configured default.
func (s *SpamGuardService) ProcessEmail(ctx context.Context, text string, threshold float32, maxAttempts int) (*AnalysisResult, error) {
	if maxAttempts <= 0 {
		maxAttempts = s.maxAttempts
	}

	result := &AnalysisResult{
		OriginalEmail: text,
		AnalyzedAt:    time.Now(),
		ModelUsed:     s.classifier.ModelName(),
		ProcessingID:  uuid.New().String(),
	}

	isSpam, originalProb, err := s.Classify(ctx, text)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("classification failed: %v", err)
		return result, err
	}
	result.IsSpam = isSpam
	result.SpamProbability = originalProb

	if originalProb < threshold {
		s.logger.Info("Spam probability below threshold, no refinement needed",
			zap.Float32("probability", originalProb),
			zap.Float32("threshold", threshold))
		return result, nil
	}

	s.logger.Info("Spam probability exceeds threshold, refining",
		zap.Float32("probability", originalProb),
		zap.Float32("threshold", threshold),
		zap.Int("max_attempts", maxAttempts))

	currentText := text
	currentProb := originalProb
	attempts := 0
	scoredGenerated := false
	var generationErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		strategy := StrategyFor(attempt)
		s.logger.Info("Refinement attempt",
			zap.Int("attempt", attempt),
			zap.String("strategy", strategy.Name))

		// Classification always sees the full text; only the prompt body is
		// capped, since generation providers bound their input sizes.
		generated, err := s.refiner.Refine(ctx, strategy.BuildPrompt(s.promptText(currentText)))
		attempts++
		if err != nil {
			// The loop stops here; this iteration still counts as executed.
			generationErr = err
			s.logger.Error("Refinement attempt failed",
				zap.Int("attempt", attempt),
				zap.String("strategy", strategy.Name),
				zap.Error(err))
			break
		}

		_, newProb, err := s.Classify(ctx, generated)
		if err != nil {
			result.RefinementAttempts = attempts
			s.reconcile(result, originalProb, currentText, currentProb, scoredGenerated, nil)
			result.ErrorMessage = fmt.Sprintf("classification of refined text failed: %v", err)
			return result, err
		}

		previousProb := currentProb
		currentText = generated
		currentProb = newProb
		scoredGenerated = true

		if newProb < threshold {
			s.logger.Info("Refinement crossed threshold",
				zap.Int("attempt", attempt),
				zap.Float32("probability", newProb),
				zap.Float32("threshold", threshold))
			break
		}

		var improvementRatio float32
		if originalProb > 0 {
			improvementRatio = (originalProb - newProb) / originalProb
		}
		if improvementRatio >= improvementRatioFloor && newProb < acceptableProbability {
			s.logger.Info("Accepting refinement with partial improvement",
				zap.Int("attempt", attempt),
				zap.Float32("improvement_ratio", improvementRatio),
				zap.Float32("probability", newProb))
			break
		}

		if attempt >= 2 && newProb >= previousProb {
			// Diagnostic only. Strategy selection stays a function of the
			// attempt index, so the loop proceeds unchanged.
			s.logger.Warn("No improvement over previous attempt",
				zap.Int("attempt", attempt),
				zap.Float32("previous_probability", previousProb),
				zap.Float32("probability", newProb))
		}

		if attempt == maxAttempts {
			s.logger.Info("Attempt budget exhausted",
				zap.Int("attempts", attempts),
				zap.Float32("probability", currentProb))
		}
	}

	result.RefinementAttempts = attempts
	s.reconcile(result, originalProb, currentText, currentProb, scoredGenerated, generationErr)
	return result, nil
}

// RefineOnce runs a single standard-strategy refinement pass over text,
// outside the processing loop. Callers score the output themselves.
func (s *SpamGuardService) RefineOnce(ctx context.Context, text string) (string, error) {
	strategy := StrategyFor(1)
	return s.refiner.Refine(ctx, strategy.BuildPrompt(s.promptText(text)))
}

// promptText prepares text for embedding into a generation prompt.
func (s *SpamGuardService) promptText(text string) string {
	return s.textProcessor.ProcessText(text, s.maxTextBytes)
}

// reconcile applies the final success rule: refinement succeeded iff at
// least one attempt ran and the last probability strictly beats the original
// one. An unchanged probability counts as failure.
func (s *SpamGuardService) reconcile(
	result *AnalysisResult,
	originalProb float32,
	currentText string,
	currentProb float32,
	scoredGenerated bool,
	generationErr error,
) {
	if scoredGenerated {
		p := currentProb
		result.FinalSpamProbability = &p
		if currentProb != originalProb {
			result.RefinedEmail = currentText
		}
	}

	if result.RefinementAttempts > 0 && currentProb < originalProb {
		result.RefinementSuccess = true
		s.logger.Info("Refinement succeeded",
			zap.Int("attempts", result.RefinementAttempts),
			zap.Float32("original_probability", originalProb),
			zap.Float32("final_probability", currentProb))
		return
	}

	result.RefinementSuccess = false
	if result.RefinementAttempts == 0 {
		return
	}
	if generationErr != nil {
		result.ErrorMessage = fmt.Sprintf("refinement failed after %d attempts: %v",
			result.RefinementAttempts, generationErr)
	} else {
		result.ErrorMessage = fmt.Sprintf("refinement did not improve spam probability after %d attempts (final %.4f)",
			result.RefinementAttempts, currentProb)
	}
	s.logger.Warn("Refinement did not succeed",
		zap.Int("attempts", result.RefinementAttempts),
		zap.Float32("original_probability", originalProb),
		zap.Float32("final_probability", currentProb))
}

// hashText returns the hex SHA-256 of normalized text, the cache key form.
func hashText(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func shortHash(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
