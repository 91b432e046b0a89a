package batch

import (
	"context"

	"github.com/spamguard/spamguard/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pipeline is the slice of the analysis service the batch processor drives.
type Pipeline interface {
	ProcessEmail(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error)
}

// Processor runs the analysis pipeline over a list of emails one at a
// time, pacing calls so refinement providers are not hammered.
type Processor struct {
	pipeline Pipeline
	logger   *zap.Logger
	limiter  *rate.Limiter
}

// NewProcessor creates a batch processor. itemsPerSecond caps the pace of
// pipeline calls; zero or negative disables pacing.
func NewProcessor(pipeline Pipeline, logger *zap.Logger, itemsPerSecond float64) *Processor {
	var limiter *rate.Limiter
	if itemsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(itemsPerSecond), 1)
	}
	return &Processor{
		pipeline: pipeline,
		logger:   logger,
		limiter:  limiter,
	}
}

// Process analyzes the given emails sequentially and returns one result per
// input, in order. A failed item is recorded in its own result and does not
// abort the rest of the batch; a cancelled context stops the run early and
// returns the results collected so far.
func (p *Processor) Process(ctx context.Context, emails []string, threshold float32, maxAttempts int) []*core.AnalysisResult {
	results := make([]*core.AnalysisResult, 0, len(emails))

	for i, email := range emails {
		if err := p.pace(ctx); err != nil {
			p.logger.Warn("Batch cancelled",
				zap.Int("processed", len(results)),
				zap.Int("total", len(emails)),
				zap.Error(err))
			return results
		}

		result, err := p.pipeline.ProcessEmail(ctx, email, threshold, maxAttempts)
		if err != nil {
			p.logger.Error("Batch item failed",
				zap.Int("index", i),
				zap.Error(err))
			if result == nil {
				result = &core.AnalysisResult{
					OriginalEmail: email,
					ErrorMessage:  err.Error(),
				}
			} else if result.ErrorMessage == "" {
				result.ErrorMessage = err.Error()
			}
		}
		results = append(results, result)
	}

	p.logger.Info("Batch complete",
		zap.Int("total", len(results)),
		zap.Int("spam", countSpam(results)))

	return results
}

func (p *Processor) pace(ctx context.Context) error {
	if p.limiter != nil {
		return p.limiter.Wait(ctx)
	}
	return ctx.Err()
}

func countSpam(results []*core.AnalysisResult) int {
	n := 0
	for _, r := range results {
		if r != nil && r.IsSpam {
			n++
		}
	}
	return n
}
