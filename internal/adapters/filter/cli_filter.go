package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/spamguard/spamguard/internal/core"
	"go.uber.org/zap"
)

// CliFilter runs one analysis and prints the outcome to stdout
type CliFilter struct {
	service Analyzer
	logger  *zap.Logger
	verbose bool
	refine  bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service Analyzer, logger *zap.Logger, verbose bool, refine bool) (*CliFilter, error) {
	return &CliFilter{
		service: service,
		logger:  logger,
		verbose: verbose,
		refine:  refine,
	}, nil
}

// ProcessText analyzes the text and displays the results
func (f *CliFilter) ProcessText(ctx context.Context, text string) (*core.AnalysisResult, error) {
	f.logger.Debug("Processing text", zap.Int("length", len(text)))

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("Length: %d bytes\n", len(text))

	// Print body preview if verbose
	if f.verbose {
		preview := text
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Printf("\nPreview:\n%s\n", preview)
	}

	fmt.Printf("\n=== Analysis ===\n")
	fmt.Printf("Model: %s\n", f.service.ModelName())
	fmt.Printf("Refine threshold: %.2f\n", f.service.RefineThreshold())

	startTime := time.Now()

	var result *core.AnalysisResult
	var err error
	if f.refine {
		result, err = f.service.ProcessEmail(ctx, text, f.service.RefineThreshold(), f.service.MaxAttempts())
	} else {
		var isSpam bool
		var probability float32
		isSpam, probability, err = f.service.Classify(ctx, text)
		if err == nil {
			result = &core.AnalysisResult{
				OriginalEmail:   text,
				IsSpam:          isSpam,
				SpamProbability: probability,
				AnalyzedAt:      time.Now(),
				ModelUsed:       f.service.ModelName(),
			}
		}
	}
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		fmt.Printf("Error: %v\n", err)
		return result, err
	}
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Is spam: %t\n", result.IsSpam)
	fmt.Printf("Spam probability: %.4f\n", result.SpamProbability)
	fmt.Printf("Model used: %s\n", result.ModelUsed)
	fmt.Printf("Processing time: %v\n", duration)

	if result.RefinementAttempts > 0 {
		fmt.Printf("\n=== Refinement ===\n")
		fmt.Printf("Attempts: %d\n", result.RefinementAttempts)
		fmt.Printf("Success: %t\n", result.RefinementSuccess)
		if result.FinalSpamProbability != nil {
			fmt.Printf("Final probability: %.4f\n", *result.FinalSpamProbability)
		}
		if result.ErrorMessage != "" {
			fmt.Printf("Note: %s\n", result.ErrorMessage)
		}
		if result.RefinedEmail != "" {
			refined := result.RefinedEmail
			if !f.verbose && len(refined) > 500 {
				refined = refined[:500] + "..."
			}
			fmt.Printf("\nRefined email:\n%s\n", refined)
		}
	} else if f.refine {
		fmt.Printf("\nNo refinement needed (probability below threshold %.2f)\n", f.service.RefineThreshold())
	}

	return result, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
