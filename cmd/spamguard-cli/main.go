package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"github.com/spamguard/spamguard/internal/adapters/filter"
	"github.com/spamguard/spamguard/internal/batch"
	"github.com/spamguard/spamguard/internal/config"
	"github.com/spamguard/spamguard/internal/core"
	"github.com/spamguard/spamguard/internal/di"
	"github.com/spamguard/spamguard/internal/ports"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	var sawSpam bool
	err = container.Invoke(func(
		cfg *config.Config,
		logger *zap.Logger,
		emailFilter ports.EmailFilter,
		processor *batch.Processor,
		generator core.TextGenerator,
	) error {
		defer logger.Sync()
		defer func() {
			if closer, ok := generator.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Error("Failed to close text generator", zap.Error(err))
				}
			}
		}()

		if flags.BatchFile != "" {
			spamCount, err := runBatch(flags.BatchFile, cfg, processor)
			sawSpam = spamCount > 0
			return err
		}

		result, err := runSingle(flags.InputFile, logger, emailFilter)
		if err != nil {
			return err
		}
		sawSpam = result.IsSpam
		return nil
	})
	if err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}

	if flags.ExitCode && sawSpam {
		os.Exit(1)
	}
}

// runSingle analyzes one email read from a file or stdin.
func runSingle(inputFile string, logger *zap.Logger, emailFilter ports.EmailFilter) (*core.AnalysisResult, error) {
	var emailReader io.Reader
	if inputFile != "" {
		file, err := os.Open(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file %s: %w", inputFile, err)
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	raw, err := io.ReadAll(emailReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read email: %w", err)
	}

	text := extractBody(raw)
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("email has no text content")
	}

	return emailFilter.ProcessText(context.Background(), text)
}

// extractBody pulls the text content out of an RFC 5322 message, falling
// back to the raw input when it does not parse as one.
func extractBody(raw []byte) string {
	msg, err := mail.ReadMessage(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return string(raw)
	}
	text, err := filter.ExtractText(msg)
	if err != nil {
		return string(raw)
	}
	return text
}

// runBatch analyzes a JSON array of emails and prints a per-email summary
// plus totals. It returns how many of them were spam.
func runBatch(batchFile string, cfg *config.Config, processor *batch.Processor) (int, error) {
	data, err := os.ReadFile(batchFile)
	if err != nil {
		return 0, fmt.Errorf("failed to read batch file %s: %w", batchFile, err)
	}

	var emails []string
	if err := json.Unmarshal(data, &emails); err != nil {
		return 0, fmt.Errorf("batch file must hold a JSON array of emails: %w", err)
	}
	if len(emails) == 0 {
		return 0, errors.New("batch file holds no emails")
	}

	spamCfg := cfg.GetSpam()
	results := processor.Process(context.Background(), emails, spamCfg.RefineThreshold, spamCfg.MaxAttempts)

	spamCount := 0
	refinedCount := 0
	errorCount := 0

	fmt.Printf("\n=== Batch Results ===\n")
	for i, result := range results {
		line := fmt.Sprintf("Email %d: spam=%t probability=%.4f", i+1, result.IsSpam, result.SpamProbability)
		if result.RefinementAttempts > 0 {
			line += fmt.Sprintf(" attempts=%d refined=%t", result.RefinementAttempts, result.RefinementSuccess)
		}
		if result.ErrorMessage != "" {
			line += fmt.Sprintf(" error=%q", result.ErrorMessage)
		}
		fmt.Println(line)

		if result.IsSpam {
			spamCount++
		}
		if result.RefinementSuccess {
			refinedCount++
		}
		if result.ErrorMessage != "" {
			errorCount++
		}
	}

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Analyzed: %d\n", len(results))
	if len(results) < len(emails) {
		fmt.Printf("Skipped: %d\n", len(emails)-len(results))
	}
	fmt.Printf("Spam: %d\n", spamCount)
	fmt.Printf("Refined successfully: %d\n", refinedCount)
	fmt.Printf("Errors: %d\n", errorCount)

	return spamCount, nil
}
