package ports

import (
	"context"

	"github.com/spamguard/spamguard/internal/core"
)

// EmailFilter defines the interface for an email-processing front end
type EmailFilter interface {
	// ProcessText runs one email's text through the analysis pipeline
	ProcessText(ctx context.Context, text string) (*core.AnalysisResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
