package core

import (
	"context"
)

// Classifier scores text for spam likelihood. Implementations normalize the
// input (lowercase, collapsed whitespace) before inference; callers pass raw
// text. The verdict uses a fixed 0.5 boundary regardless of any refinement
// threshold.
type Classifier interface {
	// Classify returns the spam verdict and probability for the text.
	// Failures are reported as ClassifierError and are never retried here.
	Classify(ctx context.Context, text string) (bool, float32, error)

	// ModelName identifies the underlying model for result metadata.
	ModelName() string
}

// TextGenerator produces text from a prompt over a network boundary. Calls
// may fail transiently; retry policy lives in the Refiner, not here.
type TextGenerator interface {
	// Generate returns the generated text for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// CacheRepository stores classification results keyed by text hash.
type CacheRepository interface {
	// Get retrieves a cached entry. Misses and expired entries are errors.
	Get(ctx context.Context, textHash string) (*CacheEntry, error)

	// Set stores a cache entry.
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry.
	Delete(ctx context.Context, textHash string) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error
}
