package core

import (
	"time"
)

// AnalysisResult is the complete outcome of processing one email: the
// classification of the original text plus whatever the refinement loop
// achieved. It is populated by a single ProcessEmail call and not mutated
// afterwards.
type AnalysisResult struct {
	// OriginalEmail is the input text, verbatim.
	OriginalEmail string

	// IsSpam and SpamProbability describe the original text. IsSpam uses
	// the fixed 0.5 decision boundary, not the refinement threshold.
	IsSpam          bool
	SpamProbability float32

	// RefinedEmail is the last transformed text produced by the loop,
	// empty unless at least one refinement attempt altered the probability.
	RefinedEmail string

	// RefinementSuccess is true iff the final probability is strictly
	// lower than the original probability.
	RefinementSuccess bool

	// RefinementAttempts counts generation calls actually executed,
	// including one that failed and ended the loop.
	RefinementAttempts int

	// FinalSpamProbability is the probability of RefinedEmail at loop
	// exit; nil when no generated text was ever classified.
	FinalSpamProbability *float32

	// ErrorMessage is set when refinement was attempted but did not
	// succeed, or when the pipeline itself failed.
	ErrorMessage string

	AnalyzedAt   time.Time
	ModelUsed    string
	ProcessingID string
}

// CacheEntry is a cached classification keyed by the hash of the
// normalized text. The JSON tags are the wire form used by value-store
// backends.
type CacheEntry struct {
	TextHash  string    `json:"text_hash"`
	IsSpam    bool      `json:"is_spam"`
	Score     float32   `json:"score"`
	ModelUsed string    `json:"model_used"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `json:"expires_at"`
}
