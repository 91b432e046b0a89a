package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spamguard/spamguard/internal/core"
	"go.uber.org/zap"
)

type fakePipeline struct {
	classifyFunc   func(ctx context.Context, text string) (bool, float32, error)
	processFunc    func(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error)
	refineOnceFunc func(ctx context.Context, text string) (string, error)
}

func (f *fakePipeline) Classify(ctx context.Context, text string) (bool, float32, error) {
	return f.classifyFunc(ctx, text)
}

func (f *fakePipeline) ProcessEmail(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error) {
	return f.processFunc(ctx, text, threshold, maxAttempts)
}

func (f *fakePipeline) RefineOnce(ctx context.Context, text string) (string, error) {
	return f.refineOnceFunc(ctx, text)
}

func (f *fakePipeline) RefineThreshold() float32 { return 0.6 }

func newTestServer(pipeline *fakePipeline) *Server {
	return NewServer(pipeline, zap.NewNop(), ":0")
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp, data
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakePipeline{})

	resp, body := doJSON(t, s, http.MethodGet, "/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Status      string `json:"status"`
		SystemReady bool   `json:"system_ready"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.Status != "healthy" || !payload.SystemReady {
		t.Errorf("unexpected health payload %+v", payload)
	}
	if payload.Message != "SpamGuard API is running" {
		t.Errorf("unexpected message %q", payload.Message)
	}
}

func TestAnalyzeRejectsMissingContent(t *testing.T) {
	s := newTestServer(&fakePipeline{})

	resp, body := doJSON(t, s, http.MethodPost, "/api/analyze-email", map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.Error != "Missing email content" {
		t.Errorf("unexpected error %q", payload.Error)
	}
}

func TestAnalyzeRejectsBlankContent(t *testing.T) {
	s := newTestServer(&fakePipeline{})

	resp, body := doJSON(t, s, http.MethodPost, "/api/analyze-email",
		map[string]interface{}{"email_content": "   \n\t "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.Error != "Empty email content" {
		t.Errorf("unexpected error %q", payload.Error)
	}
}

func TestAnalyzeHam(t *testing.T) {
	pipeline := &fakePipeline{
		processFunc: func(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error) {
			return &core.AnalysisResult{
				OriginalEmail:   text,
				IsSpam:          false,
				SpamProbability: 0.2,
			}, nil
		},
	}
	s := newTestServer(pipeline)

	resp, body := doJSON(t, s, http.MethodPost, "/api/analyze-email",
		map[string]interface{}{"email_content": "see you at the meeting"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var payload analyzeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.SpamScore != 20 {
		t.Errorf("spam_score = %v, want 20", payload.SpamScore)
	}
	if payload.IsSpam {
		t.Error("is_spam should be false")
	}
	if payload.Recommendation != "accept" {
		t.Errorf("recommendation = %q, want accept", payload.Recommendation)
	}
	if payload.Refinement.Success || payload.Refinement.Attempts != 0 {
		t.Errorf("unexpected refinement section %+v", payload.Refinement)
	}
	if payload.Refinement.RefinedEmail != nil || payload.Refinement.RefinedSpamScore != nil {
		t.Errorf("ham should have null refinement fields, got %+v", payload.Refinement)
	}
}

func TestAnalyzeSpamSuccessfullyRefined(t *testing.T) {
	final := float32(0.3)
	pipeline := &fakePipeline{
		processFunc: func(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error) {
			return &core.AnalysisResult{
				OriginalEmail:        text,
				IsSpam:               true,
				SpamProbability:      0.95,
				RefinedEmail:         "a calm professional note",
				RefinementSuccess:    true,
				RefinementAttempts:   2,
				FinalSpamProbability: &final,
			}, nil
		},
	}
	s := newTestServer(pipeline)

	resp, body := doJSON(t, s, http.MethodPost, "/api/analyze-email",
		map[string]interface{}{"email_content": "BUY NOW!!!"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var payload analyzeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.Recommendation != "accept_refined" {
		t.Errorf("recommendation = %q, want accept_refined", payload.Recommendation)
	}
	if payload.SpamScore != 95 {
		t.Errorf("spam_score = %v, want 95", payload.SpamScore)
	}
	if payload.Refinement.RefinedSpamScore == nil || *payload.Refinement.RefinedSpamScore != 30 {
		t.Errorf("refined_spam_score = %v, want 30", payload.Refinement.RefinedSpamScore)
	}
	if payload.Refinement.RefinedIsSpam == nil || *payload.Refinement.RefinedIsSpam {
		t.Errorf("refined_is_spam = %v, want false", payload.Refinement.RefinedIsSpam)
	}
	if payload.Refinement.RefinedEmail == nil || *payload.Refinement.RefinedEmail != "a calm professional note" {
		t.Errorf("refined_email = %v", payload.Refinement.RefinedEmail)
	}
	if payload.Refinement.Attempts != 2 || !payload.Refinement.Success {
		t.Errorf("unexpected refinement section %+v", payload.Refinement)
	}
}

func TestAnalyzeSpamStillRisky(t *testing.T) {
	final := float32(0.7)
	pipeline := &fakePipeline{
		processFunc: func(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error) {
			return &core.AnalysisResult{
				OriginalEmail:        text,
				IsSpam:               true,
				SpamProbability:      0.95,
				RefinedEmail:         "slightly calmer note",
				RefinementSuccess:    true,
				RefinementAttempts:   5,
				FinalSpamProbability: &final,
			}, nil
		},
	}
	s := newTestServer(pipeline)

	_, body := doJSON(t, s, http.MethodPost, "/api/analyze-email",
		map[string]interface{}{"email_content": "BUY NOW!!!"})

	var payload analyzeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.Recommendation != "still_risky" {
		t.Errorf("recommendation = %q, want still_risky", payload.Recommendation)
	}
	if payload.Refinement.RefinedIsSpam == nil || !*payload.Refinement.RefinedIsSpam {
		t.Errorf("refined_is_spam = %v, want true", payload.Refinement.RefinedIsSpam)
	}
}

func TestAnalyzeSpamRefinementFailed(t *testing.T) {
	pipeline := &fakePipeline{
		processFunc: func(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error) {
			return &core.AnalysisResult{
				OriginalEmail:      text,
				IsSpam:             true,
				SpamProbability:    0.95,
				RefinementSuccess:  false,
				RefinementAttempts: 1,
				ErrorMessage:       "refinement failed after 1 attempts: generation: exhausted retries",
			}, nil
		},
	}
	s := newTestServer(pipeline)

	_, body := doJSON(t, s, http.MethodPost, "/api/analyze-email",
		map[string]interface{}{"email_content": "BUY NOW!!!"})

	var payload analyzeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.Recommendation != "rewrite" {
		t.Errorf("recommendation = %q, want rewrite", payload.Recommendation)
	}
	if payload.Refinement.Error == "" {
		t.Error("refinement error should be surfaced")
	}
	if payload.Refinement.RefinedSpamScore != nil {
		t.Errorf("refined_spam_score should be null, got %v", *payload.Refinement.RefinedSpamScore)
	}
}

func TestAnalyzeThresholdOverride(t *testing.T) {
	var gotThreshold float32
	var gotMaxAttempts int
	pipeline := &fakePipeline{
		processFunc: func(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error) {
			gotThreshold = threshold
			gotMaxAttempts = maxAttempts
			return &core.AnalysisResult{OriginalEmail: text, SpamProbability: 0.1}, nil
		},
	}
	s := newTestServer(pipeline)

	doJSON(t, s, http.MethodPost, "/api/analyze-email",
		map[string]interface{}{"email_content": "hello"})
	if gotThreshold != 0.6 || gotMaxAttempts != 0 {
		t.Errorf("defaults: threshold=%f maxAttempts=%d", gotThreshold, gotMaxAttempts)
	}

	doJSON(t, s, http.MethodPost, "/api/analyze-email",
		map[string]interface{}{"email_content": "hello", "threshold": 0.8, "max_attempts": 2})
	if gotThreshold != 0.8 || gotMaxAttempts != 2 {
		t.Errorf("overrides: threshold=%f maxAttempts=%d", gotThreshold, gotMaxAttempts)
	}
}

func TestAnalyzePipelineFailure(t *testing.T) {
	pipeline := &fakePipeline{
		processFunc: func(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error) {
			return &core.AnalysisResult{OriginalEmail: text}, errors.New("model not loaded")
		},
	}
	s := newTestServer(pipeline)

	resp, body := doJSON(t, s, http.MethodPost, "/api/analyze-email",
		map[string]interface{}{"email_content": "hello"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.Error != "Analysis failed" {
		t.Errorf("unexpected error %q", payload.Error)
	}
}

func TestRefineEndpoint(t *testing.T) {
	pipeline := &fakePipeline{
		refineOnceFunc: func(ctx context.Context, text string) (string, error) {
			return "a calm professional note", nil
		},
		classifyFunc: func(ctx context.Context, text string) (bool, float32, error) {
			return false, 0.25, nil
		},
	}
	s := newTestServer(pipeline)

	resp, body := doJSON(t, s, http.MethodPost, "/api/refine-email",
		map[string]interface{}{"email_content": "BUY NOW!!!", "original_spam_score": 92.5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var payload refineResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.RefinedEmail != "a calm professional note" {
		t.Errorf("refined_email = %q", payload.RefinedEmail)
	}
	if payload.RefinedSpamScore != 25 {
		t.Errorf("refined_spam_score = %v, want 25", payload.RefinedSpamScore)
	}
	if payload.RefinedIsSpam {
		t.Error("refined_is_spam should be false")
	}
	if payload.Improvement == nil || *payload.Improvement != 67.5 {
		t.Errorf("improvement = %v, want 67.5", payload.Improvement)
	}
	if payload.OriginalIsSpam == nil || !*payload.OriginalIsSpam {
		t.Errorf("original_is_spam = %v, want true for a 92.5 score", payload.OriginalIsSpam)
	}
}

func TestRefineWithoutOriginalScore(t *testing.T) {
	pipeline := &fakePipeline{
		refineOnceFunc: func(ctx context.Context, text string) (string, error) {
			return "a calm professional note", nil
		},
		classifyFunc: func(ctx context.Context, text string) (bool, float32, error) {
			return false, 0.25, nil
		},
	}
	s := newTestServer(pipeline)

	_, body := doJSON(t, s, http.MethodPost, "/api/refine-email",
		map[string]interface{}{"email_content": "BUY NOW!!!"})

	var payload refineResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.Improvement != nil {
		t.Errorf("improvement should be null without original score, got %v", *payload.Improvement)
	}
	if payload.OriginalSpamScore != nil {
		t.Errorf("original_spam_score should be null, got %v", *payload.OriginalSpamScore)
	}
	if payload.OriginalIsSpam != nil {
		t.Errorf("original_is_spam should be null, got %v", *payload.OriginalIsSpam)
	}
}

func TestRefineRejectsMissingContent(t *testing.T) {
	s := newTestServer(&fakePipeline{})

	resp, _ := doJSON(t, s, http.MethodPost, "/api/refine-email", map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestRefineGenerationFailure(t *testing.T) {
	pipeline := &fakePipeline{
		refineOnceFunc: func(ctx context.Context, text string) (string, error) {
			return "", errors.New("provider unavailable")
		},
	}
	s := newTestServer(pipeline)

	resp, body := doJSON(t, s, http.MethodPost, "/api/refine-email",
		map[string]interface{}{"email_content": "BUY NOW!!!"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if payload.Error != "Refinement failed" {
		t.Errorf("unexpected error %q", payload.Error)
	}
}
