package httpapi

import (
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/spamguard/spamguard/internal/core"
	"go.uber.org/zap"
)

type analyzeRequest struct {
	EmailContent string   `json:"email_content"`
	Threshold    *float64 `json:"threshold"`
	MaxAttempts  *int     `json:"max_attempts"`
}

// refinementInfo mirrors the refinement section of the analysis result.
// Pointer fields render as null when the loop never scored generated text.
type refinementInfo struct {
	Success          bool     `json:"success"`
	RefinedEmail     *string  `json:"refined_email"`
	RefinedSpamScore *float64 `json:"refined_spam_score"`
	RefinedIsSpam    *bool    `json:"refined_is_spam"`
	Attempts         int      `json:"attempts"`
	Error            string   `json:"error,omitempty"`
}

type analyzeResponse struct {
	OriginalEmail  string         `json:"original_email"`
	SpamScore      float64        `json:"spam_score"`
	IsSpam         bool           `json:"is_spam"`
	Recommendation string         `json:"recommendation"`
	Refinement     refinementInfo `json:"refinement"`
}

type refineRequest struct {
	EmailContent      string   `json:"email_content"`
	OriginalSpamScore *float64 `json:"original_spam_score"`
}

type refineResponse struct {
	OriginalEmail     string   `json:"original_email"`
	RefinedEmail      string   `json:"refined_email"`
	OriginalSpamScore *float64 `json:"original_spam_score"`
	OriginalIsSpam    *bool    `json:"original_is_spam"`
	RefinedSpamScore  float64  `json:"refined_spam_score"`
	RefinedIsSpam     bool     `json:"refined_is_spam"`
	Improvement       *float64 `json:"improvement"`
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "healthy",
		"system_ready": s.service != nil,
		"message":      "SpamGuard API is running",
	})
}

// handleAnalyzeEmail runs the full pipeline for one email
func (s *Server) handleAnalyzeEmail(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"message": "Request body must be valid JSON",
		})
	}
	if req.EmailContent == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Missing email content",
			"message": "Please provide email_content in the request body",
		})
	}
	if strings.TrimSpace(req.EmailContent) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Empty email content",
			"message": "Email content cannot be empty",
		})
	}

	threshold := s.service.RefineThreshold()
	if req.Threshold != nil {
		threshold = float32(*req.Threshold)
	}
	maxAttempts := 0
	if req.MaxAttempts != nil {
		maxAttempts = *req.MaxAttempts
	}

	result, err := s.service.ProcessEmail(c.Context(), req.EmailContent, threshold, maxAttempts)
	if err != nil {
		s.logger.Error("Analysis failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Analysis failed",
			"message": err.Error(),
		})
	}

	resp := analyzeResponse{
		OriginalEmail:  result.OriginalEmail,
		SpamScore:      scoreOf(result.SpamProbability),
		IsSpam:         result.IsSpam,
		Recommendation: recommendationFor(result, threshold),
		Refinement: refinementInfo{
			Success:  result.RefinementSuccess,
			Attempts: result.RefinementAttempts,
			Error:    result.ErrorMessage,
		},
	}
	if result.RefinedEmail != "" {
		refined := result.RefinedEmail
		resp.Refinement.RefinedEmail = &refined
	}
	if result.FinalSpamProbability != nil {
		refinedScore := scoreOf(*result.FinalSpamProbability)
		refinedIsSpam := *result.FinalSpamProbability > core.SpamBoundary
		resp.Refinement.RefinedSpamScore = &refinedScore
		resp.Refinement.RefinedIsSpam = &refinedIsSpam
	}

	return c.JSON(resp)
}

// handleRefineEmail runs a single refinement pass and scores the output
func (s *Server) handleRefineEmail(c *fiber.Ctx) error {
	var req refineRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"message": "Request body must be valid JSON",
		})
	}
	if strings.TrimSpace(req.EmailContent) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Missing email content",
			"message": "Please provide email_content in the request body",
		})
	}

	refined, err := s.service.RefineOnce(c.Context(), req.EmailContent)
	if err != nil {
		s.logger.Error("Refinement failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Refinement failed",
			"message": err.Error(),
		})
	}

	refinedIsSpam, refinedProb, err := s.service.Classify(c.Context(), refined)
	if err != nil {
		s.logger.Error("Analysis of refined email failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Analysis failed",
			"message": err.Error(),
		})
	}

	resp := refineResponse{
		OriginalEmail:     req.EmailContent,
		RefinedEmail:      refined,
		OriginalSpamScore: req.OriginalSpamScore,
		RefinedSpamScore:  scoreOf(refinedProb),
		RefinedIsSpam:     refinedIsSpam,
	}
	if req.OriginalSpamScore != nil {
		// Scores are percentage points, so 50 is the verdict boundary.
		originalIsSpam := *req.OriginalSpamScore > 50
		improvement := roundTwo(*req.OriginalSpamScore - resp.RefinedSpamScore)
		resp.OriginalIsSpam = &originalIsSpam
		resp.Improvement = &improvement
	}

	return c.JSON(resp)
}

// recommendationFor maps an analysis result to the caller-facing advice
func recommendationFor(result *core.AnalysisResult, threshold float32) string {
	if result.SpamProbability < threshold {
		return "accept"
	}
	if result.RefinementSuccess && result.FinalSpamProbability != nil {
		if *result.FinalSpamProbability < threshold {
			return "accept_refined"
		}
		return "still_risky"
	}
	return "rewrite"
}

// scoreOf converts a probability to the 0-100 score used on the wire
func scoreOf(probability float32) float64 {
	return roundTwo(float64(probability) * 100)
}

func roundTwo(x float64) float64 {
	return math.Round(x*100) / 100
}
