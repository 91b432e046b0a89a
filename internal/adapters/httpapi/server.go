package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spamguard/spamguard/internal/core"
	"go.uber.org/zap"
)

// Pipeline is the slice of the analysis pipeline the HTTP API drives
type Pipeline interface {
	Classify(ctx context.Context, text string) (bool, float32, error)
	ProcessEmail(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error)
	RefineOnce(ctx context.Context, text string) (string, error)
	RefineThreshold() float32
}

// Server exposes the analysis pipeline over HTTP
type Server struct {
	app        *fiber.App
	service    Pipeline
	logger     *zap.Logger
	listenAddr string
}

// NewServer creates a new HTTP API server
func NewServer(service Pipeline, logger *zap.Logger, listenAddr string) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "spamguard",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		IdleTimeout:           60 * time.Second,
	})

	s := &Server{
		app:        app,
		service:    service,
		logger:     logger,
		listenAddr: listenAddr,
	}
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/analyze-email", s.handleAnalyzeEmail)
	api.Post("/refine-email", s.handleRefineEmail)
}

// App returns the underlying fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts serving in the background
func (s *Server) Start() error {
	s.logger.Info("HTTP API starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.app.Listen(s.listenAddr); err != nil {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	return s.app.Shutdown()
}
