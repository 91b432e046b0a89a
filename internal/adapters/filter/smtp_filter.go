package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/spamguard/spamguard/internal/core"
	"github.com/spamguard/spamguard/internal/whitelist"
	"go.uber.org/zap"
)

// Analyzer is the slice of the analysis pipeline the filters drive
type Analyzer interface {
	Classify(ctx context.Context, text string) (bool, float32, error)
	ProcessEmail(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error)
	RefineThreshold() float32
	MaxAttempts() int
	ModelName() string
}

// SMTPFilter is an SMTP content filter: it accepts messages on a local
// port, scores them, injects result headers and re-submits them to the
// relay port. With refinement enabled, spam-scored messages additionally
// run through the refinement loop and carry its outcome in the headers.
type SMTPFilter struct {
	service        Analyzer
	whitelist      *whitelist.Checker
	logger         *zap.Logger
	listenAddr     string
	server         *smtp.Server
	blockSpam      bool
	refineSpam     bool
	flagHeader     string
	scoreHeader    string
	attemptsHeader string
	refinedHeader  string
	relayAddr      string
	relayPort      int
	relayEnabled   bool
}

// NewSMTPFilter creates a new SMTP content filter
func NewSMTPFilter(
	service Analyzer,
	whitelistChecker *whitelist.Checker,
	logger *zap.Logger,
	listenAddr string,
	blockSpam bool,
	refineSpam bool,
	flagHeader string,
	scoreHeader string,
	attemptsHeader string,
	refinedHeader string,
	relayAddr string,
	relayPort int,
	relayEnabled bool,
) *SMTPFilter {
	return &SMTPFilter{
		service:        service,
		whitelist:      whitelistChecker,
		logger:         logger,
		listenAddr:     listenAddr,
		blockSpam:      blockSpam,
		refineSpam:     refineSpam,
		flagHeader:     flagHeader,
		scoreHeader:    scoreHeader,
		attemptsHeader: attemptsHeader,
		refinedHeader:  refinedHeader,
		relayAddr:      relayAddr,
		relayPort:      relayPort,
		relayEnabled:   relayEnabled,
	}
}

// Start starts the SMTP filter service
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("SMTP filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP filter service
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessText runs one email's text through the analysis pipeline. With
// refinement disabled only the classification runs.
func (f *SMTPFilter) ProcessText(ctx context.Context, text string) (*core.AnalysisResult, error) {
	if f.refineSpam {
		return f.service.ProcessEmail(ctx, text, f.service.RefineThreshold(), f.service.MaxAttempts())
	}

	isSpam, probability, err := f.service.Classify(ctx, text)
	if err != nil {
		return nil, err
	}
	return &core.AnalysisResult{
		OriginalEmail:   text,
		IsSpam:          isSpam,
		SpamProbability: probability,
		AnalyzedAt:      time.Now(),
		ModelUsed:       f.service.ModelName(),
	}, nil
}

// processTimeout bounds one message's analysis. Refinement makes multiple
// paced generation calls, so it gets a far larger budget.
func (f *SMTPFilter) processTimeout() time.Duration {
	if f.refineSpam {
		return 2 * time.Minute
	}
	return 10 * time.Second
}

// sendToRelay re-submits the processed email to the relay listener
func (f *SMTPFilter) sendToRelay(sender string, recipients []string, emailData []byte) error {
	relayAddr := fmt.Sprintf("%s:%d", f.relayAddr, f.relayPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", relayAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			// Continue with other recipients even if one fails
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
		// The email has already been accepted at this point.
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for this filter)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyzes the message, injects the result headers and hands the
// message to the relay
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.filter.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	textContent, err := ExtractText(msg)
	if err != nil {
		s.filter.logger.Error("Failed to extract text content", zap.Error(err))
		return err
	}

	var result *core.AnalysisResult
	var analysisErr error

	if s.filter.whitelist != nil && s.filter.whitelist.IsWhitelisted(s.sender) {
		s.filter.logger.Info("Skipping analysis for whitelisted sender",
			zap.String("sender", s.sender))
		result = &core.AnalysisResult{
			OriginalEmail: textContent,
			IsSpam:        false,
			AnalyzedAt:    time.Now(),
			ModelUsed:     "whitelist",
		}
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), s.filter.processTimeout())
		defer cancel()

		result, analysisErr = s.filter.ProcessText(ctx, textContent)
		if analysisErr != nil {
			s.filter.logger.Error("Failed to analyze email",
				zap.Error(analysisErr),
				zap.String("sender", s.sender))
			if result == nil {
				// Fail open: deliver unscored rather than lose mail.
				result = &core.AnalysisResult{
					OriginalEmail: textContent,
					IsSpam:        false,
					AnalyzedAt:    time.Now(),
					ModelUsed:     "error",
				}
			}
		}
	}

	if result.IsSpam && s.filter.blockSpam && analysisErr == nil {
		s.filter.logger.Info("Rejecting spam email",
			zap.String("sender", s.sender),
			zap.Float32("probability", result.SpamProbability),
			zap.String("model", result.ModelUsed))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as spam (probability: %.2f)", result.SpamProbability),
		}
	}

	modifiedEmail := s.buildOutgoing(msg, rawData, result, analysisErr)

	if s.filter.relayEnabled {
		if err := s.filter.sendToRelay(s.sender, s.recipients, modifiedEmail); err != nil {
			s.filter.logger.Error("Failed to send email to relay",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	} else {
		s.filter.logger.Warn("Relay forwarding disabled, message accepted but not delivered")
	}

	s.filter.logger.Info("Processed email",
		zap.String("sender", s.sender),
		zap.Bool("is_spam", result.IsSpam),
		zap.Float32("probability", result.SpamProbability),
		zap.Int("refinement_attempts", result.RefinementAttempts),
		zap.Bool("refinement_success", result.RefinementSuccess),
		zap.String("model", result.ModelUsed))

	return nil
}

// buildOutgoing splices the result headers on top of the original message,
// preserving the raw body bytes (MIME parts and attachments included)
func (s *smtpSession) buildOutgoing(msg *mail.Message, rawData []byte, result *core.AnalysisResult, analysisErr error) []byte {
	var out bytes.Buffer

	fmt.Fprintf(&out, "%s: %t\r\n", s.filter.flagHeader, result.IsSpam)
	fmt.Fprintf(&out, "%s: %.4f\r\n", s.filter.scoreHeader, result.SpamProbability)
	if result.RefinementAttempts > 0 {
		fmt.Fprintf(&out, "%s: %d\r\n", s.filter.attemptsHeader, result.RefinementAttempts)
		fmt.Fprintf(&out, "%s: %t\r\n", s.filter.refinedHeader, result.RefinementSuccess)
	}
	if analysisErr != nil {
		fmt.Fprintf(&out, "X-SpamGuard-Error: %s\r\n", analysisErr.Error())
	}

	for key, values := range msg.Header {
		for _, value := range values {
			fmt.Fprintf(&out, "%s: %s\r\n", key, value)
		}
	}
	fmt.Fprintf(&out, "\r\n")

	// Splice in the original body after the header separator.
	if idx := bytes.Index(rawData, []byte("\r\n\r\n")); idx != -1 {
		out.Write(rawData[idx+4:])
	} else if idx := bytes.Index(rawData, []byte("\n\n")); idx != -1 {
		out.Write(rawData[idx+2:])
	} else if bodyBytes, err := io.ReadAll(msg.Body); err == nil {
		out.Write(bodyBytes)
	}

	return out.Bytes()
}

// Logout handles SMTP logout (not needed for this filter)
func (s *smtpSession) Logout() error {
	return nil
}
