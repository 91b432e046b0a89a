package filter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/spamguard/spamguard/internal/core"
	"github.com/spamguard/spamguard/internal/whitelist"
	"go.uber.org/zap"
)

func newTestSMTPFilter(analyzer Analyzer, checker *whitelist.Checker, blockSpam, refineSpam bool) *SMTPFilter {
	return NewSMTPFilter(
		analyzer,
		checker,
		zap.NewNop(),
		"127.0.0.1:0",
		blockSpam,
		refineSpam,
		"X-SpamGuard-Flag",
		"X-SpamGuard-Score",
		"X-SpamGuard-Attempts",
		"X-SpamGuard-Refined",
		"127.0.0.1",
		10026,
		false, // relay disabled in tests
	)
}

const testMessage = "From: sender@example.com\r\n" +
	"To: rcpt@example.net\r\n" +
	"Subject: quick note\r\n" +
	"\r\n" +
	"free money, claim your prize now\r\n"

func TestSMTPFilterProcessTextClassifyOnly(t *testing.T) {
	analyzer := &fakeAnalyzer{
		classifyFunc: func(ctx context.Context, text string) (bool, float32, error) {
			return true, 0.83, nil
		},
	}
	f := newTestSMTPFilter(analyzer, nil, false, false)

	result, err := f.ProcessText(context.Background(), "free money")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsSpam || result.SpamProbability != 0.83 {
		t.Errorf("unexpected result %+v", result)
	}
	if analyzer.processCalls != 0 {
		t.Error("refinement pipeline must not run with refine_spam disabled")
	}
}

func TestSMTPFilterProcessTextWithRefinement(t *testing.T) {
	var gotThreshold float32
	var gotMaxAttempts int
	analyzer := &fakeAnalyzer{
		processFunc: func(ctx context.Context, text string, threshold float32, maxAttempts int) (*core.AnalysisResult, error) {
			gotThreshold = threshold
			gotMaxAttempts = maxAttempts
			return &core.AnalysisResult{OriginalEmail: text, IsSpam: true, SpamProbability: 0.9}, nil
		},
	}
	f := newTestSMTPFilter(analyzer, nil, false, true)

	if _, err := f.ProcessText(context.Background(), "free money"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analyzer.classifyCalls != 0 || analyzer.processCalls != 1 {
		t.Errorf("calls: classify=%d process=%d", analyzer.classifyCalls, analyzer.processCalls)
	}
	if gotThreshold != 0.6 || gotMaxAttempts != 5 {
		t.Errorf("pipeline saw threshold=%f maxAttempts=%d, want the service defaults", gotThreshold, gotMaxAttempts)
	}
}

func TestSMTPSessionRejectsSpamWhenBlocking(t *testing.T) {
	analyzer := &fakeAnalyzer{
		classifyFunc: func(ctx context.Context, text string) (bool, float32, error) {
			return true, 0.97, nil
		},
	}
	f := newTestSMTPFilter(analyzer, nil, true, false)
	session := &smtpSession{filter: f, sender: "spammer@bad.example", recipients: []string{"victim@example.net"}}

	err := session.Data(strings.NewReader(testMessage))
	if err == nil {
		t.Fatal("spam must be rejected when block_spam is on")
	}

	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) {
		t.Fatalf("want an SMTP error, got %T: %v", err, err)
	}
	if smtpErr.Code != 550 {
		t.Errorf("code = %d, want 550", smtpErr.Code)
	}
	if !strings.Contains(smtpErr.Message, "0.97") {
		t.Errorf("message should carry the probability, got %q", smtpErr.Message)
	}
}

func TestSMTPSessionWhitelistBypassesAnalysis(t *testing.T) {
	analyzer := &fakeAnalyzer{
		classifyFunc: func(ctx context.Context, text string) (bool, float32, error) {
			t.Error("whitelisted senders must not be analyzed")
			return false, 0, nil
		},
	}
	checker := whitelist.NewChecker([]string{"example.com"}, zap.NewNop())
	f := newTestSMTPFilter(analyzer, checker, true, false)
	session := &smtpSession{filter: f, sender: "sender@example.com", recipients: []string{"rcpt@example.net"}}

	if err := session.Data(strings.NewReader(testMessage)); err != nil {
		t.Fatalf("whitelisted mail must be accepted: %v", err)
	}
	if analyzer.classifyCalls != 0 {
		t.Errorf("classifier ran %d times for a whitelisted sender", analyzer.classifyCalls)
	}
}

func TestSMTPSessionFailsOpenOnAnalysisError(t *testing.T) {
	analyzer := &fakeAnalyzer{
		classifyFunc: func(ctx context.Context, text string) (bool, float32, error) {
			return false, 0, errors.New("classifier exploded")
		},
	}
	// block_spam on: even then, an analysis failure must not bounce mail.
	f := newTestSMTPFilter(analyzer, nil, true, false)
	session := &smtpSession{filter: f, sender: "someone@example.org", recipients: []string{"rcpt@example.net"}}

	if err := session.Data(strings.NewReader(testMessage)); err != nil {
		t.Fatalf("analysis failures must fail open, got %v", err)
	}
}

func TestBuildOutgoingInjectsHeaders(t *testing.T) {
	f := newTestSMTPFilter(&fakeAnalyzer{}, nil, false, false)
	session := &smtpSession{filter: f}

	msg := parseMessage(t, testMessage)
	final := float32(0.31)
	result := &core.AnalysisResult{
		IsSpam:               true,
		SpamProbability:      0.9312,
		RefinementAttempts:   2,
		RefinementSuccess:    true,
		FinalSpamProbability: &final,
	}

	out := string(session.buildOutgoing(msg, []byte(testMessage), result, nil))

	for _, want := range []string{
		"X-SpamGuard-Flag: true\r\n",
		"X-SpamGuard-Score: 0.9312\r\n",
		"X-SpamGuard-Attempts: 2\r\n",
		"X-SpamGuard-Refined: true\r\n",
		"Subject: quick note\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("outgoing message missing %q", want)
		}
	}
	if !strings.HasSuffix(out, "free money, claim your prize now\r\n") {
		t.Errorf("body not preserved, got %q", out)
	}
	if strings.Contains(out, "X-SpamGuard-Error") {
		t.Error("no error header expected on a clean run")
	}
}

func TestBuildOutgoingSkipsRefinementHeadersWithoutAttempts(t *testing.T) {
	f := newTestSMTPFilter(&fakeAnalyzer{}, nil, false, false)
	session := &smtpSession{filter: f}

	msg := parseMessage(t, testMessage)
	result := &core.AnalysisResult{IsSpam: false, SpamProbability: 0.12}

	out := string(session.buildOutgoing(msg, []byte(testMessage), result, nil))

	if !strings.Contains(out, "X-SpamGuard-Flag: false\r\n") {
		t.Error("flag header missing")
	}
	if strings.Contains(out, "X-SpamGuard-Attempts") || strings.Contains(out, "X-SpamGuard-Refined") {
		t.Error("refinement headers must only appear after refinement attempts")
	}
}

func TestBuildOutgoingRecordsAnalysisError(t *testing.T) {
	f := newTestSMTPFilter(&fakeAnalyzer{}, nil, false, false)
	session := &smtpSession{filter: f}

	msg := parseMessage(t, testMessage)
	result := &core.AnalysisResult{IsSpam: false, ModelUsed: "error"}

	out := string(session.buildOutgoing(msg, []byte(testMessage), result, errors.New("classifier exploded")))

	if !strings.Contains(out, "X-SpamGuard-Error: classifier exploded\r\n") {
		t.Errorf("error header missing in %q", out)
	}
}
