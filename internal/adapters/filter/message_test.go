package filter

import (
	"net/mail"
	"strings"
	"testing"
)

func parseMessage(t *testing.T, raw string) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse test message: %v", err)
	}
	return msg
}

func TestExtractTextPlainMessage(t *testing.T) {
	msg := parseMessage(t, "From: a@example.com\r\n"+
		"Subject: hello\r\n"+
		"\r\n"+
		"Just a plain body.\r\n")

	text, err := ExtractText(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Just a plain body.") {
		t.Errorf("plain body missing from %q", text)
	}
}

func TestExtractTextMultipart(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"The plain text part.\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>The HTML part.</p>\r\n" +
		"--BOUNDARY--\r\n"

	text, err := ExtractText(parseMessage(t, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "The plain text part.") {
		t.Errorf("text/plain part missing from %q", text)
	}
	if strings.Contains(text, "HTML part") {
		t.Errorf("html part should be skipped, got %q", text)
	}
}

func TestExtractTextNestedMultipart(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: multipart/mixed; boundary=OUTER\r\n" +
		"\r\n" +
		"--OUTER\r\n" +
		"Content-Type: multipart/alternative; boundary=INNER\r\n" +
		"\r\n" +
		"--INNER\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Nested plain text.\r\n" +
		"--INNER--\r\n" +
		"--OUTER\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"\r\n" +
		"binarybinarybinary\r\n" +
		"--OUTER--\r\n"

	text, err := ExtractText(parseMessage(t, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Nested plain text.") {
		t.Errorf("nested text/plain part missing from %q", text)
	}
	if strings.Contains(text, "binary") {
		t.Errorf("attachment content should be skipped, got %q", text)
	}
}

func TestExtractTextMultipartWithoutTextParts(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: multipart/mixed; boundary=BOUNDARY\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: application/pdf\r\n" +
		"\r\n" +
		"pdfbytes\r\n" +
		"--BOUNDARY--\r\n"

	text, err := ExtractText(parseMessage(t, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "[No text content found in multipart message]" {
		t.Errorf("expected placeholder for text-free message, got %q", text)
	}
}

func TestExtractTextMultipartMissingBoundary(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: multipart/mixed\r\n" +
		"\r\n" +
		"raw fallback body\r\n"

	text, err := ExtractText(parseMessage(t, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "raw fallback body") {
		t.Errorf("expected raw body fallback, got %q", text)
	}
}
