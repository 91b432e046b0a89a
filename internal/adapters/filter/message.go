package filter

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// maxMultipartDepth bounds recursion into nested multipart containers
const maxMultipartDepth = 3

// ExtractText extracts the text content from an email message. Multipart
// messages contribute their text/plain parts, including parts inside nested
// multipart containers; anything unparseable falls back to the raw body.
func ExtractText(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	if !strings.Contains(strings.ToLower(contentType), "multipart/") {
		return readAll(msg.Body)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return readAll(msg.Body)
	}

	boundary, ok := params["boundary"]
	if !ok {
		return readAll(msg.Body)
	}

	var textContent bytes.Buffer
	collectTextParts(multipart.NewReader(msg.Body, boundary), &textContent, 0)

	if textContent.Len() > 0 {
		return textContent.String(), nil
	}
	return "[No text content found in multipart message]", nil
}

// collectTextParts appends every text/plain part under the reader to out,
// descending into nested multipart parts up to maxMultipartDepth
func collectTextParts(mr *multipart.Reader, out *bytes.Buffer, depth int) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return
		}
		if err != nil {
			// A malformed part ends this container; keep what we have.
			return
		}

		partContentType := strings.ToLower(part.Header.Get("Content-Type"))

		switch {
		case strings.Contains(partContentType, "text/plain"):
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			out.Write(partBytes)
			out.WriteString("\n")

		case strings.Contains(partContentType, "multipart/"):
			if depth >= maxMultipartDepth {
				continue
			}
			_, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
			if err != nil {
				continue
			}
			boundary, ok := params["boundary"]
			if !ok {
				continue
			}
			collectTextParts(multipart.NewReader(part, boundary), out, depth+1)
		}
		// Skip other parts (attachments, html alternatives, etc.)
	}
}

func readAll(r io.Reader) (string, error) {
	bodyBytes, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(bodyBytes), nil
}
